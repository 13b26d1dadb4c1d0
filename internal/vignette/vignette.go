// Package vignette corrects lens vignetting with per-camera multiplicative
// masks.
//
// Masks live in a configured directory as one raster file per camera
// identifier. A missing directory or missing per-camera file disables the
// correction for that camera; a mask whose size differs from the camera's
// native resolution aborts the run. Correction is applied to raw frames
// before any geometric transform, because vignetting is a property of the
// optical path and remapping first would sample corrections from the wrong
// pixels.
package vignette

import (
	"errors"
	"fmt"
	"image"
	"io/fs"
	"os"
	"path/filepath"

	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"

	"refract/internal/frame"
	"refract/internal/services"
)

// maskExtensions are tried in order when looking up a camera's mask file.
var maskExtensions = []string{".png", ".bmp", ".tiff", ".tif"}

// Corrector multiplies frames by a per-pixel correction factor. The
// zero-value (no mask) corrector is the identity.
type Corrector struct {
	factors []float32
	width   int
	height  int
}

// Identity returns a corrector that leaves frames untouched.
func Identity() *Corrector {
	return &Corrector{}
}

// Enabled reports whether the corrector carries a mask.
func (c *Corrector) Enabled() bool {
	return len(c.factors) > 0
}

// Load builds the corrector for one camera. maskDir may be empty (disabled);
// a missing file is not an error. The mask image encodes the lens attenuation
// per pixel, white meaning no attenuation, so the correction factor is its
// reciprocal and an all-white mask is a no-op.
func Load(maskDir, cameraID string, nativeWidth, nativeHeight int) (*Corrector, error) {
	if maskDir == "" {
		return Identity(), nil
	}
	path, ok := findMask(maskDir, cameraID)
	if !ok {
		return Identity(), nil
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open mask %s: %w", path, err)
	}
	defer file.Close()

	img, _, err := image.Decode(file)
	if err != nil {
		return nil, fmt.Errorf("decode mask %s: %w", path, err)
	}

	bounds := img.Bounds()
	if bounds.Dx() != nativeWidth || bounds.Dy() != nativeHeight {
		return nil, services.Wrap(services.ErrMaskResolutionMismatch,
			"devignette", "load mask",
			fmt.Sprintf("mask for %s is %dx%d, camera native resolution is %dx%d",
				cameraID, bounds.Dx(), bounds.Dy(), nativeWidth, nativeHeight), nil)
	}

	factors := make([]float32, nativeWidth*nativeHeight)
	idx := 0
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b, _ := img.At(x, y).RGBA()
			// 16-bit luminance of the mask pixel, 0xffff = full transmission.
			luma := (299*float64(r) + 587*float64(g) + 114*float64(b)) / 1000
			if luma < 1 {
				luma = 1
			}
			factors[idx] = float32(65535 / luma)
			idx++
		}
	}
	return &Corrector{factors: factors, width: nativeWidth, height: nativeHeight}, nil
}

func findMask(maskDir, cameraID string) (string, bool) {
	for _, ext := range maskExtensions {
		path := filepath.Join(maskDir, cameraID+ext)
		if _, err := os.Stat(path); err == nil {
			return path, true
		} else if !errors.Is(err, fs.ErrNotExist) {
			return "", false
		}
	}
	return "", false
}

// Apply multiplies the raster by the correction mask in place. The raster
// must be at the camera's native resolution.
func (c *Corrector) Apply(r *frame.Raster) error {
	if !c.Enabled() {
		return nil
	}
	if r.Width != c.width || r.Height != c.height {
		return services.Wrap(services.ErrMaskResolutionMismatch,
			"devignette", "apply",
			fmt.Sprintf("frame is %dx%d, mask is %dx%d", r.Width, r.Height, c.width, c.height), nil)
	}
	channels := r.Format.Channels()
	for i, factor := range c.factors {
		base := i * channels
		for ch := 0; ch < channels; ch++ {
			v := float32(r.Pix[base+ch]) * factor
			if v > 255 {
				v = 255
			}
			r.Pix[base+ch] = byte(v + 0.5)
		}
	}
	return nil
}
