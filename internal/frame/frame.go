// Package frame defines the in-flight pixel buffer types the conversion
// pipeline passes between stages.
package frame

import "fmt"

// Format identifies the pixel layout of a Raster.
type Format int

const (
	// FormatGray is single-channel 8-bit luminance.
	FormatGray Format = iota
	// FormatRGB is interleaved 8-bit RGB.
	FormatRGB
)

// Channels returns the number of bytes per pixel for the format.
func (f Format) Channels() int {
	if f == FormatRGB {
		return 3
	}
	return 1
}

func (f Format) String() string {
	if f == FormatRGB {
		return "rgb"
	}
	return "gray"
}

// Raster is a tightly packed pixel buffer, rows top to bottom.
type Raster struct {
	Width  int
	Height int
	Format Format
	Pix    []byte
}

// NewRaster allocates a zeroed raster of the given size and format.
func NewRaster(width, height int, format Format) *Raster {
	return &Raster{
		Width:  width,
		Height: height,
		Format: format,
		Pix:    make([]byte, width*height*format.Channels()),
	}
}

// Offset returns the index of pixel (x, y) in Pix.
func (r *Raster) Offset(x, y int) int {
	return (y*r.Width + x) * r.Format.Channels()
}

// Validate checks that the buffer length matches the declared geometry.
func (r *Raster) Validate() error {
	want := r.Width * r.Height * r.Format.Channels()
	if len(r.Pix) != want {
		return fmt.Errorf("raster buffer is %d bytes, want %d for %dx%d %s",
			len(r.Pix), want, r.Width, r.Height, r.Format)
	}
	return nil
}

// Rotate90CW returns a new raster rotated 90 degrees clockwise. The result
// has swapped dimensions; the receiver is left untouched.
func (r *Raster) Rotate90CW() *Raster {
	channels := r.Format.Channels()
	out := NewRaster(r.Height, r.Width, r.Format)
	for y := 0; y < out.Height; y++ {
		for x := 0; x < out.Width; x++ {
			// Destination (x, y) reads source (y, srcHeight-1-x).
			src := r.Offset(y, r.Height-1-x)
			dst := out.Offset(x, y)
			copy(out.Pix[dst:dst+channels], r.Pix[src:src+channels])
		}
	}
	return out
}

// Stage tags describe how far through the pipeline a frame has travelled.
const (
	StageRaw         = "raw"
	StageDevignetted = "devignetted"
	StageUndistorted = "undistorted"
	StageRotated     = "rotated"
)

// Frame couples a raster with its position in the source stream. The
// orchestrator owns a frame exclusively from read to sink write and releases
// the buffer immediately afterwards.
type Frame struct {
	Index       int
	TimestampNs int64
	Raster      *Raster
	Stage       string
}

// Release drops the pixel buffer so the memory can be reclaimed while the
// Frame header may still be referenced.
func (f *Frame) Release() {
	f.Raster = nil
}
