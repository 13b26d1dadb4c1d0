package main

import (
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	"github.com/nfnt/resize"
	"github.com/spf13/cobra"

	"refract/internal/calib"
	"refract/internal/frame"
	"refract/internal/recording"
	"refract/internal/remap"
	"refract/internal/vignette"
)

func newPreviewCommand(ctx *commandContext) *cobra.Command {
	var (
		camera     string
		frameIndex int
		outputPath string
		maxEdge    int
	)

	cmd := &cobra.Command{
		Use:   "preview <recording>",
		Short: "Process a single frame to PNG for a quick visual check",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			reader, err := recording.Open(args[0])
			if err != nil {
				return err
			}
			defer reader.Close()

			desc, err := previewCamera(reader, camera)
			if err != nil {
				return err
			}

			target := calib.PinholeSpec{
				Width:      cfg.Undistort.Width,
				Height:     cfg.Undistort.Height,
				FOVDegrees: cfg.Undistort.FOVDegrees,
			}
			srcModel, dstModel, err := calib.Resolve(reader, desc.ID, target)
			if err != nil {
				return err
			}
			corrector, err := vignette.Load(cfg.Paths.MaskDir, desc.ID, desc.Width, desc.Height)
			if err != nil {
				return err
			}
			table := remap.Build(srcModel, dstModel)

			raster, err := extractFrame(reader, desc.ID, frameIndex)
			if err != nil {
				return err
			}
			if err := corrector.Apply(raster); err != nil {
				return err
			}
			raster, err = table.Apply(raster)
			if err != nil {
				return err
			}
			if desc.Channel == recording.ChannelColor {
				raster = raster.Rotate90CW()
			}

			img := rasterImage(raster)
			img = boundImage(img, maxEdge)

			if outputPath == "" {
				base := strings.TrimSuffix(filepath.Base(args[0]), filepath.Ext(args[0]))
				outputPath = filepath.Join(cfg.Paths.OutputDir,
					fmt.Sprintf("%s-%s-frame%d.png", base, desc.ID, frameIndex))
			}
			out, err := os.Create(outputPath)
			if err != nil {
				return err
			}
			defer out.Close()
			if err := png.Encode(out, img); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", outputPath)
			return nil
		},
	}

	cmd.Flags().StringVar(&camera, "camera", "", "Camera stream to preview (default: first)")
	cmd.Flags().IntVar(&frameIndex, "frame", 0, "Frame index to extract")
	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "PNG destination path")
	cmd.Flags().IntVar(&maxEdge, "max-edge", 1024, "Downscale so the longest edge fits this bound (0 = off)")

	return cmd
}

func previewCamera(reader recording.Reader, requested string) (recording.CameraStreamDescriptor, error) {
	cameras := reader.Cameras()
	if len(cameras) == 0 {
		return recording.CameraStreamDescriptor{}, fmt.Errorf("recording has no camera streams")
	}
	if requested == "" {
		return cameras[0], nil
	}
	for _, desc := range cameras {
		if desc.ID == requested {
			return desc, nil
		}
	}
	return recording.CameraStreamDescriptor{}, fmt.Errorf("recording has no camera %q", requested)
}

func extractFrame(reader recording.Reader, cameraID string, index int) (*frame.Raster, error) {
	for {
		f, err := reader.NextFrame(cameraID)
		if err != nil {
			return nil, fmt.Errorf("frame %d not reachable: %w", index, err)
		}
		if f.Index >= index {
			return f.Raster, nil
		}
	}
}

func rasterImage(r *frame.Raster) image.Image {
	bounds := image.Rect(0, 0, r.Width, r.Height)
	if r.Format == frame.FormatGray {
		return &image.Gray{Pix: r.Pix, Stride: r.Width, Rect: bounds}
	}
	img := image.NewRGBA(bounds)
	for i := 0; i < r.Width*r.Height; i++ {
		img.Pix[i*4+0] = r.Pix[i*3+0]
		img.Pix[i*4+1] = r.Pix[i*3+1]
		img.Pix[i*4+2] = r.Pix[i*3+2]
		img.Pix[i*4+3] = 0xff
	}
	return img
}

// boundImage downscales img so its longest edge is at most maxEdge,
// preserving aspect ratio. Smaller images pass through untouched.
func boundImage(img image.Image, maxEdge int) image.Image {
	if maxEdge <= 0 {
		return img
	}
	size := img.Bounds().Size()
	if size.X <= maxEdge && size.Y <= maxEdge {
		return img
	}
	if size.X >= size.Y {
		return resize.Resize(uint(maxEdge), 0, img, resize.Bilinear)
	}
	return resize.Resize(0, uint(maxEdge), img, resize.Bilinear)
}
