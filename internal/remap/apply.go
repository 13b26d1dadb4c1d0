package remap

import (
	"fmt"
	"runtime"
	"sync"

	"refract/internal/frame"
)

// Apply gathers source pixels through the table into a freshly allocated
// raster of the target resolution. Out-of-bounds entries stay black. The
// gather is parallelized across row bands; the output layout is position
// addressed, so worker scheduling cannot change the result.
func (t *Table) Apply(src *frame.Raster) (*frame.Raster, error) {
	if src.Width != t.SrcW || src.Height != t.SrcH {
		return nil, fmt.Errorf("source raster is %dx%d, table expects %dx%d",
			src.Width, src.Height, t.SrcW, t.SrcH)
	}
	if err := src.Validate(); err != nil {
		return nil, err
	}

	dst := frame.NewRaster(t.Width, t.Height, src.Format)
	channels := src.Format.Channels()

	workers := runtime.GOMAXPROCS(0)
	if workers > t.Height {
		workers = t.Height
	}
	if workers < 1 {
		workers = 1
	}
	band := (t.Height + workers - 1) / workers

	var wg sync.WaitGroup
	for start := 0; start < t.Height; start += band {
		end := start + band
		if end > t.Height {
			end = t.Height
		}
		wg.Add(1)
		go func(y0, y1 int) {
			defer wg.Done()
			t.applyRows(src, dst, channels, y0, y1)
		}(start, end)
	}
	wg.Wait()
	return dst, nil
}

func (t *Table) applyRows(src, dst *frame.Raster, channels, y0, y1 int) {
	for y := y0; y < y1; y++ {
		rowBase := y * t.Width
		for x := 0; x < t.Width; x++ {
			idx := rowBase + x
			if t.oob[idx] {
				continue
			}
			sx := int(t.srcX[idx])
			sy := int(t.srcY[idx])
			fx := float64(t.fracX[idx])
			fy := float64(t.fracY[idx])

			x1 := sx + 1
			if x1 >= src.Width {
				x1 = src.Width - 1
			}
			y1c := sy + 1
			if y1c >= src.Height {
				y1c = src.Height - 1
			}

			o00 := src.Offset(sx, sy)
			o10 := src.Offset(x1, sy)
			o01 := src.Offset(sx, y1c)
			o11 := src.Offset(x1, y1c)
			out := dst.Offset(x, y)

			for c := 0; c < channels; c++ {
				top := float64(src.Pix[o00+c])*(1-fx) + float64(src.Pix[o10+c])*fx
				bottom := float64(src.Pix[o01+c])*(1-fx) + float64(src.Pix[o11+c])*fx
				dst.Pix[out+c] = byte(top*(1-fy) + bottom*fy + 0.5)
			}
		}
	}
}
