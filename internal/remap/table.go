package remap

import (
	"math"

	"refract/internal/calib"
)

// Table maps every target pixel to a source coordinate with bilinear
// interpolation weights. Entries flagged out of bounds render as black.
type Table struct {
	Width  int
	Height int
	SrcW   int
	SrcH   int

	// Parallel per-target-pixel arrays. srcX/srcY hold the top-left integer
	// corner of the bilinear neighborhood, fracX/fracY the sub-pixel offset.
	srcX  []int32
	srcY  []int32
	fracX []float32
	fracY []float32
	oob   []bool
}

// Build computes the remap table for a (source, target) model pair. The
// result depends only on the two models, so identical inputs always yield
// identical tables.
func Build(src, dst calib.LensModel) *Table {
	n := dst.Width * dst.Height
	t := &Table{
		Width:  dst.Width,
		Height: dst.Height,
		SrcW:   src.Width,
		SrcH:   src.Height,
		srcX:   make([]int32, n),
		srcY:   make([]int32, n),
		fracX:  make([]float32, n),
		fracY:  make([]float32, n),
		oob:    make([]bool, n),
	}

	idx := 0
	for v := 0; v < dst.Height; v++ {
		for u := 0; u < dst.Width; u++ {
			x, y, z := dst.BackProject(float64(u), float64(v))
			su, sv, ok := src.Project(x, y, z)
			if !ok || !inSamplingBounds(su, sv, src.Width, src.Height) {
				t.oob[idx] = true
				idx++
				continue
			}
			x0 := math.Floor(su)
			y0 := math.Floor(sv)
			t.srcX[idx] = int32(x0)
			t.srcY[idx] = int32(y0)
			t.fracX[idx] = float32(su - x0)
			t.fracY[idx] = float32(sv - y0)
			idx++
		}
	}
	return t
}

// inSamplingBounds reports whether (u, v) can be sampled bilinearly from a
// w x h image: the coordinate itself must sit inside [0, w-1] x [0, h-1].
func inSamplingBounds(u, v float64, w, h int) bool {
	return u >= 0 && v >= 0 && u <= float64(w-1) && v <= float64(h-1)
}

// At exposes one entry for inspection. Primarily used by tests and
// diagnostics; Apply iterates the arrays directly.
func (t *Table) At(u, v int) (srcX, srcY float64, oob bool) {
	idx := v*t.Width + u
	if t.oob[idx] {
		return 0, 0, true
	}
	return float64(t.srcX[idx]) + float64(t.fracX[idx]),
		float64(t.srcY[idx]) + float64(t.fracY[idx]),
		false
}
