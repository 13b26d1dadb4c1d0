package remap

import (
	"bytes"
	"reflect"
	"testing"

	"refract/internal/calib"
	"refract/internal/frame"
)

func identityModels(size int) (calib.LensModel, calib.LensModel) {
	dst := calib.NewPinhole(calib.PinholeSpec{Width: size, Height: size, FOVDegrees: 90})
	src := dst
	return src, dst
}

func TestBuildIdentityPair(t *testing.T) {
	src, dst := identityModels(16)
	table := Build(src, dst)
	for v := 0; v < 16; v++ {
		for u := 0; u < 16; u++ {
			su, sv, oob := table.At(u, v)
			if oob {
				t.Fatalf("pixel (%d, %d) flagged out of bounds", u, v)
			}
			if su < float64(u)-1e-3 || su > float64(u)+1e-3 || sv < float64(v)-1e-3 || sv > float64(v)+1e-3 {
				t.Errorf("identity map (%d, %d) -> (%g, %g)", u, v, su, sv)
			}
		}
	}
}

func TestBuildEveryEntryInBoundsOrFlagged(t *testing.T) {
	src := calib.LensModel{
		Projection: calib.ProjectionFisheye,
		FX:         100, FY: 100, CX: 63.5, CY: 63.5,
		Width: 128, Height: 128,
		Coeffs:   []float64{0.02, -0.001, 0, 0},
		MaxAngle: 1.2,
	}
	dst := calib.NewPinhole(calib.PinholeSpec{Width: 96, Height: 96, FOVDegrees: 140})
	table := Build(src, dst)

	flagged := 0
	for v := 0; v < table.Height; v++ {
		for u := 0; u < table.Width; u++ {
			su, sv, oob := table.At(u, v)
			if oob {
				flagged++
				continue
			}
			if su < 0 || sv < 0 || su > float64(src.Width-1) || sv > float64(src.Height-1) {
				t.Fatalf("entry (%d, %d) references (%g, %g) outside source", u, v, su, sv)
			}
		}
	}
	// A 140 degree pinhole against a 1.2 rad fisheye domain must clip corners.
	if flagged == 0 {
		t.Error("expected some out-of-bounds entries at the corners")
	}
}

func TestBuildDeterministic(t *testing.T) {
	src := calib.LensModel{
		Projection: calib.ProjectionFisheye,
		FX:         150, FY: 150, CX: 63.5, CY: 63.5,
		Width: 128, Height: 128,
		Coeffs: []float64{0.01, 0.002, -0.0001, 0},
	}
	dst := calib.NewPinhole(calib.PinholeSpec{Width: 64, Height: 48, FOVDegrees: 100})
	a := Build(src, dst)
	b := Build(src, dst)
	if !reflect.DeepEqual(a, b) {
		t.Error("two builds from identical models differ")
	}
}

func TestApplyIdentityPreservesPixels(t *testing.T) {
	src, dst := identityModels(32)
	table := Build(src, dst)

	input := frame.NewRaster(32, 32, frame.FormatGray)
	for i := range input.Pix {
		input.Pix[i] = byte(i % 251)
	}
	out, err := table.Apply(input)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if !bytes.Equal(out.Pix, input.Pix) {
		t.Error("identity remap changed pixel content")
	}
}

func TestApplyRejectsWrongSourceSize(t *testing.T) {
	src, dst := identityModels(32)
	table := Build(src, dst)
	if _, err := table.Apply(frame.NewRaster(16, 16, frame.FormatGray)); err == nil {
		t.Fatal("mismatched source raster accepted")
	}
}

func TestApplyOutOfBoundsRendersBlack(t *testing.T) {
	src := calib.NewPinhole(calib.PinholeSpec{Width: 16, Height: 16, FOVDegrees: 60})
	// A much wider target FOV pushes edge rays outside the narrow source.
	dst := calib.NewPinhole(calib.PinholeSpec{Width: 16, Height: 16, FOVDegrees: 150})
	table := Build(src, dst)

	input := frame.NewRaster(16, 16, frame.FormatGray)
	for i := range input.Pix {
		input.Pix[i] = 200
	}
	out, err := table.Apply(input)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if _, _, oob := table.At(0, 0); !oob {
		t.Fatal("expected the corner to be out of bounds")
	}
	if out.Pix[0] != 0 {
		t.Errorf("out-of-bounds pixel = %d, want black", out.Pix[0])
	}
}

func TestApplyRGB(t *testing.T) {
	src, dst := identityModels(8)
	table := Build(src, dst)
	input := frame.NewRaster(8, 8, frame.FormatRGB)
	for i := range input.Pix {
		input.Pix[i] = byte(i)
	}
	out, err := table.Apply(input)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if !bytes.Equal(out.Pix, input.Pix) {
		t.Error("identity remap changed RGB content")
	}
}

func TestCacheBuildsOnce(t *testing.T) {
	src, dst := identityModels(8)
	cache := NewCache()
	key := Key{Camera: "camera-rgb", Width: 8, Height: 8, FOVDegrees: 90}

	a := cache.Get(key, src, dst)
	b := cache.Get(key, src, dst)
	if a != b {
		t.Error("cache rebuilt table for identical key")
	}
	if cache.Len() != 1 {
		t.Errorf("cache holds %d tables, want 1", cache.Len())
	}

	other := Key{Camera: "camera-rgb", Width: 8, Height: 8, FOVDegrees: 120}
	wide := calib.NewPinhole(calib.PinholeSpec{Width: 8, Height: 8, FOVDegrees: 120})
	if cache.Get(other, src, wide) == a {
		t.Error("distinct key returned the same table")
	}
}
