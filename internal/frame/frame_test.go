package frame

import (
	"bytes"
	"testing"
)

func TestRotate90CWGray(t *testing.T) {
	// 3x2 source:
	//   1 2 3
	//   4 5 6
	r := &Raster{Width: 3, Height: 2, Format: FormatGray, Pix: []byte{1, 2, 3, 4, 5, 6}}

	got := r.Rotate90CW()
	if got.Width != 2 || got.Height != 3 {
		t.Fatalf("rotated size = %dx%d, want 2x3", got.Width, got.Height)
	}
	// Clockwise:
	//   4 1
	//   5 2
	//   6 3
	want := []byte{4, 1, 5, 2, 6, 3}
	if !bytes.Equal(got.Pix, want) {
		t.Errorf("rotated pixels = %v, want %v", got.Pix, want)
	}
	// Source is untouched.
	if !bytes.Equal(r.Pix, []byte{1, 2, 3, 4, 5, 6}) {
		t.Errorf("source mutated: %v", r.Pix)
	}
}

func TestRotate90CWRGBKeepsChannelsTogether(t *testing.T) {
	r := NewRaster(2, 1, FormatRGB)
	copy(r.Pix, []byte{10, 11, 12, 20, 21, 22})

	got := r.Rotate90CW()
	if got.Width != 1 || got.Height != 2 {
		t.Fatalf("rotated size = %dx%d, want 1x2", got.Width, got.Height)
	}
	want := []byte{10, 11, 12, 20, 21, 22}
	if !bytes.Equal(got.Pix, want) {
		t.Errorf("rotated pixels = %v, want %v", got.Pix, want)
	}
}

func TestRotateFourTimesIsIdentity(t *testing.T) {
	r := NewRaster(4, 3, FormatGray)
	for i := range r.Pix {
		r.Pix[i] = byte(i * 7)
	}
	got := r.Rotate90CW().Rotate90CW().Rotate90CW().Rotate90CW()
	if !bytes.Equal(got.Pix, r.Pix) {
		t.Error("four clockwise rotations should reproduce the source")
	}
}

func TestValidate(t *testing.T) {
	r := NewRaster(8, 4, FormatRGB)
	if err := r.Validate(); err != nil {
		t.Fatalf("valid raster rejected: %v", err)
	}
	r.Pix = r.Pix[:len(r.Pix)-1]
	if err := r.Validate(); err == nil {
		t.Fatal("truncated raster accepted")
	}
}

func TestFormatChannels(t *testing.T) {
	if FormatGray.Channels() != 1 || FormatRGB.Channels() != 3 {
		t.Error("unexpected channel counts")
	}
}
