package recording

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"refract/internal/calib"
	"refract/internal/frame"
)

func testCameras() []CameraSpec {
	fisheye := &calib.LensModel{
		Projection: calib.ProjectionFisheye,
		FX:         240, FY: 240, CX: 3.5, CY: 3.5,
		Width: 8, Height: 8,
	}
	return []CameraSpec{
		{
			Descriptor: CameraStreamDescriptor{
				ID: "camera-rgb", Channel: ChannelColor, Width: 8, Height: 8, FrameCount: 2,
			},
			Calibration: fisheye,
		},
		{
			Descriptor: CameraStreamDescriptor{
				ID: "camera-slam-left", Channel: ChannelMono, Width: 8, Height: 8, FrameCount: 1,
			},
		},
	}
}

func buildRecording(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "capture.rec")
	w, err := Create(path, testCameras())
	if err != nil {
		t.Fatal(err)
	}
	rgb := make([]byte, 8*8*3)
	for i := range rgb {
		rgb[i] = byte(i)
	}
	mono := make([]byte, 8*8)
	for i := range mono {
		mono[i] = byte(255 - i)
	}
	// Interleave records the way a capture device would.
	if err := w.WriteFrame("camera-rgb", 1000, rgb); err != nil {
		t.Fatal(err)
	}
	if err := w.WriteFrame("camera-slam-left", 1500, mono); err != nil {
		t.Fatal(err)
	}
	if err := w.WriteFrame("camera-rgb", 2000, rgb); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestOpenListsCameras(t *testing.T) {
	r, err := Open(buildRecording(t))
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()

	cams := r.Cameras()
	if len(cams) != 2 {
		t.Fatalf("got %d cameras, want 2", len(cams))
	}
	if cams[0].ID != "camera-rgb" || cams[0].Channel != ChannelColor {
		t.Errorf("unexpected first camera: %+v", cams[0])
	}
	if cams[1].Channel != ChannelMono {
		t.Errorf("unexpected second camera: %+v", cams[1])
	}
}

func TestCalibrationLookup(t *testing.T) {
	r, err := Open(buildRecording(t))
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()

	model, ok := r.Calibration("camera-rgb")
	if !ok {
		t.Fatal("calibration for camera-rgb missing")
	}
	if model.Projection != calib.ProjectionFisheye || model.FX != 240 {
		t.Errorf("unexpected model: %+v", model)
	}
	if _, ok := r.Calibration("camera-slam-left"); ok {
		t.Error("camera without embedded model should report absent")
	}
}

func TestNextFrameSkipsOtherCameras(t *testing.T) {
	r, err := Open(buildRecording(t))
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()

	first, err := r.NextFrame("camera-rgb")
	if err != nil {
		t.Fatal(err)
	}
	if first.Index != 0 || first.TimestampNs != 1000 {
		t.Errorf("first frame = index %d ts %d", first.Index, first.TimestampNs)
	}
	if first.Raster.Format != frame.FormatRGB {
		t.Errorf("color frame format = %v", first.Raster.Format)
	}

	second, err := r.NextFrame("camera-rgb")
	if err != nil {
		t.Fatal(err)
	}
	if second.Index != 1 || second.TimestampNs != 2000 {
		t.Errorf("second frame = index %d ts %d", second.Index, second.TimestampNs)
	}

	if _, err := r.NextFrame("camera-rgb"); !errors.Is(err, ErrEndOfStream) {
		t.Fatalf("expected ErrEndOfStream, got %v", err)
	}
}

func TestPerCameraCursorsAreIndependent(t *testing.T) {
	r, err := Open(buildRecording(t))
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()

	// Drain the RGB stream first, then the mono stream must still start at
	// its own first record.
	for {
		if _, err := r.NextFrame("camera-rgb"); errors.Is(err, ErrEndOfStream) {
			break
		} else if err != nil {
			t.Fatal(err)
		}
	}
	mono, err := r.NextFrame("camera-slam-left")
	if err != nil {
		t.Fatal(err)
	}
	if mono.Index != 0 || mono.TimestampNs != 1500 {
		t.Errorf("mono frame = index %d ts %d", mono.Index, mono.TimestampNs)
	}
	if mono.Raster.Pix[0] != 255 {
		t.Errorf("mono payload corrupted: first byte %d", mono.Raster.Pix[0])
	}
}

func TestOpenRejectsWrongMagic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bogus.rec")
	if err := os.WriteFile(path, bytes.Repeat([]byte{0x42}, 64), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Open(path); err == nil {
		t.Fatal("expected rejection of non-recording file")
	}
}

func TestNextFrameUnknownCamera(t *testing.T) {
	r, err := Open(buildRecording(t))
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()
	if _, err := r.NextFrame("camera-ghost"); err == nil {
		t.Fatal("expected unknown camera error")
	}
}

func TestWriterRejectsBadPayload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "capture.rec")
	w, err := Create(path, testCameras())
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()
	if err := w.WriteFrame("camera-rgb", 0, make([]byte, 5)); err == nil {
		t.Fatal("expected payload size rejection")
	}
	if err := w.WriteFrame("camera-ghost", 0, nil); err == nil {
		t.Fatal("expected unknown camera rejection")
	}
}
