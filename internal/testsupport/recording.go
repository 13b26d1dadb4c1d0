package testsupport

import (
	"path/filepath"
	"testing"

	"refract/internal/calib"
	"refract/internal/recording"
)

// RecordingCamera declares one synthetic camera stream. FillValue seeds
// every pixel of every frame so tests can assert on content.
type RecordingCamera struct {
	ID          string
	Channel     recording.ChannelKind
	Width       int
	Height      int
	Frames      int
	FillValue   byte
	Calibration *calib.LensModel
}

// IdentityCalibration builds a centered pinhole model matching the camera's
// own geometry, so undistorting with the same target is a no-op.
func IdentityCalibration(width, height int, fovDegrees float64) *calib.LensModel {
	model := calib.NewPinhole(calib.PinholeSpec{Width: width, Height: height, FOVDegrees: fovDegrees})
	return &model
}

// WriteRecording creates a recording file under dir and returns its path.
// Frames for each camera carry timestamps 50ms apart.
func WriteRecording(t testing.TB, dir string, cameras ...RecordingCamera) string {
	t.Helper()

	specs := make([]recording.CameraSpec, 0, len(cameras))
	for _, cam := range cameras {
		specs = append(specs, recording.CameraSpec{
			Descriptor: recording.CameraStreamDescriptor{
				ID:         cam.ID,
				Channel:    cam.Channel,
				Width:      cam.Width,
				Height:     cam.Height,
				FrameCount: cam.Frames,
			},
			Calibration: cam.Calibration,
		})
	}

	path := filepath.Join(dir, "session.rec")
	writer, err := recording.Create(path, specs)
	if err != nil {
		t.Fatalf("create recording: %v", err)
	}
	for _, cam := range cameras {
		size := cam.Width * cam.Height * cam.Channel.Format().Channels()
		pix := make([]byte, size)
		for i := range pix {
			pix[i] = cam.FillValue
		}
		for f := 0; f < cam.Frames; f++ {
			if err := writer.WriteFrame(cam.ID, int64(f)*50_000_000, pix); err != nil {
				t.Fatalf("write frame: %v", err)
			}
		}
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close recording: %v", err)
	}
	return path
}
