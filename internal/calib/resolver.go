package calib

import (
	"refract/internal/services"
)

// Source yields the lens model a recording embeds for a camera. The
// recording reader implements this.
type Source interface {
	Calibration(cameraID string) (LensModel, bool)
}

// Resolve produces the (source, target) model pair for one conversion run.
// It fails with services.ErrCalibrationUnavailable when the recording has no
// embedded model for the camera.
func Resolve(src Source, cameraID string, target PinholeSpec) (LensModel, LensModel, error) {
	model, ok := src.Calibration(cameraID)
	if !ok {
		return LensModel{}, LensModel{}, services.Wrap(
			services.ErrCalibrationUnavailable, "calibration", "resolve",
			"recording has no embedded lens model for "+cameraID, nil)
	}
	if err := model.Validate(); err != nil {
		return LensModel{}, LensModel{}, services.Wrap(
			services.ErrCalibrationUnavailable, "calibration", "validate",
			"embedded lens model for "+cameraID+" is unusable", err)
	}
	return model, NewPinhole(target), nil
}
