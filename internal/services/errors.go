package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrCalibrationUnavailable marks a recording that carries no embedded
	// lens model for the requested camera.
	ErrCalibrationUnavailable = errors.New("calibration unavailable")
	// ErrMaskResolutionMismatch marks a devignetting mask whose size does not
	// match the camera's native resolution.
	ErrMaskResolutionMismatch = errors.New("mask resolution mismatch")
	// ErrSinkWrite marks an intermediate sink I/O failure.
	ErrSinkWrite = errors.New("sink write error")
	// ErrEncodeProcessFailed marks a non-zero exit from the external encoder.
	ErrEncodeProcessFailed = errors.New("encode process failed")
	// ErrStreamRead marks a failure propagated from the recording reader.
	ErrStreamRead = errors.New("stream read error")

	ErrValidation    = errors.New("validation error")
	ErrConfiguration = errors.New("configuration error")
)

// Wrap builds an error message that includes stage context while tagging it
// with the provided marker for later classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrValidation
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
