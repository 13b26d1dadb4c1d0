package recording

import (
	"errors"

	"refract/internal/calib"
	"refract/internal/frame"
)

// ChannelKind distinguishes color from monochrome camera streams.
type ChannelKind string

const (
	ChannelColor ChannelKind = "color"
	ChannelMono  ChannelKind = "mono"
)

// Format returns the raster pixel layout frames of this channel use.
func (k ChannelKind) Format() frame.Format {
	if k == ChannelColor {
		return frame.FormatRGB
	}
	return frame.FormatGray
}

// CameraStreamDescriptor identifies one logical camera within a recording.
// Descriptors are resolved once when the recording is opened and are
// immutable for the lifetime of a conversion run.
type CameraStreamDescriptor struct {
	ID         string      `json:"id"`
	Channel    ChannelKind `json:"channel"`
	Width      int         `json:"width"`
	Height     int         `json:"height"`
	FrameCount int         `json:"frames"`
}

// ErrEndOfStream reports normal stream exhaustion. It is not a failure.
var ErrEndOfStream = errors.New("end of stream")

// Reader is the stream-reader collaborator boundary the pipeline depends
// on. The file-backed implementation in this package satisfies it; tests
// substitute synthetic readers.
type Reader interface {
	Cameras() []CameraStreamDescriptor
	Calibration(cameraID string) (calib.LensModel, bool)
	NextFrame(cameraID string) (*frame.Frame, error)
	Close() error
}
