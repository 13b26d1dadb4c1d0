// Package sink writes processed frames into the lossless intermediate
// container.
//
// The implementation pipes raw pixel data into an ffmpeg subprocess encoding
// FFV1 into Matroska, mirroring the external-encoder boundary of the final
// compression stage: frames go in strictly in the order received, and Close
// must leave a playable file behind on both normal completion and an early
// max-frame stop.
package sink

import (
	"refract/internal/frame"
)

// Sink accepts processed frames in order and persists them.
type Sink interface {
	// WriteFrame appends one frame. The sink does not retain the buffer.
	WriteFrame(f *frame.Frame) error
	// Close flushes and finalizes the container. It is idempotent; every
	// return path of a run must call it before the file is consumed.
	Close() error
}

// Options fixes the geometry and pacing of an intermediate capture. All
// frames written to the sink must match.
type Options struct {
	FFmpegBinary string
	Path         string
	Width        int
	Height       int
	Format       frame.Format
	FPS          float64
}
