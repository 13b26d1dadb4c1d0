package sink

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"

	"refract/internal/deps"
	"refract/internal/frame"
	"refract/internal/services"
)

// FFV1Sink streams rawvideo frames into an ffmpeg process producing a
// lossless FFV1 Matroska file.
type FFV1Sink struct {
	opts   Options
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stderr *bytes.Buffer

	closed   bool
	closeErr error
}

// Open launches the encoder process. The returned sink must be closed even
// when no frame is ever written, so the process is reaped and the container
// finalized.
func Open(ctx context.Context, opts Options) (*FFV1Sink, error) {
	args := buildCaptureArgs(opts)
	cmd := exec.CommandContext(ctx, deps.ResolveFFmpeg(opts.FFmpegBinary), args...)

	stderr := &bytes.Buffer{}
	cmd.Stderr = stderr
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, services.Wrap(services.ErrSinkWrite, "sink", "open", "create stdin pipe", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, services.Wrap(services.ErrSinkWrite, "sink", "open",
			"start intermediate encoder", err)
	}
	return &FFV1Sink{opts: opts, cmd: cmd, stdin: stdin, stderr: stderr}, nil
}

func buildCaptureArgs(opts Options) []string {
	pixelFormat := "gray"
	if opts.Format.Channels() == 3 {
		pixelFormat = "rgb24"
	}
	return []string{
		"-hide_banner", "-loglevel", "error",
		"-f", "rawvideo",
		"-pixel_format", pixelFormat,
		"-video_size", fmt.Sprintf("%dx%d", opts.Width, opts.Height),
		"-framerate", strconv.FormatFloat(opts.FPS, 'f', -1, 64),
		"-i", "-",
		"-c:v", "ffv1",
		"-level", "3",
		"-y",
		opts.Path,
	}
}

// WriteFrame appends one frame's pixels to the capture stream.
func (s *FFV1Sink) WriteFrame(f *frame.Frame) error {
	if s.closed {
		return services.Wrap(services.ErrSinkWrite, "sink", "write frame",
			"sink already closed", nil)
	}
	if err := validateFrame(s.opts, f); err != nil {
		return services.Wrap(services.ErrSinkWrite, "sink", "write frame", "", err)
	}
	if _, err := s.stdin.Write(f.Raster.Pix); err != nil {
		return services.Wrap(services.ErrSinkWrite, "sink", "write frame",
			fmt.Sprintf("frame %d", f.Index), err)
	}
	return nil
}

func validateFrame(opts Options, f *frame.Frame) error {
	if f == nil || f.Raster == nil {
		return fmt.Errorf("frame carries no raster")
	}
	if f.Raster.Width != opts.Width || f.Raster.Height != opts.Height {
		return fmt.Errorf("frame %d is %dx%d, sink expects %dx%d",
			f.Index, f.Raster.Width, f.Raster.Height, opts.Width, opts.Height)
	}
	if f.Raster.Format != opts.Format {
		return fmt.Errorf("frame %d has format %s, sink expects %s",
			f.Index, f.Raster.Format, opts.Format)
	}
	return f.Raster.Validate()
}

// Close finishes the capture: the pipe is closed and the encoder runs to
// completion so the container index is written. Safe to call repeatedly.
func (s *FFV1Sink) Close() error {
	if s.closed {
		return s.closeErr
	}
	s.closed = true

	if err := s.stdin.Close(); err != nil {
		s.closeErr = services.Wrap(services.ErrSinkWrite, "sink", "close",
			"close encoder input", err)
		return s.closeErr
	}
	if err := s.cmd.Wait(); err != nil {
		s.closeErr = services.Wrap(services.ErrSinkWrite, "sink", "close",
			stderrTail(s.stderr), err)
		return s.closeErr
	}
	return nil
}

// stderrTail keeps error output short enough to embed in a message.
func stderrTail(buf *bytes.Buffer) string {
	text := strings.TrimSpace(buf.String())
	if len(text) > 512 {
		text = "... " + text[len(text)-512:]
	}
	return text
}
