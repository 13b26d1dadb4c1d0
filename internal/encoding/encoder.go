package encoding

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"refract/internal/deps"
	"refract/internal/logging"
	"refract/internal/services"
)

// Params describes one final-encode invocation.
type Params struct {
	Input  string
	Output string
	CRF    int
	Preset string
}

// Client abstracts the external encoder so the pipeline can run without
// ffmpeg installed during tests.
type Client interface {
	Encode(ctx context.Context, params Params) error
}

// FFmpegClient drives a real ffmpeg process producing H.264 in an MP4
// container.
type FFmpegClient struct {
	binary string
	logger *slog.Logger
}

// NewFFmpegClient builds a client around the given binary. An empty binary
// falls back to whatever ffmpeg the PATH resolves.
func NewFFmpegClient(binary string, logger *slog.Logger) *FFmpegClient {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &FFmpegClient{binary: binary, logger: logger}
}

// Encode transcodes params.Input to params.Output and verifies the result is
// a non-empty file. The input is left untouched; callers decide its fate.
func (c *FFmpegClient) Encode(ctx context.Context, params Params) error {
	args := buildEncodeArgs(params)
	cmd := exec.CommandContext(ctx, deps.ResolveFFmpeg(c.binary), args...)
	stderr := &bytes.Buffer{}
	cmd.Stderr = stderr

	start := time.Now()
	c.logger.Info("starting final encode",
		logging.String(logging.FieldInput, params.Input),
		logging.String(logging.FieldOutput, params.Output),
		logging.Int("crf", params.CRF),
		logging.String("preset", params.Preset),
	)
	if err := cmd.Run(); err != nil {
		detail := describeExit(err)
		if tail := stderrTail(stderr); tail != "" {
			detail = detail + ": " + tail
		}
		return services.Wrap(services.ErrEncodeProcessFailed, "encode", "run ffmpeg", detail, err)
	}
	if err := verifyOutput(params.Output); err != nil {
		return services.Wrap(services.ErrEncodeProcessFailed, "encode", "verify output", "", err)
	}
	c.logger.Info("final encode complete",
		logging.String(logging.FieldOutput, params.Output),
		logging.Duration(logging.FieldDuration, time.Since(start)),
	)
	return nil
}

func buildEncodeArgs(params Params) []string {
	preset := strings.TrimSpace(params.Preset)
	if preset == "" {
		preset = "medium"
	}
	return []string{
		"-hide_banner", "-loglevel", "error",
		"-i", params.Input,
		"-c:v", "libx264",
		"-crf", strconv.Itoa(params.CRF),
		"-preset", preset,
		"-pix_fmt", "yuv420p",
		"-y",
		params.Output,
	}
}

func describeExit(err error) string {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return fmt.Sprintf("exit status %d", exitErr.ExitCode())
	}
	return "process failed"
}

func verifyOutput(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("encoded file missing: %w", err)
	}
	if info.Size() == 0 {
		return fmt.Errorf("encoded file %s is empty", path)
	}
	return nil
}

func stderrTail(buf *bytes.Buffer) string {
	text := strings.TrimSpace(buf.String())
	if len(text) > 512 {
		text = "... " + text[len(text)-512:]
	}
	return text
}
