package deps

import (
	"os/exec"
	"strings"
)

// ResolveFFmpeg returns the ffmpeg command to execute, honoring a config
// override before falling back to PATH resolution.
func ResolveFFmpeg(override string) string {
	if trimmed := strings.TrimSpace(override); trimmed != "" {
		return trimmed
	}
	return "ffmpeg"
}

// FFmpegAvailable reports whether the resolved ffmpeg binary can be found.
// The conversion pipeline uses this to fall back to keeping the lossless
// intermediate when no encoder is installed.
func FFmpegAvailable(override string) bool {
	_, err := exec.LookPath(ResolveFFmpeg(override))
	return err == nil
}

// CheckFFmpeg builds the ffmpeg status entry for preflight output.
func CheckFFmpeg(override string) Status {
	statuses := CheckBinaries([]Requirement{{
		Name:        "FFmpeg",
		Command:     ResolveFFmpeg(override),
		Description: "Required for the intermediate capture and final encode",
	}})
	return statuses[0]
}
