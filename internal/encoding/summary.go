package encoding

import (
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
)

// Summary reports how much the final encode shrank the intermediate capture.
type Summary struct {
	IntermediateBytes int64
	OutputBytes       int64
}

// Summarize stats both files. Either size is zero when the file is gone,
// which happens once the intermediate has been cleaned up.
func Summarize(intermediatePath, outputPath string) Summary {
	return Summary{
		IntermediateBytes: fileSize(intermediatePath),
		OutputBytes:       fileSize(outputPath),
	}
}

// Ratio is intermediate/output, or zero when either side is unknown.
func (s Summary) Ratio() float64 {
	if s.IntermediateBytes <= 0 || s.OutputBytes <= 0 {
		return 0
	}
	return float64(s.IntermediateBytes) / float64(s.OutputBytes)
}

// String renders a human-readable one-liner for logs and the CLI.
func (s Summary) String() string {
	if s.OutputBytes <= 0 {
		return "output size unknown"
	}
	out := humanize.Bytes(uint64(s.OutputBytes))
	if s.IntermediateBytes <= 0 {
		return out
	}
	return fmt.Sprintf("%s -> %s (%.1fx smaller)",
		humanize.Bytes(uint64(s.IntermediateBytes)), out, s.Ratio())
}

func fileSize(path string) int64 {
	if path == "" {
		return 0
	}
	info, err := os.Stat(path)
	if err != nil {
		return 0
	}
	return info.Size()
}
