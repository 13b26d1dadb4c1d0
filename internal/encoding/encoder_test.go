package encoding

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestBuildEncodeArgs(t *testing.T) {
	args := buildEncodeArgs(Params{
		Input:  "/work/run.mkv",
		Output: "/out/final.mp4",
		CRF:    23,
		Preset: "slow",
	})

	joined := strings.Join(args, " ")
	for _, want := range []string{
		"-i /work/run.mkv",
		"-c:v libx264",
		"-crf 23",
		"-preset slow",
		"-pix_fmt yuv420p",
	} {
		if !strings.Contains(joined, want) {
			t.Errorf("args %q missing %q", joined, want)
		}
	}
	if args[len(args)-1] != "/out/final.mp4" {
		t.Errorf("output path should be the final argument, got %q", args[len(args)-1])
	}
}

func TestBuildEncodeArgsDefaultsPreset(t *testing.T) {
	args := buildEncodeArgs(Params{Input: "a", Output: "b", CRF: 18})
	if !strings.Contains(strings.Join(args, " "), "-preset medium") {
		t.Error("empty preset should fall back to medium")
	}
}

func TestVerifyOutput(t *testing.T) {
	dir := t.TempDir()

	if err := verifyOutput(filepath.Join(dir, "missing.mp4")); err == nil {
		t.Error("missing file should fail verification")
	}

	empty := filepath.Join(dir, "empty.mp4")
	if err := os.WriteFile(empty, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	if err := verifyOutput(empty); err == nil {
		t.Error("empty file should fail verification")
	}

	ok := filepath.Join(dir, "ok.mp4")
	if err := os.WriteFile(ok, []byte("data"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := verifyOutput(ok); err != nil {
		t.Errorf("non-empty file should pass: %v", err)
	}
}

func TestSummary(t *testing.T) {
	dir := t.TempDir()
	intermediate := filepath.Join(dir, "run.mkv")
	output := filepath.Join(dir, "final.mp4")
	if err := os.WriteFile(intermediate, make([]byte, 4000), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(output, make([]byte, 1000), 0o644); err != nil {
		t.Fatal(err)
	}

	s := Summarize(intermediate, output)
	if got := s.Ratio(); got != 4.0 {
		t.Errorf("Ratio() = %v, want 4.0", got)
	}
	if !strings.Contains(s.String(), "4.0x smaller") {
		t.Errorf("String() = %q, want compression factor", s.String())
	}

	gone := Summarize(filepath.Join(dir, "gone"), output)
	if gone.Ratio() != 0 {
		t.Error("missing intermediate should yield zero ratio")
	}
	if strings.Contains(gone.String(), "smaller") {
		t.Errorf("String() = %q should omit the factor without both sizes", gone.String())
	}
}
