// Package testsupport provides shared fixtures for package tests: temp-dir
// configs and synthetic recording files.
package testsupport

import (
	"path/filepath"
	"testing"

	"refract/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.WorkDir = filepath.Join(base, "work")
	cfg.Paths.OutputDir = filepath.Join(base, "out")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Paths.MaskDir = filepath.Join(base, "masks")

	for _, opt := range opts {
		opt(&cfg)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	return &cfg
}

// WithFFmpegBinary overrides the encoder binary on the test config.
func WithFFmpegBinary(path string) ConfigOption {
	return func(cfg *config.Config) {
		cfg.FFmpeg.Binary = path
	}
}
