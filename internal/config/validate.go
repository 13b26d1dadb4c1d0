package config

import (
	"errors"
	"fmt"
)

// EncoderPresets lists the speed presets the external encoder accepts, in
// fastest-to-slowest order.
var EncoderPresets = []string{
	"ultrafast", "superfast", "veryfast", "faster", "fast",
	"medium", "slow", "slower", "veryslow",
}

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateVideo(); err != nil {
		return err
	}
	if err := c.validateUndistort(); err != nil {
		return err
	}
	if err := c.validateFetch(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateVideo() error {
	if c.Video.FPS <= 0 {
		return errors.New("video.fps must be greater than zero")
	}
	if c.Video.MaxFrames < 0 {
		return errors.New("video.max_frames must be zero (unbounded) or positive")
	}
	if c.Video.CRF < 0 || c.Video.CRF > 51 {
		return fmt.Errorf("video.crf must be between 0 and 51, got %d", c.Video.CRF)
	}
	if !ValidPreset(c.Video.Preset) {
		return fmt.Errorf("video.preset %q is not a recognized encoder preset", c.Video.Preset)
	}
	return nil
}

func (c *Config) validateUndistort() error {
	if c.Undistort.Width <= 0 || c.Undistort.Height <= 0 {
		return errors.New("undistort.width and undistort.height must be positive")
	}
	if c.Undistort.FOVDegrees <= 0 || c.Undistort.FOVDegrees >= 180 {
		return fmt.Errorf("undistort.fov_degrees must be in (0, 180), got %g", c.Undistort.FOVDegrees)
	}
	return nil
}

func (c *Config) validateFetch() error {
	if c.Fetch.MaxFiles < 0 {
		return errors.New("fetch.max_files must be zero (all) or positive")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn, or error, got %q", c.Logging.Level)
	}
	return nil
}

// ValidPreset reports whether name is one of the supported encoder presets.
func ValidPreset(name string) bool {
	for _, preset := range EncoderPresets {
		if name == preset {
			return true
		}
	}
	return false
}
