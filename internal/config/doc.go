// Package config loads, normalizes, and validates refract's TOML
// configuration.
//
// Configuration sections by subsystem:
//   - Paths: work/output/log directories and the devignetting mask folder
//   - Video: output FPS, frame cap, and final-encode quality settings
//   - Undistort: target pinhole resolution and field of view
//   - FFmpeg: external encoder binary override
//   - Fetch: bulk recording download settings
//   - Logging: log format and level
//
// Load applies defaults, expands ~ in paths, and rejects out-of-range values
// before any pipeline code runs, so stages can trust the config they receive.
package config
