// Package pipeline orchestrates one conversion run: frames are read from a
// recording, devignetted, undistorted through a cached remap table, rotated
// when the camera mounts sideways, captured losslessly, and finally
// re-encoded to H.264.
package pipeline
