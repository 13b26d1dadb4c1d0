// Package encoding turns the lossless intermediate capture into the final
// distributable H.264 video by shelling out to ffmpeg.
package encoding
