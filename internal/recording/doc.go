// Package recording reads and writes refract's raw capture container.
//
// A recording starts with a JSON header describing every camera stream
// (identifier, channel kind, native resolution, embedded lens calibration)
// followed by length-prefixed frame records in capture order. Color frames
// are stored demosaiced as interleaved RGB; monochrome frames as 8-bit
// luminance. Debayering therefore never reaches the conversion pipeline.
//
// Readers keep an independent cursor per camera, so pulling one camera's
// stream skips records that belong to others without disturbing them.
package recording
