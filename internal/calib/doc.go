// Package calib models camera lens geometry for the conversion pipeline.
//
// A LensModel describes either a fisheye (equidistant projection with a
// polynomial theta distortion) or a pinhole (rectilinear, optional radial
// distortion) camera. The resolver extracts the source model embedded in a
// recording and synthesizes the target pinhole model from the requested
// output width, height, and field of view.
//
// Distortion-model fitting is out of scope: models are applied here, never
// estimated.
package calib
