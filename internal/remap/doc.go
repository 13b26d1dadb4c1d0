// Package remap precomputes and applies the per-pixel lookup tables that
// turn fisheye captures into pinhole images.
//
// Building a table walks every target pixel once: back-project through the
// pinhole target model, push the ray through the source model's forward
// distortion, and record the source coordinate with bilinear weights. The
// table is immutable afterwards and reused for every frame of the camera,
// which amortizes the trigonometry that dominates per-pixel cost.
//
// Applying a table is a pure gather with no shared mutable state, so Apply
// splits the target rows across workers.
package remap
