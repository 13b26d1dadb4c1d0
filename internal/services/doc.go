// Package services defines the shared error taxonomy consumed by the
// conversion pipeline stages.
//
// Every failure a stage can hit is tagged with one of the exported sentinel
// errors through Wrap, so callers classify outcomes with errors.Is instead of
// string matching, and the CLI can report which stage and camera failed.
// All pipeline errors are fatal to the current run; retry is an operator
// decision, never an automatic one.
package services
