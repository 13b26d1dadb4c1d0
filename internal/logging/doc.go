// Package logging assembles the structured slog loggers used across refract.
//
// It owns the console and JSON handlers, centralizes level and output
// plumbing, and exposes attribute helpers so pipeline code can tag log lines
// with run IDs, cameras, and stages consistently. A no-op logger is provided
// for tests and wiring code that cannot fail.
//
// Prefer these constructors over hand-rolled slog setup so every component
// emits data with the same shape.
package logging
