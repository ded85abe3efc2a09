// Package logging assembles the structured slog loggers used across capstan.
//
// It owns the console/JSON handler selection, centralizes level and output
// plumbing, and exposes context-aware helpers so pipeline code can
// automatically tag log lines with the subject, performance, and stage it is
// working on. The package also provides a no-op logger for tests and wiring
// code that cannot fail.
//
// Prefer these constructors over hand-rolled slog setup so every component
// emits data with the same shape.
package logging
