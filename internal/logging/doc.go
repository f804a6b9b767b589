// Package logging assembles the structured slog loggers used across the
// tool. It owns the console and JSON handlers and centralizes level and
// output plumbing so every component logs with the same shape.
package logging
