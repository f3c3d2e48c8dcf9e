// Package logging configures the process-wide slog handlers and the
// standardized attribute vocabulary used across the batch pipeline.
package logging
