// Package logging assembles structured slog loggers and formatting helpers used
// across faultsense components.
//
// It owns the configurable console/JSON handlers, centralizes level and output
// plumbing, and defines the standard field keys (component, event_type,
// error_hint, impact) so skipped samples, resume decisions, and checkpoint
// writes all log with the same shape. The package also provides a no-op
// logger for tests and wiring code that cannot fail.
package logging
