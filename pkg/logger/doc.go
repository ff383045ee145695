// Package logger builds the service's slog.Logger: JSON output in prod, text
// output elsewhere, always tagged with the environment.
package logger
