// Package logging defines the structured-logging interface used across the
// service, with slog and zerolog implementations.
package logging

import "context"

// Logger is a context-aware, structured logger.
//
// The variadic args are interpreted as key-value pairs, e.g.:
//
//	log.Info(ctx, "registration accepted", "ip", ip, "account_id", id)
type Logger interface {
	Debug(ctx context.Context, msg string, args ...any)

	// Info logs an informational message.
	Info(ctx context.Context, msg string, args ...any)

	// Warn logs a warning message for unusual but non-fatal conditions.
	Warn(ctx context.Context, msg string, args ...any)

	// Error logs an error message for failures.
	Error(ctx context.Context, msg string, args ...any)

	// With returns a child logger that always includes the given key-value pairs.
	With(args ...any) Logger
}

// New returns the logger selected by format: "pretty" gives a zerolog
// console logger, anything else a JSON slog logger.
func New(format string) Logger {
	if format == "pretty" {
		return NewConsoleZerologLogger()
	}
	return NewJSONSlogLogger()
}
