// Package logging provides context-aware logging utilities.
package logging

import (
	"context"
	"io"
	"log/slog"
)

// RequestIDKey is the context key for the request ID.
type RequestIDKey struct{}

// GetRequestID returns the request ID from the context, or empty string if not found.
func GetRequestID(ctx context.Context) string {
	if id, ok := ctx.Value(RequestIDKey{}).(string); ok {
		return id
	}
	return ""
}

// Logger returns a logger with the request_id from the context.
func Logger(ctx context.Context) *slog.Logger {
	requestID := GetRequestID(ctx)
	if requestID != "" {
		return slog.Default().With("request_id", requestID)
	}
	return slog.Default()
}

// Setup builds a JSON logger at the named level, sets it as the process
// default, and returns it. Unknown levels fall back to info.
func Setup(w io.Writer, level string) *slog.Logger {
	logLevel := slog.LevelInfo
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	}

	logger := slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)
	return logger
}
