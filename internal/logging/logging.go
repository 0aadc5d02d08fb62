package logging

import (
	"context"
	"io"
	"log/slog"
)

// Recommended by linter check SA1029
type loggerKeyType string

const loggerKey loggerKeyType = "logger"

// DiscardLogger is a logger that discards all log data.
var DiscardLogger = slog.New(slog.DiscardHandler)

// New creates a text logger writing to w. Debug enables debug level output.
func New(w io.Writer, debug bool) *slog.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// ToCtx creates a new context with the logger.
func ToCtx(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, logger)
}

// FromCtx retrieves the logger from the context. If nil, a no-op logger will be returned.
func FromCtx(ctx context.Context) *slog.Logger {
	logger := ctx.Value(loggerKey)

	if slogger, ok := logger.(*slog.Logger); ok && slogger != nil {
		return slogger
	}

	return DiscardLogger
}
