package logging

import (
	"context"

	"github.com/rs/zerolog"
)

type contextKey int

const (
	loggerKey contextKey = iota
	runIDKey
)

// WithLogger stores logger in ctx. A nil logger stores the default.
func WithLogger(ctx context.Context, logger *zerolog.Logger) context.Context {
	if logger == nil {
		logger = Default()
	}
	return context.WithValue(ctx, loggerKey, logger)
}

// FromContext returns the logger stored in ctx, or the default logger.
func FromContext(ctx context.Context) *zerolog.Logger {
	if ctx == nil {
		return Default()
	}
	if logger, ok := ctx.Value(loggerKey).(*zerolog.Logger); ok && logger != nil {
		return logger
	}
	return Default()
}

// WithRun tags the context logger with a sync run ID.
func WithRun(ctx context.Context, runID string) context.Context {
	ctx = context.WithValue(ctx, runIDKey, runID)
	return with(ctx, func(c zerolog.Context) zerolog.Context { return c.Str("run_id", runID) })
}

// RunID returns the run ID set by WithRun.
func RunID(ctx context.Context) string {
	id, _ := ctx.Value(runIDKey).(string)
	return id
}

// WithDevice tags the context logger with a device serial number.
func WithDevice(ctx context.Context, serial string) context.Context {
	return with(ctx, func(c zerolog.Context) zerolog.Context { return c.Str("serial", serial) })
}

func with(ctx context.Context, add func(zerolog.Context) zerolog.Context) context.Context {
	logger := add(FromContext(ctx).With()).Logger()
	return WithLogger(ctx, &logger)
}
