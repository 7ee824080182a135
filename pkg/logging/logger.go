// Package logging carries the zerolog logger for assetsync.
//
// A sync run attaches its run ID and each device's serial to the logger in
// the context, so every line below the engine is traceable to one device:
//
//	ctx = logging.WithRun(ctx, runID)
//	ctx = logging.WithDevice(ctx, rec.SerialNumber)
//	logging.FromContext(ctx).Info().Int("asset_id", id).Msg("Asset updated")
package logging

import (
	"os"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var defaultLogger = New(DefaultConfig())

// Default returns the process-wide logger.
func Default() *zerolog.Logger {
	return &defaultLogger
}

// SetDefault replaces the process-wide logger and zerolog's global one.
func SetDefault(logger zerolog.Logger) {
	defaultLogger = logger
	log.Logger = logger
}

// Info starts an info event on the default logger.
func Info() *zerolog.Event {
	return defaultLogger.Info()
}

// Warn starts a warning event on the default logger.
func Warn() *zerolog.Event {
	return defaultLogger.Warn()
}

func isTerminal(f *os.File) bool {
	if f == nil {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
