package app

import (
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"

	"github.com/agentstation/assetsync/internal/config"
	"github.com/agentstation/assetsync/pkg/logging"
)

// NewLogger creates the run logger. Log level precedence (highest to lowest):
//  1. --log-level flag
//  2. -v/--verbose (debug) or -q/--quiet (warn)
//  3. LOG_LEVEL or DEBUG from the environment or config file
//  4. info
//
// w replaces the configured log output when it is not os.Stderr.
func NewLogger(flags Flags, cfg *config.Config, w io.Writer) zerolog.Logger {
	return logging.New(loggerConfig(flags, cfg, w))
}

func loggerConfig(flags Flags, cfg *config.Config, w io.Writer) *logging.Config {
	level := determineLogLevel(flags, cfg)

	logConfig := &logging.Config{
		Level:   level,
		Format:  "auto",
		Output:  "stderr",
		NoColor: flags.NoColor || os.Getenv("NO_COLOR") != "",
	}
	if cfg != nil {
		logConfig.Format = cfg.LogFormat
		logConfig.Output = cfg.LogOutput
	}
	if w != nil && w != os.Stderr {
		logConfig.Writer = w
	}
	return logConfig
}

func determineLogLevel(flags Flags, cfg *config.Config) string {
	if flags.LogLevel != "" {
		return flags.LogLevel
	}
	if flags.Verbose && flags.Quiet {
		fmt.Fprintf(os.Stderr, "Warning: both --verbose and --quiet specified, using --quiet\n")
		return "warn"
	}
	if flags.Verbose {
		return "debug"
	}
	if flags.Quiet {
		return "warn"
	}
	if cfg != nil && cfg.LogLevel != "" {
		return cfg.LogLevel
	}
	return "info"
}
