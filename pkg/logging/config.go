package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/agentstation/assetsync/pkg/constants"
)

// Config describes where and how a logger writes.
type Config struct {
	// Level is a zerolog level name. "warning" and "off" are accepted too.
	Level string

	// Format is auto, json or console. Auto picks console on a terminal.
	Format string

	// Output is stderr, stdout, discard or a file path opened for append.
	Output string

	// Writer, when set, replaces Output.
	Writer io.Writer

	NoColor bool

	// Caller adds file:line to every event.
	Caller bool
}

// DefaultConfig reads LOG_LEVEL, LOG_FORMAT and NO_COLOR from the
// environment so logging works before configuration is loaded.
func DefaultConfig() *Config {
	return &Config{
		Level:   os.Getenv("LOG_LEVEL"),
		Format:  os.Getenv("LOG_FORMAT"),
		Output:  "stderr",
		NoColor: os.Getenv("NO_COLOR") != "",
	}
}

// New builds a logger from cfg. A nil cfg means DefaultConfig.
func New(cfg *Config) zerolog.Logger {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	level := ParseLevel(cfg.Level)
	zerolog.SetGlobalLevel(level)

	ctx := zerolog.New(writerFor(cfg)).Level(level).With().Timestamp()
	if cfg.Caller || level <= zerolog.DebugLevel {
		ctx = ctx.Caller()
	}
	return ctx.Logger()
}

// Configure replaces the default logger with one built from cfg.
func Configure(cfg *Config) {
	SetDefault(New(cfg))
}

func writerFor(cfg *Config) io.Writer {
	var (
		out  io.Writer
		file *os.File
	)
	switch dest := strings.ToLower(cfg.Output); {
	case cfg.Writer != nil:
		out = cfg.Writer
		file, _ = cfg.Writer.(*os.File)
	case dest == "" || dest == "stderr":
		file, out = os.Stderr, os.Stderr
	case dest == "stdout":
		file, out = os.Stdout, os.Stdout
	case dest == "discard" || dest == "none":
		out = io.Discard
	default:
		f, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_APPEND|os.O_WRONLY, constants.FilePermissions)
		if err != nil {
			file, out = os.Stderr, os.Stderr
		} else {
			out = f
		}
	}

	format := strings.ToLower(cfg.Format)
	if format == "" || format == "auto" {
		format = "json"
		if isTerminal(file) {
			format = "console"
		}
	}
	if format != "console" && format != "pretty" {
		return out
	}
	return zerolog.ConsoleWriter{Out: out, TimeFormat: time.Kitchen, NoColor: cfg.NoColor}
}

// ParseLevel maps a level name to zerolog, falling back to info.
func ParseLevel(level string) zerolog.Level {
	switch level = strings.ToLower(strings.TrimSpace(level)); level {
	case "":
		return zerolog.InfoLevel
	case "warning":
		return zerolog.WarnLevel
	case "none", "off":
		return zerolog.Disabled
	}
	if l, err := zerolog.ParseLevel(level); err == nil {
		return l
	}
	return zerolog.InfoLevel
}
