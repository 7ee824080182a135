// Package app wires configuration, logging and the sync components into the
// assetsync CLI.
package app

import (
	"context"
	"io"
	"net/http"
	"os"

	"github.com/rs/zerolog"

	"github.com/agentstation/assetsync/internal/config"
	"github.com/agentstation/assetsync/pkg/categorizer"
	"github.com/agentstation/assetsync/pkg/logging"
)

// App holds build information, global flags and the collaborators a
// command needs. Collaborators left nil are built from configuration.
type App struct {
	// Version information
	version string
	commit  string
	date    string
	builtBy string

	flags  Flags
	out    io.Writer
	errOut io.Writer

	config *config.Config
	logger *zerolog.Logger

	envFiles       []string
	skipFileChecks bool

	directoryClient  *http.Client
	directoryBaseURL string
	generator        categorizer.Generator
	cleanup          []func()
}

// Flags are the persistent command-line flags.
type Flags struct {
	ConfigFile string
	Verbose    bool
	Quiet      bool
	NoColor    bool
	Format     string
	LogLevel   string
}

// Option configures an App.
type Option func(*App)

// WithOutput redirects command output and logs.
func WithOutput(out, errOut io.Writer) Option {
	return func(a *App) {
		a.out = out
		a.errOut = errOut
	}
}

// WithEnvFiles replaces the .env files loaded before the environment.
func WithEnvFiles(files ...string) Option {
	return func(a *App) {
		a.envFiles = files
	}
}

// WithoutEnvFiles skips .env loading.
func WithoutEnvFiles() Option {
	return func(a *App) {
		a.envFiles = []string{}
	}
}

// WithDirectoryClient skips credential loading and uses hc against baseURL.
func WithDirectoryClient(hc *http.Client, baseURL string) Option {
	return func(a *App) {
		a.directoryClient = hc
		a.directoryBaseURL = baseURL
		a.skipFileChecks = true
	}
}

// WithGenerator replaces the Gemini generator.
func WithGenerator(g categorizer.Generator) Option {
	return func(a *App) {
		a.generator = g
	}
}

// New creates an App. Configuration is loaded when a command needs it so
// that --config is honored.
func New(version, commit, date, builtBy string, opts ...Option) *App {
	a := &App{
		version: version,
		commit:  commit,
		date:    date,
		builtBy: builtBy,
		out:     os.Stdout,
		errOut:  os.Stderr,
	}
	for _, opt := range opts {
		opt(a)
	}
	a.logger = logging.Default()
	return a
}

// Version returns the version information.
func (a *App) Version() string {
	return a.version
}

// Logger returns the application logger.
func (a *App) Logger() *zerolog.Logger {
	return a.logger
}

// Config returns the loaded configuration, nil before a command loaded it.
func (a *App) Config() *config.Config {
	return a.config
}

// loadConfig reads and validates configuration once.
func (a *App) loadConfig() (*config.Config, error) {
	if a.config != nil {
		return a.config, nil
	}
	cfg, err := config.Load(config.LoadOptions{
		ConfigFile:     a.flags.ConfigFile,
		EnvFiles:       a.envFiles,
		SkipFileChecks: a.skipFileChecks,
	})
	if cfg != nil {
		a.config = cfg
		a.applyLogger()
	}
	return cfg, err
}

func (a *App) applyLogger() {
	logging.Configure(loggerConfig(a.flags, a.config, a.errOut))
	a.logger = logging.Default()
}

// Shutdown releases resources opened by commands, such as idle API
// connections. It stops early when ctx expires.
func (a *App) Shutdown(ctx context.Context) error {
	for _, fn := range a.cleanup {
		if err := ctx.Err(); err != nil {
			return err
		}
		fn()
	}
	a.cleanup = nil
	return nil
}
