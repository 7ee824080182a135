package app

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/agentstation/assetsync/internal/report"
	"github.com/agentstation/assetsync/pkg/errors"
)

// Exit codes.
const (
	ExitOK       = 0
	ExitError    = 1
	ExitPartial  = 2 // the run finished with failed devices
	ExitAborted  = 3 // the run stopped early
	ExitBadInput = 4 // configuration or flags are invalid
)

// ErrDevicesFailed is returned by sync when at least one device failed.
var ErrDevicesFailed = errors.New("one or more devices failed to sync")

// Execute runs the CLI with the given arguments.
func (a *App) Execute(ctx context.Context, args []string) error {
	rootCmd := a.createRootCommand()
	rootCmd.SetArgs(args)
	rootCmd.SetOut(a.out)
	rootCmd.SetErr(a.errOut)
	return rootCmd.ExecuteContext(ctx)
}

func (a *App) createRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:     "assetsync",
		Short:   "Sync Google Directory ChromeOS devices into Snipe-IT",
		Version: a.version,
		Long: `assetsync reads every ChromeOS device from the Google Admin Directory
and creates or updates the matching Snipe-IT hardware asset.

Unknown hardware models are created on the fly with a category suggested by
Gemini. Settings come from the environment, .env files and an optional
.assetsync.yaml file.`,
		PersistentPreRunE: a.setupCommand,
		SilenceUsage:      true,
		SilenceErrors:     true,
	}

	rootCmd.PersistentFlags().StringVar(&a.flags.ConfigFile, "config", "", "config file (default is ./.assetsync.yaml or $HOME/.assetsync.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&a.flags.Verbose, "verbose", "v", false, "verbose output (shortcut for --log-level=debug)")
	rootCmd.PersistentFlags().BoolVarP(&a.flags.Quiet, "quiet", "q", false, "minimal output (shortcut for --log-level=warn)")
	rootCmd.PersistentFlags().BoolVar(&a.flags.NoColor, "no-color", false, "disable colored output")
	rootCmd.PersistentFlags().StringVarP(&a.flags.Format, "format", "o", "", "output format: table, json, yaml")
	rootCmd.PersistentFlags().StringVar(&a.flags.LogLevel, "log-level", "", "log level: trace, debug, info, warn, error (overrides -v/-q)")

	rootCmd.SetVersionTemplate("assetsync {{.Version}}\n")

	rootCmd.AddCommand(a.NewSyncCommand())
	rootCmd.AddCommand(a.NewConfigCommand())
	rootCmd.AddCommand(a.NewVersionCommand())
	return rootCmd
}

// setupCommand validates global flags and rebuilds the logger.
func (a *App) setupCommand(_ *cobra.Command, _ []string) error {
	if _, err := report.ParseFormat(a.flags.Format); err != nil {
		return err
	}
	a.applyLogger()
	return nil
}

func (a *App) format() report.Format {
	f, _ := report.ParseFormat(a.flags.Format)
	return report.DetectFormat(f, a.out)
}

// ExitCode maps an Execute error to a process exit status.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, ErrDevicesFailed):
		return ExitPartial
	case errors.IsFatal(err):
		return ExitAborted
	case errors.Is(err, errors.ErrInvalidConfig), errors.IsValidationError(err):
		return ExitBadInput
	default:
		return ExitError
	}
}

// ExitOnError prints err and exits with its ExitCode.
func ExitOnError(err error) {
	if err == nil {
		return
	}
	fmt.Fprintln(os.Stderr, "Error: "+err.Error())
	os.Exit(ExitCode(err))
}
