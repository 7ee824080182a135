// Package main provides the entry point for the assetsync CLI tool.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/agentstation/assetsync/cmd/assetsync/app"
	"github.com/agentstation/assetsync/pkg/constants"
)

// Version information populated by goreleaser.
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
	builtBy = "unknown"
)

func main() {
	application := app.New(version, commit, date, builtBy)

	// A signal stops a running sync between devices or during a retry wait.
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := application.Execute(ctx, os.Args[1:])
	cancel()

	// The signal context may already be cancelled; cleanup gets a fresh one.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), constants.ShutdownTimeout)
	if shutdownErr := application.Shutdown(shutdownCtx); shutdownErr != nil {
		application.Logger().Error().Err(shutdownErr).Msg("Shutdown failed")
	}
	shutdownCancel()

	app.ExitOnError(err)
}
