package app

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/agentstation/assetsync/internal/report"
	"github.com/agentstation/assetsync/pkg/constants"
	"github.com/agentstation/assetsync/pkg/errors"
	"github.com/agentstation/assetsync/pkg/logging"
	"github.com/agentstation/assetsync/pkg/sync"
)

type syncFlags struct {
	dryRun      bool
	pageSize    int
	reportFile  string
	metricsFile string
	devices     bool
}

// NewSyncCommand creates the sync command.
func (a *App) NewSyncCommand() *cobra.Command {
	var f syncFlags
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Reconcile directory devices with Snipe-IT assets",
		Long: `Sync fetches every ChromeOS device from the Google Directory and creates or
updates the matching Snipe-IT hardware asset.

With --dry-run every lookup is performed but nothing is written; the summary
reports what would have been created or updated.`,
		Example: `  assetsync sync --dry-run
  assetsync sync --report run.json --metrics-file /var/lib/node_exporter/assetsync.prom`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runSync(cmd, f)
		},
	}
	cmd.Flags().BoolVar(&f.dryRun, "dry-run", false, "compute every change without writing to Snipe-IT")
	cmd.Flags().IntVar(&f.pageSize, "page-size", 0, "directory page size (1-300)")
	cmd.Flags().StringVar(&f.reportFile, "report", "", "write the full summary to this file (.json or .yaml)")
	cmd.Flags().StringVar(&f.metricsFile, "metrics-file", "", "write Prometheus metrics in text format to this file")
	cmd.Flags().BoolVar(&f.devices, "devices", false, "list every device in the table output")
	return cmd
}

func (a *App) runSync(cmd *cobra.Command, f syncFlags) error {
	cfg, err := a.loadConfig()
	if err != nil {
		return err
	}
	var dryRun *bool
	if cmd.Flags().Changed("dry-run") {
		dryRun = &f.dryRun
	}
	var pageSize *int
	if cmd.Flags().Changed("page-size") {
		pageSize = &f.pageSize
	}
	cfg.ApplyFlags(dryRun, pageSize, nil)
	if err := cfg.Validate(false); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), constants.SyncTimeout)
	defer cancel()
	ctx = logging.WithLogger(ctx, a.logger)

	var metrics *sync.Metrics
	registry := prometheus.NewRegistry()
	if f.metricsFile != "" {
		metrics = sync.NewMetrics(registry)
	}

	c, err := a.build(ctx, cfg, metrics)
	if err != nil {
		return err
	}

	summary, runErr := c.engine.Run(ctx, c.source.FetchAll(ctx, cfg.PageSize))

	if err := report.Render(a.out, a.format(), summary, report.Options{Devices: f.devices}); err != nil {
		return errors.WrapResource("render", "summary", "", err)
	}
	if f.reportFile != "" {
		if err := report.WriteFile(f.reportFile, summary); err != nil {
			return err
		}
		a.logger.Info().Str("path", f.reportFile).Msg("Report written")
	}
	if f.metricsFile != "" {
		if err := prometheus.WriteToTextfile(f.metricsFile, registry); err != nil {
			return errors.WrapResource("write", "metrics", f.metricsFile, err)
		}
	}

	if runErr != nil {
		return runErr
	}
	if !summary.Successful() {
		return ErrDevicesFailed
	}
	return nil
}
