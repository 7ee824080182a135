package app

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/agentstation/assetsync/internal/config"
	"github.com/agentstation/assetsync/internal/report"
)

// NewConfigCommand creates the config command.
func (a *App) NewConfigCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Validate and print the effective configuration",
		Long: `Config loads settings the same way sync does, reports every validation
problem at once, and prints the effective values with secrets masked.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := a.loadConfig()
			if cfg == nil {
				return err
			}
			redacted := cfg.Redacted()

			format := a.format()
			if format == report.FormatTable {
				if renderErr := report.RenderTable(cmd.OutOrStdout(), configTable(&redacted)); renderErr != nil {
					return renderErr
				}
			} else if renderErr := report.RenderValue(cmd.OutOrStdout(), format, redacted); renderErr != nil {
				return renderErr
			}
			if err == nil {
				a.logger.Info().Str("file", cfg.ConfigFile).Msg("Configuration is valid")
			}
			return err
		},
	}
}

func configTable(c *config.Config) report.Table {
	source := c.ConfigFile
	if source == "" {
		source = "environment only"
	}
	return report.Table{
		Title:   "Effective configuration (" + source + ")",
		Headers: []string{"Setting", "Value"},
		Rows: [][]string{
			{"API_TOKEN", c.APIToken},
			{"ENDPOINT_URL", c.EndpointURL},
			{"SNIPE_IT_ASSET_TAG_PREFIX", c.AssetTagPrefix},
			{"SNIPE_IT_ACTIVE_STATUS", c.ActiveStatus},
			{"SNIPE_IT_DEFAULT_MODEL_ID", itoa(c.DefaultModelID)},
			{"SNIPE_IT_DEFAULT_STATUS_ID", itoa(c.DefaultStatusID)},
			{"SNIPE_IT_DEFAULT_CATEGORY_ID", itoa(c.DefaultCategoryID)},
			{"SNIPE_IT_FIELDSET_ID", itoa(c.FieldsetID)},
			{"SNIPE_IT_FIELD_MAC_ADDRESS", c.Fields.MAC},
			{"SNIPE_IT_FIELD_SYNC_DATE", c.Fields.SyncDate},
			{"SNIPE_IT_FIELD_IP_ADDRESS", c.Fields.IP},
			{"SNIPE_IT_FIELD_USER", c.Fields.User},
			{"SNIPE_IT_FIELD_EOL_DATE", c.Fields.EOL},
			{"SNIPE_IT_FIELD_STORAGE", c.Fields.Storage},
			{"SKIP_STATUSES", joinOrDash(c.SkipStatuses)},
			{"RESOLVE_USERS", strconv.FormatBool(c.ResolveUsers)},
			{"DELEGATED_ADMIN", c.DelegatedAdmin},
			{"GOOGLE_SERVICE_ACCOUNT_FILE", c.ServiceAccountFile},
			{"GOOGLE_CUSTOMER_ID", c.CustomerID},
			{"GOOGLE_ORG_UNIT", c.OrgUnit},
			{"PAGE_SIZE", itoa(c.PageSize)},
			{"Gemini_APIKEY", c.GeminiAPIKey},
			{"GEMINI_MODEL", c.GeminiModel},
			{"GEMINI_CATEGORIES", joinOrDash(c.Categories)},
			{"GEMINI_DEFAULT_CATEGORY", c.DefaultCategory},
			{"MAX_RETRIES", itoa(c.MaxRetries)},
			{"RETRY_DELAY_SECONDS", strconv.FormatFloat(c.RetryDelay.Seconds(), 'f', -1, 64)},
			{"REQUESTS_PER_SECOND", strconv.FormatFloat(c.RequestsPerSecond, 'f', -1, 64)},
			{"DRY_RUN", strconv.FormatBool(c.DryRun)},
			{"LOG_LEVEL", c.LogLevel},
		},
	}
}

// NewVersionCommand creates the version command.
func (a *App) NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		// No config is needed to print the version.
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "assetsync %s\n  commit: %s\n  built:  %s by %s\n",
				a.version, a.commit, a.date, a.builtBy)
			return err
		},
	}
}

func joinOrDash(items []string) string {
	if len(items) == 0 {
		return "-"
	}
	return strings.Join(items, ", ")
}

func itoa(i int) string { return strconv.Itoa(i) }
