package commands

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/imamik/tracksync/cmd/tracksync/handlers"
	"github.com/imamik/tracksync/internal/config"
)

// Sync returns the command that synchronizes the tracker.
func Sync() *cobra.Command {
	var (
		opts       handlers.SyncOptions
		markUsable bool
	)

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Synchronize the template tracker with provider templates",
		Long: `List templates on every reachable provider and update the template tracker.

The sync runs in three passes:
  - Add associations for templates providers report that the tracker lacks
  - Remove associations for templates responsive providers no longer report
  - Delete templates left without any provider

Providers that fail the liveness check or error while listing are treated as
unresponsive: their existing associations are kept.
`,
		Example: `  tracksync sync --tracker-url http://tracker.example.com/api/
  tracksync sync --provider-key rhv43 --provider-key hetzner --mark-usable
  tracksync sync --dry-run --log-level debug`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Flags().Changed("mark-usable") {
				opts.MarkUsable = &markUsable
			}
			opts.Log = logFlags
			opts.Out = cmd.OutOrStdout()
			return handlers.Sync(cmd.Context(), opts)
		},
	}

	cmd.Flags().StringVar(&opts.TrackerURL, "tracker-url", os.Getenv("TRACKERBOT_URL"), "Tracker API URL (default: $TRACKERBOT_URL)")
	cmd.Flags().BoolVar(&markUsable, "mark-usable", false, "Mark all added templates as usable")
	cmd.Flags().StringSliceVar(&opts.ProviderKeys, "provider-key", nil, "Provider key to sync (repeatable, default: all)")
	cmd.Flags().StringVarP(&opts.ConfigPath, "config", "c", config.DefaultRegistryFile, "Path to the provider registry")
	cmd.Flags().StringVar(&opts.CredentialsPath, "credentials", "credentials.yaml", "Path to the credentials file")
	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "Log planned tracker changes without applying them")
	cmd.Flags().StringVar(&opts.PushGateway, "pushgateway", "", "Prometheus Pushgateway URL for run metrics")

	_ = cmd.RegisterFlagCompletionFunc("provider-key", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return handlers.RegistryKeys(opts.ConfigPath), cobra.ShellCompDirectiveNoFileComp
	})

	return cmd
}
