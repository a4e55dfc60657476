package commands

import (
	"github.com/spf13/cobra"

	"github.com/imamik/tracksync/cmd/tracksync/handlers"
	"github.com/imamik/tracksync/internal/config"
)

// Providers returns the command that lists registry entries.
func Providers() *cobra.Command {
	var (
		configPath string
		check      bool
	)

	cmd := &cobra.Command{
		Use:   "providers",
		Short: "List the providers in the registry",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.Providers(cmd.Context(), cmd.OutOrStdout(), configPath, check, logFlags)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", config.DefaultRegistryFile, "Path to the provider registry")
	cmd.Flags().BoolVar(&check, "check", false, "Run the liveness check against each provider")

	return cmd
}
