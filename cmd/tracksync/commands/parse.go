package commands

import (
	"github.com/spf13/cobra"

	"github.com/imamik/tracksync/cmd/tracksync/handlers"
)

// Parse returns the command that shows how template names are classified.
func Parse() *cobra.Command {
	return &cobra.Command{
		Use:     "parse NAME...",
		Short:   "Show the group, stream and datestamp parsed from template names",
		Example: "  tracksync parse cfme-5.10.0.33-20190312 miq-nightly-201807091200",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return handlers.Parse(cmd.OutOrStdout(), args)
		},
	}
}
