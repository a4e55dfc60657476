// Package commands defines the CLI command structure and flag bindings.
//
// This package contains cobra command definitions that handle argument parsing,
// flag binding, and validation. Command execution is delegated to handler
// functions in the handlers package.
package commands

import (
	"github.com/spf13/cobra"

	"github.com/imamik/tracksync/cmd/tracksync/handlers"
)

// logFlags are shared by every command that logs.
var logFlags handlers.LogOptions

// Root returns the root command for the tracksync CLI.
func Root() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "tracksync",
		Short:         "Synchronize the template tracker with provider templates",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&logFlags.Level, "log-level", "info", "Log level (debug, info, warn, error)")
	cmd.PersistentFlags().StringVar(&logFlags.Format, "log-format", "console", "Log format (console, json)")

	cmd.AddCommand(Sync())
	cmd.AddCommand(Providers())
	cmd.AddCommand(Parse())
	cmd.AddCommand(Version())
	cmd.AddCommand(Completion())

	return cmd
}
