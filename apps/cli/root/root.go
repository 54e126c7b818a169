package root

import (
	"github.com/spf13/cobra"
)

// rootCmd is the base command for the VMS admin CLI. Subcommands (admin, auth, bootstrap) are attached here.
var rootCmd = &cobra.Command{
	Use:           "vms",
	Short:         "Visitor management admin CLI",
	Long:          "Administrative utilities for the visitor management server (schema bootstrap, admin accounts, dev tokens).",
	SilenceErrors: true,
	SilenceUsage:  true,
}

// Execute runs the CLI.
func Execute() error {
	return rootCmd.Execute()
}

// Root returns the mutable root command for wiring from subpackages.
func Root() *cobra.Command {
	return rootCmd
}
