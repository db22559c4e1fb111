package main

import (
	"github.com/spf13/cobra"
)

// newRootCmd builds the brickplay command tree. Without a subcommand it
// runs the station until the command's context is cancelled.
func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "brickplay",
		Short: "Brickplay Core play station",
		Long: `Brickplay Core loads a creation's controller bindings, connects the
creation's devices through their MQTT gateways and routes controller
input to device channels while a session runs.

The configuration file is read from $BRICKPLAY_CONFIG (default ` + defaultConfigPath + `).`,
		Version:       version,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context())
		},
	}
	root.AddCommand(newTokenCmd())
	return root
}
