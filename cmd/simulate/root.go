package main

import (
	"github.com/spf13/cobra"
)

// Version information, set via ldflags during build.
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildDate = "unknown"
)

// devMode is bound to the root command's persistent --dev flag and read
// directly by the run subcommand, rather than looked up through the
// subcommand's merged flag set.
var devMode bool

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "simulate",
		Short:        "Run cluster scheduling/autoscaling simulations",
		SilenceUsage: true,
	}
	cmd.PersistentFlags().BoolVar(&devMode, "dev", false, "use development (colored console) logging instead of JSON")

	cmd.AddCommand(newRunCmd())
	cmd.AddCommand(newValidateCmd())
	cmd.AddCommand(newVersionCmd())
	return cmd
}
