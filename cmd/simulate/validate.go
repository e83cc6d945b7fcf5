package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newValidateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Parse the trace file and check the derived configuration's invariants without running anything",
	}
	sf := addScenarioFlags(cmd)

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		cfg := sf.config()
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("simulate: invalid configuration: %w", err)
		}
		trace, err := sf.trace()
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "configuration ok, trace has %d pod group(s)\n", len(trace.Entries))
		return nil
	}
	return cmd
}
