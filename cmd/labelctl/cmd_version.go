package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/xelth-com/argoxlabels/internal/buildinfo"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print build information",
	Args:  cobra.NoArgs,
	// no configuration needed
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Fprintf(cmd.OutOrStdout(), "labelctl %s\n", buildinfo.Get())
		return nil
	},
}
