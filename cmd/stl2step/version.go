package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/philipparndt/stl2step/version"
)

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "stl2step %s\n", version.GetFullVersion())
		},
	}
}
