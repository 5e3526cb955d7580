package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show scpctl version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("scpctl %s (commit: %s)\n", Version, Commit)
		},
	}
}
