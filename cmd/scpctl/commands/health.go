package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nfmesh/scp/cmd/scpctl/cmdutil"
	"github.com/nfmesh/scp/internal/cli/output"
)

func newHealthCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Probe the SCP liveness endpoint",
		RunE:  runHealth,
	}
}

func runHealth(cmd *cobra.Command, args []string) error {
	client, err := cmdutil.GetClient()
	if err != nil {
		return err
	}

	health, err := client.Health()
	if err != nil {
		return fmt.Errorf("health probe failed: %w", err)
	}

	format, err := output.ParseFormat(cmdutil.Flags.Output)
	if err != nil {
		return err
	}
	if format != output.FormatTable {
		return output.Print(os.Stdout, format, health)
	}

	fmt.Println(health.Status)
	return nil
}
