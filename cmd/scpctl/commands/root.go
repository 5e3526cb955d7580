// Package commands implements the scpctl command tree.
package commands

import (
	"github.com/spf13/cobra"

	"github.com/nfmesh/scp/cmd/scpctl/cmdutil"
)

// Build-time variables injected via ldflags.
var (
	Version = "dev"
	Commit  = "none"
)

// NewRootCommand creates the scpctl root command.
func NewRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "scpctl",
		Short: "Operator CLI for a running SCP",
		Long: `scpctl inspects a running Service Communication Proxy through its
management API.

Examples:
  # Show service status and load-balancer state
  scpctl status --server http://localhost:7777

  # Probe liveness
  scpctl health --server http://localhost:7777

  # JSON output
  scpctl status --server http://localhost:7777 -o json`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&cmdutil.Flags.ServerURL, "server", "http://localhost:7777", "SCP management API base URL")
	root.PersistentFlags().StringVar(&cmdutil.Flags.Token, "token", "", "bearer token for OAuth2-protected deployments")
	root.PersistentFlags().StringVarP(&cmdutil.Flags.Output, "output", "o", "table", "output format: table, json, yaml")

	root.AddCommand(newStatusCommand())
	root.AddCommand(newHealthCommand())
	root.AddCommand(newVersionCommand())

	return root
}
