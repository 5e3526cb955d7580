package commands

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/nfmesh/scp/cmd/scpctl/cmdutil"
	"github.com/nfmesh/scp/internal/cli/output"
)

func newStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show service status and load-balancer state",
		RunE:  runStatus,
	}
}

// instanceTable renders the load-balancer snapshot.
type instanceTable []statusRow

type statusRow struct {
	InstanceID   string
	Connections  uint64
	Healthy      bool
	FailureCount int
}

// Headers implements output.TableRenderer.
func (it instanceTable) Headers() []string {
	return []string{"INSTANCE", "CONNECTIONS", "HEALTHY", "FAILURES"}
}

// Rows implements output.TableRenderer.
func (it instanceTable) Rows() [][]string {
	rows := make([][]string, 0, len(it))
	for _, row := range it {
		rows = append(rows, []string{
			row.InstanceID,
			strconv.FormatUint(row.Connections, 10),
			strconv.FormatBool(row.Healthy),
			strconv.Itoa(row.FailureCount),
		})
	}
	return rows
}

func runStatus(cmd *cobra.Command, args []string) error {
	client, err := cmdutil.GetClient()
	if err != nil {
		return err
	}

	status, err := client.Status()
	if err != nil {
		return fmt.Errorf("failed to fetch status: %w", err)
	}

	format, err := output.ParseFormat(cmdutil.Flags.Output)
	if err != nil {
		return err
	}
	if format != output.FormatTable {
		return output.Print(os.Stdout, format, status)
	}

	_ = output.SimpleTable(os.Stdout, [][2]string{
		{"Service", status.Service},
		{"Version", status.Version},
		{"Instance", status.NFInstanceID},
		{"Uptime", fmt.Sprintf("%ds", status.UptimeSeconds)},
		{"NRF", status.NRFStatus},
		{"Cached profiles", strconv.Itoa(status.CacheSize)},
	})
	fmt.Println()

	table := make(instanceTable, 0, len(status.LoadBalancer))
	for _, s := range status.LoadBalancer {
		table = append(table, statusRow{
			InstanceID:   s.InstanceID,
			Connections:  s.Connections,
			Healthy:      s.Healthy,
			FailureCount: s.FailureCount,
		})
	}
	return cmdutil.PrintOutput(os.Stdout, status.LoadBalancer,
		len(table) == 0, "No producer instances observed yet.", table)
}
