// Package cmdutil provides shared utilities for scpctl commands.
package cmdutil

import (
	"fmt"
	"io"

	"github.com/nfmesh/scp/internal/cli/output"
	"github.com/nfmesh/scp/pkg/apiclient"
)

// Flags stores global flag values accessible by subcommands.
var Flags = &GlobalFlags{}

// GlobalFlags holds the global flag values.
type GlobalFlags struct {
	ServerURL string
	Token     string
	Output    string
}

// GetClient returns an API client configured from the global flags.
func GetClient() (*apiclient.Client, error) {
	if Flags.ServerURL == "" {
		return nil, fmt.Errorf("no server URL configured; pass --server http://host:7777")
	}
	client := apiclient.New(Flags.ServerURL)
	if Flags.Token != "" {
		client = client.WithToken(Flags.Token)
	}
	return client, nil
}

// PrintOutput prints data in the format selected by --output.
// Table format renders via tableRenderer; empty data prints emptyMsg.
func PrintOutput(w io.Writer, data any, isEmpty bool, emptyMsg string, tableRenderer output.TableRenderer) error {
	format, err := output.ParseFormat(Flags.Output)
	if err != nil {
		return err
	}

	if format == output.FormatTable {
		if isEmpty {
			_, _ = fmt.Fprintln(w, emptyMsg)
			return nil
		}
		return output.PrintTable(w, tableRenderer)
	}
	return output.Print(w, format, data)
}
