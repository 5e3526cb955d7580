package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/nfmesh/scp/cmd/scp/commands"
	"github.com/nfmesh/scp/pkg/config"
)

// Build-time variables injected via ldflags
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

const usage = `SCP - Service Communication Proxy for 5G service meshes

Usage:
  scp <command> [flags]

Commands:
  init     Initialize a sample configuration file
  start    Start the SCP server
  version  Show version information

Flags:
  --config string    Path to config file (default: $XDG_CONFIG_HOME/scp/config.yaml)
  --force            Force overwrite existing config file (init command only)

Examples:
  # Initialize config file
  scp init

  # Start with default config location
  scp start

  # Start with custom config
  scp start --config /etc/scp/config.yaml

  # Environment overrides
  NRF_URI=http://nrf.core:8080 SCP_PORT=7777 scp start

Environment Variables:
  Nested config keys map to SCP_<SECTION>_<KEY> (e.g. SCP_LOGGING_LEVEL).
  The flat deployment variables SCP_HOST, SCP_PORT, SCP_ADVERTISED_HOST,
  NRF_URI, NF_INSTANCE_ID, CACHE_TTL_SECONDS, HEARTBEAT_INTERVAL_SECONDS
  and RETRY_* take precedence over the config file.
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}

	switch os.Args[1] {
	case "init":
		runInit()
	case "start":
		runStart()
	case "help", "--help", "-h":
		fmt.Print(usage)
	case "version", "--version", "-v":
		fmt.Printf("scp %s (commit: %s, built: %s)\n", version, commit, date)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}
}

func runInit() {
	initFlags := flag.NewFlagSet("init", flag.ExitOnError)
	configFile := initFlags.String("config", "", "Path to config file")
	force := initFlags.Bool("force", false, "Force overwrite existing config file")

	if err := initFlags.Parse(os.Args[2:]); err != nil {
		log.Fatalf("Failed to parse flags: %v", err)
	}

	if err := commands.Init(*configFile, *force); err != nil {
		log.Fatalf("Init failed: %v", err)
	}
}

func runStart() {
	startFlags := flag.NewFlagSet("start", flag.ExitOnError)
	configFile := startFlags.String("config", "", "Path to config file")

	if err := startFlags.Parse(os.Args[2:]); err != nil {
		log.Fatalf("Failed to parse flags: %v", err)
	}

	cfg, err := config.Load(*configFile)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// SIGINT/SIGTERM cancel the context; the server then drains
	// in-flight requests before exiting.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := commands.Start(ctx, cfg, version); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}
