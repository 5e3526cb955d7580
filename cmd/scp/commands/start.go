// Package commands implements the scp server subcommands.
package commands

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/nfmesh/scp/internal/logger"
	"github.com/nfmesh/scp/internal/telemetry"
	"github.com/nfmesh/scp/pkg/api"
	"github.com/nfmesh/scp/pkg/balancer"
	"github.com/nfmesh/scp/pkg/config"
	"github.com/nfmesh/scp/pkg/heartbeat"
	"github.com/nfmesh/scp/pkg/metrics"
	"github.com/nfmesh/scp/pkg/nrf"
	"github.com/nfmesh/scp/pkg/proxy"
	"github.com/nfmesh/scp/pkg/registry"
	"github.com/nfmesh/scp/pkg/retry"
)

// Start wires the routing pipeline and runs the front server until ctx
// is cancelled. version is stamped into /status and the NRF profile.
func Start(ctx context.Context, cfg *config.Config, version string) error {
	if err := logger.Init(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	}); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	shutdownTracing, err := telemetry.Init(ctx, telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		ServiceName:    "scp",
		ServiceVersion: version,
		Endpoint:       cfg.Telemetry.Endpoint,
		Insecure:       cfg.Telemetry.Insecure,
		SampleRate:     cfg.Telemetry.SampleRate,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			logger.Warn("telemetry shutdown failed", logger.KeyError, err.Error())
		}
	}()

	shutdownProfiling, err := telemetry.InitProfiling(telemetry.ProfilingConfig{
		Enabled:        cfg.Telemetry.Profiling.Enabled,
		ServiceName:    "scp",
		ServiceVersion: version,
		Endpoint:       cfg.Telemetry.Profiling.Endpoint,
		ProfileTypes:   cfg.Telemetry.Profiling.ProfileTypes,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize profiling: %w", err)
	}
	defer func() { _ = shutdownProfiling() }()

	if cfg.Metrics.Enabled {
		metrics.InitRegistry()
	}
	proxyMetrics := metrics.NewProxyMetrics()

	reg := registry.New(registry.Options{
		FailureThreshold: cfg.Proxy.FailureThreshold,
		CircuitTimeout:   cfg.Proxy.CircuitTimeout,
		CacheTTL:         cfg.SCP.CacheTTL,
		SessionTTL:       cfg.Proxy.StickySessionTTL,
	})

	var nrfClient nrf.Client
	if cfg.NRF.URI != "" {
		nrfClient = nrf.NewHTTPClient(cfg.NRF.URI, &http.Client{Timeout: cfg.Proxy.UpstreamTimeout})
		logger.Info("NRF integration enabled", logger.KeyNRFURI, cfg.NRF.URI)
	} else {
		logger.Warn("NRF URI not configured, service discovery will be unavailable")
	}

	engine := proxy.NewEngine(
		reg,
		balancer.NewSelector(reg, cfg.Proxy.FailFastWhenUnhealthy),
		nrfClient,
		proxy.NewForwarder(&http.Client{Timeout: cfg.Proxy.UpstreamTimeout}),
		retry.Config{
			MaxAttempts:       cfg.Retry.MaxAttempts,
			InitialBackoff:    cfg.Retry.InitialBackoff,
			MaxBackoff:        cfg.Retry.MaxBackoff,
			BackoffMultiplier: cfg.Retry.BackoffMultiplier,
		},
		proxyMetrics,
	)

	router := api.NewRouter(api.RouterDeps{
		Registry:     reg,
		Engine:       engine,
		Metrics:      proxyMetrics,
		Version:      version,
		NFInstanceID: cfg.SCP.NFInstanceID,
		NRFEnabled:   nrfClient != nil,
		OAuth2:       cfg.OAuth2,
		MetricsPath:  cfg.Metrics.Path,
	})

	server := api.NewServer(cfg.Server.Host, cfg.Server.Port, cfg.Server.ShutdownTimeout, router)

	// Background loops stop with the same context as the server; the
	// wait group keeps shutdown ordered behind their exit.
	var background sync.WaitGroup

	if nrfClient != nil {
		loop := heartbeat.New(
			nrfClient,
			heartbeat.OwnProfile(cfg.SCP.NFInstanceID, cfg.SCP.AdvertisedHost),
			cfg.SCP.HeartbeatInterval,
		)
		background.Add(1)
		go func() {
			defer background.Done()
			_ = loop.Run(ctx)
		}()
	}

	janitor := registry.NewJanitor(reg, cfg.SCP.CacheTTL/2)
	background.Add(1)
	go func() {
		defer background.Done()
		_ = janitor.Run(ctx)
	}()

	err = server.Start(ctx)
	background.Wait()
	return err
}
