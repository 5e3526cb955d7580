package config

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// ApplyDefaults sets default values for any unspecified configuration
// fields. Zero values are replaced; explicit values are preserved.
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	applyTelemetryDefaults(&cfg.Telemetry)
	applyServerDefaults(&cfg.Server)
	applySCPDefaults(&cfg.SCP)
	applyRetryDefaults(&cfg.Retry)
	applyProxyDefaults(&cfg.Proxy)
	applyMetricsDefaults(&cfg.Metrics)
}

// GetDefaultConfig returns a fully defaulted configuration.
func GetDefaultConfig() *Config {
	cfg := &Config{}
	cfg.Metrics.Enabled = true
	cfg.Telemetry.Insecure = true
	ApplyDefaults(cfg)
	return cfg
}

func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	cfg.Level = strings.ToUpper(cfg.Level)

	if cfg.Format == "" {
		cfg.Format = "text"
	}
	if cfg.Output == "" {
		cfg.Output = "stdout"
	}
}

func applyTelemetryDefaults(cfg *TelemetryConfig) {
	if cfg.Endpoint == "" {
		cfg.Endpoint = "localhost:4317"
	}
	if cfg.SampleRate == 0 {
		cfg.SampleRate = 1.0
	}
	if cfg.Profiling.Endpoint == "" {
		cfg.Profiling.Endpoint = "http://localhost:4040"
	}
	if len(cfg.Profiling.ProfileTypes) == 0 {
		cfg.Profiling.ProfileTypes = []string{"cpu", "alloc_space", "inuse_space", "goroutines"}
	}
}

func applyServerDefaults(cfg *ServerConfig) {
	if cfg.Host == "" {
		cfg.Host = "0.0.0.0"
	}
	if cfg.Port == 0 {
		cfg.Port = 7777
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
}

func applySCPDefaults(cfg *SCPConfig) {
	if cfg.AdvertisedHost == "" {
		cfg.AdvertisedHost = "127.0.0.1"
	}
	if cfg.NFInstanceID == "" {
		cfg.NFInstanceID = uuid.NewString()
	}
	if cfg.CacheTTL == 0 {
		cfg.CacheTTL = 300 * time.Second
	}
	if cfg.HeartbeatInterval == 0 {
		cfg.HeartbeatInterval = 30 * time.Second
	}
}

func applyRetryDefaults(cfg *RetryConfig) {
	if cfg.MaxAttempts == 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.InitialBackoff == 0 {
		cfg.InitialBackoff = 100 * time.Millisecond
	}
	if cfg.MaxBackoff == 0 {
		cfg.MaxBackoff = 5 * time.Second
	}
	if cfg.BackoffMultiplier == 0 {
		cfg.BackoffMultiplier = 2.0
	}
}

func applyProxyDefaults(cfg *ProxyConfig) {
	if cfg.UpstreamTimeout == 0 {
		cfg.UpstreamTimeout = 30 * time.Second
	}
	if cfg.StickySessionTTL == 0 {
		cfg.StickySessionTTL = 300 * time.Second
	}
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = 3
	}
	if cfg.CircuitTimeout == 0 {
		cfg.CircuitTimeout = 30 * time.Second
	}
}

func applyMetricsDefaults(cfg *MetricsConfig) {
	if cfg.Path == "" {
		cfg.Path = "/metrics"
	}
}

// SampleConfig is the commented configuration template written by
// `scp init`.
const SampleConfig = `# SCP configuration
#
# Environment overrides: nested keys map to SCP_<SECTION>_<KEY>
# (e.g. SCP_LOGGING_LEVEL=DEBUG). The flat deployment variables
# SCP_HOST, SCP_PORT, SCP_ADVERTISED_HOST, NRF_URI, NF_INSTANCE_ID,
# CACHE_TTL_SECONDS, HEARTBEAT_INTERVAL_SECONDS and RETRY_* take
# precedence over both the file and the nested forms.

logging:
  level: INFO        # DEBUG, INFO, WARN, ERROR
  format: text       # text, json
  output: stdout     # stdout, stderr, or a file path

server:
  host: 0.0.0.0
  port: 7777
  shutdown_timeout: 10s

scp:
  advertised_host: 127.0.0.1
  # nf_instance_id: 00000000-0000-4000-8000-000000000000  # random when unset
  cache_ttl: 300s
  heartbeat_interval: 30s

nrf:
  # uri: http://nrf.core:8080  # NRF integration is disabled when unset

retry:
  max_attempts: 3
  initial_backoff: 100ms
  max_backoff: 5s
  backoff_multiplier: 2.0

proxy:
  upstream_timeout: 30s
  fail_fast_when_unhealthy: false
  sticky_session_ttl: 300s
  failure_threshold: 3
  circuit_timeout: 30s

metrics:
  enabled: true
  path: /metrics

# oauth2:
#   enabled: true
#   issuer: https://auth.core
#   audience: [scp]
#   required_scope: nscp-proxy
#   secret: change-me

# telemetry:
#   enabled: true
#   endpoint: localhost:4317
#   insecure: true
#   sample_rate: 1.0
#   profiling:
#     enabled: true
#     endpoint: http://localhost:4040
`
