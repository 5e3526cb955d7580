// Package config loads and validates the SCP configuration.
//
// Configuration sources (in order of precedence):
//  1. Flat environment variables (SCP_PORT, NRF_URI, RETRY_*, ...)
//  2. Nested environment variables (SCP_<SECTION>_<KEY>)
//  3. Configuration file (YAML)
//  4. Default values
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Config represents the SCP configuration.
type Config struct {
	// Logging controls log output behavior
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`

	// Telemetry controls OpenTelemetry tracing and continuous profiling
	Telemetry TelemetryConfig `mapstructure:"telemetry" yaml:"telemetry"`

	// Server configures the front HTTP listener
	Server ServerConfig `mapstructure:"server" yaml:"server"`

	// SCP holds this instance's identity and cache settings
	SCP SCPConfig `mapstructure:"scp" yaml:"scp"`

	// NRF configures the Network Repository Function integration.
	// NRF integration is disabled when URI is empty.
	NRF NRFConfig `mapstructure:"nrf" yaml:"nrf"`

	// Retry bounds per-instance upstream retries
	Retry RetryConfig `mapstructure:"retry" yaml:"retry"`

	// Proxy tunes the routing pipeline
	Proxy ProxyConfig `mapstructure:"proxy" yaml:"proxy"`

	// OAuth2 configures optional bearer-token validation
	OAuth2 OAuth2Config `mapstructure:"oauth2" yaml:"oauth2"`

	// Metrics configures the Prometheus endpoint
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	// Level is the minimum log level: DEBUG, INFO, WARN, ERROR
	Level string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error" yaml:"level"`

	// Format is the log output format: text or json
	Format string `mapstructure:"format" validate:"required,oneof=text json" yaml:"format"`

	// Output is where logs are written: stdout, stderr, or a file path
	Output string `mapstructure:"output" validate:"required" yaml:"output"`
}

// TelemetryConfig controls OpenTelemetry distributed tracing.
type TelemetryConfig struct {
	// Enabled controls whether tracing is enabled. Default: false
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Endpoint is the OTLP collector endpoint (host:port)
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint"`

	// Insecure controls whether to use a non-TLS connection
	Insecure bool `mapstructure:"insecure" yaml:"insecure"`

	// SampleRate is the trace sampling rate (0.0 to 1.0)
	SampleRate float64 `mapstructure:"sample_rate" validate:"omitempty,gte=0,lte=1" yaml:"sample_rate"`

	// Profiling configures Pyroscope continuous profiling
	Profiling ProfilingConfig `mapstructure:"profiling" yaml:"profiling"`
}

// ProfilingConfig controls Pyroscope continuous profiling.
type ProfilingConfig struct {
	// Enabled controls whether profiling is enabled. Default: false
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Endpoint is the Pyroscope server URL
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint"`

	// ProfileTypes specifies which profile types to collect
	ProfileTypes []string `mapstructure:"profile_types" yaml:"profile_types"`
}

// ServerConfig configures the front HTTP listener.
type ServerConfig struct {
	// Host is the bind address. Default: 0.0.0.0
	Host string `mapstructure:"host" validate:"required" yaml:"host"`

	// Port is the bind port. Default: 7777
	Port int `mapstructure:"port" validate:"required,min=1,max=65535" yaml:"port"`

	// ShutdownTimeout bounds graceful shutdown. Default: 10s
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"required,gt=0" yaml:"shutdown_timeout"`
}

// SCPConfig holds this instance's identity and cache settings.
type SCPConfig struct {
	// AdvertisedHost is the IP advertised in this SCP's own NF profile.
	// Default: 127.0.0.1
	AdvertisedHost string `mapstructure:"advertised_host" validate:"required" yaml:"advertised_host"`

	// NFInstanceID is this SCP's NF instance UUID.
	// A random v4 UUID is generated when empty.
	NFInstanceID string `mapstructure:"nf_instance_id" validate:"omitempty,uuid4" yaml:"nf_instance_id,omitempty"`

	// CacheTTL is the profile cache entry lifetime. Default: 300s
	CacheTTL time.Duration `mapstructure:"cache_ttl" validate:"required,gt=0" yaml:"cache_ttl"`

	// HeartbeatInterval is the NRF heartbeat period. Default: 30s
	HeartbeatInterval time.Duration `mapstructure:"heartbeat_interval" validate:"required,gt=0" yaml:"heartbeat_interval"`
}

// NRFConfig configures the NRF client.
type NRFConfig struct {
	// URI is the NRF base URI (e.g., http://nrf.core:8080).
	// Empty disables NRF integration; proxy requests then fail with 500.
	URI string `mapstructure:"uri" validate:"omitempty,url" yaml:"uri,omitempty"`
}

// RetryConfig bounds the per-instance retry loop.
type RetryConfig struct {
	// MaxAttempts is the per-instance attempt cap. Default: 3
	MaxAttempts int `mapstructure:"max_attempts" validate:"required,min=1" yaml:"max_attempts"`

	// InitialBackoff is the sleep before the first retry. Default: 100ms
	InitialBackoff time.Duration `mapstructure:"initial_backoff" validate:"required,gt=0" yaml:"initial_backoff"`

	// MaxBackoff caps the backoff growth. Default: 5s
	MaxBackoff time.Duration `mapstructure:"max_backoff" validate:"required,gt=0" yaml:"max_backoff"`

	// BackoffMultiplier is the exponential growth factor. Default: 2.0
	BackoffMultiplier float64 `mapstructure:"backoff_multiplier" validate:"required,gte=1" yaml:"backoff_multiplier"`
}

// ProxyConfig tunes the routing pipeline.
type ProxyConfig struct {
	// UpstreamTimeout bounds one upstream attempt. Default: 30s
	UpstreamTimeout time.Duration `mapstructure:"upstream_timeout" validate:"required,gt=0" yaml:"upstream_timeout"`

	// FailFastWhenUnhealthy refuses requests when every producer is
	// circuit-gated instead of admitting the least-bad one. Default: false
	FailFastWhenUnhealthy bool `mapstructure:"fail_fast_when_unhealthy" yaml:"fail_fast_when_unhealthy"`

	// StickySessionTTL is the sticky-session lifetime. Default: 300s
	StickySessionTTL time.Duration `mapstructure:"sticky_session_ttl" validate:"required,gt=0" yaml:"sticky_session_ttl"`

	// FailureThreshold is the consecutive-failure count that opens an
	// instance's circuit. Default: 3
	FailureThreshold int `mapstructure:"failure_threshold" validate:"required,min=1" yaml:"failure_threshold"`

	// CircuitTimeout is how long an opened circuit stays closed to
	// traffic before admitting a probe. Default: 30s
	CircuitTimeout time.Duration `mapstructure:"circuit_timeout" validate:"required,gt=0" yaml:"circuit_timeout"`
}

// OAuth2Config configures optional bearer-token validation on the
// proxy and notification paths. Health and status stay open.
type OAuth2Config struct {
	// Enabled switches token validation on. Default: false
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Issuer is the expected token issuer
	Issuer string `mapstructure:"issuer" yaml:"issuer,omitempty"`

	// Audience is the set of accepted audiences
	Audience []string `mapstructure:"audience" yaml:"audience,omitempty"`

	// RequiredScope must appear in the token's scope claim when set
	RequiredScope string `mapstructure:"required_scope" yaml:"required_scope,omitempty"`

	// Secret is the HMAC secret used to verify token signatures
	Secret string `mapstructure:"secret" yaml:"secret,omitempty"`
}

// MetricsConfig configures the Prometheus metrics endpoint.
type MetricsConfig struct {
	// Enabled controls metrics collection and the /metrics endpoint.
	// Default: true
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Path is the metrics endpoint path. Default: /metrics
	Path string `mapstructure:"path" yaml:"path"`
}

// Load loads configuration from file, environment, and defaults.
//
// Parameters:
//   - configPath: path to config file (empty string uses the default
//     location; a missing file falls back to defaults)
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setupViper(v, configPath)

	if _, err := readConfigFile(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(configDecodeHooks())); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	ApplyDefaults(&cfg)
	applyFlatEnvOverrides(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// Validate checks the configuration against its struct tags.
func Validate(cfg *Config) error {
	validate := validator.New()
	if err := validate.Struct(cfg); err != nil {
		return err
	}
	return nil
}

// SaveConfig writes the configuration to path in YAML form.
func SaveConfig(cfg *Config, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// 0600: the file may carry the OAuth2 secret.
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// setupViper configures environment variable support and the config
// file search path.
func setupViper(v *viper.Viper, configPath string) {
	// Nested keys map to SCP_<SECTION>_<KEY>, e.g. SCP_LOGGING_LEVEL.
	v.SetEnvPrefix("SCP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Booleans whose default is true need a viper default; zero-value
	// fills in ApplyDefaults cannot distinguish "unset" from "false".
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("telemetry.insecure", true)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.AddConfigPath(getConfigDir())
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
}

// readConfigFile reads the configuration file if it exists.
// Returns (fileFound, error).
func readConfigFile(v *viper.Viper) (bool, error) {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return false, nil
		}
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to read config file: %w", err)
	}
	return true, nil
}

// configDecodeHooks parses durations from strings like "30s".
func configDecodeHooks() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	)
}

// applyFlatEnvOverrides applies the flat, 3GPP-deployment-style
// environment variables, which take precedence over everything else.
func applyFlatEnvOverrides(cfg *Config) {
	if host := os.Getenv("SCP_HOST"); host != "" {
		cfg.Server.Host = host
	}
	if port, ok := envInt("SCP_PORT"); ok {
		cfg.Server.Port = port
	}
	if advertised := os.Getenv("SCP_ADVERTISED_HOST"); advertised != "" {
		cfg.SCP.AdvertisedHost = advertised
	}
	if uri := os.Getenv("NRF_URI"); uri != "" {
		cfg.NRF.URI = uri
	}
	if id := os.Getenv("NF_INSTANCE_ID"); id != "" {
		cfg.SCP.NFInstanceID = id
	}
	if seconds, ok := envInt("CACHE_TTL_SECONDS"); ok {
		cfg.SCP.CacheTTL = time.Duration(seconds) * time.Second
	}
	if seconds, ok := envInt("HEARTBEAT_INTERVAL_SECONDS"); ok {
		cfg.SCP.HeartbeatInterval = time.Duration(seconds) * time.Second
	}
	if attempts, ok := envInt("RETRY_MAX_ATTEMPTS"); ok {
		cfg.Retry.MaxAttempts = attempts
	}
	if ms, ok := envInt("RETRY_INITIAL_BACKOFF_MS"); ok {
		cfg.Retry.InitialBackoff = time.Duration(ms) * time.Millisecond
	}
	if ms, ok := envInt("RETRY_MAX_BACKOFF_MS"); ok {
		cfg.Retry.MaxBackoff = time.Duration(ms) * time.Millisecond
	}
	if raw := os.Getenv("RETRY_BACKOFF_MULTIPLIER"); raw != "" {
		if multiplier, err := strconv.ParseFloat(raw, 64); err == nil {
			cfg.Retry.BackoffMultiplier = multiplier
		}
	}
}

func envInt(name string) (int, bool) {
	raw := os.Getenv(name)
	if raw == "" {
		return 0, false
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return value, true
}

// getConfigDir returns the directory searched for the default config
// file: $XDG_CONFIG_HOME/scp, falling back to ~/.config/scp.
func getConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "scp")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "scp")
}

// GetDefaultConfigPath returns the default config file location.
func GetDefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "config.yaml")
}

// DefaultConfigExists reports whether a config file exists at the
// default location.
func DefaultConfigExists() bool {
	_, err := os.Stat(GetDefaultConfigPath())
	return err == nil
}
