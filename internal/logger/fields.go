package logger

import (
	"fmt"
	"log/slog"
)

// Standard field keys for structured logging.
// Use these keys consistently across all log statements so that log
// aggregation and querying work across the proxy pipeline, the NRF
// client, and the background loops.
const (
	// Distributed tracing
	KeyTraceID = "trace_id" // OpenTelemetry trace ID for request correlation
	KeySpanID  = "span_id"  // OpenTelemetry span ID for operation tracking

	// Request routing
	KeyNFType     = "nf_type"     // Target NF type derived from the request path (AMF, SMF, ...)
	KeyInstanceID = "instance_id" // NF instance id (UUID) of a producer
	KeyPolicy     = "policy"      // Selection policy: round_robin, least_connections, weighted, sticky
	KeyUpstream   = "upstream"    // Upstream URL of the current attempt
	KeyPath       = "path"        // Request path
	KeyMethod     = "method"      // HTTP method
	KeyStatus     = "status"      // HTTP status code

	// Client identification
	KeyClientIP  = "client_ip"  // Downstream client IP address
	KeySessionID = "session_id" // Sticky-session key (client IP)
	KeyRequestID = "request_id" // Front-server request id

	// Retry and failover
	KeyAttempt     = "attempt"      // Retry attempt number (1-based)
	KeyMaxAttempts = "max_attempts" // Configured retry cap
	KeyBackoff     = "backoff"      // Backoff duration before the next attempt
	KeyExcluded    = "excluded"     // Number of instances excluded by the failover loop

	// Health and circuit breaker
	KeyFailureCount = "failure_count" // Consecutive failure count for an instance
	KeyCircuitOpen  = "circuit_open"  // Circuit open flag
	KeyOpenUntil    = "open_until"    // Circuit reopen deadline

	// NRF interaction
	KeyNRFURI    = "nrf_uri"    // Configured NRF base URI
	KeyEvent     = "event"      // NRF notification event type
	KeyInstances = "instances"  // Number of instances returned by discovery
	KeyCacheSize = "cache_size" // Profile cache entry count

	// Operation metadata
	KeyDurationMs = "duration_ms" // Operation duration in milliseconds
	KeyError      = "error"       // Error message
)

// Err returns a slog.Attr for an error, handling nil gracefully.
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String(KeyError, err.Error())
}

// ErrCode returns slog attributes pairing a numeric status code with the error, if any.
func ErrCode(err error, code int) []any {
	attrs := []any{slog.Int(KeyStatus, code)}
	if err != nil {
		attrs = append(attrs, slog.String(KeyError, err.Error()))
	}
	return attrs
}

// FormatInstance renders an instance id for log output, shortening
// UUIDs to their first segment to keep lines readable.
func FormatInstance(id string) string {
	if len(id) > 8 {
		return fmt.Sprintf("%s…", id[:8])
	}
	return id
}
