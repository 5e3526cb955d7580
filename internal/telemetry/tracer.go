package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Attribute keys for routing-pipeline spans. Client keys follow
// OpenTelemetry semantic conventions; SCP-specific keys use the "scp."
// prefix.
const (
	// Client attributes
	AttrClientIP   = "client.ip"
	AttrClientAddr = "client.address"

	// Request attributes
	AttrMethod = "http.method"
	AttrPath   = "url.path"
	AttrStatus = "http.status_code"

	// Routing attributes
	AttrNFType     = "scp.nf_type"
	AttrInstanceID = "scp.instance_id"
	AttrPolicy     = "scp.policy"
	AttrAttempt    = "scp.attempt"
	AttrExcluded   = "scp.excluded"
	AttrSessionID  = "scp.session_id"
	AttrUpstream   = "scp.upstream_url"

	// NRF attributes
	AttrNRFOperation = "nrf.operation"
	AttrInstances    = "nrf.instances"
	AttrEvent        = "nrf.event"
)

// Span names for routing operations.
const (
	SpanProxy           = "scp.proxy"
	SpanDiscovery       = "scp.discovery"
	SpanUpstreamAttempt = "scp.upstream_attempt"
	SpanNotification    = "scp.notification"
	SpanHeartbeat       = "scp.heartbeat"
)

// WithRequest returns span options for an inbound proxy request.
func WithRequest(method, path, clientIP string) trace.SpanStartOption {
	return trace.WithAttributes(
		attribute.String(AttrMethod, method),
		attribute.String(AttrPath, path),
		attribute.String(AttrClientIP, clientIP),
	)
}

// WithInstance returns span options for an upstream attempt against a
// producer instance.
func WithInstance(instanceID string, attempt int) trace.SpanStartOption {
	return trace.WithAttributes(
		attribute.String(AttrInstanceID, instanceID),
		attribute.Int(AttrAttempt, attempt),
	)
}

// InjectTraceFields copies the active trace and span ids out of the
// context for structured logging.
func InjectTraceFields(ctx context.Context) (traceID, spanID string) {
	return TraceID(ctx), SpanID(ctx)
}
