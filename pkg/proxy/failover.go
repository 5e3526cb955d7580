// Package proxy implements the request routing pipeline: NF-type
// extraction, producer selection, retry with backoff, instance-level
// failover, and upstream forwarding.
package proxy

import (
	"context"
	"errors"
	"net/http"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/nfmesh/scp/internal/logger"
	"github.com/nfmesh/scp/internal/telemetry"
	"github.com/nfmesh/scp/pkg/balancer"
	"github.com/nfmesh/scp/pkg/metrics"
	"github.com/nfmesh/scp/pkg/nrf"
	"github.com/nfmesh/scp/pkg/registry"
	"github.com/nfmesh/scp/pkg/retry"
)

// Request is one inbound request as seen by the failover loop. The
// body is buffered up front so it can be replayed across attempts and
// instances.
type Request struct {
	Method    string
	Path      string
	RawQuery  string
	SessionID string
	Header    http.Header
	Body      []byte
}

// Engine coordinates the routing pipeline for one request at a time:
// it discovers producers, selects one, drives the retry engine around
// upstream attempts, and fails over across distinct instances.
type Engine struct {
	registry  *registry.Registry
	selector  *balancer.Selector
	nrfClient nrf.Client
	forwarder *Forwarder
	retryCfg  retry.Config
	metrics   *metrics.ProxyMetrics
}

// NewEngine wires the routing pipeline. nrfClient may be nil when no
// NRF is configured; proxy requests then fail with 500.
func NewEngine(reg *registry.Registry, selector *balancer.Selector, nrfClient nrf.Client, forwarder *Forwarder, retryCfg retry.Config, m *metrics.ProxyMetrics) *Engine {
	return &Engine{
		registry:  reg,
		selector:  selector,
		nrfClient: nrfClient,
		forwarder: forwarder,
		retryCfg:  retryCfg,
		metrics:   m,
	}
}

// Handle routes one inbound request to a producer instance and returns
// the buffered upstream response. Errors are *Error values carrying
// the downstream status.
func (e *Engine) Handle(ctx context.Context, req *Request) (*UpstreamResponse, error) {
	nfType, err := NFTypeFromPath(req.Path)
	if err != nil {
		return nil, err
	}

	ctx, span := telemetry.Tracer().Start(ctx, telemetry.SpanProxy,
		trace.WithAttributes(
			attribute.String(telemetry.AttrNFType, nfType),
			attribute.String(telemetry.AttrPath, req.Path),
			attribute.String(telemetry.AttrMethod, req.Method),
		))
	defer span.End()

	if e.nrfClient == nil {
		return nil, NewInternal("NRF client not configured for proxy requests", nil)
	}

	instances, err := e.discover(ctx, nfType)
	if err != nil {
		return nil, err
	}

	lc := logger.FromContext(ctx).WithNFType(nfType)
	ctx = logger.WithContext(ctx, lc)

	excluded := make(map[string]bool, len(instances))
	var lastAttemptErr error

	// Outer loop: one iteration per distinct producer instance. The
	// retry engine absorbs transient failures of a single instance;
	// this loop absorbs persistent ones by shifting to the next.
	for range instances {
		remaining := instancesExcluding(instances, excluded)
		if len(remaining) == 0 {
			break
		}

		selected, err := e.selector.Select(balancer.PolicySticky, nfType, req.SessionID, remaining)
		if err != nil {
			return nil, NewServiceUnavailable("no healthy producers available", err)
		}
		e.metrics.ObserveSelection(balancer.PolicySticky.String())

		response, err := e.tryInstance(ctx, nfType, selected, req)
		if err == nil {
			e.registry.MarkSuccess(selected.NFInstanceID)
			return response, nil
		}

		lastAttemptErr = err
		e.metrics.ObserveFailover(nfType)
		excluded[selected.NFInstanceID] = true

		logger.WarnCtx(ctx, "producer failed after retries, failing over",
			logger.KeyInstanceID, selected.NFInstanceID,
			logger.KeyExcluded, len(excluded),
			logger.KeyError, err.Error(),
		)
	}

	return nil, e.exhaustedError(lastAttemptErr)
}

// discover queries the NRF for the instance list, one shot; discovery
// errors surface as 503 without retries. Discovered profiles refresh
// the cache entries the notification sink also maintains.
func (e *Engine) discover(ctx context.Context, nfType string) ([]nrf.Profile, error) {
	ctx, span := telemetry.Tracer().Start(ctx, telemetry.SpanDiscovery,
		trace.WithAttributes(attribute.String(telemetry.AttrNFType, nfType)))
	defer span.End()

	instances, err := e.nrfClient.Discover(ctx, nfType)
	if err != nil {
		return nil, NewServiceUnavailable("NF discovery failed", err)
	}
	if len(instances) == 0 {
		return nil, NewServiceUnavailable("no producers registered for NF type "+nfType, nil)
	}

	for _, instance := range instances {
		e.registry.UpsertProfile(instance.NFInstanceID, instance)
	}
	return instances, nil
}

// tryInstance drives the retry engine around upstream attempts against
// one producer. The connection reservation is held for the duration
// and released on every exit path.
func (e *Engine) tryInstance(ctx context.Context, nfType string, instance *nrf.Profile, req *Request) (*UpstreamResponse, error) {
	reservation := e.registry.AcquireConnection(instance.NFInstanceID)
	e.metrics.ConnectionAcquired(instance.NFInstanceID)
	defer func() {
		reservation.Release()
		e.metrics.ConnectionReleased(instance.NFInstanceID)
	}()

	attempt := 0
	return retry.Do(ctx, e.retryCfg, func(ctx context.Context) (*UpstreamResponse, error) {
		attempt++
		if attempt > 1 {
			e.metrics.ObserveRetry(nfType)
		}

		ctx, span := telemetry.Tracer().Start(ctx, telemetry.SpanUpstreamAttempt,
			trace.WithAttributes(
				attribute.String(telemetry.AttrInstanceID, instance.NFInstanceID),
				attribute.Int(telemetry.AttrAttempt, attempt),
			))
		defer span.End()

		response, err := e.forwarder.Forward(ctx, instance, req.Method, req.Path, req.RawQuery, req.Header, req.Body)
		if err != nil {
			e.metrics.ObserveAttempt(nfType, "failure")
			e.recordAttemptFailure(instance.NFInstanceID)
			return nil, err
		}
		e.metrics.ObserveAttempt(nfType, "success")
		return response, nil
	})
}

// recordAttemptFailure marks one failed upstream attempt and records a
// circuit-open transition when this failure tripped the breaker.
func (e *Engine) recordAttemptFailure(instanceID string) {
	healthyBefore := e.registry.IsHealthyForSelection(instanceID)
	e.registry.MarkFailure(instanceID)
	if healthyBefore && !e.registry.IsHealthyForSelection(instanceID) {
		e.metrics.ObserveCircuitOpen(instanceID)
	}
}

// exhaustedError converts the last per-instance failure into the
// downstream error once every producer has been excluded.
func (e *Engine) exhaustedError(lastErr error) error {
	if lastErr == nil {
		return NewServiceUnavailable("all available producers exhausted", nil)
	}

	var attemptErr *attemptError
	if errors.As(lastErr, &attemptErr) {
		if attemptErr.Transport != nil {
			return classifyTransport(attemptErr.Transport)
		}
		return NewServiceUnavailable("all available producers failed", lastErr)
	}

	var pipelineErr *Error
	if errors.As(lastErr, &pipelineErr) {
		return pipelineErr
	}
	return NewServiceUnavailable("all available producers failed", lastErr)
}

// instancesExcluding filters out instances already failed this request.
func instancesExcluding(instances []nrf.Profile, excluded map[string]bool) []nrf.Profile {
	if len(excluded) == 0 {
		return instances
	}
	remaining := make([]nrf.Profile, 0, len(instances))
	for _, instance := range instances {
		if !excluded[instance.NFInstanceID] {
			remaining = append(remaining, instance)
		}
	}
	return remaining
}
