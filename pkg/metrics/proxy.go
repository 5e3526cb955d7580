package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ProxyMetrics is the metric set for the request routing pipeline.
// A nil *ProxyMetrics is valid and all methods no-op, so the hot path
// carries no conditionals beyond a nil check.
type ProxyMetrics struct {
	requestsTotal     *prometheus.CounterVec
	requestDuration   *prometheus.HistogramVec
	upstreamAttempts  *prometheus.CounterVec
	retriesTotal      *prometheus.CounterVec
	failoversTotal    *prometheus.CounterVec
	selectionsTotal   *prometheus.CounterVec
	circuitOpensTotal *prometheus.CounterVec
	inflightUpstream  *prometheus.GaugeVec
}

// NewProxyMetrics creates the proxy metric set, or nil when metrics
// are disabled.
func NewProxyMetrics() *ProxyMetrics {
	if !IsEnabled() {
		return nil
	}

	reg := GetRegistry()

	return &ProxyMetrics{
		requestsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "scp_proxy_requests_total",
				Help: "Proxied requests by target NF type and status class",
			},
			[]string{"nf_type", "status_class"},
		),
		requestDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "scp_proxy_request_duration_seconds",
				Help:    "End-to-end proxied request duration",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"nf_type"},
		),
		upstreamAttempts: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "scp_upstream_attempts_total",
				Help: "Upstream HTTP attempts by NF type and outcome",
			},
			[]string{"nf_type", "outcome"},
		),
		retriesTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "scp_upstream_retries_total",
				Help: "Retried upstream attempts by NF type",
			},
			[]string{"nf_type"},
		),
		failoversTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "scp_failovers_total",
				Help: "Instance failovers by NF type",
			},
			[]string{"nf_type"},
		),
		selectionsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "scp_selections_total",
				Help: "Producer selections by policy",
			},
			[]string{"policy"},
		),
		circuitOpensTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "scp_circuit_opens_total",
				Help: "Circuit breaker open transitions by instance",
			},
			[]string{"instance_id"},
		),
		inflightUpstream: promauto.With(reg).NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "scp_upstream_inflight_connections",
				Help: "Live upstream connections by instance",
			},
			[]string{"instance_id"},
		),
	}
}

// ObserveRequest records a completed proxied request.
func (m *ProxyMetrics) ObserveRequest(nfType string, statusClass string, seconds float64) {
	if m == nil {
		return
	}
	m.requestsTotal.WithLabelValues(nfType, statusClass).Inc()
	m.requestDuration.WithLabelValues(nfType).Observe(seconds)
}

// ObserveAttempt records one upstream attempt outcome ("success" or "failure").
func (m *ProxyMetrics) ObserveAttempt(nfType, outcome string) {
	if m == nil {
		return
	}
	m.upstreamAttempts.WithLabelValues(nfType, outcome).Inc()
}

// ObserveRetry records a retried attempt.
func (m *ProxyMetrics) ObserveRetry(nfType string) {
	if m == nil {
		return
	}
	m.retriesTotal.WithLabelValues(nfType).Inc()
}

// ObserveFailover records a shift to a different producer instance.
func (m *ProxyMetrics) ObserveFailover(nfType string) {
	if m == nil {
		return
	}
	m.failoversTotal.WithLabelValues(nfType).Inc()
}

// ObserveSelection records one producer selection by policy.
func (m *ProxyMetrics) ObserveSelection(policy string) {
	if m == nil {
		return
	}
	m.selectionsTotal.WithLabelValues(policy).Inc()
}

// ObserveCircuitOpen records a circuit breaker opening for an instance.
func (m *ProxyMetrics) ObserveCircuitOpen(instanceID string) {
	if m == nil {
		return
	}
	m.circuitOpensTotal.WithLabelValues(instanceID).Inc()
}

// ConnectionAcquired / ConnectionReleased track the in-flight gauge
// alongside the registry's connection counts.
func (m *ProxyMetrics) ConnectionAcquired(instanceID string) {
	if m == nil {
		return
	}
	m.inflightUpstream.WithLabelValues(instanceID).Inc()
}

func (m *ProxyMetrics) ConnectionReleased(instanceID string) {
	if m == nil {
		return
	}
	m.inflightUpstream.WithLabelValues(instanceID).Dec()
}
