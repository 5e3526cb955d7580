// Package api provides the SCP front HTTP server: the management
// endpoints and the catch-all proxy route.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/nfmesh/scp/internal/logger"
	"github.com/nfmesh/scp/pkg/api/handlers"
	"github.com/nfmesh/scp/pkg/api/middleware"
	"github.com/nfmesh/scp/pkg/config"
	"github.com/nfmesh/scp/pkg/metrics"
	"github.com/nfmesh/scp/pkg/proxy"
	"github.com/nfmesh/scp/pkg/registry"
)

// RouterDeps carries everything the router wires together.
type RouterDeps struct {
	Registry     *registry.Registry
	Engine       *proxy.Engine
	Metrics      *metrics.ProxyMetrics
	Version      string
	NFInstanceID string
	NRFEnabled   bool
	OAuth2       config.OAuth2Config
	MetricsPath  string
}

// NewRouter creates the chi router with all middleware and routes.
//
// Routes:
//   - GET /health - liveness probe (always open)
//   - GET /status - service status and load-balancer stats (always open)
//   - GET /metrics - Prometheus metrics, when enabled
//   - POST /nrf-notify - NRF notification sink
//   - everything else - proxied to a producer NF
func NewRouter(deps RouterDeps) http.Handler {
	r := chi.NewRouter()

	// Middleware stack - order matters
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(requestLogger)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"*"},
	}))

	healthHandler := handlers.NewHealthHandler(deps.Registry, deps.Version, deps.NFInstanceID, deps.NRFEnabled)
	notificationHandler := handlers.NewNotificationHandler(deps.Registry)
	proxyHandler := handlers.NewProxyHandler(deps.Engine, deps.Metrics)

	r.Get("/health", healthHandler.Health)
	r.Get("/status", healthHandler.Status)

	if metricsHandler := metrics.Handler(); metricsHandler != nil {
		r.Method(http.MethodGet, deps.MetricsPath, metricsHandler)
	}

	// The notification sink and the proxy path share the optional
	// OAuth2 gate; probes stay open.
	r.Group(func(r chi.Router) {
		if deps.OAuth2.Enabled {
			r.Use(middleware.OAuth2(middleware.OAuth2Options{
				Issuer:        deps.OAuth2.Issuer,
				Audience:      deps.OAuth2.Audience,
				RequiredScope: deps.OAuth2.RequiredScope,
				Secret:        []byte(deps.OAuth2.Secret),
			}))
		}

		r.Post("/nrf-notify", notificationHandler.Notify)
		r.HandleFunc("/*", proxyHandler.Proxy)
	})

	return r
}

// isProbePath returns true for endpoints polled by orchestration.
func isProbePath(path string) bool {
	return path == "/health" || path == "/status" || path == "/metrics"
}

// requestLogger logs request start at DEBUG and completion at INFO;
// probe endpoints complete at DEBUG to keep the logs quiet.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := chimiddleware.GetReqID(r.Context())

		logger.Debug("request started",
			logger.KeyRequestID, requestID,
			logger.KeyMethod, r.Method,
			logger.KeyPath, r.URL.Path,
			"remote_addr", r.RemoteAddr,
		)

		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		logArgs := []any{
			logger.KeyRequestID, requestID,
			logger.KeyMethod, r.Method,
			logger.KeyPath, r.URL.Path,
			logger.KeyStatus, ww.Status(),
			logger.KeyDurationMs, logger.Duration(start),
		}

		if isProbePath(r.URL.Path) {
			logger.Debug("request completed", logArgs...)
		} else {
			logger.Info("request completed", logArgs...)
		}
	})
}
