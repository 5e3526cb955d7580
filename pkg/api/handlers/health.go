package handlers

import (
	"net/http"
	"time"

	"github.com/nfmesh/scp/pkg/registry"
)

// HealthResponse is the /health body.
type HealthResponse struct {
	Status string `json:"status"`
}

// StatusResponse is the /status body.
type StatusResponse struct {
	Service       string                   `json:"service"`
	Version       string                   `json:"version"`
	NFInstanceID  string                   `json:"nfInstanceId"`
	UptimeSeconds int64                    `json:"uptimeSeconds"`
	NRFStatus     string                   `json:"nrfStatus"`
	CacheSize     int                      `json:"cacheSize"`
	LoadBalancer  []registry.InstanceStats `json:"loadBalancer"`
}

// HealthHandler serves the liveness and status endpoints.
type HealthHandler struct {
	registry     *registry.Registry
	version      string
	nfInstanceID string
	nrfEnabled   bool
	startedAt    time.Time
}

// NewHealthHandler creates the health/status handler.
func NewHealthHandler(reg *registry.Registry, version, nfInstanceID string, nrfEnabled bool) *HealthHandler {
	return &HealthHandler{
		registry:     reg,
		version:      version,
		nfInstanceID: nfInstanceID,
		nrfEnabled:   nrfEnabled,
		startedAt:    time.Now(),
	}
}

// Health handles GET /health.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, HealthResponse{Status: "healthy"})
}

// Status handles GET /status.
func (h *HealthHandler) Status(w http.ResponseWriter, r *http.Request) {
	nrfStatus := "not_configured"
	if h.nrfEnabled {
		nrfStatus = "connected"
	}

	stats := []registry.InstanceStats{}
	cacheSize := 0
	if h.registry != nil {
		stats = h.registry.Stats()
		cacheSize = h.registry.CacheSize()
	}

	WriteJSON(w, http.StatusOK, StatusResponse{
		Service:       "SCP",
		Version:       h.version,
		NFInstanceID:  h.nfInstanceID,
		UptimeSeconds: int64(time.Since(h.startedAt).Seconds()),
		NRFStatus:     nrfStatus,
		CacheSize:     cacheSize,
		LoadBalancer:  stats,
	})
}
