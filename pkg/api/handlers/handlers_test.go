package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nfmesh/scp/pkg/nrf"
	"github.com/nfmesh/scp/pkg/proxy"
	"github.com/nfmesh/scp/pkg/registry"
)

func TestHealth_ReturnsHealthy(t *testing.T) {
	handler := NewHealthHandler(nil, "1.0.0", "inst-1", false)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	handler.Health(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var resp HealthResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, "healthy", resp.Status)
}

func TestStatus_ReportsRegistryState(t *testing.T) {
	reg := registry.New(registry.Options{})
	reg.UpsertProfile("a", nrf.Profile{NFInstanceID: "a", NFType: "AMF"})
	res := reg.AcquireConnection("a")
	defer res.Release()

	handler := NewHealthHandler(reg, "1.2.3", "inst-1", true)

	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	w := httptest.NewRecorder()
	handler.Status(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var resp StatusResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, "SCP", resp.Service)
	assert.Equal(t, "1.2.3", resp.Version)
	assert.Equal(t, "inst-1", resp.NFInstanceID)
	assert.Equal(t, "connected", resp.NRFStatus)
	assert.Equal(t, 1, resp.CacheSize)
	require.Len(t, resp.LoadBalancer, 1)
	assert.Equal(t, uint64(1), resp.LoadBalancer[0].Connections)
}

func TestStatus_NRFNotConfigured(t *testing.T) {
	handler := NewHealthHandler(registry.New(registry.Options{}), "dev", "inst-1", false)

	w := httptest.NewRecorder()
	handler.Status(w, httptest.NewRequest(http.MethodGet, "/status", nil))

	var resp StatusResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, "not_configured", resp.NRFStatus)
}

func notifyBody(t *testing.T, notification nrf.Notification) *bytes.Reader {
	t.Helper()
	data, err := json.Marshal(notification)
	require.NoError(t, err)
	return bytes.NewReader(data)
}

func TestNotify_RegisteredUpsertsProfile(t *testing.T) {
	reg := registry.New(registry.Options{})
	handler := NewNotificationHandler(reg)

	notification := nrf.Notification{
		Event:         nrf.EventNFRegistered,
		NFInstanceURI: "http://nrf.core/nnrf-nfm/v1/nf-instances/inst-a",
		NFProfile: &nrf.Profile{
			NFInstanceID:  "inst-a",
			NFType:        "AMF",
			IPv4Addresses: []string{"10.0.0.1"},
		},
	}

	req := httptest.NewRequest(http.MethodPost, "/nrf-notify", notifyBody(t, notification))
	w := httptest.NewRecorder()
	handler.Notify(w, req)

	require.Equal(t, http.StatusNoContent, w.Code)

	cached, ok := reg.Profile("inst-a")
	require.True(t, ok, "profile cached under the extracted instance id")
	assert.Equal(t, "AMF", cached.NFType)
}

func TestNotify_DeregisteredRemovesProfile(t *testing.T) {
	reg := registry.New(registry.Options{})
	reg.UpsertProfile("inst-a", nrf.Profile{NFInstanceID: "inst-a"})
	handler := NewNotificationHandler(reg)

	notification := nrf.Notification{
		Event:         nrf.EventNFDeregistered,
		NFInstanceURI: "/nf-instances/inst-a",
	}

	w := httptest.NewRecorder()
	handler.Notify(w, httptest.NewRequest(http.MethodPost, "/nrf-notify", notifyBody(t, notification)))

	require.Equal(t, http.StatusNoContent, w.Code)
	_, ok := reg.Profile("inst-a")
	assert.False(t, ok)
}

func TestNotify_UpsertWithoutProfileIsDropped(t *testing.T) {
	reg := registry.New(registry.Options{})
	handler := NewNotificationHandler(reg)

	notification := nrf.Notification{
		Event:         nrf.EventNFProfileChanged,
		NFInstanceURI: "/nf-instances/inst-a",
	}

	w := httptest.NewRecorder()
	handler.Notify(w, httptest.NewRequest(http.MethodPost, "/nrf-notify", notifyBody(t, notification)))

	// Accepted but nothing synthesized.
	require.Equal(t, http.StatusNoContent, w.Code)
	assert.Zero(t, reg.CacheSize())
}

func TestNotify_MalformedBodyIs400(t *testing.T) {
	handler := NewNotificationHandler(registry.New(registry.Options{}))

	req := httptest.NewRequest(http.MethodPost, "/nrf-notify", bytes.NewReader([]byte("{not json")))
	w := httptest.NewRecorder()
	handler.Notify(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, ContentTypeProblemJSON, w.Header().Get("Content-Type"))
}

func TestNotify_UnknownEventIs400(t *testing.T) {
	handler := NewNotificationHandler(registry.New(registry.Options{}))

	body := []byte(`{"event":"NF_EXPLODED","nfInstanceUri":"/x/inst-a"}`)
	w := httptest.NewRecorder()
	handler.Notify(w, httptest.NewRequest(http.MethodPost, "/nrf-notify", bytes.NewReader(body)))

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestExtractInstanceID(t *testing.T) {
	assert.Equal(t, "inst-a", extractInstanceID("http://nrf/nnrf-nfm/v1/nf-instances/inst-a"))
	assert.Equal(t, "inst-a", extractInstanceID("inst-a"))
	assert.Equal(t, "trailing/", extractInstanceID("trailing/"))
}

func TestWriteError_PipelineErrorKeepsStatus(t *testing.T) {
	w := httptest.NewRecorder()
	WriteError(w, proxy.NewServiceUnavailable("all available producers failed", nil), "req-1")

	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, ContentTypeProblemJSON, w.Header().Get("Content-Type"))

	var problem Problem
	require.NoError(t, json.NewDecoder(w.Body).Decode(&problem))
	assert.Equal(t, http.StatusServiceUnavailable, problem.Status)
	assert.Equal(t, "all available producers failed", problem.Detail)
	assert.Equal(t, "req-1", problem.Instance)
}

func TestWriteError_UnknownErrorIs500WithoutDetail(t *testing.T) {
	w := httptest.NewRecorder()
	WriteError(w, errors.New("secret internal state"), "")

	require.Equal(t, http.StatusInternalServerError, w.Code)

	var problem Problem
	require.NoError(t, json.NewDecoder(w.Body).Decode(&problem))
	assert.NotContains(t, problem.Detail, "secret")
}

func TestStatusClass(t *testing.T) {
	assert.Equal(t, "2xx", statusClass(204))
	assert.Equal(t, "5xx", statusClass(503))
}
