package proxy

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nfmesh/scp/pkg/balancer"
	"github.com/nfmesh/scp/pkg/nrf"
	"github.com/nfmesh/scp/pkg/registry"
	"github.com/nfmesh/scp/pkg/retry"
)

// fakeNRF implements nrf.Client over a fixed instance list.
type fakeNRF struct {
	instances []nrf.Profile
	err       error
	discovers int
}

func (f *fakeNRF) Register(ctx context.Context, profile *nrf.Profile) (*nrf.Profile, error) {
	return profile, nil
}

func (f *fakeNRF) Discover(ctx context.Context, targetNFType string) ([]nrf.Profile, error) {
	f.discovers++
	if f.err != nil {
		return nil, f.err
	}
	return f.instances, nil
}

func (f *fakeNRF) Deregister(ctx context.Context, instanceID string) error {
	return nil
}

// countingUpstream is an httptest server returning a scripted sequence
// of status codes, then the last one forever.
type countingUpstream struct {
	srv      *httptest.Server
	calls    atomic.Int64
	statuses []int
	body     string
}

func newCountingUpstream(t *testing.T, body string, statuses ...int) *countingUpstream {
	t.Helper()
	u := &countingUpstream{statuses: statuses, body: body}
	u.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		call := int(u.calls.Add(1)) - 1
		status := u.statuses[len(u.statuses)-1]
		if call < len(u.statuses) {
			status = u.statuses[call]
		}
		w.WriteHeader(status)
		if status < 300 {
			_, _ = w.Write([]byte(u.body))
		}
	}))
	t.Cleanup(u.srv.Close)
	return u
}

func (u *countingUpstream) profile(id string) nrf.Profile {
	return nrf.Profile{
		NFInstanceID:  id,
		NFType:        "AMF",
		NFStatus:      "REGISTERED",
		FQDN:          u.srv.Listener.Addr().String(),
		IPv4Addresses: []string{"127.0.0.1"},
	}
}

func fastRetry() retry.Config {
	return retry.Config{
		MaxAttempts:       3,
		InitialBackoff:    time.Millisecond,
		MaxBackoff:        4 * time.Millisecond,
		BackoffMultiplier: 2.0,
	}
}

func newTestEngine(reg *registry.Registry, client nrf.Client) *Engine {
	return NewEngine(
		reg,
		balancer.NewSelector(reg, false),
		client,
		NewForwarder(nil),
		fastRetry(),
		nil, // metrics disabled
	)
}

func pipelineStatus(t *testing.T, err error) int {
	t.Helper()
	var perr *Error
	require.ErrorAs(t, err, &perr)
	return perr.Status
}

func TestHandle_HappyPath(t *testing.T) {
	upstream := newCountingUpstream(t, `{"ueContext":"123"}`, http.StatusOK)
	reg := registry.New(registry.Options{})
	engine := newTestEngine(reg, &fakeNRF{instances: []nrf.Profile{upstream.profile("a")}})

	resp, err := engine.Handle(context.Background(), &Request{
		Method:    http.MethodGet,
		Path:      "/namf-comm/v1/ue-contexts/123",
		SessionID: "10.1.1.1",
	})

	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, `{"ueContext":"123"}`, string(resp.Body))
	assert.Equal(t, int64(1), upstream.calls.Load())
	assert.Equal(t, uint64(0), reg.ConnectionCount("a"), "reservation released after completion")
}

func TestHandle_RetryThenSuccess(t *testing.T) {
	upstream := newCountingUpstream(t, "ok", http.StatusServiceUnavailable, http.StatusOK)
	reg := registry.New(registry.Options{})
	engine := newTestEngine(reg, &fakeNRF{instances: []nrf.Profile{upstream.profile("a")}})

	start := time.Now()
	resp, err := engine.Handle(context.Background(), &Request{
		Method:    http.MethodGet,
		Path:      "/namf-comm/v1/x",
		SessionID: "10.1.1.1",
	})

	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, int64(2), upstream.calls.Load(), "one retry, two upstream calls")
	assert.GreaterOrEqual(t, time.Since(start), time.Millisecond, "one backoff sleep observed")

	status, ok := reg.HealthSnapshot("a")
	require.True(t, ok)
	assert.Zero(t, status.FailureCount, "mark_success cleared the failure count")
}

func TestHandle_FailoverToSecondInstance(t *testing.T) {
	bad := newCountingUpstream(t, "", http.StatusServiceUnavailable)
	good := newCountingUpstream(t, "from-b", http.StatusOK)

	reg := registry.New(registry.Options{})
	engine := newTestEngine(reg, &fakeNRF{instances: []nrf.Profile{
		bad.profile("a"),
		good.profile("b"),
	}})

	resp, err := engine.Handle(context.Background(), &Request{
		Method:    http.MethodGet,
		Path:      "/namf-comm/v1/x",
		SessionID: "10.1.1.1",
	})

	require.NoError(t, err)
	assert.Equal(t, "from-b", string(resp.Body))
	assert.Equal(t, int64(3), bad.calls.Load(), "all three attempts burned on A")
	assert.Equal(t, int64(1), good.calls.Load(), "B succeeded first try")

	// A's three failures tripped the breaker; B is clean.
	assert.False(t, reg.IsHealthyForSelection("a"))
	assert.True(t, reg.IsHealthyForSelection("b"))

	assert.Equal(t, uint64(0), reg.ConnectionCount("a"))
	assert.Equal(t, uint64(0), reg.ConnectionCount("b"))
}

func TestHandle_CircuitOpenInstanceIsSkipped(t *testing.T) {
	gated := newCountingUpstream(t, "never", http.StatusOK)
	healthy := newCountingUpstream(t, "served", http.StatusOK)

	reg := registry.New(registry.Options{})
	for i := 0; i < registry.DefaultFailureThreshold; i++ {
		reg.MarkFailure("a")
	}

	engine := newTestEngine(reg, &fakeNRF{instances: []nrf.Profile{
		gated.profile("a"),
		healthy.profile("b"),
	}})

	resp, err := engine.Handle(context.Background(), &Request{
		Method:    http.MethodGet,
		Path:      "/namf-comm/v1/x",
		SessionID: "10.1.1.1",
	})

	require.NoError(t, err)
	assert.Equal(t, "served", string(resp.Body))
	assert.Zero(t, gated.calls.Load(), "circuit-open instance never contacted")
}

func TestHandle_AllGatedFallbackStillServes(t *testing.T) {
	only := newCountingUpstream(t, "admitted", http.StatusOK)

	reg := registry.New(registry.Options{})
	for i := 0; i < registry.DefaultFailureThreshold; i++ {
		reg.MarkFailure("a")
	}

	engine := newTestEngine(reg, &fakeNRF{instances: []nrf.Profile{only.profile("a")}})

	resp, err := engine.Handle(context.Background(), &Request{
		Method:    http.MethodGet,
		Path:      "/namf-comm/v1/x",
		SessionID: "10.1.1.1",
	})

	require.NoError(t, err)
	assert.Equal(t, "admitted", string(resp.Body))
}

func TestHandle_StickyContinuityAcrossRequests(t *testing.T) {
	a := newCountingUpstream(t, "a", http.StatusOK)
	b := newCountingUpstream(t, "b", http.StatusOK)
	c := newCountingUpstream(t, "c", http.StatusOK)

	reg := registry.New(registry.Options{})
	engine := newTestEngine(reg, &fakeNRF{instances: []nrf.Profile{
		a.profile("a"), b.profile("b"), c.profile("c"),
	}})

	var first string
	for i := 0; i < 5; i++ {
		resp, err := engine.Handle(context.Background(), &Request{
			Method:    http.MethodGet,
			Path:      "/namf-comm/v1/x",
			SessionID: "10.2.2.2",
		})
		require.NoError(t, err)
		if first == "" {
			first = string(resp.Body)
		}
		assert.Equal(t, first, string(resp.Body), "session stays bound to one producer")
	}

	total := a.calls.Load() + b.calls.Load() + c.calls.Load()
	assert.Equal(t, int64(5), total)
	assert.Contains(t, []int64{a.calls.Load(), b.calls.Load(), c.calls.Load()}, int64(5),
		"all five requests landed on the same instance")
}

func TestHandle_AllInstancesFail(t *testing.T) {
	a := newCountingUpstream(t, "", http.StatusInternalServerError)
	b := newCountingUpstream(t, "", http.StatusBadGateway)

	reg := registry.New(registry.Options{})
	engine := newTestEngine(reg, &fakeNRF{instances: []nrf.Profile{
		a.profile("a"), b.profile("b"),
	}})

	_, err := engine.Handle(context.Background(), &Request{
		Method:    http.MethodGet,
		Path:      "/namf-comm/v1/x",
		SessionID: "10.1.1.1",
	})

	assert.Equal(t, http.StatusServiceUnavailable, pipelineStatus(t, err))
	assert.Equal(t, int64(3), a.calls.Load())
	assert.Equal(t, int64(3), b.calls.Load())
}

func TestHandle_BadPathIs400BeforeDiscovery(t *testing.T) {
	client := &fakeNRF{}
	engine := newTestEngine(registry.New(registry.Options{}), client)

	_, err := engine.Handle(context.Background(), &Request{
		Method: http.MethodGet,
		Path:   "/foo/bar",
	})

	assert.Equal(t, http.StatusBadRequest, pipelineStatus(t, err))
	assert.Zero(t, client.discovers, "no discovery for unroutable paths")
}

func TestHandle_NoNRFClientIs500(t *testing.T) {
	engine := newTestEngine(registry.New(registry.Options{}), nil)

	_, err := engine.Handle(context.Background(), &Request{
		Method: http.MethodGet,
		Path:   "/namf-comm/v1/x",
	})

	assert.Equal(t, http.StatusInternalServerError, pipelineStatus(t, err))
}

func TestHandle_DiscoveryErrorIs503(t *testing.T) {
	engine := newTestEngine(registry.New(registry.Options{}),
		&fakeNRF{err: errors.New("nrf unreachable")})

	_, err := engine.Handle(context.Background(), &Request{
		Method: http.MethodGet,
		Path:   "/namf-comm/v1/x",
	})

	assert.Equal(t, http.StatusServiceUnavailable, pipelineStatus(t, err))
}

func TestHandle_EmptyDiscoveryIs503(t *testing.T) {
	engine := newTestEngine(registry.New(registry.Options{}), &fakeNRF{})

	_, err := engine.Handle(context.Background(), &Request{
		Method: http.MethodGet,
		Path:   "/namf-comm/v1/x",
	})

	assert.Equal(t, http.StatusServiceUnavailable, pipelineStatus(t, err))
}

func TestHandle_BodyReplayedAcrossAttempts(t *testing.T) {
	var bodies []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		buf := make([]byte, 64)
		n, _ := r.Body.Read(buf)
		bodies = append(bodies, string(buf[:n]))
		if len(bodies) < 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	profile := nrf.Profile{
		NFInstanceID: "a",
		NFType:       "SMF",
		FQDN:         srv.Listener.Addr().String(),
	}
	reg := registry.New(registry.Options{})
	engine := newTestEngine(reg, &fakeNRF{instances: []nrf.Profile{profile}})

	resp, err := engine.Handle(context.Background(), &Request{
		Method:    http.MethodPost,
		Path:      "/nsmf-pdusession/v1/sm-contexts",
		SessionID: "10.1.1.1",
		Body:      []byte("sm-context"),
	})

	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	require.Len(t, bodies, 2)
	assert.Equal(t, "sm-context", bodies[0])
	assert.Equal(t, "sm-context", bodies[1], "buffered body replayed on retry")
}

func TestHandle_DiscoveryRefreshesProfileCache(t *testing.T) {
	upstream := newCountingUpstream(t, "ok", http.StatusOK)
	reg := registry.New(registry.Options{})
	engine := newTestEngine(reg, &fakeNRF{instances: []nrf.Profile{upstream.profile("a")}})

	_, err := engine.Handle(context.Background(), &Request{
		Method:    http.MethodGet,
		Path:      "/namf-comm/v1/x",
		SessionID: "10.1.1.1",
	})

	require.NoError(t, err)
	cached, ok := reg.Profile("a")
	require.True(t, ok)
	assert.Equal(t, "AMF", cached.NFType)
}
