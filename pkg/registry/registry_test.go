package registry

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nfmesh/scp/pkg/nrf"
)

// fakeClock is a manually advanced time source.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestRegistry(clock *fakeClock) *Registry {
	return New(Options{
		FailureThreshold: 3,
		CircuitTimeout:   30 * time.Second,
		CacheTTL:         300 * time.Second,
		SessionTTL:       300 * time.Second,
		Clock:            clock.Now,
	})
}

func TestMarkFailure_OpensCircuitAtThreshold(t *testing.T) {
	clock := newFakeClock()
	reg := newTestRegistry(clock)

	reg.MarkFailure("a")
	reg.MarkFailure("a")
	assert.True(t, reg.IsHealthyForSelection("a"), "below threshold stays healthy")

	reg.MarkFailure("a")
	assert.False(t, reg.IsHealthyForSelection("a"), "threshold crossed opens circuit")

	status, ok := reg.HealthSnapshot("a")
	require.True(t, ok)
	assert.False(t, status.IsHealthy)
	assert.Equal(t, 3, status.FailureCount)
	assert.Equal(t, clock.Now().Add(30*time.Second), status.CircuitOpenUntil)
}

func TestCircuit_HalfOpenAfterTimeout(t *testing.T) {
	clock := newFakeClock()
	reg := newTestRegistry(clock)

	for i := 0; i < 3; i++ {
		reg.MarkFailure("a")
	}
	assert.False(t, reg.IsHealthyForSelection("a"))

	// Still gated one tick before the deadline.
	clock.Advance(30*time.Second - time.Millisecond)
	assert.False(t, reg.IsHealthyForSelection("a"))

	// Deadline reached: half-open, probe admitted.
	clock.Advance(time.Millisecond)
	assert.True(t, reg.IsHealthyForSelection("a"))
}

func TestCircuit_FailureInHalfOpenExtendsWindow(t *testing.T) {
	clock := newFakeClock()
	reg := newTestRegistry(clock)

	for i := 0; i < 3; i++ {
		reg.MarkFailure("a")
	}
	clock.Advance(31 * time.Second)
	require.True(t, reg.IsHealthyForSelection("a"))

	// Probe fails: circuit reopens from now.
	reg.MarkFailure("a")
	assert.False(t, reg.IsHealthyForSelection("a"))

	status, _ := reg.HealthSnapshot("a")
	assert.Equal(t, clock.Now().Add(30*time.Second), status.CircuitOpenUntil)
}

func TestMarkSuccess_ClosesCircuit(t *testing.T) {
	clock := newFakeClock()
	reg := newTestRegistry(clock)

	for i := 0; i < 5; i++ {
		reg.MarkFailure("a")
	}
	require.False(t, reg.IsHealthyForSelection("a"))

	reg.MarkSuccess("a")
	assert.True(t, reg.IsHealthyForSelection("a"))

	status, ok := reg.HealthSnapshot("a")
	require.True(t, ok)
	assert.True(t, status.IsHealthy)
	assert.Zero(t, status.FailureCount)
	assert.True(t, status.CircuitOpenUntil.IsZero())
}

func TestIsHealthyForSelection_UnknownInstanceIsHealthy(t *testing.T) {
	reg := newTestRegistry(newFakeClock())
	assert.True(t, reg.IsHealthyForSelection("never-seen"))
}

func TestReservation_PairsIncrementAndDecrement(t *testing.T) {
	reg := newTestRegistry(newFakeClock())

	res := reg.AcquireConnection("a")
	assert.Equal(t, uint64(1), reg.ConnectionCount("a"))

	res.Release()
	assert.Equal(t, uint64(0), reg.ConnectionCount("a"))

	// Double release must not go negative.
	res.Release()
	assert.Equal(t, uint64(0), reg.ConnectionCount("a"))
}

func TestReservation_ConcurrentChurnNeverGoesNegative(t *testing.T) {
	reg := newTestRegistry(newFakeClock())

	const workers = 16
	const iterations = 200

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < iterations; i++ {
				res := reg.AcquireConnection("a")
				res.Release()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, uint64(0), reg.ConnectionCount("a"))
}

func TestReservation_ReleasedOnPanicUnwind(t *testing.T) {
	reg := newTestRegistry(newFakeClock())

	func() {
		defer func() { _ = recover() }()
		res := reg.AcquireConnection("a")
		defer res.Release()
		panic("upstream handler blew up")
	}()

	assert.Equal(t, uint64(0), reg.ConnectionCount("a"))
}

func TestAdvanceCursor_NoLostIncrements(t *testing.T) {
	reg := newTestRegistry(newFakeClock())

	const workers = 8
	const perWorker = 500

	seen := make([]map[uint64]bool, workers)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		seen[w] = make(map[uint64]bool, perWorker)
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				seen[w][reg.AdvanceCursor("AMF")] = true
			}
		}(w)
	}
	wg.Wait()

	// Strict interleaving: every cursor value handed out exactly once.
	all := make(map[uint64]bool)
	for w := range seen {
		for v := range seen[w] {
			assert.False(t, all[v], "cursor value %d handed out twice", v)
			all[v] = true
		}
	}
	assert.Len(t, all, workers*perWorker)
	assert.Equal(t, uint64(workers*perWorker), reg.AdvanceCursor("AMF"))
}

func TestAdvanceCursor_IndependentPerNFType(t *testing.T) {
	reg := newTestRegistry(newFakeClock())

	assert.Equal(t, uint64(0), reg.AdvanceCursor("AMF"))
	assert.Equal(t, uint64(1), reg.AdvanceCursor("AMF"))
	assert.Equal(t, uint64(0), reg.AdvanceCursor("SMF"))
}

func TestSession_ExpiresAfterTTL(t *testing.T) {
	clock := newFakeClock()
	reg := newTestRegistry(clock)

	reg.BindSession("sess-1", "AMF", "a")

	session, ok := reg.Session("sess-1")
	require.True(t, ok)
	assert.Equal(t, "a", session.InstanceID)
	assert.Equal(t, "AMF", session.NFType)

	clock.Advance(300 * time.Second)
	_, ok = reg.Session("sess-1")
	assert.False(t, ok)
}

func TestSession_LastWriterWins(t *testing.T) {
	reg := newTestRegistry(newFakeClock())

	reg.BindSession("sess-1", "AMF", "a")
	reg.BindSession("sess-1", "AMF", "b")

	session, ok := reg.Session("sess-1")
	require.True(t, ok)
	assert.Equal(t, "b", session.InstanceID)
}

func TestSweepSessions_RemovesOnlyExpired(t *testing.T) {
	clock := newFakeClock()
	reg := newTestRegistry(clock)

	reg.BindSession("old", "AMF", "a")
	clock.Advance(200 * time.Second)
	reg.BindSession("fresh", "AMF", "b")
	clock.Advance(100 * time.Second)

	removed := reg.SweepSessions()
	assert.Equal(t, 1, removed)

	_, ok := reg.Session("fresh")
	assert.True(t, ok)
}

func TestProfileCache_TTLAndClone(t *testing.T) {
	clock := newFakeClock()
	reg := newTestRegistry(clock)

	profile := nrf.Profile{
		NFInstanceID:  "a",
		NFType:        "AMF",
		IPv4Addresses: []string{"10.0.0.1"},
	}
	reg.UpsertProfile("nf_type_AMF", profile)

	cached, ok := reg.Profile("nf_type_AMF")
	require.True(t, ok)

	// The cache hands out clones, never shared memory.
	cached.IPv4Addresses[0] = "10.9.9.9"
	again, ok := reg.Profile("nf_type_AMF")
	require.True(t, ok)
	assert.Equal(t, "10.0.0.1", again.IPv4Addresses[0])

	clock.Advance(300 * time.Second)
	_, ok = reg.Profile("nf_type_AMF")
	assert.False(t, ok, "entry past TTL is not served")
}

func TestSweepProfiles_EvictsExpired(t *testing.T) {
	clock := newFakeClock()
	reg := newTestRegistry(clock)

	reg.UpsertProfile("a", nrf.Profile{NFInstanceID: "a"})
	clock.Advance(301 * time.Second)
	reg.UpsertProfile("b", nrf.Profile{NFInstanceID: "b"})

	assert.Equal(t, 2, reg.CacheSize())
	assert.Equal(t, 1, reg.SweepProfiles())
	assert.Equal(t, 1, reg.CacheSize())
}

func TestStats_MergesConnectionsAndHealth(t *testing.T) {
	reg := newTestRegistry(newFakeClock())

	res := reg.AcquireConnection("a")
	defer res.Release()
	for i := 0; i < 3; i++ {
		reg.MarkFailure("b")
	}

	stats := reg.Stats()
	byID := make(map[string]InstanceStats, len(stats))
	for _, s := range stats {
		byID[s.InstanceID] = s
	}

	require.Contains(t, byID, "a")
	require.Contains(t, byID, "b")
	assert.Equal(t, uint64(1), byID["a"].Connections)
	assert.True(t, byID["a"].Healthy)
	assert.False(t, byID["b"].Healthy)
	assert.Equal(t, 3, byID["b"].FailureCount)
}
