// Package registry holds the process-wide routing state of the proxy:
// the NF profile cache, per-instance health with circuit breaking,
// live connection counts, round-robin cursors, and sticky sessions.
//
// All tables are striped concurrent maps; mutations are atomic per key
// and no lock is held across a suspension point. Profiles read out of
// the cache are cloned so upstream calls never share registry memory.
package registry

import (
	"time"

	"github.com/nfmesh/scp/internal/logger"
	"github.com/nfmesh/scp/pkg/nrf"
)

// Defaults for the health gate and the TTL tables.
const (
	DefaultFailureThreshold = 3
	DefaultCircuitTimeout   = 30 * time.Second
	DefaultCacheTTL         = 300 * time.Second
	DefaultSessionTTL       = 300 * time.Second
)

// HealthStatus is the per-instance circuit breaker state.
// Absence from the table means healthy.
type HealthStatus struct {
	IsHealthy        bool
	FailureCount     int
	LastFailure      time.Time
	CircuitOpenUntil time.Time
}

// StickySession binds a client session id to a producer instance for a
// given NF type until the session TTL elapses.
type StickySession struct {
	InstanceID string
	NFType     string
	CreatedAt  time.Time
}

// InstanceStats is a point-in-time snapshot of one instance's state,
// exposed through the /status endpoint.
type InstanceStats struct {
	InstanceID   string `json:"instanceId"`
	Connections  uint64 `json:"connections"`
	Healthy      bool   `json:"healthy"`
	FailureCount int    `json:"failureCount"`
}

// Options configures a Registry. Zero fields take the package defaults.
type Options struct {
	FailureThreshold int
	CircuitTimeout   time.Duration
	CacheTTL         time.Duration
	SessionTTL       time.Duration

	// Clock overrides the time source, for tests.
	Clock func() time.Time
}

// Registry is the shared mutable state of the routing pipeline.
type Registry struct {
	failureThreshold int
	circuitTimeout   time.Duration
	cacheTTL         time.Duration
	sessionTTL       time.Duration
	now              func() time.Time

	profiles    *shardedMap[nrf.CachedProfile]
	health      *shardedMap[HealthStatus]
	connections *shardedMap[uint64]
	rrIndex     *shardedMap[uint64]
	sessions    *shardedMap[StickySession]
}

// New creates a Registry with the given options.
func New(opts Options) *Registry {
	if opts.FailureThreshold <= 0 {
		opts.FailureThreshold = DefaultFailureThreshold
	}
	if opts.CircuitTimeout <= 0 {
		opts.CircuitTimeout = DefaultCircuitTimeout
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = DefaultCacheTTL
	}
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = DefaultSessionTTL
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}

	return &Registry{
		failureThreshold: opts.FailureThreshold,
		circuitTimeout:   opts.CircuitTimeout,
		cacheTTL:         opts.CacheTTL,
		sessionTTL:       opts.SessionTTL,
		now:              opts.Clock,
		profiles:         newShardedMap[nrf.CachedProfile](),
		health:           newShardedMap[HealthStatus](),
		connections:      newShardedMap[uint64](),
		rrIndex:          newShardedMap[uint64](),
		sessions:         newShardedMap[StickySession](),
	}
}

// SessionTTL returns the configured sticky-session lifetime.
func (r *Registry) SessionTTL() time.Duration {
	return r.sessionTTL
}

// MarkFailure records a failed upstream outcome for an instance.
// Crossing the failure threshold opens the circuit for the configured
// timeout; further failures in half-open state extend it.
func (r *Registry) MarkFailure(instanceID string) {
	now := r.now()
	threshold := r.failureThreshold
	timeout := r.circuitTimeout

	status := r.health.update(instanceID, func(current HealthStatus, exists bool) HealthStatus {
		if !exists {
			current = HealthStatus{IsHealthy: true}
		}
		current.FailureCount++
		current.LastFailure = now
		if current.FailureCount >= threshold {
			current.IsHealthy = false
			current.CircuitOpenUntil = now.Add(timeout)
		}
		return current
	})

	if !status.IsHealthy {
		logger.Warn("NF instance marked unhealthy, circuit open",
			logger.KeyInstanceID, instanceID,
			logger.KeyFailureCount, status.FailureCount,
			logger.KeyOpenUntil, status.CircuitOpenUntil,
		)
	}
}

// MarkSuccess records a successful upstream outcome, closing the
// circuit and resetting the failure counter. This is the recovery edge
// after a half-open probe.
func (r *Registry) MarkSuccess(instanceID string) {
	recovered := false
	r.health.update(instanceID, func(current HealthStatus, exists bool) HealthStatus {
		recovered = exists && !current.IsHealthy
		current.IsHealthy = true
		current.FailureCount = 0
		current.CircuitOpenUntil = time.Time{}
		return current
	})
	if recovered {
		logger.Info("NF instance recovered", logger.KeyInstanceID, instanceID)
	}
}

// IsHealthyForSelection reports whether the instance may be offered to
// the selector. Unknown instances are healthy. An instance whose
// circuit-open window has elapsed is admitted as a half-open probe; the
// probe's outcome drives the next transition.
func (r *Registry) IsHealthyForSelection(instanceID string) bool {
	status, ok := r.health.get(instanceID)
	if !ok {
		return true
	}
	if !status.CircuitOpenUntil.IsZero() && !r.now().Before(status.CircuitOpenUntil) {
		return true
	}
	return status.IsHealthy
}

// HealthSnapshot returns the health entry for an instance, if any.
func (r *Registry) HealthSnapshot(instanceID string) (HealthStatus, bool) {
	return r.health.get(instanceID)
}

// ConnectionCount returns the live in-flight count for an instance.
func (r *Registry) ConnectionCount(instanceID string) uint64 {
	count, _ := r.connections.get(instanceID)
	return count
}

// incrementConnections and decrementConnections are reached only
// through Reservation so increments and decrements stay paired.
func (r *Registry) incrementConnections(instanceID string) {
	r.connections.update(instanceID, func(current uint64, _ bool) uint64 {
		return current + 1
	})
}

func (r *Registry) decrementConnections(instanceID string) {
	r.connections.updateExisting(instanceID, func(current uint64) uint64 {
		if current == 0 {
			return 0
		}
		return current - 1
	})
}

// AdvanceCursor returns the current round-robin cursor for an NF type
// and advances it by one, as a single atomic read-modify-write.
func (r *Registry) AdvanceCursor(nfType string) uint64 {
	next := r.rrIndex.update(nfType, func(current uint64, _ bool) uint64 {
		return current + 1
	})
	return next - 1
}

// Session returns the non-expired sticky session for a session id.
func (r *Registry) Session(sessionID string) (StickySession, bool) {
	session, ok := r.sessions.get(sessionID)
	if !ok {
		return StickySession{}, false
	}
	if r.now().Sub(session.CreatedAt) >= r.sessionTTL {
		return StickySession{}, false
	}
	return session, true
}

// BindSession installs (last-writer-wins) a sticky binding for a
// session id.
func (r *Registry) BindSession(sessionID, nfType, instanceID string) {
	r.sessions.set(sessionID, StickySession{
		InstanceID: instanceID,
		NFType:     nfType,
		CreatedAt:  r.now(),
	})
}

// InvalidateSession drops a sticky binding.
func (r *Registry) InvalidateSession(sessionID string) {
	r.sessions.delete(sessionID)
}

// SweepSessions evicts expired sticky sessions and returns the number
// removed. Called by the background cleanup loop.
func (r *Registry) SweepSessions() int {
	cutoff := r.now().Add(-r.sessionTTL)
	return r.sessions.deleteIf(func(_ string, s StickySession) bool {
		return !s.CreatedAt.After(cutoff)
	})
}

// UpsertProfile inserts or refreshes a cached profile under the given
// cache key (the instance id, on both the notification path and the
// discovery path).
func (r *Registry) UpsertProfile(cacheKey string, profile nrf.Profile) {
	r.profiles.set(cacheKey, nrf.CachedProfile{
		Profile:  profile,
		CachedAt: r.now(),
	})
}

// RemoveProfile evicts a cache entry.
func (r *Registry) RemoveProfile(cacheKey string) {
	r.profiles.delete(cacheKey)
}

// Profile returns a clone of the cached profile for key, if present and
// within the cache TTL.
func (r *Registry) Profile(cacheKey string) (*nrf.Profile, bool) {
	cached, ok := r.profiles.get(cacheKey)
	if !ok {
		return nil, false
	}
	if r.now().Sub(cached.CachedAt) >= r.cacheTTL {
		return nil, false
	}
	return cached.Profile.Clone(), true
}

// CacheSize returns the number of cached profile entries, including any
// not yet swept expired ones.
func (r *Registry) CacheSize() int {
	return r.profiles.length()
}

// SweepProfiles evicts cache entries older than the cache TTL and
// returns the number removed.
func (r *Registry) SweepProfiles() int {
	cutoff := r.now().Add(-r.cacheTTL)
	return r.profiles.deleteIf(func(_ string, cached nrf.CachedProfile) bool {
		return !cached.CachedAt.After(cutoff)
	})
}

// Stats returns a snapshot of per-instance connection counts and health
// for every instance the registry has observed.
func (r *Registry) Stats() []InstanceStats {
	byInstance := make(map[string]*InstanceStats)

	get := func(id string) *InstanceStats {
		if s, ok := byInstance[id]; ok {
			return s
		}
		s := &InstanceStats{InstanceID: id, Healthy: true}
		byInstance[id] = s
		return s
	}

	r.connections.forEach(func(id string, count uint64) {
		get(id).Connections = count
	})
	r.health.forEach(func(id string, status HealthStatus) {
		s := get(id)
		s.Healthy = status.IsHealthy
		s.FailureCount = status.FailureCount
	})

	stats := make([]InstanceStats, 0, len(byInstance))
	for _, s := range byInstance {
		stats = append(stats, *s)
	}
	return stats
}
