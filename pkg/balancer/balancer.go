// Package balancer implements producer selection over a discovered
// instance list: round-robin, least-connections, weighted-by-capacity,
// and sticky-session policies, all gated by the registry's health state.
package balancer

import (
	"errors"
	"math/rand/v2"

	"github.com/nfmesh/scp/internal/logger"
	"github.com/nfmesh/scp/pkg/nrf"
	"github.com/nfmesh/scp/pkg/registry"
)

// Policy selects among the closed set of selection strategies.
type Policy int

const (
	PolicyRoundRobin Policy = iota
	PolicyLeastConnections
	PolicyWeighted
	PolicySticky
)

// String returns the policy name used in logs and metrics labels.
func (p Policy) String() string {
	switch p {
	case PolicyRoundRobin:
		return "round_robin"
	case PolicyLeastConnections:
		return "least_connections"
	case PolicyWeighted:
		return "weighted"
	case PolicySticky:
		return "sticky"
	default:
		return "unknown"
	}
}

// ErrNoHealthyInstances is returned in fail-fast mode when every
// candidate instance is gated by its circuit breaker.
var ErrNoHealthyInstances = errors.New("no healthy instances available")

// Selector applies a selection policy over an instance list using the
// registry's health, connection, cursor, and session tables.
type Selector struct {
	registry *registry.Registry

	// failFast refuses selection when every instance is gated instead
	// of admitting the least-bad candidate.
	failFast bool

	// draw returns a uniform integer in [0, max); overridable in tests.
	draw func(max uint64) uint64
}

// NewSelector creates a Selector over the given registry.
// When failFast is false (the default policy), selection falls back to
// the full instance list with a warning when every instance is gated,
// preferring liveness over safety.
func NewSelector(reg *registry.Registry, failFast bool) *Selector {
	return &Selector{
		registry: reg,
		failFast: failFast,
		draw:     rand.Uint64N,
	}
}

// Select chooses one instance from the list using the given policy.
// sessionID is consulted only by PolicySticky.
//
// The instance list must be non-empty; an empty list is an invariant
// violation by the caller (the failover loop filters before calling)
// and panics.
func (s *Selector) Select(policy Policy, nfType, sessionID string, instances []nrf.Profile) (*nrf.Profile, error) {
	if len(instances) == 0 {
		panic("balancer: select from empty instance list")
	}

	switch policy {
	case PolicyRoundRobin:
		return s.selectRoundRobin(nfType, instances)
	case PolicyLeastConnections:
		return s.selectLeastConnections(nfType, instances)
	case PolicyWeighted:
		return s.selectWeighted(nfType, instances)
	case PolicySticky:
		return s.selectSticky(nfType, sessionID, instances)
	default:
		panic("balancer: unknown selection policy")
	}
}

// candidates filters the list down to instances admitted by the health
// gate. When none pass, it falls back to the full list with a warning,
// or fails in fail-fast mode.
func (s *Selector) candidates(nfType string, instances []nrf.Profile) ([]nrf.Profile, error) {
	healthy := make([]nrf.Profile, 0, len(instances))
	for _, instance := range instances {
		if s.registry.IsHealthyForSelection(instance.NFInstanceID) {
			healthy = append(healthy, instance)
		}
	}

	if len(healthy) > 0 {
		return healthy, nil
	}
	if s.failFast {
		return nil, ErrNoHealthyInstances
	}

	logger.Warn("no healthy instances, falling back to full list",
		logger.KeyNFType, nfType,
		logger.KeyInstances, len(instances),
	)
	return instances, nil
}

func (s *Selector) selectRoundRobin(nfType string, instances []nrf.Profile) (*nrf.Profile, error) {
	candidates, err := s.candidates(nfType, instances)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 1 {
		return candidates[0].Clone(), nil
	}

	cursor := s.registry.AdvanceCursor(nfType)
	return candidates[cursor%uint64(len(candidates))].Clone(), nil
}

func (s *Selector) selectLeastConnections(nfType string, instances []nrf.Profile) (*nrf.Profile, error) {
	candidates, err := s.candidates(nfType, instances)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 1 {
		return candidates[0].Clone(), nil
	}

	selected := 0
	best := s.registry.ConnectionCount(candidates[0].NFInstanceID)
	for i := 1; i < len(candidates); i++ {
		count := s.registry.ConnectionCount(candidates[i].NFInstanceID)
		if count < best {
			best = count
			selected = i
		}
	}
	return candidates[selected].Clone(), nil
}

func (s *Selector) selectWeighted(nfType string, instances []nrf.Profile) (*nrf.Profile, error) {
	candidates, err := s.candidates(nfType, instances)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 1 {
		return candidates[0].Clone(), nil
	}

	var total uint64
	for _, instance := range candidates {
		total += uint64(instance.EffectiveCapacity())
	}
	if total == 0 {
		return candidates[0].Clone(), nil
	}

	draw := s.draw(total)
	for _, instance := range candidates {
		capacity := uint64(instance.EffectiveCapacity())
		if draw < capacity {
			return instance.Clone(), nil
		}
		draw -= capacity
	}
	return candidates[len(candidates)-1].Clone(), nil
}

// selectSticky returns the session's bound instance when the binding is
// still valid: not expired, same NF type, bound instance healthy and
// present in the current instance set. Otherwise it delegates to
// least-connections and installs a fresh binding.
func (s *Selector) selectSticky(nfType, sessionID string, instances []nrf.Profile) (*nrf.Profile, error) {
	if sessionID != "" {
		if session, ok := s.registry.Session(sessionID); ok && session.NFType == nfType {
			for _, instance := range instances {
				if instance.NFInstanceID != session.InstanceID {
					continue
				}
				if s.registry.IsHealthyForSelection(instance.NFInstanceID) {
					return instance.Clone(), nil
				}
				break
			}
			// Bound instance unhealthy or gone; rebind below.
			s.registry.InvalidateSession(sessionID)
		}
	}

	selected, err := s.selectLeastConnections(nfType, instances)
	if err != nil {
		return nil, err
	}
	if sessionID != "" {
		s.registry.BindSession(sessionID, nfType, selected.NFInstanceID)
	}
	return selected, nil
}
