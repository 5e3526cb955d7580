package registry

import (
	"context"
	"time"

	"github.com/nfmesh/scp/internal/logger"
)

// Janitor periodically evicts expired profile cache entries and sticky
// sessions. It runs independently of request servicing and exits when
// its context is cancelled.
type Janitor struct {
	registry *Registry
	interval time.Duration
}

// NewJanitor creates a cleanup loop over the registry's TTL tables.
func NewJanitor(reg *Registry, interval time.Duration) *Janitor {
	return &Janitor{registry: reg, interval: interval}
}

// Run blocks until ctx is cancelled, sweeping once per interval.
func (j *Janitor) Run(ctx context.Context) error {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			profiles := j.registry.SweepProfiles()
			sessions := j.registry.SweepSessions()
			if profiles > 0 || sessions > 0 {
				logger.Debug("registry sweep complete",
					"profiles_evicted", profiles,
					"sessions_evicted", sessions,
				)
			}
		}
	}
}
