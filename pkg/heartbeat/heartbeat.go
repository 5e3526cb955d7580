// Package heartbeat maintains this SCP's own registration with the
// NRF: an initial PUT at startup, a periodic re-PUT, and a DELETE on
// shutdown.
package heartbeat

import (
	"context"
	"time"

	"github.com/nfmesh/scp/internal/logger"
	"github.com/nfmesh/scp/pkg/nrf"
)

// Loop re-asserts the SCP's NF profile with the NRF on a fixed period.
// Registration failures are logged and the loop continues; a missed
// heartbeat is not fatal to serving.
type Loop struct {
	client   nrf.Client
	profile  nrf.Profile
	interval time.Duration
}

// New creates a heartbeat loop. client must be non-nil.
func New(client nrf.Client, profile nrf.Profile, interval time.Duration) *Loop {
	return &Loop{
		client:   client,
		profile:  profile,
		interval: interval,
	}
}

// Run registers immediately, then re-registers every interval until
// ctx is cancelled, and finally deregisters. Run always returns nil;
// it exists to fit errgroup-style supervision.
func (l *Loop) Run(ctx context.Context) error {
	l.register(ctx)

	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			l.deregister()
			return nil
		case <-ticker.C:
			l.register(ctx)
		}
	}
}

func (l *Loop) register(ctx context.Context) {
	if _, err := l.client.Register(ctx, &l.profile); err != nil {
		logger.Error("NRF registration failed",
			logger.KeyInstanceID, l.profile.NFInstanceID,
			logger.KeyError, err.Error(),
		)
		return
	}
	logger.Debug("NRF heartbeat sent", logger.KeyInstanceID, l.profile.NFInstanceID)
}

// deregister runs with its own deadline since the loop's context is
// already cancelled during shutdown.
func (l *Loop) deregister() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := l.client.Deregister(ctx, l.profile.NFInstanceID); err != nil {
		logger.Warn("NRF deregistration failed",
			logger.KeyInstanceID, l.profile.NFInstanceID,
			logger.KeyError, err.Error(),
		)
	}
}

// OwnProfile builds the SCP's own NF profile advertised to the NRF.
func OwnProfile(nfInstanceID, advertisedHost string) nrf.Profile {
	capacity := nrf.DefaultCapacity
	priority := uint32(1)
	return nrf.Profile{
		NFInstanceID:  nfInstanceID,
		NFType:        "SCP",
		NFStatus:      "REGISTERED",
		IPv4Addresses: []string{advertisedHost},
		Capacity:      &capacity,
		Priority:      &priority,
	}
}
