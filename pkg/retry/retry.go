// Package retry provides a generic exponential-backoff driver for
// fallible operations.
package retry

import (
	"context"
	"math"
	"time"

	"github.com/nfmesh/scp/internal/logger"
)

// Config bounds the retry loop. Immutable after startup.
type Config struct {
	MaxAttempts       int
	InitialBackoff    time.Duration
	MaxBackoff        time.Duration
	BackoffMultiplier float64
}

// DefaultConfig matches the proxy's default retry envelope.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:       3,
		InitialBackoff:    100 * time.Millisecond,
		MaxBackoff:        5 * time.Second,
		BackoffMultiplier: 2.0,
	}
}

// Backoff returns the sleep before the attempt after attempt n
// (0-based): min(initial × multiplier^n, max).
func (c Config) Backoff(attempt int) time.Duration {
	backoff := float64(c.InitialBackoff) * math.Pow(c.BackoffMultiplier, float64(attempt))
	if max := float64(c.MaxBackoff); backoff > max {
		backoff = max
	}
	return time.Duration(backoff)
}

// Do runs operation up to MaxAttempts times, sleeping Backoff(n)
// between attempt n and n+1. It returns the first success, or the last
// error once attempts are exhausted — never a synthesized error kind.
// Error classification is the caller's concern; Do does not inspect
// errors. The backoff sleep is cancellable: a cancelled context returns
// the last operation error immediately.
func Do[T any](ctx context.Context, cfg Config, operation func(ctx context.Context) (T, error)) (T, error) {
	var lastErr error
	var zero T

	attempts := cfg.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	for attempt := 0; attempt < attempts; attempt++ {
		result, err := operation(ctx)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if attempt+1 < attempts {
			backoff := cfg.Backoff(attempt)
			logger.Debug("attempt failed, backing off",
				logger.KeyAttempt, attempt+1,
				logger.KeyMaxAttempts, attempts,
				logger.KeyBackoff, backoff,
				logger.KeyError, err.Error(),
			)

			timer := time.NewTimer(backoff)
			select {
			case <-timer.C:
			case <-ctx.Done():
				timer.Stop()
				return zero, lastErr
			}
		}
	}

	return zero, lastErr
}
