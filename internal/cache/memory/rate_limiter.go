// Package memory provides in-process fallbacks for the cache surfaces used
// when Redis is not configured.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/tidefall-labs/polytrader/internal/domain"
)

const waitPollInterval = 250 * time.Millisecond

// RateLimiter is a sliding-window limiter held in process memory. It mirrors
// the Redis limiter's semantics for single-process deployments.
type RateLimiter struct {
	mu    sync.Mutex
	calls map[string][]time.Time
	now   func() time.Time
}

// NewRateLimiter creates an in-process rate limiter.
func NewRateLimiter() *RateLimiter {
	return &RateLimiter{
		calls: make(map[string][]time.Time),
		now:   time.Now,
	}
}

// Allow reports whether one more call fits in the window, counting it if so.
func (rl *RateLimiter) Allow(_ context.Context, key string, limit int, window time.Duration) (bool, error) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	cutoff := now.Add(-window)

	recent := rl.calls[key][:0]
	for _, t := range rl.calls[key] {
		if t.After(cutoff) {
			recent = append(recent, t)
		}
	}

	if len(recent) >= limit {
		rl.calls[key] = recent
		return false, nil
	}

	rl.calls[key] = append(recent, now)
	return true, nil
}

// Wait blocks until a call is admitted or the context ends.
func (rl *RateLimiter) Wait(ctx context.Context, key string, limit int, window time.Duration) error {
	for {
		allowed, err := rl.Allow(ctx, key, limit, window)
		if err != nil {
			return err
		}
		if allowed {
			return nil
		}

		timer := time.NewTimer(waitPollInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("memory: rate limit wait %s: %w", key, ctx.Err())
		case <-timer.C:
		}
	}
}

var _ domain.RateLimiter = (*RateLimiter)(nil)
