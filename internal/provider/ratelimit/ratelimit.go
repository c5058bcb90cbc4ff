// Package ratelimit paces outbound requests to an upstream provider.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"marketdata/internal/provider"
)

// MinInterval wraps a fetcher and enforces a minimum time between calls.
// Concurrent calls will wait until the interval has elapsed since the last call,
// or return early if the context is canceled.
type MinInterval struct {
	P        provider.Fetcher
	Interval time.Duration
	mu       sync.Mutex
	last     time.Time
}

func (m *MinInterval) Fetch(ctx context.Context, url string) ([]byte, error) {
	if m.Interval > 0 {
		m.mu.Lock()
		wait := time.Until(m.last.Add(m.Interval))
		m.mu.Unlock()
		if wait > 0 {
			t := time.NewTimer(wait)
			defer t.Stop()
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-t.C:
			}
		}
	}
	body, err := m.P.Fetch(ctx, url)
	if m.Interval > 0 {
		m.mu.Lock()
		m.last = time.Now()
		m.mu.Unlock()
	}
	return body, err
}

// Wrap applies the configured pacing to p. A positive requests-per-minute
// selects the token bucket; otherwise a positive interval selects
// MinInterval. With neither, p is returned unchanged.
func Wrap(p provider.Fetcher, maxPerMinute, burst int, minInterval time.Duration) provider.Fetcher {
	switch {
	case maxPerMinute > 0:
		if burst <= 0 {
			burst = 1
		}
		return &TokenBucketFetcher{P: p, TB: NewTokenBucket(float64(maxPerMinute)/60.0, burst)}
	case minInterval > 0:
		return &MinInterval{P: p, Interval: minInterval}
	default:
		return p
	}
}
