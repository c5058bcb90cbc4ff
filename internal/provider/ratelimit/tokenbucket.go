package ratelimit

import (
	"context"
	"sync"
	"time"

	"marketdata/internal/provider"
)

// TokenBucket paces quote requests to a sustained rate while letting a short
// burst through, e.g. the search and chart calls of one history lookup. The
// bucket starts full.
type TokenBucket struct {
	perSecond float64
	burst     float64

	mu        sync.Mutex
	available float64
	refilled  time.Time
}

// NewTokenBucket allows perSecond requests on average and up to burst at
// once. A non-positive rate never refills; burst is at least one.
func NewTokenBucket(perSecond float64, burst int) *TokenBucket {
	if burst < 1 {
		burst = 1
	}
	return &TokenBucket{
		perSecond: perSecond,
		burst:     float64(burst),
		available: float64(burst),
		refilled:  time.Now(),
	}
}

// take removes a token if one is available; otherwise it reports how long
// until the next one.
func (tb *TokenBucket) take(now time.Time) (time.Duration, bool) {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	if elapsed := now.Sub(tb.refilled); elapsed > 0 && tb.perSecond > 0 {
		tb.available = min(tb.burst, tb.available+elapsed.Seconds()*tb.perSecond)
		tb.refilled = now
	}
	if tb.available >= 1 {
		tb.available--
		return 0, true
	}
	if tb.perSecond <= 0 {
		return time.Hour, false
	}
	wait := time.Duration((1 - tb.available) / tb.perSecond * float64(time.Second))
	return max(wait, time.Millisecond), false
}

// Wait blocks until a request may go out or ctx ends.
func (tb *TokenBucket) Wait(ctx context.Context) error {
	for {
		wait, ok := tb.take(time.Now())
		if ok {
			return nil
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// TokenBucketFetcher holds each fetch until TB hands out a token.
type TokenBucketFetcher struct {
	P  provider.Fetcher
	TB *TokenBucket
}

func (t *TokenBucketFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	if t.TB != nil {
		if err := t.TB.Wait(ctx); err != nil {
			return nil, err
		}
	}
	return t.P.Fetch(ctx, url)
}
