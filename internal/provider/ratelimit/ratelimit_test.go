package ratelimit

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type countingFetcher struct{ calls atomic.Int32 }

func (c *countingFetcher) Fetch(context.Context, string) ([]byte, error) {
	c.calls.Add(1)
	return []byte(`{}`), nil
}

func TestMinInterval_SpacesCalls(t *testing.T) {
	f := &countingFetcher{}
	m := &MinInterval{P: f, Interval: 30 * time.Millisecond}

	start := time.Now()
	for i := 0; i < 3; i++ {
		_, err := m.Fetch(t.Context(), "u")
		require.NoError(t, err)
	}

	require.GreaterOrEqual(t, time.Since(start), 60*time.Millisecond)
	require.EqualValues(t, 3, f.calls.Load())
}

func TestMinInterval_CanceledWhileWaiting(t *testing.T) {
	f := &countingFetcher{}
	m := &MinInterval{P: f, Interval: time.Hour}

	_, err := m.Fetch(t.Context(), "u")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(t.Context())
	cancel()
	_, err = m.Fetch(ctx, "u")
	require.ErrorIs(t, err, context.Canceled)
	require.EqualValues(t, 1, f.calls.Load())
}

func TestTokenBucket_BurstThenBlocks(t *testing.T) {
	f := &countingFetcher{}
	p := &TokenBucketFetcher{P: f, TB: NewTokenBucket(0.001, 2)}

	for i := 0; i < 2; i++ {
		_, err := p.Fetch(t.Context(), "u")
		require.NoError(t, err)
	}

	ctx, cancel := context.WithTimeout(t.Context(), 20*time.Millisecond)
	defer cancel()
	_, err := p.Fetch(ctx, "u")
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.EqualValues(t, 2, f.calls.Load())
}

func TestWrap(t *testing.T) {
	f := &countingFetcher{}

	require.Same(t, f, Wrap(f, 0, 0, 0))
	require.IsType(t, &TokenBucketFetcher{}, Wrap(f, 60, 0, time.Second))
	require.IsType(t, &MinInterval{}, Wrap(f, 0, 0, time.Second))
}

func TestTokenBucket_Refills(t *testing.T) {
	tb := NewTokenBucket(10, 1)
	start := time.Now()

	_, ok := tb.take(start)
	require.True(t, ok)

	wait, ok := tb.take(start)
	require.False(t, ok)
	require.InDelta(t, 100*time.Millisecond, wait, float64(10*time.Millisecond))

	_, ok = tb.take(start.Add(150 * time.Millisecond))
	require.True(t, ok)
}

func TestTokenBucket_NeverRefillsWithoutRate(t *testing.T) {
	tb := NewTokenBucket(0, 1)
	now := time.Now()

	_, ok := tb.take(now)
	require.True(t, ok)
	_, ok = tb.take(now.Add(time.Hour))
	require.False(t, ok)
}
