// Package cache memoizes upstream GET responses for the lifetime of the
// process.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"marketdata/internal/provider"
)

// Cache keys responses by the exact request URL, query string included.
// Entries never expire and are never evicted: upstream URLs carry every
// parameter that affects the payload (symbol, date range), so a URL always
// names the same content for as long as the process runs.
//
// Concurrent misses for one URL share a single network call. That call is
// detached from the caller that started it: a caller whose context ends
// stops waiting, while the others still get the response. Timeout, when
// positive, bounds the shared call; otherwise the transport's own timeout
// does.
type Cache struct {
	P       provider.Fetcher
	Log     zerolog.Logger
	Timeout time.Duration

	mu     sync.RWMutex
	items  map[string][]byte
	flight singleflight.Group
}

var _ provider.Sender = (*Cache)(nil)

func New(p provider.Fetcher, log zerolog.Logger) *Cache {
	return &Cache{P: p, Log: log.With().Str("component", "fetch-cache").Logger()}
}

// Send returns the body for url. With useCache set, a stored entry is
// returned without touching the network. Otherwise the request is made and
// its body replaces whatever was stored, so a forced refresh also warms the
// cache for later reads.
func (c *Cache) Send(ctx context.Context, url string, useCache bool) ([]byte, error) {
	if useCache {
		if body, ok := c.get(url); ok {
			c.Log.Debug().Str("url", url).Msg("cache hit")
			return body, nil
		}
	}
	c.Log.Debug().Str("url", url).Bool("use_cache", useCache).Msg("cache miss")

	key := url
	if !useCache {
		// a forced refresh must not piggyback on an in-flight cached read
		key = "refresh " + url
	}
	ch := c.flight.DoChan(key, func() (any, error) {
		if useCache {
			// filled by a flight that finished after our lookup above
			if body, ok := c.get(url); ok {
				return body, nil
			}
		}
		fctx := context.WithoutCancel(ctx)
		if c.Timeout > 0 {
			var cancel context.CancelFunc
			fctx, cancel = context.WithTimeout(fctx, c.Timeout)
			defer cancel()
		}
		body, err := c.P.Fetch(fctx, url)
		if err != nil {
			return nil, err
		}
		c.set(url, body)
		return body, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]byte), nil
	}
}

// SendJSON is Send followed by decoding into out. A body that is not valid
// JSON is dropped from the cache and reported as a *provider.FetchError.
func (c *Cache) SendJSON(ctx context.Context, url string, useCache bool, out any) error {
	body, err := c.Send(ctx, url, useCache)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		c.delete(url)
		return &provider.FetchError{URL: url, Err: fmt.Errorf("decoding response: %w", err)}
	}
	return nil
}

// Len returns the number of stored responses.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// Reset drops every stored response.
func (c *Cache) Reset() {
	c.mu.Lock()
	c.items = nil
	c.mu.Unlock()
}

func (c *Cache) get(url string) ([]byte, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	body, ok := c.items[url]
	return body, ok
}

func (c *Cache) set(url string, body []byte) {
	c.mu.Lock()
	if c.items == nil {
		c.items = make(map[string][]byte)
	}
	c.items[url] = body
	c.mu.Unlock()
}

func (c *Cache) delete(url string) {
	c.mu.Lock()
	delete(c.items, url)
	c.mu.Unlock()
}
