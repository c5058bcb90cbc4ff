// Package provider defines the seams shared by the upstream data sources:
// the raw network fetch, the cached request layer in front of it, and the
// error kinds every source reports.
package provider

import (
	"context"
)

// Fetcher performs one uncached GET and returns the response body.
//
//go:generate mockgen -package=cache_test -destination=cache/mock_provider_test.go -source=provider.go
//go:generate mockgen -package=fx_test -destination=../fx/mock_provider_test.go -source=provider.go
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// Sender answers GET requests, optionally from a cache keyed by the exact URL.
type Sender interface {
	Send(ctx context.Context, url string, useCache bool) ([]byte, error)
	SendJSON(ctx context.Context, url string, useCache bool, out any) error
}
