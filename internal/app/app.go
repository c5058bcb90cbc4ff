// Package app assembles the rate converter and the quote client from
// configuration. Both binaries share it.
package app

import (
	"time"

	"github.com/rs/zerolog"

	"marketdata/internal/config"
	"marketdata/internal/fx"
	"marketdata/internal/httpx"
	"marketdata/internal/provider"
	"marketdata/internal/provider/cache"
	"marketdata/internal/provider/ratelimit"
	"marketdata/internal/provider/yahoo"
)

// App holds one fetch cache per upstream and the services built on them.
type App struct {
	Rates *fx.Converter
	Yahoo *yahoo.Client
}

// New wires the stack:
//
//	httpx.Client -> ratelimit (quotes only) -> cache.Cache -> fx / yahoo
func New(cfg config.Config, log zerolog.Logger) (*App, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	httpClient := httpx.New(cfg.HTTPTimeout())
	httpClient.UserAgent = cfg.HTTP.UserAgent

	quotes := ratelimit.Wrap(httpClient, cfg.Yahoo.MaxRequestsPerMinute, cfg.Yahoo.Burst, cfg.YahooMinInterval())

	rates, quoteCache := cache.New(httpClient, log), cache.New(quotes, log)
	rates.Timeout = cfg.RequestTimeout()
	quoteCache.Timeout = cfg.RequestTimeout()
	return Build(rates, quoteCache, cfg, loc, log), nil
}

// Build wires the services over caller-supplied senders; tests pass fakes.
func Build(rates, quotes provider.Sender, cfg config.Config, loc *time.Location, log zerolog.Logger) *App {
	return &App{
		Rates: fx.NewConverter(rates,
			fx.WithURL(cfg.Rates.URL),
			fx.WithFileName(cfg.Rates.FileName),
			fx.WithLogger(log),
		),
		Yahoo: yahoo.New(quotes,
			yahoo.WithBaseURL(cfg.Yahoo.BaseURL),
			yahoo.WithLocation(loc),
			yahoo.WithLogger(log),
		),
	}
}
