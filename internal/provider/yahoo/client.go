// Package yahoo validates ticker symbols and resolves prices against the
// Yahoo Finance search and chart endpoints.
package yahoo

import (
	"time"

	"github.com/rs/zerolog"

	"marketdata/internal/provider"
)

// DefaultBaseURL is the public query host.
const DefaultBaseURL = "https://query1.finance.yahoo.com"

// Client issues search and chart requests through a caching Sender.
type Client struct {
	// baseURL is the base URL for the API.
	baseURL string
	// sender performs (and caches) every GET.
	sender provider.Sender
	// loc is the zone used to turn chart timestamps into calendar days and
	// days into period bounds.
	loc *time.Location
	log zerolog.Logger
}

// ClientOption is a configuration option for the client.
type ClientOption func(*Client)

// WithBaseURL sets the base URL for the API.
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.baseURL = baseURL
	}
}

// WithLocation sets the zone in which chart timestamps are read as days.
// The default is time.Local.
func WithLocation(loc *time.Location) ClientOption {
	return func(c *Client) {
		if loc != nil {
			c.loc = loc
		}
	}
}

// WithLogger sets the logger.
func WithLogger(log zerolog.Logger) ClientOption {
	return func(c *Client) {
		c.log = log.With().Str("component", "yahoo").Logger()
	}
}

// New creates a new client.
func New(sender provider.Sender, options ...ClientOption) *Client {
	c := &Client{
		baseURL: DefaultBaseURL,
		sender:  sender,
		loc:     time.Local,
		log:     zerolog.Nop(),
	}
	for _, option := range options {
		option(c)
	}
	return c
}
