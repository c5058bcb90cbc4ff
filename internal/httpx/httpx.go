package httpx

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"marketdata/internal/provider"
)

// DefaultTimeout bounds every request when no timeout is configured.
const DefaultTimeout = 10 * time.Second

// BrowserUserAgent is sent by default; the quote provider rejects
// non-browser agents.
const BrowserUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/95.0.4638.69 Safari/537.36"

// maxBody caps response bodies; the full rate archive is well below this.
const maxBody = 64 << 20

// Client is a small wrapper around http.Client with sane defaults.
type Client struct {
	HTTP      *http.Client
	UserAgent string
	Headers   map[string]string
}

func New(timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: 3 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
		MaxIdleConns:          50,
		MaxIdleConnsPerHost:   10,
		ForceAttemptHTTP2:     true,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   5 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		ResponseHeaderTimeout: timeout,
	}
	return &Client{HTTP: &http.Client{Timeout: timeout, Transport: transport}, UserAgent: BrowserUserAgent}
}

func (c *Client) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	if c.UserAgent != "" && req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", c.UserAgent)
	}
	for k, v := range c.Headers {
		if req.Header.Get(k) == "" {
			req.Header.Set(k, v)
		}
	}
	return c.HTTP.Do(req.WithContext(ctx))
}

// Fetch performs a GET and returns the body of a 2xx response. Every failure
// is reported as a *provider.FetchError.
func (c *Client) Fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, &provider.FetchError{URL: url, Err: fmt.Errorf("creating request: %w", err)}
	}
	res, err := c.Do(ctx, req)
	if err != nil {
		return nil, &provider.FetchError{URL: url, Err: fmt.Errorf("performing request: %w", err)}
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(res.Body, 4<<10))
		return nil, &provider.FetchError{URL: url, StatusCode: res.StatusCode, Err: fmt.Errorf("unexpected status code: %d", res.StatusCode)}
	}

	body, err := io.ReadAll(io.LimitReader(res.Body, maxBody))
	if err != nil {
		return nil, &provider.FetchError{URL: url, Err: fmt.Errorf("reading body: %w", err)}
	}
	return body, nil
}
