package fx

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"path"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"marketdata/internal/date"
	"marketdata/internal/provider"
)

const (
	// DefaultURL serves the full ECB reference-rate history since 1999.
	DefaultURL = "https://www.ecb.europa.eu/stats/eurofxref/eurofxref-hist.zip"
	// DefaultFileName is the CSV member inside the archive.
	DefaultFileName = "eurofxref-hist.csv"
)

// Download fetches the zipped rate archive at url through sender and parses
// the CSV member named fileName. When no member has that name and the archive
// holds exactly one CSV, that one is used. A stored response is reused.
func Download(ctx context.Context, sender provider.Sender, url, fileName string) (*Table, error) {
	return download(ctx, sender, url, fileName, true)
}

// Refresh is Download bypassing any stored response.
func Refresh(ctx context.Context, sender provider.Sender, url, fileName string) (*Table, error) {
	return download(ctx, sender, url, fileName, false)
}

func download(ctx context.Context, sender provider.Sender, url, fileName string, useCache bool) (*Table, error) {
	body, err := sender.Send(ctx, url, useCache)
	if err != nil {
		return nil, err
	}

	zr, err := zip.NewReader(bytes.NewReader(body), int64(len(body)))
	if err != nil {
		return nil, &provider.FetchError{URL: url, Err: fmt.Errorf("opening archive: %w", err)}
	}

	member, err := pickMember(zr, fileName)
	if err != nil {
		return nil, &provider.FetchError{URL: url, Err: err}
	}
	rc, err := member.Open()
	if err != nil {
		return nil, &provider.FetchError{URL: url, Err: fmt.Errorf("opening %s: %w", member.Name, err)}
	}
	defer rc.Close()

	t, err := ParseCSV(rc)
	if err != nil {
		// the *provider.DataFormatError stays reachable through Unwrap
		return nil, &provider.FetchError{URL: url, Err: fmt.Errorf("parsing %s: %w", member.Name, err)}
	}
	return t, nil
}

func pickMember(zr *zip.Reader, fileName string) (*zip.File, error) {
	var csvs []*zip.File
	for _, f := range zr.File {
		if f.Name == fileName || path.Base(f.Name) == fileName {
			return f, nil
		}
		if strings.EqualFold(path.Ext(f.Name), ".csv") {
			csvs = append(csvs, f)
		}
	}
	if len(csvs) == 1 {
		return csvs[0], nil
	}
	return nil, fmt.Errorf("archive has no member %q", fileName)
}

// Converter owns the rate table for its holder. The table is downloaded on
// first use and kept until Reset; new trading days published upstream are
// not seen until then. The first load after Reset goes to the network even
// when the archive is in the fetch cache.
type Converter struct {
	sender   provider.Sender
	url      string
	fileName string
	log      zerolog.Logger

	mu    sync.Mutex
	table *Table
	stale bool
}

// Option configures a Converter.
type Option func(*Converter)

// WithURL overrides the archive location.
func WithURL(url string) Option { return func(c *Converter) { c.url = url } }

// WithFileName overrides the CSV member name.
func WithFileName(name string) Option { return func(c *Converter) { c.fileName = name } }

// WithLogger sets the logger.
func WithLogger(log zerolog.Logger) Option {
	return func(c *Converter) { c.log = log.With().Str("component", "fx").Logger() }
}

// WithTable preloads a table, skipping the download.
func WithTable(t *Table) Option { return func(c *Converter) { c.table = t } }

func NewConverter(sender provider.Sender, opts ...Option) *Converter {
	c := &Converter{
		sender:   sender,
		url:      DefaultURL,
		fileName: DefaultFileName,
		log:      zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// EnsureLoaded downloads the table unless it is already held. Concurrent
// callers wait for a single download. A failed download is not remembered,
// so a later call tries again.
func (c *Converter) EnsureLoaded(ctx context.Context) error {
	_, err := c.Table(ctx)
	return err
}

// Table returns the loaded table, downloading it first if needed.
func (c *Converter) Table(ctx context.Context) (*Table, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.table != nil {
		return c.table, nil
	}

	load := Download
	if c.stale {
		load = Refresh
	}
	t, err := load(ctx, c.sender, c.url, c.fileName)
	if err != nil {
		c.log.Error().Err(err).Str("url", c.url).Msg("rate table download failed")
		return nil, err
	}
	ev := c.log.Info().Int("rows", t.Len()).Int("currencies", len(t.currencies))
	if latest, ok := t.Latest(); ok {
		ev = ev.Stringer("first", t.dates[0]).Stringer("latest", latest)
	}
	ev.Msg("rate table loaded")

	c.table = t
	c.stale = false
	return t, nil
}

// Reset drops the held table; the next query downloads the archive again
// from upstream.
func (c *Converter) Reset() {
	c.mu.Lock()
	c.table = nil
	c.stale = true
	c.mu.Unlock()
}

// AvailableCurrencies lists the codes known to the table.
func (c *Converter) AvailableCurrencies(ctx context.Context) ([]string, error) {
	t, err := c.Table(ctx)
	if err != nil {
		return nil, err
	}
	return t.AvailableCurrencies(), nil
}

// ExchangeRate returns the rate such that 1 base = rate target, on the given
// day or, when on is nil, on the latest day of the table.
func (c *Converter) ExchangeRate(ctx context.Context, base, target string, on *date.Date) (float64, error) {
	t, err := c.Table(ctx)
	if err != nil {
		return 0, err
	}
	return t.ExchangeRate(base, target, on)
}
