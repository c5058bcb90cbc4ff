package provider

import (
	"fmt"
	"sort"
	"strings"

	"marketdata/internal/date"
)

// FetchError reports a transport failure, a non-2xx status or a body that
// could not be decoded.
type FetchError struct {
	URL        string
	StatusCode int // 0 when no response was received
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// UnknownCurrencyError reports a currency code absent from the rate table.
type UnknownCurrencyError struct {
	Currency string
}

func (e *UnknownCurrencyError) Error() string {
	return fmt.Sprintf("unknown currency %q", e.Currency)
}

// RateNotFoundError reports that no rate exists for the pair on the requested
// day. A zero Date means the latest day in the table.
type RateNotFoundError struct {
	Base   string
	Target string
	Date   date.Date
}

func (e *RateNotFoundError) Error() string {
	on := e.Date.String()
	if e.Date.IsZero() {
		on = "latest date"
	}
	return fmt.Sprintf("no exchange rate for %s/%s on %s", e.Base, e.Target, on)
}

// TickerNotFoundError reports a symbol with no search candidates at all.
type TickerNotFoundError struct {
	Symbol string
}

func (e *TickerNotFoundError) Error() string {
	return fmt.Sprintf("no ticker found with symbol %q", e.Symbol)
}

// AmbiguousTickerError reports a symbol that does not identify exactly one
// ticker. Candidates holds every symbol the search returned.
type AmbiguousTickerError struct {
	Symbol     string
	Candidates []string
}

// NewAmbiguousTickerError de-duplicates and sorts the candidates.
func NewAmbiguousTickerError(symbol string, candidates []string) *AmbiguousTickerError {
	seen := make(map[string]struct{}, len(candidates))
	out := make([]string, 0, len(candidates))
	for _, c := range candidates {
		if _, dup := seen[c]; dup {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	sort.Strings(out)
	return &AmbiguousTickerError{Symbol: symbol, Candidates: out}
}

func (e *AmbiguousTickerError) Error() string {
	return fmt.Sprintf("symbol %q is ambiguous (%s)", e.Symbol, strings.Join(e.Candidates, ", "))
}

// DataFormatError reports an upstream payload with an unexpected shape.
type DataFormatError struct {
	Source string
	Reason string
}

func (e *DataFormatError) Error() string {
	return fmt.Sprintf("%s: malformed response: %s", e.Source, e.Reason)
}

// Formatf is shorthand for building a DataFormatError.
func Formatf(source, format string, args ...any) *DataFormatError {
	return &DataFormatError{Source: source, Reason: fmt.Sprintf(format, args...)}
}
