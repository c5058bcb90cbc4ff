// Package fx answers currency exchange-rate queries from the ECB historical
// reference-rate table.
package fx

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"marketdata/internal/date"
	"marketdata/internal/provider"
)

const (
	// DateColumn names the CSV column holding the row date.
	DateColumn = "Date"
	// Pivot is the currency every table value is expressed against.
	Pivot = "EUR"
)

// Table holds one row per day mapping currency codes to their value in EUR
// (units of the currency per 1 EUR). A currency missing from a row has no
// quote that day.
type Table struct {
	rows       map[date.Date]map[string]float64
	dates      []date.Date // ascending
	currencies []string    // sorted
	known      map[string]struct{}
}

// NewTable builds a table from rows keyed by day. EUR is set to 1 on every
// row.
func NewTable(rows map[date.Date]map[string]float64) *Table {
	t := &Table{
		rows:  make(map[date.Date]map[string]float64, len(rows)),
		dates: make([]date.Date, 0, len(rows)),
		known: map[string]struct{}{Pivot: {}},
	}
	for d, values := range rows {
		row := make(map[string]float64, len(values)+1)
		for code, v := range values {
			row[code] = v
			t.known[code] = struct{}{}
		}
		row[Pivot] = 1.0
		t.rows[d] = row
		t.dates = append(t.dates, d)
	}
	sort.Slice(t.dates, func(i, j int) bool { return t.dates[i].Before(t.dates[j]) })
	for code := range t.known {
		t.currencies = append(t.currencies, code)
	}
	sort.Strings(t.currencies)
	return t
}

// ParseCSV reads the ECB layout: a Date column (YYYY-MM-DD) followed by one
// column per currency. Blank and N/A cells are absent quotes. Columns with
// an empty header (the archive ends each line with a comma) are ignored.
func ParseCSV(r io.Reader) (*Table, error) {
	const source = "rate table"

	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, provider.Formatf(source, "empty file")
	}
	if err != nil {
		return nil, provider.Formatf(source, "reading header: %v", err)
	}

	dateIdx := -1
	codes := make([]string, len(header))
	for i, h := range header {
		h = strings.TrimSpace(h)
		if h == DateColumn {
			dateIdx = i
			continue
		}
		codes[i] = h
	}
	if dateIdx < 0 {
		return nil, provider.Formatf(source, "missing %q column", DateColumn)
	}

	rows := make(map[date.Date]map[string]float64)
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, provider.Formatf(source, "line %d: %v", line, err)
		}
		if dateIdx >= len(rec) {
			return nil, provider.Formatf(source, "line %d: missing date", line)
		}
		day, err := date.Parse(strings.TrimSpace(rec[dateIdx]))
		if err != nil {
			return nil, provider.Formatf(source, "line %d: %v", line, err)
		}
		if _, dup := rows[day]; dup {
			return nil, provider.Formatf(source, "line %d: duplicate date %s", line, day)
		}

		row := make(map[string]float64, len(rec))
		for i, cell := range rec {
			if i >= len(codes) || codes[i] == "" {
				continue
			}
			cell = strings.TrimSpace(cell)
			if cell == "" || strings.EqualFold(cell, "N/A") {
				continue
			}
			v, err := strconv.ParseFloat(cell, 64)
			if err != nil {
				return nil, provider.Formatf(source, "line %d: %s value %q: %v", line, codes[i], cell, err)
			}
			row[codes[i]] = v
		}
		rows[day] = row
	}

	t := NewTable(rows)
	// columns that never carry a value are still known currencies
	for _, code := range codes {
		if code != "" {
			t.addCurrency(code)
		}
	}
	return t, nil
}

func (t *Table) addCurrency(code string) {
	if _, ok := t.known[code]; ok {
		return
	}
	t.known[code] = struct{}{}
	i := sort.SearchStrings(t.currencies, code)
	t.currencies = append(t.currencies, "")
	copy(t.currencies[i+1:], t.currencies[i:])
	t.currencies[i] = code
}

// AvailableCurrencies returns every code in the table, sorted.
func (t *Table) AvailableCurrencies() []string {
	return append([]string(nil), t.currencies...)
}

// Has reports whether code is a column of the table.
func (t *Table) Has(code string) bool {
	_, ok := t.known[code]
	return ok
}

// Dates returns the row dates in ascending order.
func (t *Table) Dates() []date.Date { return append([]date.Date(nil), t.dates...) }

// Latest returns the most recent row date; ok is false for an empty table.
func (t *Table) Latest() (d date.Date, ok bool) {
	if len(t.dates) == 0 {
		return date.Date{}, false
	}
	return t.dates[len(t.dates)-1], true
}

func (t *Table) Len() int { return len(t.dates) }

// ExchangeRate returns how many units of target one unit of base is worth.
// A nil on selects the latest row, whether or not both currencies are quoted
// there. Otherwise only a row for exactly that day is used; there is no
// nearest-day fallback.
func (t *Table) ExchangeRate(base, target string, on *date.Date) (float64, error) {
	for _, code := range []string{base, target} {
		if !t.Has(code) {
			return 0, &provider.UnknownCurrencyError{Currency: code}
		}
	}

	var day date.Date
	if on != nil {
		day = *on
	} else if latest, ok := t.Latest(); ok {
		day = latest
	}
	notFound := &provider.RateNotFoundError{Base: base, Target: target, Date: day}

	row, ok := t.rows[day]
	if !ok {
		return 0, notFound
	}
	b, okB := row[base]
	q, okT := row[target]
	if !okB || !okT || b == 0 {
		return 0, notFound
	}
	return q / b, nil
}

func (t *Table) String() string {
	if latest, ok := t.Latest(); ok {
		return fmt.Sprintf("fx.Table{%d rows %s..%s, %d currencies}", len(t.dates), t.dates[0], latest, len(t.currencies))
	}
	return fmt.Sprintf("fx.Table{empty, %d currencies}", len(t.currencies))
}
