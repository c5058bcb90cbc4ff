// Package date provides a calendar date with day granularity.
package date

import (
	"fmt"
	"time"
)

// Layout is the ISO-8601 representation used on the wire and in the rate archive.
const Layout = "2006-01-02"

// Date is a calendar day. The zero value is not a valid day and reports IsZero.
// Date is comparable and can be used as a map key.
type Date struct {
	y int
	m time.Month
	d int
}

// New returns a normalized Date, so New(2021, 1, 32) is 2021-02-01.
func New(year int, month time.Month, day int) Date {
	y, m, d := time.Date(year, month, day, 0, 0, 0, 0, time.UTC).Date()
	return Date{y, m, d}
}

// FromTime returns the day t falls on in loc.
func FromTime(t time.Time, loc *time.Location) Date {
	if loc == nil {
		loc = time.Local
	}
	return New(t.In(loc).Date())
}

// Today returns the current day in loc.
func Today(loc *time.Location) Date { return FromTime(time.Now(), loc) }

// Parse reads a YYYY-MM-DD string.
func Parse(s string) (Date, error) {
	t, err := time.Parse(Layout, s)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q want format %q: %w", s, Layout, err)
	}
	return New(t.Date()), nil
}

// MustParse is Parse for literals; it panics on error.
func MustParse(s string) Date {
	d, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return d
}

func (d Date) Year() int         { return d.y }
func (d Date) Month() time.Month { return d.m }
func (d Date) Day() int          { return d.d }
func (d Date) IsZero() bool      { return d == Date{} }

// Midnight returns the first instant of the day in loc.
func (d Date) Midnight(loc *time.Location) time.Time {
	if loc == nil {
		loc = time.Local
	}
	return time.Date(d.y, d.m, d.d, 0, 0, 0, 0, loc)
}

func (d Date) Before(x Date) bool { return d.Midnight(time.UTC).Before(x.Midnight(time.UTC)) }
func (d Date) After(x Date) bool  { return d.Midnight(time.UTC).After(x.Midnight(time.UTC)) }
func (d Date) Equal(x Date) bool  { return d == x }

// AddDays returns d shifted by n days.
func (d Date) AddDays(n int) Date { return New(d.y, d.m, d.d+n) }

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Midnight(time.UTC).Format(Layout)
}

func (d Date) MarshalText() ([]byte, error) { return []byte(d.String()), nil }

func (d *Date) UnmarshalText(b []byte) error {
	if len(b) == 0 {
		*d = Date{}
		return nil
	}
	x, err := Parse(string(b))
	if err != nil {
		return err
	}
	*d = x
	return nil
}
