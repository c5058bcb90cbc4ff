// Package money provides an immutable amount of a given currency.
package money

import (
	"context"
	"encoding/json"
	"fmt"

	gomoney "github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"

	"marketdata/internal/date"
)

// Money is an amount in a currency. Two values are equal when both the
// amount and the currency code are. Currency codes are opaque; they are only
// checked by whatever converts them.
type Money struct {
	amount   decimal.Decimal
	currency string
}

// Rater supplies the rate such that 1 base = rate target. A nil day means
// the most recent rate.
type Rater interface {
	ExchangeRate(ctx context.Context, base, target string, on *date.Date) (float64, error)
}

func New(amount decimal.Decimal, currency string) Money {
	return Money{amount: amount, currency: currency}
}

func FromFloat(amount float64, currency string) Money {
	return Money{amount: decimal.NewFromFloat(amount), currency: currency}
}

func (m Money) Amount() decimal.Decimal { return m.amount }
func (m Money) Currency() string        { return m.currency }
func (m Money) IsZero() bool            { return m.amount.IsZero() }

// Float64 returns the nearest float64 to the amount.
func (m Money) Float64() float64 { return m.amount.InexactFloat64() }

func (m Money) Equal(n Money) bool {
	return m.currency == n.currency && m.amount.Equal(n.amount)
}

// Key returns a comparable identity for use as a map key; equal values share
// a key.
func (m Money) Key() string { return m.amount.String() + " " + m.currency }

// String renders the amount and the code, e.g. "100 USD".
func (m Money) String() string { return m.Key() }

// Format renders the amount with the currency's usual symbol and minor
// units, e.g. "$100.00". Unknown codes fall back to the code itself.
func (m Money) Format() string {
	cur := *gomoney.New(0, m.currency).Currency()
	minor := m.amount.Shift(int32(cur.Fraction)).Round(0)
	return cur.Formatter().Format(minor.IntPart())
}

// Convert returns the value in target, using the rate on the given day or
// the latest rate when on is nil. The rater is always consulted, so an
// unknown code fails even when target equals the current currency.
func (m Money) Convert(ctx context.Context, r Rater, target string, on *date.Date) (Money, error) {
	rate, err := r.ExchangeRate(ctx, m.currency, target, on)
	if err != nil {
		return Money{}, fmt.Errorf("convert %s to %s: %w", m, target, err)
	}
	return Money{amount: m.amount.Mul(decimal.NewFromFloat(rate)), currency: target}, nil
}

type wire struct {
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency"`
}

func (m Money) MarshalJSON() ([]byte, error) {
	return json.Marshal(wire{Amount: m.amount, Currency: m.currency})
}

func (m *Money) UnmarshalJSON(b []byte) error {
	var w wire
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	*m = Money{amount: w.Amount, currency: w.Currency}
	return nil
}
