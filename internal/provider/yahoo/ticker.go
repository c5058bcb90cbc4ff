package yahoo

import (
	"context"
	"fmt"
	"math"
	"net/url"
	"time"

	"marketdata/internal/date"
	"marketdata/internal/money"
	"marketdata/internal/provider"
)

// Ticker is a symbol that passed validation. Only Client.Ticker creates one.
type Ticker struct {
	symbol string
	client *Client
}

// TickerOption relaxes validation when creating a Ticker.
type TickerOption func(*tickerOptions)

type tickerOptions struct {
	allowMismatchIfOne bool
}

// AllowMismatchIfOne accepts a symbol whose search returns a single,
// different candidate.
func AllowMismatchIfOne() TickerOption {
	return func(o *tickerOptions) { o.allowMismatchIfOne = true }
}

// Ticker validates symbol and returns a handle for price queries. No price
// request is made for a symbol that fails validation.
func (c *Client) Ticker(ctx context.Context, symbol string, opts ...TickerOption) (*Ticker, error) {
	var o tickerOptions
	for _, opt := range opts {
		opt(&o)
	}
	if err := c.Validate(ctx, symbol, o.allowMismatchIfOne); err != nil {
		return nil, err
	}
	return &Ticker{symbol: symbol, client: c}, nil
}

func (t *Ticker) Symbol() string { return t.symbol }

func (t *Ticker) String() string { return fmt.Sprintf("Ticker(symbol=%s)", t.symbol) }

type chartResponse struct {
	Chart struct {
		Result []chartResult `json:"result"`
		Error  *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

type chartResult struct {
	Meta struct {
		Currency           string   `json:"currency"`
		RegularMarketPrice *float64 `json:"regularMarketPrice"`
	} `json:"meta"`
	Timestamp  []int64 `json:"timestamp"`
	Indicators struct {
		Quote []struct {
			Close []*float64 `json:"close"`
		} `json:"quote"`
	} `json:"indicators"`
}

func (t *Ticker) chart(ctx context.Context, rawURL string) (*chartResult, error) {
	source := "chart " + t.symbol

	var res chartResponse
	if err := t.client.sender.SendJSON(ctx, rawURL, true, &res); err != nil {
		return nil, err
	}
	if e := res.Chart.Error; e != nil {
		return nil, provider.Formatf(source, "%s: %s", e.Code, e.Description)
	}
	if len(res.Chart.Result) == 0 {
		return nil, provider.Formatf(source, "no result")
	}
	r := &res.Chart.Result[0]
	if r.Meta.Currency == "" {
		return nil, provider.Formatf(source, "missing meta.currency")
	}
	return r, nil
}

// CurrentPrice returns the latest market price in the instrument's currency.
func (t *Ticker) CurrentPrice(ctx context.Context) (money.Money, error) {
	u := fmt.Sprintf("%s/v8/finance/chart/%s?symbol=%s&range=1d&interval=1d",
		t.client.baseURL, url.PathEscape(t.symbol), url.QueryEscape(t.symbol))

	r, err := t.chart(ctx, u)
	if err != nil {
		return money.Money{}, err
	}
	p := r.Meta.RegularMarketPrice
	if p == nil {
		return money.Money{}, provider.Formatf("chart "+t.symbol, "missing meta.regularMarketPrice")
	}
	return money.FromFloat(*p, r.Meta.Currency), nil
}

// History returns the daily close for each trading day between start and
// end inclusive. Days without trading are absent, as are days whose close
// is null upstream. The last close goes through CorrectLastClose.
//
// Daily bars are stamped during the session, after midnight, so the
// requested window runs to the midnight that ends the end day. Bars the
// upstream returns past end are dropped.
func (t *Ticker) History(ctx context.Context, start, end date.Date) (map[date.Date]money.Money, error) {
	c := t.client
	q := url.QueryEscape(t.symbol)
	u := fmt.Sprintf("%s/v8/finance/chart/%s?symbol=%s&period1=%d&period2=%d&useYfid=true&interval=1d&includePrePost=true&events=div%%7Csplit%%7Cearn&lang=en-GB&region=GB",
		c.baseURL, url.PathEscape(t.symbol), q, start.Midnight(c.loc).Unix(), end.AddDays(1).Midnight(c.loc).Unix())

	r, err := t.chart(ctx, u)
	if err != nil {
		return nil, err
	}

	source := "chart " + t.symbol
	var closes []*float64
	if len(r.Indicators.Quote) > 0 {
		closes = r.Indicators.Quote[0].Close
	} else if len(r.Timestamp) > 0 {
		return nil, provider.Formatf(source, "missing indicators.quote")
	}
	if len(closes) != len(r.Timestamp) {
		return nil, provider.Formatf(source, "%d timestamps but %d closes", len(r.Timestamp), len(closes))
	}

	days := make([]date.Date, 0, len(closes))
	values := make([]float64, 0, len(closes))
	for i, ts := range r.Timestamp {
		if closes[i] == nil {
			continue
		}
		day := date.FromTime(time.Unix(ts, 0), c.loc)
		if day.After(end) {
			continue
		}
		days = append(days, day)
		values = append(values, *closes[i])
	}
	if n := len(values); n >= 2 {
		if fixed := CorrectLastClose(values); fixed != values[n-1] {
			c.log.Debug().Str("symbol", t.symbol).Float64("raw", values[n-1]).Float64("corrected", fixed).Msg("rescaled last close")
			values[n-1] = fixed
		}
	}

	out := make(map[date.Date]money.Money, len(values))
	for i, d := range days {
		out[d] = money.FromFloat(values[i], r.Meta.Currency)
	}
	return out, nil
}

// CorrectLastClose returns the last close of the series, rescaled when the
// feed has shifted it by a power of ten against the one before:
//
//	gap  = round(log10(last / previous))
//	last = last / 10^gap
//
// This assumes a close never legitimately moves by an order of magnitude in
// one day, which does not hold for very volatile instruments. Only the last
// point is examined. For series shorter than two points, or with
// non-positive values at the end, the last close is returned unchanged
// (zero for an empty series).
func CorrectLastClose(closes []float64) float64 {
	n := len(closes)
	if n == 0 {
		return 0
	}
	last := closes[n-1]
	if n < 2 {
		return last
	}
	prev := closes[n-2]
	if last <= 0 || prev <= 0 {
		return last
	}
	gap := math.RoundToEven(math.Log10(last / prev))
	if gap == 0 {
		return last
	}
	return last / math.Pow(10, gap)
}
