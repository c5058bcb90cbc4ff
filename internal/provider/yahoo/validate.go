package yahoo

import (
	"context"
	"fmt"
	"net/url"
	"sort"

	"marketdata/internal/provider"
)

type searchResponse struct {
	Quotes []struct {
		Symbol string `json:"symbol"`
	} `json:"quotes"`
}

func (c *Client) searchURL(symbol string) string {
	return fmt.Sprintf("%s/v1/finance/search?q=%s&lang=en-US&region=US&quotesCount=10", c.baseURL, url.QueryEscape(symbol))
}

// Search returns the distinct symbols the provider suggests for a query,
// sorted. A response without quotes yields no candidates.
func (c *Client) Search(ctx context.Context, symbol string) ([]string, error) {
	var res searchResponse
	if err := c.sender.SendJSON(ctx, c.searchURL(symbol), true, &res); err != nil {
		return nil, err
	}

	seen := make(map[string]struct{}, len(res.Quotes))
	out := make([]string, 0, len(res.Quotes))
	for _, q := range res.Quotes {
		if q.Symbol == "" {
			continue
		}
		if _, dup := seen[q.Symbol]; dup {
			continue
		}
		seen[q.Symbol] = struct{}{}
		out = append(out, q.Symbol)
	}
	sort.Strings(out)
	return out, nil
}

// Validate succeeds when symbol identifies exactly one ticker; see
// CheckCandidates for the rules.
func (c *Client) Validate(ctx context.Context, symbol string, allowMismatchIfOne bool) error {
	candidates, err := c.Search(ctx, symbol)
	if err != nil {
		return err
	}
	if err := CheckCandidates(symbol, candidates, allowMismatchIfOne); err != nil {
		c.log.Debug().Err(err).Str("symbol", symbol).Strs("candidates", candidates).Msg("symbol rejected")
		return err
	}
	return nil
}

// CheckCandidates decides whether symbol is unambiguous given the set of
// candidates a search returned:
//
//   - no candidates: *provider.TickerNotFoundError
//   - symbol among the candidates: valid
//   - a single other candidate: valid only with allowMismatchIfOne,
//     otherwise *provider.AmbiguousTickerError
//   - several candidates, none equal to symbol: *provider.AmbiguousTickerError
func CheckCandidates(symbol string, candidates []string, allowMismatchIfOne bool) error {
	set := make(map[string]struct{}, len(candidates))
	for _, s := range candidates {
		set[s] = struct{}{}
	}

	switch {
	case len(set) == 0:
		return &provider.TickerNotFoundError{Symbol: symbol}
	case len(set) > 1:
		if _, ok := set[symbol]; !ok {
			return provider.NewAmbiguousTickerError(symbol, candidates)
		}
	default:
		if _, ok := set[symbol]; !ok && !allowMismatchIfOne {
			return provider.NewAmbiguousTickerError(symbol, candidates)
		}
	}
	return nil
}
