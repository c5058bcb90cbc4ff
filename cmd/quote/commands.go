package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/google/subcommands"
	"github.com/shopspring/decimal"

	"marketdata/internal/app"
	"marketdata/internal/date"
	"marketdata/internal/money"
	"marketdata/internal/provider"
	"marketdata/internal/provider/yahoo"
)

// session is handed to every command through Execute.
type session struct {
	app    *app.App
	out    io.Writer
	errOut io.Writer
	loc    *time.Location
}

func newCommands() []subcommands.Command {
	return []subcommands.Command{
		&currenciesCmd{},
		&rateCmd{},
		&convertCmd{},
		&validateCmd{},
		&priceCmd{},
		&historyCmd{},
	}
}

func sessionOf(args []any) *session { return args[0].(*session) }

// report prints err and picks the exit status.
func (s *session) report(err error) subcommands.ExitStatus {
	fmt.Fprintln(s.errOut, err)
	var amb *provider.AmbiguousTickerError
	if errors.As(err, &amb) {
		fmt.Fprintf(s.errOut, "candidates: %s\n", strings.Join(amb.Candidates, " "))
	}
	return subcommands.ExitFailure
}

func (s *session) usage(f *flag.FlagSet, format string, args ...any) subcommands.ExitStatus {
	fmt.Fprintf(s.errOut, format+"\n", args...)
	f.Usage()
	return subcommands.ExitUsageError
}

// dateFlag parses an optional YYYY-MM-DD flag value.
func dateFlag(v string) (*date.Date, error) {
	if v == "" {
		return nil, nil
	}
	d, err := date.Parse(v)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

type currenciesCmd struct{}

func (*currenciesCmd) Name() string             { return "currencies" }
func (*currenciesCmd) Synopsis() string         { return "list the currencies with reference rates" }
func (*currenciesCmd) Usage() string            { return "currencies\n" }
func (*currenciesCmd) SetFlags(f *flag.FlagSet) {}

func (*currenciesCmd) Execute(ctx context.Context, f *flag.FlagSet, args ...any) subcommands.ExitStatus {
	s := sessionOf(args)
	codes, err := s.app.Rates.AvailableCurrencies(ctx)
	if err != nil {
		return s.report(err)
	}
	for _, c := range codes {
		fmt.Fprintln(s.out, c)
	}
	return subcommands.ExitSuccess
}

type rateCmd struct {
	date string
}

func (*rateCmd) Name() string     { return "rate" }
func (*rateCmd) Synopsis() string { return "print how many TARGET one BASE buys" }
func (*rateCmd) Usage() string {
	return `rate [-d <date>] <BASE> <TARGET>

  Prints the reference rate on the given day, or on the latest published day
  when -d is omitted. Weekends and holidays have no rate.
`
}

func (c *rateCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.date, "d", "", "day of the rate (YYYY-MM-DD), latest when empty")
}

func (c *rateCmd) Execute(ctx context.Context, f *flag.FlagSet, args ...any) subcommands.ExitStatus {
	s := sessionOf(args)
	if f.NArg() != 2 {
		return s.usage(f, "rate needs BASE and TARGET")
	}
	on, err := dateFlag(c.date)
	if err != nil {
		return s.usage(f, "invalid -d: %v", err)
	}
	rate, err := s.app.Rates.ExchangeRate(ctx, f.Arg(0), f.Arg(1), on)
	if err != nil {
		return s.report(err)
	}
	fmt.Fprintln(s.out, decimal.NewFromFloat(rate).String())
	return subcommands.ExitSuccess
}

type convertCmd struct {
	date   string
	pretty bool
}

func (*convertCmd) Name() string     { return "convert" }
func (*convertCmd) Synopsis() string { return "convert an amount between currencies" }
func (*convertCmd) Usage() string {
	return `convert [-d <date>] [-pretty] <AMOUNT> <FROM> <TO>
`
}

func (c *convertCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.date, "d", "", "day of the rate (YYYY-MM-DD), latest when empty")
	f.BoolVar(&c.pretty, "pretty", false, "print with the currency symbol and minor units")
}

func (c *convertCmd) Execute(ctx context.Context, f *flag.FlagSet, args ...any) subcommands.ExitStatus {
	s := sessionOf(args)
	if f.NArg() != 3 {
		return s.usage(f, "convert needs AMOUNT, FROM and TO")
	}
	amount, err := decimal.NewFromString(f.Arg(0))
	if err != nil {
		return s.usage(f, "invalid amount %q", f.Arg(0))
	}
	on, err := dateFlag(c.date)
	if err != nil {
		return s.usage(f, "invalid -d: %v", err)
	}
	m, err := money.New(amount, f.Arg(1)).Convert(ctx, s.app.Rates, f.Arg(2), on)
	if err != nil {
		return s.report(err)
	}
	if c.pretty {
		fmt.Fprintln(s.out, m.Format())
	} else {
		fmt.Fprintln(s.out, m)
	}
	return subcommands.ExitSuccess
}

// tickerFlags is shared by the commands that take a SYMBOL.
type tickerFlags struct {
	allowMismatch bool
}

func (t *tickerFlags) set(f *flag.FlagSet) {
	f.BoolVar(&t.allowMismatch, "allow-mismatch", false, "accept a single search result that differs from SYMBOL")
}

func (t *tickerFlags) ticker(ctx context.Context, s *session, symbol string) (*yahoo.Ticker, error) {
	var opts []yahoo.TickerOption
	if t.allowMismatch {
		opts = append(opts, yahoo.AllowMismatchIfOne())
	}
	return s.app.Yahoo.Ticker(ctx, symbol, opts...)
}

type validateCmd struct{ tickerFlags }

func (*validateCmd) Name() string     { return "validate" }
func (*validateCmd) Synopsis() string { return "check that a symbol names exactly one ticker" }
func (*validateCmd) Usage() string {
	return `validate [-allow-mismatch] <SYMBOL>
`
}
func (c *validateCmd) SetFlags(f *flag.FlagSet) { c.set(f) }

func (c *validateCmd) Execute(ctx context.Context, f *flag.FlagSet, args ...any) subcommands.ExitStatus {
	s := sessionOf(args)
	if f.NArg() != 1 {
		return s.usage(f, "validate needs SYMBOL")
	}
	t, err := c.ticker(ctx, s, f.Arg(0))
	if err != nil {
		return s.report(err)
	}
	fmt.Fprintln(s.out, t)
	return subcommands.ExitSuccess
}

type priceCmd struct{ tickerFlags }

func (*priceCmd) Name() string     { return "price" }
func (*priceCmd) Synopsis() string { return "print the current price of a ticker" }
func (*priceCmd) Usage() string {
	return `price [-allow-mismatch] <SYMBOL>
`
}
func (c *priceCmd) SetFlags(f *flag.FlagSet) { c.set(f) }

func (c *priceCmd) Execute(ctx context.Context, f *flag.FlagSet, args ...any) subcommands.ExitStatus {
	s := sessionOf(args)
	if f.NArg() != 1 {
		return s.usage(f, "price needs SYMBOL")
	}
	t, err := c.ticker(ctx, s, f.Arg(0))
	if err != nil {
		return s.report(err)
	}
	p, err := t.CurrentPrice(ctx)
	if err != nil {
		return s.report(err)
	}
	fmt.Fprintln(s.out, p)
	return subcommands.ExitSuccess
}

type historyCmd struct {
	tickerFlags
	start string
	end   string
}

func (*historyCmd) Name() string     { return "history" }
func (*historyCmd) Synopsis() string { return "print daily closes of a ticker" }
func (*historyCmd) Usage() string {
	return `history [-allow-mismatch] -s <start> [-e <end>] <SYMBOL>

  Prints one "date<TAB>close" line per trading day between start and end,
  both inclusive. End defaults to today.
`
}

func (c *historyCmd) SetFlags(f *flag.FlagSet) {
	c.set(f)
	f.StringVar(&c.start, "s", "", "first day (YYYY-MM-DD)")
	f.StringVar(&c.end, "e", "", "last day (YYYY-MM-DD), today when empty")
}

func (c *historyCmd) Execute(ctx context.Context, f *flag.FlagSet, args ...any) subcommands.ExitStatus {
	s := sessionOf(args)
	if f.NArg() != 1 {
		return s.usage(f, "history needs SYMBOL")
	}
	start, err := date.Parse(c.start)
	if err != nil {
		return s.usage(f, "invalid -s: %v", err)
	}
	end := date.Today(s.loc)
	if c.end != "" {
		if end, err = date.Parse(c.end); err != nil {
			return s.usage(f, "invalid -e: %v", err)
		}
	}
	if end.Before(start) {
		return s.usage(f, "end %s is before start %s", end, start)
	}

	t, err := c.ticker(ctx, s, f.Arg(0))
	if err != nil {
		return s.report(err)
	}
	prices, err := t.History(ctx, start, end)
	if err != nil {
		return s.report(err)
	}
	days := make([]date.Date, 0, len(prices))
	for d := range prices {
		days = append(days, d)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })
	for _, d := range days {
		fmt.Fprintf(s.out, "%s\t%s\n", d, prices[d])
	}
	return subcommands.ExitSuccess
}
