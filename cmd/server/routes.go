package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"marketdata/internal/app"
	"marketdata/internal/date"
	"marketdata/internal/money"
	"marketdata/internal/provider"
	"marketdata/internal/provider/yahoo"
)

type handlers struct {
	app *app.App
	log zerolog.Logger
}

func newRouter(a *app.App, log zerolog.Logger, timeout time.Duration) http.Handler {
	h := &handlers{app: a, log: log.With().Str("component", "server").Logger()}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(h.logRequests)
	if timeout > 0 {
		r.Use(middleware.Timeout(timeout))
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))
	r.Use(middleware.Compress(5))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Route("/api", func(r chi.Router) {
		r.Get("/currencies", h.currencies)
		r.Get("/rates", h.rate)
		r.Get("/convert", h.convert)
		r.Route("/tickers/{symbol}", func(r chi.Router) {
			r.Get("/", h.ticker)
			r.Get("/price", h.price)
			r.Get("/history", h.history)
		})
	})
	return r
}

func (h *handlers) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		h.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("request")
	})
}

// badRequest marks input errors that never reach an upstream.
type badRequest struct{ msg string }

func (e badRequest) Error() string { return e.msg }

type errorResponse struct {
	Error      string   `json:"error"`
	Candidates []string `json:"candidates,omitempty"`
}

// statusFor maps the failure kinds to HTTP statuses.
func statusFor(err error) (int, errorResponse) {
	body := errorResponse{Error: err.Error()}
	var (
		br  badRequest
		uc  *provider.UnknownCurrencyError
		rnf *provider.RateNotFoundError
		tnf *provider.TickerNotFoundError
		amb *provider.AmbiguousTickerError
		fe  *provider.FetchError
		dfe *provider.DataFormatError
	)
	switch {
	case errors.As(err, &br):
		return http.StatusBadRequest, body
	case errors.As(err, &uc), errors.As(err, &rnf), errors.As(err, &tnf):
		return http.StatusNotFound, body
	case errors.As(err, &amb):
		body.Candidates = amb.Candidates
		return http.StatusConflict, body
	case errors.As(err, &fe), errors.As(err, &dfe):
		return http.StatusBadGateway, body
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, body
	default:
		return http.StatusInternalServerError, body
	}
}

func (h *handlers) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, body := statusFor(err)
	ev := h.log.Warn()
	if status >= 500 {
		ev = h.log.Error()
	}
	ev.Err(err).Str("path", r.URL.Path).Int("status", status).Msg("request failed")
	writeJSON(w, status, body)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}

func required(r *http.Request, name string) (string, error) {
	v := strings.TrimSpace(r.URL.Query().Get(name))
	if v == "" {
		return "", badRequest{"missing " + name + " query param"}
	}
	return v, nil
}

// optionalDate reads a YYYY-MM-DD parameter; absent means nil.
func optionalDate(r *http.Request, name string) (*date.Date, error) {
	v := strings.TrimSpace(r.URL.Query().Get(name))
	if v == "" {
		return nil, nil
	}
	d, err := date.Parse(v)
	if err != nil {
		return nil, badRequest{"invalid " + name + ": " + err.Error()}
	}
	return &d, nil
}

func requiredDate(r *http.Request, name string) (date.Date, error) {
	d, err := optionalDate(r, name)
	if err != nil {
		return date.Date{}, err
	}
	if d == nil {
		return date.Date{}, badRequest{"missing " + name + " query param"}
	}
	return *d, nil
}

func (h *handlers) currencies(w http.ResponseWriter, r *http.Request) {
	codes, err := h.app.Rates.AvailableCurrencies(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"currencies": codes})
}

type rateResponse struct {
	Base   string     `json:"base"`
	Target string     `json:"target"`
	Date   *date.Date `json:"date,omitempty"`
	Rate   float64    `json:"rate"`
}

func (h *handlers) rate(w http.ResponseWriter, r *http.Request) {
	base, err := required(r, "base")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	target, err := required(r, "target")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	on, err := optionalDate(r, "date")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	rate, err := h.app.Rates.ExchangeRate(r.Context(), base, target, on)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rateResponse{Base: base, Target: target, Date: on, Rate: rate})
}

type convertResponse struct {
	From      money.Money `json:"from"`
	To        money.Money `json:"to"`
	Formatted string      `json:"formatted"`
	Date      *date.Date  `json:"date,omitempty"`
}

func (h *handlers) convert(w http.ResponseWriter, r *http.Request) {
	raw, err := required(r, "amount")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	amount, err := decimal.NewFromString(raw)
	if err != nil {
		h.fail(w, r, badRequest{"invalid amount: " + raw})
		return
	}
	from, err := required(r, "from")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	to, err := required(r, "to")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	on, err := optionalDate(r, "date")
	if err != nil {
		h.fail(w, r, err)
		return
	}

	src := money.New(amount, from)
	dst, err := src.Convert(r.Context(), h.app.Rates, to, on)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, convertResponse{From: src, To: dst, Formatted: dst.Format(), Date: on})
}

func (h *handlers) lookup(r *http.Request) (*yahoo.Ticker, error) {
	var opts []yahoo.TickerOption
	if ok, _ := strconv.ParseBool(r.URL.Query().Get("allow_mismatch")); ok {
		opts = append(opts, yahoo.AllowMismatchIfOne())
	}
	return h.app.Yahoo.Ticker(r.Context(), chi.URLParam(r, "symbol"), opts...)
}

func (h *handlers) ticker(w http.ResponseWriter, r *http.Request) {
	t, err := h.lookup(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"symbol": t.Symbol()})
}

type priceResponse struct {
	Symbol    string      `json:"symbol"`
	Price     money.Money `json:"price"`
	Formatted string      `json:"formatted"`
}

func (h *handlers) price(w http.ResponseWriter, r *http.Request) {
	t, err := h.lookup(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	p, err := t.CurrentPrice(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, priceResponse{Symbol: t.Symbol(), Price: p, Formatted: p.Format()})
}

type historyPoint struct {
	Date  date.Date   `json:"date"`
	Price money.Money `json:"price"`
}

type historyResponse struct {
	Symbol string         `json:"symbol"`
	Start  date.Date      `json:"start"`
	End    date.Date      `json:"end"`
	Prices []historyPoint `json:"prices"`
}

func (h *handlers) history(w http.ResponseWriter, r *http.Request) {
	start, err := requiredDate(r, "start")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	end, err := requiredDate(r, "end")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if end.Before(start) {
		h.fail(w, r, badRequest{"end is before start"})
		return
	}
	t, err := h.lookup(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	prices, err := t.History(r.Context(), start, end)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	points := make([]historyPoint, 0, len(prices))
	for d, p := range prices {
		points = append(points, historyPoint{Date: d, Price: p})
	}
	sort.Slice(points, func(i, j int) bool { return points[i].Date.Before(points[j].Date) })
	writeJSON(w, http.StatusOK, historyResponse{Symbol: t.Symbol(), Start: start, End: end, Prices: points})
}
