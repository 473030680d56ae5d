package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/adshao/go-binance/v2"
	"github.com/adshao/go-binance/v2/common"
	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"

	"chartpi/internal/domain"
	"chartpi/internal/util"
)

// ---------------------------------------------------------------------------
// Compile-time interface checks
// ---------------------------------------------------------------------------

var _ Provider = (*Binance)(nil)
var _ Streamer = (*Binance)(nil)
var _ Searcher = (*Binance)(nil)

// Binance API error codes that map onto the taxonomy.
const (
	binanceInvalidSymbol = -1121
	binanceBadAPIKey     = -2014
	binanceRejectedKey   = -2015
)

// BinanceOpts configures the Binance adapter. Empty URLs use the public
// endpoints.
type BinanceOpts struct {
	BaseURL       string
	StreamURL     string
	Timeout       time.Duration
	RatePerMinute int
	Cache         *Cache
}

// Binance serves crypto bars, quotes, symbol listings and kline streams.
// No credentials are needed for any of these endpoints.
type Binance struct {
	client    *binance.Client
	streamURL string
	dialer    *websocket.Dialer
	limiter   *util.RateLimiter
	cache     *Cache
	log       *slog.Logger
}

// NewBinance creates a Binance adapter.
func NewBinance(opts BinanceOpts) *Binance {
	client := binance.NewClient("", "")
	if opts.BaseURL != "" {
		client.BaseURL = opts.BaseURL
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	client.HTTPClient = &http.Client{Timeout: timeout, Transport: statusTransport{base: http.DefaultTransport}}

	streamURL := opts.StreamURL
	if streamURL == "" {
		streamURL = "wss://stream.binance.com:9443/ws"
	}
	cache := opts.Cache
	if cache == nil {
		cache = NewCache()
	}

	return &Binance{
		client:    client,
		streamURL: strings.TrimRight(streamURL, "/"),
		dialer:    &websocket.Dialer{HandshakeTimeout: timeout},
		limiter:   util.NewRateLimiter(opts.RatePerMinute, 10),
		cache:     cache,
		log:       slog.Default().With("provider", "binance"),
	}
}

// Name returns the provider identifier.
func (b *Binance) Name() string { return "binance" }

// FetchHistory returns the latest MaxHistory klines.
func (b *Binance) FetchHistory(ctx context.Context, symbol string, iv domain.Interval) ([]domain.Bar, error) {
	if err := b.limiter.Wait(ctx); err != nil {
		return nil, transportError(b.Name(), "klines", symbol, err)
	}
	klines, err := b.client.NewKlinesService().
		Symbol(symbol).
		Interval(string(iv)).
		Limit(MaxHistory).
		Do(ctx)
	if err != nil {
		return nil, b.wrap("klines", symbol, err)
	}
	if len(klines) == 0 {
		return nil, &Error{Provider: b.Name(), Op: "klines", Symbol: symbol, Kind: ErrNoData}
	}

	bars := make([]domain.Bar, 0, len(klines))
	for _, k := range klines {
		bar, err := barFromStrings(k.OpenTime/1000, k.Open, k.High, k.Low, k.Close, k.Volume)
		if err != nil {
			return nil, &Error{Provider: b.Name(), Op: "klines", Symbol: symbol, Kind: ErrUpstream, Err: err}
		}
		bars = append(bars, bar)
	}
	return bars, nil
}

// FetchQuote returns the 24h ticker's last price and change.
func (b *Binance) FetchQuote(ctx context.Context, symbol string) (domain.Quote, error) {
	if err := b.limiter.Wait(ctx); err != nil {
		return domain.Quote{}, transportError(b.Name(), "ticker", symbol, err)
	}
	stats, err := b.client.NewListPriceChangeStatsService().Symbol(symbol).Do(ctx)
	if err != nil {
		return domain.Quote{}, b.wrap("ticker", symbol, err)
	}
	if len(stats) == 0 {
		return domain.Quote{}, &Error{Provider: b.Name(), Op: "ticker", Symbol: symbol, Kind: ErrNoData}
	}

	s := stats[0]
	vals, err := parseDecimals(s.LastPrice, s.PriceChange, s.PriceChangePercent)
	if err != nil {
		return domain.Quote{}, &Error{Provider: b.Name(), Op: "ticker", Symbol: symbol, Kind: ErrUpstream, Err: err}
	}
	return domain.Quote{Price: vals[0], Change: vals[1], ChangePercent: vals[2]}, nil
}

// Symbols returns every USDT pair currently trading, loaded once per
// process.
func (b *Binance) Symbols(ctx context.Context) ([]domain.SymbolInfo, error) {
	return b.cache.CryptoSymbols(ctx, func(ctx context.Context) ([]domain.SymbolInfo, error) {
		if err := b.limiter.Wait(ctx); err != nil {
			return nil, transportError(b.Name(), "exchangeInfo", "", err)
		}
		info, err := b.client.NewExchangeInfoService().Do(ctx)
		if err != nil {
			return nil, b.wrap("exchangeInfo", "", err)
		}
		var out []domain.SymbolInfo
		for _, s := range info.Symbols {
			if s.Status != "TRADING" || s.QuoteAsset != "USDT" {
				continue
			}
			out = append(out, crypto(s.Symbol, s.BaseAsset))
		}
		b.log.Info("loaded exchange symbols", "count", len(out))
		return out, nil
	})
}

// Search matches the listing by symbol or base asset. When the listing
// cannot be loaded the popular pairs are searched instead.
func (b *Binance) Search(ctx context.Context, query string) ([]domain.SymbolInfo, error) {
	syms, err := b.Symbols(ctx)
	if err != nil {
		b.log.Warn("exchange symbols unavailable, using popular list", "error", err)
		syms = PopularCrypto
	}
	return matchSymbols(syms, query, MaxSearchResults), nil
}

// Validate checks the symbol against the price ticker.
func (b *Binance) Validate(ctx context.Context, symbol string) (domain.SymbolInfo, bool, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if err := b.limiter.Wait(ctx); err != nil {
		return domain.SymbolInfo{}, false, transportError(b.Name(), "price", symbol, err)
	}
	prices, err := b.client.NewListPricesService().Symbol(symbol).Do(ctx)
	if err != nil {
		werr := b.wrap("price", symbol, err)
		if errors.Is(werr, ErrNotFound) {
			return domain.SymbolInfo{}, false, nil
		}
		return domain.SymbolInfo{}, false, werr
	}
	if len(prices) == 0 {
		return domain.SymbolInfo{}, false, nil
	}

	info := crypto(symbol, strings.TrimSuffix(symbol, "USDT"))
	if syms, err := b.Symbols(ctx); err == nil {
		for _, s := range syms {
			if s.Symbol == symbol {
				info = s
				break
			}
		}
	}
	return info, true, nil
}

// statusError is an error response without a Binance JSON error body,
// such as a WAF 403 or a 451 geo-block page.
type statusError struct {
	Status int
	Body   string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("HTTP %d: %.120s", e.Status, e.Body)
}

// statusTransport keeps the HTTP status of error responses that go-binance
// would otherwise report as a zero-code APIError. Responses carrying a
// Binance {"code":...} body pass through untouched.
type statusTransport struct {
	base http.RoundTripper
}

func (t statusTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	res, err := t.base.RoundTrip(req)
	if err != nil || res.StatusCode < http.StatusBadRequest {
		return res, err
	}
	body, err := io.ReadAll(io.LimitReader(res.Body, 64<<10))
	res.Body.Close()
	if err != nil {
		return nil, err
	}
	var apiBody struct {
		Code *int64 `json:"code"`
	}
	if json.Unmarshal(body, &apiBody) == nil && apiBody.Code != nil {
		res.Body = io.NopCloser(bytes.NewReader(body))
		return res, nil
	}
	return nil, &statusError{Status: res.StatusCode, Body: strings.TrimSpace(string(body))}
}

// wrap classifies a go-binance error.
func (b *Binance) wrap(op, symbol string, err error) error {
	var se *statusError
	if errors.As(err, &se) {
		kind := KindForStatus(se.Status)
		if kind == nil {
			kind = ErrUpstream
		}
		return &Error{Provider: b.Name(), Op: op, Symbol: symbol, Kind: kind, Status: se.Status, Err: se}
	}
	var apiErr *common.APIError
	if errors.As(err, &apiErr) {
		kind := ErrUpstream
		switch apiErr.Code {
		case binanceInvalidSymbol:
			kind = ErrNotFound
		case binanceBadAPIKey, binanceRejectedKey:
			kind = ErrAuth
		}
		return &Error{Provider: b.Name(), Op: op, Symbol: symbol, Kind: kind, Err: apiErr}
	}
	return transportError(b.Name(), op, symbol, err)
}

// ---------------------------------------------------------------------------
// Decimal parsing
// ---------------------------------------------------------------------------

func parseDecimals(vals ...string) ([]float64, error) {
	out := make([]float64, len(vals))
	for i, v := range vals {
		d, err := decimal.NewFromString(v)
		if err != nil {
			return nil, err
		}
		out[i] = d.InexactFloat64()
	}
	return out, nil
}

func barFromStrings(t int64, o, h, l, c, vol string) (domain.Bar, error) {
	v, err := parseDecimals(o, h, l, c, vol)
	if err != nil {
		return domain.Bar{}, err
	}
	return domain.Bar{Time: t, Open: v[0], High: v[1], Low: v[2], Close: v[3], Volume: v[4]}, nil
}
