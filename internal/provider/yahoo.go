package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"chartpi/internal/domain"
	"chartpi/internal/util"
)

var _ Provider = (*Yahoo)(nil)
var _ Searcher = (*Yahoo)(nil)

const yahooUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"

// Yahoo has no 4h granularity; 4h charts are served 1h bars.
var yahooIntervals = map[domain.Interval]string{
	domain.Interval1m:  "1m",
	domain.Interval5m:  "5m",
	domain.Interval15m: "15m",
	domain.Interval1h:  "1h",
	domain.Interval4h:  "1h",
	domain.Interval1d:  "1d",
	domain.Interval1w:  "1wk",
}

// yahooRanges sizes each request to roughly MaxHistory bars.
var yahooRanges = map[domain.Interval]string{
	domain.Interval1m:  "1d",
	domain.Interval5m:  "5d",
	domain.Interval15m: "5d",
	domain.Interval1h:  "1mo",
	domain.Interval4h:  "3mo",
	domain.Interval1d:  "1y",
	domain.Interval1w:  "5y",
}

// YahooOpts configures the Yahoo adapter.
type YahooOpts struct {
	BaseURL       string // default https://query1.finance.yahoo.com
	Timeout       time.Duration
	RatePerMinute int
	Cache         *Cache
}

// Yahoo is the primary, keyless stock provider.
type Yahoo struct {
	baseURL string
	client  *http.Client
	limiter *util.RateLimiter
	cache   *Cache
	log     *slog.Logger
}

// NewYahoo creates a Yahoo adapter.
func NewYahoo(opts YahooOpts) *Yahoo {
	base := opts.BaseURL
	if base == "" {
		base = "https://query1.finance.yahoo.com"
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	cache := opts.Cache
	if cache == nil {
		cache = NewCache()
	}
	return &Yahoo{
		baseURL: strings.TrimRight(base, "/"),
		client:  &http.Client{Timeout: timeout},
		limiter: util.NewRateLimiter(opts.RatePerMinute, 5),
		cache:   cache,
		log:     slog.Default().With("provider", "yahoo"),
	}
}

// Name returns the provider identifier.
func (y *Yahoo) Name() string { return "yahoo" }

// ---------------------------------------------------------------------------
// Chart API
// ---------------------------------------------------------------------------

type yahooChart struct {
	Chart struct {
		Result []yahooResult `json:"result"`
		Error  *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

type yahooResult struct {
	Meta struct {
		Symbol             string  `json:"symbol"`
		ShortName          string  `json:"shortName"`
		LongName           string  `json:"longName"`
		ExchangeName       string  `json:"exchangeName"`
		RegularMarketPrice float64 `json:"regularMarketPrice"`
		PreviousClose      float64 `json:"previousClose"`
		ChartPreviousClose float64 `json:"chartPreviousClose"`
	} `json:"meta"`
	Timestamp  []int64 `json:"timestamp"`
	Indicators struct {
		Quote []struct {
			Open   []*float64 `json:"open"`
			High   []*float64 `json:"high"`
			Low    []*float64 `json:"low"`
			Close  []*float64 `json:"close"`
			Volume []*float64 `json:"volume"`
		} `json:"quote"`
	} `json:"indicators"`
}

// chart fetches and validates one chart response.
func (y *Yahoo) chart(ctx context.Context, op, symbol, interval, rng string) (*yahooResult, error) {
	u := fmt.Sprintf("%s/v8/finance/chart/%s?interval=%s&range=%s",
		y.baseURL, url.PathEscape(symbol), interval, rng)

	var resp yahooChart
	status, err := y.getJSON(ctx, u, &resp)
	if err != nil && status == 0 {
		return nil, transportError(y.Name(), op, symbol, err)
	}

	if e := resp.Chart.Error; e != nil {
		kind := ErrUpstream
		desc := strings.ToLower(e.Description)
		if status == http.StatusNotFound || e.Code == "Not Found" ||
			strings.Contains(desc, "no data found") || strings.Contains(desc, "delisted") {
			kind = ErrNotFound
		}
		return nil, &Error{Provider: y.Name(), Op: op, Symbol: symbol, Kind: kind, Status: status, Err: errors.New(e.Description)}
	}
	if kind := KindForStatus(status); kind != nil {
		return nil, &Error{Provider: y.Name(), Op: op, Symbol: symbol, Kind: kind, Status: status, Err: err}
	}
	if err != nil {
		return nil, &Error{Provider: y.Name(), Op: op, Symbol: symbol, Kind: ErrUpstream, Err: err}
	}
	if len(resp.Chart.Result) == 0 {
		return nil, &Error{Provider: y.Name(), Op: op, Symbol: symbol, Kind: ErrNoData}
	}
	return &resp.Chart.Result[0], nil
}

// FetchHistory returns chart bars, skipping buckets with missing values.
func (y *Yahoo) FetchHistory(ctx context.Context, symbol string, iv domain.Interval) ([]domain.Bar, error) {
	yi, ok := yahooIntervals[iv]
	if !ok {
		return nil, fmt.Errorf("yahoo: unsupported interval %q", iv)
	}
	res, err := y.chart(ctx, "history", symbol, yi, yahooRanges[iv])
	if err != nil {
		return nil, err
	}
	if len(res.Timestamp) == 0 || len(res.Indicators.Quote) == 0 {
		return nil, &Error{Provider: y.Name(), Op: "history", Symbol: symbol, Kind: ErrNoData}
	}

	q := res.Indicators.Quote[0]
	bars := make([]domain.Bar, 0, len(res.Timestamp))
	for i, ts := range res.Timestamp {
		o, h, l, c := at(q.Open, i), at(q.High, i), at(q.Low, i), at(q.Close, i)
		if o == nil || h == nil || l == nil || c == nil {
			continue
		}
		bar := domain.Bar{Time: ts, Open: *o, High: *h, Low: *l, Close: *c}
		if v := at(q.Volume, i); v != nil {
			bar.Volume = *v
		}
		bars = append(bars, bar)
	}
	if len(bars) == 0 {
		return nil, &Error{Provider: y.Name(), Op: "history", Symbol: symbol, Kind: ErrNoData}
	}
	return TrimHistory(bars), nil
}

func at(vals []*float64, i int) *float64 {
	if i >= len(vals) {
		return nil
	}
	return vals[i]
}

// FetchQuote derives the quote from the daily chart's metadata.
func (y *Yahoo) FetchQuote(ctx context.Context, symbol string) (domain.Quote, error) {
	res, err := y.chart(ctx, "quote", symbol, "1d", "1d")
	if err != nil {
		return domain.Quote{}, err
	}
	prev := res.Meta.PreviousClose
	if prev == 0 {
		prev = res.Meta.ChartPreviousClose
	}
	return domain.NewQuote(res.Meta.RegularMarketPrice, prev), nil
}

// ---------------------------------------------------------------------------
// Search
// ---------------------------------------------------------------------------

type yahooSearch struct {
	Quotes []struct {
		Symbol         string `json:"symbol"`
		ShortName      string `json:"shortname"`
		LongName       string `json:"longname"`
		Exchange       string `json:"exchange"`
		QuoteType      string `json:"quoteType"`
		IsYahooFinance bool   `json:"isYahooFinance"`
	} `json:"quotes"`
}

// Search merges popular matches with Yahoo's autocomplete equities.
// Results are cached per lowercase query. If the upstream call fails the
// popular matches are returned uncached.
func (y *Yahoo) Search(ctx context.Context, query string) ([]domain.SymbolInfo, error) {
	if cached, ok := y.cache.Search(domain.AssetStock, query); ok {
		return cached, nil
	}

	merged := matchSymbols(PopularStocks, query, MaxSearchResults)
	fallback := merged
	if len(fallback) == 0 {
		fallback = Popular(domain.AssetStock)
	}

	u := fmt.Sprintf("%s/v1/finance/search?q=%s&quotesCount=%d&newsCount=0",
		y.baseURL, url.QueryEscape(query), MaxSearchResults)
	var resp yahooSearch
	status, err := y.getJSON(ctx, u, &resp)
	if err == nil && KindForStatus(status) != nil {
		err = fmt.Errorf("HTTP %d", status)
	}
	if err != nil {
		y.log.Warn("search failed, using popular list", "query", query, "error", err)
		return fallback, nil
	}

	seen := make(map[string]bool, len(merged))
	for _, m := range merged {
		seen[m.Symbol] = true
	}
	for _, q := range resp.Quotes {
		if q.QuoteType != "EQUITY" || !q.IsYahooFinance || seen[q.Symbol] {
			continue
		}
		name := q.ShortName
		if name == "" {
			name = q.LongName
		}
		if name == "" {
			name = q.Symbol
		}
		merged = append(merged, stock(q.Symbol, name, q.Exchange))
		seen[q.Symbol] = true
	}
	if len(merged) > MaxSearchResults {
		merged = merged[:MaxSearchResults]
	}

	y.cache.PutSearch(domain.AssetStock, query, merged)
	return merged, nil
}

// Validate accepts popular symbols directly and otherwise asks the chart
// API for a daily quote.
func (y *Yahoo) Validate(ctx context.Context, symbol string) (domain.SymbolInfo, bool, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if info, ok := findPopular(domain.AssetStock, symbol); ok {
		return info, true, nil
	}

	res, err := y.chart(ctx, "validate", symbol, "1d", "1d")
	if err != nil {
		if IsKind(err, ErrNotFound, ErrNoData) {
			return domain.SymbolInfo{}, false, nil
		}
		return domain.SymbolInfo{}, false, err
	}
	name := res.Meta.ShortName
	if name == "" {
		name = res.Meta.LongName
	}
	if name == "" {
		name = symbol
	}
	return stock(symbol, name, res.Meta.ExchangeName), true, nil
}

// ---------------------------------------------------------------------------
// HTTP
// ---------------------------------------------------------------------------

// getJSON performs a GET and decodes the body into out regardless of
// status, since Yahoo reports errors inside JSON bodies. The returned
// status is 0 when no response was received.
func (y *Yahoo) getJSON(ctx context.Context, u string, out any) (int, error) {
	if err := y.limiter.Wait(ctx); err != nil {
		return 0, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("User-Agent", yahooUserAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := y.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return resp.StatusCode, err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return resp.StatusCode, fmt.Errorf("decoding response: %w", err)
	}
	return resp.StatusCode, nil
}
