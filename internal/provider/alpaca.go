package provider

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/alpaca"
	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"

	"chartpi/internal/domain"
)

var _ Provider = (*Alpaca)(nil)

var alpacaTimeFrames = map[domain.Interval]marketdata.TimeFrame{
	domain.Interval1m:  marketdata.OneMin,
	domain.Interval5m:  marketdata.NewTimeFrame(5, marketdata.Min),
	domain.Interval15m: marketdata.NewTimeFrame(15, marketdata.Min),
	domain.Interval1h:  marketdata.OneHour,
	domain.Interval4h:  marketdata.NewTimeFrame(4, marketdata.Hour),
	domain.Interval1d:  marketdata.OneDay,
	domain.Interval1w:  marketdata.NewTimeFrame(1, marketdata.Week),
}

// alpacaDaysBack sizes the request window to roughly MaxHistory bars.
var alpacaDaysBack = map[domain.Interval]int{
	domain.Interval1m:  1,
	domain.Interval5m:  2,
	domain.Interval15m: 5,
	domain.Interval1h:  14,
	domain.Interval4h:  60,
	domain.Interval1d:  365,
	domain.Interval1w:  730,
}

// AlpacaOpts configures the Alpaca adapter.
type AlpacaOpts struct {
	Credentials domain.Credentials
	DataURL     string // empty for the SDK default
	Feed        string // default "iex"
	Now         func() time.Time
}

// Alpaca is the credentialed fallback stock provider.
type Alpaca struct {
	client *marketdata.Client
	creds  domain.Credentials
	feed   marketdata.Feed
	now    func() time.Time
	log    *slog.Logger
}

// NewAlpaca creates an Alpaca adapter. Without credentials every call
// fails with ErrAuth before touching the network.
func NewAlpaca(opts AlpacaOpts) *Alpaca {
	co := marketdata.ClientOpts{
		APIKey:    opts.Credentials.APIKey,
		APISecret: opts.Credentials.APISecret,
	}
	if opts.DataURL != "" {
		co.BaseURL = opts.DataURL
	}
	feed := marketdata.Feed(opts.Feed)
	if feed == "" {
		feed = marketdata.IEX
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Alpaca{
		client: marketdata.NewClient(co),
		creds:  opts.Credentials,
		feed:   feed,
		now:    now,
		log:    slog.Default().With("provider", "alpaca"),
	}
}

// Name returns the provider identifier.
func (a *Alpaca) Name() string { return "alpaca" }

func (a *Alpaca) checkCreds(op, symbol string) error {
	if a.creds.Present() {
		return nil
	}
	return &Error{Provider: a.Name(), Op: op, Symbol: symbol, Kind: ErrAuth,
		Err: errors.New("API key and secret required")}
}

// FetchHistory returns split-adjusted bars over the interval's lookback
// window, keeping the newest MaxHistory.
func (a *Alpaca) FetchHistory(ctx context.Context, symbol string, iv domain.Interval) ([]domain.Bar, error) {
	if err := a.checkCreds("bars", symbol); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, transportError(a.Name(), "bars", symbol, err)
	}
	tf, ok := alpacaTimeFrames[iv]
	if !ok {
		return nil, &Error{Provider: a.Name(), Op: "bars", Symbol: symbol, Kind: ErrUpstream,
			Err: errors.New("unsupported interval " + string(iv))}
	}

	end := a.now()
	bars, err := a.client.GetBars(symbol, marketdata.GetBarsRequest{
		TimeFrame:  tf,
		Start:      end.AddDate(0, 0, -alpacaDaysBack[iv]),
		End:        end,
		Adjustment: marketdata.Split,
		Feed:       a.feed,
	})
	if err != nil {
		return nil, a.wrap("bars", symbol, err)
	}
	if len(bars) == 0 {
		return nil, &Error{Provider: a.Name(), Op: "bars", Symbol: symbol, Kind: ErrNoData}
	}

	out := make([]domain.Bar, len(bars))
	for i, b := range bars {
		out[i] = domain.Bar{
			Time:   b.Timestamp.Unix(),
			Open:   b.Open,
			High:   b.High,
			Low:    b.Low,
			Close:  b.Close,
			Volume: float64(b.Volume),
		}
	}
	a.log.Debug("fetched bars", "symbol", symbol, "interval", string(iv), "count", len(out))
	return TrimHistory(out), nil
}

// FetchQuote combines the latest trade with the previous daily close. With
// a single daily bar its open stands in for the previous close; with none
// the change is zero.
func (a *Alpaca) FetchQuote(ctx context.Context, symbol string) (domain.Quote, error) {
	if err := a.checkCreds("quote", symbol); err != nil {
		return domain.Quote{}, err
	}
	if err := ctx.Err(); err != nil {
		return domain.Quote{}, transportError(a.Name(), "quote", symbol, err)
	}

	trade, err := a.client.GetLatestTrade(symbol, marketdata.GetLatestTradeRequest{Feed: a.feed})
	if err != nil {
		return domain.Quote{}, a.wrap("quote", symbol, err)
	}
	if trade == nil {
		return domain.Quote{}, &Error{Provider: a.Name(), Op: "quote", Symbol: symbol, Kind: ErrNoData}
	}

	end := a.now()
	daily, err := a.client.GetBars(symbol, marketdata.GetBarsRequest{
		TimeFrame:  marketdata.OneDay,
		Start:      end.AddDate(0, 0, -10),
		End:        end,
		Adjustment: marketdata.Split,
		Feed:       a.feed,
	})
	if err != nil {
		return domain.Quote{}, a.wrap("quote", symbol, err)
	}

	prev := trade.Price
	switch n := len(daily); {
	case n >= 2:
		prev = daily[n-2].Close
	case n == 1:
		prev = daily[0].Open
	}
	return domain.NewQuote(trade.Price, prev), nil
}

// wrap classifies an SDK error by its HTTP status.
func (a *Alpaca) wrap(op, symbol string, err error) error {
	var apiErr *alpaca.APIError
	if errors.As(err, &apiErr) {
		kind := KindForStatus(apiErr.StatusCode)
		if kind == nil {
			kind = ErrUpstream
		}
		return &Error{Provider: a.Name(), Op: op, Symbol: symbol, Kind: kind, Status: apiErr.StatusCode, Err: err}
	}
	return transportError(a.Name(), op, symbol, err)
}
