package provider

import (
	"time"

	"chartpi/internal/domain"
)

// Opts carries endpoint and pacing settings for every adapter. Empty
// URLs select the public defaults.
type Opts struct {
	BinanceURL       string
	BinanceStreamURL string
	YahooURL         string
	AlpacaDataURL    string
	AlpacaFeed       string
	Timeout          time.Duration
	RatePerMinute    int
}

// NewSet wires the Binance, Yahoo and Alpaca adapters around one cache.
func NewSet(opts Opts, cache *Cache) Set {
	if cache == nil {
		cache = NewCache()
	}
	bn := NewBinance(BinanceOpts{
		BaseURL:       opts.BinanceURL,
		StreamURL:     opts.BinanceStreamURL,
		Timeout:       opts.Timeout,
		RatePerMinute: opts.RatePerMinute,
		Cache:         cache,
	})
	yh := NewYahoo(YahooOpts{
		BaseURL:       opts.YahooURL,
		Timeout:       opts.Timeout,
		RatePerMinute: opts.RatePerMinute,
		Cache:         cache,
	})
	return Set{
		Crypto:  bn,
		Stream:  bn,
		Primary: yh,
		NewFallback: func(c domain.Credentials) Provider {
			return NewAlpaca(AlpacaOpts{Credentials: c, DataURL: opts.AlpacaDataURL, Feed: opts.AlpacaFeed})
		},
		CryptoSearch: bn,
		StockSearch:  yh,
	}
}
