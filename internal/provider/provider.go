// Package provider adapts upstream market-data APIs (Binance, Yahoo
// Finance, Alpaca) to one bar and quote model with a shared error
// taxonomy.
package provider

import (
	"context"
	"fmt"

	"chartpi/internal/domain"
)

// HistoryFetcher returns up to MaxHistory bars, oldest first.
type HistoryFetcher interface {
	FetchHistory(ctx context.Context, symbol string, iv domain.Interval) ([]domain.Bar, error)
}

// QuoteFetcher returns the latest price and its change.
type QuoteFetcher interface {
	FetchQuote(ctx context.Context, symbol string) (domain.Quote, error)
}

// Provider is a named history and quote source.
type Provider interface {
	Name() string
	HistoryFetcher
	QuoteFetcher
}

// Searcher looks symbols up for one asset class.
type Searcher interface {
	Search(ctx context.Context, query string) ([]domain.SymbolInfo, error)
	Validate(ctx context.Context, symbol string) (domain.SymbolInfo, bool, error)
}

// Stream is a live bar subscription.
type Stream interface {
	// Close ends the subscription. It is safe to call more than once.
	Close() error
}

// Streamer opens live bar subscriptions. onBar receives every update,
// including repeated partial updates of the current bar. onError fires at
// most once, after which the stream is finished.
type Streamer interface {
	OpenStream(ctx context.Context, symbol string, iv domain.Interval, onBar func(domain.Bar), onError func(error)) (Stream, error)
}

// Set bundles the adapters used by the orchestrator. Fallback is used only
// when the slot holds credentials; NewFallback builds it from them.
type Set struct {
	Crypto      Provider
	Stream      Streamer
	Primary     Provider
	NewFallback func(domain.Credentials) Provider

	CryptoSearch Searcher
	StockSearch  Searcher
}

// Search routes a query to the searcher of ac. An empty query returns the
// popular list.
func (s Set) Search(ctx context.Context, query string, ac domain.AssetClass) ([]domain.SymbolInfo, error) {
	if query == "" {
		return Popular(ac), nil
	}
	sr, err := s.searcher(ac)
	if err != nil {
		return nil, err
	}
	return sr.Search(ctx, query)
}

// Validate reports whether symbol exists for ac.
func (s Set) Validate(ctx context.Context, symbol string, ac domain.AssetClass) (domain.SymbolInfo, bool, error) {
	sr, err := s.searcher(ac)
	if err != nil {
		return domain.SymbolInfo{}, false, err
	}
	return sr.Validate(ctx, symbol)
}

func (s Set) searcher(ac domain.AssetClass) (Searcher, error) {
	switch {
	case ac == domain.AssetCrypto && s.CryptoSearch != nil:
		return s.CryptoSearch, nil
	case ac == domain.AssetStock && s.StockSearch != nil:
		return s.StockSearch, nil
	}
	return nil, fmt.Errorf("no searcher for asset class %q", ac)
}
