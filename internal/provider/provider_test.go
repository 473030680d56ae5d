package provider

import (
	"context"
	"testing"

	"chartpi/internal/domain"
)

type stubSearcher struct {
	queries []string
	result  []domain.SymbolInfo
}

func (s *stubSearcher) Search(_ context.Context, q string) ([]domain.SymbolInfo, error) {
	s.queries = append(s.queries, q)
	return s.result, nil
}

func (s *stubSearcher) Validate(_ context.Context, sym string) (domain.SymbolInfo, bool, error) {
	return domain.SymbolInfo{Symbol: sym}, true, nil
}

func TestSetSearchRouting(t *testing.T) {
	cs := &stubSearcher{result: []domain.SymbolInfo{crypto("BTCUSDT", "BTC")}}
	ss := &stubSearcher{result: []domain.SymbolInfo{stock("AAPL", "Apple", "NASDAQ")}}
	set := Set{CryptoSearch: cs, StockSearch: ss}

	got, err := set.Search(context.Background(), "", domain.AssetCrypto)
	if err != nil || len(got) != 10 || got[0].Symbol != "BTCUSDT" {
		t.Errorf("empty query = %v, %v; want popular crypto", got, err)
	}
	if len(cs.queries) != 0 {
		t.Errorf("empty query reached searcher: %v", cs.queries)
	}

	got, _ = set.Search(context.Background(), "app", domain.AssetStock)
	if len(got) != 1 || got[0].Symbol != "AAPL" || len(ss.queries) != 1 {
		t.Errorf("stock search = %v, queries %v", got, ss.queries)
	}

	if _, err := (Set{}).Search(context.Background(), "x", domain.AssetStock); err == nil {
		t.Error("missing searcher should error")
	}
	if _, ok, err := set.Validate(context.Background(), "ETHUSDT", domain.AssetCrypto); !ok || err != nil {
		t.Errorf("Validate = %v, %v", ok, err)
	}
}

func TestNewSetWiring(t *testing.T) {
	set := NewSet(Opts{}, nil)
	if set.Crypto.Name() != "binance" || set.Primary.Name() != "yahoo" {
		t.Errorf("providers = %s/%s", set.Crypto.Name(), set.Primary.Name())
	}
	fb := set.NewFallback(domain.Credentials{APIKey: "k", APISecret: "s"})
	if fb.Name() != "alpaca" {
		t.Errorf("fallback = %s, want alpaca", fb.Name())
	}
	if set.Stream == nil || set.CryptoSearch == nil || set.StockSearch == nil {
		t.Error("NewSet left a component nil")
	}
}
