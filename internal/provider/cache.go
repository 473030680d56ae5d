package provider

import (
	"context"
	"strings"
	"sync"

	"chartpi/internal/domain"
)

// Cache holds process-wide, read-mostly lookup data shared by adapters.
// Entries are populated lazily and never invalidated.
type Cache struct {
	loadMu        sync.Mutex // serialises the crypto symbol load
	mu            sync.RWMutex
	cryptoSymbols []domain.SymbolInfo
	cryptoLoaded  bool
	search        map[string][]domain.SymbolInfo
}

// NewCache creates an empty Cache.
func NewCache() *Cache {
	return &Cache{search: make(map[string][]domain.SymbolInfo)}
}

// CryptoSymbols returns the cached exchange listing, calling load once on
// first use. A failed load is not cached, so the next call retries.
func (c *Cache) CryptoSymbols(ctx context.Context, load func(context.Context) ([]domain.SymbolInfo, error)) ([]domain.SymbolInfo, error) {
	c.mu.RLock()
	if c.cryptoLoaded {
		out := c.cryptoSymbols
		c.mu.RUnlock()
		return out, nil
	}
	c.mu.RUnlock()

	c.loadMu.Lock()
	defer c.loadMu.Unlock()

	// Another caller may have finished while we waited.
	c.mu.RLock()
	if c.cryptoLoaded {
		out := c.cryptoSymbols
		c.mu.RUnlock()
		return out, nil
	}
	c.mu.RUnlock()

	syms, err := load(ctx)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.cryptoSymbols = syms
	c.cryptoLoaded = true
	c.mu.Unlock()
	return syms, nil
}

func searchKey(ac domain.AssetClass, query string) string {
	return string(ac) + ":" + strings.ToLower(strings.TrimSpace(query))
}

// Search returns cached results for query.
func (c *Cache) Search(ac domain.AssetClass, query string) ([]domain.SymbolInfo, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.search[searchKey(ac, query)]
	return v, ok
}

// PutSearch stores results for query.
func (c *Cache) PutSearch(ac domain.AssetClass, query string, results []domain.SymbolInfo) {
	c.mu.Lock()
	c.search[searchKey(ac, query)] = results
	c.mu.Unlock()
}
