// Package store persists the dashboard config as a key-value blob and
// archives bar history snapshots.
package store

import (
	"context"
	"errors"
	"time"

	"chartpi/internal/domain"
)

// ErrNotFound is returned by KV.Load for a missing key.
var ErrNotFound = errors.New("store: key not found")

// KV stores opaque blobs by key.
type KV interface {
	// Load returns the blob stored under key, or ErrNotFound.
	Load(ctx context.Context, key string) ([]byte, error)

	// Save stores blob under key, replacing any previous value.
	Save(ctx context.Context, key string, blob []byte) error
}

// BarArchive persists bar history snapshots per asset class, interval
// and symbol.
type BarArchive interface {
	// WriteBars merges bars into the stored series, newer values winning.
	WriteBars(ctx context.Context, ac domain.AssetClass, iv domain.Interval, symbol string, bars []domain.Bar) error

	// ReadBars returns stored bars within [start, end]. A zero start or
	// end leaves that side open.
	ReadBars(ctx context.Context, ac domain.AssetClass, iv domain.Interval, symbol string, start, end time.Time) ([]domain.Bar, error)

	// ListSymbols returns the archived symbols for an asset class and
	// interval.
	ListSymbols(ctx context.Context, ac domain.AssetClass, iv domain.Interval) ([]string, error)
}
