package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/parquet-go/parquet-go"

	"chartpi/internal/domain"
)

var _ BarArchive = (*ParquetStore)(nil)

// ParquetStore implements BarArchive using one Parquet file per series.
type ParquetStore struct {
	DataDir string
}

// NewParquetStore creates a new ParquetStore rooted at the given data directory.
func NewParquetStore(dataDir string) *ParquetStore {
	return &ParquetStore{DataDir: dataDir}
}

// BarRecord is the Parquet schema for archived bars.
type BarRecord struct {
	Symbol    string  `parquet:"symbol"`
	Timestamp int64   `parquet:"timestamp,timestamp(millisecond)"` // Unix ms
	Open      float64 `parquet:"open"`
	High      float64 `parquet:"high"`
	Low       float64 `parquet:"low"`
	Close     float64 `parquet:"close"`
	Volume    float64 `parquet:"volume"`
}

// WriteBars merges bars into the file for (ac, iv, symbol):
//
//	<DataDir>/<assetClass>/<interval>/<SYMBOL>.parquet
func (s *ParquetStore) WriteBars(_ context.Context, ac domain.AssetClass, iv domain.Interval, symbol string, bars []domain.Bar) error {
	if len(bars) == 0 {
		return nil
	}
	symbol = strings.ToUpper(symbol)

	records := make([]BarRecord, len(bars))
	for i, b := range bars {
		records[i] = BarRecord{
			Symbol:    symbol,
			Timestamp: b.Time * 1000,
			Open:      b.Open,
			High:      b.High,
			Low:       b.Low,
			Close:     b.Close,
			Volume:    b.Volume,
		}
	}

	path := s.barPath(ac, iv, symbol)
	existing, _ := readParquetFile[BarRecord](path)
	merged := mergeBarRecords(existing, records)

	if err := writeParquetFile(path, merged); err != nil {
		return fmt.Errorf("writing bars for %s/%s/%s: %w", ac, iv, symbol, err)
	}
	return nil
}

// ReadBars returns archived bars within [start, end], oldest first. A
// missing file yields no bars and no error.
func (s *ParquetStore) ReadBars(_ context.Context, ac domain.AssetClass, iv domain.Interval, symbol string, start, end time.Time) ([]domain.Bar, error) {
	path := s.barPath(ac, iv, symbol)
	records, err := readParquetFile[BarRecord](path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	var bars []domain.Bar
	for _, r := range records {
		ts := time.UnixMilli(r.Timestamp)
		if !start.IsZero() && ts.Before(start) {
			continue
		}
		if !end.IsZero() && ts.After(end) {
			continue
		}
		bars = append(bars, domain.Bar{
			Time:   r.Timestamp / 1000,
			Open:   r.Open,
			High:   r.High,
			Low:    r.Low,
			Close:  r.Close,
			Volume: r.Volume,
		})
	}
	return bars, nil
}

// ListSymbols lists the archived symbols for an asset class and interval.
func (s *ParquetStore) ListSymbols(_ context.Context, ac domain.AssetClass, iv domain.Interval) ([]string, error) {
	dir := filepath.Join(s.DataDir, string(ac), string(iv))
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var symbols []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".parquet") {
			symbols = append(symbols, strings.TrimSuffix(e.Name(), ".parquet"))
		}
	}
	sort.Strings(symbols)
	return symbols, nil
}

// barPath returns the filesystem path for a series file.
func (s *ParquetStore) barPath(ac domain.AssetClass, iv domain.Interval, symbol string) string {
	return filepath.Join(s.DataDir, string(ac), string(iv), strings.ToUpper(symbol)+".parquet")
}

// ---------------------------------------------------------------------------
// Parquet file helpers
// ---------------------------------------------------------------------------

func writeParquetFile[T any](path string, records []T) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return parquet.WriteFile(path, records)
}

func readParquetFile[T any](path string) ([]T, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, err
	}
	return parquet.ReadFile[T](path)
}

// mergeBarRecords deduplicates by timestamp, preferring incoming records,
// and sorts ascending.
func mergeBarRecords(existing, incoming []BarRecord) []BarRecord {
	seen := make(map[int64]BarRecord, len(existing)+len(incoming))
	for _, r := range existing {
		seen[r.Timestamp] = r
	}
	for _, r := range incoming {
		seen[r.Timestamp] = r
	}

	merged := make([]BarRecord, 0, len(seen))
	for _, r := range seen {
		merged = append(merged, r)
	}
	sort.Slice(merged, func(i, j int) bool {
		return merged[i].Timestamp < merged[j].Timestamp
	})
	return merged
}
