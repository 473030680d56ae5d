package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"chartpi/internal/domain"
)

func TestParquetStorePath(t *testing.T) {
	ps := NewParquetStore("/data")

	got := ps.barPath(domain.AssetCrypto, domain.Interval1h, "btcusdt")
	want := filepath.Join("/data", "crypto", "1h", "BTCUSDT.parquet")
	if got != want {
		t.Errorf("barPath mismatch:\n  got  %s\n  want %s", got, want)
	}
}

func TestParquetStoreWriteReadBars(t *testing.T) {
	ps := NewParquetStore(t.TempDir())
	ctx := context.Background()

	bars := []domain.Bar{
		{Time: 1704207600, Open: 185.0, High: 186.5, Low: 184.0, Close: 185.5, Volume: 50000000},
		{Time: 1704294000, Open: 185.5, High: 187.0, Low: 185.0, Close: 186.0, Volume: 45000000},
	}
	if err := ps.WriteBars(ctx, domain.AssetStock, domain.Interval1d, "AAPL", bars); err != nil {
		t.Fatalf("WriteBars: %v", err)
	}

	got, err := ps.ReadBars(ctx, domain.AssetStock, domain.Interval1d, "AAPL", time.Time{}, time.Time{})
	if err != nil {
		t.Fatalf("ReadBars: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("ReadBars returned %d bars, want 2", len(got))
	}
	if got[0] != bars[0] || got[1] != bars[1] {
		t.Errorf("ReadBars = %+v, want %+v", got, bars)
	}

	start := time.Unix(1704294000, 0)
	got, err = ps.ReadBars(ctx, domain.AssetStock, domain.Interval1d, "AAPL", start, time.Time{})
	if err != nil {
		t.Fatalf("ReadBars: %v", err)
	}
	if len(got) != 1 || got[0].Close != 186.0 {
		t.Errorf("ReadBars from %v = %+v, want the second bar", start, got)
	}
}

func TestParquetStoreMergeBars(t *testing.T) {
	ps := NewParquetStore(t.TempDir())
	ctx := context.Background()

	first := []domain.Bar{
		{Time: 60, Open: 1, High: 2, Low: 1, Close: 1.5},
		{Time: 120, Open: 1.5, High: 2, Low: 1, Close: 1.8},
	}
	if err := ps.WriteBars(ctx, domain.AssetCrypto, domain.Interval1m, "BTCUSDT", first); err != nil {
		t.Fatalf("WriteBars (first): %v", err)
	}
	second := []domain.Bar{
		{Time: 120, Open: 1.5, High: 3, Low: 1, Close: 2.5},
		{Time: 180, Open: 2.5, High: 3, Low: 2, Close: 2.9},
	}
	if err := ps.WriteBars(ctx, domain.AssetCrypto, domain.Interval1m, "BTCUSDT", second); err != nil {
		t.Fatalf("WriteBars (second): %v", err)
	}

	got, err := ps.ReadBars(ctx, domain.AssetCrypto, domain.Interval1m, "BTCUSDT", time.Time{}, time.Time{})
	if err != nil {
		t.Fatalf("ReadBars: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("ReadBars returned %d bars after merge, want 3", len(got))
	}
	if got[1].Close != 2.5 {
		t.Errorf("overlapping bar Close = %v, want 2.5 (newer wins)", got[1].Close)
	}
	for i := 1; i < len(got); i++ {
		if got[i].Time <= got[i-1].Time {
			t.Errorf("bars not ascending at %d", i)
		}
	}
}

func TestParquetStoreMissingAndList(t *testing.T) {
	ps := NewParquetStore(t.TempDir())
	ctx := context.Background()

	got, err := ps.ReadBars(ctx, domain.AssetStock, domain.Interval1h, "NONE", time.Time{}, time.Time{})
	if err != nil || got != nil {
		t.Errorf("ReadBars(missing) = %v, %v; want nil, nil", got, err)
	}
	syms, err := ps.ListSymbols(ctx, domain.AssetStock, domain.Interval1h)
	if err != nil || len(syms) != 0 {
		t.Errorf("ListSymbols(empty) = %v, %v", syms, err)
	}

	bar := []domain.Bar{{Time: 3600, Open: 1, High: 1, Low: 1, Close: 1}}
	for _, sym := range []string{"TSLA", "AAPL"} {
		if err := ps.WriteBars(ctx, domain.AssetStock, domain.Interval1h, sym, bar); err != nil {
			t.Fatalf("WriteBars(%s): %v", sym, err)
		}
	}
	syms, err = ps.ListSymbols(ctx, domain.AssetStock, domain.Interval1h)
	if err != nil {
		t.Fatalf("ListSymbols: %v", err)
	}
	if len(syms) != 2 || syms[0] != "AAPL" || syms[1] != "TSLA" {
		t.Errorf("ListSymbols = %v, want [AAPL TSLA]", syms)
	}
}

func TestSQLiteKV(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")
	kv, err := NewSQLiteKV(dbPath)
	if err != nil {
		t.Fatalf("NewSQLiteKV(%q) returned error: %v", dbPath, err)
	}
	defer func() {
		if cerr := kv.Close(); cerr != nil {
			t.Errorf("Close() returned error: %v", cerr)
		}
	}()
	ctx := context.Background()

	if _, err := kv.Load(ctx, "dashboard-config"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Load(missing) err = %v, want ErrNotFound", err)
	}

	if err := kv.Save(ctx, "dashboard-config", []byte(`{"a":1}`)); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := kv.Save(ctx, "dashboard-config", []byte(`{"a":2}`)); err != nil {
		t.Fatalf("Save (overwrite): %v", err)
	}
	got, err := kv.Load(ctx, "dashboard-config")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if string(got) != `{"a":2}` {
		t.Errorf("Load = %s, want {\"a\":2}", got)
	}

	ts, err := kv.UpdatedAt(ctx, "dashboard-config")
	if err != nil || time.Since(ts) > time.Minute {
		t.Errorf("UpdatedAt = %v, %v", ts, err)
	}
}

func TestSQLiteKVReopen(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "reopen.db")
	ctx := context.Background()

	kv, err := NewSQLiteKV(dbPath)
	if err != nil {
		t.Fatalf("NewSQLiteKV: %v", err)
	}
	if err := kv.Save(ctx, "k", []byte("v")); err != nil {
		t.Fatalf("Save: %v", err)
	}
	kv.Close()

	kv, err = NewSQLiteKV(dbPath)
	if err != nil {
		t.Fatalf("NewSQLiteKV (reopen): %v", err)
	}
	defer kv.Close()
	got, err := kv.Load(ctx, "k")
	if err != nil || string(got) != "v" {
		t.Errorf("Load after reopen = %q, %v", got, err)
	}
}

func TestMemoryKV(t *testing.T) {
	kv := NewMemoryKV()
	ctx := context.Background()

	if _, err := kv.Load(ctx, "x"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Load(missing) err = %v, want ErrNotFound", err)
	}
	blob := []byte("hello")
	if err := kv.Save(ctx, "x", blob); err != nil {
		t.Fatalf("Save: %v", err)
	}
	blob[0] = 'j'
	got, _ := kv.Load(ctx, "x")
	if string(got) != "hello" {
		t.Errorf("Load = %q, want stored copy %q", got, "hello")
	}

	kv.SaveErr = errors.New("disk full")
	if err := kv.Save(ctx, "x", []byte("y")); err == nil {
		t.Error("Save should fail with SaveErr set")
	}
	if kv.Saves() != 2 {
		t.Errorf("Saves = %d, want 2", kv.Saves())
	}
}
