package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"chartpi/internal/domain"
	"chartpi/internal/store"
	"chartpi/internal/util"
)

func newTestStore(t *testing.T, kv *store.MemoryKV) *Store {
	t.Helper()
	return NewStore(context.Background(), kv, util.Discard())
}

func savedConfig(t *testing.T, kv *store.MemoryKV) domain.DashboardConfig {
	t.Helper()
	blob, err := kv.Load(context.Background(), StorageKey)
	if err != nil {
		t.Fatalf("Load(%s): %v", StorageKey, err)
	}
	var cfg domain.DashboardConfig
	if err := json.Unmarshal(blob, &cfg); err != nil {
		t.Fatalf("unmarshal saved config: %v", err)
	}
	return cfg
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Layout != (domain.Layout{Columns: 3, Rows: 2}) {
		t.Errorf("Layout = %+v, want 3x2", cfg.Layout)
	}
	want := []string{"BTCUSDT", "ETHUSDT", "SOLUSDT", "AAPL", "TSLA", "NVDA"}
	if len(cfg.Charts) != len(want) {
		t.Fatalf("len(Charts) = %d, want %d", len(cfg.Charts), len(want))
	}
	for i, c := range cfg.Charts {
		if c.Symbol != want[i] {
			t.Errorf("Charts[%d].Symbol = %s, want %s", i, c.Symbol, want[i])
		}
		if c.Interval != domain.Interval1h || c.RenderStyle != domain.StyleCandlestick || c.RefreshIntervalSeconds != 30 {
			t.Errorf("Charts[%d] = %+v, want 1h candlestick 30s", i, c)
		}
	}
	if cfg.Charts[0].AssetClass != domain.AssetCrypto || cfg.Charts[3].AssetClass != domain.AssetStock {
		t.Error("asset classes do not match the default symbols")
	}
}

func TestNewStoreMissingBlob(t *testing.T) {
	s := newTestStore(t, store.NewMemoryKV())
	if got := len(s.Config().Charts); got != 6 {
		t.Errorf("charts = %d, want defaults", got)
	}
}

func TestNewStoreCorruptBlob(t *testing.T) {
	kv := store.NewMemoryKV()
	kv.Save(context.Background(), StorageKey, []byte("{not json"))

	s := newTestStore(t, kv)
	if got := s.Config().Layout; got != (domain.Layout{Columns: 3, Rows: 2}) {
		t.Errorf("Layout = %+v, want defaults", got)
	}
}

func TestNewStoreOverlaysDefaults(t *testing.T) {
	kv := store.NewMemoryKV()
	blob := `{"layout":{"columns":2,"rows":1},"charts":[{"id":"x","symbol":"msft","type":"stock"}]}`
	kv.Save(context.Background(), StorageKey, []byte(blob))

	cfg := newTestStore(t, kv).Config()
	if cfg.Layout.Columns != 2 || cfg.Layout.Rows != 1 {
		t.Errorf("Layout = %+v, want 2x1", cfg.Layout)
	}
	if len(cfg.Charts) != 1 {
		t.Fatalf("len(Charts) = %d, want 1", len(cfg.Charts))
	}
	c := cfg.Charts[0]
	if c.ID != "x" || c.Symbol != "MSFT" || c.Interval != domain.Interval1h || c.RefreshIntervalSeconds != 30 {
		t.Errorf("chart = %+v, want normalized MSFT", c)
	}
	if !cfg.ShowSessionClock {
		t.Error("ShowSessionClock should keep its default when absent")
	}
}

func TestNewStoreInvalidLayout(t *testing.T) {
	kv := store.NewMemoryKV()
	kv.Save(context.Background(), StorageKey, []byte(`{"layout":{"columns":0,"rows":2}}`))

	if got := newTestStore(t, kv).Config().Layout.Columns; got != 3 {
		t.Errorf("Columns = %d, want default 3", got)
	}
}

func TestAddChart(t *testing.T) {
	kv := store.NewMemoryKV()
	s := newTestStore(t, kv)
	_, events := s.Subscribe(4)

	added, err := s.AddChart(domain.ChartConfig{Symbol: "amd", AssetClass: domain.AssetStock})
	if err != nil {
		t.Fatalf("AddChart: %v", err)
	}
	if !strings.HasPrefix(added.ID, "chart-") || len(added.ID) <= len("chart-") {
		t.Errorf("ID = %q, want chart-<uuid>", added.ID)
	}
	if added.Symbol != "AMD" {
		t.Errorf("Symbol = %s, want AMD", added.Symbol)
	}

	again, _ := s.AddChart(domain.ChartConfig{Symbol: "AMD"})
	if again.ID == added.ID {
		t.Error("AddChart reused an ID")
	}

	saved := savedConfig(t, kv)
	if len(saved.Charts) != 8 || saved.Charts[6].ID != added.ID {
		t.Errorf("saved charts = %d, want 8 with the new chart persisted", len(saved.Charts))
	}

	ev := <-events
	if ev.Type != EventChartAdded || ev.ChartID != added.ID || len(ev.Config.Charts) != 7 {
		t.Errorf("event = %+v", ev)
	}
}

func TestAddChartRejectsEmptySymbol(t *testing.T) {
	kv := store.NewMemoryKV()
	s := newTestStore(t, kv)
	if _, err := s.AddChart(domain.ChartConfig{Symbol: "  "}); err == nil {
		t.Error("AddChart with empty symbol should fail")
	}
	if kv.Saves() != 0 {
		t.Errorf("Saves = %d, want 0", kv.Saves())
	}
}

func TestRemoveChart(t *testing.T) {
	kv := store.NewMemoryKV()
	s := newTestStore(t, kv)
	_, events := s.Subscribe(4)

	if err := s.RemoveChart("chart-2"); err != nil {
		t.Fatalf("RemoveChart: %v", err)
	}
	if _, ok := s.Chart("chart-2"); ok {
		t.Error("chart-2 still present")
	}
	if got := len(savedConfig(t, kv).Charts); got != 5 {
		t.Errorf("saved charts = %d, want 5", got)
	}
	if ev := <-events; ev.Type != EventChartRemoved || ev.ChartID != "chart-2" {
		t.Errorf("event = %+v", ev)
	}

	if err := s.RemoveChart("nope"); !errors.Is(err, ErrUnknownChart) {
		t.Errorf("RemoveChart(nope) = %v, want ErrUnknownChart", err)
	}
}

func TestUpdateChart(t *testing.T) {
	s := newTestStore(t, store.NewMemoryKV())

	c, _ := s.Chart("chart-1")
	c.Interval = domain.Interval5m
	c.RenderStyle = domain.StyleLine
	if err := s.UpdateChart(c); err != nil {
		t.Fatalf("UpdateChart: %v", err)
	}
	got, _ := s.Chart("chart-1")
	if got.Interval != domain.Interval5m || got.RenderStyle != domain.StyleLine {
		t.Errorf("chart = %+v", got)
	}

	c.ID = "missing"
	if err := s.UpdateChart(c); !errors.Is(err, ErrUnknownChart) {
		t.Errorf("UpdateChart(missing) = %v, want ErrUnknownChart", err)
	}
}

func TestUpdateLayout(t *testing.T) {
	kv := store.NewMemoryKV()
	s := newTestStore(t, kv)

	if err := s.UpdateLayout(domain.Layout{Columns: 1, Rows: 1}); err != nil {
		t.Fatalf("UpdateLayout: %v", err)
	}
	cfg := s.Config()
	if len(cfg.Charts) != 6 || len(cfg.Visible()) != 1 {
		t.Errorf("charts = %d visible = %d, want 6 and 1", len(cfg.Charts), len(cfg.Visible()))
	}
	if err := s.UpdateLayout(domain.Layout{Columns: 0, Rows: 1}); err == nil {
		t.Error("UpdateLayout(0x1) should fail")
	}
	if got := savedConfig(t, kv).Layout; got != (domain.Layout{Columns: 1, Rows: 1}) {
		t.Errorf("saved layout = %+v", got)
	}
}

func TestToggleSettingsNotPersisted(t *testing.T) {
	kv := store.NewMemoryKV()
	s := newTestStore(t, kv)

	if !s.ToggleSettings() || !s.SettingsOpen() {
		t.Error("first toggle should open settings")
	}
	if s.ToggleSettings() {
		t.Error("second toggle should close settings")
	}
	if kv.Saves() != 0 {
		t.Errorf("Saves = %d, want 0", kv.Saves())
	}
}

func TestSetFallbackCredentials(t *testing.T) {
	kv := store.NewMemoryKV()
	s := newTestStore(t, kv)

	s.SetFallbackCredentials(domain.Credentials{APIKey: " key ", APISecret: "secret"})
	if got := s.Config().Credentials; got.APIKey != "key" || !got.Present() {
		t.Errorf("Credentials = %+v", got)
	}
	if got := savedConfig(t, kv).Credentials.APISecret; got != "secret" {
		t.Errorf("saved secret = %q", got)
	}

	s.SetFallbackCredentials(domain.Credentials{})
	if s.Config().Credentials.Present() {
		t.Error("empty credentials should clear the fallback")
	}
}

func TestSetConfigAssignsIDs(t *testing.T) {
	s := newTestStore(t, store.NewMemoryKV())
	err := s.SetConfig(domain.DashboardConfig{
		Layout: domain.Layout{Columns: 2, Rows: 2},
		Charts: []domain.ChartConfig{
			{Symbol: "BTCUSDT", AssetClass: domain.AssetCrypto},
			{ID: "dup", Symbol: "AAPL"},
			{ID: "dup", Symbol: "TSLA"},
		},
	})
	if err != nil {
		t.Fatalf("SetConfig: %v", err)
	}
	cfg := s.Config()
	seen := map[string]bool{}
	for _, c := range cfg.Charts {
		if c.ID == "" || seen[c.ID] {
			t.Errorf("chart %s has missing or duplicate ID %q", c.Symbol, c.ID)
		}
		seen[c.ID] = true
	}
	if err := s.SetConfig(domain.DashboardConfig{}); err == nil {
		t.Error("SetConfig with zero layout should fail")
	}
}

func TestSaveFailureIsLogged(t *testing.T) {
	kv := store.NewMemoryKV()
	s := newTestStore(t, kv)
	kv.SaveErr = errors.New("disk full")

	if err := s.UpdateLayout(domain.Layout{Columns: 2, Rows: 2}); err != nil {
		t.Fatalf("UpdateLayout returned %v, want save failure swallowed", err)
	}
	if got := s.Config().Layout.Columns; got != 2 {
		t.Errorf("Columns = %d, want in-memory update kept", got)
	}
}

func TestConfigReturnsCopy(t *testing.T) {
	s := newTestStore(t, store.NewMemoryKV())
	cfg := s.Config()
	cfg.Charts[0].Symbol = "CHANGED"
	if c, _ := s.Chart("chart-1"); c.Symbol != "BTCUSDT" {
		t.Errorf("store mutated through Config copy: %s", c.Symbol)
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	s := newTestStore(t, store.NewMemoryKV())
	id, events := s.Subscribe(0)
	s.ToggleSettings() // dropped, no buffer
	s.Unsubscribe(id)
	if _, ok := <-events; ok {
		t.Error("channel should be closed and empty")
	}
}
