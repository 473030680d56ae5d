// Package dashboard holds the authoritative dashboard config, persists it
// on every change and formats chart values for display.
package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"chartpi/internal/domain"
	"chartpi/internal/store"
)

// StorageKey is the KV key of the persisted config.
const StorageKey = "dashboard-config"

const saveTimeout = 5 * time.Second

// ErrUnknownChart is returned when an action names a chart that does not
// exist.
var ErrUnknownChart = errors.New("unknown chart")

// EventType names the action that produced an Event.
type EventType string

const (
	EventConfig       EventType = "config"
	EventLayout       EventType = "layout"
	EventChartAdded   EventType = "chart-added"
	EventChartRemoved EventType = "chart-removed"
	EventChartUpdated EventType = "chart-updated"
	EventSettings     EventType = "settings"
	EventCredentials  EventType = "credentials"
)

// Event is broadcast after every action. Config is a copy of the config
// after the action was applied.
type Event struct {
	Type         EventType
	ChartID      string
	Config       domain.DashboardConfig
	SettingsOpen bool
}

// DefaultConfig is the config used when nothing valid is persisted.
func DefaultConfig() domain.DashboardConfig {
	chart := func(id, sym string, ac domain.AssetClass) domain.ChartConfig {
		return domain.ChartConfig{
			ID:                     id,
			Symbol:                 sym,
			AssetClass:             ac,
			RenderStyle:            domain.StyleCandlestick,
			Interval:               domain.Interval1h,
			RefreshIntervalSeconds: domain.DefaultRefreshSeconds,
		}
	}
	return domain.DashboardConfig{
		Layout: domain.Layout{Columns: 3, Rows: 2},
		Charts: []domain.ChartConfig{
			chart("chart-1", "BTCUSDT", domain.AssetCrypto),
			chart("chart-2", "ETHUSDT", domain.AssetCrypto),
			chart("chart-3", "SOLUSDT", domain.AssetCrypto),
			chart("chart-4", "AAPL", domain.AssetStock),
			chart("chart-5", "TSLA", domain.AssetStock),
			chart("chart-6", "NVDA", domain.AssetStock),
		},
		ShowSessionClock: true,
	}
}

// Store is the single writer of the dashboard config.
type Store struct {
	mu           sync.RWMutex
	cfg          domain.DashboardConfig
	settingsOpen bool
	kv           store.KV
	log          *slog.Logger
	newID        func() string

	subsMu    sync.Mutex
	nextSubID int
	subs      map[int]chan Event
}

// NewStore creates a Store, loading the persisted config from kv. A
// missing or corrupt blob yields DefaultConfig.
func NewStore(ctx context.Context, kv store.KV, log *slog.Logger) *Store {
	if log == nil {
		log = slog.Default()
	}
	s := &Store{
		kv:    kv,
		log:   log.With("component", "dashboard"),
		newID: func() string { return "chart-" + uuid.NewString() },
		subs:  make(map[int]chan Event),
	}
	s.cfg = s.load(ctx)
	return s
}

// Config returns a copy of the current config.
func (s *Store) Config() domain.DashboardConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg.Clone()
}

// SettingsOpen reports whether the settings panel is open.
func (s *Store) SettingsOpen() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settingsOpen
}

// Chart returns the chart with the given ID.
func (s *Store) Chart(id string) (domain.ChartConfig, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range s.cfg.Charts {
		if c.ID == id {
			return c, true
		}
	}
	return domain.ChartConfig{}, false
}

// SetConfig replaces the entire config.
func (s *Store) SetConfig(cfg domain.DashboardConfig) error {
	cfg = cfg.Clone()
	if err := s.sanitize(&cfg); err != nil {
		return err
	}
	s.mutate(EventConfig, "", func(c *domain.DashboardConfig) { *c = cfg })
	return nil
}

// UpdateLayout changes the grid dimensions. Charts beyond the new
// capacity are kept but not shown.
func (s *Store) UpdateLayout(l domain.Layout) error {
	if l.Columns <= 0 || l.Rows <= 0 {
		return fmt.Errorf("invalid layout %dx%d", l.Columns, l.Rows)
	}
	s.mutate(EventLayout, "", func(c *domain.DashboardConfig) { c.Layout = l })
	return nil
}

// AddChart appends a chart under a fresh ID and returns it.
func (s *Store) AddChart(chart domain.ChartConfig) (domain.ChartConfig, error) {
	chart = chart.Normalize()
	chart.ID = s.newID()
	if err := validateChart(chart); err != nil {
		return domain.ChartConfig{}, err
	}
	s.mutate(EventChartAdded, chart.ID, func(c *domain.DashboardConfig) {
		c.Charts = append(c.Charts, chart)
	})
	return chart, nil
}

// RemoveChart deletes a chart. Subscribers purge its data on the
// resulting event.
func (s *Store) RemoveChart(id string) error {
	if _, ok := s.Chart(id); !ok {
		return fmt.Errorf("removing %q: %w", id, ErrUnknownChart)
	}
	s.mutate(EventChartRemoved, id, func(c *domain.DashboardConfig) {
		kept := c.Charts[:0:0]
		for _, ch := range c.Charts {
			if ch.ID != id {
				kept = append(kept, ch)
			}
		}
		c.Charts = kept
	})
	return nil
}

// UpdateChart replaces the chart with the same ID.
func (s *Store) UpdateChart(chart domain.ChartConfig) error {
	chart = chart.Normalize()
	if err := validateChart(chart); err != nil {
		return err
	}
	if _, ok := s.Chart(chart.ID); !ok {
		return fmt.Errorf("updating %q: %w", chart.ID, ErrUnknownChart)
	}
	s.mutate(EventChartUpdated, chart.ID, func(c *domain.DashboardConfig) {
		for i := range c.Charts {
			if c.Charts[i].ID == chart.ID {
				c.Charts[i] = chart
			}
		}
	})
	return nil
}

// ToggleSettings flips the settings panel flag and returns the new value.
// The flag is not persisted.
func (s *Store) ToggleSettings() bool {
	s.mu.Lock()
	s.settingsOpen = !s.settingsOpen
	ev := Event{Type: EventSettings, Config: s.cfg.Clone(), SettingsOpen: s.settingsOpen}
	s.mu.Unlock()

	s.broadcast(ev)
	return ev.SettingsOpen
}

// SetFallbackCredentials stores the Alpaca key pair. Empty values clear
// it and disable the fallback.
func (s *Store) SetFallbackCredentials(creds domain.Credentials) {
	creds.APIKey = strings.TrimSpace(creds.APIKey)
	creds.APISecret = strings.TrimSpace(creds.APISecret)
	s.mutate(EventCredentials, "", func(c *domain.DashboardConfig) { c.Credentials = creds })
}

// mutate applies fn, saves and broadcasts.
func (s *Store) mutate(typ EventType, chartID string, fn func(*domain.DashboardConfig)) {
	s.mu.Lock()
	fn(&s.cfg)
	s.flush()
	ev := Event{Type: typ, ChartID: chartID, Config: s.cfg.Clone(), SettingsOpen: s.settingsOpen}
	s.mu.Unlock()

	s.broadcast(ev)
}

// Subscribe returns a channel that receives events. bufSize controls the
// channel buffer; slow consumers will have events dropped.
func (s *Store) Subscribe(bufSize int) (int, <-chan Event) {
	ch := make(chan Event, bufSize)
	s.subsMu.Lock()
	id := s.nextSubID
	s.nextSubID++
	s.subs[id] = ch
	s.subsMu.Unlock()
	return id, ch
}

// Unsubscribe removes a subscriber and closes its channel.
func (s *Store) Unsubscribe(id int) {
	s.subsMu.Lock()
	if ch, ok := s.subs[id]; ok {
		delete(s.subs, id)
		close(ch)
	}
	s.subsMu.Unlock()
}

// broadcast sends an event to all subscribers non-blocking (drop on full).
func (s *Store) broadcast(e Event) {
	s.subsMu.Lock()
	defer s.subsMu.Unlock()
	for _, ch := range s.subs {
		select {
		case ch <- e:
		default:
			// Slow consumer, drop event.
		}
	}
}

// load reads the persisted config, overlaying it on the defaults.
func (s *Store) load(ctx context.Context) domain.DashboardConfig {
	blob, err := s.kv.Load(ctx, StorageKey)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			s.log.Warn("loading dashboard config", "error", err)
		}
		return DefaultConfig()
	}

	// Saved fields override the defaults; charts are replaced wholesale.
	cfg := DefaultConfig()
	defaults := cfg.Charts
	cfg.Charts = nil
	if err := json.Unmarshal(blob, &cfg); err != nil {
		s.log.Warn("dashboard config is corrupt, using defaults", "error", err)
		return DefaultConfig()
	}
	if cfg.Charts == nil {
		cfg.Charts = defaults
	}
	if err := s.sanitize(&cfg); err != nil {
		s.log.Warn("dashboard config is invalid, using defaults", "error", err)
		return DefaultConfig()
	}
	s.log.Info("loaded dashboard config", "charts", len(cfg.Charts),
		"layout", fmt.Sprintf("%dx%d", cfg.Layout.Columns, cfg.Layout.Rows))
	return cfg
}

// flush saves the config. Must be called with mu held.
func (s *Store) flush() {
	data, err := json.Marshal(s.cfg)
	if err != nil {
		s.log.Error("marshalling dashboard config", "error", err)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
	defer cancel()
	if err := s.kv.Save(ctx, StorageKey, data); err != nil {
		s.log.Error("saving dashboard config", "error", err)
	}
}

// sanitize normalizes charts, assigns missing IDs and rejects invalid
// layouts and charts.
func (s *Store) sanitize(cfg *domain.DashboardConfig) error {
	if cfg.Layout.Columns <= 0 || cfg.Layout.Rows <= 0 {
		return fmt.Errorf("invalid layout %dx%d", cfg.Layout.Columns, cfg.Layout.Rows)
	}
	seen := make(map[string]bool, len(cfg.Charts))
	for i := range cfg.Charts {
		c := cfg.Charts[i].Normalize()
		if c.ID == "" || seen[c.ID] {
			c.ID = s.newID()
		}
		seen[c.ID] = true
		if err := validateChart(c); err != nil {
			return err
		}
		cfg.Charts[i] = c
	}
	return nil
}

func validateChart(c domain.ChartConfig) error {
	switch {
	case c.Symbol == "":
		return errors.New("chart symbol is empty")
	case !c.AssetClass.Valid():
		return fmt.Errorf("chart %s: invalid asset class %q", c.Symbol, c.AssetClass)
	case !c.Interval.Valid():
		return fmt.Errorf("chart %s: invalid interval %q", c.Symbol, c.Interval)
	case c.RenderStyle != domain.StyleCandlestick && c.RenderStyle != domain.StyleLine:
		return fmt.Errorf("chart %s: invalid style %q", c.Symbol, c.RenderStyle)
	}
	return nil
}
