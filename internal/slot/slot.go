// Package slot runs the data loop behind one dashboard chart: an immediate
// fetch, periodic polling with stock fallback, and a live bar stream for
// crypto symbols.
package slot

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"chartpi/internal/domain"
	"chartpi/internal/provider"
)

// User-facing messages.
const (
	MsgNoFallback   = "Yahoo Finance failed. Add Alpaca API keys in settings for fallback."
	MsgStreamDown   = "WebSocket disconnected, using polling"
	msgBothFailedFm = "Failed to fetch data for %s"
)

// ChartDataState is a snapshot of one slot's data. Bars must not be
// modified by receivers.
type ChartDataState struct {
	Bars          []domain.Bar
	Price         float64
	Change        float64
	ChangePercent float64
	Loading       bool
	Err           string
	Warning       string
	UpdatedAt     time.Time
	Source        string // provider that served the data
}

// Ready reports whether the state holds data from a successful fetch.
func (st ChartDataState) Ready() bool {
	return !st.Loading && st.Err == "" && len(st.Bars) > 0
}

// Event notifies subscribers of a state change. Removed is set by the
// Supervisor when a slot is purged.
type Event struct {
	SlotID  string
	State   ChartDataState
	Removed bool
}

// Slot owns the data state of one chart.
type Slot struct {
	id        string
	providers provider.Set
	log       *slog.Logger
	now       func() time.Time
	unit      time.Duration // one refresh "second"; shortened in tests

	mu      sync.Mutex
	cfg     domain.ChartConfig
	creds   domain.Credentials
	state   ChartDataState
	seq     uint64 // latest issued fetch
	gen     uint64 // bumps when the streamed symbol/interval changes
	started bool   // stream opened (or attempted) for gen
	stream  provider.Stream
	closed  bool

	changed   chan struct{}
	done      chan struct{}
	closeOnce sync.Once

	subsMu    sync.Mutex
	nextSubID int
	subs      map[int]chan Event
}

// New creates a slot for cfg. Call Run to start fetching.
func New(cfg domain.ChartConfig, creds domain.Credentials, providers provider.Set, log *slog.Logger) *Slot {
	cfg = cfg.Normalize()
	if log == nil {
		log = slog.Default()
	}
	return &Slot{
		id:        cfg.ID,
		providers: providers,
		log:       log.With("slot", cfg.ID),
		now:       time.Now,
		unit:      time.Second,
		cfg:       cfg,
		creds:     creds,
		changed:   make(chan struct{}, 1),
		done:      make(chan struct{}),
		subs:      make(map[int]chan Event),
	}
}

// ID returns the chart ID this slot serves.
func (s *Slot) ID() string { return s.id }

// Config returns the slot's current chart config.
func (s *Slot) Config() domain.ChartConfig {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg
}

// State returns a copy of the current state.
func (s *Slot) State() ChartDataState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Run fetches immediately and then every RefreshIntervalSeconds until ctx
// is done or Close is called. A config change restarts the cycle.
func (s *Slot) Run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	defer func() {
		s.teardown()
		cancel()
		wg.Wait()
	}()

	go func() {
		select {
		case <-s.done:
			cancel()
		case <-ctx.Done():
		}
	}()

	for {
		s.issue(ctx, &wg, true)
		ticker := time.NewTicker(s.period())

	wait:
		for {
			select {
			case <-ctx.Done():
				ticker.Stop()
				return
			case <-s.changed:
				break wait
			case <-ticker.C:
				s.issue(ctx, &wg, false)
			}
		}
		ticker.Stop()
	}
}

// Update applies a new chart config. Changing the symbol, asset class,
// interval or refresh period resets the state and refetches; render style
// changes are stored only.
func (s *Slot) Update(cfg domain.ChartConfig) {
	cfg = cfg.Normalize()
	s.mu.Lock()
	old := s.cfg
	s.cfg = cfg
	refetch := fetchKey(old) != fetchKey(cfg)
	if refetch {
		s.gen++
		s.started = false
		s.closeStreamLocked()
	}
	s.mu.Unlock()

	if refetch {
		s.log.Info("chart config changed", "symbol", cfg.Symbol, "interval", string(cfg.Interval))
		s.signal()
	}
}

// SetCredentials replaces the fallback credentials. Stock slots refetch
// when they change.
func (s *Slot) SetCredentials(creds domain.Credentials) {
	s.mu.Lock()
	changed := s.creds != creds
	s.creds = creds
	stock := s.cfg.AssetClass == domain.AssetStock
	s.mu.Unlock()

	if changed && stock {
		s.signal()
	}
}

// Close stops the slot. No state change or notification happens after
// Close returns.
func (s *Slot) Close() {
	s.closeOnce.Do(func() { close(s.done) })
	s.teardown()
}

// Subscribe returns a channel receiving state changes. Slow consumers
// have events dropped. The channel is closed on teardown.
func (s *Slot) Subscribe(bufSize int) (int, <-chan Event) {
	ch := make(chan Event, bufSize)
	s.subsMu.Lock()
	defer s.subsMu.Unlock()
	id := s.nextSubID
	s.nextSubID++
	if s.subs == nil {
		close(ch)
		return id, ch
	}
	s.subs[id] = ch
	return id, ch
}

// Unsubscribe removes a subscriber and closes its channel.
func (s *Slot) Unsubscribe(id int) {
	s.subsMu.Lock()
	if ch, ok := s.subs[id]; ok {
		delete(s.subs, id)
		close(ch)
	}
	s.subsMu.Unlock()
}

func fetchKey(c domain.ChartConfig) string {
	return fmt.Sprintf("%s|%s|%s|%d", c.Symbol, c.AssetClass, c.Interval, c.RefreshIntervalSeconds)
}

func (s *Slot) period() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return time.Duration(s.cfg.RefreshIntervalSeconds) * s.unit
}

func (s *Slot) signal() {
	select {
	case s.changed <- struct{}{}:
	default:
	}
}

// issue starts one fetch cycle. reset clears the previous data; a plain
// poll only raises Loading.
func (s *Slot) issue(ctx context.Context, wg *sync.WaitGroup, reset bool) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.seq++
	seq, gen, cfg, creds := s.seq, s.gen, s.cfg, s.creds
	if reset {
		s.state = ChartDataState{Loading: true}
	} else {
		s.state.Loading = true
	}
	s.notifyLocked()
	s.mu.Unlock()

	wg.Add(1)
	go func() {
		defer wg.Done()
		res := s.fetch(ctx, cfg, creds)
		if s.apply(ctx, seq, gen, cfg, res) {
			s.openStream(ctx, cfg, gen)
		}
	}()
}

// ---------------------------------------------------------------------------
// Fetching
// ---------------------------------------------------------------------------

type result struct {
	bars   []domain.Bar
	quote  domain.Quote
	source string
	err    string
}

// fetch routes by asset class. Crypto uses one provider. Stocks try the
// primary, then the credentialed fallback.
func (s *Slot) fetch(ctx context.Context, cfg domain.ChartConfig, creds domain.Credentials) result {
	if cfg.AssetClass == domain.AssetCrypto {
		p := s.providers.Crypto
		bars, q, err := fetchPair(ctx, p, cfg.Symbol, cfg.Interval)
		if err != nil {
			s.log.Warn("crypto fetch failed", "symbol", cfg.Symbol, "error", err)
			return result{err: err.Error()}
		}
		return result{bars: bars, quote: q, source: p.Name()}
	}

	primary := s.providers.Primary
	bars, q, err := fetchPair(ctx, primary, cfg.Symbol, cfg.Interval)
	if err == nil {
		return result{bars: bars, quote: q, source: primary.Name()}
	}
	s.log.Warn("primary fetch failed", "provider", primary.Name(), "symbol", cfg.Symbol, "error", err)

	if !creds.Present() || s.providers.NewFallback == nil {
		return result{err: MsgNoFallback}
	}
	fb := s.providers.NewFallback(creds)
	bars, q, err = fetchPair(ctx, fb, cfg.Symbol, cfg.Interval)
	if err != nil {
		s.log.Warn("fallback fetch failed", "provider", fb.Name(), "symbol", cfg.Symbol, "error", err)
		return result{err: fmt.Sprintf(msgBothFailedFm, cfg.Symbol)}
	}
	return result{bars: bars, quote: q, source: fb.Name()}
}

// fetchPair loads history and quote concurrently; both must succeed.
func fetchPair(ctx context.Context, p provider.Provider, symbol string, iv domain.Interval) ([]domain.Bar, domain.Quote, error) {
	var (
		bars  []domain.Bar
		quote domain.Quote
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		bars, err = p.FetchHistory(gctx, symbol, iv)
		return err
	})
	g.Go(func() error {
		var err error
		quote, err = p.FetchQuote(gctx, symbol)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, domain.Quote{}, err
	}
	return bars, quote, nil
}

// apply publishes a fetch result unless the slot is gone or a newer fetch
// has been issued. It reports whether a stream should be opened.
func (s *Slot) apply(ctx context.Context, seq, gen uint64, cfg domain.ChartConfig, r result) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || ctx.Err() != nil || seq != s.seq {
		return false
	}

	next := ChartDataState{Warning: s.state.Warning, UpdatedAt: s.now()}
	if r.err != "" {
		next.Err = r.err
	} else {
		next.Bars = r.bars
		next.Price = r.quote.Price
		next.Change = r.quote.Change
		next.ChangePercent = r.quote.ChangePercent
		next.Source = r.source
	}
	s.state = next
	s.notifyLocked()

	if r.err != "" || cfg.AssetClass != domain.AssetCrypto || s.providers.Stream == nil {
		return false
	}
	if s.started || gen != s.gen {
		return false
	}
	s.started = true
	return true
}

// ---------------------------------------------------------------------------
// Streaming
// ---------------------------------------------------------------------------

func (s *Slot) openStream(ctx context.Context, cfg domain.ChartConfig, gen uint64) {
	st, err := s.providers.Stream.OpenStream(ctx, cfg.Symbol, cfg.Interval,
		func(b domain.Bar) { s.onBar(gen, b) },
		func(err error) { s.onStreamError(gen, err) },
	)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.log.Warn("stream unavailable", "symbol", cfg.Symbol, "error", err)
		if !s.closed && gen == s.gen {
			s.state.Warning = MsgStreamDown
			s.notifyLocked()
		}
		return
	}
	if s.closed || gen != s.gen {
		st.Close()
		return
	}
	s.stream = st
	s.log.Debug("stream opened", "symbol", cfg.Symbol, "interval", string(cfg.Interval))
}

func (s *Slot) onBar(gen uint64, b domain.Bar) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || gen != s.gen || len(s.state.Bars) == 0 {
		return
	}
	if b.Time < s.state.Bars[len(s.state.Bars)-1].Time {
		return
	}
	s.state.Bars = provider.MergeBar(s.state.Bars, b)
	s.state.Price = b.Close
	s.state.UpdatedAt = s.now()
	s.notifyLocked()
}

func (s *Slot) onStreamError(gen uint64, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || gen != s.gen {
		return
	}
	s.log.Warn("stream dropped, polling only", "error", err)
	s.stream = nil
	s.state.Warning = MsgStreamDown
	s.notifyLocked()
}

// closeStreamLocked must be called with mu held.
func (s *Slot) closeStreamLocked() {
	if s.stream != nil {
		s.stream.Close()
		s.stream = nil
	}
}

// teardown marks the slot closed, closes its stream and subscriber
// channels. Idempotent.
func (s *Slot) teardown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.closeStreamLocked()

	s.subsMu.Lock()
	for id, ch := range s.subs {
		delete(s.subs, id)
		close(ch)
	}
	s.subs = nil
	s.subsMu.Unlock()
}

// ---------------------------------------------------------------------------
// Notification
// ---------------------------------------------------------------------------

// snapshotLocked must be called with mu held.
func (s *Slot) snapshotLocked() ChartDataState {
	st := s.state
	if st.Bars != nil {
		st.Bars = append([]domain.Bar(nil), st.Bars...)
	}
	return st
}

// notifyLocked sends the current state to subscribers without blocking.
// Must be called with mu held so no event follows teardown.
func (s *Slot) notifyLocked() {
	ev := Event{SlotID: s.id, State: s.snapshotLocked()}
	s.subsMu.Lock()
	defer s.subsMu.Unlock()
	for _, ch := range s.subs {
		select {
		case ch <- ev:
		default:
			// Slow subscriber, drop event.
		}
	}
}
