package slot

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"chartpi/internal/domain"
	"chartpi/internal/provider"
)

// fakeProvider serves canned bars per symbol. A symbol with a gate blocks
// its history call until the gate is closed.
type fakeProvider struct {
	name string

	mu       sync.Mutex
	bars     map[string][]domain.Bar
	quote    domain.Quote
	histErr  error
	quoteErr error
	gates    map[string]chan struct{}
	calls    int
}

func newFake(name string) *fakeProvider {
	return &fakeProvider{
		name:  name,
		bars:  make(map[string][]domain.Bar),
		gates: make(map[string]chan struct{}),
		quote: domain.Quote{Price: 100, Change: 1, ChangePercent: 1.01},
	}
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) FetchHistory(ctx context.Context, symbol string, _ domain.Interval) ([]domain.Bar, error) {
	f.mu.Lock()
	f.calls++
	gate := f.gates[symbol]
	bars, err := f.bars[symbol], f.histErr
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	if bars == nil {
		return nil, &provider.Error{Provider: f.name, Op: "history", Symbol: symbol, Kind: provider.ErrNotFound}
	}
	return bars, nil
}

func (f *fakeProvider) FetchQuote(ctx context.Context, _ string) (domain.Quote, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.quoteErr != nil {
		return domain.Quote{}, f.quoteErr
	}
	return f.quote, ctx.Err()
}

func (f *fakeProvider) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// fakeStreamer records subscriptions so tests can push bars and errors.
type fakeStreamer struct {
	mu   sync.Mutex
	subs []*fakeStream
	err  error
}

type fakeStream struct {
	symbol  string
	onBar   func(domain.Bar)
	onError func(error)

	mu     sync.Mutex
	closed bool
}

func (fs *fakeStream) Close() error {
	fs.mu.Lock()
	fs.closed = true
	fs.mu.Unlock()
	return nil
}

func (fs *fakeStream) isClosed() bool {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.closed
}

func (f *fakeStreamer) OpenStream(_ context.Context, symbol string, _ domain.Interval, onBar func(domain.Bar), onError func(error)) (provider.Stream, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	fs := &fakeStream{symbol: symbol, onBar: onBar, onError: onError}
	f.subs = append(f.subs, fs)
	return fs, nil
}

func (f *fakeStreamer) opened() []*fakeStream {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*fakeStream(nil), f.subs...)
}

func bars(times ...int64) []domain.Bar {
	out := make([]domain.Bar, len(times))
	for i, t := range times {
		out[i] = domain.Bar{Time: t, Open: 1, High: 2, Low: 0.5, Close: float64(i + 1)}
	}
	return out
}

// waitFor polls cond until it holds or a deadline passes.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

var errBoom = errors.New("boom")

type harness struct {
	crypto   *fakeProvider
	primary  *fakeProvider
	fallback *fakeProvider
	stream   *fakeStreamer
	set      provider.Set
}

func newHarness() *harness {
	h := &harness{
		crypto:   newFake("binance"),
		primary:  newFake("yahoo"),
		fallback: newFake("alpaca"),
		stream:   &fakeStreamer{},
	}
	h.set = provider.Set{
		Crypto:      h.crypto,
		Stream:      h.stream,
		Primary:     h.primary,
		NewFallback: func(domain.Credentials) provider.Provider { return h.fallback },
	}
	return h
}

// start runs a slot in the background and stops it at test end.
func start(t *testing.T, s *Slot) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
}
