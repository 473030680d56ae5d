package slot

import (
	"context"
	"log/slog"
	"sync"

	"chartpi/internal/domain"
	"chartpi/internal/provider"
)

// Supervisor keeps one running Slot per visible chart and fans their
// events into a single subscription.
type Supervisor struct {
	ctx       context.Context
	providers provider.Set
	log       *slog.Logger

	mu     sync.Mutex
	slots  map[string]*Slot
	creds  domain.Credentials
	closed bool
	wg     sync.WaitGroup

	subsMu    sync.Mutex
	nextSubID int
	subs      map[int]chan Event
}

// NewSupervisor creates a Supervisor whose slots run until ctx is done or
// Close is called.
func NewSupervisor(ctx context.Context, providers provider.Set, log *slog.Logger) *Supervisor {
	if log == nil {
		log = slog.Default()
	}
	return &Supervisor{
		ctx:       ctx,
		providers: providers,
		log:       log.With("component", "supervisor"),
		slots:     make(map[string]*Slot),
		subs:      make(map[int]chan Event),
	}
}

// Reconcile starts, updates and stops slots so that exactly the visible
// charts of cfg are running. Removed slots are purged and announced with
// a Removed event.
func (sv *Supervisor) Reconcile(cfg domain.DashboardConfig) {
	visible := cfg.Visible()

	sv.mu.Lock()
	defer sv.mu.Unlock()
	if sv.closed {
		return
	}

	credsChanged := sv.creds != cfg.Credentials
	sv.creds = cfg.Credentials

	want := make(map[string]bool, len(visible))
	for _, c := range visible {
		want[c.ID] = true
	}
	for id, s := range sv.slots {
		if !want[id] {
			s.Close()
			delete(sv.slots, id)
			sv.broadcast(Event{SlotID: id, Removed: true})
			sv.log.Info("slot stopped", "slot", id)
		}
	}

	for _, c := range visible {
		if s, ok := sv.slots[c.ID]; ok {
			s.Update(c)
			if credsChanged {
				s.SetCredentials(sv.creds)
			}
			continue
		}
		sv.startLocked(c)
	}
}

// startLocked must be called with mu held.
func (sv *Supervisor) startLocked(c domain.ChartConfig) {
	s := New(c, sv.creds, sv.providers, sv.log)
	_, ch := s.Subscribe(32)
	sv.slots[c.ID] = s

	sv.wg.Add(2)
	go func() {
		defer sv.wg.Done()
		s.Run(sv.ctx)
	}()
	go func() {
		defer sv.wg.Done()
		for ev := range ch {
			sv.forward(s, ev)
		}
	}()
	sv.log.Info("slot started", "slot", c.ID, "symbol", c.Symbol, "type", string(c.AssetClass))
}

// forward rebroadcasts a slot event unless the slot has been replaced or
// purged in the meantime.
func (sv *Supervisor) forward(s *Slot, ev Event) {
	sv.mu.Lock()
	defer sv.mu.Unlock()
	if sv.slots[ev.SlotID] != s {
		return
	}
	sv.broadcast(ev)
}

// State returns the data state of a running slot.
func (sv *Supervisor) State(id string) (ChartDataState, bool) {
	sv.mu.Lock()
	s, ok := sv.slots[id]
	sv.mu.Unlock()
	if !ok {
		return ChartDataState{}, false
	}
	return s.State(), true
}

// Snapshot returns the state of every running slot keyed by chart ID.
func (sv *Supervisor) Snapshot() map[string]ChartDataState {
	sv.mu.Lock()
	slots := make(map[string]*Slot, len(sv.slots))
	for id, s := range sv.slots {
		slots[id] = s
	}
	sv.mu.Unlock()

	out := make(map[string]ChartDataState, len(slots))
	for id, s := range slots {
		out[id] = s.State()
	}
	return out
}

// Len returns the number of running slots.
func (sv *Supervisor) Len() int {
	sv.mu.Lock()
	defer sv.mu.Unlock()
	return len(sv.slots)
}

// Close stops every slot and waits for their goroutines.
func (sv *Supervisor) Close() {
	sv.mu.Lock()
	if sv.closed {
		sv.mu.Unlock()
		return
	}
	sv.closed = true
	for id, s := range sv.slots {
		s.Close()
		delete(sv.slots, id)
	}
	sv.mu.Unlock()

	sv.wg.Wait()

	sv.subsMu.Lock()
	for id, ch := range sv.subs {
		delete(sv.subs, id)
		close(ch)
	}
	sv.subsMu.Unlock()
}

// Subscribe returns a channel receiving events from all slots.
func (sv *Supervisor) Subscribe(bufSize int) (int, <-chan Event) {
	ch := make(chan Event, bufSize)
	sv.subsMu.Lock()
	defer sv.subsMu.Unlock()
	id := sv.nextSubID
	sv.nextSubID++
	sv.subs[id] = ch
	return id, ch
}

// Unsubscribe removes a subscriber and closes its channel.
func (sv *Supervisor) Unsubscribe(id int) {
	sv.subsMu.Lock()
	if ch, ok := sv.subs[id]; ok {
		delete(sv.subs, id)
		close(ch)
	}
	sv.subsMu.Unlock()
}

func (sv *Supervisor) broadcast(ev Event) {
	sv.subsMu.Lock()
	defer sv.subsMu.Unlock()
	for _, ch := range sv.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}
