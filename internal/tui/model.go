// Package tui renders the chart grid, session clock and settings panel
// with bubbletea.
package tui

import (
	"context"
	"log/slog"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"chartpi/internal/dashboard"
	"chartpi/internal/domain"
	"chartpi/internal/market"
	"chartpi/internal/slot"
)

// Layout bounds for the +/- and ]/[ keys.
const (
	maxColumns = 6
	maxRows    = 4
)

// StateSource publishes per-chart data. *slot.Supervisor implements it.
type StateSource interface {
	Snapshot() map[string]slot.ChartDataState
	Subscribe(bufSize int) (int, <-chan slot.Event)
}

// SymbolLookup searches and validates symbols. provider.Set implements it.
type SymbolLookup interface {
	Search(ctx context.Context, query string, ac domain.AssetClass) ([]domain.SymbolInfo, error)
	Validate(ctx context.Context, symbol string, ac domain.AssetClass) (domain.SymbolInfo, bool, error)
}

// ClockMsg advances the session clock. The caller sends it on a schedule.
type ClockMsg time.Time

type slotEventMsg slot.Event
type storeEventMsg dashboard.Event

// Options wires a Model to the rest of the program.
type Options struct {
	Ctx      context.Context
	Store    *dashboard.Store
	States   StateSource
	Lookup   SymbolLookup
	Calendar *market.Calendar
	Log      *slog.Logger
	Now      func() time.Time
}

// Model is the bubbletea model of the dashboard.
type Model struct {
	ctx      context.Context
	store    *dashboard.Store
	lookup   SymbolLookup
	calendar *market.Calendar
	log      *slog.Logger
	now      func() time.Time

	slotEvents  <-chan slot.Event
	storeEvents <-chan dashboard.Event

	cfg          domain.DashboardConfig
	settingsOpen bool
	states       map[string]slot.ChartDataState
	status       market.MarketStatus

	selected      int
	width, height int

	// Settings panel.
	input   textinput.Model
	note    string
	noteErr bool
	results []domain.SymbolInfo
}

// New creates the model and subscribes to store and slot events.
func New(opts Options) Model {
	if opts.Ctx == nil {
		opts.Ctx = context.Background()
	}
	if opts.Calendar == nil {
		opts.Calendar = market.DefaultCalendar
	}
	if opts.Log == nil {
		opts.Log = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	in := textinput.New()
	in.Placeholder = "add BTCUSDT · keys KEY SECRET · help"
	in.Prompt = "> "
	in.CharLimit = 128

	m := Model{
		ctx:          opts.Ctx,
		store:        opts.Store,
		lookup:       opts.Lookup,
		calendar:     opts.Calendar,
		log:          opts.Log.With("component", "tui"),
		now:          opts.Now,
		cfg:          opts.Store.Config(),
		settingsOpen: opts.Store.SettingsOpen(),
		states:       opts.States.Snapshot(),
		input:        in,
	}
	_, m.slotEvents = opts.States.Subscribe(64)
	_, m.storeEvents = opts.Store.Subscribe(16)
	m.status = m.calendar.ComputeStatus(m.now())
	if m.settingsOpen {
		m.input.Focus()
	}
	return m
}

// Init starts listening for events.
func (m Model) Init() tea.Cmd {
	return tea.Batch(waitSlot(m.slotEvents), waitStore(m.storeEvents))
}

func waitSlot(ch <-chan slot.Event) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-ch
		if !ok {
			return nil
		}
		return slotEventMsg(ev)
	}
}

func waitStore(ch <-chan dashboard.Event) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-ch
		if !ok {
			return nil
		}
		return storeEventMsg(ev)
	}
}

// Update handles keys, window resizes, clock ticks and data events.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.settingsOpen {
			return m.updateSettings(msg)
		}
		return m.updateGrid(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.input.Width = max(10, m.width-8)
		return m, nil

	case ClockMsg:
		m.status = m.calendar.ComputeStatus(time.Time(msg))
		return m, nil

	case slotEventMsg:
		if msg.Removed {
			delete(m.states, msg.SlotID)
		} else {
			m.states[msg.SlotID] = msg.State
		}
		return m, waitSlot(m.slotEvents)

	case storeEventMsg:
		m.applyConfig(msg.Config, msg.SettingsOpen)
		return m, waitStore(m.storeEvents)

	case commandDoneMsg:
		m.note, m.noteErr, m.results = msg.note, msg.err != nil, msg.results
		if msg.err != nil {
			m.note = msg.err.Error()
			m.log.Warn("settings command failed", "error", msg.err)
		}
		m.sync()
		return m, nil
	}
	return m, nil
}

func (m Model) updateGrid(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "s":
		m.store.ToggleSettings()
		m.input.Focus()
	case "+", "=":
		m.resize(1, 0)
	case "-":
		m.resize(-1, 0)
	case "]":
		m.resize(0, 1)
	case "[":
		m.resize(0, -1)
	case "i":
		if c, ok := m.selectedChart(); ok {
			c.Interval = c.Interval.Next()
			m.update(c)
		}
	case "t":
		if c, ok := m.selectedChart(); ok {
			if c.RenderStyle == domain.StyleLine {
				c.RenderStyle = domain.StyleCandlestick
			} else {
				c.RenderStyle = domain.StyleLine
			}
			m.update(c)
		}
	case "x":
		if c, ok := m.selectedChart(); ok {
			if err := m.store.RemoveChart(c.ID); err != nil {
				m.log.Warn("removing chart", "id", c.ID, "error", err)
			}
		}
	case "left":
		m.move(-1)
	case "right":
		m.move(1)
	case "up":
		m.move(-m.cfg.Layout.Columns)
	case "down":
		m.move(m.cfg.Layout.Columns)
	default:
		return m, nil
	}
	m.sync()
	return m, nil
}

func (m Model) updateSettings(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		return m, tea.Quit
	case "esc":
		m.store.ToggleSettings()
		m.input.Blur()
		m.sync()
		return m, nil
	case "enter":
		line := m.input.Value()
		m.input.SetValue("")
		cmd, err := parseCommand(line)
		if err != nil {
			m.note, m.noteErr = err.Error(), true
			return m, nil
		}
		m.note, m.noteErr = "working...", false
		return m, m.run(cmd)
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// sync pulls the current config from the store so the view reflects an
// action before its event arrives.
func (m *Model) sync() {
	m.applyConfig(m.store.Config(), m.store.SettingsOpen())
}

func (m *Model) applyConfig(cfg domain.DashboardConfig, settingsOpen bool) {
	m.cfg = cfg
	m.settingsOpen = settingsOpen
	if n := len(cfg.Visible()); m.selected >= n {
		m.selected = max(0, n-1)
	}
}

func (m *Model) resize(dc, dr int) {
	l := m.cfg.Layout
	l.Columns = max(1, min(maxColumns, l.Columns+dc))
	l.Rows = max(1, min(maxRows, l.Rows+dr))
	if l == m.cfg.Layout {
		return
	}
	if err := m.store.UpdateLayout(l); err != nil {
		m.log.Warn("updating layout", "error", err)
	}
}

func (m *Model) move(delta int) {
	n := len(m.cfg.Visible())
	if n == 0 {
		return
	}
	m.selected = max(0, min(n-1, m.selected+delta))
}

func (m *Model) update(c domain.ChartConfig) {
	if err := m.store.UpdateChart(c); err != nil {
		m.log.Warn("updating chart", "id", c.ID, "error", err)
	}
}

func (m Model) selectedChart() (domain.ChartConfig, bool) {
	vis := m.cfg.Visible()
	if m.selected < 0 || m.selected >= len(vis) {
		return domain.ChartConfig{}, false
	}
	return vis[m.selected], true
}
