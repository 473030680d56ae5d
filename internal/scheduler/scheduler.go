// Package scheduler runs the session clock tick and the trading calendar
// refresh on cron schedules.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"chartpi/internal/market"
	"chartpi/internal/util"
)

// DefaultBackoff paces calendar refresh retries.
var DefaultBackoff = util.Backoff{Attempts: 4, BaseDelay: 2 * time.Second, MaxDelay: 30 * time.Second}

// Scheduler manages the cron tasks of the dashboard.
type Scheduler struct {
	cron     *cron.Cron
	calendar *market.Calendar
	source   market.CalendarSource // nil disables refreshes
	backoff  util.Backoff
	ctx      context.Context
	log      *slog.Logger
	now      func() time.Time
}

// New creates a Scheduler. A nil source leaves the calendar to its static
// tables.
func New(ctx context.Context, cal *market.Calendar, src market.CalendarSource, log *slog.Logger) *Scheduler {
	return &Scheduler{
		cron:     cron.New(cron.WithSeconds()),
		calendar: cal,
		source:   src,
		backoff:  DefaultBackoff,
		ctx:      ctx,
		log:      log.With("component", "scheduler"),
		now:      time.Now,
	}
}

// Register adds the clock tick, fired every tick, and the calendar
// refresh on refreshSpec (six-field cron with seconds).
func (s *Scheduler) Register(tick time.Duration, refreshSpec string, onTick func(time.Time)) error {
	if tick <= 0 {
		tick = time.Second
	}
	if _, err := s.cron.AddFunc(fmt.Sprintf("@every %s", tick), func() { onTick(s.now()) }); err != nil {
		return fmt.Errorf("register clock tick: %w", err)
	}
	if s.source == nil {
		return nil
	}
	if _, err := s.cron.AddFunc(refreshSpec, func() {
		if err := s.RefreshCalendar(s.ctx); err != nil {
			s.log.Warn("calendar refresh failed", "error", err)
		}
	}); err != nil {
		return fmt.Errorf("register calendar refresh: %w", err)
	}
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info("scheduler started", "entries", len(s.cron.Entries()))
}

// Stop stops the scheduler and waits for running jobs.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.log.Info("scheduler stopped")
}

// RefreshCalendar extends the calendar with the current and next year
// when the static tables do not cover them. Years that still cannot be
// loaded are logged; the calendar then treats their weekdays as regular
// sessions.
func (s *Scheduler) RefreshCalendar(ctx context.Context) error {
	year := s.now().In(market.Eastern).Year()
	var firstErr error
	for _, y := range []int{year, year + 1} {
		if s.calendar.Covers(y) {
			continue
		}
		if s.source == nil {
			s.log.Warn("no holiday table for year, weekdays treated as regular sessions", "year", y)
			continue
		}
		err := util.Retry(ctx, s.backoff, func(ctx context.Context) error {
			return s.calendar.Refresh(ctx, s.source, y)
		})
		if err != nil {
			s.log.Warn("no holiday table for year, weekdays treated as regular sessions", "year", y, "error", err)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		s.log.Info("calendar extended", "year", y, "covered", s.calendar.Years())
	}
	return firstErr
}
