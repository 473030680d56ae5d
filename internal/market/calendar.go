// Package market computes the NYSE trading session for an instant from
// static, year-keyed holiday and early-close tables.
package market

import (
	"sort"
	"sync"
	"time"
	_ "time/tzdata" // Embedded zoneinfo so America/New_York always resolves.
)

// Eastern is the exchange's civil time zone.
var Eastern = mustLoad("America/New_York")

func mustLoad(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		panic("market: loading " + name + ": " + err.Error())
	}
	return loc
}

// YearTable holds one year's market closures.
type YearTable struct {
	// Holidays maps "2006-01-02" to the holiday name.
	Holidays map[string]string
	// EarlyCloses lists dates on which the regular session ends at 13:00.
	EarlyCloses []string
}

// Calendar is a hand-maintained holiday/early-close calendar. The zero
// value is not usable; use NewCalendar or DefaultCalendar.
type Calendar struct {
	mu          sync.RWMutex
	holidays    map[int]map[string]string
	earlyCloses map[int]map[string]bool
}

// NewCalendar builds a Calendar from per-year tables.
func NewCalendar(years map[int]YearTable) *Calendar {
	c := &Calendar{
		holidays:    make(map[int]map[string]string),
		earlyCloses: make(map[int]map[string]bool),
	}
	for y, t := range years {
		c.Extend(y, t)
	}
	return c
}

// Extend replaces the table for year.
func (c *Calendar) Extend(year int, t YearTable) {
	h := make(map[string]string, len(t.Holidays))
	for d, name := range t.Holidays {
		h[d] = name
	}
	e := make(map[string]bool, len(t.EarlyCloses))
	for _, d := range t.EarlyCloses {
		e[d] = true
	}

	c.mu.Lock()
	c.holidays[year] = h
	c.earlyCloses[year] = e
	c.mu.Unlock()
}

// Covers reports whether year has a table. Years without one are treated
// as having no holidays and no early closes.
func (c *Calendar) Covers(year int) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.holidays[year]
	return ok
}

// Years returns the tabulated years in ascending order.
func (c *Calendar) Years() []int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]int, 0, len(c.holidays))
	for y := range c.holidays {
		out = append(out, y)
	}
	sort.Ints(out)
	return out
}

// Holiday returns the holiday name for the Eastern calendar date of t.
func (c *Calendar) Holiday(t time.Time) (string, bool) {
	et := t.In(Eastern)
	c.mu.RLock()
	defer c.mu.RUnlock()
	name, ok := c.holidays[et.Year()][et.Format(dateLayout)]
	return name, ok
}

// IsEarlyClose reports whether the Eastern calendar date of t closes at 13:00.
func (c *Calendar) IsEarlyClose(t time.Time) bool {
	et := t.In(Eastern)
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.earlyCloses[et.Year()][et.Format(dateLayout)]
}

// IsTradingDay reports whether the Eastern calendar date of t is a weekday
// that is not a holiday.
func (c *Calendar) IsTradingDay(t time.Time) bool {
	et := t.In(Eastern)
	if isWeekend(et.Weekday()) {
		return false
	}
	_, hol := c.Holiday(et)
	return !hol
}

const dateLayout = "2006-01-02"

func isWeekend(d time.Weekday) bool {
	return d == time.Saturday || d == time.Sunday
}

// ---------------------------------------------------------------------------
// Static tables
// ---------------------------------------------------------------------------

const (
	newYear      = "New Year's Day"
	mlkDay       = "Martin Luther King Jr. Day"
	presidents   = "Presidents' Day"
	goodFriday   = "Good Friday"
	memorialDay  = "Memorial Day"
	juneteenth   = "Juneteenth"
	independence = "Independence Day"
	laborDay     = "Labor Day"
	thanksgiving = "Thanksgiving Day"
	christmas    = "Christmas Day"
)

// StaticYears is the NYSE closure schedule as published for 2024-2026.
var StaticYears = map[int]YearTable{
	2024: {
		Holidays: map[string]string{
			"2024-01-01": newYear,
			"2024-01-15": mlkDay,
			"2024-02-19": presidents,
			"2024-03-29": goodFriday,
			"2024-05-27": memorialDay,
			"2024-06-19": juneteenth,
			"2024-07-04": independence,
			"2024-09-02": laborDay,
			"2024-11-28": thanksgiving,
			"2024-12-25": christmas,
		},
		EarlyCloses: []string{"2024-07-03", "2024-11-29", "2024-12-24"},
	},
	2025: {
		Holidays: map[string]string{
			"2025-01-01": newYear,
			"2025-01-20": mlkDay,
			"2025-02-17": presidents,
			"2025-04-18": goodFriday,
			"2025-05-26": memorialDay,
			"2025-06-19": juneteenth,
			"2025-07-04": independence,
			"2025-09-01": laborDay,
			"2025-11-27": thanksgiving,
			"2025-12-25": christmas,
		},
		EarlyCloses: []string{"2025-07-03", "2025-11-28", "2025-12-24"},
	},
	2026: {
		Holidays: map[string]string{
			"2026-01-01": newYear,
			"2026-01-19": mlkDay,
			"2026-02-16": presidents,
			"2026-04-03": goodFriday,
			"2026-05-25": memorialDay,
			"2026-06-19": juneteenth,
			"2026-07-03": independence + " (observed)",
			"2026-09-07": laborDay,
			"2026-11-26": thanksgiving,
			"2026-12-25": christmas,
		},
		EarlyCloses: []string{"2026-07-02", "2026-11-27", "2026-12-24"},
	},
}

// DefaultCalendar is built from StaticYears and may be extended at runtime.
var DefaultCalendar = NewCalendar(StaticYears)
