package market

import "time"

// Session is an NYSE trading phase.
type Session string

const (
	PreMarket  Session = "pre-market"
	Regular    Session = "regular"
	AfterHours Session = "after-hours"
	Closed     Session = "closed"
)

// EventKind names the next session boundary.
type EventKind string

const (
	EventOpen           EventKind = "open"
	EventClose          EventKind = "close"
	EventPreMarketStart EventKind = "pre-market-start"
	EventAfterHoursEnd  EventKind = "after-hours-end"
)

// Session boundaries in minutes after midnight Eastern.
const (
	PreMarketOpen = 4 * 60
	RegularOpen   = 9*60 + 30
	RegularClose  = 16 * 60
	EarlyClose    = 13 * 60
	AfterHoursEnd = 20 * 60
)

// MarketStatus is a snapshot of the session clock. It is recomputed on
// every tick and never persisted.
type MarketStatus struct {
	Session      Session   `json:"session"`
	IsOpen       bool      `json:"isOpen"`
	NextEvent    EventKind `json:"nextEvent"`
	NextEventAt  time.Time `json:"nextEventTime"`
	CountdownMs  int64     `json:"countdownMs"`
	IsHoliday    bool      `json:"isHoliday"`
	HolidayName  string    `json:"holidayName,omitempty"`
	IsEarlyClose bool      `json:"isEarlyClose"`

	CurrentTimeET  string `json:"currentTimeET"`
	RegularOpenET  string `json:"regularOpenET"`
	RegularCloseET string `json:"regularCloseET"`
}

// ComputeStatus evaluates the session at now against DefaultCalendar.
func ComputeStatus(now time.Time) MarketStatus {
	return DefaultCalendar.ComputeStatus(now)
}

// ComputeStatus evaluates the session at now. It has no side effects and
// returns the same result for the same instant and tables.
func (c *Calendar) ComputeStatus(now time.Time) MarketStatus {
	et := now.In(Eastern)
	mins := et.Hour()*60 + et.Minute()

	holidayName, isHoliday := c.Holiday(et)
	early := c.IsEarlyClose(et)
	closeMin := RegularClose
	closeLabel := "4:00 PM"
	if early {
		closeMin = EarlyClose
		closeLabel = "1:00 PM"
	}

	st := MarketStatus{
		IsHoliday:      isHoliday,
		HolidayName:    holidayName,
		IsEarlyClose:   early,
		CurrentTimeET:  et.Format("3:04:05 PM"),
		RegularOpenET:  "9:30 AM",
		RegularCloseET: closeLabel,
	}

	switch {
	case isWeekend(et.Weekday()) || isHoliday:
		st.Session = Closed
		st.NextEvent = EventPreMarketStart
		st.NextEventAt = atMinute(c.nextTradingDay(et), PreMarketOpen)
	case mins < PreMarketOpen:
		st.Session = Closed
		st.NextEvent = EventPreMarketStart
		st.NextEventAt = atMinute(et, PreMarketOpen)
	case mins < RegularOpen:
		st.Session = PreMarket
		st.NextEvent = EventOpen
		st.NextEventAt = atMinute(et, RegularOpen)
	case mins < closeMin:
		st.Session = Regular
		st.IsOpen = true
		st.NextEvent = EventClose
		st.NextEventAt = atMinute(et, closeMin)
	case mins < AfterHoursEnd && !early:
		st.Session = AfterHours
		st.NextEvent = EventAfterHoursEnd
		st.NextEventAt = atMinute(et, AfterHoursEnd)
	default:
		st.Session = Closed
		st.NextEvent = EventPreMarketStart
		st.NextEventAt = atMinute(c.nextTradingDay(et), PreMarketOpen)
	}

	if d := st.NextEventAt.Sub(now).Milliseconds(); d > 0 {
		st.CountdownMs = d
	}
	return st
}

// nextTradingDay walks forward from the day after et, skipping weekends
// and holidays.
func (c *Calendar) nextTradingDay(et time.Time) time.Time {
	d := time.Date(et.Year(), et.Month(), et.Day()+1, 12, 0, 0, 0, Eastern)
	for !c.IsTradingDay(d) {
		d = time.Date(d.Year(), d.Month(), d.Day()+1, 12, 0, 0, 0, Eastern)
	}
	return d
}

// atMinute returns the Eastern instant min minutes after midnight on the
// calendar date of day.
func atMinute(day time.Time, min int) time.Time {
	et := day.In(Eastern)
	return time.Date(et.Year(), et.Month(), et.Day(), min/60, min%60, 0, 0, Eastern)
}
