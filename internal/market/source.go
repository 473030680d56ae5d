package market

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/alpaca"

	"chartpi/internal/util"
)

// CalendarSource supplies closure tables for years the static tables do
// not cover.
type CalendarSource interface {
	Year(ctx context.Context, year int) (YearTable, error)
}

// Refresh fetches year from src and merges it into c.
func (c *Calendar) Refresh(ctx context.Context, src CalendarSource, year int) error {
	t, err := src.Year(ctx, year)
	if err != nil {
		return fmt.Errorf("refreshing %d calendar: %w", year, err)
	}
	c.Extend(year, t)
	return nil
}

// Compile-time interface check.
var _ CalendarSource = (*AlpacaCalendarSource)(nil)

// AlpacaCalendarSource derives closures from Alpaca's trading calendar:
// a weekday absent from the calendar is a holiday and a session closing
// at 13:00 is an early close.
type AlpacaCalendarSource struct {
	client *alpaca.Client
}

// NewAlpacaCalendarSource creates a source using the trading API at baseURL
// (empty for the SDK default).
func NewAlpacaCalendarSource(apiKey, apiSecret, baseURL string) *AlpacaCalendarSource {
	return &AlpacaCalendarSource{
		client: alpaca.NewClient(alpaca.ClientOpts{
			APIKey:    apiKey,
			APISecret: apiSecret,
			BaseURL:   baseURL,
		}),
	}
}

// Year fetches the trading calendar for year.
func (s *AlpacaCalendarSource) Year(ctx context.Context, year int) (YearTable, error) {
	if err := ctx.Err(); err != nil {
		return YearTable{}, err
	}
	days, err := s.client.GetCalendar(alpaca.GetCalendarRequest{
		Start: time.Date(year, 1, 1, 0, 0, 0, 0, Eastern),
		End:   time.Date(year, 12, 31, 0, 0, 0, 0, Eastern),
	})
	if err != nil {
		var apiErr *alpaca.APIError
		if errors.As(err, &apiErr) && (apiErr.StatusCode == http.StatusUnauthorized || apiErr.StatusCode == http.StatusForbidden) {
			return YearTable{}, util.Permanent(fmt.Errorf("GetCalendar: %w", err))
		}
		return YearTable{}, fmt.Errorf("GetCalendar: %w", err)
	}
	if len(days) == 0 {
		return YearTable{}, fmt.Errorf("no trading days returned for %d", year)
	}

	sessions := make([]TradingSession, 0, len(days))
	for _, d := range days {
		sessions = append(sessions, TradingSession{Date: d.Date, Close: d.Close})
	}
	return DeriveYear(year, sessions), nil
}

// TradingSession is one published trading session: its date and regular close
// as "15:04".
type TradingSession struct {
	Date  string
	Close string
}

// DeriveYear builds a YearTable from the published sessions of year.
// Weekdays with no session are holidays, named generically since the
// source carries no names.
func DeriveYear(year int, sessions []TradingSession) YearTable {
	open := make(map[string]string, len(sessions))
	for _, s := range sessions {
		open[s.Date] = s.Close
	}

	t := YearTable{Holidays: make(map[string]string)}
	for d := time.Date(year, 1, 1, 12, 0, 0, 0, Eastern); d.Year() == year; d = d.AddDate(0, 0, 1) {
		if isWeekend(d.Weekday()) {
			continue
		}
		key := d.Format(dateLayout)
		closeAt, ok := open[key]
		switch {
		case !ok:
			t.Holidays[key] = "Market Holiday"
		case closeAt == "13:00":
			t.EarlyCloses = append(t.EarlyCloses, key)
		}
	}
	return t
}
