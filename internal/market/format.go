package market

import "fmt"

// FormatCountdown renders a millisecond countdown as "HH:MM:SS", or as
// "Nd Hh MMm" once it exceeds a day. Non-positive input yields "00:00:00".
func FormatCountdown(ms int64) string {
	if ms <= 0 {
		return "00:00:00"
	}
	total := ms / 1000
	hours := total / 3600
	minutes := (total % 3600) / 60
	seconds := total % 60

	if hours > 24 {
		return fmt.Sprintf("%dd %dh %02dm", hours/24, hours%24, minutes)
	}
	return fmt.Sprintf("%02d:%02d:%02d", hours, minutes, seconds)
}

// SessionLabel is the display name for s.
func SessionLabel(s Session) string {
	switch s {
	case PreMarket:
		return "Pre-Market"
	case Regular:
		return "Market Open"
	case AfterHours:
		return "After Hours"
	default:
		return "Market Closed"
	}
}

// NextEventLabel describes what happens when the countdown reaches zero.
func NextEventLabel(k EventKind) string {
	switch k {
	case EventOpen:
		return "Opens in"
	case EventClose:
		return "Closes in"
	case EventAfterHoursEnd:
		return "After hours end in"
	default:
		return "Pre-market in"
	}
}
