package provider

import "chartpi/internal/domain"

// MaxHistory is the number of bars kept per series.
const MaxHistory = 200

// MergeBar folds a streamed bar into history. A bar at the last bar's time
// replaces it, a later bar is appended and an older one is dropped. The
// result holds at most MaxHistory bars, oldest evicted first. history is
// never modified.
func MergeBar(history []domain.Bar, bar domain.Bar) []domain.Bar {
	n := len(history)
	if n > 0 {
		last := history[n-1].Time
		switch {
		case bar.Time < last:
			return history
		case bar.Time == last:
			out := make([]domain.Bar, n)
			copy(out, history)
			out[n-1] = bar
			return out
		}
	}

	start := 0
	if n+1 > MaxHistory {
		start = n + 1 - MaxHistory
	}
	out := make([]domain.Bar, 0, n-start+1)
	out = append(out, history[start:]...)
	return append(out, bar)
}

// TrimHistory keeps the newest MaxHistory bars.
func TrimHistory(bars []domain.Bar) []domain.Bar {
	if len(bars) <= MaxHistory {
		return bars
	}
	return bars[len(bars)-MaxHistory:]
}
