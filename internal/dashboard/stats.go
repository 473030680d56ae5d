package dashboard

import (
	"math"

	"chartpi/internal/domain"
)

// SeriesStats summarizes a bar series for the stats line under a chart.
type SeriesStats struct {
	Bars     int
	High     float64
	Low      float64
	Open     float64 // first bar open
	Close    float64 // last bar close
	Volume   float64
	Turnover float64 // sum(close * volume)
	MaxGain  float64 // best low-to-later-high move, as a fraction
	MaxLoss  float64 // worst high-to-later-low move, as a fraction
}

// Change is Close-Open as a percent of Open.
func (s SeriesStats) Change() float64 {
	if s.Open == 0 {
		return 0
	}
	return (s.Close - s.Open) / s.Open * 100
}

// ComputeStats walks bars oldest first. An empty series yields zero stats.
func ComputeStats(bars []domain.Bar) SeriesStats {
	if len(bars) == 0 {
		return SeriesStats{}
	}
	s := SeriesStats{
		Bars:  len(bars),
		Low:   math.MaxFloat64,
		Open:  bars[0].Open,
		Close: bars[len(bars)-1].Close,
	}
	minLow := math.MaxFloat64
	maxHigh := 0.0

	for i, b := range bars {
		s.Volume += b.Volume
		s.Turnover += b.Close * b.Volume
		if b.High > s.High {
			s.High = b.High
		}
		if b.Low < s.Low {
			s.Low = b.Low
		}

		// Extremes of earlier bars only; the order of high and low inside
		// one bar is unknown.
		if i > 0 && minLow > 0 {
			if g := (b.High - minLow) / minLow; g > s.MaxGain {
				s.MaxGain = g
			}
		}
		if i > 0 && b.Low > 0 {
			if l := (maxHigh - b.Low) / b.Low; l > s.MaxLoss {
				s.MaxLoss = l
			}
		}
		minLow = min(minLow, b.Low)
		maxHigh = max(maxHigh, b.High)
	}
	return s
}

// Change24h returns the percent change between the last close and the
// close of the newest bar at least 24 hours older. With less than a day of
// history it compares against the first bar.
func Change24h(bars []domain.Bar) float64 {
	if len(bars) < 2 {
		return 0
	}
	last := bars[len(bars)-1]
	cutoff := last.Time - 24*60*60
	ref := bars[0]
	for i := len(bars) - 2; i >= 0; i-- {
		if bars[i].Time <= cutoff {
			ref = bars[i]
			break
		}
	}
	if ref.Close == 0 {
		return 0
	}
	return (last.Close - ref.Close) / ref.Close * 100
}
