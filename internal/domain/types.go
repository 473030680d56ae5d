// Package domain defines the core types shared across chartpi: bars,
// quotes, chart slot configuration, layout and credentials.
package domain

import (
	"fmt"
	"strings"
)

// ---------------------------------------------------------------------------
// Enumerations
// ---------------------------------------------------------------------------

// AssetClass selects which provider chain serves a chart.
type AssetClass string

const (
	AssetCrypto AssetClass = "crypto"
	AssetStock  AssetClass = "stock"
)

// Valid reports whether a is a known asset class.
func (a AssetClass) Valid() bool {
	return a == AssetCrypto || a == AssetStock
}

// RenderStyle selects how the chart widget draws a series.
type RenderStyle string

const (
	StyleCandlestick RenderStyle = "candlestick"
	StyleLine        RenderStyle = "line"
)

// Interval is the bar granularity shared by all providers.
type Interval string

const (
	Interval1m  Interval = "1m"
	Interval5m  Interval = "5m"
	Interval15m Interval = "15m"
	Interval1h  Interval = "1h"
	Interval4h  Interval = "4h"
	Interval1d  Interval = "1d"
	Interval1w  Interval = "1w"
)

// Intervals lists every supported interval from finest to coarsest.
var Intervals = []Interval{
	Interval1m, Interval5m, Interval15m, Interval1h, Interval4h, Interval1d, Interval1w,
}

// Valid reports whether iv is one of Intervals.
func (iv Interval) Valid() bool {
	for _, v := range Intervals {
		if v == iv {
			return true
		}
	}
	return false
}

// Next returns the interval after iv, wrapping to the finest.
func (iv Interval) Next() Interval {
	for i, v := range Intervals {
		if v == iv {
			return Intervals[(i+1)%len(Intervals)]
		}
	}
	return Interval1h
}

// ParseInterval parses s (case-insensitive) into an Interval.
func ParseInterval(s string) (Interval, error) {
	iv := Interval(strings.ToLower(strings.TrimSpace(s)))
	if !iv.Valid() {
		return "", fmt.Errorf("unknown interval %q", s)
	}
	return iv, nil
}

// ---------------------------------------------------------------------------
// Market data
// ---------------------------------------------------------------------------

// Bar is one OHLC bucket. Time is the bucket open in Unix seconds.
// Volume is zero when the provider does not report it.
type Bar struct {
	Time   int64   `json:"time"`
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume float64 `json:"volume,omitempty"`
}

// Quote is the latest price and its change against the previous close.
type Quote struct {
	Price         float64 `json:"price"`
	Change        float64 `json:"change"`
	ChangePercent float64 `json:"changePercent"`
}

// NewQuote derives a Quote from a price and the previous close.
// A zero previous close yields a zero percent change.
func NewQuote(price, previousClose float64) Quote {
	q := Quote{Price: price, Change: price - previousClose}
	if previousClose != 0 {
		q.ChangePercent = q.Change / previousClose * 100
	}
	return q
}

// SymbolInfo describes a search or listing result.
type SymbolInfo struct {
	Symbol     string     `json:"symbol"`
	Name       string     `json:"name"`
	Exchange   string     `json:"exchange,omitempty"`
	AssetClass AssetClass `json:"type"`
}

// ---------------------------------------------------------------------------
// Dashboard configuration
// ---------------------------------------------------------------------------

// DefaultRefreshSeconds is used when a chart carries no positive refresh
// interval.
const DefaultRefreshSeconds = 30

// ChartConfig is the persisted configuration of one chart slot.
type ChartConfig struct {
	ID                     string      `json:"id"`
	Symbol                 string      `json:"symbol"`
	AssetClass             AssetClass  `json:"type"`
	RenderStyle            RenderStyle `json:"chartType"`
	Interval               Interval    `json:"interval"`
	RefreshIntervalSeconds int         `json:"refreshInterval"`
}

// Normalize fills defaults for missing style, interval and refresh period
// and upper-cases the symbol.
func (c ChartConfig) Normalize() ChartConfig {
	c.Symbol = strings.ToUpper(strings.TrimSpace(c.Symbol))
	if !c.AssetClass.Valid() {
		c.AssetClass = AssetStock
	}
	if c.RenderStyle != StyleLine {
		c.RenderStyle = StyleCandlestick
	}
	if !c.Interval.Valid() {
		c.Interval = Interval1h
	}
	if c.RefreshIntervalSeconds <= 0 {
		c.RefreshIntervalSeconds = DefaultRefreshSeconds
	}
	return c
}

// Layout is the grid shape. Both dimensions are positive.
type Layout struct {
	Columns int `json:"columns"`
	Rows    int `json:"rows"`
}

// Capacity is the number of visible chart cells.
func (l Layout) Capacity() int {
	if l.Columns <= 0 || l.Rows <= 0 {
		return 0
	}
	return l.Columns * l.Rows
}

// Credentials hold the fallback stock provider's key pair.
type Credentials struct {
	APIKey    string `json:"apiKey,omitempty"`
	APISecret string `json:"apiSecret,omitempty"`
}

// Present reports whether both halves of the key pair are set.
func (c Credentials) Present() bool {
	return c.APIKey != "" && c.APISecret != ""
}

// DashboardConfig is the whole persisted dashboard.
type DashboardConfig struct {
	Layout           Layout        `json:"layout"`
	Charts           []ChartConfig `json:"charts"`
	Credentials      Credentials   `json:"alpaca"`
	ShowSessionClock bool          `json:"showMarketHours"`
}

// Visible returns the charts that fit in the layout, in order.
func (c DashboardConfig) Visible() []ChartConfig {
	n := c.Layout.Capacity()
	if n > len(c.Charts) {
		n = len(c.Charts)
	}
	out := make([]ChartConfig, n)
	copy(out, c.Charts[:n])
	return out
}

// Clone returns a deep copy of c.
func (c DashboardConfig) Clone() DashboardConfig {
	out := c
	out.Charts = make([]ChartConfig, len(c.Charts))
	copy(out.Charts, c.Charts)
	return out
}
