package tui

import (
	"math"
	"strings"

	"chartpi/internal/domain"
)

const (
	glyphBody = "┃"
	glyphWick = "│"
	glyphDot  = "•"
	glyphLink = "·"
)

// plot maps prices onto height rows, row 0 being the top.
type plot struct {
	hi, lo float64
	height int
}

func newPlot(bars []domain.Bar, height int) plot {
	p := plot{hi: -math.MaxFloat64, lo: math.MaxFloat64, height: height}
	for _, b := range bars {
		p.hi = math.Max(p.hi, b.High)
		p.lo = math.Min(p.lo, b.Low)
	}
	return p
}

func (p plot) row(price float64) int {
	if p.height <= 1 || p.hi <= p.lo {
		return p.height / 2
	}
	r := int(math.Round((p.hi - price) / (p.hi - p.lo) * float64(p.height-1)))
	return max(0, min(p.height-1, r))
}

// tail returns the newest n bars.
func tail(bars []domain.Bar, n int) []domain.Bar {
	if len(bars) > n {
		return bars[len(bars)-n:]
	}
	return bars
}

// renderCandles draws one column per bar, newest on the right. Rising
// bars are green and falling bars red.
func renderCandles(bars []domain.Bar, width, height int) []string {
	if width <= 0 || height <= 0 {
		return nil
	}
	bars = tail(bars, width)
	p := newPlot(bars, height)

	grid := newCanvas(width, height)
	offset := width - len(bars)
	for i, b := range bars {
		col := offset + i
		style := lossStyle
		if b.Close >= b.Open {
			style = gainStyle
		}
		top, bot := p.row(math.Max(b.Open, b.Close)), p.row(math.Min(b.Open, b.Close))
		for r := p.row(b.High); r <= p.row(b.Low); r++ {
			glyph := glyphWick
			if r >= top && r <= bot {
				glyph = glyphBody
			}
			grid[r][col] = style.Render(glyph)
		}
	}
	return grid.lines()
}

// renderLine draws the closes as a connected dot plot.
func renderLine(bars []domain.Bar, width, height int) []string {
	if width <= 0 || height <= 0 {
		return nil
	}
	bars = tail(bars, width)
	p := plot{hi: -math.MaxFloat64, lo: math.MaxFloat64, height: height}
	for _, b := range bars {
		p.hi = math.Max(p.hi, b.Close)
		p.lo = math.Min(p.lo, b.Close)
	}

	style := gainStyle
	if len(bars) > 1 && bars[len(bars)-1].Close < bars[0].Close {
		style = lossStyle
	}

	grid := newCanvas(width, height)
	offset := width - len(bars)
	prev := -1
	for i, b := range bars {
		col := offset + i
		r := p.row(b.Close)
		if prev >= 0 {
			for k := min(prev, r) + 1; k < max(prev, r); k++ {
				grid[k][col] = style.Render(glyphLink)
			}
		}
		grid[r][col] = style.Render(glyphDot)
		prev = r
	}
	return grid.lines()
}

// canvas is a grid of pre-rendered cells.
type canvas [][]string

func newCanvas(width, height int) canvas {
	c := make(canvas, height)
	for r := range c {
		c[r] = make([]string, width)
		for i := range c[r] {
			c[r][i] = " "
		}
	}
	return c
}

func (c canvas) lines() []string {
	out := make([]string, len(c))
	for r, row := range c {
		out[r] = strings.Join(row, "")
	}
	return out
}
