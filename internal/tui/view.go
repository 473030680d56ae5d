package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"chartpi/internal/dashboard"
	"chartpi/internal/domain"
	"chartpi/internal/market"
	"chartpi/internal/slot"
)

const gridHelp = " q quit  s settings  +/- cols  ]/[ rows  arrows select  i interval  t style  x remove"

// View renders the header, the grid or settings panel, and the footer.
func (m Model) View() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	header := headerStyle.Render(padOrTrunc(m.headerText(), m.width))
	clock := ""
	if m.cfg.ShowSessionClock {
		clock = m.renderClock()
	}

	help := gridHelp
	if m.settingsOpen {
		help = " enter run  esc close  " + commandHelp
	}
	footer := footerStyle.Render(padOrTrunc(help, m.width))

	bodyH := m.height - 2
	if clock != "" {
		bodyH--
	}
	var body string
	if m.settingsOpen {
		body = m.renderSettings(bodyH)
	} else {
		body = m.renderGrid(bodyH)
	}

	parts := []string{header}
	if clock != "" {
		parts = append(parts, clock)
	}
	parts = append(parts, body, footer)
	return strings.Join(parts, "\n")
}

func (m Model) headerText() string {
	l := m.cfg.Layout
	fallback := "off"
	if m.cfg.Credentials.Present() {
		fallback = "alpaca"
	}
	return fmt.Sprintf(" chartpi    %dx%d    charts: %d/%d    fallback: %s ",
		l.Columns, l.Rows, len(m.cfg.Visible()), len(m.cfg.Charts), fallback)
}

// renderClock is the session status line.
func (m Model) renderClock() string {
	st := m.status
	var label lipgloss.Style
	switch st.Session {
	case market.Regular:
		label = openStyle
	case market.PreMarket, market.AfterHours:
		label = extendedStyle
	default:
		label = closedStyle
	}

	parts := []string{
		" " + label.Render(" "+market.SessionLabel(st.Session)+" "),
		priceStyle.Render(st.CurrentTimeET + " ET"),
		dimStyle.Render(market.NextEventLabel(st.NextEvent)) + " " + priceStyle.Render(market.FormatCountdown(st.CountdownMs)),
	}
	if st.IsHoliday {
		parts = append(parts, warnStyle.Render("Holiday: "+st.HolidayName))
	}
	if st.IsEarlyClose {
		parts = append(parts, warnStyle.Render("Early close 13:00"))
	}
	return strings.Join(parts, "   ")
}

func (m Model) renderGrid(height int) string {
	l := m.cfg.Layout
	if l.Columns <= 0 || l.Rows <= 0 {
		return ""
	}
	vis := m.cfg.Visible()

	// Each cell loses two columns and two rows to its border.
	cellW := max(8, m.width/l.Columns-2)
	cellH := max(4, height/l.Rows-2)

	rows := make([]string, 0, l.Rows)
	for r := 0; r < l.Rows; r++ {
		cells := make([]string, 0, l.Columns)
		for c := 0; c < l.Columns; c++ {
			i := r*l.Columns + c
			var content string
			if i < len(vis) {
				content = m.renderCell(vis[i], m.states[vis[i].ID], cellW, cellH)
			} else {
				content = dimStyle.Render(padOrTrunc(" empty, press s to add a chart", cellW))
			}
			style := cellStyle
			if i == m.selected && i < len(vis) {
				style = selectedCellStyle
			}
			cells = append(cells, style.Width(cellW).Height(cellH).Render(content))
		}
		rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Top, cells...))
	}
	return lipgloss.JoinVertical(lipgloss.Left, rows...)
}

// renderCell draws one chart: a title line, the plot and a stats line.
func (m Model) renderCell(c domain.ChartConfig, st slot.ChartDataState, width, height int) string {
	title := symbolStyle.Render(dashboard.DisplaySymbol(c.Symbol, c.AssetClass)) +
		dimStyle.Render(fmt.Sprintf(" %s %s", c.Interval, c.AssetClass))
	if st.Ready() {
		title += "  " + priceStyle.Render(dashboard.FormatPrice(st.Price, c.Symbol))
		pct := dashboard.FormatPercentChange(st.ChangePercent)
		// The absolute change is shown only when the cell is wide enough.
		if chg := dashboard.FormatChange(st.Change, c.Symbol); lipgloss.Width(title)+len(chg)+len(pct)+2 <= width {
			title += " " + changeStyle(st.ChangePercent).Render(chg)
		}
		title += " " + changeStyle(st.ChangePercent).Render(pct)
	}

	plotH := max(1, height-2)
	var body []string
	switch {
	case st.Err != "":
		body = []string{errStyle.Render(truncate(st.Err, width))}
	case st.Loading && len(st.Bars) == 0:
		body = []string{dimStyle.Render("Loading...")}
	case len(st.Bars) == 0:
		body = []string{dimStyle.Render("No data")}
	case c.RenderStyle == domain.StyleLine:
		body = renderLine(st.Bars, width, plotH)
	default:
		body = renderCandles(st.Bars, width, plotH)
	}
	for len(body) < plotH {
		body = append(body, "")
	}

	lines := append([]string{title}, body...)
	lines = append(lines, m.statsLine(c, st, width))
	return strings.Join(lines, "\n")
}

func (m Model) statsLine(c domain.ChartConfig, st slot.ChartDataState, width int) string {
	if st.Warning != "" {
		return warnStyle.Render(truncate(st.Warning, width))
	}
	if !st.Ready() {
		return ""
	}
	s := dashboard.ComputeStats(st.Bars)
	text := fmt.Sprintf("H %s  L %s  Vol %s",
		dashboard.FormatPrice(s.High, c.Symbol),
		dashboard.FormatPrice(s.Low, c.Symbol),
		dashboard.FormatVolume(s.Volume))
	if st.Source != "" {
		text += "  " + st.Source
	}
	if st.Loading {
		text += "  ↻"
	}
	return dimStyle.Render(truncate(text, width))
}

// renderSettings lists the charts and credentials above the command prompt.
func (m Model) renderSettings(height int) string {
	var b strings.Builder
	b.WriteString(labelStyle.Render(" Settings "))
	b.WriteString("\n\n")

	fmt.Fprintf(&b, "Layout   %d columns x %d rows\n", m.cfg.Layout.Columns, m.cfg.Layout.Rows)
	creds := "not set (stock charts use Yahoo only)"
	if m.cfg.Credentials.Present() {
		creds = "configured, key " + mask(m.cfg.Credentials.APIKey)
	}
	fmt.Fprintf(&b, "Alpaca   %s\n", creds)
	fmt.Fprintf(&b, "Clock    %s\n\n", onOff(m.cfg.ShowSessionClock))

	capacity := m.cfg.Layout.Capacity()
	for i, c := range m.cfg.Charts {
		marker := "  "
		if i == m.selected {
			marker = "> "
		}
		line := fmt.Sprintf("%s%-10s %-6s %-4s %-11s %ds", marker, c.Symbol, c.AssetClass, c.Interval, c.RenderStyle, c.RefreshIntervalSeconds)
		if st, ok := m.states[c.ID]; ok && st.Ready() {
			line += "  " + seriesSummary(st)
		}
		if i >= capacity {
			line = dimStyle.Render(line + "  (hidden)")
		}
		b.WriteString(line + "\n")
	}

	if len(m.results) > 0 {
		b.WriteString("\n")
		for _, r := range m.results {
			fmt.Fprintf(&b, "  %s  %s\n", symbolStyle.Render(fmt.Sprintf("%-10s", r.Symbol)), dimStyle.Render(r.Name))
		}
	}

	b.WriteString("\n" + m.input.View() + "\n")
	if m.note != "" {
		style := dimStyle
		if m.noteErr {
			style = errStyle
		}
		b.WriteString(style.Render(m.note))
	}
	return panelStyle.Width(max(20, m.width-4)).MaxHeight(max(3, height)).Render(b.String())
}

// seriesSummary shows the bar count, the 24h change and the largest
// run-up and drawdown of the loaded series.
func seriesSummary(st slot.ChartDataState) string {
	s := dashboard.ComputeStats(st.Bars)
	parts := []string{
		dashboard.FormatInt(s.Bars) + " bars",
		"24h " + dashboard.FormatPercentChange(dashboard.Change24h(st.Bars)),
	}
	if g := dashboard.FormatGain(s.MaxGain); g != "" {
		parts = append(parts, "up "+g)
	}
	if l := dashboard.FormatLoss(s.MaxLoss); l != "" {
		parts = append(parts, "dd "+l)
	}
	return strings.Join(parts, "  ")
}

func mask(s string) string {
	if len(s) <= 4 {
		return "****"
	}
	return s[:4] + strings.Repeat("*", len(s)-4)
}

// padOrTrunc pads s with spaces to width, or truncates if longer.
func padOrTrunc(s string, width int) string {
	n := lipgloss.Width(s)
	if n >= width {
		return truncate(s, width)
	}
	return s + strings.Repeat(" ", width-n)
}

// truncate cuts plain text to width runes.
func truncate(s string, width int) string {
	r := []rune(s)
	if len(r) <= width {
		return s
	}
	if width <= 0 {
		return ""
	}
	return string(r[:width])
}
