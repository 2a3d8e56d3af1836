package viz

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// styles are derived from a theme each frame so that theme switches apply
// immediately.
type styles struct {
	canvas  lipgloss.Style
	panel   lipgloss.Style
	title   lipgloss.Style
	label   lipgloss.Style
	value   lipgloss.Style
	running lipgloss.Style
	paused  lipgloss.Style
	failed  lipgloss.Style
	help    lipgloss.Style
	good    lipgloss.Style
	warn    lipgloss.Style
	bad     lipgloss.Style
}

func newStyles(t Theme) styles {
	return styles{
		canvas: lipgloss.NewStyle().Padding(1, 2).Foreground(t.Particles),
		panel: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(t.Muted).
			Padding(1, 2).
			Width(42),
		title:   lipgloss.NewStyle().Bold(true).Foreground(t.Accent).MarginBottom(1),
		label:   lipgloss.NewStyle().Foreground(t.Muted).Width(13),
		value:   lipgloss.NewStyle().Foreground(t.Text),
		running: lipgloss.NewStyle().Bold(true).Foreground(t.Good),
		paused:  lipgloss.NewStyle().Bold(true).Foreground(t.Warn),
		failed:  lipgloss.NewStyle().Bold(true).Foreground(t.Bad),
		help:    lipgloss.NewStyle().Foreground(t.Muted).Italic(true).MarginTop(1),
		good:    lipgloss.NewStyle().Foreground(t.Good),
		warn:    lipgloss.NewStyle().Foreground(t.Warn),
		bad:     lipgloss.NewStyle().Foreground(t.Bad),
	}
}

// progressBar renders fraction in [0,1] as a bar of the given width.
func (s styles) progressBar(fraction float64, width int) string {
	filled := int(fraction * float64(width))
	if filled > width {
		filled = width
	}
	if filled < 0 {
		filled = 0
	}

	bar := strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
	switch {
	case fraction > 0.8:
		return s.good.Render(bar)
	case fraction > 0.4:
		return s.warn.Render(bar)
	default:
		return s.bad.Render(bar)
	}
}

var sparkChars = []rune{'▁', '▂', '▃', '▄', '▅', '▆', '▇', '█'}

// sparkline draws the last width values, scaled between their min and max.
func sparkline(values []float64, width int) string {
	if len(values) == 0 {
		return strings.Repeat("─", width)
	}
	if len(values) > width {
		values = values[len(values)-width:]
	}

	lo, hi := values[0], values[0]
	for _, v := range values {
		lo = min(lo, v)
		hi = max(hi, v)
	}
	span := hi - lo
	if span == 0 {
		span = 1
	}

	var b strings.Builder
	for _, v := range values {
		idx := int((v - lo) / span * float64(len(sparkChars)-1))
		idx = max(0, min(idx, len(sparkChars)-1))
		b.WriteRune(sparkChars[idx])
	}
	return b.String()
}
