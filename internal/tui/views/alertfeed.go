package views

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/daisymeal/cyberdefense/internal/domain"
	"github.com/daisymeal/cyberdefense/pkg/sanitize"
)

// AlertFeed shows the most recent alerts, newest at the top.
type AlertFeed struct {
	Alerts       []*domain.Alert
	MaxAlerts    int
	VisibleCount int
	ScrollPos    int
	Width        int
}

func NewAlertFeed(maxAlerts, visibleCount int) *AlertFeed {
	return &AlertFeed{
		Alerts:       make([]*domain.Alert, 0, maxAlerts),
		MaxAlerts:    maxAlerts,
		VisibleCount: visibleCount,
		Width:        100,
	}
}

func (a *AlertFeed) Add(alert *domain.Alert) {
	if len(a.Alerts) >= a.MaxAlerts {
		copy(a.Alerts, a.Alerts[1:])
		a.Alerts = a.Alerts[:len(a.Alerts)-1]
	}
	a.Alerts = append(a.Alerts, alert)
}

// ScrollDown moves toward older alerts.
func (a *AlertFeed) ScrollDown() {
	if a.ScrollPos < a.maxScroll() {
		a.ScrollPos++
	}
}

func (a *AlertFeed) ScrollUp() {
	if a.ScrollPos > 0 {
		a.ScrollPos--
	}
}

func (a *AlertFeed) maxScroll() int {
	n := len(a.Alerts) - a.VisibleCount
	if n < 0 {
		return 0
	}
	return n
}

func (a *AlertFeed) Render() string {
	dim := lipgloss.NewStyle().Foreground(lipgloss.Color("#404040"))
	muted := lipgloss.NewStyle().Foreground(lipgloss.Color("#707070"))
	text := lipgloss.NewStyle().Foreground(lipgloss.Color("#e5e5e5"))
	green := lipgloss.NewStyle().Foreground(lipgloss.Color("#00ff41"))
	amber := lipgloss.NewStyle().Foreground(lipgloss.Color("#ffb000"))
	red := lipgloss.NewStyle().Foreground(lipgloss.Color("#ff3333"))

	if len(a.Alerts) == 0 {
		return dim.Italic(true).Render("  No alerts")
	}

	lines := []string{
		muted.Bold(true).Render(fmt.Sprintf("  %-8s  %-3s  %-15s  %-20s  %s",
			"TIME", "LVL", "SOURCE", "TYPE", "EXCERPT")),
		dim.Render("  " + strings.Repeat("─", max(a.Width-4, 0))),
	}

	newest := len(a.Alerts) - 1 - a.ScrollPos
	oldest := newest - a.VisibleCount + 1
	if oldest < 0 {
		oldest = 0
	}

	for i := newest; i >= oldest; i-- {
		al := a.Alerts[i]

		lvl, lvlStyle := "INF", green
		switch al.Level {
		case domain.AlertLevelCritical:
			lvl, lvlStyle = "CRT", red.Bold(true)
		case domain.AlertLevelWarning:
			lvl, lvlStyle = "WRN", amber.Bold(true)
		}

		excerptLen := a.Width - 60
		if excerptLen < 10 {
			excerptLen = 10
		}

		lines = append(lines, fmt.Sprintf("  %s  %s  %s  %s  %s",
			dim.Render(al.Timestamp.Format("15:04:05")),
			lvlStyle.Render(lvl),
			text.Render(padRight(sanitize.Terminal(al.SourceString()), 15)),
			lvlStyle.Render(padRight(string(al.ThreatType), 20)),
			muted.Render(sanitize.Excerpt(al.Excerpt, excerptLen)),
		))
	}

	if len(a.Alerts) > a.VisibleCount {
		lines = append(lines, dim.Render(fmt.Sprintf("  [%d-%d of %d]",
			a.ScrollPos+1, a.ScrollPos+newest-oldest+1, len(a.Alerts))))
	}

	return strings.Join(lines, "\n")
}

// padRight pads or cuts s to exactly width terminal cells.
func padRight(s string, width int) string {
	w := lipgloss.Width(s)
	if w > width {
		r := []rune(s)
		for len(r) > 0 && lipgloss.Width(string(r)) > width-1 {
			r = r[:len(r)-1]
		}
		return string(r) + "…"
	}
	return s + strings.Repeat(" ", width-w)
}
