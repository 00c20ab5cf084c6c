package views

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/daisymeal/cyberdefense/internal/domain"
)

type Status struct {
	Width      int
	Metrics    domain.MetricsSnapshot
	lastUpdate time.Time
}

func NewStatus(width int) *Status {
	return &Status{Width: width}
}

func (s *Status) Update(metrics domain.MetricsSnapshot) {
	s.Metrics = metrics
	s.lastUpdate = time.Now()
}

func (s *Status) Render() string {
	green := lipgloss.NewStyle().Foreground(lipgloss.Color("#00ff41"))
	amber := lipgloss.NewStyle().Foreground(lipgloss.Color("#ffb000"))
	red := lipgloss.NewStyle().Foreground(lipgloss.Color("#ff3333"))
	muted := lipgloss.NewStyle().Foreground(lipgloss.Color("#707070"))
	border := lipgloss.NewStyle().Foreground(lipgloss.Color("#2a2a2a"))

	blocked := green
	if s.Metrics.BlockedRecords > 0 {
		blocked = red.Bold(true)
	}
	dropped := green
	if s.Metrics.DroppedRecords > 0 {
		dropped = amber.Bold(true)
	}
	mem := green
	if s.Metrics.MemoryUsageMB > 1000 {
		mem = red.Bold(true)
	} else if s.Metrics.MemoryUsageMB > 500 {
		mem = amber.Bold(true)
	}

	items := []string{
		s.heartbeat(green, amber, red),
		muted.Render("RATE:") + " " + green.Render(fmtLarge(int64(s.Metrics.RecordsPerSecond))+"/s"),
		muted.Render("SEEN:") + " " + green.Render(fmtLarge(s.Metrics.TotalRecords)),
		muted.Render("ALLOW:") + " " + green.Render(fmtLarge(s.Metrics.AllowedRecords)),
		muted.Render("DROP:") + " " + dropped.Render(fmtLarge(s.Metrics.DroppedRecords)),
		muted.Render("BLOCK:") + " " + blocked.Render(fmtLarge(s.Metrics.BlockedRecords)),
		muted.Render("WRK:") + " " + green.Render(fmt.Sprintf("%d", s.Metrics.ActiveWorkers)),
		muted.Render("MEM:") + " " + mem.Render(fmt.Sprintf("%.0fM", s.Metrics.MemoryUsageMB)),
		muted.Render("UP:") + " " + green.Render(fmtUptime(s.Metrics.Uptime.Round(time.Second))),
	}

	return lipgloss.NewStyle().
		Width(s.Width).
		Padding(0, 1).
		Render(strings.Join(items, border.Render(" │ ")))
}

// heartbeat goes amber then red when metrics stop arriving.
func (s *Status) heartbeat(ok, warn, crit lipgloss.Style) string {
	elapsed := time.Since(s.lastUpdate)
	icon, style := "●", ok.Bold(true)
	switch {
	case elapsed > 2*time.Second:
		icon, style = "○", crit
	case elapsed > 500*time.Millisecond:
		icon, style = "○", warn
	}
	return lipgloss.NewStyle().Foreground(lipgloss.Color("#707070")).Render("SYS:") + " " + style.Render(icon)
}

func fmtLarge(n int64) string {
	if n >= 1000000 {
		return fmt.Sprintf("%.1fM", float64(n)/1000000)
	}
	if n >= 1000 {
		return fmt.Sprintf("%.1fK", float64(n)/1000)
	}
	return fmt.Sprintf("%d", n)
}

func fmtUptime(d time.Duration) string {
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	if h > 0 {
		return fmt.Sprintf("%dh%02dm", h, m)
	}
	return fmt.Sprintf("%dm%02ds", m, s)
}
