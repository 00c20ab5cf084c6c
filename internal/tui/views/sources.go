package views

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/daisymeal/cyberdefense/internal/adapters/output"
	"github.com/daisymeal/cyberdefense/pkg/sanitize"
)

// SourceTable ranks sources by threats, with a bar scaled to the worst one.
type SourceTable struct {
	Rows         []output.SourceStats
	Width        int
	VisibleCount int
}

func NewSourceTable(width int) *SourceTable {
	return &SourceTable{Width: width, VisibleCount: 25}
}

func (v *SourceTable) Update(rows []output.SourceStats) { v.Rows = rows }

func (v *SourceTable) Render() string {
	greenDim := lipgloss.NewStyle().Foreground(lipgloss.Color("#00aa2a"))
	amber := lipgloss.NewStyle().Foreground(lipgloss.Color("#ffb000"))
	red := lipgloss.NewStyle().Foreground(lipgloss.Color("#ff3333"))
	dim := lipgloss.NewStyle().Foreground(lipgloss.Color("#404040"))
	muted := lipgloss.NewStyle().Foreground(lipgloss.Color("#707070"))
	text := lipgloss.NewStyle().Foreground(lipgloss.Color("#e5e5e5"))

	if len(v.Rows) == 0 {
		return dim.Italic(true).Render("  No sources seen")
	}

	lines := []string{
		muted.Bold(true).Render(fmt.Sprintf(" %-3s %-17s %-13s %-8s %-8s %-8s %s",
			"#", "SOURCE", "THREATS", "SEEN", "DROPPED", "BLOCKED", "LAST THREAT")),
		dim.Render(strings.Repeat("─", max(v.Width, 0))),
	}

	var worst int64
	for _, r := range v.Rows {
		if r.Threats() > worst {
			worst = r.Threats()
		}
	}

	rows := v.Rows
	if len(rows) > v.VisibleCount {
		rows = rows[:v.VisibleCount]
	}

	const barWidth = 6
	for i, r := range rows {
		style := greenDim
		ratio := 0.0
		if worst > 0 {
			ratio = float64(r.Threats()) / float64(worst)
		}
		switch {
		case r.Threats() > 0 && ratio > 0.7:
			style = red.Bold(true)
		case r.Threats() > 0 && ratio > 0.4:
			style = amber.Bold(true)
		}

		fill := int(ratio * barWidth)
		bar := strings.Repeat("█", fill) + strings.Repeat("░", barWidth-fill)

		lines = append(lines, fmt.Sprintf(" %s %s %s %s %s %s %s",
			muted.Render(fmt.Sprintf("%2d.", i+1)),
			style.Render(padRight(sanitize.Terminal(r.SourceIP), 17)),
			style.Render(fmt.Sprintf("%s %6s", bar, fmtLarge(r.Threats()))),
			text.Render(fmt.Sprintf("%-8s", fmtLarge(r.Inspected))),
			text.Render(fmt.Sprintf("%-8s", fmtLarge(r.Dropped))),
			text.Render(fmt.Sprintf("%-8s", fmtLarge(r.Blocked))),
			muted.Render(string(r.LastThreat)),
		))
	}

	return strings.Join(lines, "\n")
}
