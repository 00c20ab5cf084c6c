package views

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var barChars = []rune{'▁', '▂', '▃', '▄', '▅', '▆', '▇', '█'}

// Throughput is a one-line bar chart of records per second, scaled to the
// largest sample in the window.
type Throughput struct {
	Data  []float64
	Width int
}

func NewThroughput(width int) *Throughput {
	if width <= 0 {
		width = 60
	}
	return &Throughput{Data: make([]float64, width), Width: width}
}

func (t *Throughput) Update(value float64) {
	t.Data = append(t.Data[1:], value)
}

// SetWidth resizes the window, keeping the newest samples.
func (t *Throughput) SetWidth(width int) {
	if width <= 0 || width == t.Width {
		return
	}
	old := t.Data
	if len(old) > width {
		old = old[len(old)-width:]
	}
	t.Width = width
	t.Data = make([]float64, width)
	copy(t.Data[width-len(old):], old)
}

func (t *Throughput) Render() string {
	green := lipgloss.NewStyle().Foreground(lipgloss.Color("#00ff41"))
	amber := lipgloss.NewStyle().Foreground(lipgloss.Color("#ffb000"))
	ghost := lipgloss.NewStyle().Foreground(lipgloss.Color("#252525"))
	muted := lipgloss.NewStyle().Foreground(lipgloss.Color("#707070"))

	var peak, current float64
	for _, v := range t.Data {
		if v > peak {
			peak = v
		}
	}
	if len(t.Data) > 0 {
		current = t.Data[len(t.Data)-1]
	}

	var b strings.Builder
	b.WriteString("  ")
	for _, v := range t.Data {
		if v <= 0 || peak <= 0 {
			b.WriteString(ghost.Render(string(barChars[0])))
			continue
		}
		idx := int(v / peak * float64(len(barChars)-1))
		style := green
		if v >= peak*0.9 {
			style = amber
		}
		b.WriteString(style.Render(string(barChars[idx])))
	}
	b.WriteString(muted.Render(fmt.Sprintf("  %s/s peak %s/s", fmtLarge(int64(current)), fmtLarge(int64(peak)))))
	return b.String()
}
