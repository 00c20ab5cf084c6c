package output

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"

	"github.com/daisymeal/cyberdefense/internal/adapters/detection"
	"github.com/daisymeal/cyberdefense/internal/domain"
	"github.com/daisymeal/cyberdefense/internal/ports"
	"github.com/daisymeal/cyberdefense/pkg/sanitize"
)

var (
	colorGreen = lipgloss.Color("#00ff41")
	colorAmber = lipgloss.Color("#ffb000")
	colorRed   = lipgloss.Color("#ff3333")
	colorMuted = lipgloss.Color("#707070")
	colorText  = lipgloss.Color("#e5e5e5")
)

var (
	actionAllow = lipgloss.NewStyle().Foreground(colorGreen).Width(15)
	actionDrop  = lipgloss.NewStyle().Foreground(colorAmber).Bold(true).Width(15)
	actionBlock = lipgloss.NewStyle().Foreground(colorRed).Bold(true).Width(15)
	textMuted   = lipgloss.NewStyle().Foreground(colorMuted)
	textBold    = lipgloss.NewStyle().Foreground(colorText).Bold(true)

	headerStyle = lipgloss.NewStyle().
			Foreground(colorGreen).
			Bold(true).
			Padding(0, 1)
	cellStyle = lipgloss.NewStyle().Padding(0, 1)
)

func actionStyle(a domain.Action) lipgloss.Style {
	switch a {
	case domain.ActionBlockAndAlert:
		return actionBlock
	case domain.ActionDrop:
		return actionDrop
	default:
		return actionAllow
	}
}

// ConsoleSink prints one styled line per verdict. Colors only appear when
// the terminal supports them.
type ConsoleSink struct {
	w         io.Writer
	showClean bool
	mu        sync.Mutex
}

// NewConsoleSink returns a sink writing to w. With showClean false, ALLOW
// verdicts are not printed.
func NewConsoleSink(w io.Writer, showClean bool) *ConsoleSink {
	return &ConsoleSink{w: w, showClean: showClean}
}

func (s *ConsoleSink) Emit(rec ports.SourcedRecord, v domain.Verdict) error {
	if v.Action == domain.ActionAllow && !s.showClean {
		return nil
	}

	var b strings.Builder
	if rec.Line > 0 {
		b.WriteString(textMuted.Render(fmt.Sprintf("%6d", rec.Line)))
		b.WriteByte(' ')
	}
	b.WriteString(actionStyle(v.Action).Render(string(v.Action)))
	b.WriteByte(' ')
	b.WriteString(textBold.Render(sanitize.Terminal(v.SourceAddress)))
	if v.ThreatDetected {
		b.WriteString(textMuted.Render("  " + string(v.ThreatType)))
	}
	b.WriteByte('\n')

	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := io.WriteString(s.w, b.String())
	return err
}

// JSONLinesSink writes each verdict as one JSON object per line.
type JSONLinesSink struct {
	enc      *json.Encoder
	hardware string
	mu       sync.Mutex
}

type verdictLine struct {
	Line int `json:"line,omitempty"`
	domain.Verdict
	Hardware string `json:"hardware,omitempty"`
}

func NewJSONLinesSink(w io.Writer, hardware string) *JSONLinesSink {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	return &JSONLinesSink{enc: enc, hardware: hardware}
}

func (s *JSONLinesSink) Emit(rec ports.SourcedRecord, v domain.Verdict) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enc.Encode(verdictLine{Line: rec.Line, Verdict: v, Hardware: s.hardware})
}

// RenderSignatureTable lays the signature table out as aligned columns in
// priority order.
func RenderSignatureTable(defs []detection.SignatureDefinition) string {
	headers := []string{"#", "NAME", "KIND", "MATCHES"}
	rows := make([][]string, len(defs))
	for i, d := range defs {
		matches := d.Text
		if d.Kind == string(detection.MatchPatterns) {
			matches = strings.Join(d.Patterns, " | ")
		}
		rows[i] = []string{fmt.Sprintf("%d", i+1), d.Name, d.Kind, sanitize.Terminal(matches)}
	}

	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = lipgloss.Width(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			if w := lipgloss.Width(cell); w > widths[i] {
				widths[i] = w
			}
		}
	}

	var b strings.Builder
	cols := make([]string, len(headers))
	for i, h := range headers {
		cols[i] = headerStyle.Width(widths[i] + 2).Render(h)
	}
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, cols...))
	b.WriteByte('\n')

	for _, row := range rows {
		for i, cell := range row {
			cols[i] = cellStyle.Width(widths[i] + 2).Render(cell)
		}
		b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, cols...))
		b.WriteByte('\n')
	}
	return b.String()
}
