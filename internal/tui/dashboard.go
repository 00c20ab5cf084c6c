// Package tui renders a live dashboard for follow mode: verdict counters,
// the alert feed and the busiest sources.
package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/daisymeal/cyberdefense/internal/adapters/output"
	"github.com/daisymeal/cyberdefense/internal/domain"
	"github.com/daisymeal/cyberdefense/internal/tui/views"
)

const (
	maxAlertsPerTick = 50
	uiTickInterval   = 250 * time.Millisecond
	maxPendingAlerts = 500
)

// MetricsSource is polled on every tick.
type MetricsSource interface {
	GetSnapshot() domain.MetricsSnapshot
}

// SourceRanker returns the sources with the most threats first.
type SourceRanker interface {
	Top(n int) []output.SourceStats
}

type panel int

const (
	panelAlerts panel = iota
	panelSources
	panelCount
)

// Dashboard is a bubbletea model. Alerts arrive through OnAlert from the
// dispatcher goroutine and are moved into the feed on the UI tick.
type Dashboard struct {
	source   string
	hardware string
	metrics  MetricsSource
	ranker   SourceRanker

	feed       *views.AlertFeed
	sources    *views.SourceTable
	status     *views.Status
	throughput *views.Throughput
	active     panel

	pending       []*domain.Alert
	pendingMu     sync.Mutex
	droppedAlerts int64

	lastMetrics domain.MetricsSnapshot
	ready       bool
	quitting    bool
	width       int
	height      int
}

func NewDashboard(source, hardware string, metrics MetricsSource, ranker SourceRanker) *Dashboard {
	return &Dashboard{
		source:     source,
		hardware:   hardware,
		metrics:    metrics,
		ranker:     ranker,
		feed:       views.NewAlertFeed(100, 15),
		sources:    views.NewSourceTable(100),
		status:     views.NewStatus(100),
		throughput: views.NewThroughput(80),
		pending:    make([]*domain.Alert, 0, 64),
	}
}

type tickMsg time.Time

func (d *Dashboard) Init() tea.Cmd {
	return d.tick()
}

func (d *Dashboard) tick() tea.Cmd {
	return tea.Tick(uiTickInterval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (d *Dashboard) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			d.quitting = true
			return d, tea.Quit
		case "tab":
			d.active = (d.active + 1) % panelCount
		case "up", "k":
			d.feed.ScrollUp()
		case "down", "j":
			d.feed.ScrollDown()
		}
	case tea.WindowSizeMsg:
		d.resize(msg.Width, msg.Height)
	case tickMsg:
		d.refresh()
		return d, d.tick()
	}
	return d, nil
}

func (d *Dashboard) resize(width, height int) {
	d.width, d.height = width, height
	d.ready = true

	content := height - 10
	if content < 5 {
		content = 5
	}
	d.feed.Width = width - 4
	d.feed.VisibleCount = content
	d.sources.Width = width - 4
	d.sources.VisibleCount = content
	d.status.Width = width
	d.throughput.SetWidth(width - 4)
}

func (d *Dashboard) refresh() {
	if d.metrics != nil {
		d.lastMetrics = d.metrics.GetSnapshot()
		d.status.Update(d.lastMetrics)
		d.throughput.Update(d.lastMetrics.RecordsPerSecond)
	}
	if d.ranker != nil {
		d.sources.Update(d.ranker.Top(d.sources.VisibleCount))
	}

	d.pendingMu.Lock()
	n := len(d.pending)
	if n > maxAlertsPerTick {
		n = maxAlertsPerTick
	}
	batch := make([]*domain.Alert, n)
	copy(batch, d.pending[:n])
	d.pending = d.pending[n:]
	d.pendingMu.Unlock()

	for _, alert := range batch {
		d.feed.Add(alert)
	}
}

func (d *Dashboard) View() string {
	if d.quitting {
		return "\n  Session terminated.\n\n"
	}
	if !d.ready {
		return "\n  Initializing...\n\n"
	}

	var b strings.Builder
	b.WriteString(d.renderHeader())
	b.WriteString("\n")
	b.WriteString(TextDim.Render(strings.Repeat(HLine, d.width)))
	b.WriteString("\n")
	b.WriteString(d.throughput.Render())
	b.WriteString("\n\n")

	if d.active == panelSources {
		b.WriteString(TextMuted.Render("  TOP SOURCES"))
		b.WriteString("\n")
		b.WriteString(d.sources.Render())
	} else {
		b.WriteString(TextMuted.Render("  ALERTS"))
		b.WriteString("\n")
		b.WriteString(d.feed.Render())
	}

	b.WriteString("\n\n")
	b.WriteString(d.status.Render())
	b.WriteString("\n")
	b.WriteString(d.renderHelp())
	return b.String()
}

func (d *Dashboard) renderHeader() string {
	status := TextPrimary.Render("INSPECTING")
	if d.lastMetrics.BlockedRecords > 0 {
		status = TextRed.Render("THREATS BLOCKED")
	}
	return fmt.Sprintf("  %s  %s  %s %s  %s %s",
		TextPrimary.Render("CYBERDEFENSE"), status,
		TextDim.Render("SRC:"), d.source,
		TextDim.Render("HW:"), d.hardware)
}

func (d *Dashboard) renderHelp() string {
	names := []string{"ALERTS", "SOURCES"}
	return TextDim.Render(fmt.Sprintf("  %s [%s]  %s scroll  %s quit",
		TextKey.Render("TAB"), names[d.active], TextKey.Render("↑↓"), TextKey.Render("q")))
}

// OnAlert implements ports.AlertSubscriber. When the UI falls behind, the
// oldest tenth of the pending alerts is discarded.
func (d *Dashboard) OnAlert(alert *domain.Alert) {
	d.pendingMu.Lock()
	defer d.pendingMu.Unlock()
	if len(d.pending) >= maxPendingAlerts {
		cut := maxPendingAlerts / 10
		d.droppedAlerts += int64(cut)
		d.pending = d.pending[cut:]
	}
	d.pending = append(d.pending, alert)
}

func (d *Dashboard) DroppedAlerts() int64 {
	d.pendingMu.Lock()
	defer d.pendingMu.Unlock()
	return d.droppedAlerts
}

// Run takes over the terminal until the user quits or ctx ends.
func (d *Dashboard) Run(ctx context.Context) error {
	p := tea.NewProgram(d, tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return err
	}
	return nil
}
