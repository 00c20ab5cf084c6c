// Package output holds the outbound adapters of the inspection service:
// alert destinations, verdict sinks, metrics, health and source tracking.
//
// Thread Safety: every alerter here is safe for concurrent Send calls.
package output

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/daisymeal/cyberdefense/internal/domain"
)

const (
	jsonBufferSize       = 64 * 1024
	defaultFlushInterval = time.Second
)

// JSONAlerterConfig configures JSON alert output.
type JSONAlerterConfig struct {
	Writer        io.Writer         // Output destination (default: stdout)
	Pretty        bool              // Indent each alert
	MinLevel      domain.AlertLevel // Alerts below this level are skipped (default: all)
	FlushInterval time.Duration     // Background flush period (default: 1s)
}

// JSONAlerter writes alerts as JSON lines through a 64KB buffer that is
// flushed in the background, so log shippers see alerts within one flush
// interval.
type JSONAlerter struct {
	mu        sync.Mutex
	buf       *bufio.Writer
	enc       *json.Encoder
	minRank   int
	written   atomic.Int64
	skipped   atomic.Int64
	stop      chan struct{}
	closeOnce sync.Once
}

// NewJSONAlerter creates a JSON alert output and starts its flush loop.
func NewJSONAlerter(config JSONAlerterConfig) *JSONAlerter {
	w := config.Writer
	if w == nil {
		w = os.Stdout
	}
	interval := config.FlushInterval
	if interval <= 0 {
		interval = defaultFlushInterval
	}

	buf := bufio.NewWriterSize(w, jsonBufferSize)
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	if config.Pretty {
		enc.SetIndent("", "  ")
	}

	a := &JSONAlerter{
		buf:     buf,
		enc:     enc,
		minRank: levelRank(config.MinLevel),
		stop:    make(chan struct{}),
	}
	go a.flushLoop(interval)
	return a
}

func (a *JSONAlerter) flushLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			a.Flush()
		case <-a.stop:
			return
		}
	}
}

func (a *JSONAlerter) Send(ctx context.Context, alert *domain.Alert) error {
	if levelRank(alert.Level) < a.minRank {
		a.skipped.Add(1)
		return nil
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.enc.Encode(alert); err != nil {
		return err
	}
	a.written.Add(1)
	return nil
}

// Flush forces buffered alerts out to the writer.
func (a *JSONAlerter) Flush() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.buf.Flush()
}

// Close stops the flush loop and flushes what is left. The writer itself is
// not closed. Safe to call more than once.
func (a *JSONAlerter) Close() error {
	a.closeOnce.Do(func() { close(a.stop) })
	return a.Flush()
}

// Written counts alerts encoded; Skipped counts alerts under MinLevel.
func (a *JSONAlerter) Written() int64 { return a.written.Load() }
func (a *JSONAlerter) Skipped() int64 { return a.skipped.Load() }

// levelRank orders alert levels. An empty or unknown level ranks lowest.
func levelRank(level domain.AlertLevel) int {
	switch level {
	case domain.AlertLevelCritical:
		return 3
	case domain.AlertLevelWarning:
		return 2
	case domain.AlertLevelInfo:
		return 1
	default:
		return 0
	}
}
