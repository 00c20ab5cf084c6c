package output

import (
	"context"
	"sync"

	"github.com/daisymeal/cyberdefense/internal/domain"
)

// AlertQuery selects alerts from a MemoryAlerter. Zero fields match
// everything; Limit <= 0 means no limit.
type AlertQuery struct {
	Limit      int
	ThreatType domain.ThreatType
	Source     string
	MinLevel   domain.AlertLevel
}

func (q AlertQuery) matches(a *domain.Alert) bool {
	if q.ThreatType != "" && a.ThreatType != q.ThreatType {
		return false
	}
	if q.Source != "" && a.SourceIP != q.Source {
		return false
	}
	return levelRank(a.Level) >= levelRank(q.MinLevel)
}

// MemoryAlerter keeps the most recent alerts in a fixed-size ring. Once
// full, each new alert overwrites the oldest.
type MemoryAlerter struct {
	mu    sync.RWMutex
	ring  []*domain.Alert
	head  int // next write slot
	count int
}

func NewMemoryAlerter(size int) *MemoryAlerter {
	if size <= 0 {
		size = 100
	}
	return &MemoryAlerter{ring: make([]*domain.Alert, size)}
}

func (a *MemoryAlerter) Send(ctx context.Context, alert *domain.Alert) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.ring[a.head] = alert
	a.head = (a.head + 1) % len(a.ring)
	if a.count < len(a.ring) {
		a.count++
	}
	return nil
}

func (a *MemoryAlerter) Flush() error { return nil }
func (a *MemoryAlerter) Close() error { return nil }

// OnAlert implements ports.AlertSubscriber.
func (a *MemoryAlerter) OnAlert(alert *domain.Alert) {
	_ = a.Send(context.Background(), alert)
}

// newest returns the i-th most recent alert; the caller holds the lock.
func (a *MemoryAlerter) newest(i int) *domain.Alert {
	return a.ring[(a.head-1-i+len(a.ring))%len(a.ring)]
}

// Query returns matching alerts, newest first.
func (a *MemoryAlerter) Query(q AlertQuery) []*domain.Alert {
	a.mu.RLock()
	defer a.mu.RUnlock()

	capacity := a.count
	if q.Limit > 0 && q.Limit < capacity {
		capacity = q.Limit
	}
	out := make([]*domain.Alert, 0, capacity)
	for i := 0; i < a.count; i++ {
		if q.Limit > 0 && len(out) == q.Limit {
			break
		}
		if al := a.newest(i); q.matches(al) {
			out = append(out, al)
		}
	}
	return out
}

// GetLatestAlerts returns the n most recent alerts, newest first. n <= 0
// returns everything stored.
func (a *MemoryAlerter) GetLatestAlerts(n int) []*domain.Alert {
	return a.Query(AlertQuery{Limit: n})
}

// GetAlerts returns every stored alert, oldest first.
func (a *MemoryAlerter) GetAlerts() []*domain.Alert {
	a.mu.RLock()
	defer a.mu.RUnlock()

	out := make([]*domain.Alert, a.count)
	for i := range out {
		out[a.count-1-i] = a.newest(i)
	}
	return out
}

func (a *MemoryAlerter) Count() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.count
}

func (a *MemoryAlerter) Clear() {
	a.mu.Lock()
	defer a.mu.Unlock()
	clear(a.ring)
	a.head = 0
	a.count = 0
}
