package domain

import (
	"sync"
	"sync/atomic"
	"time"
)

type MetricsSnapshot struct {
	TotalRecords     int64
	AllowedRecords   int64
	DroppedRecords   int64
	BlockedRecords   int64
	TotalAlerts      int64
	RecordsPerSecond float64
	ActiveWorkers    int
	MemoryUsageMB    float64
	Uptime           time.Duration
	StartTime        time.Time
}

// InspectionMetrics holds process-wide counters. Counters are atomics; the
// sampled gauges are guarded by mu.
type InspectionMetrics struct {
	totalRecords   atomic.Int64
	allowedRecords atomic.Int64
	droppedRecords atomic.Int64
	blockedRecords atomic.Int64
	totalAlerts    atomic.Int64

	recordsPerSecond float64
	activeWorkers    int
	memoryUsageMB    float64
	startTime        time.Time

	mu sync.RWMutex
}

func NewInspectionMetrics() *InspectionMetrics {
	return &InspectionMetrics{
		startTime: time.Now(),
	}
}

// RecordVerdict counts one inspected record under its action.
func (m *InspectionMetrics) RecordVerdict(v Verdict) {
	m.totalRecords.Add(1)
	switch v.Action {
	case ActionAllow:
		m.allowedRecords.Add(1)
	case ActionDrop:
		m.droppedRecords.Add(1)
	case ActionBlockAndAlert:
		m.blockedRecords.Add(1)
	}
}

func (m *InspectionMetrics) IncrementAlerts() {
	m.totalAlerts.Add(1)
}

func (m *InspectionMetrics) TotalRecords() int64 {
	return m.totalRecords.Load()
}

func (m *InspectionMetrics) GetSnapshot() MetricsSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return MetricsSnapshot{
		TotalRecords:     m.totalRecords.Load(),
		AllowedRecords:   m.allowedRecords.Load(),
		DroppedRecords:   m.droppedRecords.Load(),
		BlockedRecords:   m.blockedRecords.Load(),
		TotalAlerts:      m.totalAlerts.Load(),
		RecordsPerSecond: m.recordsPerSecond,
		ActiveWorkers:    m.activeWorkers,
		MemoryUsageMB:    m.memoryUsageMB,
		Uptime:           time.Since(m.startTime),
		StartTime:        m.startTime,
	}
}

func (m *InspectionMetrics) UpdateRPS(rps float64) {
	m.mu.Lock()
	m.recordsPerSecond = rps
	m.mu.Unlock()
}

func (m *InspectionMetrics) SetActiveWorkers(count int) {
	m.mu.Lock()
	m.activeWorkers = count
	m.mu.Unlock()
}

func (m *InspectionMetrics) SetMemoryUsage(mb float64) {
	m.mu.Lock()
	m.memoryUsageMB = mb
	m.mu.Unlock()
}
