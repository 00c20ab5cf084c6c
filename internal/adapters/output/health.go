package output

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"
)

// InspectionInfo is what the health check reports about the pipeline.
type InspectionInfo interface {
	Hardware() string
	SignatureCount() int
}

// QueueInfo is a bounded queue whose saturation degrades health.
type QueueInfo interface {
	QueueLength() int
	QueueCapacity() int
}

type HealthStatus struct {
	Healthy        bool          `json:"healthy"`
	Status         string        `json:"status"`
	Hardware       string        `json:"hardware"`
	SignatureCount int           `json:"signatures"`
	QueueLength    int           `json:"queue_length"`
	QueueCapacity  int           `json:"queue_capacity"`
	Utilization    float64       `json:"utilization_percent"`
	Uptime         time.Duration `json:"-"`
	UptimeSeconds  float64       `json:"uptime_seconds"`
	Reason         string        `json:"reason,omitempty"`
}

type HealthChecker struct {
	info      InspectionInfo
	queue     QueueInfo
	startTime time.Time

	lastCheck     HealthStatus
	lastCheckTime time.Time
	lastCheckMu   sync.RWMutex
	checkInterval time.Duration
}

type HealthCheckerConfig struct {
	CheckInterval time.Duration
}

func DefaultHealthCheckerConfig() HealthCheckerConfig {
	return HealthCheckerConfig{
		CheckInterval: 5 * time.Second,
	}
}

// NewHealthChecker reports on info and, when queue is non-nil, on its fill
// level.
func NewHealthChecker(info InspectionInfo, queue QueueInfo, config HealthCheckerConfig) *HealthChecker {
	return &HealthChecker{
		info:          info,
		queue:         queue,
		checkInterval: config.CheckInterval,
		startTime:     time.Now(),
	}
}

func (h *HealthChecker) Check(ctx context.Context) HealthStatus {
	h.lastCheckMu.RLock()
	if !h.lastCheckTime.IsZero() && time.Since(h.lastCheckTime) < h.checkInterval {
		cached := h.lastCheck
		h.lastCheckMu.RUnlock()
		return cached
	}
	h.lastCheckMu.RUnlock()

	status := h.performCheck(ctx)

	h.lastCheckMu.Lock()
	h.lastCheck = status
	h.lastCheckTime = time.Now()
	h.lastCheckMu.Unlock()

	return status
}

func (h *HealthChecker) performCheck(ctx context.Context) HealthStatus {
	status := HealthStatus{
		Uptime: time.Since(h.startTime),
	}
	status.UptimeSeconds = status.Uptime.Seconds()

	if err := ctx.Err(); err != nil {
		status.Status = "OFFLINE"
		status.Reason = err.Error()
		return status
	}

	if h.info == nil {
		status.Status = "OFFLINE"
		status.Reason = "inspection service not configured"
		return status
	}
	status.Hardware = h.info.Hardware()
	status.SignatureCount = h.info.SignatureCount()

	if status.SignatureCount == 0 {
		status.Status = "NO_SIGNATURES"
		status.Reason = "signature table is empty"
		return status
	}

	if h.queue != nil {
		status.QueueLength = h.queue.QueueLength()
		status.QueueCapacity = h.queue.QueueCapacity()
		if status.QueueCapacity > 0 {
			status.Utilization = float64(status.QueueLength) / float64(status.QueueCapacity) * 100
		}
	}

	if status.Utilization >= 95 {
		status.Status = "SATURATED"
		status.Reason = fmt.Sprintf("alert queue utilization at %.1f%%", status.Utilization)
		return status
	}

	status.Healthy = true
	if status.Utilization >= 80 {
		status.Status = "DEGRADED"
		status.Reason = fmt.Sprintf("alert queue utilization elevated at %.1f%%", status.Utilization)
	} else {
		status.Status = "HEALTHY"
	}

	return status
}

func (h *HealthChecker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := h.Check(ctx)

	w.Header().Set("Content-Type", "application/json")
	if status.Healthy {
		w.WriteHeader(http.StatusOK)
	} else {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	_ = json.NewEncoder(w).Encode(status)
}
