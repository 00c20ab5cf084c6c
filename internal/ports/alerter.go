// Package ports defines the primary and secondary port interfaces following
// hexagonal architecture (ports and adapters pattern).
//
// This package contains interfaces that define the contract between the core
// inspection logic and external infrastructure (record sources, alert sinks,
// metrics).
package ports

import (
	"context"
	"time"

	"github.com/daisymeal/cyberdefense/internal/domain"
)

// Alerter dispatches security alerts to an output.
//
// Implementations:
//   - JSONAlerter: JSON lines on stdout
//   - MemoryAlerter: In-memory ring buffer behind GET /alerts
//   - NATSAlerter: Publishes alerts to a NATS subject
//
// Thread Safety: Implementations MUST be safe for concurrent Send() calls.
type Alerter interface {
	// Send dispatches an alert to the output destination.
	//
	// Returns:
	//   - nil on success
	//   - Error if dispatch fails (caller logs and moves on)
	Send(ctx context.Context, alert *domain.Alert) error

	// Flush forces pending alerts out. Called during graceful shutdown.
	Flush() error

	// Close releases resources and flushes remaining alerts.
	Close() error
}

// AlertSubscriber is notified synchronously for each dispatched alert.
type AlertSubscriber interface {
	OnAlert(alert *domain.Alert)
}

// VerdictObserver is notified once per inspected record, after the verdict
// is final. Used for metrics and per-source statistics.
//
// Thread Safety: Implementations MUST be safe for concurrent calls.
type VerdictObserver interface {
	ObserveVerdict(verdict domain.Verdict, elapsed time.Duration)
}
