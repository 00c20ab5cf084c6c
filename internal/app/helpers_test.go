package app

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/daisymeal/cyberdefense/internal/adapters/detection"
	"github.com/daisymeal/cyberdefense/internal/domain"
	"github.com/daisymeal/cyberdefense/internal/ports"
)

func newTestService(dispatcher *AlertDispatcher) *Service {
	inspector := NewInspector(detection.NewSizeGuard(0), detection.NewSignatureScanner(nil))
	return NewService(inspector, "GPU", domain.NewInspectionMetrics(), dispatcher)
}

type collectingSink struct {
	mu       sync.Mutex
	verdicts map[int]domain.Verdict
	panicOn  int
}

func newCollectingSink() *collectingSink {
	return &collectingSink{verdicts: make(map[int]domain.Verdict)}
}

func (s *collectingSink) Emit(rec ports.SourcedRecord, v domain.Verdict) error {
	if s.panicOn != 0 && rec.Line == s.panicOn {
		panic("sink exploded")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.verdicts[rec.Line] = v
	return nil
}

func (s *collectingSink) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.verdicts)
}

func (s *collectingSink) Get(line int) (domain.Verdict, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.verdicts[line]
	return v, ok
}

type mockAlerter struct {
	mu      sync.Mutex
	alerts  []*domain.Alert
	flushed atomic.Int64
	closed  atomic.Int64
}

func (m *mockAlerter) Send(ctx context.Context, alert *domain.Alert) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.alerts = append(m.alerts, alert)
	return nil
}

func (m *mockAlerter) Flush() error {
	m.flushed.Add(1)
	return nil
}

func (m *mockAlerter) Close() error {
	m.closed.Add(1)
	return nil
}

func (m *mockAlerter) Alerts() []*domain.Alert {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*domain.Alert, len(m.alerts))
	copy(out, m.alerts)
	return out
}

type sliceReader struct {
	records []ports.SourcedRecord
	stopped atomic.Bool
}

func (r *sliceReader) Start(ctx context.Context) (<-chan ports.SourcedRecord, <-chan error) {
	out := make(chan ports.SourcedRecord)
	errs := make(chan error)
	go func() {
		defer close(out)
		defer close(errs)
		for _, rec := range r.records {
			select {
			case out <- rec:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, errs
}

func (r *sliceReader) Stop() error {
	r.stopped.Store(true)
	return nil
}
