package app

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/daisymeal/cyberdefense/internal/domain"
	"github.com/daisymeal/cyberdefense/internal/ports"
	"github.com/daisymeal/cyberdefense/pkg/sanitize"
)

type requestIDKey struct{}

// WithRequestID tags ctx with the id used in log lines and alert metadata.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// Service wraps the Inspector with everything that happens around a
// verdict: logging, metrics, observers and alert dispatch. The HTTP handler
// and the worker pool both go through Analyze.
type Service struct {
	inspector  *Inspector
	hardware   string
	metrics    *domain.InspectionMetrics
	dispatcher *AlertDispatcher

	observers []ports.VerdictObserver
	mu        sync.RWMutex
}

// NewService builds a service. dispatcher may be nil, in which case threat
// verdicts are logged and counted but raise no alerts.
func NewService(inspector *Inspector, hardware string, metrics *domain.InspectionMetrics, dispatcher *AlertDispatcher) *Service {
	if metrics == nil {
		metrics = domain.NewInspectionMetrics()
	}
	return &Service{
		inspector:  inspector,
		hardware:   hardware,
		metrics:    metrics,
		dispatcher: dispatcher,
	}
}

func (s *Service) AddObserver(o ports.VerdictObserver) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observers = append(s.observers, o)
}

// Analyze inspects one record and performs the side effects for its verdict.
func (s *Service) Analyze(ctx context.Context, record domain.TrafficRecord) domain.Verdict {
	requestID := RequestID(ctx)

	log.Info().
		Str("source_ip", record.SourceAddress()).
		Int("size", record.DeclaredSize()).
		Str("request_id", requestID).
		Msg("Analyzing packet")

	start := time.Now()
	verdict := s.inspector.Inspect(record)
	elapsed := time.Since(start)

	switch verdict.Action {
	case domain.ActionDrop:
		log.Warn().
			Str("source_ip", verdict.SourceAddress).
			Int("size", record.DeclaredSize()).
			Str("request_id", requestID).
			Msg("Blocking oversized packet")
	case domain.ActionBlockAndAlert:
		log.Error().
			Str("severity", string(domain.AlertLevelCritical)).
			Str("source_ip", verdict.SourceAddress).
			Str("threat_type", string(verdict.ThreatType)).
			Str("excerpt", sanitize.Excerpt(record.Payload(), sanitize.DefaultMaxLength)).
			Str("request_id", requestID).
			Msg("Threat detected")
	default:
		log.Info().
			Str("source_ip", verdict.SourceAddress).
			Str("request_id", requestID).
			Msg("Packet clean")
	}

	s.metrics.RecordVerdict(verdict)

	s.mu.RLock()
	for _, o := range s.observers {
		o.ObserveVerdict(verdict, elapsed)
	}
	s.mu.RUnlock()

	if verdict.ThreatDetected && s.dispatcher != nil {
		alert := domain.NewAlert(record, verdict)
		if requestID != "" {
			alert.AddMetadata("request_id", requestID)
		}
		alert.AddMetadata("hardware", s.hardware)
		if s.dispatcher.Publish(alert) {
			s.metrics.IncrementAlerts()
		}
	}

	return verdict
}

// Hardware is the compute backend reported alongside every verdict.
func (s *Service) Hardware() string {
	return s.hardware
}

func (s *Service) SignatureCount() int {
	return s.inspector.SignatureCount()
}

func (s *Service) Metrics() *domain.InspectionMetrics {
	return s.metrics
}
