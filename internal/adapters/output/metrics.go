package output

import (
	"context"
	"errors"
	"net"
	"net/http"
	"runtime"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/daisymeal/cyberdefense/internal/domain"
)

// PrometheusMetrics exports inspection metrics on its own registry, so
// several instances (tests, embedded use) never collide on the default one.
type PrometheusMetrics struct {
	registry *prometheus.Registry

	recordsInspected *prometheus.CounterVec
	threatsDetected  *prometheus.CounterVec
	alertsByLevel    *prometheus.CounterVec
	inspectionTime   prometheus.Histogram
	signaturesLoaded prometheus.Gauge
	activeWorkers    prometheus.GaugeFunc
	memoryUsage      prometheus.GaugeFunc

	server *http.Server
	mu     sync.Mutex
}

type MetricsConfig struct {
	Port string
	Path string
}

func DefaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		Port: ":9090",
		Path: "/metrics",
	}
}

func NewPrometheusMetrics(namespace string, internalMetrics *domain.InspectionMetrics) *PrometheusMetrics {
	if namespace == "" {
		namespace = "cyberdefense"
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	m := &PrometheusMetrics{registry: reg}

	m.recordsInspected = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "records_inspected_total",
		Help:      "Total number of records inspected, by resulting action",
	}, []string{"action"})

	m.threatsDetected = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "threats_detected_total",
		Help:      "Total number of threats detected by type",
	}, []string{"type"})

	m.alertsByLevel = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "alerts_by_level_total",
		Help:      "Total alerts dispatched by severity level",
	}, []string{"level"})

	m.inspectionTime = factory.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "inspection_duration_seconds",
		Help:      "Time spent inspecting each record",
		Buckets:   prometheus.ExponentialBuckets(0.000001, 4, 10),
	})

	m.signaturesLoaded = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "signatures_loaded",
		Help:      "Number of signatures in the active table",
	})

	m.activeWorkers = factory.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "active_workers",
		Help:      "Number of active worker goroutines",
	}, func() float64 {
		if internalMetrics != nil {
			return float64(internalMetrics.GetSnapshot().ActiveWorkers)
		}
		return 0
	})

	m.memoryUsage = factory.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "memory_bytes",
		Help:      "Current memory usage in bytes",
	}, func() float64 {
		var m runtime.MemStats
		runtime.ReadMemStats(&m)
		return float64(m.Alloc)
	})

	return m
}

// ObserveVerdict implements ports.VerdictObserver.
func (m *PrometheusMetrics) ObserveVerdict(verdict domain.Verdict, elapsed time.Duration) {
	m.recordsInspected.WithLabelValues(string(verdict.Action)).Inc()
	m.inspectionTime.Observe(elapsed.Seconds())
	if verdict.ThreatDetected {
		m.threatsDetected.WithLabelValues(string(verdict.ThreatType)).Inc()
	}
}

// OnAlert implements ports.AlertSubscriber.
func (m *PrometheusMetrics) OnAlert(alert *domain.Alert) {
	m.alertsByLevel.WithLabelValues(string(alert.Level)).Inc()
}

func (m *PrometheusMetrics) SetSignatureCount(n int) {
	m.signaturesLoaded.Set(float64(n))
}

func (m *PrometheusMetrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *PrometheusMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// StartServer binds the metrics listener and serves it in the background.
// Bind errors are returned immediately.
func (m *PrometheusMetrics) StartServer(config MetricsConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if config.Path == "" {
		config.Path = "/metrics"
	}

	mux := http.NewServeMux()
	mux.Handle(config.Path, m.Handler())

	ln, err := net.Listen("tcp", config.Port)
	if err != nil {
		return err
	}

	m.server = &http.Server{
		Addr:              config.Port,
		Handler:           mux,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
	}

	srv := m.server
	go func() {
		log.Info().Str("addr", ln.Addr().String()).Str("path", config.Path).Msg("Starting Prometheus metrics server")
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("Metrics server error")
		}
	}()

	return nil
}

func (m *PrometheusMetrics) StopServer(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.server != nil {
		return m.server.Shutdown(ctx)
	}
	return nil
}
