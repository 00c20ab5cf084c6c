package app

import (
	"context"
	"runtime"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/daisymeal/cyberdefense/internal/domain"
	"github.com/daisymeal/cyberdefense/internal/ports"
)

// Analyzer feeds records from a reader into a worker pool. In batch mode the
// reader closes its channel at end of file and Done fires; in follow mode it
// runs until the context ends.
type Analyzer struct {
	reader     ports.RecordReader
	workerPool *WorkerPool
	metrics    *domain.InspectionMetrics

	ctx     context.Context
	cancel  context.CancelFunc
	done    chan struct{}
	wg      sync.WaitGroup
	running bool
	mu      sync.RWMutex
	err     error

	lastRecords  int64
	lastRPSCheck time.Time
}

func NewAnalyzer(reader ports.RecordReader, workerPool *WorkerPool, metrics *domain.InspectionMetrics) *Analyzer {
	if metrics == nil {
		metrics = domain.NewInspectionMetrics()
	}
	return &Analyzer{
		reader:       reader,
		workerPool:   workerPool,
		metrics:      metrics,
		done:         make(chan struct{}),
		lastRPSCheck: time.Now(),
	}
}

func (a *Analyzer) Start(ctx context.Context) error {
	a.mu.Lock()
	if a.running {
		a.mu.Unlock()
		return nil
	}
	a.running = true
	a.mu.Unlock()

	a.ctx, a.cancel = context.WithCancel(ctx)

	a.workerPool.Start(a.ctx)

	recordChan, errChan := a.reader.Start(a.ctx)

	go func() {
		defer close(a.done)
		a.processRecords(recordChan, errChan)
	}()

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.updateMetrics()
	}()

	log.Info().Msg("Analyzer started")
	return nil
}

func (a *Analyzer) processRecords(recordChan <-chan ports.SourcedRecord, errChan <-chan error) {
	for {
		select {
		case <-a.ctx.Done():
			return
		case err, ok := <-errChan:
			if !ok {
				errChan = nil
				continue
			}
			a.readFailed(err)
		case rec, ok := <-recordChan:
			if !ok {
				a.drainErrors(errChan)
				log.Info().Msg("Record channel closed")
				return
			}
			if !a.workerPool.SubmitBlocking(a.ctx, rec) {
				log.Warn().Int("line", rec.Line).Msg("Failed to submit record to worker pool")
			}
		}
	}
}

// drainErrors collects errors the reader queued before closing its record
// channel, so a failed open is never lost to select ordering.
func (a *Analyzer) drainErrors(errChan <-chan error) {
	if errChan == nil {
		return
	}
	for {
		select {
		case <-a.ctx.Done():
			return
		case err, ok := <-errChan:
			if !ok {
				return
			}
			a.readFailed(err)
		}
	}
}

func (a *Analyzer) readFailed(err error) {
	log.Error().Err(err).Msg("Error reading records")
	a.mu.Lock()
	if a.err == nil {
		a.err = err
	}
	a.mu.Unlock()
}

// Err returns the first error the reader reported, if any.
func (a *Analyzer) Err() error {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.err
}

func (a *Analyzer) updateMetrics() {
	ticker := time.NewTicker(1 * time.Second)
	memTicker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	defer memTicker.Stop()

	for {
		select {
		case <-a.ctx.Done():
			return
		case <-memTicker.C:
			var m runtime.MemStats
			runtime.ReadMemStats(&m)
			a.metrics.SetMemoryUsage(float64(m.Alloc) / 1024 / 1024)
		case <-ticker.C:
			now := time.Now()
			elapsed := now.Sub(a.lastRPSCheck).Seconds()
			if elapsed >= 1.0 {
				current := a.metrics.TotalRecords()
				a.metrics.UpdateRPS(float64(current-a.lastRecords) / elapsed)
				a.lastRecords = current
				a.lastRPSCheck = now
			}
		}
	}
}

// Done is closed once the reader is exhausted or the analyzer is stopped.
func (a *Analyzer) Done() <-chan struct{} {
	return a.done
}

// Stop shuts down in pipeline order: reader first, then the pool drains
// what was already submitted.
func (a *Analyzer) Stop() {
	a.mu.Lock()
	if !a.running {
		a.mu.Unlock()
		return
	}
	a.running = false
	a.mu.Unlock()

	log.Info().Msg("Stopping analyzer gracefully...")

	if err := a.reader.Stop(); err != nil {
		log.Error().Err(err).Msg("Error stopping reader")
	}
	<-a.done

	a.workerPool.Stop()

	if a.cancel != nil {
		a.cancel()
	}
	a.wg.Wait()

	log.Info().
		Int64("records", a.metrics.TotalRecords()).
		Msg("Analyzer stopped")
}

func (a *Analyzer) Metrics() domain.MetricsSnapshot {
	return a.metrics.GetSnapshot()
}

func (a *Analyzer) IsRunning() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.running
}

// Run starts the analyzer and blocks until the reader is exhausted or ctx
// ends, then stops it. It returns the first reader error.
func (a *Analyzer) Run(ctx context.Context) error {
	if err := a.Start(ctx); err != nil {
		return err
	}

	select {
	case <-a.Done():
	case <-ctx.Done():
		log.Info().Msg("Received shutdown signal")
	}

	a.Stop()
	return a.Err()
}
