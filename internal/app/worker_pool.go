// Package app wires the inspection pipeline to its callers.
//
// The WorkerPool manages a fixed set of worker goroutines that run decoded
// records through the Service in parallel and hand each verdict to a sink.
// Workers recover from panics and restart, so one poisoned record cannot
// stop a batch.
package app

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/daisymeal/cyberdefense/internal/domain"
	"github.com/daisymeal/cyberdefense/internal/ports"
)

// WorkerPool processes sourced records with a fixed number of workers.
//
// Features:
//   - Fixed worker count for predictable resource usage
//   - Backpressure with configurable timeout on Submit
//   - Automatic worker restart on panic
//   - Stop drains records already queued
//
// Thread Safety: All public methods are safe for concurrent access.
type WorkerPool struct {
	workerCount int                       // Number of worker goroutines
	inputChan   chan ports.SourcedRecord  // Buffered input channel
	service     *Service                  // Runs the pipeline for each record
	sink        ports.VerdictSink         // Receives every verdict (may be nil)
	metrics     *domain.InspectionMetrics // Runtime metrics collector
	bufferSize  int                       // Channel buffer size

	submitTimeout time.Duration // Max wait for channel space

	processed  atomic.Int64 // Records that reached a verdict
	panics     atomic.Int64 // Recovered worker panics
	sinkErrors atomic.Int64 // Failed sink emits

	wg       sync.WaitGroup // Tracks worker goroutines
	stopOnce sync.Once      // Ensures single shutdown
	stopChan chan struct{}  // Unblocks pending submitters on shutdown
	running  bool           // Running state
	mu       sync.RWMutex   // Protects running state and input close
}

// WorkerPoolConfig defines worker pool configuration options.
type WorkerPoolConfig struct {
	WorkerCount   int           // Number of worker goroutines (default: 8)
	BufferSize    int           // Input channel buffer (default: 1000)
	SubmitTimeout time.Duration // Backpressure timeout (default: 100ms)
}

func DefaultWorkerPoolConfig() WorkerPoolConfig {
	return WorkerPoolConfig{
		WorkerCount:   8,
		BufferSize:    1000,
		SubmitTimeout: 100 * time.Millisecond,
	}
}

// NewWorkerPool creates a configured worker pool.
//
// Parameters:
//   - config: Pool configuration options
//   - service: Pipeline every record goes through
//   - sink: Verdict destination, nil to discard
//   - metrics: Runtime metrics collector, may be nil
func NewWorkerPool(config WorkerPoolConfig, service *Service, sink ports.VerdictSink, metrics *domain.InspectionMetrics) *WorkerPool {
	if config.WorkerCount <= 0 {
		config.WorkerCount = 4
	}
	if config.BufferSize <= 0 {
		config.BufferSize = 1000
	}
	if config.SubmitTimeout <= 0 {
		config.SubmitTimeout = 100 * time.Millisecond
	}

	return &WorkerPool{
		workerCount:   config.WorkerCount,
		inputChan:     make(chan ports.SourcedRecord, config.BufferSize),
		service:       service,
		sink:          sink,
		metrics:       metrics,
		bufferSize:    config.BufferSize,
		submitTimeout: config.SubmitTimeout,
		stopChan:      make(chan struct{}),
	}
}

// Start launches worker goroutines. Idempotent.
func (wp *WorkerPool) Start(ctx context.Context) {
	wp.mu.Lock()
	if wp.running {
		wp.mu.Unlock()
		return
	}
	wp.running = true
	wp.mu.Unlock()

	for i := 0; i < wp.workerCount; i++ {
		wp.wg.Add(1)
		go wp.worker(ctx, i)
	}

	if wp.metrics != nil {
		wp.metrics.SetActiveWorkers(wp.workerCount)
	}

	log.Info().
		Int("workers", wp.workerCount).
		Int("buffer", wp.bufferSize).
		Msg("Worker pool started")
}

// worker is the processing loop for a single worker goroutine. It exits
// when the input channel is closed and drained, or when ctx ends.
func (wp *WorkerPool) worker(ctx context.Context, id int) {
	defer wp.wg.Done()

	var current *ports.SourcedRecord

	defer func() {
		if r := recover(); r != nil {
			wp.panics.Add(1)
			ev := log.Error().
				Interface("panic", r).
				Int("worker_id", id)
			if current != nil {
				ev = ev.Int("line", current.Line).Str("source_ip", current.Record.SourceAddress())
			}
			ev.Msg("Worker panic recovered")

			wp.wg.Add(1)
			go wp.worker(ctx, id)
		}
	}()

	log.Debug().Int("worker_id", id).Msg("Worker started")

	for {
		select {
		case <-ctx.Done():
			log.Debug().Int("worker_id", id).Msg("Worker stopped (context cancelled)")
			return
		case rec, ok := <-wp.inputChan:
			if !ok {
				log.Debug().Int("worker_id", id).Msg("Worker stopped (input channel closed)")
				return
			}

			current = &rec
			wp.process(ctx, rec)
			current = nil
		}
	}
}

func (wp *WorkerPool) process(ctx context.Context, rec ports.SourcedRecord) {
	if rec.Line > 0 {
		ctx = WithRequestID(ctx, fmt.Sprintf("line-%d", rec.Line))
	}

	verdict := wp.service.Analyze(ctx, rec.Record)
	wp.processed.Add(1)

	if wp.sink == nil {
		return
	}
	if err := wp.sink.Emit(rec, verdict); err != nil {
		wp.sinkErrors.Add(1)
		log.Error().Err(err).Int("line", rec.Line).Msg("Failed to emit verdict")
	}
}

// Submit queues a record, waiting at most the submit timeout for space.
//
// Returns:
//   - true if queued
//   - false if the pool is not running or the queue stayed full
func (wp *WorkerPool) Submit(rec ports.SourcedRecord) bool {
	wp.mu.RLock()
	defer wp.mu.RUnlock()

	if !wp.running {
		return false
	}

	// Fast path
	select {
	case wp.inputChan <- rec:
		return true
	default:
	}

	timer := time.NewTimer(wp.submitTimeout)
	defer timer.Stop()
	select {
	case wp.inputChan <- rec:
		return true
	case <-timer.C:
		return false
	case <-wp.stopChan:
		return false
	}
}

// SubmitBlocking blocks until the record is queued, ctx ends, or the pool
// stops.
func (wp *WorkerPool) SubmitBlocking(ctx context.Context, rec ports.SourcedRecord) bool {
	wp.mu.RLock()
	defer wp.mu.RUnlock()

	if !wp.running {
		return false
	}

	select {
	case wp.inputChan <- rec:
		return true
	case <-ctx.Done():
		return false
	case <-wp.stopChan:
		return false
	}
}

// Stop performs graceful shutdown: pending submitters are released, the
// input is closed and workers drain what is already queued. Idempotent.
func (wp *WorkerPool) Stop() {
	wp.stopOnce.Do(func() {
		close(wp.stopChan)

		wp.mu.Lock()
		wp.running = false
		close(wp.inputChan)
		wp.mu.Unlock()

		wp.wg.Wait()

		if wp.metrics != nil {
			wp.metrics.SetActiveWorkers(0)
		}

		log.Info().
			Int64("processed", wp.processed.Load()).
			Int64("panics", wp.panics.Load()).
			Int64("sink_errors", wp.sinkErrors.Load()).
			Msg("Worker pool stopped")
	})
}

func (wp *WorkerPool) IsRunning() bool {
	wp.mu.RLock()
	defer wp.mu.RUnlock()
	return wp.running
}

func (wp *WorkerPool) Processed() int64 {
	return wp.processed.Load()
}

func (wp *WorkerPool) Panics() int64 {
	return wp.panics.Load()
}

// QueueLength returns current records waiting in the input channel.
func (wp *WorkerPool) QueueLength() int {
	return len(wp.inputChan)
}

func (wp *WorkerPool) QueueCapacity() int {
	return wp.bufferSize
}

// QueueUtilization returns percentage of input channel capacity in use.
func (wp *WorkerPool) QueueUtilization() float64 {
	if wp.bufferSize == 0 {
		return 0
	}
	return float64(len(wp.inputChan)) / float64(wp.bufferSize) * 100
}
