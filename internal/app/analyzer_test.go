package app

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daisymeal/cyberdefense/internal/adapters/input"
	"github.com/daisymeal/cyberdefense/internal/ports"
)

func TestAnalyzer_RunBatch(t *testing.T) {
	reader := &sliceReader{records: []ports.SourcedRecord{
		record(1, "10.0.0.5", "' OR 1=1 --", 50),
		record(2, "10.0.0.9", "hello world", 11),
		record(3, "10.0.0.1", "", 5000),
		record(4, "10.0.0.7", "<script>alert(1)</script>", 30),
	}}

	svc := newTestService(nil)
	sink := newCollectingSink()
	pool := NewWorkerPool(WorkerPoolConfig{WorkerCount: 2, BufferSize: 10}, svc, sink, svc.Metrics())
	analyzer := NewAnalyzer(reader, pool, svc.Metrics())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	require.NoError(t, analyzer.Run(ctx))

	assert.Equal(t, 4, sink.Len())
	assert.True(t, reader.stopped.Load())
	assert.False(t, analyzer.IsRunning())

	snap := analyzer.Metrics()
	assert.Equal(t, int64(4), snap.TotalRecords)
	assert.Equal(t, int64(2), snap.BlockedRecords)
	assert.Equal(t, int64(1), snap.DroppedRecords)
	assert.Equal(t, int64(1), snap.AllowedRecords)
}

func TestAnalyzer_StopBeforeExhausted(t *testing.T) {
	reader := &blockingReader{}
	svc := newTestService(nil)
	pool := NewWorkerPool(DefaultWorkerPoolConfig(), svc, nil, svc.Metrics())
	analyzer := NewAnalyzer(reader, pool, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- analyzer.Run(ctx) }()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("analyzer did not stop")
	}
	assert.False(t, pool.IsRunning())
}

func TestAnalyzer_MissingFileFailsRun(t *testing.T) {
	tailer := input.NewRecordTailer(input.RecordTailerConfig{
		Path: filepath.Join(t.TempDir(), "records.jsonl"),
	})
	svc := newTestService(nil)
	pool := NewWorkerPool(DefaultWorkerPoolConfig(), svc, nil, svc.Metrics())
	analyzer := NewAnalyzer(tailer, pool, svc.Metrics())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := analyzer.Run(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "records.jsonl")
	assert.Equal(t, err, analyzer.Err())
	assert.Equal(t, int64(0), analyzer.Metrics().TotalRecords)
}

func TestAnalyzer_ReaderErrorSurvivesClosedRecords(t *testing.T) {
	svc := newTestService(nil)
	for i := 0; i < 20; i++ {
		reader := &failingReader{err: errors.New("open failed")}
		pool := NewWorkerPool(WorkerPoolConfig{WorkerCount: 1, BufferSize: 1}, svc, nil, svc.Metrics())
		analyzer := NewAnalyzer(reader, pool, nil)

		err := analyzer.Run(context.Background())
		require.Error(t, err, "run %d", i)
		assert.Equal(t, "open failed", err.Error())
	}
}

// failingReader queues one error and closes both channels before returning,
// the way a reader that cannot open its source behaves.
type failingReader struct {
	err error
}

func (r *failingReader) Start(context.Context) (<-chan ports.SourcedRecord, <-chan error) {
	out := make(chan ports.SourcedRecord)
	errs := make(chan error, 1)
	errs <- r.err
	close(out)
	close(errs)
	return out, errs
}

func (r *failingReader) Stop() error { return nil }

// blockingReader never produces anything until stopped.
type blockingReader struct {
	stop chan struct{}
}

func (r *blockingReader) Start(ctx context.Context) (<-chan ports.SourcedRecord, <-chan error) {
	r.stop = make(chan struct{})
	out := make(chan ports.SourcedRecord)
	errs := make(chan error)
	go func() {
		defer close(out)
		defer close(errs)
		select {
		case <-ctx.Done():
		case <-r.stop:
		}
	}()
	return out, errs
}

func (r *blockingReader) Stop() error {
	select {
	case <-r.stop:
	default:
		close(r.stop)
	}
	return nil
}
