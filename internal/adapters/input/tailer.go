package input

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/nxadm/tail"
	"github.com/rs/zerolog/log"

	"github.com/daisymeal/cyberdefense/internal/ports"
)

// MaxLineLength bounds one JSON-lines record. Longer lines are skipped: a
// cut JSON object would not decode anyway.
const MaxLineLength = 1 << 20

type RecordTailerConfig struct {
	Path          string
	Follow        bool // keep reading as the file grows
	FromBeginning bool // only meaningful with Follow; batch mode always starts at 0
	BufferSize    int
}

// RecordTailer reads a JSON-lines file of request objects and emits one
// decoded record per line. Lines that do not decode are logged and skipped.
type RecordTailer struct {
	config   RecordTailerConfig
	tail     *tail.Tail
	mu       sync.Mutex
	running  bool
	stopChan chan struct{}
}

func NewRecordTailer(config RecordTailerConfig) *RecordTailer {
	if config.BufferSize <= 0 {
		config.BufferSize = 1000
	}
	return &RecordTailer{
		config:   config,
		stopChan: make(chan struct{}),
	}
}

func (t *RecordTailer) Start(ctx context.Context) (<-chan ports.SourcedRecord, <-chan error) {
	recordChan := make(chan ports.SourcedRecord, t.config.BufferSize)
	errChan := make(chan error, 10)

	t.mu.Lock()
	if t.running {
		t.mu.Unlock()
		close(recordChan)
		close(errChan)
		return recordChan, errChan
	}

	whence := io.SeekStart
	if t.config.Follow && !t.config.FromBeginning {
		whence = io.SeekEnd
	}

	tl, err := tail.TailFile(t.config.Path, tail.Config{
		Follow:    t.config.Follow,
		ReOpen:    t.config.Follow,
		MustExist: !t.config.Follow,
		Location:  &tail.SeekInfo{Offset: 0, Whence: whence},
		Logger:    tail.DiscardingLogger,
	})
	if err != nil {
		t.mu.Unlock()
		errChan <- fmt.Errorf("tail %s: %w", t.config.Path, err)
		close(recordChan)
		close(errChan)
		return recordChan, errChan
	}

	t.tail = tl
	t.running = true
	t.stopChan = make(chan struct{})
	stopChan := t.stopChan
	t.mu.Unlock()

	log.Info().
		Str("file", t.config.Path).
		Bool("follow", t.config.Follow).
		Msg("Started reading record file")

	go func() {
		defer close(recordChan)
		defer close(errChan)

		lineNo := 0
		for {
			select {
			case <-ctx.Done():
				return
			case <-stopChan:
				return
			case line, ok := <-tl.Lines:
				if !ok {
					log.Debug().Str("file", t.config.Path).Int("lines", lineNo).Msg("Record file exhausted")
					return
				}
				lineNo++
				if line.Err != nil {
					log.Warn().Err(line.Err).Int("line", lineNo).Msg("Error reading line")
					select {
					case errChan <- line.Err:
					default:
					}
					continue
				}
				if line.Text == "" {
					continue
				}
				if len(line.Text) > MaxLineLength {
					log.Warn().
						Int("line", lineNo).
						Int("size", len(line.Text)).
						Msg("Skipping oversized record line")
					continue
				}

				record, err := DecodeRecord([]byte(line.Text))
				if err != nil {
					log.Warn().Err(err).Int("line", lineNo).Msg("Skipping undecodable record line")
					continue
				}

				select {
				case recordChan <- ports.SourcedRecord{Record: record, Line: lineNo}:
				case <-ctx.Done():
					return
				case <-stopChan:
					return
				}
			}
		}
	}()

	return recordChan, errChan
}

func (t *RecordTailer) Stop() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.running {
		return nil
	}

	close(t.stopChan)
	t.running = false

	if t.tail != nil {
		err := t.tail.Stop()
		t.tail.Cleanup()
		return err
	}
	return nil
}

func (t *RecordTailer) IsRunning() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.running
}
