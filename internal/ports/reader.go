package ports

import (
	"context"

	"github.com/daisymeal/cyberdefense/internal/domain"
)

// SourcedRecord is a decoded record together with where it came from.
type SourcedRecord struct {
	Record domain.TrafficRecord
	Line   int
}

// RecordReader streams decoded records until the source is exhausted or the
// context ends. Both channels are closed when the reader is done.
type RecordReader interface {
	Start(ctx context.Context) (<-chan SourcedRecord, <-chan error)
	Stop() error
}

// VerdictSink receives the verdict for each record processed in batch or
// follow mode.
//
// Thread Safety: Emit is called from multiple workers.
type VerdictSink interface {
	Emit(record SourcedRecord, verdict domain.Verdict) error
}
