package app

import (
	"github.com/daisymeal/cyberdefense/internal/domain"
	"github.com/daisymeal/cyberdefense/internal/ports"
)

// Inspector runs the two-stage pipeline: size guard, then signature scan.
// Inspect is pure; it never logs and never fails, so it is safe to call from
// any number of goroutines.
type Inspector struct {
	guard   ports.SizeGuard
	scanner ports.SignatureScanner
}

func NewInspector(guard ports.SizeGuard, scanner ports.SignatureScanner) *Inspector {
	return &Inspector{
		guard:   guard,
		scanner: scanner,
	}
}

// Inspect returns the verdict for one record. A record the guard rejects is
// never scanned.
func (i *Inspector) Inspect(record domain.TrafficRecord) domain.Verdict {
	source := record.SourceAddress()

	if g := i.guard.Check(record.DeclaredSize()); g.Rejected {
		return domain.DropVerdict(source, g.Reason)
	}

	if s := i.scanner.Scan(record.Payload()); s.Matched {
		return domain.BlockVerdict(source, s.Signature)
	}

	return domain.AllowVerdict(source)
}

func (i *Inspector) SignatureCount() int {
	return i.scanner.SignatureCount()
}
