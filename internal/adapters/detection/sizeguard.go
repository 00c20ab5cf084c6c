package detection

import "github.com/daisymeal/cyberdefense/internal/domain"

// DefaultMaxDeclaredSize is the largest declared size, in bytes, that passes
// the size guard.
const DefaultMaxDeclaredSize = 4096

// SizeGuard rejects records whose declared size is larger than maxBytes. It
// is a hard cutoff with no tolerance band.
type SizeGuard struct {
	maxBytes int
}

// NewSizeGuard returns a guard with the given limit. A non-positive limit
// selects DefaultMaxDeclaredSize.
func NewSizeGuard(maxBytes int) *SizeGuard {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxDeclaredSize
	}
	return &SizeGuard{maxBytes: maxBytes}
}

func (g *SizeGuard) Check(declaredSize int) domain.GuardResult {
	if declaredSize > g.maxBytes {
		return domain.GuardReject(domain.ThreatTypeAnomalousSize)
	}
	return domain.GuardPass()
}

func (g *SizeGuard) MaxBytes() int {
	return g.maxBytes
}
