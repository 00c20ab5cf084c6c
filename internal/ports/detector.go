// Package ports defines the inspection engine interfaces.
//
// SizeGuard and SignatureScanner are the two stages of the inspection
// pipeline. Both are total functions and never fail.
package ports

import "github.com/daisymeal/cyberdefense/internal/domain"

// SizeGuard is the structural first stage of the pipeline.
//
// Implementations:
//   - detection.SizeGuard: hard cutoff on the declared byte count
//
// Thread Safety: Check MUST be safe for concurrent calls.
type SizeGuard interface {
	// Check rejects a record on its declared size alone.
	//
	// Contract:
	//   - MUST be total over non-negative sizes
	//   - MUST NOT look at anything but the size
	Check(declaredSize int) domain.GuardResult
}

// SignatureScanner is the content stage of the pipeline.
//
// Implementations:
//   - detection.SignatureScanner: ordered signature table, first match wins
//
// Thread Safety: Scan MUST be safe for concurrent calls. The scanner owns an
// immutable table snapshot; replacing it MUST NOT disturb scans in flight.
type SignatureScanner interface {
	// Scan reports the first signature in table order that occurs anywhere
	// in the payload.
	//
	// Contract:
	//   - MUST return Clean for an empty payload
	//   - MUST respect declared table order when several signatures match
	Scan(payload string) domain.ScanResult

	// SignatureCount returns the number of signatures in the active table.
	SignatureCount() int
}
