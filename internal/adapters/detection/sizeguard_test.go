package detection

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/daisymeal/cyberdefense/internal/domain"
)

func TestSizeGuard_Threshold(t *testing.T) {
	guard := NewSizeGuard(0)
	assert.Equal(t, DefaultMaxDeclaredSize, guard.MaxBytes())

	tests := []struct {
		size       int
		wantReject bool
	}{
		{0, false},
		{10, false},
		{4095, false},
		{4096, false},
		{4097, true},
		{5000, true},
		{math.MaxInt, true},
	}

	for _, tc := range tests {
		result := guard.Check(tc.size)
		assert.Equal(t, tc.wantReject, result.Rejected, "size %d", tc.size)
		if tc.wantReject {
			assert.Equal(t, domain.ThreatTypeAnomalousSize, result.Reason)
		} else {
			assert.Empty(t, result.Reason)
		}
	}
}

func TestSizeGuard_CustomLimit(t *testing.T) {
	guard := NewSizeGuard(100)

	assert.False(t, guard.Check(100).Rejected)
	assert.True(t, guard.Check(101).Rejected)
}

func TestSizeGuard_NegativeLimitFallsBack(t *testing.T) {
	guard := NewSizeGuard(-1)
	assert.Equal(t, DefaultMaxDeclaredSize, guard.MaxBytes())
}
