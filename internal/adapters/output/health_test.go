package output

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeInfo struct {
	hardware   string
	signatures int
}

func (f fakeInfo) Hardware() string    { return f.hardware }
func (f fakeInfo) SignatureCount() int { return f.signatures }

type fakeQueue struct {
	length, capacity int
}

func (f fakeQueue) QueueLength() int   { return f.length }
func (f fakeQueue) QueueCapacity() int { return f.capacity }

func TestHealthChecker_Status(t *testing.T) {
	tests := []struct {
		name    string
		info    InspectionInfo
		queue   QueueInfo
		healthy bool
		status  string
	}{
		{"healthy", fakeInfo{"GPU", 5}, fakeQueue{0, 100}, true, "HEALTHY"},
		{"no queue", fakeInfo{"NPU", 5}, nil, true, "HEALTHY"},
		{"degraded", fakeInfo{"GPU", 5}, fakeQueue{85, 100}, true, "DEGRADED"},
		{"saturated", fakeInfo{"GPU", 5}, fakeQueue{99, 100}, false, "SATURATED"},
		{"no signatures", fakeInfo{"GPU", 0}, nil, false, "NO_SIGNATURES"},
		{"offline", nil, nil, false, "OFFLINE"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			h := NewHealthChecker(tc.info, tc.queue, DefaultHealthCheckerConfig())
			status := h.Check(context.Background())
			assert.Equal(t, tc.healthy, status.Healthy)
			assert.Equal(t, tc.status, status.Status)
		})
	}
}

func TestHealthChecker_Caches(t *testing.T) {
	info := &mutableInfo{signatures: 5}
	h := NewHealthChecker(info, nil, HealthCheckerConfig{CheckInterval: time.Hour})

	assert.Equal(t, 5, h.Check(context.Background()).SignatureCount)
	info.signatures = 6
	assert.Equal(t, 5, h.Check(context.Background()).SignatureCount)
}

type mutableInfo struct {
	signatures int
}

func (m *mutableInfo) Hardware() string    { return "GPU" }
func (m *mutableInfo) SignatureCount() int { return m.signatures }

func TestHealthChecker_ServeHTTP(t *testing.T) {
	h := NewHealthChecker(fakeInfo{"NPU", 5}, nil, DefaultHealthCheckerConfig())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, true, body["healthy"])
	assert.Equal(t, "NPU", body["hardware"])
	assert.Equal(t, float64(5), body["signatures"])

	h = NewHealthChecker(nil, nil, DefaultHealthCheckerConfig())
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
