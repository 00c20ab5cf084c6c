package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daisymeal/cyberdefense/internal/adapters/detection"
	"github.com/daisymeal/cyberdefense/internal/adapters/output"
	"github.com/daisymeal/cyberdefense/internal/app"
	"github.com/daisymeal/cyberdefense/internal/domain"
)

type testEnv struct {
	server  *Server
	service *app.Service
	alerts  *output.MemoryAlerter
	sources *output.SourceTracker
	scanner *detection.SignatureScanner
	stop    func()
}

func newTestEnv(t *testing.T, maxBody int64) *testEnv {
	t.Helper()

	scanner := detection.NewSignatureScanner(nil)
	inspector := app.NewInspector(detection.NewSizeGuard(0), scanner)

	alerts := output.NewMemoryAlerter(10)
	dispatcher := app.NewAlertDispatcher(16, alerts)
	dispatcher.Start(context.Background())

	sources, err := output.NewSourceTracker(16)
	require.NoError(t, err)

	service := app.NewService(inspector, "GPU", domain.NewInspectionMetrics(), dispatcher)
	service.AddObserver(sources)

	server := NewServer(service, Options{
		MaxBodyBytes: maxBody,
		Alerts:       alerts,
		Sources:      sources,
		Signatures:   scanner,
		Health:       output.NewHealthChecker(service, dispatcher, output.DefaultHealthCheckerConfig()),
	})

	return &testEnv{
		server:  server,
		service: service,
		alerts:  alerts,
		sources: sources,
		scanner: scanner,
		stop:    func() { _ = dispatcher.Stop() },
	}
}

func (e *testEnv) do(method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestAnalyze_Scenarios(t *testing.T) {
	env := newTestEnv(t, 0)
	defer env.stop()

	tests := []struct {
		name     string
		body     string
		source   string
		detected bool
		threat   string
		action   string
	}{
		{
			name:     "sql injection",
			body:     `{"ip": "10.0.0.5", "payload": "' OR 1=1 --", "size": 50}`,
			source:   "10.0.0.5",
			detected: true,
			threat:   "SQL_INJECTION",
			action:   "BLOCK_AND_ALERT",
		},
		{
			name:     "clean",
			body:     `{"ip": "10.0.0.9", "payload": "hello world", "size": 11}`,
			source:   "10.0.0.9",
			detected: false,
			threat:   "None",
			action:   "ALLOW",
		},
		{
			name:     "oversized",
			body:     `{"ip": "10.0.0.1", "size": 5000}`,
			source:   "10.0.0.1",
			detected: true,
			threat:   "Anomalous Size (Buffer Overflow Attempt)",
			action:   "DROP",
		},
		{
			name:     "defaults",
			body:     `{}`,
			source:   "unknown",
			detected: false,
			threat:   "None",
			action:   "ALLOW",
		},
		{
			name:     "unparsable size defaults to zero",
			body:     `{"ip": "10.0.0.2", "payload": "<script>x</script>", "size": "big"}`,
			source:   "10.0.0.2",
			detected: true,
			threat:   "XSS_ATTACK",
			action:   "BLOCK_AND_ALERT",
		},
		{
			name:     "test virus outranks sql",
			body:     `{"ip": "10.0.0.3", "payload": "UNION SELECT TEST_VIRUS_ACTIVE_BLOCK_THIS_IMMEDIATELY", "size": 60}`,
			source:   "10.0.0.3",
			detected: true,
			threat:   "TEST_VIRUS_SIGNATURE",
			action:   "BLOCK_AND_ALERT",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := env.do(http.MethodPost, "/analyze", tc.body)
			require.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

			body := decode(t, rec)
			assert.Equal(t, tc.source, body["source_ip"])
			assert.Equal(t, tc.detected, body["threat_detected"])
			assert.Equal(t, tc.threat, body["threat_type"])
			assert.Equal(t, tc.action, body["action"])
			assert.Equal(t, "GPU", body["hardware"])
			assert.Len(t, body, 5)
		})
	}
}

func TestAnalyze_InvalidJSON(t *testing.T) {
	env := newTestEnv(t, 0)
	defer env.stop()

	for _, body := range []string{`{"ip": `, `not json`, ``, `null`, `[1,2]`, `"x"`} {
		rec := env.do(http.MethodPost, "/analyze", body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
		assert.JSONEq(t, `{"error": "Invalid JSON format"}`, rec.Body.String())
	}

	assert.Zero(t, env.service.Metrics().TotalRecords(), "core must not run on invalid bodies")
}

func TestAnalyze_BodyTooLarge(t *testing.T) {
	env := newTestEnv(t, 64)
	defer env.stop()

	body := `{"ip": "10.0.0.1", "payload": "` + strings.Repeat("A", 100) + `"}`
	rec := env.do(http.MethodPost, "/analyze", body)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.JSONEq(t, `{"error": "Request body too large"}`, rec.Body.String())

	// Unknown length goes through the reader limit instead.
	req := httptest.NewRequest(http.MethodPost, "/analyze", strings.NewReader(body))
	req.ContentLength = -1
	rr := httptest.NewRecorder()
	env.server.Handler().ServeHTTP(rr, req)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rr.Code)
}

func TestAnalyze_MethodNotAllowed(t *testing.T) {
	env := newTestEnv(t, 0)
	defer env.stop()

	rec := env.do(http.MethodGet, "/analyze", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestAnalyze_RequestIDHeaderFlowsToAlert(t *testing.T) {
	env := newTestEnv(t, 0)

	req := httptest.NewRequest(http.MethodPost, "/analyze", strings.NewReader(`{"ip": "10.0.0.5", "payload": "DROP TABLE users"}`))
	req.Header.Set("X-Request-Id", "trace-123")
	rec := httptest.NewRecorder()
	env.server.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	env.stop()

	alerts := env.alerts.Query(output.AlertQuery{Limit: 1})
	require.Len(t, alerts, 1)
	assert.Equal(t, "trace-123", alerts[0].Metadata["request_id"])
	assert.Equal(t, domain.ThreatTypeSQLInjection, alerts[0].ThreatType)
}

func TestReadEndpoints(t *testing.T) {
	env := newTestEnv(t, 0)

	env.do(http.MethodPost, "/analyze", `{"ip": "10.0.0.5", "payload": "' OR 1=1 --", "size": 50}`)
	env.do(http.MethodPost, "/analyze", `{"ip": "10.0.0.5", "payload": "<script>", "size": 8}`)
	env.do(http.MethodPost, "/analyze", `{"ip": "10.0.0.9", "payload": "hello", "size": 5}`)
	env.stop()

	t.Run("alerts", func(t *testing.T) {
		rec := env.do(http.MethodGet, "/alerts?limit=1", "")
		require.Equal(t, http.StatusOK, rec.Code)
		var alerts []domain.Alert
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &alerts))
		require.Len(t, alerts, 1)
		assert.Equal(t, domain.ThreatTypeXSS, alerts[0].ThreatType)
	})

	t.Run("alerts filtered", func(t *testing.T) {
		rec := env.do(http.MethodGet, "/alerts?type=SQL_INJECTION&source=10.0.0.5&level=critical", "")
		require.Equal(t, http.StatusOK, rec.Code)
		var alerts []domain.Alert
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &alerts))
		require.Len(t, alerts, 1)
		assert.Equal(t, domain.ThreatTypeSQLInjection, alerts[0].ThreatType)

		rec = env.do(http.MethodGet, "/alerts?source=10.0.0.9", "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, "[]", rec.Body.String())

		rec = env.do(http.MethodGet, "/alerts?level=loud", "")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("sources", func(t *testing.T) {
		rec := env.do(http.MethodGet, "/sources", "")
		require.Equal(t, http.StatusOK, rec.Code)
		var sources []output.SourceStats
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sources))
		require.Len(t, sources, 2)
		assert.Equal(t, "10.0.0.5", sources[0].SourceIP)
		assert.Equal(t, int64(2), sources[0].Blocked)
	})

	t.Run("signatures", func(t *testing.T) {
		rec := env.do(http.MethodGet, "/signatures", "")
		require.Equal(t, http.StatusOK, rec.Code)
		var defs []detection.SignatureDefinition
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &defs))
		require.Len(t, defs, 5)
		assert.Equal(t, "TEST_VIRUS_SIGNATURE", defs[0].Name)
		assert.Equal(t, "literal", defs[0].Kind)
		assert.Equal(t, "REVERSE_SHELL", defs[4].Name)
	})

	t.Run("healthz", func(t *testing.T) {
		rec := env.do(http.MethodGet, "/healthz", "")
		require.Equal(t, http.StatusOK, rec.Code)
		body := decode(t, rec)
		assert.Equal(t, "HEALTHY", body["status"])
		assert.Equal(t, "GPU", body["hardware"])
	})

	t.Run("bad limit", func(t *testing.T) {
		rec := env.do(http.MethodGet, "/alerts?limit=zero", "")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestDefaultHealthRoute(t *testing.T) {
	scanner := detection.NewSignatureScanner(nil)
	service := app.NewService(app.NewInspector(detection.NewSizeGuard(0), scanner), "NPU", nil, nil)
	server := NewServer(service, Options{})

	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "NPU")

	rec = httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/alerts", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
