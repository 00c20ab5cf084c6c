// Package api is the HTTP front of the inspection service.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"github.com/daisymeal/cyberdefense/internal/adapters/detection"
	"github.com/daisymeal/cyberdefense/internal/adapters/input"
	"github.com/daisymeal/cyberdefense/internal/adapters/output"
	"github.com/daisymeal/cyberdefense/internal/app"
	"github.com/daisymeal/cyberdefense/internal/domain"
)

const (
	DefaultMaxBodyBytes = 1 << 20
	defaultListLimit    = 50
	maxListLimit        = 1000
)

// Analyzer runs one record through the pipeline. *app.Service implements it.
type Analyzer interface {
	Analyze(ctx context.Context, record domain.TrafficRecord) domain.Verdict
	Hardware() string
}

type AlertStore interface {
	Query(q output.AlertQuery) []*domain.Alert
}

type SourceStore interface {
	Top(n int) []output.SourceStats
}

type SignatureSource interface {
	Table() *detection.SignatureTable
}

// Options wires the read-only endpoints. Nil members disable their route.
type Options struct {
	MaxBodyBytes int64
	Alerts       AlertStore
	Sources      SourceStore
	Signatures   SignatureSource
	Health       http.Handler
}

type Server struct {
	r        *chi.Mux
	analyzer Analyzer
	opts     Options
}

type analyzeResponse struct {
	domain.Verdict
	Hardware string `json:"hardware"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func NewServer(analyzer Analyzer, opts Options) *Server {
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = DefaultMaxBodyBytes
	}

	s := &Server{r: chi.NewRouter(), analyzer: analyzer, opts: opts}

	s.r.Use(middleware.RequestID)
	s.r.Use(middleware.RealIP)
	s.r.Use(accessLog)
	s.r.Use(middleware.Recoverer)

	s.routes()
	return s
}

func (s *Server) routes() {
	s.r.Post("/analyze", s.postAnalyze)

	if s.opts.Health != nil {
		s.r.Method(http.MethodGet, "/healthz", s.opts.Health)
	} else {
		s.r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]string{"status": "HEALTHY", "hardware": s.analyzer.Hardware()})
		})
	}
	if s.opts.Alerts != nil {
		s.r.Get("/alerts", s.getAlerts)
	}
	if s.opts.Sources != nil {
		s.r.Get("/sources", s.getSources)
	}
	if s.opts.Signatures != nil {
		s.r.Get("/signatures", s.getSignatures)
	}
}

func (s *Server) Handler() http.Handler { return s.r }

func (s *Server) postAnalyze(w http.ResponseWriter, r *http.Request) {
	data, err := readBody(w, r, s.opts.MaxBodyBytes)
	if err != nil {
		if errors.Is(err, input.ErrBodyTooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "Request body too large")
			return
		}
		writeError(w, http.StatusBadRequest, "Invalid JSON format")
		return
	}

	record, err := input.DecodeRecord(data)
	if err != nil {
		log.Debug().Err(err).Str("request_id", middleware.GetReqID(r.Context())).Msg("Rejected request body")
		writeError(w, http.StatusBadRequest, "Invalid JSON format")
		return
	}

	ctx := app.WithRequestID(r.Context(), middleware.GetReqID(r.Context()))
	verdict := s.analyzer.Analyze(ctx, record)

	writeJSON(w, http.StatusOK, analyzeResponse{
		Verdict:  verdict,
		Hardware: s.analyzer.Hardware(),
	})
}

// getAlerts serves GET /alerts?limit=&type=&source=&level=. level is a
// minimum: level=WARNING returns WARNING and CRITICAL alerts.
func (s *Server) getAlerts(w http.ResponseWriter, r *http.Request) {
	limit, ok := parseLimit(w, r)
	if !ok {
		return
	}

	params := r.URL.Query()
	q := output.AlertQuery{
		Limit:      limit,
		ThreatType: domain.ThreatType(params.Get("type")),
		Source:     params.Get("source"),
		MinLevel:   domain.AlertLevel(strings.ToUpper(params.Get("level"))),
	}
	switch q.MinLevel {
	case "", domain.AlertLevelInfo, domain.AlertLevelWarning, domain.AlertLevelCritical:
	default:
		writeError(w, http.StatusBadRequest, "Invalid level")
		return
	}

	writeJSON(w, http.StatusOK, s.opts.Alerts.Query(q))
}

func (s *Server) getSources(w http.ResponseWriter, r *http.Request) {
	limit, ok := parseLimit(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, s.opts.Sources.Top(limit))
}

func (s *Server) getSignatures(w http.ResponseWriter, r *http.Request) {
	sigs := s.opts.Signatures.Table().Signatures()
	defs := make([]detection.SignatureDefinition, len(sigs))
	for i, sig := range sigs {
		defs[i] = sig.Definition()
	}
	writeJSON(w, http.StatusOK, defs)
}

// readBody reads the whole request body, mapping an exceeded limit to
// input.ErrBodyTooLarge.
func readBody(w http.ResponseWriter, r *http.Request, limit int64) ([]byte, error) {
	if r.ContentLength > limit {
		return nil, input.ErrBodyTooLarge
	}
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, limit))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, input.ErrBodyTooLarge
		}
		return nil, err
	}
	return data, nil
}

func parseLimit(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return defaultListLimit, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		writeError(w, http.StatusBadRequest, "Invalid limit")
		return 0, false
	}
	if n > maxListLimit {
		n = maxListLimit
	}
	return n, true
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("Failed to write response")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		next.ServeHTTP(ww, r)

		log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration", time.Since(start)).
			Str("remote", r.RemoteAddr).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("HTTP request")
	})
}
