// Package httpapi is the operations surface: health, metrics, live session
// inspection and forced teardown, call records, and the media bridge that
// serves synthesized audio to the telephony engine.
package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/davegallo/centrex/internal/cdr"
	"github.com/davegallo/centrex/internal/config"
	"github.com/davegallo/centrex/internal/machine"
	"github.com/davegallo/centrex/internal/observability"
	"github.com/davegallo/centrex/internal/registry"
)

type Server struct {
	cfg      config.Config
	sessions *registry.Registry
	records  cdr.Store
	sounds   *SoundRegistry
	metrics  *observability.Metrics
}

func New(cfg config.Config, sessions *registry.Registry, records cdr.Store, metrics *observability.Metrics) *Server {
	return &Server{
		cfg:      cfg,
		sessions: sessions,
		records:  records,
		sounds:   NewSoundRegistry(),
		metrics:  metrics,
	}
}

// Sounds exposes the media registry so the synthesizer can publish streams.
func (s *Server) Sounds() *SoundRegistry {
	return s.sounds
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	// Default: same-origin only. Cross-origin dashboards need the explicit
	// APP_ALLOW_ANY_ORIGIN opt-in.
	if s.cfg.AllowAnyOrigin {
		r.Use(allowAnyOrigin)
	}

	r.Get("/healthz", s.handleHealth)
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		observability.MetricsHandler().ServeHTTP(w, r)
	})

	r.Get("/v1/sessions", s.handleListSessions)
	r.Get("/v1/sessions/{ref}", s.handleGetSession)
	r.Delete("/v1/sessions/{ref}", s.handleEndSession)
	r.Get("/v1/records", s.handleListRecords)

	r.Get("/sounds/{id}", s.handleSound)

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":        "ok",
		"live_sessions": s.sessions.Len(),
	})
}

func (s *Server) handleListSessions(w http.ResponseWriter, _ *http.Request) {
	snaps := s.sessions.Snapshots()
	if snaps == nil {
		snaps = []machine.Snapshot{}
	}
	respondJSON(w, http.StatusOK, snaps)
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	ref := chi.URLParam(r, "ref")
	m, ok := s.sessions.Lookup(ref)
	if !ok {
		respondError(w, http.StatusNotFound, "session_not_found", "no live session with ref "+ref)
		return
	}
	respondJSON(w, http.StatusOK, m.Snapshot())
}

// handleEndSession forces a teardown. Ending an unknown or already-terminated
// session is a no-op, so the response is 204 either way.
func (s *Server) handleEndSession(w http.ResponseWriter, r *http.Request) {
	if m, ok := s.sessions.Lookup(chi.URLParam(r, "ref")); ok {
		m.Shutdown()
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListRecords(w http.ResponseWriter, r *http.Request) {
	accessKeyID := strings.TrimSpace(r.URL.Query().Get("accessKeyId"))
	if accessKeyID == "" {
		respondError(w, http.StatusBadRequest, "missing_access_key_id", "query parameter accessKeyId is required")
		return
	}
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			respondError(w, http.StatusBadRequest, "invalid_limit", "limit must be a positive integer")
			return
		}
		limit = n
	}

	records, err := s.records.Recent(r.Context(), accessKeyID, limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "records_unavailable", err.Error())
		return
	}
	if records == nil {
		records = []cdr.Record{}
	}
	respondJSON(w, http.StatusOK, records)
}

func allowAnyOrigin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		if r.Method == http.MethodOptions {
			w.Header().Set("Access-Control-Allow-Methods", "GET, DELETE, OPTIONS")
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, errorResponse{Error: message, Code: code})
}
