// Package api exposes the read-only HTTP interface for serve mode.
package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/tymekw/kotori-notify/internal/tracker"
)

// Server wires HTTP handlers to the status store. It never mutates the
// store; the batch runner exclusively owns writes.
type Server struct {
	router chi.Router
	store  tracker.Store
	logger *zap.Logger
}

// NewServer constructs a Server exposing health, metrics and status reads.
func NewServer(store tracker.Store, registry *prometheus.Registry, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{store: store, logger: logger}

	r := chi.NewRouter()
	r.Get("/healthz", s.healthz)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	r.Route("/v1", func(r chi.Router) {
		r.Get("/unnotified", s.listUnnotified)
		r.Get("/status/{title}/{volume}", s.getLatestStatus)
	})
	s.router = r
	return s
}

// Handler returns the router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) listUnnotified(w http.ResponseWriter, r *http.Request) {
	records, err := s.store.Unnotified(r.Context())
	if err != nil {
		s.logger.Error("list unnotified failed", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "failed to list unnotified records")
		return
	}
	if records == nil {
		records = []tracker.StatusRecord{}
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"records": records})
}

func (s *Server) getLatestStatus(w http.ResponseWriter, r *http.Request) {
	title := chi.URLParam(r, "title")
	volume := chi.URLParam(r, "volume")

	rec, err := s.store.LatestStatus(r.Context(), title, volume)
	if errors.Is(err, tracker.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, "item has no recorded status")
		return
	}
	if err != nil {
		s.logger.Error("latest status lookup failed",
			zap.String("title", title),
			zap.String("volume", volume),
			zap.Error(err),
		)
		s.writeError(w, http.StatusInternalServerError, "failed to look up status")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"record": rec})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("response write failed", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}
