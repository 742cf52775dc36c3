package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

// mirrorCheckTimeout bounds the mirror ping made by /health.
const mirrorCheckTimeout = 2 * time.Second

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusNotFound, ErrCodeNotFound, "no such endpoint")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusMethodNotAllowed, ErrCodeMethodNotAllow, "method not allowed")
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/status", s.handleStatus)
	})

	return r
}

// handleHealth returns the server health status. When a mirror is
// configured its reachability is reported too. An unreachable mirror
// degrades the status without failing the request.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	body := map[string]any{
		"status":  "ok",
		"version": s.version,
	}

	if s.mirror != nil {
		ctx, cancel := context.WithTimeout(r.Context(), mirrorCheckTimeout)
		defer cancel()

		if err := s.mirror.HealthCheck(ctx); err != nil {
			s.logger.Debug("mirror health check failed", "error", err)
			body["status"] = "degraded"
			body["mirror"] = "unavailable"
		} else {
			body["mirror"] = "ok"
		}
	}

	writeJSON(w, http.StatusOK, body)
}

// handleStatus returns the node's session, link and publish counters.
// Responds 503 while the broker session is not connected so a supervisor
// can poll it directly.
func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	st := s.status.Status()
	code := http.StatusOK
	if st.Session != "connected" {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, st)
}
