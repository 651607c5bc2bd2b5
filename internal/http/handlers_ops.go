package http

import (
	"context"
	"net/http"
	"time"

	"finboard/internal/log"
)

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	NewJSONResponse().Data(map[string]any{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
		"uptime":    time.Since(s.started).String(),
	}).Write(w)
}

// handleReady performs readiness check with dependency verification
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	status := "ready"
	httpStatus := http.StatusOK
	checks := map[string]any{
		"rate_limiter": map[string]any{"active_clients": s.limiter.ActiveClients(), "status": "ok"},
	}

	if s.deps.Ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()
		if err := s.deps.Ready(ctx); err != nil {
			s.logger.WarnContext(r.Context(), "Readiness check failed", log.FieldError, err)
			checks["storage"] = "failed: " + err.Error()
			status = "not_ready"
			httpStatus = http.StatusServiceUnavailable
		} else {
			checks["storage"] = "ok"
		}
	}

	NewJSONResponse().Status(httpStatus).Data(map[string]any{
		"status":    status,
		"timestamp": time.Now().Format(time.RFC3339),
		"checks":    checks,
	}).Write(w)
}

// handleMetrics reports transport counters.
func (s *Server) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	NewJSONResponse().Data(map[string]any{
		"uptime":    time.Since(s.started).String(),
		"requests":  s.tracer.GetMetrics(),
		"rateLimit": s.limiter.GetMetrics(),
		"security":  s.detector.GetMetrics(),
	}).Write(w)
}

func (s *Server) handleCacheStatus(w http.ResponseWriter, r *http.Request) {
	user, ok := s.user(w, r)
	if !ok {
		return
	}
	NewJSONResponse().Data(map[string]any{
		"user":    user,
		"entries": s.deps.Cache.Status(user),
	}).Write(w)
}

// handleCacheInvalidate drops the caller's cached entries on this instance,
// the manual counterpart of the post-import invalidation.
func (s *Server) handleCacheInvalidate(w http.ResponseWriter, r *http.Request) {
	user, ok := s.user(w, r)
	if !ok {
		return
	}
	n := s.deps.Dashboard.Invalidate(user)
	s.logger.InfoContext(r.Context(), "Cache invalidated on request",
		log.FieldUserID, user,
		log.FieldCount, n)
	NewJSONResponse().Data(map[string]int{"invalidated": n}).Write(w)
}
