package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"green/internal/cache"
	"green/internal/core"
	"green/internal/ingest"
	"green/internal/log"
	"green/internal/report"
	"green/internal/services"
)

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().Data(map[string]any{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
		"uptime":    time.Since(s.started).Round(time.Second).String(),
	}).Write(w)
}

// handleReady performs readiness check with dependency verification
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
	defer cancel()

	status := "ready"
	httpStatus := http.StatusOK
	checks := make(map[string]any)

	switch {
	case s.store == nil:
		checks["store"] = "not_configured"
		status, httpStatus = "not_ready", http.StatusServiceUnavailable
	default:
		if err := s.store.Ping(ctx); err != nil {
			log.FromContext(ctx).WarnContext(ctx, "Readiness store check failed",
				log.FieldComponent, log.ComponentStorage,
				log.FieldError, err)
			checks["store"] = fmt.Sprintf("failed: %v", err)
			status, httpStatus = "not_ready", http.StatusServiceUnavailable
		} else {
			checks["store"] = "ok"
		}
	}

	cached := 0
	var stats cache.Stats
	if s.reports != nil {
		cached = s.reports.CachedGrids()
		stats = s.reports.GridCacheStats()
	}
	checks["cache"] = map[string]any{
		"grid_entries": cached,
		"hits":         stats.Hits,
		"misses":       stats.Misses,
		"evictions":    stats.Evictions,
		"status":       "ok",
	}
	checks["rate_limiter"] = map[string]any{
		"active_clients": s.rateLimiter.ActiveClients(),
		"status":         "ok",
	}

	NewJSONResponse().Status(httpStatus).Data(map[string]any{
		"status":    status,
		"timestamp": time.Now().Format(time.RFC3339),
		"checks":    checks,
	}).Write(w)
}

// respondError maps service errors onto status codes. Unexpected errors are
// logged and answered with fallback only.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	ctx := r.Context()
	var rangeErr *report.RangeError
	switch {
	case errors.As(err, &rangeErr):
		BadRequestError(fmt.Sprintf("%s: %s=%q %s", msgInvalidRange, rangeErr.Field, rangeErr.Value, rangeErr.Reason)).Write(w)
	case errors.Is(err, report.ErrInvalidRange):
		BadRequestError(msgInvalidRange).Write(w)
	case errors.Is(err, core.ErrRecordNotFound):
		NotFoundError(msgNotFound).Write(w)
	case errors.Is(err, core.ErrPetugasNotFound):
		NotFoundError(msgPetugasNotFound).Write(w)
	case errors.Is(err, core.ErrPetugasExists):
		ConflictError(msgPetugasExists).Write(w)
	case errors.Is(err, core.ErrInvalidUsername):
		BadRequestError(msgInvalidUsername).Write(w)
	case errors.Is(err, errInvalidBody):
		BadRequestError(msgInvalidBody).Write(w)
	case errors.Is(err, errInvalidID):
		BadRequestError(msgInvalidID).Write(w)
	case errors.Is(err, services.ErrNoFiles):
		BadRequestError(msgNoFiles).Write(w)
	case errors.Is(err, ingest.ErrInvalidDate):
		BadRequestError(msgInvalidDate).Write(w)
	case errors.Is(err, services.ErrMessagingDisabled):
		ServiceUnavailableError(msgMessagingDisabled).Write(w)
	default:
		fields := log.NewFields()
		fields[log.FieldPath] = r.URL.Path
		fields["error_type"] = log.ErrorTypeInternal
		log.NewStructuredLogger(log.FromContext(ctx)).LogError(ctx, fallback, err, log.ComponentHTTP, r.Pattern, fields)
		InternalServerError(fallback).Write(w)
		return
	}
	log.FromContext(ctx).DebugContext(ctx, "Request rejected",
		log.FieldPath, r.URL.Path,
		"error_type", log.ErrorTypeValidation,
		log.FieldError, err)
}
