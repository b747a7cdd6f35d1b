package api

import (
	"errors"
	"net/http"

	"github.com/okian/hackjudge/internal/domain/errs"
	"github.com/okian/hackjudge/pkg/metrics"
)

// Sentinel kinds for API errors.
var (
	ErrBadRequest   = errors.New("bad request")
	ErrUnauthorized = errors.New("unauthorized")
	ErrRateLimited  = errors.New("too many sign-in attempts")
)

// statusFor maps an error kind to its status and wire code.
func statusFor(err error) (int, string) {
	switch errs.KindOf(err) {
	case errs.ErrValidation:
		return http.StatusBadRequest, "bad_request"
	case errs.ErrForbidden:
		return http.StatusForbidden, "forbidden"
	case errs.ErrNotFound:
		return http.StatusNotFound, "not_found"
	case errs.ErrConflict:
		return http.StatusConflict, "conflict"
	case errs.ErrStore:
		return http.StatusServiceUnavailable, "store_unavailable"
	}
	switch {
	case errors.Is(err, ErrBadRequest):
		return http.StatusBadRequest, "bad_request"
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests, "rate_limited"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

// writeServiceError renders err with its mapped status and field problems.
func (s *Server) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := statusFor(err)
	if status >= http.StatusInternalServerError {
		metrics.RecordErrorByComponent("http", code)
		s.logger.Error(r.Context(), "request failed", errField(err), reqField(r))
	}
	writeJSON(w, status, errorResponse{Code: code, Message: err.Error(), Problems: errs.ProblemsOf(err)})
}
