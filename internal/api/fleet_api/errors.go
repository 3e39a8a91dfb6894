package fleet_api

import (
	"errors"
	"net/http"

	"github.com/BearBump/FleetTrack/internal/models"
)

const (
	codeValidation        = "validation"
	codeInvalidTransition = "invalid_transition"
	codeRoleMismatch      = "role_mismatch"
	codeUnauthenticated   = "unauthenticated"
	codeAccessDenied      = "access_denied"
	codeNotFound          = "not_found"
	codeTruckUnavailable  = "truck_unavailable"
	codeConflict          = "conflict"
	codeRateLimited       = "rate_limited"
	codeInternal          = "internal"
)

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string             `json:"code"`
	Message string             `json:"message"`
	Details []models.Violation `json:"details,omitempty"`
}

// classify maps a domain error kind to its HTTP status and public code.
func classify(err error) (int, string) {
	var verr *models.ValidationError
	switch {
	case errors.As(err, &verr):
		return http.StatusBadRequest, codeValidation
	case errors.Is(err, models.ErrInvalidTransition):
		return http.StatusBadRequest, codeInvalidTransition
	case errors.Is(err, models.ErrRoleMismatch):
		return http.StatusBadRequest, codeRoleMismatch
	case errors.Is(err, models.ErrUnauthenticated):
		return http.StatusUnauthorized, codeUnauthenticated
	case errors.Is(err, models.ErrAccessDenied):
		return http.StatusForbidden, codeAccessDenied
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound, codeNotFound
	case errors.Is(err, models.ErrTruckUnavailable):
		return http.StatusConflict, codeTruckUnavailable
	case errors.Is(err, models.ErrConflict):
		return http.StatusConflict, codeConflict
	default:
		return http.StatusInternalServerError, codeInternal
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := classify(err)
	body := errorBody{Error: errorDetail{Code: code, Message: err.Error()}}

	var verr *models.ValidationError
	if errors.As(err, &verr) {
		body.Error.Details = verr.Violations
	}
	if status == http.StatusInternalServerError {
		s.log.ErrorContext(r.Context(), "request failed", "method", r.Method, "path", r.URL.Path, "error", err.Error())
		body.Error.Message = "internal error"
	}
	writeJSON(w, status, body)
}

func writeErrorCode(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorBody{Error: errorDetail{Code: code, Message: message}})
}

func badRequest(field, reason string) error {
	return &models.ValidationError{Violations: []models.Violation{{Field: field, Reason: reason}}}
}
