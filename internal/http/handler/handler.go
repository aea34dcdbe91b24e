package handler

import (
	"errors"
	"net/http"

	"github.com/roomcast/roomcast-backend/internal/http/response"
	"github.com/roomcast/roomcast-backend/internal/service"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"
)

var validate = validator.New()

// decodeJSON parses and validates a request body. A false return means the
// error response has already been written.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		response.Error(w, r, http.StatusBadRequest, "VALIDATION_ERROR", "malformed json body", nil)
		return false
	}
	if err := validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		fields := []string{}
		if errors.As(err, &verrs) {
			for _, fe := range verrs {
				fields = append(fields, fe.Field())
			}
		}
		response.Error(w, r, http.StatusBadRequest, "VALIDATION_ERROR", "invalid request body", map[string]any{"fields": fields})
		return false
	}
	return true
}

// writeServiceError maps service errors onto the response taxonomy.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var weak *service.WeakPasswordError
	switch {
	case errors.As(err, &weak):
		response.Error(w, r, http.StatusBadRequest, "WEAK_PASSWORD", "password does not meet requirements", map[string]any{"requirements": weak.Requirements})
	case errors.Is(err, service.ErrInvalidCredentials):
		response.Error(w, r, http.StatusUnauthorized, "UNAUTHENTICATED", "invalid credentials", nil)
	case errors.Is(err, service.ErrSessionInvalid):
		response.Error(w, r, http.StatusUnauthorized, "SESSION_EXPIRED", "session invalid or expired", nil)
	case errors.Is(err, service.ErrResetNotConfirmed):
		response.Error(w, r, http.StatusForbidden, "RESET_NOT_CONFIRMED", "reset request not confirmed", nil)
	case errors.Is(err, service.ErrResetNotFound):
		response.Error(w, r, http.StatusNotFound, "NOT_FOUND", "no valid reset request", nil)
	case errors.Is(err, service.ErrAccountNotFound):
		response.Error(w, r, http.StatusNotFound, "NOT_FOUND", "account not found", nil)
	case errors.Is(err, service.ErrStatisticsNotFound):
		response.Error(w, r, http.StatusNotFound, "NOT_FOUND", "no statistics available", nil)
	case errors.Is(err, service.ErrUsernameTaken):
		response.Error(w, r, http.StatusConflict, "CONFLICT", "username already taken", nil)
	case errors.Is(err, service.ErrTooManyAttempts):
		response.Error(w, r, http.StatusTooManyRequests, "RATE_LIMITED", "too many attempts, retry later", nil)
	default:
		response.Error(w, r, http.StatusInternalServerError, "UPSTREAM_ERROR", "internal error", nil)
	}
}
