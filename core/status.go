package core

import (
	"errors"
	"net/http"

	"github.com/PaulFidika/memberkit/session"
)

// ErrorStatus maps a session operation error to an HTTP status and a stable
// error code for API responses. A nil error maps to 200.
func ErrorStatus(err error) (int, string) {
	switch {
	case err == nil:
		return http.StatusOK, ""
	case errors.Is(err, session.ErrPassInFlight):
		return http.StatusConflict, "pass_in_flight"
	case errors.Is(err, session.ErrUnknownWorkspace):
		return http.StatusNotFound, "unknown_workspace"
	case errors.Is(err, session.ErrNoActor), errors.Is(err, ErrNoSession):
		return http.StatusUnauthorized, "no_session"
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests, "rate_limited"
	case errors.Is(err, session.ErrReconciliation):
		return http.StatusBadGateway, "reconciliation_failed"
	default:
		return http.StatusInternalServerError, "session_error"
	}
}
