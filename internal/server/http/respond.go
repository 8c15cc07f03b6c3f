package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/dmitrijs2005/vaultgate/internal/common"
)

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, ErrorResponse{Error: message, Code: code})
}

type errorMapping struct {
	err    error
	status int
	code   string
}

var errorMappings = []errorMapping{
	{common.ErrNotFound, http.StatusNotFound, "not_found"},
	{common.ErrRejected, http.StatusUnauthorized, "rejected"},
	{common.ErrTooManyAttempts, http.StatusTooManyRequests, "too_many_attempts"},
	{common.ErrNotPublic, http.StatusForbidden, "not_public"},
	{common.ErrSessionNotFound, http.StatusNotFound, "session_not_found"},
	{common.ErrSessionExpired, http.StatusGone, "session_expired"},
	{common.ErrAssetNotInVault, http.StatusNotFound, "asset_not_in_vault"},
	{common.ErrAssetLocked, http.StatusForbidden, "asset_locked"},
	{common.ErrEmptySelection, http.StatusUnprocessableEntity, "empty_selection"},
	{common.ErrCheckoutInProgress, http.StatusConflict, "checkout_in_progress"},
	{common.ErrAssetReserved, http.StatusConflict, "asset_reserved"},
	{common.ErrPaymentFailed, http.StatusPaymentRequired, "payment_failed"},
	{common.ErrPaymentTimedOut, http.StatusGatewayTimeout, "payment_timed_out"},
	{common.ErrInvalidToken, http.StatusUnauthorized, "unauthorized"},
	{common.ErrUnauthorized, http.StatusUnauthorized, "unauthorized"},
}

// statusFor maps a service error to an HTTP status and error code.
func statusFor(err error) (int, string) {
	for _, m := range errorMappings {
		if errors.Is(err, m.err) {
			return m.status, m.code
		}
	}
	return http.StatusInternalServerError, "internal_error"
}
