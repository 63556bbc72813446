package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/desertthunder/nowplaying/internal/models"
	"github.com/desertthunder/nowplaying/internal/shared"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func errorBody(msg string) models.ErrorResponse {
	return models.ErrorResponse{Error: msg}
}

// writeError writes the JSON error body statusFor chooses for err.
func writeError(w http.ResponseWriter, err error) {
	status, msg := statusFor(err)
	writeJSON(w, status, errorBody(msg))
}

// statusFor maps an error to an HTTP status and the message sent to clients.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, shared.ErrSessionNotFound):
		return http.StatusNotFound, "Session not found"
	case errors.Is(err, shared.ErrDeviceNotInSession):
		return http.StatusNotFound, "Device not in session"
	case errors.Is(err, shared.ErrInvalidAction):
		return http.StatusBadRequest, "Invalid action"
	case errors.Is(err, shared.ErrInvalidInput),
		errors.Is(err, shared.ErrMissingArgument),
		errors.Is(err, shared.ErrInvalidArgument):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, shared.ErrLyricsNotFound), errors.Is(err, shared.ErrNothingPlaying):
		return http.StatusNotFound, err.Error()
	case errors.Is(err, shared.ErrAuthFailed),
		errors.Is(err, shared.ErrRefreshFailed),
		errors.Is(err, shared.ErrNoRefreshToken),
		errors.Is(err, shared.ErrMissingCredentials):
		return http.StatusUnauthorized, err.Error()
	case errors.Is(err, shared.ErrServiceUnavailable), errors.Is(err, shared.ErrStoreUnavailable):
		return http.StatusServiceUnavailable, err.Error()
	case errors.Is(err, shared.ErrNotImplemented):
		return http.StatusNotImplemented, err.Error()
	default:
		return http.StatusInternalServerError, err.Error()
	}
}
