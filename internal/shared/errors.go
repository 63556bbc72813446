package shared

import "fmt"

var (
	ErrNotImplemented = fmt.Errorf("not implemented")

	// Configuration errors
	ErrMissingConfig      = fmt.Errorf("configuration not found")
	ErrInvalidConfig      = fmt.Errorf("invalid configuration")
	ErrMissingCredentials = fmt.Errorf("missing credentials")

	// Authentication errors
	ErrAuthFailed     = fmt.Errorf("authentication failed")
	ErrRefreshFailed  = fmt.Errorf("token refresh failed")
	ErrNoRefreshToken = fmt.Errorf("no refresh token available")
	ErrTimeout        = fmt.Errorf("operation timed out")

	// Sync session errors
	ErrSessionNotFound    = fmt.Errorf("session not found")
	ErrDeviceNotInSession = fmt.Errorf("device not in session")
	ErrCodeTaken          = fmt.Errorf("session code already in use")
	ErrInvalidAction      = fmt.Errorf("invalid action")
	ErrStoreUnavailable   = fmt.Errorf("session store unavailable")

	// API and service errors
	ErrAPIRequest         = fmt.Errorf("API request failed")
	ErrServiceUnavailable = fmt.Errorf("service unavailable")
	ErrLyricsNotFound     = fmt.Errorf("lyrics not found")
	ErrNothingPlaying     = fmt.Errorf("nothing playing")

	// Input validation errors
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
)
