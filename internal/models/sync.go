package models

import "strings"

// Action names a reconciliation request.
type Action string

const (
	ActionCreate Action = "create"
	ActionJoin   Action = "join"
	ActionUpdate Action = "update"
	ActionGet    Action = "get"
	ActionLeave  Action = "leave"
)

// Valid reports whether a is a known action.
func (a Action) Valid() bool {
	switch a {
	case ActionCreate, ActionJoin, ActionUpdate, ActionGet, ActionLeave:
		return true
	}
	return false
}

// SyncRequest is the body of every call to the session endpoint.
//
// SessionID carries either a full id or a 6-character code. Code is accepted as an alias.
type SyncRequest struct {
	Action     Action `json:"action"`
	SessionID  string `json:"sessionId,omitempty"`
	Code       string `json:"code,omitempty"`
	DeviceID   string `json:"deviceId,omitempty"`
	DeviceName string `json:"deviceName,omitempty"`
	ProgressMs int64  `json:"progressMs,omitempty"`
	IsPlaying  *bool  `json:"isPlaying,omitempty"`
}

// Key returns the raw session reference of the request.
func (r SyncRequest) Key() string {
	if k := strings.TrimSpace(r.SessionID); k != "" {
		return k
	}
	return strings.TrimSpace(r.Code)
}

// CreateResponse answers a create action.
type CreateResponse struct {
	SessionID string `json:"sessionId"`
	Code      string `json:"code"`
}

// JoinResponse answers a join action.
type JoinResponse struct {
	Success bool         `json:"success"`
	Session SessionState `json:"session"`
}

// SuccessResponse answers update and leave actions.
type SuccessResponse struct {
	Success bool `json:"success"`
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error string `json:"error"`
}
