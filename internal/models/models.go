// package models defines the data model for the nowplaying sync service
package models

import (
	"context"
	"time"
)

// Store defines persistence for sessions and their devices.
//
// Every method is atomic. Implementations return [shared.ErrSessionNotFound] for unknown sessions
// and [shared.ErrDeviceNotInSession] when a device has not joined the session it reports against.
// Stores do not interpret expiry except in DeleteExpired; callers filter expired sessions.
type Store interface {
	// CreateSession inserts a new session. Returns [shared.ErrCodeTaken] when the code is in use.
	CreateSession(ctx context.Context, s Session) error
	// GetSession looks a session up by id or by code.
	GetSession(ctx context.Context, key LookupKey) (*Session, error)
	// UpsertDevice inserts a device or refreshes an existing one with the same id.
	UpsertDevice(ctx context.Context, d Device) error
	// UpdateProgress records a device position and the session position in one transaction.
	UpdateProgress(ctx context.Context, u ProgressUpdate) error
	// ListDevices returns the devices of a session in join order.
	ListDevices(ctx context.Context, sessionID string) ([]Device, error)
	// DeleteDevice removes a device from a session.
	DeleteDevice(ctx context.Context, sessionID, deviceID string) error
	// DeleteSession removes a session and its devices.
	DeleteSession(ctx context.Context, sessionID string) error
	// DeleteExpired removes every session whose expiry is at or before now and reports how many.
	DeleteExpired(ctx context.Context, now time.Time) (int, error)
	Close() error
}

// ProgressUpdate is a position report from a device.
//
// IsPlaying is optional; when nil the session's playing flag is left as is.
type ProgressUpdate struct {
	SessionID  string
	DeviceID   string
	ProgressMs int64
	IsPlaying  *bool
	At         time.Time
}

// UnixMilli converts a stored millisecond timestamp to a UTC [time.Time].
func UnixMilli(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}
