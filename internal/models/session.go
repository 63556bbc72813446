package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/desertthunder/nowplaying/internal/shared"
)

// CodeAlphabet lists the characters a join code is drawn from. Ambiguous glyphs (I, O, 0, 1) are left out.
const CodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// CodeLength is the length of a join code. Any lookup value of this length is treated as a code.
const CodeLength = 6

// DefaultSessionTTL is how long a session stays resolvable after creation.
const DefaultSessionTTL = 24 * time.Hour

// Session is a shared playback timeline that devices join.
type Session struct {
	ID                string
	Code              string
	CreatedAt         time.Time
	ExpiresAt         time.Time
	CurrentProgressMs int64
	IsPlaying         bool
}

// NewSession builds a session created at now that expires after ttl.
func NewSession(id, code string, now time.Time, ttl time.Duration) Session {
	now = now.UTC()
	return Session{
		ID:        id,
		Code:      code,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
}

// Expired reports whether the session is past its expiry at now.
func (s Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

func (s Session) Validate() error {
	if s.ID == "" {
		return fmt.Errorf("%w: session id is required", shared.ErrInvalidInput)
	}
	if utf8.RuneCountInString(s.Code) != CodeLength {
		return fmt.Errorf("%w: session code must be %d characters", shared.ErrInvalidInput, CodeLength)
	}
	for _, r := range s.Code {
		if !strings.ContainsRune(CodeAlphabet, r) {
			return fmt.Errorf("%w: session code has invalid character %q", shared.ErrInvalidInput, r)
		}
	}
	if !s.ExpiresAt.After(s.CreatedAt) {
		return fmt.Errorf("%w: session must expire after it is created", shared.ErrInvalidInput)
	}
	return nil
}

// Device is a client joined to a session.
//
// A device id is chosen by the client and identifies it globally: joining another session moves the device.
type Device struct {
	ID          string
	Name        string
	SessionID   string
	ProgressMs  int64
	JoinedAt    time.Time
	LastUpdated time.Time
}

// Stale reports whether the device has not reported within window of now.
func (d Device) Stale(now time.Time, window time.Duration) bool {
	return now.Sub(d.LastUpdated) > window
}

func (d Device) Validate() error {
	if d.ID == "" {
		return fmt.Errorf("%w: device id is required", shared.ErrInvalidInput)
	}
	if d.SessionID == "" {
		return fmt.Errorf("%w: session id is required", shared.ErrInvalidInput)
	}
	if d.ProgressMs < 0 {
		return fmt.Errorf("%w: progress must not be negative", shared.ErrInvalidInput)
	}
	return nil
}

type deviceJSON struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	ProgressMs  int64  `json:"progressMs"`
	JoinedAt    int64  `json:"joinedAt"`
	LastUpdated int64  `json:"lastUpdated"`
}

// MarshalJSON encodes timestamps as milliseconds since the epoch.
func (d Device) MarshalJSON() ([]byte, error) {
	return json.Marshal(deviceJSON{
		ID:          d.ID,
		Name:        d.Name,
		ProgressMs:  d.ProgressMs,
		JoinedAt:    d.JoinedAt.UnixMilli(),
		LastUpdated: d.LastUpdated.UnixMilli(),
	})
}

func (d *Device) UnmarshalJSON(data []byte) error {
	var v deviceJSON
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	d.ID = v.ID
	d.Name = v.Name
	d.ProgressMs = v.ProgressMs
	d.JoinedAt = UnixMilli(v.JoinedAt)
	d.LastUpdated = UnixMilli(v.LastUpdated)
	return nil
}

// SessionState is a session with its device roster, the payload of a "get" poll.
type SessionState struct {
	ID                string   `json:"id"`
	Code              string   `json:"code"`
	CurrentProgressMs int64    `json:"currentProgressMs"`
	IsPlaying         bool     `json:"isPlaying"`
	Devices           []Device `json:"devices"`
}

// NewSessionState combines a session and its devices. A nil roster encodes as an empty list.
func NewSessionState(s Session, devices []Device) SessionState {
	if devices == nil {
		devices = []Device{}
	}
	return SessionState{
		ID:                s.ID,
		Code:              s.Code,
		CurrentProgressMs: s.CurrentProgressMs,
		IsPlaying:         s.IsPlaying,
		Devices:           devices,
	}
}
