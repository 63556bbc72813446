package models

import "time"

// Snapshot is one observation of what a player is doing.
//
// Progress is sampled at CapturedAt; consumers extrapolate from there.
type Snapshot struct {
	Title      string          `json:"title,omitempty"`
	Artist     string          `json:"artist,omitempty"`
	Album      string          `json:"album,omitempty"`
	ProgressMs int64           `json:"progressMs"`
	DurationMs int64           `json:"durationMs"`
	Percentage float64         `json:"percentage"`
	Playing    bool            `json:"playing"`
	URI        string          `json:"uri,omitempty"`
	URL        string          `json:"url,omitempty"`
	EmbedURL   string          `json:"embed,omitempty"`
	Cover      string          `json:"cover,omitempty"`
	StartedAt  int64           `json:"startedAt,omitempty"`
	Device     *PlaybackDevice `json:"device,omitempty"`

	BlockedByTimeRestriction bool   `json:"blockedByTimeRestriction,omitempty"`
	Message                  string `json:"message,omitempty"`

	CapturedAt time.Time `json:"-"`
}

// PlaybackDevice describes the player hardware reported by Spotify.
type PlaybackDevice struct {
	Name   string `json:"name"`
	Type   string `json:"type"`
	Volume int    `json:"volume"`
}

// HasTrack reports whether the snapshot identifies a track.
func (s *Snapshot) HasTrack() bool {
	return s != nil && s.Title != ""
}

// TrackKey identifies the track for change detection.
func (s *Snapshot) TrackKey() string {
	if s == nil {
		return ""
	}
	if s.URI != "" {
		return s.URI
	}
	return s.Title + "|" + s.Artist
}

// Percent returns progress as a percentage of duration, clamped to [0, 100]; 0 when duration is unknown.
func Percent(progressMs, durationMs int64) float64 {
	if durationMs <= 0 {
		return 0
	}
	p := float64(progressMs) * 100 / float64(durationMs)
	switch {
	case p < 0:
		return 0
	case p > 100:
		return 100
	default:
		return p
	}
}

// RawLyrics is the provider's answer for a track: LRC-timed text, plain text, or both.
type RawLyrics struct {
	Synced string `json:"synced,omitempty"`
	Plain  string `json:"plain,omitempty"`
}

// Empty reports whether neither form is present.
func (r *RawLyrics) Empty() bool {
	return r == nil || (r.Synced == "" && r.Plain == "")
}
