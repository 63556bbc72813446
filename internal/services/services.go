// package services defines the external collaborators the sync core consumes over HTTP and local sockets
//
// Spotify and MPD (now playing), LRCLIB (lyrics), YouTube Music (fallback search), the sync server itself (reconciliation client)
package services

import (
	"context"

	"github.com/desertthunder/nowplaying/internal/models"
)

// Provider reports what a player is doing right now.
type Provider interface {
	// CurrentlyPlaying returns the latest observation. When nothing plays it returns a snapshot
	// with Playing false and no error.
	CurrentlyPlaying(ctx context.Context) (*models.Snapshot, error)

	// Name returns the name of the provider (e.g., "Spotify", "MPD")
	Name() string
}

// LyricsProvider looks up lyrics for a track.
type LyricsProvider interface {
	// Lyrics returns synced and/or plain text. A track without lyrics yields an empty
	// [models.RawLyrics], not an error.
	Lyrics(ctx context.Context, title, artist string) (*models.RawLyrics, error)
}

// TrackSearcher finds a playable video for a track, used as a fallback player source.
type TrackSearcher interface {
	// SearchTrack returns the best match, or nil with no error when nothing matches.
	SearchTrack(ctx context.Context, title, artist string) (*YouTubeTrack, error)
}

// SessionAPI is the client side of the reconciliation protocol.
type SessionAPI interface {
	Create(ctx context.Context) (*models.CreateResponse, error)
	Join(ctx context.Context, key, deviceID, deviceName string, progressMs int64) (*models.SessionState, error)
	Update(ctx context.Context, key, deviceID string, progressMs int64, playing *bool) error
	Get(ctx context.Context, key string) (*models.SessionState, error)
	Leave(ctx context.Context, key, deviceID string) error
}
