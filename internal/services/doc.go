// Package services implements the collaborators consumed by the sync core: now-playing providers,
// a lyrics provider, a fallback track search, and the client side of the reconciliation protocol.
//
// # Providers
//
// [Provider] is implemented by [SpotifyService] and [MPDService]. Both return a [models.Snapshot]
// stamped with the instant it was captured, so a [playback.Interpolator] can extrapolate from it.
//
// # Spotify
//
// [SpotifyService] uses a refresh-token grant. The [oauth2.TokenSource] mints an access token on
// first use and again after expiry; each new token is reported to an optional callback.
// Optional quiet hours short-circuit requests and return a snapshot flagged
// BlockedByTimeRestriction.
//
// A 204 from the player endpoint means nothing is playing and maps to a paused, empty snapshot.
//
// # Lyrics
//
// [LRCLibService] queries LRCLIB's search endpoint and takes the first hit. Requests are paced with
// a [rate.Limiter] so a polling client stays polite.
//
// # YouTube
//
// [YouTubeService] searches YouTube Music through a ytmusicapi proxy and returns the first song
// result with a video id. Clients without a player use it to find something to play along with.
//
// # Sync Client
//
// [SyncClient] posts actions to the session endpoint with a per-call timeout. Error bodies are
// mapped back to sentinels from the shared package:
//   - [shared.ErrSessionNotFound] : 404 for an unknown or expired session
//   - [shared.ErrDeviceNotInSession] : 404 when updating before joining
//   - [shared.ErrInvalidAction] : 400 for an unknown action
//   - [shared.ErrTimeout] : the per-call deadline passed
package services
