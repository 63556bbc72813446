// Package models defines domain entities and persistence interfaces for the nowplaying sync service.
//
// The package contains three categories of types:
//
// 1. Sync entities: persisted by a [Store] for the lifetime of a session
//   - [Session] : a shared playback timeline addressed by a long id or a short join code
//   - [Device] : a client joined to a session, with its last reported position
//   - [SessionState] : a session together with its device roster, as served to pollers
//
// 2. Playback DTOs: lightweight structs describing external player state
//   - [Snapshot] : a "currently playing" observation from Spotify or MPD
//   - [RawLyrics] : synced (LRC) and plain lyric text for a track
//
// 3. History records: the listening log kept in SQLite
//   - [HistoryEntry], [SongStats], [HistorySummary]
//
// Sessions and devices are resolved through a [LookupKey], parsed once at the boundary by [ParseLookupKey].
package models
