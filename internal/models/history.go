package models

import "time"

// HistoryEntry is one recorded playback sample.
type HistoryEntry struct {
	ID         int64     `json:"id"`
	SongKey    string    `json:"songKey"`
	Title      string    `json:"title"`
	Artist     string    `json:"artist"`
	Album      string    `json:"album,omitempty"`
	ProgressMs int64     `json:"progressMs"`
	DurationMs int64     `json:"durationMs"`
	IsPlaying  bool      `json:"isPlaying"`
	RecordedAt time.Time `json:"recordedAt"`
}

// SongStats aggregates the history of one song.
type SongStats struct {
	Key           string    `json:"key"`
	Title         string    `json:"title"`
	Artist        string    `json:"artist"`
	Album         string    `json:"album,omitempty"`
	PlayCount     int       `json:"playCount"`
	ListeningMs   int64     `json:"listeningMs"`
	FirstPlayedAt time.Time `json:"firstPlayedAt"`
	LastPlayedAt  time.Time `json:"lastPlayedAt"`
}

// HistorySummary is the listening overview served by the history endpoint.
type HistorySummary struct {
	TotalSongs       int            `json:"totalSongs"`
	TotalEntries     int            `json:"totalEntries"`
	TotalPlays       int            `json:"totalPlays"`
	TotalListeningMs int64          `json:"totalListeningMs"`
	TopSongs         []SongStats    `json:"topSongs"`
	Recent           []HistoryEntry `json:"recent"`
}
