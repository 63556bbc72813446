package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/desertthunder/nowplaying/internal/models"
	"github.com/desertthunder/nowplaying/internal/shared"
)

const (
	// A jump larger than this between consecutive samples counts as a new play.
	replayThresholdMs = 10_000
	// Listening credit per sample is capped so skips and gaps are not counted.
	maxListeningStepMs = 10_000

	maxHistoryEntries = 10_000
	maxSongEntries    = 100

	TopSongsLimit      = 50
	RecentEntriesLimit = 20
)

// HistoryRepository records playback samples and keeps per-song aggregates.
type HistoryRepository struct {
	db *sql.DB
}

// NewHistoryRepository creates a new HistoryRepository with the given database connection
func NewHistoryRepository(db *sql.DB) *HistoryRepository {
	return &HistoryRepository{db: db}
}

// Record appends a sample and updates the song's play count and listening time.
//
// The play count goes up on a song's first sample and whenever progress moved by more than
// ten seconds since the previous sample. Listening time grows by the forward progress between
// two playing samples, at most ten seconds per sample.
func (r *HistoryRepository) Record(ctx context.Context, e models.HistoryEntry) (*models.SongStats, error) {
	e.Title = strings.TrimSpace(e.Title)
	e.Artist = strings.TrimSpace(e.Artist)
	if e.Title == "" || e.Artist == "" {
		return nil, fmt.Errorf("%w: title and artist are required", shared.ErrInvalidInput)
	}
	if e.RecordedAt.IsZero() {
		e.RecordedAt = time.Now()
	}
	e.SongKey = shared.NormalizeTrackKey(e.Title, e.Artist)
	at := e.RecordedAt.UnixMilli()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var (
		prevProgress int64
		prevPlaying  int
		hasPrev      = true
	)
	err = tx.QueryRowContext(ctx,
		`SELECT progress_ms, is_playing FROM history_entries WHERE song_key = ? ORDER BY id DESC LIMIT 1`,
		e.SongKey,
	).Scan(&prevProgress, &prevPlaying)
	if errors.Is(err, sql.ErrNoRows) {
		hasPrev = false
	} else if err != nil {
		return nil, fmt.Errorf("failed to load previous entry: %w", err)
	}

	var plays int
	if !hasPrev || abs(e.ProgressMs-prevProgress) > replayThresholdMs {
		plays = 1
	}

	var listened int64
	if hasPrev && e.IsPlaying && prevPlaying != 0 && e.ProgressMs > 0 {
		if step := min(e.ProgressMs-prevProgress, maxListeningStepMs); step > 0 {
			listened = step
		}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO songs (key, title, artist, album, play_count, listening_ms, first_played_at, last_played_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			album = CASE WHEN excluded.album != '' THEN excluded.album ELSE songs.album END,
			play_count = songs.play_count + excluded.play_count,
			listening_ms = songs.listening_ms + excluded.listening_ms,
			last_played_at = excluded.last_played_at
	`, e.SongKey, e.Title, e.Artist, e.Album, plays, listened, at, at)
	if err != nil {
		return nil, fmt.Errorf("failed to update song: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO history_entries (song_key, title, artist, album, progress_ms, duration_ms, is_playing, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, e.SongKey, e.Title, e.Artist, e.Album, e.ProgressMs, e.DurationMs, boolToInt(e.IsPlaying), at)
	if err != nil {
		return nil, fmt.Errorf("failed to insert history entry: %w", err)
	}

	if err := r.trim(ctx, tx, e.SongKey); err != nil {
		return nil, err
	}

	stats, err := scanSong(tx.QueryRowContext(ctx, songQuery+` WHERE key = ?`, e.SongKey))
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit history entry: %w", err)
	}
	return stats, nil
}

// trim enforces the per-song and global sample limits.
func (r *HistoryRepository) trim(ctx context.Context, tx *sql.Tx, songKey string) error {
	if _, err := tx.ExecContext(ctx, `
		DELETE FROM history_entries
		WHERE song_key = ? AND id NOT IN (
			SELECT id FROM history_entries WHERE song_key = ? ORDER BY id DESC LIMIT ?
		)`, songKey, songKey, maxSongEntries); err != nil {
		return fmt.Errorf("failed to trim song history: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		DELETE FROM history_entries
		WHERE id NOT IN (SELECT id FROM history_entries ORDER BY id DESC LIMIT ?)`,
		maxHistoryEntries); err != nil {
		return fmt.Errorf("failed to trim history: %w", err)
	}
	return nil
}

// Summary returns totals, the most played songs and the latest samples.
func (r *HistoryRepository) Summary(ctx context.Context, topN, recentN int) (*models.HistorySummary, error) {
	summary := &models.HistorySummary{TopSongs: []models.SongStats{}, Recent: []models.HistoryEntry{}}

	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(play_count), 0), COALESCE(SUM(listening_ms), 0) FROM songs`,
	).Scan(&summary.TotalSongs, &summary.TotalPlays, &summary.TotalListeningMs)
	if err != nil {
		return nil, fmt.Errorf("failed to query totals: %w", err)
	}

	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM history_entries`).Scan(&summary.TotalEntries); err != nil {
		return nil, fmt.Errorf("failed to count history: %w", err)
	}

	rows, err := r.db.QueryContext(ctx,
		songQuery+` ORDER BY play_count DESC, listening_ms DESC, last_played_at DESC LIMIT ?`, topN)
	if err != nil {
		return nil, fmt.Errorf("failed to query top songs: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		s, err := scanSong(rows)
		if err != nil {
			return nil, err
		}
		summary.TopSongs = append(summary.TopSongs, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	recent, err := r.Recent(ctx, recentN)
	if err != nil {
		return nil, err
	}
	summary.Recent = recent
	return summary, nil
}

// Recent returns the latest n samples, oldest first.
func (r *HistoryRepository) Recent(ctx context.Context, n int) ([]models.HistoryEntry, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, song_key, title, artist, album, progress_ms, duration_ms, is_playing, recorded_at
		FROM (SELECT * FROM history_entries ORDER BY id DESC LIMIT ?)
		ORDER BY id ASC`, n)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	entries := []models.HistoryEntry{}
	for rows.Next() {
		var (
			e          models.HistoryEntry
			playing    int
			recordedAt int64
		)
		if err := rows.Scan(&e.ID, &e.SongKey, &e.Title, &e.Artist, &e.Album, &e.ProgressMs, &e.DurationMs, &playing, &recordedAt); err != nil {
			return nil, fmt.Errorf("failed to scan history entry: %w", err)
		}
		e.IsPlaying = playing != 0
		e.RecordedAt = models.UnixMilli(recordedAt)
		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return entries, nil
}

const songQuery = `
	SELECT key, title, artist, album, play_count, listening_ms, first_played_at, last_played_at
	FROM songs`

func scanSong(row scanner) (*models.SongStats, error) {
	var (
		s           models.SongStats
		firstPlayed int64
		lastPlayed  int64
	)

	err := row.Scan(&s.Key, &s.Title, &s.Artist, &s.Album, &s.PlayCount, &s.ListeningMs, &firstPlayed, &lastPlayed)
	if err != nil {
		return nil, fmt.Errorf("failed to scan song: %w", err)
	}

	s.FirstPlayedAt = models.UnixMilli(firstPlayed)
	s.LastPlayedAt = models.UnixMilli(lastPlayed)
	return &s, nil
}

func abs(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
