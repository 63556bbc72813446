package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/nowplaying/internal/models"
	"github.com/desertthunder/nowplaying/internal/shared"
)

// SQLiteStore implements [models.Store] on a migrated SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLiteStore with the given database connection.
// The database must have migrations applied.
func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// OpenSQLiteStore opens the database at path, runs migrations and returns a store that owns the connection.
func OpenSQLiteStore(path string, maxOpen, maxIdle int) (*SQLiteStore, error) {
	db, err := shared.NewDatabase(path)
	if err != nil {
		return nil, err
	}
	shared.ConfigureDatabase(db, path, maxOpen, maxIdle)

	if err := shared.RunMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return NewSQLiteStore(db), nil
}

// DB exposes the underlying connection so other repositories can share it.
func (s *SQLiteStore) DB() *sql.DB { return s.db }

func (s *SQLiteStore) Close() error { return s.db.Close() }

// CreateSession inserts a new [models.Session]
func (s *SQLiteStore) CreateSession(ctx context.Context, session models.Session) error {
	if err := session.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	query := `
		INSERT INTO sessions (id, code, created_at, expires_at, current_progress_ms, is_playing)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		session.ID,
		session.Code,
		session.CreatedAt.UnixMilli(),
		session.ExpiresAt.UnixMilli(),
		session.CurrentProgressMs,
		boolToInt(session.IsPlaying),
	)
	switch {
	case isUniqueViolation(err, "sessions.code"):
		return shared.ErrCodeTaken
	case err != nil:
		return fmt.Errorf("failed to insert session: %w", err)
	}
	return nil
}

// GetSession retrieves a session by id or code
func (s *SQLiteStore) GetSession(ctx context.Context, key models.LookupKey) (*models.Session, error) {
	query := `
		SELECT id, code, created_at, expires_at, current_progress_ms, is_playing
		FROM sessions
	`
	if key.Kind == models.ByCode {
		query += " WHERE code = ?"
	} else {
		query += " WHERE id = ?"
	}

	return scanSession(s.db.QueryRowContext(ctx, query, key.Value))
}

// UpsertDevice inserts a device or refreshes it.
//
// A device rejoining its own session keeps its join time and position in the roster;
// a device moving to another session is appended to the new roster.
func (s *SQLiteStore) UpsertDevice(ctx context.Context, d models.Device) error {
	if err := d.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := sessionExists(ctx, tx, d.SessionID); err != nil {
		return err
	}

	sequence, err := NextSequence(tx, "devices")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	query := `
		INSERT INTO devices (id, session_id, sequence, name, progress_ms, joined_at, last_updated)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			progress_ms = excluded.progress_ms,
			last_updated = excluded.last_updated,
			sequence = CASE WHEN devices.session_id = excluded.session_id THEN devices.sequence ELSE excluded.sequence END,
			joined_at = CASE WHEN devices.session_id = excluded.session_id THEN devices.joined_at ELSE excluded.joined_at END,
			session_id = excluded.session_id
	`

	_, err = tx.ExecContext(ctx, query,
		d.ID,
		d.SessionID,
		sequence,
		d.Name,
		d.ProgressMs,
		d.JoinedAt.UnixMilli(),
		d.LastUpdated.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert device: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit device: %w", err)
	}
	return nil
}

// UpdateProgress writes the device and session positions in one transaction.
func (s *SQLiteStore) UpdateProgress(ctx context.Context, u models.ProgressUpdate) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx,
		`UPDATE devices SET progress_ms = ?, last_updated = ? WHERE id = ? AND session_id = ?`,
		u.ProgressMs, u.At.UnixMilli(), u.DeviceID, u.SessionID,
	)
	if err != nil {
		return fmt.Errorf("failed to update device progress: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		if err := sessionExists(ctx, tx, u.SessionID); err != nil {
			return err
		}
		return shared.ErrDeviceNotInSession
	}

	var playing sql.NullInt64
	if u.IsPlaying != nil {
		playing = sql.NullInt64{Int64: int64(boolToInt(*u.IsPlaying)), Valid: true}
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE sessions SET current_progress_ms = ?, is_playing = COALESCE(?, is_playing) WHERE id = ?`,
		u.ProgressMs, playing, u.SessionID,
	); err != nil {
		return fmt.Errorf("failed to update session progress: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit progress: %w", err)
	}
	return nil
}

// ListDevices returns a session's devices in join order
func (s *SQLiteStore) ListDevices(ctx context.Context, sessionID string) ([]models.Device, error) {
	query := `
		SELECT id, session_id, name, progress_ms, joined_at, last_updated
		FROM devices
		WHERE session_id = ?
		ORDER BY sequence ASC
	`

	rows, err := s.db.QueryContext(ctx, query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query devices: %w", err)
	}
	defer rows.Close()

	devices := []models.Device{}
	for rows.Next() {
		d, err := scanDevice(rows)
		if err != nil {
			return nil, err
		}
		devices = append(devices, *d)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return devices, nil
}

// DeleteDevice removes a device from a session
func (s *SQLiteStore) DeleteDevice(ctx context.Context, sessionID, deviceID string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM devices WHERE id = ? AND session_id = ?`, deviceID, sessionID)
	if err != nil {
		return fmt.Errorf("failed to delete device: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		if err := sessionExists(ctx, s.db, sessionID); err != nil {
			return err
		}
		return shared.ErrDeviceNotInSession
	}
	return nil
}

// DeleteSession removes a session; its devices cascade
func (s *SQLiteStore) DeleteSession(ctx context.Context, sessionID string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, sessionID)
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return shared.ErrSessionNotFound
	}
	return nil
}

// DeleteExpired removes sessions whose expiry is at or before now
func (s *SQLiteStore) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at <= ?`, now.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired sessions: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get affected rows: %w", err)
	}
	return int(rows), nil
}

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func sessionExists(ctx context.Context, q queryRower, sessionID string) error {
	var exists bool
	err := q.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM sessions WHERE id = ?)`, sessionID).Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to check session: %w", err)
	}
	if !exists {
		return shared.ErrSessionNotFound
	}
	return nil
}

func scanSession(row scanner) (*models.Session, error) {
	var (
		session   models.Session
		createdAt int64
		expiresAt int64
		playing   int
	)

	err := row.Scan(&session.ID, &session.Code, &createdAt, &expiresAt, &session.CurrentProgressMs, &playing)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, shared.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan session: %w", err)
	}

	session.CreatedAt = models.UnixMilli(createdAt)
	session.ExpiresAt = models.UnixMilli(expiresAt)
	session.IsPlaying = playing != 0
	return &session, nil
}

func scanDevice(row scanner) (*models.Device, error) {
	var (
		d           models.Device
		joinedAt    int64
		lastUpdated int64
	)

	if err := row.Scan(&d.ID, &d.SessionID, &d.Name, &d.ProgressMs, &joinedAt, &lastUpdated); err != nil {
		return nil, fmt.Errorf("failed to scan device: %w", err)
	}

	d.JoinedAt = models.UnixMilli(joinedAt)
	d.LastUpdated = models.UnixMilli(lastUpdated)
	return &d, nil
}
