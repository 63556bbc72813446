package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/desertthunder/nowplaying/internal/models"
	"github.com/desertthunder/nowplaying/internal/shared"
)

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

// postgresSchema mirrors the SQLite session migration. Statements are idempotent.
var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		code TEXT NOT NULL UNIQUE,
		created_at BIGINT NOT NULL,
		expires_at BIGINT NOT NULL,
		current_progress_ms BIGINT NOT NULL DEFAULT 0,
		is_playing BOOLEAN NOT NULL DEFAULT FALSE
	)`,
	`CREATE INDEX IF NOT EXISTS idx_sessions_expires_at ON sessions(expires_at)`,
	`CREATE SEQUENCE IF NOT EXISTS devices_sequence`,
	`CREATE TABLE IF NOT EXISTS devices (
		id TEXT PRIMARY KEY,
		session_id TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
		sequence BIGINT NOT NULL,
		name TEXT NOT NULL,
		progress_ms BIGINT NOT NULL DEFAULT 0,
		joined_at BIGINT NOT NULL,
		last_updated BIGINT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_devices_session ON devices(session_id, sequence)`,
}

// PostgresStore implements [models.Store] on a pgx connection pool.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore connects to dsn and ensures the schema exists.
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	if dsn == "" {
		return nil, fmt.Errorf("%w: postgres dsn is empty", shared.ErrInvalidConfig)
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	store := &PostgresStore{pool: pool}
	if err := store.Migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return store, nil
}

// Migrate creates the session tables when missing.
func (p *PostgresStore) Migrate(ctx context.Context) error {
	for _, stmt := range postgresSchema {
		if _, err := p.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to execute statement: %w\nStatement: %s", err, stmt)
		}
	}
	return nil
}

func (p *PostgresStore) Close() error {
	p.pool.Close()
	return nil
}

func (p *PostgresStore) CreateSession(ctx context.Context, s models.Session) error {
	if err := s.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	_, err := p.pool.Exec(ctx, `
		INSERT INTO sessions (id, code, created_at, expires_at, current_progress_ms, is_playing)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		s.ID, s.Code, s.CreatedAt.UnixMilli(), s.ExpiresAt.UnixMilli(), s.CurrentProgressMs, s.IsPlaying,
	)

	var pgErr *pgconn.PgError
	switch {
	case errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation && pgErr.ConstraintName == "sessions_code_key":
		return shared.ErrCodeTaken
	case err != nil:
		return fmt.Errorf("failed to insert session: %w", err)
	}
	return nil
}

func (p *PostgresStore) GetSession(ctx context.Context, key models.LookupKey) (*models.Session, error) {
	query := `SELECT id, code, created_at, expires_at, current_progress_ms, is_playing FROM sessions`
	if key.Kind == models.ByCode {
		query += ` WHERE code = $1`
	} else {
		query += ` WHERE id = $1`
	}

	var (
		s         models.Session
		createdAt int64
		expiresAt int64
	)
	err := p.pool.QueryRow(ctx, query, key.Value).Scan(&s.ID, &s.Code, &createdAt, &expiresAt, &s.CurrentProgressMs, &s.IsPlaying)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, shared.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan session: %w", err)
	}

	s.CreatedAt = models.UnixMilli(createdAt)
	s.ExpiresAt = models.UnixMilli(expiresAt)
	return &s, nil
}

func (p *PostgresStore) UpsertDevice(ctx context.Context, d models.Device) error {
	if err := d.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	_, err := p.pool.Exec(ctx, `
		INSERT INTO devices (id, session_id, sequence, name, progress_ms, joined_at, last_updated)
		VALUES ($1, $2, nextval('devices_sequence'), $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			progress_ms = EXCLUDED.progress_ms,
			last_updated = EXCLUDED.last_updated,
			sequence = CASE WHEN devices.session_id = EXCLUDED.session_id THEN devices.sequence ELSE EXCLUDED.sequence END,
			joined_at = CASE WHEN devices.session_id = EXCLUDED.session_id THEN devices.joined_at ELSE EXCLUDED.joined_at END,
			session_id = EXCLUDED.session_id`,
		d.ID, d.SessionID, d.Name, d.ProgressMs, d.JoinedAt.UnixMilli(), d.LastUpdated.UnixMilli(),
	)

	var pgErr *pgconn.PgError
	switch {
	case errors.As(err, &pgErr) && pgErr.Code == pgForeignKeyViolation:
		return shared.ErrSessionNotFound
	case err != nil:
		return fmt.Errorf("failed to upsert device: %w", err)
	}
	return nil
}

func (p *PostgresStore) UpdateProgress(ctx context.Context, u models.ProgressUpdate) error {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx,
		`UPDATE devices SET progress_ms = $1, last_updated = $2 WHERE id = $3 AND session_id = $4`,
		u.ProgressMs, u.At.UnixMilli(), u.DeviceID, u.SessionID,
	)
	if err != nil {
		return fmt.Errorf("failed to update device progress: %w", err)
	}

	if tag.RowsAffected() == 0 {
		var exists bool
		if err := tx.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM sessions WHERE id = $1)`, u.SessionID).Scan(&exists); err != nil {
			return fmt.Errorf("failed to check session: %w", err)
		}
		if !exists {
			return shared.ErrSessionNotFound
		}
		return shared.ErrDeviceNotInSession
	}

	if _, err := tx.Exec(ctx,
		`UPDATE sessions SET current_progress_ms = $1, is_playing = COALESCE($2::boolean, is_playing) WHERE id = $3`,
		u.ProgressMs, u.IsPlaying, u.SessionID,
	); err != nil {
		return fmt.Errorf("failed to update session progress: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit progress: %w", err)
	}
	return nil
}

func (p *PostgresStore) ListDevices(ctx context.Context, sessionID string) ([]models.Device, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT id, session_id, name, progress_ms, joined_at, last_updated
		FROM devices
		WHERE session_id = $1
		ORDER BY sequence ASC`, sessionID)
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

func (p *PostgresStore) DeleteDevice(ctx context.Context, sessionID, deviceID string) error {
	tag, err := p.pool.Exec(ctx, `DELETE FROM devices WHERE id = $1 AND session_id = $2`, deviceID, sessionID)
	if err != nil {
		return fmt.Errorf("failed to delete device: %w", err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	if _, err := p.GetSession(ctx, models.IDKey(sessionID)); err != nil {
		return err
	}
	return shared.ErrDeviceNotInSession
}

func (p *PostgresStore) DeleteSession(ctx context.Context, sessionID string) error {
	tag, err := p.pool.Exec(ctx, `DELETE FROM sessions WHERE id = $1`, sessionID)
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrSessionNotFound
	}
	return nil
}

func (p *PostgresStore) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	tag, err := p.pool.Exec(ctx, `DELETE FROM sessions WHERE expires_at <= $1`, now.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired sessions: %w", err)
	}
	return int(tag.RowsAffected()), nil
}
