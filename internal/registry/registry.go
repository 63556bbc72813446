package registry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/jonboulle/clockwork"

	"github.com/desertthunder/nowplaying/internal/models"
	"github.com/desertthunder/nowplaying/internal/shared"
)

// MaxCodeAttempts bounds how many codes are drawn before Create gives up.
const MaxCodeAttempts = 8

// Registry manages sync sessions and their devices on top of a [models.Store].
type Registry struct {
	store   models.Store
	clock   clockwork.Clock
	ttl     time.Duration
	logger  *log.Logger
	newCode CodeGenerator
	newID   func() string
}

// Option configures a [Registry].
type Option func(*Registry)

// WithClock replaces the real clock, typically with a [clockwork.FakeClock].
func WithClock(c clockwork.Clock) Option {
	return func(r *Registry) { r.clock = c }
}

// WithTTL sets how long sessions live after creation.
func WithTTL(ttl time.Duration) Option {
	return func(r *Registry) {
		if ttl > 0 {
			r.ttl = ttl
		}
	}
}

// WithLogger sets the logger lifecycle events are written to.
func WithLogger(l *log.Logger) Option {
	return func(r *Registry) { r.logger = l }
}

// WithCodeGenerator replaces [RandomCode].
func WithCodeGenerator(g CodeGenerator) Option {
	return func(r *Registry) { r.newCode = g }
}

// New creates a Registry backed by store.
func New(store models.Store, opts ...Option) *Registry {
	r := &Registry{
		store:   store,
		clock:   clockwork.NewRealClock(),
		ttl:     models.DefaultSessionTTL,
		newCode: RandomCode,
		newID:   shared.GenerateID,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = shared.NewLogger(nil)
	}
	r.logger = shared.WithLogger(r.logger, "component", "registry")
	return r
}

// Clock returns the registry's time source.
func (r *Registry) Clock() clockwork.Clock { return r.clock }

// Create starts a new session with a fresh id and a join code unused by any stored session.
func (r *Registry) Create(ctx context.Context) (*models.Session, error) {
	for range MaxCodeAttempts {
		code, err := r.newCode()
		if err != nil {
			return nil, err
		}

		session := models.NewSession(r.newID(), code, r.clock.Now(), r.ttl)
		err = r.store.CreateSession(ctx, session)
		if errors.Is(err, shared.ErrCodeTaken) {
			r.logger.Debug("code collision", "code", code)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to create session: %w", err)
		}

		r.logger.Info("session created", "session", session.ID, "code", session.Code)
		return &session, nil
	}
	return nil, fmt.Errorf("failed to allocate session code after %d attempts: %w", MaxCodeAttempts, shared.ErrCodeTaken)
}

// Resolve finds a live session by id or code. Expired sessions are reported as not found.
func (r *Registry) Resolve(ctx context.Context, key models.LookupKey) (*models.Session, error) {
	session, err := r.store.GetSession(ctx, key)
	if err != nil {
		return nil, err
	}
	if session.Expired(r.clock.Now()) {
		return nil, shared.ErrSessionNotFound
	}
	return session, nil
}

// State resolves a session and loads its device roster.
func (r *Registry) State(ctx context.Context, key models.LookupKey) (*models.SessionState, error) {
	session, err := r.Resolve(ctx, key)
	if err != nil {
		return nil, err
	}

	devices, err := r.store.ListDevices(ctx, session.ID)
	if err != nil {
		return nil, err
	}

	state := models.NewSessionState(*session, devices)
	return &state, nil
}

// AddDevice joins a device to a live session. Joining again refreshes the device.
//
// An empty name defaults to "Device" plus the last four characters of the id.
func (r *Registry) AddDevice(ctx context.Context, sessionID, deviceID, name string, progressMs int64) error {
	if _, err := r.Resolve(ctx, models.IDKey(sessionID)); err != nil {
		return err
	}
	if deviceID == "" {
		return fmt.Errorf("%w: device id is required", shared.ErrInvalidInput)
	}
	if name == "" {
		name = shared.DeviceName(deviceID)
	}

	now := r.clock.Now()
	err := r.store.UpsertDevice(ctx, models.Device{
		ID:          deviceID,
		Name:        name,
		SessionID:   sessionID,
		ProgressMs:  max(progressMs, 0),
		JoinedAt:    now,
		LastUpdated: now,
	})
	if err != nil {
		return err
	}

	r.logger.Debug("device joined", "session", sessionID, "device", deviceID)
	return nil
}

// UpdateProgress records a device's position as the session's current position.
//
// playing may be nil to leave the session's playing flag unchanged.
func (r *Registry) UpdateProgress(ctx context.Context, sessionID, deviceID string, progressMs int64, playing *bool) error {
	if _, err := r.Resolve(ctx, models.IDKey(sessionID)); err != nil {
		return err
	}

	return r.store.UpdateProgress(ctx, models.ProgressUpdate{
		SessionID:  sessionID,
		DeviceID:   deviceID,
		ProgressMs: max(progressMs, 0),
		IsPlaying:  playing,
		At:         r.clock.Now(),
	})
}

// ListDevices returns the session's devices in join order.
func (r *Registry) ListDevices(ctx context.Context, sessionID string) ([]models.Device, error) {
	if _, err := r.Resolve(ctx, models.IDKey(sessionID)); err != nil {
		return nil, err
	}
	return r.store.ListDevices(ctx, sessionID)
}

// RemoveDevice takes a device out of a session.
func (r *Registry) RemoveDevice(ctx context.Context, sessionID, deviceID string) error {
	if err := r.store.DeleteDevice(ctx, sessionID, deviceID); err != nil {
		return err
	}
	r.logger.Debug("device left", "session", sessionID, "device", deviceID)
	return nil
}

// Teardown deletes a session and its devices before expiry.
func (r *Registry) Teardown(ctx context.Context, sessionID string) error {
	if err := r.store.DeleteSession(ctx, sessionID); err != nil {
		return err
	}
	r.logger.Info("session torn down", "session", sessionID)
	return nil
}

// ExpireSweep deletes every expired session and reports how many were removed.
func (r *Registry) ExpireSweep(ctx context.Context) (int, error) {
	removed, err := r.store.DeleteExpired(ctx, r.clock.Now())
	if err != nil {
		return 0, fmt.Errorf("failed to sweep sessions: %w", err)
	}
	return removed, nil
}
