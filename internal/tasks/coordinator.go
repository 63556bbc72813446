package tasks

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/jonboulle/clockwork"

	"github.com/desertthunder/nowplaying/internal/models"
	"github.com/desertthunder/nowplaying/internal/playback"
	"github.com/desertthunder/nowplaying/internal/services"
	"github.com/desertthunder/nowplaying/internal/shared"
)

const (
	DefaultHostInterval = 500 * time.Millisecond
	DefaultPollInterval = time.Second

	// TrackEndThreshold is the percentage at which a track counts as finished.
	TrackEndThreshold = 99.99
)

// Role is the part a device plays in a session.
type Role int

const (
	RoleFollower Role = iota
	RoleHost
)

func (r Role) String() string {
	switch r {
	case RoleHost:
		return "host"
	case RoleFollower:
		return "follower"
	default:
		return ""
	}
}

// ParseRole reads "host" or "follower".
func ParseRole(s string) (Role, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "host":
		return RoleHost, nil
	case "follower", "follow":
		return RoleFollower, nil
	default:
		return 0, fmt.Errorf("%w: unknown role %q", shared.ErrInvalidArgument, s)
	}
}

// Config describes one device's participation in a session.
type Config struct {
	SessionKey   string // Session id or join code
	DeviceID     string // Generated when empty
	DeviceName   string // Derived from DeviceID when empty
	Role         Role
	HostInterval time.Duration
	PollInterval time.Duration
	TickInterval time.Duration
}

// Coordinator drives one device through the reconciliation protocol.
//
// A host reads its player every HostInterval and pushes the position. Every device polls the
// session every PollInterval for the roster; a follower also adopts the session position.
// Between network events the interpolator extrapolates, rendered every TickInterval.
// All loops belong to one task group bound to the context given to Start.
type Coordinator struct {
	api      services.SessionAPI
	provider services.Provider
	interp   *playback.Interpolator
	clock    clockwork.Clock
	logger   *log.Logger
	cfg      Config
	events   chan<- Event

	mu        sync.RWMutex
	sessionID string
	state     *models.SessionState
	track     *models.Snapshot
	ended     bool

	cancel   context.CancelFunc
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// Option configures a [Coordinator].
type Option func(*Coordinator)

// WithProvider sets the local player. Required for hosts; followers use it for track metadata.
func WithProvider(p services.Provider) Option {
	return func(c *Coordinator) { c.provider = p }
}

// WithClock replaces the real clock driving the loops and the interpolator.
func WithClock(clock clockwork.Clock) Option {
	return func(c *Coordinator) { c.clock = clock }
}

// WithLogger sets the logger; the session id is attached once joined.
func WithLogger(l *log.Logger) Option {
	return func(c *Coordinator) { c.logger = l }
}

// WithEvents sets the channel events are sent to. Sends never block; events are dropped when it is full.
func WithEvents(ch chan<- Event) Option {
	return func(c *Coordinator) { c.events = ch }
}

// NewCoordinator validates cfg and fills defaults.
func NewCoordinator(api services.SessionAPI, cfg Config, opts ...Option) (*Coordinator, error) {
	cfg.SessionKey = strings.TrimSpace(cfg.SessionKey)
	if cfg.SessionKey == "" {
		return nil, fmt.Errorf("%w: session id or code", shared.ErrMissingArgument)
	}
	if cfg.DeviceID == "" {
		cfg.DeviceID = shared.GenerateDeviceID()
	}
	if cfg.DeviceName == "" {
		cfg.DeviceName = shared.DeviceName(cfg.DeviceID)
	}
	if cfg.HostInterval <= 0 {
		cfg.HostInterval = DefaultHostInterval
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = playback.DefaultTickInterval
	}

	c := &Coordinator{api: api, cfg: cfg, clock: clockwork.NewRealClock()}
	for _, opt := range opts {
		opt(c)
	}

	if cfg.Role == RoleHost && c.provider == nil {
		return nil, fmt.Errorf("%w: a host needs a player to read", shared.ErrInvalidArgument)
	}
	if c.logger == nil {
		c.logger = shared.NewLogger(nil)
	}
	c.logger = shared.WithLogger(c.logger, "component", "coordinator", "role", cfg.Role.String(), "device", cfg.DeviceID)
	c.interp = playback.NewInterpolator(c.clock)
	return c, nil
}

// Start joins the session and launches the loops. They run until ctx is cancelled or Stop is called.
func (c *Coordinator) Start(ctx context.Context) error {
	var progress int64
	if c.cfg.Role == RoleHost {
		snap, err := c.provider.CurrentlyPlaying(ctx)
		if err != nil {
			return fmt.Errorf("failed to read %s player: %w", c.provider.Name(), err)
		}
		c.applySnapshot(snap)
		progress = snap.ProgressMs
	}

	state, err := c.api.Join(ctx, c.cfg.SessionKey, c.cfg.DeviceID, c.cfg.DeviceName, progress)
	if err != nil {
		return fmt.Errorf("failed to join session: %w", err)
	}
	receivedAt := c.clock.Now()

	c.mu.Lock()
	c.sessionID = state.ID
	c.state = state
	c.mu.Unlock()

	if c.cfg.Role == RoleFollower {
		c.refreshTrack(ctx)
		c.observeState(state, receivedAt)
	}

	c.logger = shared.WithLogger(c.logger, "session", state.ID)
	c.logger.Info("joined session", "code", state.Code, "devices", len(state.Devices))
	c.send(joinedEvent(state, c.cfg.Role))

	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel

	if c.cfg.Role == RoleHost {
		c.wg.Add(1)
		go c.every(runCtx, c.cfg.HostInterval, c.hostTick)
	}

	c.wg.Add(2)
	go c.every(runCtx, c.cfg.PollInterval, c.pollTick)
	go func() {
		defer c.wg.Done()
		c.interp.Run(runCtx, c.cfg.TickInterval, c.renderTick)
	}()
	return nil
}

// Wait blocks until every loop has exited.
func (c *Coordinator) Wait() {
	c.wg.Wait()
}

// Stop cancels the loops, waits for them, and tells the server the device left.
// Leaving is best-effort; its error is returned but the local loops are stopped regardless.
func (c *Coordinator) Stop(ctx context.Context) error {
	var err error
	c.stopOnce.Do(func() {
		if c.cancel != nil {
			c.cancel()
		}
		c.wg.Wait()

		id := c.SessionID()
		if id == "" {
			return
		}
		if err = c.api.Leave(ctx, id, c.cfg.DeviceID); err != nil {
			c.logger.Warn("leave failed", "error", err)
			err = fmt.Errorf("failed to leave session: %w", err)
		}
		c.logger.Info("left session")
		c.send(leftEvent(c.cfg.SessionKey))
	})
	return err
}

// every calls fn on each tick of a ticker until ctx is done.
func (c *Coordinator) every(ctx context.Context, interval time.Duration, fn func(context.Context)) {
	defer c.wg.Done()

	ticker := c.clock.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			fn(ctx)
		}
	}
}

// hostTick reads the player and pushes its position. Failures wait for the next tick.
func (c *Coordinator) hostTick(ctx context.Context) {
	snap, err := c.provider.CurrentlyPlaying(ctx)
	if ctx.Err() != nil {
		return
	}
	if err != nil {
		c.logger.Warn("player read failed", "provider", c.provider.Name(), "error", err)
		c.send(errorEvent("read player", err))
		return
	}

	pos := c.applySnapshot(snap)
	c.send(snapshotEvent(snap, pos))
	if !snap.HasTrack() {
		return
	}

	playing := snap.Playing
	if err := c.api.Update(ctx, c.SessionID(), c.cfg.DeviceID, snap.ProgressMs, &playing); err != nil {
		if ctx.Err() != nil {
			return
		}
		c.logger.Warn("update failed", "error", err)
		c.send(errorEvent("update", err))
		return
	}
	c.logger.Debug("pushed position", "progress_ms", snap.ProgressMs, "playing", playing)
	c.send(pushedEvent(snap.ProgressMs))
}

// pollTick fetches the session. Followers adopt its position as their new ground truth.
func (c *Coordinator) pollTick(ctx context.Context) {
	state, err := c.api.Get(ctx, c.SessionID())
	if ctx.Err() != nil {
		return
	}
	if err != nil {
		c.logger.Warn("poll failed", "error", err)
		c.send(errorEvent("poll", err))
		return
	}
	receivedAt := c.clock.Now()

	c.mu.Lock()
	c.state = state
	c.mu.Unlock()

	if c.cfg.Role == RoleFollower {
		c.refreshTrack(ctx)
		if ctx.Err() != nil {
			return
		}
		c.observeState(state, receivedAt)
	}
	c.send(polledEvent(state, c.interp.Now()))
}

func (c *Coordinator) renderTick(pos playback.Position) {
	c.send(tickEvent(pos))

	c.mu.Lock()
	fire := !c.ended && c.track.HasTrack() && pos.DurationMs > 0 && pos.Percent >= TrackEndThreshold
	if fire {
		c.ended = true
	}
	track := c.track
	c.mu.Unlock()

	if fire {
		c.logger.Debug("track ended", "title", track.Title)
		c.send(trackEndedEvent(track, pos))
	}
}

// applySnapshot makes a host's player observation the interpolator's ground truth.
func (c *Coordinator) applySnapshot(snap *models.Snapshot) playback.Position {
	captured := snap.CapturedAt
	if captured.IsZero() {
		captured = c.clock.Now()
	}

	c.interp.Reset(playback.Snapshot{
		BaseProgressMs: snap.ProgressMs,
		CapturedAt:     captured,
		Playing:        snap.Playing,
		DurationMs:     snap.DurationMs,
	})
	c.setTrack(snap)
	return c.interp.Now()
}

// observeState makes a polled session position a follower's ground truth, captured at receipt.
func (c *Coordinator) observeState(state *models.SessionState, receivedAt time.Time) {
	var duration int64
	if track := c.Track(); track != nil {
		duration = track.DurationMs
	}

	c.interp.Reset(playback.Snapshot{
		BaseProgressMs: state.CurrentProgressMs,
		CapturedAt:     receivedAt,
		Playing:        state.IsPlaying,
		DurationMs:     duration,
	})
}

// refreshTrack reads track metadata from a follower's own player, when it has one.
func (c *Coordinator) refreshTrack(ctx context.Context) {
	if c.provider == nil {
		return
	}

	snap, err := c.provider.CurrentlyPlaying(ctx)
	if err != nil {
		if ctx.Err() == nil {
			c.logger.Debug("track metadata unavailable", "error", err)
		}
		return
	}
	c.setTrack(snap)
}

func (c *Coordinator) setTrack(snap *models.Snapshot) {
	c.mu.Lock()
	changed := c.track.TrackKey() != snap.TrackKey()
	c.track = snap
	if changed {
		c.ended = false
	}
	c.mu.Unlock()

	if changed && snap.HasTrack() {
		c.logger.Info("track changed", "title", snap.Title, "artist", snap.Artist)
		c.send(trackChangedEvent(snap))
	}
}

// send delivers an event without blocking.
func (c *Coordinator) send(ev Event) {
	if c.events == nil {
		return
	}
	select {
	case c.events <- ev:
	default:
	}
}

// SessionID returns the resolved session id, empty before Start.
func (c *Coordinator) SessionID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.sessionID
}

// State returns the last session state received.
func (c *Coordinator) State() *models.SessionState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Track returns the last track observed.
func (c *Coordinator) Track() *models.Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.track
}

// Position extrapolates the current ground truth to now.
func (c *Coordinator) Position() playback.Position {
	return c.interp.Now()
}

// Config returns the effective configuration.
func (c *Coordinator) Config() Config {
	return c.cfg
}
