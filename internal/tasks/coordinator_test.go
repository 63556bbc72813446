package tasks

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/desertthunder/nowplaying/internal/models"
	"github.com/desertthunder/nowplaying/internal/registry"
	"github.com/desertthunder/nowplaying/internal/repositories"
	"github.com/desertthunder/nowplaying/internal/shared"
	tu "github.com/desertthunder/nowplaying/internal/testing"
)

var epoch = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

type harness struct {
	clock *clockwork.FakeClock
	reg   *registry.Registry
	api   *tu.RegistryAPI
	code  string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	clock := clockwork.NewFakeClockAt(epoch)
	store := repositories.NewMemoryStore()
	t.Cleanup(func() { store.Close() })

	reg := registry.New(store, registry.WithClock(clock), registry.WithLogger(shared.NewLogger(io.Discard)))
	api := &tu.RegistryAPI{Registry: reg}

	created, err := api.Create(context.Background())
	if err != nil {
		t.Fatalf("failed to create session: %v", err)
	}
	return &harness{clock: clock, reg: reg, api: api, code: created.Code}
}

func (h *harness) coordinator(t *testing.T, cfg Config, opts ...Option) *Coordinator {
	t.Helper()
	if cfg.SessionKey == "" {
		cfg.SessionKey = h.code
	}
	opts = append([]Option{WithClock(h.clock), WithLogger(shared.NewLogger(io.Discard))}, opts...)

	c, err := NewCoordinator(h.api, cfg, opts...)
	if err != nil {
		t.Fatalf("failed to create coordinator: %v", err)
	}
	return c
}

func (h *harness) state(t *testing.T) *models.SessionState {
	t.Helper()
	key, err := models.ParseLookupKey(h.code)
	if err != nil {
		t.Fatalf("bad code: %v", err)
	}
	state, err := h.reg.State(context.Background(), key)
	if err != nil {
		t.Fatalf("failed to load state: %v", err)
	}
	return state
}

// waitFor drains events until one of kind arrives.
func waitFor(t *testing.T, events <-chan Event, kind EventKind) Event {
	t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case ev := <-events:
			if ev.Kind == kind {
				return ev
			}
		case <-timeout:
			t.Fatalf("timed out waiting for %s event", kind)
		}
	}
}

func blockUntil(t *testing.T, clock *clockwork.FakeClock, n int) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := clock.BlockUntilContext(ctx, n); err != nil {
		t.Fatalf("expected %d tickers: %v", n, err)
	}
}

func TestParseRole(t *testing.T) {
	tests := []struct {
		in      string
		want    Role
		wantErr bool
	}{
		{"host", RoleHost, false},
		{" Follower ", RoleFollower, false},
		{"follow", RoleFollower, false},
		{"leader", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseRole(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseRole(%q) error = %v", tt.in, err)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("ParseRole(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestNewCoordinator(t *testing.T) {
	api := &tu.RegistryAPI{}

	t.Run("requires a session key", func(t *testing.T) {
		if _, err := NewCoordinator(api, Config{SessionKey: "  "}); !errors.Is(err, shared.ErrMissingArgument) {
			t.Errorf("expected ErrMissingArgument, got %v", err)
		}
	})

	t.Run("host requires a provider", func(t *testing.T) {
		if _, err := NewCoordinator(api, Config{SessionKey: "ABC234", Role: RoleHost}); !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
	})

	t.Run("fills defaults", func(t *testing.T) {
		c, err := NewCoordinator(api, Config{SessionKey: "ABC234"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		cfg := c.Config()
		if cfg.HostInterval != DefaultHostInterval || cfg.PollInterval != DefaultPollInterval || cfg.TickInterval != 100*time.Millisecond {
			t.Errorf("unexpected intervals %+v", cfg)
		}
		if len(cfg.DeviceID) != len("device_")+9 {
			t.Errorf("expected generated device id, got %q", cfg.DeviceID)
		}
		if cfg.DeviceName != shared.DeviceName(cfg.DeviceID) {
			t.Errorf("expected derived device name, got %q", cfg.DeviceName)
		}
	})
}

func TestCoordinator(t *testing.T) {
	ctx := context.Background()

	t.Run("host pushes and follower adopts", func(t *testing.T) {
		h := newHarness(t)
		provider := tu.NewFakeProvider(models.Snapshot{
			Title: "Song", Artist: "Artist", URI: "spotify:track:1",
			ProgressMs: 5000, DurationMs: 10000, Playing: true,
		})

		host := h.coordinator(t, Config{DeviceID: "device_host", Role: RoleHost}, WithProvider(provider))
		if err := host.Start(ctx); err != nil {
			t.Fatalf("host start failed: %v", err)
		}
		defer host.Stop(ctx)

		follower := h.coordinator(t, Config{DeviceID: "device_follow", Role: RoleFollower})
		if err := follower.Start(ctx); err != nil {
			t.Fatalf("follower start failed: %v", err)
		}
		defer follower.Stop(ctx)

		if follower.SessionID() != host.SessionID() || host.SessionID() == "" {
			t.Fatalf("expected both to resolve the same session, got %q and %q", host.SessionID(), follower.SessionID())
		}

		blockUntil(t, h.clock, 5)
		provider.Set(models.Snapshot{
			Title: "Song", Artist: "Artist", URI: "spotify:track:1",
			ProgressMs: 5500, DurationMs: 10000, Playing: true,
		})
		h.clock.Advance(500 * time.Millisecond)

		tu.Eventually(t, 2*time.Second, func() bool {
			s := h.state(t)
			return s.CurrentProgressMs == 5500 && s.IsPlaying
		}, "host position reaches the registry")

		h.clock.Advance(500 * time.Millisecond)
		tu.Eventually(t, 2*time.Second, func() bool {
			snap, ok := follower.interp.Snapshot()
			return ok && snap.BaseProgressMs == 5500 && snap.Playing
		}, "follower adopts the session position")

		snap, _ := follower.interp.Snapshot()
		if got := follower.interp.At(snap.CapturedAt.Add(2 * time.Second)); got.ProgressMs != 5500 {
			t.Errorf("expected follower without a track duration to hold 5500, got %d", got.ProgressMs)
		}

		follower.interp.SetDuration(10000)
		if got := follower.interp.At(snap.CapturedAt.Add(2 * time.Second)); got.ProgressMs != 7500 {
			t.Errorf("expected follower with a duration to extrapolate to 7500, got %d", got.ProgressMs)
		}

		tu.Eventually(t, 2*time.Second, func() bool {
			s := follower.State()
			return s != nil && len(s.Devices) == 2
		}, "follower sees both devices in the roster")
	})

	t.Run("track end fires once per track", func(t *testing.T) {
		h := newHarness(t)
		provider := tu.NewFakeProvider(models.Snapshot{
			Title: "Short", URI: "spotify:track:short", ProgressMs: 9950, DurationMs: 10000, Playing: true,
		})
		events := make(chan Event, 256)

		host := h.coordinator(t, Config{DeviceID: "device_host", Role: RoleHost}, WithProvider(provider), WithEvents(events))
		if err := host.Start(ctx); err != nil {
			t.Fatalf("start failed: %v", err)
		}
		defer host.Stop(ctx)

		waitFor(t, events, EventJoined)
		blockUntil(t, h.clock, 3)
		h.clock.Advance(100 * time.Millisecond)

		ended := waitFor(t, events, EventTrackEnded)
		if ended.Track == nil || ended.Track.Title != "Short" {
			t.Errorf("expected ended event for Short, got %+v", ended.Track)
		}
		if ended.Position.Percent < TrackEndThreshold {
			t.Errorf("expected percent at or above threshold, got %v", ended.Position.Percent)
		}

		h.clock.Advance(100 * time.Millisecond)
		waitFor(t, events, EventTick)
		provider.Set(models.Snapshot{Title: "Next", URI: "spotify:track:next", ProgressMs: 0, DurationMs: 200000, Playing: true})
		h.clock.Advance(300 * time.Millisecond)

		changed := waitFor(t, events, EventTrackChanged)
		if changed.Track.Title != "Next" {
			t.Errorf("expected change to Next, got %q", changed.Track.Title)
		}

		host.mu.RLock()
		stillEnded := host.ended
		host.mu.RUnlock()
		if stillEnded {
			t.Error("expected track end flag to reset on track change")
		}
	})

	t.Run("host failures are reported and retried next tick", func(t *testing.T) {
		h := newHarness(t)
		provider := tu.NewFakeProvider(models.Snapshot{Title: "Song", ProgressMs: 1000, DurationMs: 60000, Playing: true})
		events := make(chan Event, 256)

		host := h.coordinator(t, Config{DeviceID: "device_host", Role: RoleHost}, WithProvider(provider), WithEvents(events))
		if err := host.Start(ctx); err != nil {
			t.Fatalf("start failed: %v", err)
		}
		defer host.Stop(ctx)

		blockUntil(t, h.clock, 3)
		provider.Fail(shared.ErrAPIRequest)
		h.clock.Advance(500 * time.Millisecond)

		failed := waitFor(t, events, EventError)
		if !errors.Is(failed.Err, shared.ErrAPIRequest) {
			t.Errorf("expected ErrAPIRequest, got %v", failed.Err)
		}

		provider.Fail(nil)
		provider.Set(models.Snapshot{Title: "Song", ProgressMs: 2000, DurationMs: 60000, Playing: true})
		h.clock.Advance(500 * time.Millisecond)
		waitFor(t, events, EventPushed)

		if got := h.state(t).CurrentProgressMs; got != 2000 {
			t.Errorf("expected retry to push 2000, got %d", got)
		}
	})

	t.Run("nothing playing is not pushed", func(t *testing.T) {
		h := newHarness(t)
		provider := tu.NewFakeProvider(models.Snapshot{})
		events := make(chan Event, 256)

		host := h.coordinator(t, Config{DeviceID: "device_host", Role: RoleHost}, WithProvider(provider), WithEvents(events))
		if err := host.Start(ctx); err != nil {
			t.Fatalf("start failed: %v", err)
		}
		defer host.Stop(ctx)

		blockUntil(t, h.clock, 3)
		h.clock.Advance(500 * time.Millisecond)
		waitFor(t, events, EventSnapshot)

		h.clock.Advance(500 * time.Millisecond)
		waitFor(t, events, EventPolled)

		if s := h.state(t); s.IsPlaying || s.CurrentProgressMs != 0 {
			t.Errorf("expected untouched session, got %+v", s)
		}
	})

	t.Run("unknown session", func(t *testing.T) {
		h := newHarness(t)
		c := h.coordinator(t, Config{SessionKey: "ZZZZZZ"})
		if err := c.Start(ctx); !errors.Is(err, shared.ErrSessionNotFound) {
			t.Errorf("expected ErrSessionNotFound, got %v", err)
		}
		if err := c.Stop(ctx); err != nil {
			t.Errorf("stop before a successful start should be a no-op, got %v", err)
		}
	})

	t.Run("stop leaves and halts loops", func(t *testing.T) {
		h := newHarness(t)
		events := make(chan Event, 256)

		follower := h.coordinator(t, Config{DeviceID: "device_follow"}, WithEvents(events))
		if err := follower.Start(ctx); err != nil {
			t.Fatalf("start failed: %v", err)
		}
		if n := len(h.state(t).Devices); n != 1 {
			t.Fatalf("expected 1 device after join, got %d", n)
		}

		if err := follower.Stop(ctx); err != nil {
			t.Fatalf("stop failed: %v", err)
		}
		waitFor(t, events, EventLeft)

		if n := len(h.state(t).Devices); n != 0 {
			t.Errorf("expected device removed on leave, got %d", n)
		}
		if err := follower.Stop(ctx); err != nil {
			t.Errorf("second stop should be a no-op, got %v", err)
		}

		follower.Wait()
		h.clock.Advance(5 * time.Second)
		select {
		case ev := <-events:
			t.Errorf("expected no events after stop, got %s", ev.Kind)
		case <-time.After(50 * time.Millisecond):
		}
	})
}
