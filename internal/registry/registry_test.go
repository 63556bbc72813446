package registry

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/desertthunder/nowplaying/internal/models"
	"github.com/desertthunder/nowplaying/internal/repositories"
	"github.com/desertthunder/nowplaying/internal/shared"
)

var start = time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

func newTestRegistry(t *testing.T, opts ...Option) (*Registry, *clockwork.FakeClock) {
	t.Helper()

	clock := clockwork.NewFakeClockAt(start)
	opts = append([]Option{WithClock(clock), WithLogger(shared.NewLogger(io.Discard))}, opts...)
	return New(repositories.NewMemoryStore(), opts...), clock
}

func mustKey(t *testing.T, raw string) models.LookupKey {
	t.Helper()
	key, err := models.ParseLookupKey(raw)
	if err != nil {
		t.Fatalf("failed to parse key %q: %v", raw, err)
	}
	return key
}

func TestRandomCode(t *testing.T) {
	seen := map[string]bool{}
	for range 50 {
		code, err := RandomCode()
		if err != nil {
			t.Fatalf("RandomCode failed: %v", err)
		}
		if len(code) != models.CodeLength {
			t.Fatalf("expected %d characters, got %q", models.CodeLength, code)
		}
		for _, r := range code {
			if !strings.ContainsRune(models.CodeAlphabet, r) {
				t.Fatalf("code %q has character outside the alphabet", code)
			}
		}
		seen[code] = true
	}
	if len(seen) < 45 {
		t.Errorf("expected mostly distinct codes, got %d of 50", len(seen))
	}
}

func TestRegistry(t *testing.T) {
	ctx := context.Background()

	t.Run("Create", func(t *testing.T) {
		reg, _ := newTestRegistry(t)

		a, err := reg.Create(ctx)
		if err != nil {
			t.Fatalf("create failed: %v", err)
		}
		b, err := reg.Create(ctx)
		if err != nil {
			t.Fatalf("create failed: %v", err)
		}

		if a.ID == b.ID || a.Code == b.Code {
			t.Errorf("consecutive sessions should differ: %+v %+v", a, b)
		}
		if len(a.ID) != 36 {
			t.Errorf("expected uuid session id, got %q", a.ID)
		}
		if !a.ExpiresAt.Equal(start.Add(24 * time.Hour)) {
			t.Errorf("expected 24h ttl, got expiry %v", a.ExpiresAt)
		}
	})

	t.Run("Create retries code collisions", func(t *testing.T) {
		codes := []string{"AAAAAA", "AAAAAA", "BBBBBB"}
		next := func() (string, error) {
			c := codes[0]
			codes = codes[1:]
			return c, nil
		}
		reg, _ := newTestRegistry(t, WithCodeGenerator(next))

		first, err := reg.Create(ctx)
		if err != nil {
			t.Fatalf("create failed: %v", err)
		}
		second, err := reg.Create(ctx)
		if err != nil {
			t.Fatalf("create should retry past a collision: %v", err)
		}
		if first.Code != "AAAAAA" || second.Code != "BBBBBB" {
			t.Errorf("unexpected codes %s, %s", first.Code, second.Code)
		}
	})

	t.Run("Create gives up after repeated collisions", func(t *testing.T) {
		calls := 0
		same := func() (string, error) {
			calls++
			return "CCCCCC", nil
		}
		reg, _ := newTestRegistry(t, WithCodeGenerator(same))

		if _, err := reg.Create(ctx); err != nil {
			t.Fatalf("create failed: %v", err)
		}
		calls = 0

		_, err := reg.Create(ctx)
		if !errors.Is(err, shared.ErrCodeTaken) {
			t.Errorf("expected ErrCodeTaken, got %v", err)
		}
		if calls != MaxCodeAttempts {
			t.Errorf("expected %d draws, got %d", MaxCodeAttempts, calls)
		}
	})

	t.Run("Resolve by code matches resolve by id", func(t *testing.T) {
		reg, _ := newTestRegistry(t)
		session, err := reg.Create(ctx)
		if err != nil {
			t.Fatalf("create failed: %v", err)
		}

		byID, err := reg.Resolve(ctx, mustKey(t, session.ID))
		if err != nil {
			t.Fatalf("resolve by id failed: %v", err)
		}
		byCode, err := reg.Resolve(ctx, mustKey(t, strings.ToLower(session.Code)))
		if err != nil {
			t.Fatalf("resolve by code failed: %v", err)
		}
		if byID.ID != byCode.ID {
			t.Errorf("expected same session, got %s and %s", byID.ID, byCode.ID)
		}
	})

	t.Run("Resolve unknown", func(t *testing.T) {
		reg, _ := newTestRegistry(t)
		if _, err := reg.Resolve(ctx, mustKey(t, "ZZZZZZ")); !errors.Is(err, shared.ErrSessionNotFound) {
			t.Errorf("expected ErrSessionNotFound, got %v", err)
		}
	})

	t.Run("expired session is unresolvable before sweep", func(t *testing.T) {
		reg, clock := newTestRegistry(t)
		session, err := reg.Create(ctx)
		if err != nil {
			t.Fatalf("create failed: %v", err)
		}

		clock.Advance(24*time.Hour + time.Second)

		if _, err := reg.Resolve(ctx, mustKey(t, session.ID)); !errors.Is(err, shared.ErrSessionNotFound) {
			t.Errorf("expected ErrSessionNotFound by id, got %v", err)
		}
		if _, err := reg.Resolve(ctx, mustKey(t, session.Code)); !errors.Is(err, shared.ErrSessionNotFound) {
			t.Errorf("expected ErrSessionNotFound by code, got %v", err)
		}
		if err := reg.AddDevice(ctx, session.ID, "device_a", "", 0); !errors.Is(err, shared.ErrSessionNotFound) {
			t.Errorf("expected joins to an expired session to fail, got %v", err)
		}
	})

	t.Run("AddDevice", func(t *testing.T) {
		reg, clock := newTestRegistry(t)
		session, err := reg.Create(ctx)
		if err != nil {
			t.Fatalf("create failed: %v", err)
		}

		if err := reg.AddDevice(ctx, session.ID, "device_abcd1234", "", 0); err != nil {
			t.Fatalf("add failed: %v", err)
		}
		clock.Advance(time.Second)
		if err := reg.AddDevice(ctx, session.ID, "device_abcd1234", "", 500); err != nil {
			t.Fatalf("repeat add should succeed: %v", err)
		}

		devices, err := reg.ListDevices(ctx, session.ID)
		if err != nil {
			t.Fatalf("list failed: %v", err)
		}
		if len(devices) != 1 {
			t.Fatalf("expected one device after repeat join, got %d", len(devices))
		}
		if devices[0].Name != "Device 1234" {
			t.Errorf("expected default name, got %q", devices[0].Name)
		}
		if !devices[0].LastUpdated.Equal(start.Add(time.Second)) {
			t.Errorf("expected refreshed last update, got %v", devices[0].LastUpdated)
		}

		if err := reg.AddDevice(ctx, session.ID, "", "", 0); !errors.Is(err, shared.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput for empty device id, got %v", err)
		}
	})

	t.Run("UpdateProgress", func(t *testing.T) {
		reg, clock := newTestRegistry(t)
		session, err := reg.Create(ctx)
		if err != nil {
			t.Fatalf("create failed: %v", err)
		}

		if err := reg.UpdateProgress(ctx, session.ID, "device_a", 1000, nil); !errors.Is(err, shared.ErrDeviceNotInSession) {
			t.Fatalf("expected ErrDeviceNotInSession before join, got %v", err)
		}

		if err := reg.AddDevice(ctx, session.ID, "device_a", "Host", 0); err != nil {
			t.Fatalf("add failed: %v", err)
		}

		clock.Advance(2 * time.Second)
		if err := reg.UpdateProgress(ctx, session.ID, "device_a", 15000, nil); err != nil {
			t.Fatalf("update failed: %v", err)
		}

		state, err := reg.State(ctx, mustKey(t, session.Code))
		if err != nil {
			t.Fatalf("state failed: %v", err)
		}
		if state.CurrentProgressMs != 15000 {
			t.Errorf("expected session progress 15000, got %d", state.CurrentProgressMs)
		}
		if state.Devices[0].ProgressMs != 15000 || !state.Devices[0].LastUpdated.Equal(start.Add(2*time.Second)) {
			t.Errorf("device not updated: %+v", state.Devices[0])
		}
	})

	t.Run("last write wins between hosts", func(t *testing.T) {
		reg, _ := newTestRegistry(t)
		session, _ := reg.Create(ctx)
		for _, id := range []string{"device_a", "device_b"} {
			if err := reg.AddDevice(ctx, session.ID, id, "", 0); err != nil {
				t.Fatalf("add failed: %v", err)
			}
		}

		_ = reg.UpdateProgress(ctx, session.ID, "device_a", 9000, nil)
		_ = reg.UpdateProgress(ctx, session.ID, "device_b", 3000, nil)

		state, _ := reg.State(ctx, models.IDKey(session.ID))
		if state.CurrentProgressMs != 3000 {
			t.Errorf("expected last write to win, got %d", state.CurrentProgressMs)
		}
	})

	t.Run("RemoveDevice and Teardown", func(t *testing.T) {
		reg, _ := newTestRegistry(t)
		session, _ := reg.Create(ctx)
		if err := reg.AddDevice(ctx, session.ID, "device_a", "", 0); err != nil {
			t.Fatalf("add failed: %v", err)
		}

		if err := reg.RemoveDevice(ctx, session.ID, "device_a"); err != nil {
			t.Fatalf("remove failed: %v", err)
		}
		if err := reg.UpdateProgress(ctx, session.ID, "device_a", 1, nil); !errors.Is(err, shared.ErrDeviceNotInSession) {
			t.Errorf("expected removed device to be rejected, got %v", err)
		}

		if err := reg.Teardown(ctx, session.ID); err != nil {
			t.Fatalf("teardown failed: %v", err)
		}
		if _, err := reg.Resolve(ctx, models.IDKey(session.ID)); !errors.Is(err, shared.ErrSessionNotFound) {
			t.Errorf("expected torn down session to be gone, got %v", err)
		}
	})

	t.Run("ExpireSweep", func(t *testing.T) {
		reg, clock := newTestRegistry(t, WithTTL(time.Hour))
		old, _ := reg.Create(ctx)
		clock.Advance(30 * time.Minute)
		fresh, _ := reg.Create(ctx)
		clock.Advance(30 * time.Minute)

		removed, err := reg.ExpireSweep(ctx)
		if err != nil {
			t.Fatalf("sweep failed: %v", err)
		}
		if removed != 1 {
			t.Errorf("expected 1 removed, got %d", removed)
		}
		if _, err := reg.Resolve(ctx, models.IDKey(old.ID)); !errors.Is(err, shared.ErrSessionNotFound) {
			t.Errorf("expected old session gone, got %v", err)
		}
		if _, err := reg.Resolve(ctx, models.IDKey(fresh.ID)); err != nil {
			t.Errorf("expected fresh session to survive, got %v", err)
		}
	})
}

func TestRunSweeper(t *testing.T) {
	store := repositories.NewMemoryStore()
	clock := clockwork.NewFakeClockAt(start)
	reg := New(store, WithClock(clock), WithTTL(time.Minute), WithLogger(shared.NewLogger(io.Discard)))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	session, err := reg.Create(ctx)
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	done := make(chan struct{})
	go func() {
		reg.RunSweeper(ctx, time.Hour)
		close(done)
	}()

	waitCtx, waitCancel := context.WithTimeout(ctx, 2*time.Second)
	defer waitCancel()
	if err := clock.BlockUntilContext(waitCtx, 1); err != nil {
		t.Fatalf("sweeper never started its ticker: %v", err)
	}

	clock.Advance(time.Hour)

	deadline := time.Now().Add(2 * time.Second)
	for {
		if _, err := store.GetSession(ctx, models.IDKey(session.ID)); errors.Is(err, shared.ErrSessionNotFound) {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("expired session was not swept")
		}
		time.Sleep(5 * time.Millisecond)
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("sweeper did not stop after cancel")
	}
}
