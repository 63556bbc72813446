package playback

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
)

var t0 = time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

func TestInterpolate(t *testing.T) {
	playing := Snapshot{BaseProgressMs: 5000, CapturedAt: t0, Playing: true, DurationMs: 10000}

	tc := []struct {
		name    string
		snap    Snapshot
		at      time.Time
		want    int64
		percent float64
	}{
		{name: "two seconds later", snap: playing, at: t0.Add(2 * time.Second), want: 7000, percent: 70},
		{name: "capped at duration", snap: playing, at: t0.Add(6 * time.Second), want: 10000, percent: 100},
		{name: "at capture", snap: playing, at: t0, want: 5000, percent: 50},
		{name: "clock behind capture", snap: playing, at: t0.Add(-time.Second), want: 5000, percent: 50},
		{
			name:    "paused stays put",
			snap:    Snapshot{BaseProgressMs: 5000, CapturedAt: t0, Playing: false, DurationMs: 10000},
			at:      t0.Add(time.Minute),
			want:    5000,
			percent: 50,
		},
		{
			name:    "unknown duration holds position",
			snap:    Snapshot{BaseProgressMs: 5000, CapturedAt: t0, Playing: true},
			at:      t0.Add(10 * time.Second),
			want:    5000,
			percent: 0,
		},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			pos := Interpolate(tt.snap, tt.at)
			if pos.ProgressMs != tt.want {
				t.Errorf("progress = %d, want %d", pos.ProgressMs, tt.want)
			}
			if pos.Percent != tt.percent {
				t.Errorf("percent = %v, want %v", pos.Percent, tt.percent)
			}
		})
	}
}

func TestInterpolator(t *testing.T) {
	t.Run("Observe captures the clock", func(t *testing.T) {
		clock := clockwork.NewFakeClockAt(t0)
		interp := NewInterpolator(clock)

		if _, ok := interp.Snapshot(); ok {
			t.Error("expected no snapshot before the first observation")
		}

		interp.Observe(5000, true, 10000)
		clock.Advance(2 * time.Second)

		pos := interp.Now()
		if pos.ProgressMs != 7000 || pos.Percent != 70 {
			t.Errorf("unexpected position %+v", pos)
		}

		clock.Advance(4 * time.Second)
		if pos := interp.Now(); pos.ProgressMs != 10000 || pos.Percent != 100 {
			t.Errorf("expected capped position, got %+v", pos)
		}
	})

	t.Run("new snapshot resets the base", func(t *testing.T) {
		clock := clockwork.NewFakeClockAt(t0)
		interp := NewInterpolator(clock)

		interp.Observe(5000, true, 10000)
		clock.Advance(3 * time.Second)
		interp.Observe(1000, true, 10000)

		if pos := interp.Now(); pos.ProgressMs != 1000 {
			t.Errorf("expected reset to 1000, got %d", pos.ProgressMs)
		}
	})

	t.Run("SetDuration", func(t *testing.T) {
		clock := clockwork.NewFakeClockAt(t0)
		interp := NewInterpolator(clock)

		interp.Observe(5000, true, 0)
		interp.SetDuration(20000)
		clock.Advance(5 * time.Second)

		if pos := interp.Now(); pos.ProgressMs != 10000 || pos.Percent != 50 {
			t.Errorf("unexpected position %+v", pos)
		}
	})

	t.Run("concurrent readers and writer", func(t *testing.T) {
		interp := NewInterpolator(nil)
		var wg sync.WaitGroup

		for r := 0; r < 4; r++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for range 200 {
					pos := interp.Now()
					if pos.DurationMs > 0 && pos.ProgressMs > pos.DurationMs {
						t.Errorf("position past duration: %+v", pos)
						return
					}
				}
			}()
		}

		for i := range 200 {
			interp.Observe(int64(i*10), i%2 == 0, 10000)
		}
		wg.Wait()
	})

	t.Run("Run ticks until cancelled", func(t *testing.T) {
		clock := clockwork.NewFakeClockAt(t0)
		interp := NewInterpolator(clock)
		interp.Observe(0, true, 60000)

		ctx, cancel := context.WithCancel(context.Background())
		ticks := make(chan Position, 10)
		done := make(chan struct{})
		go func() {
			interp.Run(ctx, DefaultTickInterval, func(p Position) { ticks <- p })
			close(done)
		}()

		waitCtx, waitCancel := context.WithTimeout(ctx, 2*time.Second)
		defer waitCancel()
		if err := clock.BlockUntilContext(waitCtx, 1); err != nil {
			t.Fatalf("ticker not started: %v", err)
		}

		clock.Advance(DefaultTickInterval)
		select {
		case p := <-ticks:
			if p.ProgressMs != 100 {
				t.Errorf("expected 100ms after one tick, got %d", p.ProgressMs)
			}
		case <-time.After(2 * time.Second):
			t.Fatal("no tick received")
		}

		cancel()
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("Run did not return after cancel")
		}
	})
}
