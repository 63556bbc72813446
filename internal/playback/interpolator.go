// Package playback extrapolates a smooth playback position between ground-truth observations.
package playback

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/desertthunder/nowplaying/internal/models"
)

// DefaultTickInterval is the render cadence, independent of network polling.
const DefaultTickInterval = 100 * time.Millisecond

// Snapshot is a ground-truth position and the instant it was observed.
type Snapshot struct {
	BaseProgressMs int64
	CapturedAt     time.Time
	Playing        bool
	DurationMs     int64
}

// Position is an extrapolated playback position.
type Position struct {
	ProgressMs int64
	DurationMs int64
	Percent    float64
	Playing    bool
}

// Interpolate extrapolates s to t.
//
// A paused snapshot stays at its base, as does one with an unknown duration.
// A playing one advances by the time elapsed since capture, capped at the duration.
func Interpolate(s Snapshot, t time.Time) Position {
	progress := s.BaseProgressMs
	if s.Playing && s.DurationMs > 0 {
		if elapsed := t.Sub(s.CapturedAt); elapsed > 0 {
			progress += elapsed.Milliseconds()
		}
	}
	if s.DurationMs > 0 && progress > s.DurationMs {
		progress = s.DurationMs
	}

	return Position{
		ProgressMs: progress,
		DurationMs: s.DurationMs,
		Percent:    models.Percent(progress, s.DurationMs),
		Playing:    s.Playing,
	}
}

// Interpolator holds the latest snapshot for one device.
//
// One writer replaces the snapshot; any number of readers extrapolate from it.
type Interpolator struct {
	mu    sync.RWMutex
	clock clockwork.Clock
	snap  Snapshot
	set   bool
}

// NewInterpolator creates an Interpolator reading time from clock; nil means the real clock.
func NewInterpolator(clock clockwork.Clock) *Interpolator {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Interpolator{clock: clock}
}

// Observe replaces the snapshot with a position captured now.
func (i *Interpolator) Observe(progressMs int64, playing bool, durationMs int64) {
	i.Reset(Snapshot{
		BaseProgressMs: progressMs,
		CapturedAt:     i.clock.Now(),
		Playing:        playing,
		DurationMs:     durationMs,
	})
}

// SetDuration updates the duration without moving the base position.
func (i *Interpolator) SetDuration(durationMs int64) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.snap.DurationMs = durationMs
}

// Reset replaces the snapshot.
func (i *Interpolator) Reset(s Snapshot) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.snap = s
	i.set = true
}

// Snapshot returns the current snapshot and whether one has been observed.
func (i *Interpolator) Snapshot() (Snapshot, bool) {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.snap, i.set
}

// At extrapolates the current snapshot to t.
func (i *Interpolator) At(t time.Time) Position {
	i.mu.RLock()
	s := i.snap
	i.mu.RUnlock()
	return Interpolate(s, t)
}

// Now extrapolates the current snapshot to the clock's present.
func (i *Interpolator) Now() Position {
	return i.At(i.clock.Now())
}

// Run calls fn with the extrapolated position every interval until ctx is done.
func (i *Interpolator) Run(ctx context.Context, interval time.Duration, fn func(Position)) {
	if interval <= 0 {
		interval = DefaultTickInterval
	}

	ticker := i.clock.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case t := <-ticker.Chan():
			fn(i.At(t))
		}
	}
}
