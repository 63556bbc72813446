// MPD now-playing [Provider]
package services

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/fhs/gompd/mpd"
	"github.com/jonboulle/clockwork"

	"github.com/desertthunder/nowplaying/internal/models"
	"github.com/desertthunder/nowplaying/internal/shared"
)

const defaultMPDAddress = "127.0.0.1:6600"

// mpdConn is the part of [mpd.Client] the provider uses.
type mpdConn interface {
	Status() (mpd.Attrs, error)
	CurrentSong() (mpd.Attrs, error)
	Close() error
}

// MPDService reads a local Music Player Daemon.
//
// A connection is dialed per observation since MPD drops idle clients.
type MPDService struct {
	address string
	clock   clockwork.Clock
	dial    func(network, addr string) (mpdConn, error)
}

// NewMPDService creates a provider for the MPD server at address (host:port, or a unix socket path).
func NewMPDService(address string, clock clockwork.Clock) *MPDService {
	if address == "" {
		address = defaultMPDAddress
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	return &MPDService{
		address: address,
		clock:   clock,
		dial: func(network, addr string) (mpdConn, error) {
			return mpd.Dial(network, addr)
		},
	}
}

func (m *MPDService) Name() string {
	return "MPD"
}

// CurrentlyPlaying implements [Provider].
func (m *MPDService) CurrentlyPlaying(ctx context.Context) (*models.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	network := "tcp"
	if strings.HasPrefix(m.address, "/") {
		network = "unix"
	}

	c, err := m.dial(network, m.address)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to connect to mpd at %s: %v", shared.ErrServiceUnavailable, m.address, err)
	}
	defer c.Close()

	status, err := c.Status()
	if err != nil {
		return nil, fmt.Errorf("%w: mpd status: %v", shared.ErrAPIRequest, err)
	}
	captured := m.clock.Now()

	snap := &models.Snapshot{CapturedAt: captured, Playing: status["state"] == "play"}
	if status["state"] == "stop" {
		snap.Playing = false
		return snap, nil
	}

	song, err := c.CurrentSong()
	if err != nil {
		return nil, fmt.Errorf("%w: mpd currentsong: %v", shared.ErrAPIRequest, err)
	}

	snap.ProgressMs, snap.DurationMs = mpdTimes(status)
	snap.Title = song["Title"]
	snap.Artist = song["Artist"]
	snap.Album = song["Album"]
	snap.URI = song["file"]
	if snap.Title == "" && snap.URI != "" {
		snap.Title = snap.URI
	}
	if snap.DurationMs == 0 {
		snap.DurationMs = secondsToMs(song["duration"])
	}
	snap.Percentage = models.Percent(snap.ProgressMs, snap.DurationMs)
	if snap.Playing {
		snap.StartedAt = captured.UnixMilli() - snap.ProgressMs
	}
	return snap, nil
}

// mpdTimes reads elapsed and duration from a status, falling back to the legacy "time" field.
func mpdTimes(status mpd.Attrs) (elapsed, duration int64) {
	elapsed = secondsToMs(status["elapsed"])
	duration = secondsToMs(status["duration"])

	if legacy, ok := status["time"]; ok && (elapsed == 0 || duration == 0) {
		if e, d, found := strings.Cut(legacy, ":"); found {
			if elapsed == 0 {
				elapsed = secondsToMs(e)
			}
			if duration == 0 {
				duration = secondsToMs(d)
			}
		}
	}
	return elapsed, duration
}

func secondsToMs(v string) int64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil || f < 0 {
		return 0
	}
	return int64(math.Round(f * 1000))
}
