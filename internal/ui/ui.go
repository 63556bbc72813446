package ui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/muesli/reflow/wordwrap"

	"github.com/desertthunder/nowplaying/internal/lyrics"
	"github.com/desertthunder/nowplaying/internal/models"
	"github.com/desertthunder/nowplaying/internal/playback"
	"github.com/desertthunder/nowplaying/internal/shared"
	"github.com/desertthunder/nowplaying/internal/tasks"
)

// ViewState represents the current view in the TUI.
type ViewState int

const (
	NowPlayingView ViewState = iota
	DevicesView
)

const (
	linesBefore = 2
	linesAfter  = 4
)

// Model represents the TUI application state.
type Model struct {
	ctx        context.Context
	view       ViewState
	cfg        tasks.Config
	events     <-chan tasks.Event
	lyrics     *lyrics.Cache
	now        func() time.Time
	width      int
	height     int
	pos        playback.Position
	track      *models.Snapshot
	state      *models.SessionState
	lines      *lyrics.Lyrics
	lyricsKey  string
	lyricsErr  error
	showLyrics bool
	status     string
	lastErr    error
	closed     bool
	devices    list.Model
	progress   progress.Model
	help       help.Model
	keys       keyMap
}

// NewModel creates a model that renders events from a running coordinator.
//
// fetcher may be nil, in which case no lyrics are shown.
func NewModel(ctx context.Context, cfg tasks.Config, events <-chan tasks.Event, fetcher lyrics.Fetcher) *Model {
	m := &Model{
		ctx:        ctx,
		view:       NowPlayingView,
		cfg:        cfg,
		events:     events,
		now:        time.Now,
		showLyrics: fetcher != nil,
		devices:    list.New(nil, list.NewDefaultDelegate(), 0, 0),
		progress:   progress.New(progress.WithDefaultGradient(), progress.WithoutPercentage()),
		help:       help.New(),
		keys:       newKeyMap(),
	}
	if fetcher != nil {
		m.lyrics = lyrics.NewCache(fetcher)
	}
	m.devices.Title = "Devices"
	m.devices.SetShowHelp(false)
	return m
}

// Init starts listening for coordinator events.
func (m *Model) Init() tea.Cmd {
	return m.waitForEvent()
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.progress.Width = max(msg.Width-24, 10)
		m.devices.SetSize(msg.Width-4, msg.Height-6)
		return m, nil

	case tea.KeyMsg:
		return m.handleKeys(msg)

	case Msg:
		switch msg.kind {
		case MsgEvent:
			cmd := m.handleEvent(msg.data.(tasks.Event))
			return m, tea.Batch(cmd, m.waitForEvent())
		case MsgEventsClosed:
			m.closed = true
			return m, nil
		case MsgLyricsFetched:
			res := msg.data.(lyricsResult)
			if res.trackKey == m.lyricsKey {
				m.lines = res.lyrics
				m.lyricsErr = res.err
			}
			return m, nil
		}
	}

	if m.view == DevicesView {
		var cmd tea.Cmd
		m.devices, cmd = m.devices.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *Model) handleKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.help):
		m.help.ShowAll = !m.help.ShowAll
		return m, nil
	case key.Matches(msg, m.keys.lyrics):
		m.showLyrics = !m.showLyrics && m.lyrics != nil
		m.view = NowPlayingView
		return m, nil
	case key.Matches(msg, m.keys.devices):
		m.view = DevicesView
		return m, nil
	case key.Matches(msg, m.keys.back):
		m.view = NowPlayingView
		return m, nil
	}

	if m.view == DevicesView {
		var cmd tea.Cmd
		m.devices, cmd = m.devices.Update(msg)
		return m, cmd
	}
	return m, nil
}

// handleEvent folds a coordinator event into the model and returns any follow-up command.
func (m *Model) handleEvent(ev tasks.Event) tea.Cmd {
	if ev.Kind != tasks.EventTick && ev.Message != "" {
		m.status = ev.Message
	}

	switch ev.Kind {
	case tasks.EventTick:
		m.pos = ev.Position
	case tasks.EventJoined, tasks.EventPolled:
		if ev.Kind == tasks.EventPolled {
			m.pos = ev.Position
		}
		m.state = ev.State
		return m.devices.SetItems(deviceItems(ev.State, m.cfg.DeviceID, m.now()))
	case tasks.EventSnapshot, tasks.EventTrackChanged:
		if ev.Kind == tasks.EventSnapshot {
			m.pos = ev.Position
		}
		return m.setTrack(ev.Track)
	case tasks.EventError:
		m.lastErr = ev.Err
	case tasks.EventLeft:
		m.closed = true
	}
	return nil
}

func (m *Model) setTrack(snap *models.Snapshot) tea.Cmd {
	if !snap.HasTrack() {
		m.track = nil
		return nil
	}

	key := snap.TrackKey()
	m.track = snap
	if key == m.lyricsKey || m.lyrics == nil {
		return nil
	}

	m.lyricsKey = key
	m.lines = nil
	m.lyricsErr = nil
	return m.fetchLyrics(key, snap.Title, snap.Artist, snap.DurationMs)
}

func (m *Model) waitForEvent() tea.Cmd {
	return func() tea.Msg {
		select {
		case <-m.ctx.Done():
			return eventsClosedMsg()
		case ev, ok := <-m.events:
			if !ok {
				return eventsClosedMsg()
			}
			return eventMsg(ev)
		}
	}
}

func (m *Model) fetchLyrics(trackKey, title, artist string, durationMs int64) tea.Cmd {
	return func() tea.Msg {
		raw, err := m.lyrics.Lyrics(m.ctx, title, artist)
		if err != nil {
			return lyricsFetchedMsg(trackKey, nil, err)
		}
		return lyricsFetchedMsg(trackKey, lyrics.FromRaw(raw, durationMs), nil)
	}
}

// View renders the UI based on the current view state.
func (m *Model) View() string {
	switch m.view {
	case DevicesView:
		return fmt.Sprintf("%s\n\n%s", m.devices.View(), m.help.View(m.keys))
	default:
		return m.renderNowPlaying()
	}
}

func (m *Model) renderNowPlaying() string {
	var b strings.Builder

	header := "nowplaying"
	if m.state != nil {
		header = fmt.Sprintf("nowplaying • %s • %s • %d devices", m.state.Code, m.cfg.Role, len(m.state.Devices))
	}
	b.WriteString(styles.title.Render(header))
	b.WriteString("\n")

	if m.track != nil {
		b.WriteString(styles.active.Render(m.track.Title))
		if m.track.Artist != "" {
			b.WriteString(" by " + m.track.Artist)
		}
		b.WriteString("\n")
	} else {
		b.WriteString(styles.muted.Render("No track information"))
		b.WriteString("\n")
	}

	state := "paused"
	if m.pos.Playing {
		state = "playing"
	}
	total := "--"
	if m.pos.DurationMs > 0 {
		total = shared.FormatDuration(m.pos.DurationMs)
	}
	fmt.Fprintf(&b, "%s %s / %s %s\n\n",
		m.progress.ViewAs(m.pos.Percent/100), shared.FormatDuration(m.pos.ProgressMs), total, state)

	if m.showLyrics {
		b.WriteString(m.renderLyrics())
		b.WriteString("\n")
	}

	switch {
	case m.closed:
		b.WriteString(styles.warn.Render("Session closed. Press q to quit."))
		b.WriteString("\n")
	case m.lastErr != nil && strings.Contains(m.status, "failed"):
		b.WriteString(styles.err.Render(m.status))
		b.WriteString("\n")
	case m.status != "":
		b.WriteString(styles.muted.Render(m.status))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(m.help.View(m.keys))
	return b.String()
}

func (m *Model) renderLyrics() string {
	switch {
	case m.track == nil:
		return ""
	case m.lyricsErr != nil:
		return styles.err.Render(fmt.Sprintf("Lyrics unavailable: %v", m.lyricsErr)) + "\n"
	case m.lines == nil:
		return styles.muted.Render("Loading lyrics...") + "\n"
	case len(m.lines.Lines) == 0:
		return styles.muted.Render("No lyrics found") + "\n"
	}

	window, active := m.lines.Window(m.pos.ProgressMs, linesBefore, linesAfter)
	width := m.width - 4

	var b strings.Builder
	for i, line := range window {
		text := line.Text
		if width > 10 {
			text = wordwrap.String(text, width)
		}
		if i == active {
			b.WriteString(styles.active.Render(text))
		} else {
			b.WriteString(styles.muted.Render(text))
		}
		b.WriteString("\n")
	}
	return b.String()
}
