package ui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/desertthunder/nowplaying/internal/lyrics"
	"github.com/desertthunder/nowplaying/internal/tasks"
)

// MsgKind enumerates all message types in the application.
type MsgKind int

// Msg represents all possible messages in the TUI (Elm-style message union).
type Msg struct {
	kind MsgKind
	data any
}

var (
	_ tea.Msg = Msg{}
)

const (
	MsgEvent MsgKind = iota
	MsgEventsClosed
	MsgLyricsFetched
)

type lyricsResult struct {
	trackKey string
	lyrics   *lyrics.Lyrics
	err      error
}

// eventMsg is the constructor for [MsgEvent]
func eventMsg(ev tasks.Event) Msg {
	return Msg{kind: MsgEvent, data: ev}
}

// eventsClosedMsg is the constructor for [MsgEventsClosed]
func eventsClosedMsg() Msg {
	return Msg{kind: MsgEventsClosed}
}

// lyricsFetchedMsg is the constructor for [MsgLyricsFetched]
func lyricsFetchedMsg(trackKey string, l *lyrics.Lyrics, err error) Msg {
	return Msg{kind: MsgLyricsFetched, data: lyricsResult{trackKey: trackKey, lyrics: l, err: err}}
}
