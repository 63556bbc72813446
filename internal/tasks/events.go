package tasks

import (
	"fmt"

	"github.com/desertthunder/nowplaying/internal/models"
	"github.com/desertthunder/nowplaying/internal/playback"
	"github.com/desertthunder/nowplaying/internal/shared"
)

// Event reports something a [Coordinator] observed.
//
// Used to drive the CLI or TUI without the coordinator knowing about either.
type Event struct {
	Kind     EventKind            // What happened
	Position playback.Position    // Interpolated position at the time of the event
	State    *models.SessionState // Latest session state, for roster and poll events
	Track    *models.Snapshot     // Track metadata, for snapshot and track events
	Err      error                // Failure, for error events
	Message  string               // Human-readable message for display
}

// EventKind enumerates coordinator events.
type EventKind int

const (
	EventJoined EventKind = iota
	EventSnapshot
	EventPushed
	EventPolled
	EventTick
	EventTrackChanged
	EventTrackEnded
	EventError
	EventLeft
)

func (k EventKind) String() string {
	switch k {
	case EventJoined:
		return "joined"
	case EventSnapshot:
		return "snapshot"
	case EventPushed:
		return "pushed"
	case EventPolled:
		return "polled"
	case EventTick:
		return "tick"
	case EventTrackChanged:
		return "track_changed"
	case EventTrackEnded:
		return "track_ended"
	case EventError:
		return "error"
	case EventLeft:
		return "left"
	default:
		return ""
	}
}

func joinedEvent(state *models.SessionState, role Role) Event {
	return Event{
		Kind:    EventJoined,
		State:   state,
		Message: fmt.Sprintf("Joined session %s as %s (%d devices)", state.Code, role, len(state.Devices)),
	}
}

func snapshotEvent(snap *models.Snapshot, pos playback.Position) Event {
	return Event{
		Kind:     EventSnapshot,
		Track:    snap,
		Position: pos,
		Message:  fmt.Sprintf("Observed %s at %s", trackLabel(snap), shared.FormatDuration(pos.ProgressMs)),
	}
}

func pushedEvent(progressMs int64) Event {
	return Event{
		Kind:    EventPushed,
		Message: fmt.Sprintf("Pushed position %s", shared.FormatDuration(progressMs)),
	}
}

func polledEvent(state *models.SessionState, pos playback.Position) Event {
	return Event{
		Kind:     EventPolled,
		State:    state,
		Position: pos,
		Message:  fmt.Sprintf("Session at %s (%d devices)", shared.FormatDuration(state.CurrentProgressMs), len(state.Devices)),
	}
}

func tickEvent(pos playback.Position) Event {
	return Event{Kind: EventTick, Position: pos}
}

func trackChangedEvent(snap *models.Snapshot) Event {
	return Event{
		Kind:    EventTrackChanged,
		Track:   snap,
		Message: fmt.Sprintf("Now playing %s", trackLabel(snap)),
	}
}

func trackEndedEvent(snap *models.Snapshot, pos playback.Position) Event {
	return Event{
		Kind:     EventTrackEnded,
		Track:    snap,
		Position: pos,
		Message:  fmt.Sprintf("Finished %s", trackLabel(snap)),
	}
}

func errorEvent(op string, err error) Event {
	return Event{
		Kind:    EventError,
		Err:     err,
		Message: fmt.Sprintf("%s failed: %v", op, err),
	}
}

func leftEvent(key string) Event {
	return Event{Kind: EventLeft, Message: fmt.Sprintf("Left session %s", key)}
}

func trackLabel(snap *models.Snapshot) string {
	if !snap.HasTrack() {
		return "nothing"
	}
	if snap.Artist == "" {
		return snap.Title
	}
	return fmt.Sprintf("%s by %s", snap.Title, snap.Artist)
}
