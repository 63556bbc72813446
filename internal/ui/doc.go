// Package ui implements the `watch` terminal interface using bubbletea's Elm architecture.
//
// The TUI renders a running session:
//  1. [NowPlayingView] : track, interpolated progress bar and a window of lyrics around the active line
//  2. [DevicesView] : the session roster as a scrollable list
//
// The [Model] never talks to the sync server itself. It reads [tasks.Event] values from the
// coordinator's channel, one per bubbletea command, and fetches lyrics when the track changes.
//
// Keyboard bindings (l, d, esc, ?, q) are shown through charmbracelet/bubbles/help.
package ui
