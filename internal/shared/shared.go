// package shared defines shared helpers
package shared

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
)

// NewLogger creates a new [log.Logger] instance with the specified [io.Writer], with timestamps and caller reporting enabled.
//
// The writer defaults to [os.Stderr]
func NewLogger(w io.Writer) *log.Logger {
	if w == nil {
		w = os.Stderr
	}
	opts := log.Options{ReportTimestamp: true, ReportCaller: true}
	return log.NewWithOptions(w, opts)
}

// NewFileLogger creates a [log.Logger] that appends to the file at path, creating parent directories as needed.
//
// Used when something else (the TUI) owns the terminal.
func NewFileLogger(path string) (*log.Logger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	return NewLogger(f), nil
}

// WithLogger creates a child [log.Logger] with the specified key-value pairs added to all log entries.
func WithLogger(l *log.Logger, kv ...any) *log.Logger {
	return l.With(kv...)
}

// SetLogLevel sets the [log.Level] for the given [log.Logger].
func SetLogLevel(l *log.Logger, ll log.Level) {
	l.SetLevel(ll)
}

// GenerateID generates a new v4 [uuid.UUID] as a string
func GenerateID() string {
	return uuid.New().String()
}

// GenerateDeviceID returns a device identifier of the form "device_xxxxxxxxx".
func GenerateDeviceID() string {
	return "device_" + strings.ReplaceAll(uuid.New().String(), "-", "")[:9]
}

// DeviceName derives the default display name for a device id ("Device " + last four characters).
func DeviceName(deviceID string) string {
	if len(deviceID) <= 4 {
		return "Device " + deviceID
	}
	return "Device " + deviceID[len(deviceID)-4:]
}

// NormalizeTrackKey builds a case and whitespace insensitive "title|artist" key.
func NormalizeTrackKey(title, artist string) string {
	norm := func(s string) string {
		return strings.ToLower(strings.Join(strings.Fields(s), " "))
	}
	return norm(title) + "|" + norm(artist)
}

// FormatDuration renders milliseconds for display: "05s", "3m 07s" or "01:02:03".
//
// Negative values render as "--".
func FormatDuration(ms int64) string {
	if ms < 0 {
		return "--"
	}

	s := ms / 1000
	h := s / 3600
	m := (s % 3600) / 60
	sec := s % 60

	switch {
	case h == 0 && m == 0:
		return fmt.Sprintf("%02ds", sec)
	case h == 0:
		return fmt.Sprintf("%dm %02ds", m, sec)
	default:
		return fmt.Sprintf("%02d:%02d:%02d", h, m, sec)
	}
}
