// package formatter renders sessions, snapshots, lyrics and listening history for the terminal and for export (CSV, Markdown, plain text)
package formatter

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/muesli/reflow/wordwrap"

	"github.com/desertthunder/nowplaying/internal/lyrics"
	"github.com/desertthunder/nowplaying/internal/models"
	"github.com/desertthunder/nowplaying/internal/shared"
)

// StaleAfter is how long a device may go without reporting before the roster marks it idle.
const StaleAfter = 10 * time.Second

// Format selects an export encoding.
type Format string

const (
	FormatText     Format = "text"
	FormatCSV      Format = "csv"
	FormatMarkdown Format = "markdown"
	FormatJSON     Format = "json"
)

// ParseFormat accepts text, csv, markdown (or md) and json.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "text", "txt":
		return FormatText, nil
	case "csv":
		return FormatCSV, nil
	case "markdown", "md":
		return FormatMarkdown, nil
	case "json":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("%w: unknown format %q", shared.ErrInvalidArgument, s)
	}
}

// Snapshot renders one line describing what a player is doing.
func Snapshot(snap *models.Snapshot) string {
	if snap == nil || !snap.HasTrack() {
		if snap != nil && snap.BlockedByTimeRestriction {
			return snap.Message
		}
		return "Nothing playing"
	}

	state := "paused"
	if snap.Playing {
		state = "playing"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s - %s", snap.Artist, snap.Title)
	if snap.Album != "" {
		fmt.Fprintf(&b, " (%s)", snap.Album)
	}
	fmt.Fprintf(&b, " [%s / %s] %s",
		shared.FormatDuration(snap.ProgressMs), durationOrUnknown(snap.DurationMs), state)
	return b.String()
}

func durationOrUnknown(ms int64) string {
	if ms <= 0 {
		return "--"
	}
	return shared.FormatDuration(ms)
}

// Session renders the session header and its device roster as a table.
func Session(state *models.SessionState, now time.Time) string {
	var b strings.Builder

	playing := "paused"
	if state.IsPlaying {
		playing = "playing"
	}
	fmt.Fprintf(&b, "Session %s (code %s)\n", state.ID, state.Code)
	fmt.Fprintf(&b, "Position %s, %s\n", shared.FormatDuration(state.CurrentProgressMs), playing)

	if len(state.Devices) == 0 {
		b.WriteString("No devices\n")
		return b.String()
	}

	rows := make([][]string, 0, len(state.Devices))
	for _, d := range state.Devices {
		status := "active"
		if d.Stale(now, StaleAfter) {
			status = "idle"
		}
		rows = append(rows, []string{
			d.Name,
			d.ID,
			shared.FormatDuration(d.ProgressMs),
			shared.FormatDuration(max(now.Sub(d.LastUpdated).Milliseconds(), 0)) + " ago",
			status,
		})
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("NAME", "DEVICE", "POSITION", "LAST SEEN", "STATUS").
		Rows(rows...)
	b.WriteString(t.String())
	b.WriteString("\n")
	return b.String()
}

// Lyrics renders lines with their timestamps, marking the active line and wrapping to width.
//
// A width of zero or less disables wrapping.
func Lyrics(lines []lyrics.Line, active int, width int) string {
	var b strings.Builder
	for i, line := range lines {
		marker := "  "
		if i == active {
			marker = "> "
		}
		prefix := marker + timestamp(line) + " "

		text := line.Text
		if width > 0 {
			text = wordwrap.String(text, max(width-len(prefix), 10))
		}

		for j, part := range strings.Split(text, "\n") {
			if j == 0 {
				b.WriteString(prefix)
			} else {
				b.WriteString(strings.Repeat(" ", len(prefix)))
			}
			b.WriteString(part)
			b.WriteString("\n")
		}
	}
	return b.String()
}

func timestamp(line lyrics.Line) string {
	ms := line.TimeMs
	return fmt.Sprintf("[%02d:%05.2f]", ms/60_000, float64(ms%60_000)/1000)
}

// HistoryToCSV converts the top songs of a summary to CSV with columns: Title, Artist, Album, Plays, ListeningMs, LastPlayed
func HistoryToCSV(summary *models.HistorySummary) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"Title", "Artist", "Album", "Plays", "ListeningMs", "LastPlayed"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, song := range summary.TopSongs {
		record := []string{
			song.Title,
			song.Artist,
			song.Album,
			strconv.Itoa(song.PlayCount),
			strconv.FormatInt(song.ListeningMs, 10),
			song.LastPlayedAt.UTC().Format(time.RFC3339),
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}
	return buf.Bytes(), nil
}

// HistoryToMarkdown converts a summary to a Markdown report.
func HistoryToMarkdown(summary *models.HistorySummary) []byte {
	var buf bytes.Buffer

	buf.WriteString("# Listening History\n\n")
	fmt.Fprintf(&buf, "**Songs**: %d\n", summary.TotalSongs)
	fmt.Fprintf(&buf, "**Plays**: %d\n", summary.TotalPlays)
	fmt.Fprintf(&buf, "**Listening time**: %s\n\n", shared.FormatDuration(summary.TotalListeningMs))

	buf.WriteString("## Top Songs\n\n")
	for i, song := range summary.TopSongs {
		albumPart := ""
		if song.Album != "" {
			albumPart = fmt.Sprintf(" (%s)", song.Album)
		}
		fmt.Fprintf(&buf, "%d. %s - %s%s [%d plays, %s]\n",
			i+1, song.Artist, song.Title, albumPart, song.PlayCount, shared.FormatDuration(song.ListeningMs))
	}

	if len(summary.Recent) > 0 {
		buf.WriteString("\n## Recent\n\n")
		for _, e := range summary.Recent {
			fmt.Fprintf(&buf, "- %s %s - %s @ %s\n",
				e.RecordedAt.UTC().Format(time.DateTime), e.Artist, e.Title, shared.FormatDuration(e.ProgressMs))
		}
	}
	return buf.Bytes()
}

// HistoryToText converts a summary to plain text.
func HistoryToText(summary *models.HistorySummary) []byte {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "Songs: %d  Plays: %d  Listening: %s\n\n",
		summary.TotalSongs, summary.TotalPlays, shared.FormatDuration(summary.TotalListeningMs))

	for i, song := range summary.TopSongs {
		fmt.Fprintf(&buf, "%d. %s - %s (%d plays)\n", i+1, song.Artist, song.Title, song.PlayCount)
	}
	return buf.Bytes()
}

// History encodes a summary in format.
func History(summary *models.HistorySummary, format Format) ([]byte, error) {
	switch format {
	case FormatCSV:
		return HistoryToCSV(summary)
	case FormatMarkdown:
		return HistoryToMarkdown(summary), nil
	case FormatJSON:
		return json.MarshalIndent(summary, "", "  ")
	default:
		return HistoryToText(summary), nil
	}
}

// WriteHistoryExport writes a summary to path in format, creating parent directories.
func WriteHistoryExport(summary *models.HistorySummary, path string, format Format) error {
	data, err := History(summary, format)
	if err != nil {
		return fmt.Errorf("failed to encode history: %w", err)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
