package formatter

import (
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/desertthunder/nowplaying/internal/lyrics"
	"github.com/desertthunder/nowplaying/internal/models"
	th "github.com/desertthunder/nowplaying/internal/testing"
)

var now = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func testSummary() *models.HistorySummary {
	return &models.HistorySummary{
		TotalSongs:       2,
		TotalEntries:     5,
		TotalPlays:       3,
		TotalListeningMs: 125_000,
		TopSongs: []models.SongStats{
			{Key: "one|artist", Title: "Song One", Artist: "Artist", Album: "Album", PlayCount: 2, ListeningMs: 90_000, LastPlayedAt: now},
			{Key: "two|artist", Title: "Song, Two", Artist: "Artist", PlayCount: 1, ListeningMs: 35_000, LastPlayedAt: now},
		},
		Recent: []models.HistoryEntry{
			{Title: "Song One", Artist: "Artist", ProgressMs: 61_000, RecordedAt: now},
		},
	}
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in   string
		want Format
		err  bool
	}{
		{"", FormatText, false},
		{"CSV", FormatCSV, false},
		{"md", FormatMarkdown, false},
		{"json", FormatJSON, false},
		{"xml", "", true},
	}

	for _, tc := range tests {
		got, err := ParseFormat(tc.in)
		if (err != nil) != tc.err {
			t.Errorf("%q: unexpected error %v", tc.in, err)
		}
		if got != tc.want {
			t.Errorf("%q: expected %q, got %q", tc.in, tc.want, got)
		}
	}
}

func TestSnapshot(t *testing.T) {
	t.Run("playing track", func(t *testing.T) {
		out := Snapshot(&models.Snapshot{Title: "Song", Artist: "Artist", Album: "Album", ProgressMs: 65_000, DurationMs: 200_000, Playing: true})
		want := "Artist - Song (Album) [1m 05s / 3m 20s] playing"
		if out != want {
			t.Errorf("expected %q, got %q", want, out)
		}
	})

	t.Run("unknown duration", func(t *testing.T) {
		out := Snapshot(&models.Snapshot{Title: "Song", Artist: "Artist", ProgressMs: 5000})
		if !strings.Contains(out, "[05s / --] paused") {
			t.Errorf("unexpected output %q", out)
		}
	})

	t.Run("nothing playing", func(t *testing.T) {
		if out := Snapshot(&models.Snapshot{}); out != "Nothing playing" {
			t.Errorf("unexpected output %q", out)
		}
		if out := Snapshot(nil); out != "Nothing playing" {
			t.Errorf("unexpected output %q", out)
		}
	})

	t.Run("quiet hours", func(t *testing.T) {
		out := Snapshot(&models.Snapshot{BlockedByTimeRestriction: true, Message: "blocked"})
		if out != "blocked" {
			t.Errorf("unexpected output %q", out)
		}
	})
}

func TestSession(t *testing.T) {
	state := &models.SessionState{
		ID:                "sess-1",
		Code:              "ABC123",
		CurrentProgressMs: 30_000,
		IsPlaying:         true,
		Devices: []models.Device{
			{ID: "dev-1", Name: "Laptop", ProgressMs: 30_000, LastUpdated: now.Add(-time.Second)},
			{ID: "dev-2", Name: "Phone", ProgressMs: 1000, LastUpdated: now.Add(-time.Minute)},
		},
	}

	out := Session(state, now)
	for _, want := range []string{"sess-1", "ABC123", "30s, playing", "Laptop", "Phone", "active", "idle", "01s ago"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected output to contain %q, got:\n%s", want, out)
		}
	}

	empty := Session(&models.SessionState{ID: "s", Code: "ZZZZZZ"}, now)
	if !strings.Contains(empty, "No devices") {
		t.Errorf("expected empty roster message, got %q", empty)
	}
}

func TestLyrics(t *testing.T) {
	lines := []lyrics.Line{
		{TimeMs: 1000, Text: "first"},
		{TimeMs: 63_500, Text: "second line is long enough to wrap around"},
	}

	t.Run("marks active line", func(t *testing.T) {
		out := Lyrics(lines, 1, 0)
		rows := strings.Split(strings.TrimSuffix(out, "\n"), "\n")
		if len(rows) != 2 {
			t.Fatalf("expected 2 rows, got %d", len(rows))
		}
		if rows[0] != "  [00:01.00] first" {
			t.Errorf("unexpected first row %q", rows[0])
		}
		if !strings.HasPrefix(rows[1], "> [01:03.50] second") {
			t.Errorf("unexpected second row %q", rows[1])
		}
	})

	t.Run("wraps to width", func(t *testing.T) {
		out := Lyrics(lines, -1, 30)
		rows := strings.Split(strings.TrimSuffix(out, "\n"), "\n")
		if len(rows) <= 2 {
			t.Fatalf("expected wrapped output, got %q", out)
		}
		if !strings.HasPrefix(rows[2], strings.Repeat(" ", len("  [01:03.50] "))) {
			t.Errorf("expected continuation to be indented, got %q", rows[2])
		}
	})
}

func TestHistoryExport(t *testing.T) {
	t.Run("CSV", func(t *testing.T) {
		data, err := HistoryToCSV(testSummary())
		if err != nil {
			t.Fatalf("HistoryToCSV failed: %v", err)
		}

		output := string(data)
		if !strings.Contains(output, "Title,Artist,Album,Plays,ListeningMs,LastPlayed") {
			t.Errorf("CSV missing headers, got: %s", output)
		}
		if !strings.Contains(output, `"Song, Two"`) {
			t.Errorf("CSV should quote titles with commas, got: %s", output)
		}
		if !strings.Contains(output, "Song One,Artist,Album,2,90000,2025-06-01T12:00:00Z") {
			t.Errorf("CSV missing first row, got: %s", output)
		}
	})

	t.Run("Markdown", func(t *testing.T) {
		output := string(HistoryToMarkdown(testSummary()))
		for _, want := range []string{
			"# Listening History",
			"**Plays**: 3",
			"1. Artist - Song One (Album) [2 plays, 1m 30s]",
			"## Recent",
			"Song One @ 1m 01s",
		} {
			if !strings.Contains(output, want) {
				t.Errorf("Markdown missing %q, got:\n%s", want, output)
			}
		}
	})

	t.Run("Text", func(t *testing.T) {
		output := string(HistoryToText(testSummary()))
		if !strings.Contains(output, "2. Artist - Song, Two (1 plays)") {
			t.Errorf("unexpected text:\n%s", output)
		}
	})

	t.Run("WriteHistoryExport", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "out", "history.json")

		if err := WriteHistoryExport(testSummary(), path, FormatJSON); err != nil {
			t.Fatalf("WriteHistoryExport failed: %v", err)
		}
		th.AssertFileExists(t, path)

		var decoded models.HistorySummary
		if err := json.Unmarshal([]byte(th.MustReadFile(t, path)), &decoded); err != nil {
			t.Fatalf("invalid JSON export: %v", err)
		}
		if decoded.TotalPlays != 3 || len(decoded.TopSongs) != 2 {
			t.Errorf("unexpected export %+v", decoded)
		}
	})
}
