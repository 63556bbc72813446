package shared

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNormalizeTrackKey(t *testing.T) {
	tc := []struct {
		name   string
		title  string
		artist string
		want   string
	}{
		{name: "basic normalization", title: "Song Title", artist: "Artist Name", want: "song title|artist name"},
		{name: "extra whitespace", title: "  Song   Title  ", artist: "  Artist   Name  ", want: "song title|artist name"},
		{name: "mixed case", title: "SoNg TiTlE", artist: "ArTiSt NaMe", want: "song title|artist name"},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeTrackKey(tt.title, tt.artist); got != tt.want {
				t.Errorf("NormalizeTrackKey() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFormatDuration(t *testing.T) {
	tc := []struct {
		ms   int64
		want string
	}{
		{-1, "--"},
		{0, "00s"},
		{5_000, "05s"},
		{59_999, "59s"},
		{187_000, "3m 07s"},
		{3_723_000, "01:02:03"},
	}

	for _, tt := range tc {
		t.Run(tt.want, func(t *testing.T) {
			if got := FormatDuration(tt.ms); got != tt.want {
				t.Errorf("FormatDuration(%d) = %q, want %q", tt.ms, got, tt.want)
			}
		})
	}
}

func TestIdentifiers(t *testing.T) {
	t.Run("GenerateID", func(t *testing.T) {
		a, b := GenerateID(), GenerateID()
		if len(a) != 36 {
			t.Errorf("expected 36 character id, got %q", a)
		}
		if a == b {
			t.Error("expected distinct ids")
		}
	})

	t.Run("GenerateDeviceID", func(t *testing.T) {
		id := GenerateDeviceID()
		if !strings.HasPrefix(id, "device_") || len(id) != len("device_")+9 {
			t.Errorf("unexpected device id %q", id)
		}
	})

	t.Run("DeviceName", func(t *testing.T) {
		if got := DeviceName("device_abc123xyz"); got != "Device 3xyz" {
			t.Errorf("DeviceName() = %q", got)
		}
		if got := DeviceName("ab"); got != "Device ab" {
			t.Errorf("DeviceName() = %q", got)
		}
	})
}

func TestLogger(t *testing.T) {
	t.Run("NewLogger writes to writer", func(t *testing.T) {
		var buf bytes.Buffer
		logger := WithLogger(NewLogger(&buf), "component", "test")
		logger.Info("hello")

		out := buf.String()
		if !strings.Contains(out, "hello") || !strings.Contains(out, "component=test") {
			t.Errorf("unexpected log output %q", out)
		}
	})

	t.Run("NewFileLogger creates directories", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "logs", "nowplaying.log")
		logger, err := NewFileLogger(path)
		if err != nil {
			t.Fatalf("NewFileLogger failed: %v", err)
		}
		logger.Info("to file")

		data, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("failed to read log file: %v", err)
		}
		if !strings.Contains(string(data), "to file") {
			t.Errorf("log file missing entry: %q", data)
		}
	})
}

func TestBrowserCommand(t *testing.T) {
	t.Run("BROWSER overrides platform", func(t *testing.T) {
		t.Setenv("BROWSER", "my-browser")
		cmd, err := browserCommand("http://example.com")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cmd.Args[0] != "my-browser" || cmd.Args[1] != "http://example.com" {
			t.Errorf("unexpected args %v", cmd.Args)
		}
	})

	t.Run("unsupported platform", func(t *testing.T) {
		t.Setenv("BROWSER", "")
		orig := getRuntime
		getRuntime = func() string { return "plan9" }
		defer func() { getRuntime = orig }()

		if _, err := browserCommand("http://example.com"); err == nil {
			t.Error("expected error for unsupported platform")
		}
	})

	t.Run("OpenBrowser reports start failure", func(t *testing.T) {
		t.Setenv("BROWSER", "definitely-not-a-browser-binary")
		if err := OpenBrowser("http://example.com"); err == nil {
			t.Error("expected error from missing browser binary")
		}
	})
}
