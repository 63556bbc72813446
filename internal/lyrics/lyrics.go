// Package lyrics aligns lyric lines with a playback position.
//
// Synced lyrics come in LRC form ("[mm:ss.xx]text"). Plain lyrics can be given synthetic
// timestamps spread over the track duration; that timing is a heuristic based on line
// length and will drift from the real vocals.
package lyrics

import (
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/desertthunder/nowplaying/internal/models"
)

// Placeholder is shown for instrumental (empty) lines.
const Placeholder = "♪"

const (
	leadInMs   = 3000
	trailPadMs = 3000
)

// lrcLine matches [minutes:seconds.fraction]; the fraction is required.
var lrcLine = regexp.MustCompile(`\[(\d+):(\d+\.\d+)\](.*)`)

// Line is a lyric line and the position at which it starts.
type Line struct {
	TimeMs      int64  `json:"timeMs"`
	Text        string `json:"text"`
	Synthesized bool   `json:"synthesized,omitempty"`
}

// Timing describes where a set of line timestamps came from.
type Timing int

const (
	TimingNone Timing = iota
	TimingSynced
	TimingSynthesized
	TimingUntimed
)

func (t Timing) String() string {
	switch t {
	case TimingSynced:
		return "synced"
	case TimingSynthesized:
		return "synthesized"
	case TimingUntimed:
		return "untimed"
	default:
		return "none"
	}
}

// Lyrics is an aligned set of lines.
type Lyrics struct {
	Lines  []Line `json:"lines"`
	Timing Timing `json:"-"`
}

// Parse reads LRC text. Lines that do not carry a timestamp are dropped; input order is kept.
func Parse(lrc string) []Line {
	var lines []Line
	for _, raw := range strings.Split(lrc, "\n") {
		m := lrcLine.FindStringSubmatch(raw)
		if m == nil {
			continue
		}

		minutes, err := strconv.ParseInt(m[1], 10, 64)
		if err != nil {
			continue
		}
		seconds, err := strconv.ParseFloat(m[2], 64)
		if err != nil {
			continue
		}

		lines = append(lines, Line{
			TimeMs: minutes*60_000 + int64(math.Round(seconds*1000)),
			Text:   strings.TrimSpace(m[3]),
		})
	}
	return lines
}

// ActiveIndex returns the line playing at posMs: the last line starting at or before posMs.
//
// Before the first line it returns -1. Past the last line the last line stays active.
func ActiveIndex(lines []Line, posMs int64) int {
	next := sort.Search(len(lines), func(i int) bool { return lines[i].TimeMs > posMs })
	return next - 1
}

// Synthesize spreads texts over durationMs.
//
// Timing starts after a three second lead-in and leaves three seconds at the end; each line gets
// a share of the remainder proportional to its length, with empty lines weighing one character.
// Without a duration every line starts at zero.
func Synthesize(texts []string, durationMs int64) []Line {
	lines := make([]Line, len(texts))
	if len(texts) == 0 {
		return lines
	}

	weights := make([]int, len(texts))
	total := 0
	for i, t := range texts {
		weights[i] = max(utf8.RuneCountInString(strings.TrimSpace(t)), 1)
		total += weights[i]
	}

	available := float64(max(durationMs-leadInMs-trailPadMs, 0))
	cursor := float64(leadInMs)
	for i, t := range texts {
		lines[i] = Line{Text: strings.TrimSpace(t), Synthesized: true}
		if durationMs > 0 {
			lines[i].TimeMs = int64(math.Floor(cursor))
			cursor += float64(weights[i]) / float64(total) * available
		}
	}
	return lines
}

// FromRaw turns a provider result into aligned lines.
//
// Synced text wins. Plain text is synthesized against durationMs when it is known and left
// untimed otherwise. Empty lines become [Placeholder].
func FromRaw(raw *models.RawLyrics, durationMs int64) *Lyrics {
	if raw.Empty() {
		return &Lyrics{Timing: TimingNone}
	}

	if raw.Synced != "" {
		if lines := Parse(raw.Synced); len(lines) > 0 {
			return &Lyrics{Lines: withPlaceholders(lines), Timing: TimingSynced}
		}
		if raw.Plain == "" {
			return &Lyrics{Timing: TimingNone}
		}
	}

	texts := strings.Split(strings.TrimRight(raw.Plain, "\n"), "\n")
	if durationMs > 0 {
		return &Lyrics{Lines: withPlaceholders(Synthesize(texts, durationMs)), Timing: TimingSynthesized}
	}

	lines := make([]Line, len(texts))
	for i, t := range texts {
		lines[i] = Line{Text: strings.TrimSpace(t)}
	}
	return &Lyrics{Lines: withPlaceholders(lines), Timing: TimingUntimed}
}

func withPlaceholders(lines []Line) []Line {
	for i := range lines {
		if lines[i].Text == "" {
			lines[i].Text = Placeholder
		}
	}
	return lines
}

// Active returns the index of the line at posMs, or -1 when nothing is active or timing is unknown.
func (l *Lyrics) Active(posMs int64) int {
	if l == nil || len(l.Lines) == 0 {
		return -1
	}
	switch l.Timing {
	case TimingSynced, TimingSynthesized:
		return ActiveIndex(l.Lines, posMs)
	default:
		return -1
	}
}

// Window returns up to before lines preceding the active line, the active line, and up to after lines following it.
// The returned index is the active line's position within the window, or -1.
func (l *Lyrics) Window(posMs int64, before, after int) ([]Line, int) {
	if l == nil || len(l.Lines) == 0 {
		return nil, -1
	}

	active := l.Active(posMs)
	center := max(active, 0)
	lo := max(center-before, 0)
	hi := min(center+after+1, len(l.Lines))

	if active < 0 {
		return l.Lines[lo:hi], -1
	}
	return l.Lines[lo:hi], active - lo
}
