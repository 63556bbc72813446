package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/nowplaying/internal/formatter"
	"github.com/desertthunder/nowplaying/internal/lyrics"
	"github.com/desertthunder/nowplaying/internal/shared"
)

// Lyrics prints timed lyrics for --title/--artist, or for the track the player is on.
//
// When read from the player the line under the current position is marked.
func (r *Runner) Lyrics(ctx context.Context, cmd *cli.Command) error {
	title := cmd.String("title")
	artist := cmd.String("artist")
	duration := cmd.Int64("duration")
	position := int64(-1)

	if title == "" {
		provider, err := r.requireProvider(cmd)
		if err != nil {
			return err
		}
		snap, err := provider.CurrentlyPlaying(ctx)
		if err != nil {
			return fmt.Errorf("failed to read %s player: %w", provider.Name(), err)
		}
		if !snap.HasTrack() {
			return shared.ErrNothingPlaying
		}
		title, artist = snap.Title, snap.Artist
		if duration == 0 {
			duration = snap.DurationMs
		}
		position = snap.ProgressMs
	}
	if artist == "" {
		return fmt.Errorf("%w: --artist is required with --title", shared.ErrMissingArgument)
	}

	raw, err := r.lyricsService().Lyrics(ctx, title, artist)
	if err != nil {
		return err
	}
	result := lyrics.FromRaw(raw, duration)

	r.logger.Debug("lyrics loaded", "title", title, "artist", artist, "timing", result.Timing, "lines", len(result.Lines))
	if cmd.Bool("json") {
		lines := result.Lines
		if lines == nil {
			lines = []lyrics.Line{}
		}
		return r.writeJSON(map[string]any{
			"title":  title,
			"artist": artist,
			"timing": result.Timing.String(),
			"lines":  lines,
		}, cmd.Bool("pretty"))
	}

	if len(result.Lines) == 0 {
		return r.writePlain("No lyrics found for %s - %s\n", artist, title)
	}

	active := -1
	if position >= 0 {
		active = result.Active(position)
	}
	r.writePlain("%s - %s (%s)\n\n", artist, title, result.Timing)
	return r.writePlain("%s", formatter.Lyrics(result.Lines, active, cmd.Int("width")))
}
