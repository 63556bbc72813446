package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/nowplaying/internal/formatter"
	"github.com/desertthunder/nowplaying/internal/models"
	"github.com/desertthunder/nowplaying/internal/repositories"
	"github.com/desertthunder/nowplaying/internal/shared"
)

// History prints or exports the listening summary from the local database.
func (r *Runner) History(ctx context.Context, cmd *cli.Command) error {
	format, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return err
	}

	top, recent := cmd.Int("top"), cmd.Int("recent")
	if top <= 0 || recent <= 0 {
		return fmt.Errorf("%w: --top and --recent must be positive", shared.ErrInvalidArgument)
	}

	db, err := r.openHistory()
	if err != nil {
		return err
	}
	defer db.Close()

	summary, err := repositories.NewHistoryRepository(db).Summary(ctx,
		min(top, repositories.TopSongsLimit), min(recent, repositories.RecentEntriesLimit))
	if err != nil {
		return fmt.Errorf("failed to load history: %w", err)
	}

	if path := cmd.String("output"); path != "" {
		if err := formatter.WriteHistoryExport(summary, path, format); err != nil {
			return err
		}
		r.logger.Info("history exported", "path", path, "format", format)
		return r.writePlain("✓ History written to %s\n", path)
	}

	out, err := formatter.History(summary, format)
	if err != nil {
		return err
	}
	if _, err := r.output.Write(out); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

// HistoryRecord samples the player once and appends the result to the history.
func (r *Runner) HistoryRecord(ctx context.Context, cmd *cli.Command) error {
	provider, err := r.requireProvider(cmd)
	if err != nil {
		return err
	}

	snap, err := provider.CurrentlyPlaying(ctx)
	if err != nil {
		return fmt.Errorf("failed to read %s player: %w", provider.Name(), err)
	}
	if !snap.HasTrack() || snap.BlockedByTimeRestriction {
		return r.writePlain("%s\n", formatter.Snapshot(snap))
	}

	db, err := r.openHistory()
	if err != nil {
		return err
	}
	defer db.Close()

	stats, err := repositories.NewHistoryRepository(db).Record(ctx, models.HistoryEntry{
		Title:      snap.Title,
		Artist:     snap.Artist,
		Album:      snap.Album,
		ProgressMs: snap.ProgressMs,
		DurationMs: snap.DurationMs,
		IsPlaying:  snap.Playing,
		RecordedAt: r.clock.Now(),
	})
	if err != nil {
		return fmt.Errorf("failed to record history: %w", err)
	}

	r.logger.Info("history recorded", "song", stats.Key, "plays", stats.PlayCount)
	return r.writePlain("✓ %s - %s (%d plays, %s listened)\n",
		stats.Artist, stats.Title, stats.PlayCount, shared.FormatDuration(stats.ListeningMs))
}
