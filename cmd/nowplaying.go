package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/nowplaying/internal/formatter"
	"github.com/desertthunder/nowplaying/internal/services"
	"github.com/desertthunder/nowplaying/internal/shared"
)

// requireProvider resolves the --provider flag and fails when no player is configured.
func (r *Runner) requireProvider(cmd *cli.Command) (services.Provider, error) {
	provider, err := r.provider(cmd.String("provider"))
	if err != nil {
		return nil, err
	}
	if provider == nil {
		return nil, fmt.Errorf("%w: no player configured; run `nowplaying auth spotify` or pass --provider mpd", shared.ErrMissingCredentials)
	}
	return provider, nil
}

// NowPlaying prints what the local player is doing.
func (r *Runner) NowPlaying(ctx context.Context, cmd *cli.Command) error {
	provider, err := r.requireProvider(cmd)
	if err != nil {
		return err
	}

	snap, err := provider.CurrentlyPlaying(ctx)
	if err != nil {
		return fmt.Errorf("failed to read %s player: %w", provider.Name(), err)
	}

	r.logger.Debug("player read", "provider", provider.Name(), "playing", snap.Playing, "track", snap.Title)
	if cmd.Bool("json") {
		return r.writeJSON(snap, cmd.Bool("pretty"))
	}
	return r.writePlain("%s\n", formatter.Snapshot(snap))
}
