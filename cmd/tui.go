package main

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/urfave/cli/v3"

	"github.com/desertthunder/nowplaying/internal/lyrics"
	"github.com/desertthunder/nowplaying/internal/shared"
	"github.com/desertthunder/nowplaying/internal/tasks"
	"github.com/desertthunder/nowplaying/internal/ui"
)

// Watch joins a session and launches the interactive terminal UI.
func (r *Runner) Watch(ctx context.Context, cmd *cli.Command) error {
	key, err := sessionKey(cmd)
	if err != nil {
		return err
	}

	role, err := tasks.ParseRole(cmd.String("role"))
	if err != nil {
		return err
	}

	provider, err := r.provider(cmd.String("provider"))
	if err != nil {
		return err
	}
	if role == tasks.RoleHost && provider == nil {
		return fmt.Errorf("%w: hosting needs a player; pass --provider spotify or mpd", shared.ErrMissingCredentials)
	}

	// Redirect logs to file to avoid interfering with TUI rendering
	fileLogger, err := shared.NewFileLogger(cmd.String("log-file"))
	if err != nil {
		return fmt.Errorf("failed to create file logger: %w", err)
	}
	r.SetLogger(fileLogger)

	events := make(chan tasks.Event, eventBuffer)
	opts := []tasks.Option{tasks.WithClock(r.clock), tasks.WithLogger(r.logger), tasks.WithEvents(events)}
	if provider != nil {
		opts = append(opts, tasks.WithProvider(provider))
	}

	cfg := r.coordinatorConfig(cmd, key, role)
	coord, err := tasks.NewCoordinator(r.syncClient(cmd), cfg, opts...)
	if err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	if err := coord.Start(runCtx); err != nil {
		return err
	}
	defer func() {
		stopCtx, stop := context.WithTimeout(context.Background(), leaveTimeout)
		defer stop()
		if err := coord.Stop(stopCtx); err != nil {
			r.logger.Warn("failed to leave session", "error", err)
		}
	}()

	var fetcher lyrics.Fetcher
	if !cmd.Bool("no-lyrics") {
		fetcher = r.lyricsService()
	}

	model := ui.NewModel(runCtx, coord.Config(), events, fetcher)
	p := tea.NewProgram(model, tea.WithContext(runCtx))

	if _, err := p.Run(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("error running TUI: %w", err)
	}

	return nil
}
