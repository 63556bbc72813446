package main

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/nowplaying/internal/models"
	"github.com/desertthunder/nowplaying/internal/registry"
	"github.com/desertthunder/nowplaying/internal/repositories"
	"github.com/desertthunder/nowplaying/internal/server"
)

// Serve runs the sync server until the context is cancelled.
//
// The session store follows database.driver. Listening history always lives in SQLite: the
// session database is reused when the driver is sqlite, otherwise database.path is opened.
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	cfg := r.config.Server
	if host := cmd.String("host"); host != "" {
		cfg.Host = host
	}
	if port := cmd.Int("port"); port > 0 {
		cfg.Port = port
	}

	store, err := repositories.OpenStore(ctx, r.config.Database)
	if err != nil {
		return fmt.Errorf("failed to open session store: %w", err)
	}
	defer store.Close()

	reg := registry.New(store,
		registry.WithClock(r.clock),
		registry.WithTTL(r.config.Sync.SessionTTL.Duration),
		registry.WithLogger(r.logger),
	)

	sweepCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go reg.RunSweeper(sweepCtx, r.config.Sync.SweepInterval.Duration)

	historyDB, closeHistory, err := r.historyDB(store)
	if err != nil {
		return err
	}
	defer closeHistory()

	handlers := []server.Handler{
		server.NewSyncHandler(reg, r.logger),
		server.NewLyricsHandler(r.lyricsService(), r.logger),
		server.NewYouTubeSearchHandler(r.youtubeService(), r.logger),
		server.NewHistoryHandler(repositories.NewHistoryRepository(historyDB), r.clock, r.logger),
	}

	provider, err := r.provider(cmd.String("provider"))
	if err != nil {
		return err
	}
	if provider != nil {
		handlers = append(handlers, server.NewNowPlayingHandler(provider, r.logger))
		r.logger.Info("now playing enabled", "provider", provider.Name())
	}

	r.logger.Info("starting sync server", "addr", cfg.Addr(), "driver", r.config.Database.Driver)
	return server.New(cfg, r.logger, handlers...).ListenAndServe(ctx)
}

// historyDB shares the session database when it is SQLite.
func (r *Runner) historyDB(store models.Store) (*sql.DB, func(), error) {
	if s, ok := store.(*repositories.SQLiteStore); ok {
		return s.DB(), func() {}, nil
	}

	db, err := r.openHistory()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open history database: %w", err)
	}
	return db, func() { db.Close() }, nil
}
