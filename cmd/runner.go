package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/charmbracelet/log"
	"github.com/jonboulle/clockwork"
	"github.com/urfave/cli/v3"
	"golang.org/x/oauth2"

	"github.com/desertthunder/nowplaying/internal/services"
	"github.com/desertthunder/nowplaying/internal/shared"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config     *shared.Config
	configPath string
	httpClient *http.Client
	logger     *log.Logger
	output     io.Writer
	clock      clockwork.Clock
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config     *shared.Config
	ConfigPath string
	HTTPClient *http.Client
	Logger     *log.Logger
	Output     io.Writer
	Clock      clockwork.Clock
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}

	return &Runner{
		config:     opts.Config,
		configPath: opts.ConfigPath,
		httpClient: opts.HTTPClient,
		logger:     opts.Logger,
		output:     opts.Output,
		clock:      opts.Clock,
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		serveCommand, setupCommand, sessionCommand, watchCommand, nowCommand, lyricsCommand, historyCommand, authCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// Before loads configuration and applies global flags ahead of every command.
//
// A missing config file is not an error; defaults and the environment are used instead.
func (r *Runner) Before(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	if cmd.Bool("verbose") {
		shared.SetLogLevel(r.logger, log.DebugLevel)
	}

	if path := cmd.String("config"); path != "" {
		r.configPath = path
	}
	if err := r.loadConfig(); err != nil {
		return ctx, err
	}
	return ctx, nil
}

func (r *Runner) loadConfig() error {
	if r.configPath != "" {
		if _, err := os.Stat(r.configPath); err == nil {
			config, err := shared.LoadConfig(r.configPath)
			if err != nil {
				return err
			}
			r.config = config
			r.logger.Debug("config loaded", "path", r.configPath)
		} else {
			r.logger.Debug("config file not found, using defaults", "path", r.configPath)
		}
	}

	r.config.ApplyEnv()
	return nil
}

// SetLogger replaces the logger, e.g. when the TUI takes over the terminal.
func (r *Runner) SetLogger(l *log.Logger) {
	r.logger = l
}

// syncClient builds a client for the server named by --server or the configured server url.
func (r *Runner) syncClient(cmd *cli.Command) *services.SyncClient {
	url := r.config.Sync.ServerURL
	if s := cmd.String("server"); s != "" {
		url = s
	}
	return services.NewSyncClient(url, r.httpClient, r.config.Sync.RequestTimeout.Duration)
}

// provider builds the named player: spotify, mpd or none.
//
// An empty name picks Spotify when a refresh token is configured and returns nil otherwise.
func (r *Runner) provider(name string) (services.Provider, error) {
	spotify := r.config.Credentials.Spotify

	switch name {
	case "":
		if spotify.RefreshToken == "" {
			return nil, nil
		}
		return r.spotifyService()
	case "none":
		return nil, nil
	case "spotify":
		return r.spotifyService()
	case "mpd":
		return services.NewMPDService(r.config.MPD.Address, r.clock), nil
	default:
		return nil, fmt.Errorf("%w: unknown provider %q (want spotify, mpd or none)", shared.ErrInvalidArgument, name)
	}
}

func (r *Runner) spotifyService() (*services.SpotifyService, error) {
	svc, err := services.NewSpotifyService(r.config.Credentials.Spotify,
		services.WithSpotifyHTTPClient(r.httpClient),
		services.WithSpotifyClock(r.clock),
		services.WithTokenCallback(r.onSpotifyToken),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create Spotify service: %w", err)
	}
	return svc, nil
}

func (r *Runner) onSpotifyToken(tok *oauth2.Token) {
	r.logger.Debug("spotify access token refreshed", "expiry", tok.Expiry)
	if tok.RefreshToken != "" && tok.RefreshToken != r.config.Credentials.Spotify.RefreshToken {
		r.logger.Warn("spotify issued a new refresh token; update SPOTIFY_REFRESH_TOKEN to keep it")
	}
}

func (r *Runner) lyricsService() *services.LRCLibService {
	return services.NewLRCLibService(r.config.Lyrics.BaseURL, r.config.Lyrics.Rate, r.httpClient)
}

func (r *Runner) youtubeService() *services.YouTubeService {
	return services.NewYouTubeService(r.config.YouTube.BaseURL, r.httpClient)
}

// openHistory opens the local SQLite database holding listening history and applies migrations.
func (r *Runner) openHistory() (*sql.DB, error) {
	path := r.config.Database.Path
	db, err := shared.NewDatabase(path)
	if err != nil {
		return nil, err
	}
	shared.ConfigureDatabase(db, path, r.config.Database.MaxOpenConns, r.config.Database.MaxIdleConns)

	if err := shared.RunMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return db, nil
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	var output []byte
	var err error

	if pretty {
		output, err = json.MarshalIndent(data, "", "  ")
	} else {
		output, err = json.Marshal(data)
	}

	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainln(format string, args ...any) error {
	text := "\n" + fmt.Sprintf(format, args...) + "\n"
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}
