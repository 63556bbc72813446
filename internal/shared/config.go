package shared

import (
	_ "embed"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/creasty/defaults"
	"github.com/joho/godotenv"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Credentials CredentialsConfig `toml:"credentials"`
	Database    DatabaseConfig    `toml:"database"`
	Server      ServerConfig      `toml:"server"`
	Sync        SyncConfig        `toml:"sync"`
	Lyrics      LyricsConfig      `toml:"lyrics"`
	YouTube     YouTubeConfig     `toml:"youtube"`
	MPD         MPDConfig         `toml:"mpd"`
}

// CredentialsConfig contains service-specific credentials.
type CredentialsConfig struct {
	Spotify SpotifyConfig `toml:"spotify"`
}

// SpotifyConfig contains Spotify API credentials and the optional quiet hours window.
type SpotifyConfig struct {
	ClientID     string `toml:"client_id"`
	ClientSecret string `toml:"client_secret"`
	RedirectURI  string `toml:"redirect_uri" default:"http://127.0.0.1:3000/callback"`
	RefreshToken string `toml:"refresh_token"`
	QuietStart   string `toml:"quiet_start"`
	QuietEnd     string `toml:"quiet_end"`
	Timezone     string `toml:"timezone" default:"UTC"`
}

// DatabaseConfig contains session store and database connection settings.
type DatabaseConfig struct {
	Driver       string `toml:"driver" default:"sqlite"`
	Path         string `toml:"path" default:"./nowplaying.db"`
	DSN          string `toml:"dsn"`
	MaxOpenConns int    `toml:"max_open_conns" default:"1"`
	MaxIdleConns int    `toml:"max_idle_conns" default:"1"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host        string   `toml:"host" default:"127.0.0.1"`
	Port        int      `toml:"port" default:"3000"`
	CORSOrigins []string `toml:"cors_origins" default:"[\"*\"]"`
	RateLimit   float64  `toml:"rate_limit" default:"20"`
	RateBurst   int      `toml:"rate_burst" default:"40"`
}

// SyncConfig contains session lifetime and client cadence settings.
type SyncConfig struct {
	ServerURL      string   `toml:"server_url" default:"http://127.0.0.1:3000"`
	SessionTTL     Duration `toml:"session_ttl" default:"24h"`
	SweepInterval  Duration `toml:"sweep_interval" default:"1h"`
	HostInterval   Duration `toml:"host_interval" default:"500ms"`
	PollInterval   Duration `toml:"poll_interval" default:"1s"`
	RequestTimeout Duration `toml:"request_timeout" default:"2s"`
}

// LyricsConfig contains lyrics provider settings.
type LyricsConfig struct {
	BaseURL string  `toml:"base_url" default:"https://lrclib.net"`
	Rate    float64 `toml:"rate" default:"2"`
}

// YouTubeConfig points at the ytmusicapi proxy used for fallback track search.
type YouTubeConfig struct {
	BaseURL string `toml:"base_url" default:"http://localhost:8080"`
}

// MPDConfig contains the address of a local MPD server.
type MPDConfig struct {
	Address string `toml:"address" default:"127.0.0.1:6600"`
}

// Duration is a [time.Duration] that reads from TOML strings like "500ms" or "24h".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("%w: duration %q: %v", ErrInvalidConfig, text, err)
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
//
// Fields missing from the file are filled from struct tag defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return parseConfig(data)
}

func parseConfig(data []byte) (*Config, error) {
	var config Config
	if err := toml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := defaults.Set(&config); err != nil {
		return nil, fmt.Errorf("failed to apply config defaults: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	config, err := parseConfig(exampleConf)
	if err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return config
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Validate checks enumerated and positive-valued settings.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "sqlite", "postgres", "memory":
	default:
		return fmt.Errorf("%w: unknown database driver %q", ErrInvalidConfig, c.Database.Driver)
	}

	for name, d := range map[string]Duration{
		"session_ttl":     c.Sync.SessionTTL,
		"sweep_interval":  c.Sync.SweepInterval,
		"host_interval":   c.Sync.HostInterval,
		"poll_interval":   c.Sync.PollInterval,
		"request_timeout": c.Sync.RequestTimeout,
	} {
		if d.Duration <= 0 {
			return fmt.Errorf("%w: %s must be positive", ErrInvalidConfig, name)
		}
	}
	return nil
}

// LoadEnv reads KEY=VALUE pairs from the given .env files into the process environment.
//
// Missing files are ignored; variables already set are left alone.
func LoadEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}

	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return fmt.Errorf("failed to load %s: %w", f, err)
		}
	}
	return nil
}

// ApplyEnv overrides secrets from the environment.
func (c *Config) ApplyEnv() {
	c.applyEnv(os.Getenv)
}

func (c *Config) applyEnv(getenv func(string) string) {
	set := func(dst *string, key string) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			*dst = v
		}
	}

	set(&c.Credentials.Spotify.ClientID, "SPOTIFY_CLIENT_ID")
	set(&c.Credentials.Spotify.ClientSecret, "SPOTIFY_CLIENT_SECRET")
	set(&c.Credentials.Spotify.RefreshToken, "SPOTIFY_REFRESH_TOKEN")
	set(&c.Database.DSN, "NOWPLAYING_DATABASE_URL")
}

// Addr returns the host:port the HTTP server listens on.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}
