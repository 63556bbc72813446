package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/nowplaying/internal/server"
	"github.com/desertthunder/nowplaying/internal/shared"
)

const defaultAuthTimeout = 5 * time.Minute

// SpotifyAuth runs the authorization code flow against a local callback server and prints the refresh token.
func (r *Runner) SpotifyAuth(ctx context.Context, cmd *cli.Command) error {
	spotify, err := r.spotifyService()
	if err != nil {
		return err
	}

	cfg, err := callbackServerConfig(r.config.Server, r.config.Credentials.Spotify.RedirectURI)
	if err != nil {
		return err
	}

	state, err := randomState()
	if err != nil {
		return err
	}

	handler := server.NewOAuthHandler(spotify, state)
	srv := server.New(cfg, r.logger, handler)

	ctx, cancel := context.WithTimeout(ctx, cmd.Duration("timeout"))
	defer cancel()

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- srv.ListenAndServe(ctx)
	}()

	authURL := spotify.GetAuthURL(state)
	r.logger.Info("waiting for Spotify callback", "addr", cfg.Addr())

	if cmd.Bool("no-browser") {
		r.writePlain("Open this URL to authorize nowplaying:\n%s\n", authURL)
	} else if err := shared.OpenBrowser(authURL); err != nil {
		r.logger.Warn("failed to open browser", "error", err)
		r.writePlain("Open this URL to authorize nowplaying:\n%s\n", authURL)
	}

	select {
	case result := <-handler.Result():
		if err := result.Error(); err != nil {
			return fmt.Errorf("%w: %v", shared.ErrAuthFailed, err)
		}
		if result.Token.RefreshToken == "" {
			return fmt.Errorf("%w: Spotify did not return a refresh token", shared.ErrNoRefreshToken)
		}

		r.logger.Info("spotify authorized", "expiry", result.Token.Expiry)
		r.writePlain("✓ Spotify authorized\n")
		r.writePlainln("Add this line to .env:")
		return r.writePlain("SPOTIFY_REFRESH_TOKEN=%s\n", result.Token.RefreshToken)
	case err := <-serveErr:
		if ctx.Err() != nil {
			return fmt.Errorf("%w: no callback received", shared.ErrTimeout)
		}
		if err == nil {
			err = errors.New("callback server stopped")
		}
		return fmt.Errorf("callback server failed: %w", err)
	case <-ctx.Done():
		return fmt.Errorf("%w: no callback received", shared.ErrTimeout)
	}
}

// callbackServerConfig binds the server to the host and port of the redirect URI.
func callbackServerConfig(base shared.ServerConfig, redirectURI string) (shared.ServerConfig, error) {
	u, err := url.Parse(redirectURI)
	if err != nil {
		return base, fmt.Errorf("%w: redirect_uri: %v", shared.ErrInvalidConfig, err)
	}
	if u.Path != "/callback" {
		return base, fmt.Errorf("%w: redirect_uri path must be /callback, got %q", shared.ErrInvalidConfig, u.Path)
	}

	host, portStr, err := net.SplitHostPort(u.Host)
	if err != nil {
		return base, fmt.Errorf("%w: redirect_uri needs an explicit port: %v", shared.ErrInvalidConfig, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return base, fmt.Errorf("%w: redirect_uri port %q", shared.ErrInvalidConfig, portStr)
	}

	base.Host = host
	base.Port = port
	return base, nil
}

func randomState() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate state: %w", err)
	}
	return hex.EncodeToString(b), nil
}
