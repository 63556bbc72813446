// Spotify now-playing [Provider]
//
// Spotify API response types based on https://developer.spotify.com/documentation/web-api/reference/get-the-users-currently-playing-track
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/oauth2"

	"github.com/desertthunder/nowplaying/internal/models"
	"github.com/desertthunder/nowplaying/internal/shared"
)

const (
	spotifyAuthURL  = "https://accounts.spotify.com/authorize"
	spotifyTokenURL = "https://accounts.spotify.com/api/token"
	spotifyBaseURL  = "https://api.spotify.com/v1"
	spotifyEmbedURL = "https://open.spotify.com/embed/track/"
)

// SpotifyScopes are the scopes needed to read the player.
var SpotifyScopes = []string{"user-read-currently-playing", "user-read-playback-state"}

// SpotifyImage represents an image resource.
type SpotifyImage struct {
	URL    string `json:"url"`
	Height int    `json:"height"`
	Width  int    `json:"width"`
}

// SpotifyArtist represents a simplified Spotify artist.
type SpotifyArtist struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	URI  string `json:"uri"`
}

// SpotifyAlbum represents a simplified Spotify album.
type SpotifyAlbum struct {
	ID     string         `json:"id"`
	Name   string         `json:"name"`
	Images []SpotifyImage `json:"images"`
}

type externalURLs struct {
	Spotify string `json:"spotify"`
}

// SpotifyTrack represents the playing item.
type SpotifyTrack struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	Artists      []SpotifyArtist `json:"artists"`
	Album        SpotifyAlbum    `json:"album"`
	DurationMS   int64           `json:"duration_ms"`
	ExternalURLs externalURLs    `json:"external_urls"`
	URI          string          `json:"uri"`
}

// SpotifyDevice represents the active playback device.
type SpotifyDevice struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Type          string `json:"type"`
	VolumePercent int    `json:"volume_percent"`
}

// SpotifyCurrentlyPlaying is the body of GET /me/player/currently-playing.
type SpotifyCurrentlyPlaying struct {
	Timestamp  int64          `json:"timestamp"`
	ProgressMS int64          `json:"progress_ms"`
	IsPlaying  bool           `json:"is_playing"`
	Item       *SpotifyTrack  `json:"item"`
	Device     *SpotifyDevice `json:"device"`
}

// Snapshot maps the response to a [models.Snapshot] captured at capturedAt.
func (c *SpotifyCurrentlyPlaying) Snapshot(capturedAt time.Time) *models.Snapshot {
	snap := &models.Snapshot{Playing: c.IsPlaying, ProgressMs: c.ProgressMS, CapturedAt: capturedAt}
	if c.Device != nil {
		snap.Device = &models.PlaybackDevice{Name: c.Device.Name, Type: c.Device.Type, Volume: c.Device.VolumePercent}
	}

	i := c.Item
	if i == nil {
		return snap
	}

	names := make([]string, len(i.Artists))
	for n, a := range i.Artists {
		names[n] = a.Name
	}

	snap.Title = i.Name
	snap.Album = i.Album.Name
	snap.Artist = strings.Join(names, ", ")
	if len(i.Album.Images) > 0 {
		snap.Cover = i.Album.Images[0].URL
	}
	snap.URL = i.ExternalURLs.Spotify
	snap.URI = i.URI
	if i.ID != "" {
		snap.EmbedURL = spotifyEmbedURL + i.ID
	}
	snap.DurationMs = i.DurationMS
	snap.Percentage = models.Percent(c.ProgressMS, i.DurationMS)
	if c.Timestamp > 0 {
		snap.StartedAt = c.Timestamp - c.ProgressMS
	}
	return snap
}

// SpotifyService reads the user's player through a refresh-token grant.
//
// Access tokens are minted and refreshed by an [oauth2.TokenSource]; a refreshed token is
// reported to the token callback so callers can persist a rotated refresh token.
type SpotifyService struct {
	config     *oauth2.Config
	httpClient *http.Client
	baseURL    string
	clock      clockwork.Clock
	quiet      *QuietHours
	onToken    func(*oauth2.Token)

	mu           sync.Mutex
	refreshToken string
	source       oauth2.TokenSource
	last         string
}

// SpotifyOption configures a [SpotifyService].
type SpotifyOption func(*SpotifyService)

// WithSpotifyHTTPClient sets the client used for both token and API requests.
func WithSpotifyHTTPClient(c *http.Client) SpotifyOption {
	return func(s *SpotifyService) { s.httpClient = c }
}

// WithSpotifyEndpoints overrides the account and API hosts.
func WithSpotifyEndpoints(authURL, tokenURL, apiURL string) SpotifyOption {
	return func(s *SpotifyService) {
		s.config.Endpoint = oauth2.Endpoint{AuthURL: authURL, TokenURL: tokenURL, AuthStyle: oauth2.AuthStyleInHeader}
		s.baseURL = strings.TrimRight(apiURL, "/")
	}
}

// WithSpotifyClock sets the clock used for quiet hours and capture instants.
func WithSpotifyClock(c clockwork.Clock) SpotifyOption {
	return func(s *SpotifyService) { s.clock = c }
}

// WithQuietHours blocks requests inside q.
func WithQuietHours(q *QuietHours) SpotifyOption {
	return func(s *SpotifyService) { s.quiet = q }
}

// WithTokenCallback is invoked whenever a new access token is minted.
func WithTokenCallback(fn func(*oauth2.Token)) SpotifyOption {
	return func(s *SpotifyService) { s.onToken = fn }
}

// NewSpotifyService creates a Spotify provider from configured credentials.
func NewSpotifyService(cfg shared.SpotifyConfig, opts ...SpotifyOption) (*SpotifyService, error) {
	if cfg.ClientID == "" {
		return nil, fmt.Errorf("%w: missing spotify client_id", shared.ErrMissingCredentials)
	}
	if cfg.ClientSecret == "" {
		return nil, fmt.Errorf("%w: missing spotify client_secret", shared.ErrMissingCredentials)
	}

	redirectURI := cfg.RedirectURI
	if redirectURI == "" {
		redirectURI = "http://127.0.0.1:3000/callback"
	}

	s := &SpotifyService{
		config: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  redirectURI,
			Scopes:       SpotifyScopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:   spotifyAuthURL,
				TokenURL:  spotifyTokenURL,
				AuthStyle: oauth2.AuthStyleInHeader,
			},
		},
		httpClient:   http.DefaultClient,
		baseURL:      spotifyBaseURL,
		clock:        clockwork.NewRealClock(),
		refreshToken: cfg.RefreshToken,
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.quiet == nil {
		q, err := ParseQuietHours(cfg.QuietStart, cfg.QuietEnd, cfg.Timezone)
		if err != nil {
			return nil, err
		}
		s.quiet = q
	}
	return s, nil
}

func (s *SpotifyService) Name() string {
	return "Spotify"
}

// GetAuthURL returns the OAuth2 authorization URL for user login.
func (s *SpotifyService) GetAuthURL(state string) string {
	return s.config.AuthCodeURL(state, oauth2.AccessTypeOffline)
}

// Exchange trades an authorization code for tokens and adopts the returned refresh token.
func (s *SpotifyService) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	tok, err := s.config.Exchange(s.oauthContext(ctx), code)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to exchange auth code: %v", shared.ErrAuthFailed, err)
	}

	s.mu.Lock()
	s.refreshToken = tok.RefreshToken
	s.source = s.config.TokenSource(s.oauthContext(context.Background()), tok)
	s.last = tok.AccessToken
	s.mu.Unlock()
	return tok, nil
}

// CurrentlyPlaying implements [Provider].
func (s *SpotifyService) CurrentlyPlaying(ctx context.Context) (*models.Snapshot, error) {
	now := s.clock.Now()
	if s.quiet.Contains(now) {
		return &models.Snapshot{
			BlockedByTimeRestriction: true,
			Message:                  s.quiet.Message(),
			CapturedAt:               now,
		}, nil
	}

	var body SpotifyCurrentlyPlaying
	status, err := s.doRequest(ctx, http.MethodGet, "/me/player/currently-playing", &body)
	if err != nil {
		return nil, err
	}
	if status == http.StatusNoContent {
		return &models.Snapshot{CapturedAt: s.clock.Now()}, nil
	}
	return body.Snapshot(s.clock.Now()), nil
}

func (s *SpotifyService) oauthContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, s.httpClient)
}

// token returns a valid access token, refreshing through the token source when needed.
func (s *SpotifyService) token() (*oauth2.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.source == nil {
		if s.refreshToken == "" {
			return nil, shared.ErrNoRefreshToken
		}
		seed := &oauth2.Token{RefreshToken: s.refreshToken}
		s.source = oauth2.ReuseTokenSource(nil, s.config.TokenSource(s.oauthContext(context.Background()), seed))
	}

	tok, err := s.source.Token()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrRefreshFailed, err)
	}

	if tok.AccessToken != s.last {
		s.last = tok.AccessToken
		if tok.RefreshToken != "" {
			s.refreshToken = tok.RefreshToken
		}
		if s.onToken != nil {
			s.onToken(tok)
		}
	}
	return tok, nil
}

// doRequest performs an authenticated HTTP request to the Spotify API and decodes a JSON body into result.
func (s *SpotifyService) doRequest(ctx context.Context, method, endpoint string, result any) (int, error) {
	tok, err := s.token()
	if err != nil {
		return 0, err
	}

	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+endpoint, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}
	tok.SetAuthHeader(req)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNoContent:
		return resp.StatusCode, nil
	case resp.StatusCode == http.StatusUnauthorized:
		return resp.StatusCode, fmt.Errorf("%w: spotify rejected access token", shared.ErrAuthFailed)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return resp.StatusCode, fmt.Errorf("%w: spotify status %d", shared.ErrAPIRequest, resp.StatusCode)
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return resp.StatusCode, fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return resp.StatusCode, nil
}

// QuietHours is a daily window, in a fixed zone, during which the player is not queried.
//
// A window whose end precedes its start wraps past midnight.
type QuietHours struct {
	Start    time.Duration
	End      time.Duration
	Location *time.Location
}

// ParseQuietHours reads "HH:MM" bounds in the IANA zone tz. Both bounds blank returns nil.
func ParseQuietHours(start, end, tz string) (*QuietHours, error) {
	start, end = strings.TrimSpace(start), strings.TrimSpace(end)
	if start == "" && end == "" {
		return nil, nil
	}
	if start == "" || end == "" {
		return nil, fmt.Errorf("%w: quiet hours need both quiet_start and quiet_end", shared.ErrInvalidConfig)
	}

	loc := time.UTC
	if tz != "" {
		l, err := time.LoadLocation(tz)
		if err != nil {
			return nil, fmt.Errorf("%w: timezone %q: %v", shared.ErrInvalidConfig, tz, err)
		}
		loc = l
	}

	s, err := parseClock(start)
	if err != nil {
		return nil, err
	}
	e, err := parseClock(end)
	if err != nil {
		return nil, err
	}
	return &QuietHours{Start: s, End: e, Location: loc}, nil
}

func parseClock(v string) (time.Duration, error) {
	t, err := time.Parse("15:04", v)
	if err != nil {
		return 0, fmt.Errorf("%w: quiet hour %q: %v", shared.ErrInvalidConfig, v, err)
	}
	return time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute, nil
}

// Contains reports whether t falls inside the window. A nil window contains nothing.
func (q *QuietHours) Contains(t time.Time) bool {
	if q == nil || q.Start == q.End {
		return false
	}

	local := t.In(q.Location)
	m := time.Duration(local.Hour())*time.Hour + time.Duration(local.Minute())*time.Minute
	if q.Start < q.End {
		return m >= q.Start && m < q.End
	}
	return m >= q.Start || m < q.End
}

// Message describes the window for API consumers.
func (q *QuietHours) Message() string {
	return fmt.Sprintf("Spotify requests blocked between %s and %s %s",
		clockString(q.Start), clockString(q.End), q.Location)
}

func clockString(d time.Duration) string {
	return fmt.Sprintf("%02d:%02d", int(d.Hours()), int(d.Minutes())%60)
}
