// YouTube Music [TrackSearcher]
//
// Talks to a ytmusicapi proxy server, which wraps YouTube Music search behind a small JSON API.
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/desertthunder/nowplaying/internal/shared"
)

const defaultYTBaseURL = "http://localhost:8080"

// YouTubeArtist is an artist credit in YouTube Music responses.
type YouTubeArtist struct {
	Name string `json:"name"`
	ID   string `json:"id"`
}

// YouTubeAlbum is the album a result belongs to.
type YouTubeAlbum struct {
	Name string `json:"name"`
	ID   string `json:"id"`
}

// YouTubeTrack is one song result.
type YouTubeTrack struct {
	VideoID     string          `json:"videoId"`
	Title       string          `json:"title"`
	Artists     []YouTubeArtist `json:"artists"`
	Album       *YouTubeAlbum   `json:"album"`
	Duration    string          `json:"duration"`
	DurationSec int             `json:"duration_seconds"`
}

// Artist returns the first credited artist, or "".
func (t YouTubeTrack) Artist() string {
	if len(t.Artists) == 0 {
		return ""
	}
	return t.Artists[0].Name
}

// YouTubeService searches YouTube Music through the proxy.
type YouTubeService struct {
	baseURL    string
	httpClient *http.Client
}

// NewYouTubeService creates a search client. An empty baseURL uses the local proxy default.
func NewYouTubeService(baseURL string, client *http.Client) *YouTubeService {
	if baseURL == "" {
		baseURL = defaultYTBaseURL
	}
	if client == nil {
		client = http.DefaultClient
	}

	return &YouTubeService{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: client,
	}
}

// Name returns the service name.
func (y *YouTubeService) Name() string {
	return "YouTube Music"
}

func (y *YouTubeService) doRequest(ctx context.Context, endpoint string, result any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, y.baseURL+endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := y.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var errResp struct {
			Detail string `json:"detail"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&errResp); err == nil && errResp.Detail != "" {
			return fmt.Errorf("%w: youtube music status %d: %s", shared.ErrAPIRequest, resp.StatusCode, errResp.Detail)
		}
		return fmt.Errorf("%w: youtube music status %d", shared.ErrAPIRequest, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// Search returns song results for a free-text query.
//
// Calls GET /api/search?q={query}&filter=songs on the proxy.
func (y *YouTubeService) Search(ctx context.Context, query string) ([]YouTubeTrack, error) {
	q := url.Values{}
	q.Set("q", query)
	q.Set("filter", "songs")

	var results []YouTubeTrack
	if err := y.doRequest(ctx, "/api/search?"+q.Encode(), &results); err != nil {
		return nil, err
	}
	return results, nil
}

// SearchTrack returns the best match for title and artist, or nil when nothing matches.
func (y *YouTubeService) SearchTrack(ctx context.Context, title, artist string) (*YouTubeTrack, error) {
	title, artist = strings.TrimSpace(title), strings.TrimSpace(artist)
	if title == "" || artist == "" {
		return nil, fmt.Errorf("%w: title and artist are required", shared.ErrInvalidInput)
	}

	results, err := y.Search(ctx, title+" "+artist)
	if err != nil {
		return nil, err
	}
	for _, r := range results {
		if r.VideoID != "" {
			return &r, nil
		}
	}
	return nil, nil
}
