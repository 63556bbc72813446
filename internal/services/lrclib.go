// LRCLIB lyrics [LyricsProvider]
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/time/rate"

	"github.com/desertthunder/nowplaying/internal/models"
	"github.com/desertthunder/nowplaying/internal/shared"
)

const defaultLRCLibBaseURL = "https://lrclib.net"

// LRCLibRecord is one search hit from LRCLIB.
type LRCLibRecord struct {
	ID           int64   `json:"id"`
	TrackName    string  `json:"trackName"`
	ArtistName   string  `json:"artistName"`
	AlbumName    string  `json:"albumName"`
	Duration     float64 `json:"duration"`
	Instrumental bool    `json:"instrumental"`
	PlainLyrics  string  `json:"plainLyrics"`
	SyncedLyrics string  `json:"syncedLyrics"`
}

// LRCLibService searches LRCLIB for lyrics, pacing requests with a token bucket.
type LRCLibService struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewLRCLibService creates a lyrics client. A non-positive perSecond disables pacing.
func NewLRCLibService(baseURL string, perSecond float64, client *http.Client) *LRCLibService {
	if baseURL == "" {
		baseURL = defaultLRCLibBaseURL
	}
	if client == nil {
		client = http.DefaultClient
	}

	limit := rate.Inf
	if perSecond > 0 {
		limit = rate.Limit(perSecond)
	}

	return &LRCLibService{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: client,
		limiter:    rate.NewLimiter(limit, 1),
	}
}

// Search returns every LRCLIB record matching title and artist.
func (l *LRCLibService) Search(ctx context.Context, title, artist string) ([]LRCLibRecord, error) {
	if strings.TrimSpace(title) == "" || strings.TrimSpace(artist) == "" {
		return nil, fmt.Errorf("%w: title and artist are required", shared.ErrInvalidInput)
	}

	if err := l.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("lyrics request cancelled: %w", err)
	}

	q := url.Values{}
	q.Set("track_name", title)
	q.Set("artist_name", artist)
	endpoint := l.baseURL + "/api/search?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := l.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: lrclib status %d", shared.ErrAPIRequest, resp.StatusCode)
	}

	var records []LRCLibRecord
	if err := json.NewDecoder(resp.Body).Decode(&records); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return records, nil
}

// Lyrics implements [LyricsProvider] using the first search result.
func (l *LRCLibService) Lyrics(ctx context.Context, title, artist string) (*models.RawLyrics, error) {
	records, err := l.Search(ctx, title, artist)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return &models.RawLyrics{}, nil
	}

	first := records[0]
	return &models.RawLyrics{Synced: first.SyncedLyrics, Plain: first.PlainLyrics}, nil
}
