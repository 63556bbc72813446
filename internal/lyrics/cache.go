package lyrics

import (
	"context"
	"sync"

	"github.com/desertthunder/nowplaying/internal/models"
	"github.com/desertthunder/nowplaying/internal/shared"
)

// Fetcher retrieves raw lyrics for a track.
type Fetcher interface {
	Lyrics(ctx context.Context, title, artist string) (*models.RawLyrics, error)
}

// Cache memoizes provider results per track, keyed by normalized title and artist.
//
// Misses are cached too so a track without lyrics is not fetched again.
type Cache struct {
	mu      sync.RWMutex
	fetcher Fetcher
	entries map[string]*models.RawLyrics
}

// NewCache wraps fetcher.
func NewCache(fetcher Fetcher) *Cache {
	return &Cache{fetcher: fetcher, entries: make(map[string]*models.RawLyrics)}
}

// Lyrics returns the cached result for (title, artist) or fetches and stores it.
// Fetch errors are not cached.
func (c *Cache) Lyrics(ctx context.Context, title, artist string) (*models.RawLyrics, error) {
	key := shared.NormalizeTrackKey(title, artist)

	c.mu.RLock()
	raw, ok := c.entries[key]
	c.mu.RUnlock()
	if ok {
		return raw, nil
	}

	raw, err := c.fetcher.Lyrics(ctx, title, artist)
	if err != nil {
		return nil, err
	}
	if raw == nil {
		raw = &models.RawLyrics{}
	}

	c.mu.Lock()
	c.entries[key] = raw
	c.mu.Unlock()
	return raw, nil
}

// Len reports how many tracks are cached.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
