package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/jonboulle/clockwork"

	"github.com/desertthunder/nowplaying/internal/lyrics"
	"github.com/desertthunder/nowplaying/internal/models"
	"github.com/desertthunder/nowplaying/internal/repositories"
	"github.com/desertthunder/nowplaying/internal/services"
	"github.com/desertthunder/nowplaying/internal/shared"
)

// NowPlayingHandler proxies the configured player.
type NowPlayingHandler struct {
	provider services.Provider
	logger   *log.Logger
}

// NewNowPlayingHandler creates a handler reading provider.
func NewNowPlayingHandler(provider services.Provider, logger *log.Logger) *NowPlayingHandler {
	return &NowPlayingHandler{provider: provider, logger: shared.WithLogger(logger, "handler", "now-playing")}
}

// Routes returns the HTTP routes this handler serves.
func (h *NowPlayingHandler) Routes() []string {
	return []string{"GET /api/now-playing"}
}

func (h *NowPlayingHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	snap, err := h.provider.CurrentlyPlaying(r.Context())
	if err != nil {
		h.logger.Warn("player read failed", "provider", h.provider.Name(), "error", err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// LyricsResponse carries raw provider text and the aligned lines derived from it.
type LyricsResponse struct {
	Synced string        `json:"synced,omitempty"`
	Plain  string        `json:"plain,omitempty"`
	Timing string        `json:"timing"`
	Lines  []lyrics.Line `json:"lines"`
}

// LyricsHandler looks lyrics up through a cache.
type LyricsHandler struct {
	cache  *lyrics.Cache
	logger *log.Logger
}

// NewLyricsHandler creates a handler over fetcher, caching per track.
func NewLyricsHandler(fetcher lyrics.Fetcher, logger *log.Logger) *LyricsHandler {
	return &LyricsHandler{cache: lyrics.NewCache(fetcher), logger: shared.WithLogger(logger, "handler", "lyrics")}
}

// Routes returns the HTTP routes this handler serves.
func (h *LyricsHandler) Routes() []string {
	return []string{"GET /api/lyrics"}
}

// ServeHTTP answers ?title=&artist= with optional &durationMs= used to time plain text.
func (h *LyricsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	title := strings.TrimSpace(q.Get("title"))
	artist := strings.TrimSpace(q.Get("artist"))
	if title == "" || artist == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("Missing title or artist"))
		return
	}

	var duration int64
	if v := q.Get("durationMs"); v != "" {
		d, err := strconv.ParseInt(v, 10, 64)
		if err != nil || d < 0 {
			writeJSON(w, http.StatusBadRequest, errorBody("Invalid durationMs"))
			return
		}
		duration = d
	}

	raw, err := h.cache.Lyrics(r.Context(), title, artist)
	if err != nil {
		h.logger.Warn("lyrics lookup failed", "title", title, "artist", artist, "error", err)
		writeError(w, err)
		return
	}

	aligned := lyrics.FromRaw(raw, duration)
	lines := aligned.Lines
	if lines == nil {
		lines = []lyrics.Line{}
	}
	writeJSON(w, http.StatusOK, LyricsResponse{
		Synced: raw.Synced,
		Plain:  raw.Plain,
		Timing: aligned.Timing.String(),
		Lines:  lines,
	})
}

// YouTubeSearchResponse carries the first matching video id; VideoID is null when nothing matched.
type YouTubeSearchResponse struct {
	VideoID *string `json:"videoId"`
}

// YouTubeSearchHandler finds a video to play for clients without a player.
type YouTubeSearchHandler struct {
	searcher services.TrackSearcher
	logger   *log.Logger
}

// NewYouTubeSearchHandler creates a handler over searcher.
func NewYouTubeSearchHandler(searcher services.TrackSearcher, logger *log.Logger) *YouTubeSearchHandler {
	return &YouTubeSearchHandler{searcher: searcher, logger: shared.WithLogger(logger, "handler", "youtube-search")}
}

// Routes returns the HTTP routes this handler serves.
func (h *YouTubeSearchHandler) Routes() []string {
	return []string{"GET /api/youtube/search"}
}

// ServeHTTP answers ?title=&artist= with the first result's video id.
func (h *YouTubeSearchHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	title := strings.TrimSpace(q.Get("title"))
	artist := strings.TrimSpace(q.Get("artist"))
	if title == "" || artist == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("Missing title or artist"))
		return
	}

	track, err := h.searcher.SearchTrack(r.Context(), title, artist)
	if err != nil {
		h.logger.Warn("youtube search failed", "title", title, "artist", artist, "error", err)
		writeJSON(w, http.StatusInternalServerError, errorBody("Search failed"))
		return
	}

	var resp YouTubeSearchResponse
	if track != nil {
		resp.VideoID = &track.VideoID
	}
	writeJSON(w, http.StatusOK, resp)
}

// HistoryHandler records and summarizes listening history.
type HistoryHandler struct {
	repo   *repositories.HistoryRepository
	clock  clockwork.Clock
	logger *log.Logger
}

// NewHistoryHandler creates a handler over repo. A nil clock means the real clock.
func NewHistoryHandler(repo *repositories.HistoryRepository, clock clockwork.Clock, logger *log.Logger) *HistoryHandler {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &HistoryHandler{repo: repo, clock: clock, logger: shared.WithLogger(logger, "handler", "history")}
}

// Routes returns the HTTP routes this handler serves.
func (h *HistoryHandler) Routes() []string {
	return []string{"GET /api/history", "POST /api/history"}
}

func (h *HistoryHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.record(w, r)
	default:
		h.summary(w, r)
	}
}

func (h *HistoryHandler) record(w http.ResponseWriter, r *http.Request) {
	var snap models.Snapshot
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&snap); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("Invalid request body"))
		return
	}
	if strings.TrimSpace(snap.Title) == "" || strings.TrimSpace(snap.Artist) == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("Missing required fields"))
		return
	}

	stats, err := h.repo.Record(r.Context(), models.HistoryEntry{
		Title:      snap.Title,
		Artist:     snap.Artist,
		Album:      snap.Album,
		ProgressMs: snap.ProgressMs,
		DurationMs: snap.DurationMs,
		IsPlaying:  snap.Playing,
		RecordedAt: h.clock.Now(),
	})
	if err != nil {
		h.logger.Error("failed to record history", "error", err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "song": stats})
}

func (h *HistoryHandler) summary(w http.ResponseWriter, r *http.Request) {
	top, err := limitParam(r, "top", repositories.TopSongsLimit)
	if err != nil {
		writeError(w, err)
		return
	}
	recent, err := limitParam(r, "recent", repositories.RecentEntriesLimit)
	if err != nil {
		writeError(w, err)
		return
	}

	summary, err := h.repo.Summary(r.Context(), top, recent)
	if err != nil {
		h.logger.Error("failed to load history", "error", err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// limitParam reads a positive integer query parameter, capped at its default.
func limitParam(r *http.Request, name string, def int) (int, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%w: %s must be a positive integer", shared.ErrInvalidInput, name)
	}
	return min(n, def), nil
}
