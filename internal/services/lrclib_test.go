package services

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/desertthunder/nowplaying/internal/shared"
)

func TestLRCLibService(t *testing.T) {
	t.Run("New", func(t *testing.T) {
		srv := NewLRCLibService("", 0, nil)
		if srv.baseURL != defaultLRCLibBaseURL {
			t.Errorf("expected default base URL, got %s", srv.baseURL)
		}
		if srv.httpClient != http.DefaultClient {
			t.Error("expected http.DefaultClient to be used")
		}
	})

	t.Run("Lyrics", func(t *testing.T) {
		t.Run("uses the first result", func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/api/search" {
					t.Errorf("expected path /api/search, got %s", r.URL.Path)
				}
				if got := r.URL.Query().Get("track_name"); got != "Hey Jude" {
					t.Errorf("expected track_name 'Hey Jude', got %q", got)
				}
				if got := r.URL.Query().Get("artist_name"); got != "The Beatles" {
					t.Errorf("expected artist_name 'The Beatles', got %q", got)
				}
				w.Header().Set("Content-Type", "application/json")
				w.Write([]byte(`[
					{"trackName":"Hey Jude","syncedLyrics":"[00:01.00]Hey Jude","plainLyrics":"Hey Jude"},
					{"trackName":"Hey Jude (Live)","syncedLyrics":"[00:02.00]other"}
				]`))
			}))
			defer server.Close()

			srv := NewLRCLibService(server.URL, 0, nil)
			raw, err := srv.Lyrics(context.Background(), "Hey Jude", "The Beatles")
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if raw.Synced != "[00:01.00]Hey Jude" || raw.Plain != "Hey Jude" {
				t.Errorf("unexpected lyrics %+v", raw)
			}
		})

		t.Run("no results is empty, not an error", func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`[]`))
			}))
			defer server.Close()

			raw, err := NewLRCLibService(server.URL, 0, nil).Lyrics(context.Background(), "x", "y")
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if !raw.Empty() {
				t.Errorf("expected empty lyrics, got %+v", raw)
			}
		})

		t.Run("missing title or artist", func(t *testing.T) {
			srv := NewLRCLibService("http://127.0.0.1:1", 0, nil)
			if _, err := srv.Lyrics(context.Background(), "", "artist"); !errors.Is(err, shared.ErrInvalidInput) {
				t.Errorf("expected ErrInvalidInput, got %v", err)
			}
		})

		t.Run("upstream failure", func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusBadGateway)
			}))
			defer server.Close()

			if _, err := NewLRCLibService(server.URL, 0, nil).Lyrics(context.Background(), "x", "y"); !errors.Is(err, shared.ErrAPIRequest) {
				t.Errorf("expected ErrAPIRequest, got %v", err)
			}
		})

		t.Run("cancelled while waiting for the limiter", func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`[]`))
			}))
			defer server.Close()

			srv := NewLRCLibService(server.URL, 0.001, nil)
			if _, err := srv.Lyrics(context.Background(), "x", "y"); err != nil {
				t.Fatalf("first request should pass the limiter: %v", err)
			}

			ctx, cancel := context.WithCancel(context.Background())
			cancel()
			if _, err := srv.Lyrics(ctx, "x", "y"); err == nil {
				t.Error("expected the second request to be refused")
			}
		})
	})
}
