package server

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/desertthunder/nowplaying/internal/shared"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
}

func TestLogging(t *testing.T) {
	var buf bytes.Buffer
	logger := shared.NewLogger(&buf)

	h := Logging(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/brew", nil))

	out := buf.String()
	for _, want := range []string{"/brew", "418", "GET"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected log to contain %q, got %q", want, out)
		}
	}
}

func TestRecover(t *testing.T) {
	var buf bytes.Buffer
	h := Recover(shared.NewLogger(&buf))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Internal server error") {
		t.Errorf("unexpected body %q", rec.Body.String())
	}
	if !strings.Contains(buf.String(), "boom") {
		t.Errorf("expected panic value to be logged, got %q", buf.String())
	}
}

func TestCORS(t *testing.T) {
	t.Run("preflight answered for allowed origin", func(t *testing.T) {
		h := CORS([]string{"https://example.com"})(okHandler())

		req := httptest.NewRequest(http.MethodOptions, "/api/sync/session", nil)
		req.Header.Set("Origin", "https://example.com")
		req.Header.Set("Access-Control-Request-Method", http.MethodPost)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://example.com" {
			t.Errorf("expected allow origin header, got %q", got)
		}
	})

	t.Run("unknown origin gets no header", func(t *testing.T) {
		h := CORS([]string{"https://example.com"})(okHandler())

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Origin", "https://evil.test")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
			t.Errorf("expected no allow origin header, got %q", got)
		}
	})

	t.Run("empty list allows any origin", func(t *testing.T) {
		h := CORS(nil)(okHandler())

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Origin", "https://anywhere.test")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "*" {
			t.Errorf("expected wildcard, got %q", got)
		}
	})
}

func TestRateLimiter(t *testing.T) {
	t.Run("burst then reject", func(t *testing.T) {
		clock := clockwork.NewFakeClock()
		l := NewRateLimiter(1, 2, clock)

		if !l.Allow("a") || !l.Allow("a") {
			t.Fatal("expected burst of 2 to pass")
		}
		if l.Allow("a") {
			t.Error("expected third request to be limited")
		}
		if !l.Allow("b") {
			t.Error("expected other clients to have their own bucket")
		}

		clock.Advance(time.Second)
		if !l.Allow("a") {
			t.Error("expected a token after one second")
		}
	})

	t.Run("negative rate disables limiting", func(t *testing.T) {
		l := NewRateLimiter(-1, 1, clockwork.NewFakeClock())
		for i := range 100 {
			if !l.Allow("a") {
				t.Fatalf("request %d limited", i)
			}
		}
	})

	t.Run("Prune drops idle clients", func(t *testing.T) {
		clock := clockwork.NewFakeClock()
		l := NewRateLimiter(1, 1, clock)
		l.Allow("old")
		clock.Advance(11 * time.Minute)
		l.Allow("new")

		if n := l.Prune(); n != 1 {
			t.Errorf("expected 1 pruned, got %d", n)
		}
		if _, ok := l.clients["new"]; !ok {
			t.Error("expected recent client to survive")
		}
	})

	t.Run("Middleware answers 429", func(t *testing.T) {
		h := NewRateLimiter(1, 1, clockwork.NewFakeClock()).Middleware()(okHandler())

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "10.0.0.1:5000"

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}

		rec = httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != http.StatusTooManyRequests {
			t.Errorf("expected 429, got %d", rec.Code)
		}
		if rec.Header().Get("Retry-After") == "" {
			t.Error("expected Retry-After header")
		}
	})
}
