package server

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"golang.org/x/oauth2"
)

type stubExchanger struct {
	token *oauth2.Token
	err   error
	code  string
}

func (s *stubExchanger) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	s.code = code
	return s.token, s.err
}

func TestOAuthHandler(t *testing.T) {
	callback := func(h *OAuthHandler, query string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/callback?"+query, nil))
		return rec
	}

	t.Run("exchanges code and sends token", func(t *testing.T) {
		ex := &stubExchanger{token: &oauth2.Token{AccessToken: "a", RefreshToken: "r"}}
		h := NewOAuthHandler(ex, "xyz")

		rec := callback(h, "state=xyz&code=abc")
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if ex.code != "abc" {
			t.Errorf("expected code abc, got %q", ex.code)
		}

		result := <-h.Result()
		if result.Error() != nil || result.Token.RefreshToken != "r" {
			t.Errorf("unexpected result %+v", result)
		}
	})

	t.Run("state mismatch", func(t *testing.T) {
		h := NewOAuthHandler(&stubExchanger{}, "xyz")
		if rec := callback(h, "state=nope&code=abc"); rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rec.Code)
		}
		if result := <-h.Result(); result.Error() == nil {
			t.Error("expected error result")
		}
	})

	t.Run("denied authorization", func(t *testing.T) {
		h := NewOAuthHandler(&stubExchanger{}, "xyz")
		if rec := callback(h, "state=xyz&error=access_denied"); rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rec.Code)
		}
		if result := <-h.Result(); result.Error() == nil {
			t.Error("expected error result")
		}
	})

	t.Run("exchange failure", func(t *testing.T) {
		h := NewOAuthHandler(&stubExchanger{err: errors.New("bad code")}, "xyz")
		if rec := callback(h, "state=xyz&code=abc"); rec.Code != http.StatusInternalServerError {
			t.Errorf("expected 500, got %d", rec.Code)
		}
	})

	t.Run("second callback rejected", func(t *testing.T) {
		h := NewOAuthHandler(&stubExchanger{token: &oauth2.Token{}}, "xyz")
		callback(h, "state=xyz&code=abc")
		if rec := callback(h, "state=xyz&code=abc"); rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rec.Code)
		}
	})
}
