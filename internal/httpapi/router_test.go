package httpapi

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestWsURLFromPublicBase(t *testing.T) {
	tests := []struct {
		base string
		want string
	}{
		{"https://jarvis.example.com", "wss://jarvis.example.com"},
		{"http://localhost:8080", "ws://localhost:8080"},
		{"jarvis.example.com", "wss://jarvis.example.com"},
	}

	for _, tt := range tests {
		if got := wsURLFromPublicBase(tt.base); got != tt.want {
			t.Errorf("wsURLFromPublicBase(%q) = %q, want %q", tt.base, got, tt.want)
		}
	}
}

func TestVoiceEndpoint(t *testing.T) {
	r := &Router{cfg: RouterConfig{PublicBaseURL: "https://jarvis.example.com"}}
	if got, want := r.voiceEndpoint(), "wss://jarvis.example.com/voice"; got != want {
		t.Errorf("voiceEndpoint() = %q, want %q", got, want)
	}
}

func TestWithCORS(t *testing.T) {
	handler := withCORS(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}))

	t.Run("adds headers", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

		if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "*" {
			t.Errorf("Allow-Origin = %q, want *", got)
		}
		body, _ := io.ReadAll(rec.Body)
		if string(body) != "ok" {
			t.Errorf("body = %q, want ok", body)
		}
	})

	t.Run("preflight short-circuits", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/", nil))

		if rec.Code != http.StatusNoContent {
			t.Errorf("status = %d, want %d", rec.Code, http.StatusNoContent)
		}
	})
}

func TestWithSentryRecovery(t *testing.T) {
	handler := withSentryRecovery(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusInternalServerError)
	}
}
