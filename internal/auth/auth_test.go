package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestAuthenticate(t *testing.T) {
	svc := NewService("secret", " ")
	cases := map[string]error{
		"":              ErrMissingToken,
		"Basic secret":  ErrMissingToken,
		"Bearer ":       ErrMissingToken,
		"Bearer wrong":  ErrInvalidToken,
		"Bearer secret": nil,
		"bearer secret": nil,
	}
	for header, want := range cases {
		if got := svc.Authenticate(header); got != want {
			t.Fatalf("header %q: got %v want %v", header, got, want)
		}
	}
}

func TestMiddleware(t *testing.T) {
	called := 0
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called++
		w.WriteHeader(http.StatusAccepted)
	})

	handler := NewService("secret").Middleware(next)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/tasks", nil))
	if rec.Code != http.StatusUnauthorized || called != 0 {
		t.Fatalf("expected rejection, got %d (calls %d)", rec.Code, called)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/tasks", nil)
	req.Header.Set("Authorization", "Bearer secret")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusAccepted || called != 1 {
		t.Fatalf("expected pass-through, got %d (calls %d)", rec.Code, called)
	}
}

func TestDisabledServicePassesThrough(t *testing.T) {
	svc := NewService()
	if svc.Enabled() {
		t.Fatalf("service without keys should be disabled")
	}
	rec := httptest.NewRecorder()
	svc.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
}
