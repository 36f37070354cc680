package auth

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestVerify(t *testing.T) {
	hash, err := HashPassword("secret")
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	a := NewAdminAuth(true, "admin", hash)

	if err := a.Verify("admin", "secret"); err != nil {
		t.Errorf("valid credentials rejected: %v", err)
	}
	if err := a.Verify("admin", "wrong"); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("expected ErrUnauthorized for bad password, got %v", err)
	}
	if err := a.Verify("intruder", "secret"); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("expected ErrUnauthorized for bad username, got %v", err)
	}
}

func TestMiddleware_DisabledPassesThrough(t *testing.T) {
	a := NewAdminAuth(false, "", "")

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	rec := httptest.NewRecorder()
	a.Middleware(next).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusNoContent {
		t.Errorf("disabled auth must pass through, got %d", rec.Code)
	}
}

func TestMiddleware_Enforced(t *testing.T) {
	hash, err := HashPassword("secret")
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	a := NewAdminAuth(true, "admin", hash)

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	handler := a.Middleware(next)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 without credentials, got %d", rec.Code)
	}
	if rec.Header().Get("WWW-Authenticate") == "" {
		t.Error("expected WWW-Authenticate challenge")
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.SetBasicAuth("admin", "secret")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Errorf("expected 204 with valid credentials, got %d", rec.Code)
	}
}
