// Package auth guards the admin surface with basic auth; passwords are
// verified against a bcrypt hash supplied via configuration.
package auth

import (
	"crypto/subtle"
	"errors"
	"net/http"

	"golang.org/x/crypto/bcrypt"
)

var ErrUnauthorized = errors.New("unauthorized")

type AdminAuth struct {
	enabled      bool
	username     string
	passwordHash string
}

func NewAdminAuth(enabled bool, username, passwordHash string) *AdminAuth {
	return &AdminAuth{
		enabled:      enabled,
		username:     username,
		passwordHash: passwordHash,
	}
}

func (a *AdminAuth) Verify(username, password string) error {
	if subtle.ConstantTimeCompare([]byte(username), []byte(a.username)) != 1 {
		return ErrUnauthorized
	}

	if err := bcrypt.CompareHashAndPassword([]byte(a.passwordHash), []byte(password)); err != nil {
		return ErrUnauthorized
	}

	return nil
}

// Middleware rejects unauthenticated admin requests. When admin auth is
// disabled the handler chain passes through untouched.
func (a *AdminAuth) Middleware(next http.Handler) http.Handler {
	if !a.enabled {
		return next
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		username, password, ok := r.BasicAuth()
		if !ok || a.Verify(username, password) != nil {
			w.Header().Set("WWW-Authenticate", `Basic realm="admin"`)
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
