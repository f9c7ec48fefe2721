package api

import (
	"crypto/subtle"
	"encoding/json"
	"log"
	"net/http"
	"strings"
)

// TokenAuth guards admin endpoints with a static bearer token.
// A zero TokenAuth lets every request through.
type TokenAuth struct {
	token string
}

// NewTokenAuth creates a guard for token. An empty token disables the check.
func NewTokenAuth(token string) *TokenAuth {
	if token == "" {
		log.Println("⚠️ API_TOKEN not set, admin endpoints are unauthenticated")
	}
	return &TokenAuth{token: token}
}

// Enabled reports whether requests must present a token
func (a *TokenAuth) Enabled() bool {
	return a != nil && a.token != ""
}

// Check reports whether r carries the expected token
func (a *TokenAuth) Check(r *http.Request) bool {
	if !a.Enabled() {
		return true
	}
	const prefix = "Bearer "
	h := r.Header.Get("Authorization")
	if !strings.HasPrefix(h, prefix) {
		return false
	}
	return tokenEqual(strings.TrimSpace(h[len(prefix):]), a.token)
}

// Middleware answers 401 for requests without a valid token
func (a *TokenAuth) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !a.Check(r) {
			RecordConnectionRejected("auth")
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("WWW-Authenticate", `Bearer realm="admin"`)
			w.WriteHeader(http.StatusUnauthorized)
			json.NewEncoder(w).Encode(map[string]string{
				"error":   "unauthorized",
				"message": "Admin token required",
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// tokenEqual compares secrets in constant time
func tokenEqual(got, want string) bool {
	return subtle.ConstantTimeCompare([]byte(got), []byte(want)) == 1
}
