package middleware

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
)

// Authorizer gates diagnostic and administrative endpoints behind a shared
// secret. Basic liveness stays open; anything that reads job content or
// mutates queue state does not.
type Authorizer struct {
	secret string
}

// NewAuthorizer creates an authorizer for the given shared secret.
func NewAuthorizer(secret string) *Authorizer {
	return &Authorizer{secret: secret}
}

// RequireSecret verifies the shared secret from the X-Admin-Secret header or
// the "secret" query parameter.
func (a *Authorizer) RequireSecret(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if a.secret == "" {
			jsonError(w, http.StatusForbidden, "admin secret not configured")
			return
		}

		provided := r.Header.Get("X-Admin-Secret")
		if provided == "" {
			provided = r.URL.Query().Get("secret")
		}

		if subtle.ConstantTimeCompare([]byte(provided), []byte(a.secret)) != 1 {
			jsonError(w, http.StatusUnauthorized, "invalid or missing secret")
			return
		}

		next.ServeHTTP(w, r)
	})
}

func jsonError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
