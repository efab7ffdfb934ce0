package server

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// credential returns the caller's key from X-API-Key, then a bearer
// Authorization header, then the api_key query parameter.
func credential(r *http.Request) string {
	if v := strings.TrimSpace(r.Header.Get("X-API-Key")); v != "" {
		return v
	}
	if auth := r.Header.Get("Authorization"); auth != "" {
		const prefix = "Bearer "
		if len(auth) > len(prefix) && strings.EqualFold(auth[:len(prefix)], prefix) {
			if v := strings.TrimSpace(auth[len(prefix):]); v != "" {
				return v
			}
		}
	}
	return r.URL.Query().Get("api_key")
}

// Authenticate checks the request's credential against secret. It fails
// closed when no secret is configured.
func Authenticate(r *http.Request, secret string) error {
	if secret == "" {
		return errServerNotConfigured
	}
	got := credential(r)
	if got == "" {
		return errMissingCredential
	}
	if subtle.ConstantTimeCompare([]byte(got), []byte(secret)) != 1 {
		return errInvalidCredential
	}
	return nil
}
