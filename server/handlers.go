package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type SessionStatus struct {
	Authenticated bool       `json:"authenticated"`
	ExpiresAt     *time.Time `json:"expiresAt,omitempty"`
}

type WhoAmI struct {
	Subject  string `json:"sub,omitempty"`
	Username string `json:"preferred_username,omitempty"`
	Email    string `json:"email,omitempty"`
}

func (s *Server) HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok"))
	}
}

// SessionHandler reports whether the application currently holds a token.
// The token itself is never returned.
func (s *Server) SessionHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, err := s.tokens.Token(r.Context())
		if err != nil {
			http.Error(w, "Token unavailable", http.StatusServiceUnavailable)
			return
		}

		status := SessionStatus{Authenticated: token != ""}
		if claims, ok := unverifiedClaims(token); ok && claims.ExpiresAt != nil {
			expiresAt := claims.ExpiresAt.Time.UTC()
			status.ExpiresAt = &expiresAt
		}
		writeJSON(w, http.StatusOK, status)
	}
}

// WhoAmIHandler describes the user the current token was issued to.
func (s *Server) WhoAmIHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, _ := unverifiedClaims(tokenFromContext(r.Context()))
		writeJSON(w, http.StatusOK, WhoAmI{
			Subject:  claims.Subject,
			Username: claims.PreferredUsername,
			Email:    claims.Email,
		})
	}
}

type accessTokenClaims struct {
	PreferredUsername string `json:"preferred_username"`
	Email             string `json:"email"`
	jwt.RegisteredClaims
}

// unverifiedClaims reads the access token's claims for display only. The
// signature is not checked.
func unverifiedClaims(token string) (accessTokenClaims, bool) {
	var claims accessTokenClaims
	if token == "" {
		return claims, false
	}
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return claims, false
	}
	return claims, true
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
