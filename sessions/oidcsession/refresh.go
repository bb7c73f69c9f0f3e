package oidcsession

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jrsteele09/go-token-lifecycle/internal/errors"
	"github.com/jrsteele09/go-token-lifecycle/sessions"
	"github.com/jrsteele09/go-token-lifecycle/sessions/store"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
)

// UpdateToken refreshes the access token when it has less than threshold of
// validity left. A still fresh token succeeds without contacting the provider.
func (s *Session) UpdateToken(ctx context.Context, threshold time.Duration) sessions.RefreshOutcome {
	s.lock.RLock()
	if !s.isTokenExpiredLocked(threshold) {
		token := s.token.AccessToken
		s.lock.RUnlock()
		return sessions.Success(token)
	}
	oauth2Config := s.oauth2Config
	refreshToken := ""
	if s.token != nil {
		refreshToken = s.token.RefreshToken
	}
	s.lock.RUnlock()

	if oauth2Config == nil {
		return sessions.Failure(fmt.Errorf("[oidcsession UpdateToken] %w", errors.ErrNotAuthenticated))
	}
	if refreshToken == "" {
		return sessions.Failure(fmt.Errorf("[oidcsession UpdateToken] %w", errors.ErrNoRefreshToken))
	}

	// The seed token has no access token, so it is never valid and the source always refreshes.
	tokenSource := oauth2Config.TokenSource(s.clientContext(ctx), &oauth2.Token{RefreshToken: refreshToken})
	newToken, err := tokenSource.Token()
	if err != nil {
		return sessions.Failure(fmt.Errorf("[oidcsession UpdateToken] %w: %w", errors.ErrRefreshFailed, err))
	}
	if newToken.AccessToken == "" {
		return sessions.Failure(fmt.Errorf("[oidcsession UpdateToken] empty access token: %w", errors.ErrRefreshFailed))
	}

	s.lock.Lock()
	s.setTokenLocked(newToken)
	s.lock.Unlock()

	if err := s.persist(newToken, nil); err != nil {
		log.Err(err).Msg("Failed to store refreshed session")
	}
	return sessions.Success(newToken.AccessToken)
}

// persist writes token into the store, keeping identity fields already stored.
func (s *Session) persist(token *oauth2.Token, identity *idTokenClaims) error {
	realm, clientID := s.cfg.GetRealm(), s.cfg.GetClientID()

	stored, err := s.store.Get(realm, clientID)
	if err != nil && !errors.Is(err, errors.ErrSessionNotFound) {
		return fmt.Errorf("failed to read stored session: %w", err)
	}
	if errors.Is(err, errors.ErrSessionNotFound) {
		stored = store.StoredSession{
			Realm:     realm,
			ClientID:  clientID,
			CreatedAt: s.nowFunc(),
		}
	}

	stored.AccessToken = token.AccessToken
	if token.RefreshToken != "" {
		stored.RefreshToken = token.RefreshToken
	}
	if rawIDToken, ok := token.Extra("id_token").(string); ok && rawIDToken != "" {
		stored.IDToken = rawIDToken
	}
	stored.ExpiresAt = tokenExpiry(token)
	if identity != nil {
		stored.Subject = identity.Sub
		stored.Email = identity.Email
		stored.Name = identity.Name
	}
	s.lock.RLock()
	if s.oauth2Config != nil {
		stored.Scopes = s.oauth2Config.Scopes
	}
	s.lock.RUnlock()

	if err := s.store.Upsert(realm, clientID, stored); err != nil {
		return fmt.Errorf("failed to store session: %w", err)
	}
	return nil
}

// tokenExpiry prefers the expiry reported by the token endpoint and falls back
// to the access token's exp claim. Zero means unknown.
func tokenExpiry(token *oauth2.Token) time.Time {
	if token == nil {
		return time.Time{}
	}
	if !token.Expiry.IsZero() {
		return token.Expiry
	}

	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token.AccessToken, &claims); err != nil {
		return time.Time{}
	}
	if claims.ExpiresAt == nil {
		return time.Time{}
	}
	return claims.ExpiresAt.Time
}
