package oidcsession

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/jrsteele09/go-token-lifecycle/internal/errors"
)

// Logout ends the session at the provider's end_session_endpoint and forgets
// it locally. The local session is dropped even when the provider call fails.
func (s *Session) Logout(ctx context.Context) error {
	realm, clientID := s.cfg.GetRealm(), s.cfg.GetClientID()

	s.lock.Lock()
	refreshToken := ""
	if s.token != nil {
		refreshToken = s.token.RefreshToken
	}
	endSessionURL := s.endSessionURL
	s.token = nil
	s.expiresAt = time.Time{}
	s.lock.Unlock()

	if stored, err := s.store.Get(realm, clientID); err == nil && refreshToken == "" {
		refreshToken = stored.RefreshToken
	} else if err != nil && !errors.Is(err, errors.ErrSessionNotFound) {
		return fmt.Errorf("[oidcsession Logout] %w", err)
	}
	if err := s.store.Delete(realm, clientID); err != nil {
		return fmt.Errorf("[oidcsession Logout] %w", err)
	}

	if endSessionURL == "" || refreshToken == "" {
		return nil
	}

	form := url.Values{}
	form.Set("client_id", clientID)
	if secret := s.cfg.GetClientSecret(); secret != "" {
		form.Set("client_secret", secret)
	}
	form.Set("refresh_token", refreshToken)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endSessionURL, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("[oidcsession Logout] %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	client := s.httpClient
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("[oidcsession Logout] %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("[oidcsession Logout] end session endpoint returned %d", resp.StatusCode)
	}
	return nil
}
