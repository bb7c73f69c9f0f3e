package oidcsession

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/jrsteele09/go-token-lifecycle/internal/errors"
	"github.com/jrsteele09/go-token-lifecycle/oauthmodel"
	"github.com/jrsteele09/go-token-lifecycle/sessions/authflow"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
)

type idTokenClaims struct {
	Nonce string `json:"nonce"`
	Sub   string `json:"sub"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

// login runs the authorization code flow with PKCE. The callback is served on
// the host and path of the configured redirect URL until the provider answers
// or ctx is done.
func (s *Session) login(ctx context.Context) error {
	redirectURL, err := url.Parse(s.cfg.GetRedirectURL())
	if err != nil || redirectURL.Host == "" {
		return fmt.Errorf("redirect url %q: %w", s.cfg.GetRedirectURL(), errors.ErrInvalidConfig)
	}

	state := oauthmodel.GenerateRandomString(32)
	nonce := oauthmodel.GenerateRandomString(32)
	verifier := oauth2.GenerateVerifier()
	if err := s.flows.Upsert(state, &authflow.State{
		Realm:        s.cfg.GetRealm(),
		CodeVerifier: verifier,
		Nonce:        nonce,
		CreatedAt:    s.nowFunc(),
	}); err != nil {
		return errors.Wrapf(err, "failed to store auth flow state")
	}
	defer func() { _ = s.flows.Delete(state) }()

	s.lock.RLock()
	authURL := s.oauth2Config.AuthCodeURL(state, oauth2.S256ChallengeOption(verifier), oidc.Nonce(nonce))
	s.lock.RUnlock()

	listener, err := net.Listen("tcp", redirectURL.Host)
	if err != nil {
		return errors.Wrapf(err, "failed to listen for the login callback")
	}

	results := make(chan error, 1)
	path := redirectURL.Path
	if path == "" {
		path = "/"
	}
	mux := http.NewServeMux()
	mux.HandleFunc(path, s.callbackHandler(ctx, results))
	server := &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		if err := server.Serve(listener); err != nil && err != http.ErrServerClosed {
			log.Err(err).Msg("Login callback server stopped")
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	s.prompt(authURL)

	select {
	case err := <-results:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// callbackHandler completes the login. Requests without a known state are
// rejected without ending the flow.
func (s *Session) callbackHandler(ctx context.Context, results chan<- error) http.HandlerFunc {
	deliver := func(err error) {
		select {
		case results <- err:
		default:
		}
	}

	return func(w http.ResponseWriter, r *http.Request) {
		state := r.FormValue("state")
		code := r.FormValue("code")
		errorParam := r.FormValue("error")
		errorDesc := r.FormValue("error_description")

		if errorParam != "" {
			http.Error(w, fmt.Sprintf("Authorization failed: %s - %s", errorParam, errorDesc), http.StatusBadRequest)
			deliver(fmt.Errorf("%s - %s: %w", errorParam, errorDesc, errors.ErrAuthorizationDenied))
			return
		}

		if code == "" || state == "" {
			http.Error(w, "Missing code or state parameter", http.StatusBadRequest)
			return
		}

		flowState, err := s.flows.Get(state)
		if err != nil {
			http.Error(w, "Invalid state parameter", http.StatusBadRequest)
			return
		}
		_ = s.flows.Delete(state)

		if err := s.exchange(s.clientContext(ctx), code, flowState); err != nil {
			http.Error(w, fmt.Sprintf("Login failed: %v", err), http.StatusInternalServerError)
			deliver(err)
			return
		}

		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = fmt.Fprintln(w, "Login complete. You can close this window.")
		deliver(nil)
	}
}

// exchange swaps the authorization code for tokens, verifies the ID token and
// its nonce, and stores the session.
func (s *Session) exchange(ctx context.Context, code string, flowState *authflow.State) error {
	s.lock.RLock()
	oauth2Config, verifier := s.oauth2Config, s.verifier
	s.lock.RUnlock()

	token, err := oauth2Config.Exchange(ctx, code, oauth2.VerifierOption(flowState.CodeVerifier))
	if err != nil {
		return errors.Wrapf(err, "token exchange failed")
	}

	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok || rawIDToken == "" {
		return errors.ErrMissingIDToken
	}

	idToken, err := verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return errors.Wrapf(err, "ID token verification failed")
	}

	var claims idTokenClaims
	if err := idToken.Claims(&claims); err != nil {
		return errors.Wrapf(err, "failed to extract claims")
	}
	if claims.Nonce != flowState.Nonce {
		return errors.ErrInvalidNonce
	}

	s.lock.Lock()
	s.setTokenLocked(token)
	s.lock.Unlock()

	if err := s.persist(token, &claims); err != nil {
		return err
	}
	log.Info().Str("sub", claims.Sub).Str("email", claims.Email).Msg("Login complete")
	return nil
}
