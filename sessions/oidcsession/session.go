package oidcsession

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/jrsteele09/go-token-lifecycle/internal/config"
	"github.com/jrsteele09/go-token-lifecycle/internal/errors"
	"github.com/jrsteele09/go-token-lifecycle/oauthmodel"
	"github.com/jrsteele09/go-token-lifecycle/sessions"
	"github.com/jrsteele09/go-token-lifecycle/sessions/authflow"
	"github.com/jrsteele09/go-token-lifecycle/sessions/store"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
)

const authFlowMaxAge = 10 * time.Minute

var _ sessions.Session = (*Session)(nil)

// Session talks to a Keycloak-style OIDC provider whose issuer is
// <serverURL>/realms/<realm>.
type Session struct {
	cfg        config.IdentityConfig
	store      store.Repo
	flows      authflow.Repo
	httpClient *http.Client
	prompt     func(authURL string)
	nowFunc    func() time.Time

	lock          sync.RWMutex
	provider      *oidc.Provider
	oauth2Config  *oauth2.Config
	verifier      *oidc.IDTokenVerifier
	endSessionURL string
	token         *oauth2.Token
	expiresAt     time.Time
}

type Option func(*Session)

// WithHTTPClient sets the client used for discovery, token and logout requests.
func WithHTTPClient(client *http.Client) Option {
	return func(s *Session) { s.httpClient = client }
}

// WithStore sets where sessions are kept between handshakes.
func WithStore(repo store.Repo) Option {
	return func(s *Session) { s.store = repo }
}

// WithPrompt sets how the interactive login URL is presented to the user.
func WithPrompt(prompt func(authURL string)) Option {
	return func(s *Session) { s.prompt = prompt }
}

func WithNowFunc(nowFunc func() time.Time) Option {
	return func(s *Session) { s.nowFunc = nowFunc }
}

func New(cfg config.IdentityConfig, opts ...Option) *Session {
	s := &Session{
		cfg:     cfg,
		store:   store.NewInMemoryRepo(),
		prompt:  logPrompt,
		nowFunc: time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.flows = authflow.NewInMemoryRepo(authFlowMaxAge, s.nowFunc)
	return s
}

// IssuerURL builds the realm issuer from the server URL.
func IssuerURL(serverURL, realm string) string {
	return strings.TrimRight(serverURL, "/") + "/realms/" + realm
}

// Init discovers the provider and establishes the session. A stored session
// is restored for either policy. Without one, check-sso reports
// "not authenticated" and login-required runs an interactive login.
func (s *Session) Init(ctx context.Context, policy oauthmodel.LoginPolicy) (bool, error) {
	if !policy.IsValid() {
		return false, fmt.Errorf("[oidcsession Init] login policy %q: %w", policy, errors.ErrInvalidConfig)
	}
	ctx = s.clientContext(ctx)

	if err := s.discover(ctx); err != nil {
		return false, fmt.Errorf("[oidcsession Init] %w", err)
	}

	restored, err := s.restore()
	if err != nil {
		return false, fmt.Errorf("[oidcsession Init] %w", err)
	}
	if restored {
		return true, nil
	}

	if policy == oauthmodel.CheckSSO {
		return false, nil
	}
	if err := s.login(ctx); err != nil {
		return false, fmt.Errorf("[oidcsession Init] login: %w", err)
	}
	return true, nil
}

func (s *Session) discover(ctx context.Context) error {
	issuer := IssuerURL(s.cfg.GetServerURL(), s.cfg.GetRealm())
	provider, err := oidc.NewProvider(ctx, issuer)
	if err != nil {
		return fmt.Errorf("failed to create OIDC provider: %w", err)
	}

	var metadata struct {
		EndSessionEndpoint string `json:"end_session_endpoint"`
	}
	if err := provider.Claims(&metadata); err != nil {
		return fmt.Errorf("failed to read provider metadata: %w", err)
	}

	s.lock.Lock()
	defer s.lock.Unlock()
	s.provider = provider
	s.endSessionURL = metadata.EndSessionEndpoint
	s.oauth2Config = &oauth2.Config{
		ClientID:     s.cfg.GetClientID(),
		ClientSecret: s.cfg.GetClientSecret(),
		Endpoint:     provider.Endpoint(),
		RedirectURL:  s.cfg.GetRedirectURL(),
		Scopes:       []string{oidc.ScopeOpenID, "profile", "email", oidc.ScopeOfflineAccess},
	}
	s.verifier = provider.Verifier(&oidc.Config{
		ClientID: s.cfg.GetClientID(),
		Now:      s.nowFunc,
	})
	return nil
}

func (s *Session) restore() (bool, error) {
	stored, err := s.store.Get(s.cfg.GetRealm(), s.cfg.GetClientID())
	if errors.Is(err, errors.ErrSessionNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read stored session: %w", err)
	}
	if stored.AccessToken == "" && stored.RefreshToken == "" {
		return false, nil
	}

	token := (&oauth2.Token{
		AccessToken:  stored.AccessToken,
		TokenType:    "Bearer",
		RefreshToken: stored.RefreshToken,
		Expiry:       stored.ExpiresAt,
	}).WithExtra(map[string]interface{}{"id_token": stored.IDToken})

	s.lock.Lock()
	defer s.lock.Unlock()
	s.setTokenLocked(token)
	log.Debug().Str("realm", stored.Realm).Str("sub", stored.Subject).Msg("Restored stored session")
	return true, nil
}

// Token returns the current access token, empty when there is none.
func (s *Session) Token() string {
	s.lock.RLock()
	defer s.lock.RUnlock()
	if s.token == nil {
		return ""
	}
	return s.token.AccessToken
}

// IsTokenExpired reports whether the access token has less than threshold of
// validity left. A token without any expiry information never expires.
func (s *Session) IsTokenExpired(threshold time.Duration) bool {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return s.isTokenExpiredLocked(threshold)
}

func (s *Session) isTokenExpiredLocked(threshold time.Duration) bool {
	if s.token == nil || s.token.AccessToken == "" {
		return true
	}
	if s.expiresAt.IsZero() {
		return false
	}
	return s.expiresAt.Sub(s.nowFunc()) < threshold
}

// ClearToken drops the in-memory tokens. The stored session is kept so that
// Logout can still end it at the provider.
func (s *Session) ClearToken() {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.token = nil
	s.expiresAt = time.Time{}
}

func (s *Session) setTokenLocked(token *oauth2.Token) {
	s.token = token
	s.expiresAt = tokenExpiry(token)
}

func (s *Session) clientContext(ctx context.Context) context.Context {
	if s.httpClient == nil {
		return ctx
	}
	return oidc.ClientContext(ctx, s.httpClient)
}

func logPrompt(authURL string) {
	log.Info().Str("url", authURL).Msg("Open the following URL in a browser to log in")
}
