package lifecycle

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jrsteele09/go-token-lifecycle/internal/config"
	"github.com/jrsteele09/go-token-lifecycle/internal/errors"
	"github.com/jrsteele09/go-token-lifecycle/oauthmodel"
	"github.com/jrsteele09/go-token-lifecycle/sessions"
	"github.com/rs/zerolog/log"
)

// Config is the subset of the application config the manager needs.
type Config interface {
	config.IdentityConfig
	config.LifecycleConfig
}

// Manager owns a provider session and keeps "the current token" valid.
// Refreshes against the session are serialized: at most one UpdateToken call
// is in flight at any time.
type Manager struct {
	session     sessions.Session
	policy      oauthmodel.LoginPolicy
	threshold   time.Duration
	settleDelay time.Duration
	interval    time.Duration

	lock     sync.Mutex
	inFlight *PendingToken // refresh in progress, nil when idle

	established atomic.Bool
	current     atomic.Pointer[PendingToken]
}

// NewManager validates cfg and returns a manager whose current token is empty
// until Initialize is called.
func NewManager(session sessions.Session, cfg Config) (*Manager, error) {
	if session == nil {
		return nil, fmt.Errorf("[lifecycle NewManager] session is required: %w", errors.ErrInvalidConfig)
	}
	if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("[lifecycle NewManager] %w", err)
	}
	if cfg.GetRefreshInterval() <= 0 {
		return nil, fmt.Errorf("[lifecycle NewManager] refresh interval must be positive: %w", errors.ErrInvalidConfig)
	}

	m := &Manager{
		session:     session,
		policy:      cfg.GetLoginPolicy(),
		threshold:   cfg.GetRefreshThreshold(),
		settleDelay: cfg.GetSettleDelay(),
		interval:    cfg.GetRefreshInterval(),
	}
	m.current.Store(resolvedToken(""))
	return m, nil
}

// Initialize performs the provider handshake in the background and returns the
// startup token, which also becomes the current token. A failed handshake
// resolves to an empty token rather than an error.
func (m *Manager) Initialize(ctx context.Context) *PendingToken {
	pending := newPendingToken()
	m.current.Store(pending)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				log.Error().Interface("panic", r).Msg("Authentication failed")
				pending.resolve("")
			}
		}()

		authenticated, err := m.session.Init(ctx, m.policy)
		if err != nil {
			log.Err(fmt.Errorf("%w: %w", errors.ErrInitializationFailed, err)).Msg("Authentication failed")
			pending.resolve("")
			return
		}
		if !authenticated {
			log.Info().Str("login_policy", m.policy.String()).Msg("Not Authenticated")
			pending.resolve("")
			return
		}
		log.Info().Str("login_policy", m.policy.String()).Msg("Authenticated")
		m.established.Store(true)

		select {
		case <-time.After(m.settleDelay):
		case <-ctx.Done():
			pending.resolve("")
			return
		}

		token, err := m.EnsureFreshToken(ctx).Wait(ctx)
		if err != nil {
			log.Err(err).Msg("Startup token wait cancelled")
		}
		pending.resolve(token)
	}()

	return pending
}

// EnsureFreshToken returns the current token when it has at least the refresh
// threshold of validity left, without contacting the provider. Otherwise it
// starts a single refresh and returns a token tied to its outcome. A failed
// refresh clears the token, logs the user out and resolves to "".
//
// A call made while a refresh is in flight waits for it. If that refresh
// failed the call resolves to "" without contacting the provider again;
// otherwise freshness is checked again.
func (m *Manager) EnsureFreshToken(ctx context.Context) *PendingToken {
	m.lock.Lock()
	if inFlight := m.inFlight; inFlight != nil {
		m.lock.Unlock()
		return m.after(ctx, inFlight)
	}
	if !m.session.IsTokenExpired(m.threshold) {
		token := m.session.Token()
		m.lock.Unlock()
		return resolvedToken(token)
	}
	pending := newPendingToken()
	m.inFlight = pending
	m.lock.Unlock()

	go func() {
		token := m.refresh(ctx)
		m.lock.Lock()
		m.inFlight = nil
		m.lock.Unlock()
		pending.resolve(token)
	}()
	return pending
}

// after resolves once inFlight has, following its outcome.
func (m *Manager) after(ctx context.Context, inFlight *PendingToken) *PendingToken {
	pending := newPendingToken()
	go func() {
		<-inFlight.Done()
		if token, _ := inFlight.Peek(); token == "" {
			pending.resolve("")
			return
		}
		token, _ := m.EnsureFreshToken(ctx).Wait(context.Background())
		pending.resolve(token)
	}()
	return pending
}

func (m *Manager) refresh(ctx context.Context) string {
	logger := log.With().Str("refresh_id", uuid.NewString()).Logger()

	outcome := m.session.UpdateToken(ctx, m.threshold)
	if outcome.Ok() && outcome.Token() != "" {
		logger.Debug().Msg("Token refreshed")
		return outcome.Token()
	}

	err := outcome.Err()
	if err == nil {
		err = fmt.Errorf("provider returned an empty token: %w", errors.ErrRefreshFailed)
	}
	logger.Err(err).Msg("Failed to refresh token")

	m.session.ClearToken()
	if err := m.session.Logout(ctx); err != nil {
		logger.Err(err).Msg("Logout after failed refresh")
	}
	return ""
}

// Established reports whether Initialize has authenticated a session. It stays
// true after a failed refresh logs the user out.
func (m *Manager) Established() bool {
	return m.established.Load()
}

// Current returns the latest token. Readers see either the previous or the
// next value, never a partially built one.
func (m *Manager) Current() *PendingToken {
	return m.current.Load()
}

// Token waits for the current token.
func (m *Manager) Token(ctx context.Context) (string, error) {
	return m.Current().Wait(ctx)
}
