package sessions

import (
	"context"
	"time"

	"github.com/jrsteele09/go-token-lifecycle/internal/errors"
	"github.com/jrsteele09/go-token-lifecycle/oauthmodel"
)

// Session is the handle to an identity provider adapter. Implementations are
// not required to be safe for overlapping UpdateToken calls; callers serialize them.
type Session interface {
	// Init establishes the session with the provider. authenticated reports
	// whether a user session exists once the handshake completes.
	Init(ctx context.Context, policy oauthmodel.LoginPolicy) (authenticated bool, err error)

	// IsTokenExpired reports whether the access token is absent or has less
	// than threshold of validity left.
	IsTokenExpired(threshold time.Duration) bool

	// UpdateToken performs at most one refresh round trip with the provider.
	UpdateToken(ctx context.Context, threshold time.Duration) RefreshOutcome

	// Token returns the current access token, empty when there is none.
	Token() string

	ClearToken()
	Logout(ctx context.Context) error
}

// RefreshOutcome is the result of a single refresh attempt: either a token or an error.
type RefreshOutcome struct {
	token string
	err   error
}

func Success(token string) RefreshOutcome {
	return RefreshOutcome{token: token}
}

func Failure(err error) RefreshOutcome {
	if err == nil {
		err = errors.ErrRefreshFailed
	}
	return RefreshOutcome{err: err}
}

func (o RefreshOutcome) Ok() bool {
	return o.err == nil
}

func (o RefreshOutcome) Token() string {
	return o.token
}

func (o RefreshOutcome) Err() error {
	return o.err
}
