package sessionfake

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jrsteele09/go-token-lifecycle/oauthmodel"
	"github.com/jrsteele09/go-token-lifecycle/sessions"
)

var _ sessions.Session = (*FakeSession)(nil)

// FakeSession is a scriptable identity provider adapter. Refreshes succeed with
// NextToken unless RefreshErr is set. When Gate is non-nil every refresh blocks
// until a value is received from it.
type FakeSession struct {
	lock sync.Mutex

	token     string
	expiresAt time.Time

	InitAuthenticated bool
	InitErr           error
	NextToken         string
	NextValidity      time.Duration
	RefreshErr        error
	LogoutErr         error
	Gate              chan struct{}

	initCalls     int
	refreshCalls  int
	logoutCalls   int
	clearCalls    int
	inFlight      int
	maxInFlight   int
	lastPolicy    oauthmodel.LoginPolicy
	refreshCalled chan struct{}
}

// NewFakeSession creates a session holding token with validity remaining.
func NewFakeSession(token string, validity time.Duration) *FakeSession {
	return &FakeSession{
		token:             token,
		expiresAt:         time.Now().Add(validity),
		InitAuthenticated: true,
		NextValidity:      time.Hour,
		refreshCalled:     make(chan struct{}, 64),
	}
}

func (f *FakeSession) Init(_ context.Context, policy oauthmodel.LoginPolicy) (bool, error) {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.initCalls++
	f.lastPolicy = policy
	if f.InitErr != nil {
		return false, f.InitErr
	}
	return f.InitAuthenticated, nil
}

func (f *FakeSession) IsTokenExpired(threshold time.Duration) bool {
	f.lock.Lock()
	defer f.lock.Unlock()
	return f.token == "" || time.Until(f.expiresAt) < threshold
}

func (f *FakeSession) UpdateToken(ctx context.Context, threshold time.Duration) sessions.RefreshOutcome {
	f.lock.Lock()
	f.refreshCalls++
	f.inFlight++
	if f.inFlight > f.maxInFlight {
		f.maxInFlight = f.inFlight
	}
	gate := f.Gate
	f.lock.Unlock()

	select {
	case f.refreshCalled <- struct{}{}:
	default:
	}

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			f.finishRefresh()
			return sessions.Failure(ctx.Err())
		}
	}

	f.lock.Lock()
	defer f.lock.Unlock()
	f.inFlight--
	if f.RefreshErr != nil {
		return sessions.Failure(f.RefreshErr)
	}
	if f.NextToken == "" {
		return sessions.Failure(errors.New("provider returned no token"))
	}
	f.token = f.NextToken
	f.expiresAt = time.Now().Add(f.NextValidity)
	return sessions.Success(f.token)
}

func (f *FakeSession) finishRefresh() {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.inFlight--
}

func (f *FakeSession) Token() string {
	f.lock.Lock()
	defer f.lock.Unlock()
	return f.token
}

func (f *FakeSession) ClearToken() {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.clearCalls++
	f.token = ""
	f.expiresAt = time.Time{}
}

func (f *FakeSession) Logout(_ context.Context) error {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.logoutCalls++
	f.token = ""
	return f.LogoutErr
}

// SetToken replaces the current token and its remaining validity.
func (f *FakeSession) SetToken(token string, validity time.Duration) {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.token = token
	f.expiresAt = time.Now().Add(validity)
}

// RefreshCalled receives once for every UpdateToken call as it starts.
func (f *FakeSession) RefreshCalled() <-chan struct{} {
	return f.refreshCalled
}

func (f *FakeSession) InitCalls() int {
	f.lock.Lock()
	defer f.lock.Unlock()
	return f.initCalls
}

func (f *FakeSession) RefreshCalls() int {
	f.lock.Lock()
	defer f.lock.Unlock()
	return f.refreshCalls
}

func (f *FakeSession) LogoutCalls() int {
	f.lock.Lock()
	defer f.lock.Unlock()
	return f.logoutCalls
}

func (f *FakeSession) ClearCalls() int {
	f.lock.Lock()
	defer f.lock.Unlock()
	return f.clearCalls
}

// MaxInFlight is the highest number of overlapping UpdateToken calls observed.
func (f *FakeSession) MaxInFlight() int {
	f.lock.Lock()
	defer f.lock.Unlock()
	return f.maxInFlight
}

func (f *FakeSession) LastPolicy() oauthmodel.LoginPolicy {
	f.lock.Lock()
	defer f.lock.Unlock()
	return f.lastPolicy
}
