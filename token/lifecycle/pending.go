package lifecycle

import (
	"context"
	"sync"
)

// PendingToken is a token that may still be on its way. It resolves exactly
// once; an empty token means there is no authenticated session.
type PendingToken struct {
	done  chan struct{}
	once  sync.Once
	token string
}

func newPendingToken() *PendingToken {
	return &PendingToken{done: make(chan struct{})}
}

func resolvedToken(token string) *PendingToken {
	p := newPendingToken()
	p.resolve(token)
	return p
}

// resolve sets the token. Later calls are ignored.
func (p *PendingToken) resolve(token string) {
	p.once.Do(func() {
		p.token = token
		close(p.done)
	})
}

// Done is closed once the token is known.
func (p *PendingToken) Done() <-chan struct{} {
	return p.done
}

// Wait blocks until the token is known or ctx is cancelled. The only error
// returned is the context's.
func (p *PendingToken) Wait(ctx context.Context) (string, error) {
	select {
	case <-p.done:
		return p.token, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Peek returns the token without blocking. ok is false while still pending.
func (p *PendingToken) Peek() (token string, ok bool) {
	select {
	case <-p.done:
		return p.token, true
	default:
		return "", false
	}
}
