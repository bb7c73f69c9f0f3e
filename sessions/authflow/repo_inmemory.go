package authflow

import (
	"errors"
	"fmt"
	"sync"
	"time"

	tlerrors "github.com/jrsteele09/go-token-lifecycle/internal/errors"
)

// InMemoryRepo is a thread-safe in-memory implementation of the Repo interface.
// States older than maxAge are reported as expired.
type InMemoryRepo struct {
	mu     sync.RWMutex
	states map[string]*State
	maxAge time.Duration
	now    func() time.Time
}

var _ Repo = (*InMemoryRepo)(nil)

// NewInMemoryRepo creates a repo that ages states against now, which should be
// the same clock used to stamp State.CreatedAt. A nil now means time.Now.
func NewInMemoryRepo(maxAge time.Duration, now func() time.Time) *InMemoryRepo {
	if now == nil {
		now = time.Now
	}
	return &InMemoryRepo{
		states: make(map[string]*State),
		maxAge: maxAge,
		now:    now,
	}
}

func (r *InMemoryRepo) Upsert(state string, flowState *State) error {
	if state == "" {
		return errors.New("state cannot be empty")
	}
	if flowState == nil {
		return errors.New("flowState cannot be nil")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	stored := *flowState
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = r.now()
	}
	r.states[state] = &stored
	return nil
}

func (r *InMemoryRepo) Get(state string) (*State, error) {
	if state == "" {
		return nil, tlerrors.ErrInvalidState
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	flowState, exists := r.states[state]
	if !exists {
		return nil, tlerrors.ErrInvalidState
	}
	if r.maxAge > 0 && r.now().Sub(flowState.CreatedAt) > r.maxAge {
		return nil, fmt.Errorf("state created at %s: %w", flowState.CreatedAt.Format(time.RFC3339), tlerrors.ErrSessionExpired)
	}

	copied := *flowState
	return &copied, nil
}

func (r *InMemoryRepo) Delete(state string) error {
	if state == "" {
		return errors.New("state cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.states, state)
	return nil
}
