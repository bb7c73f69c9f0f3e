package store

import (
	"fmt"
	"sync"

	"github.com/jrsteele09/go-token-lifecycle/internal/errors"
)

// InMemoryRepo keeps stored sessions for the lifetime of the process.
type InMemoryRepo struct {
	mu       sync.RWMutex
	sessions map[string]map[string]StoredSession // realm -> clientID -> session
}

var _ Repo = (*InMemoryRepo)(nil)

func NewInMemoryRepo() *InMemoryRepo {
	return &InMemoryRepo{
		sessions: make(map[string]map[string]StoredSession),
	}
}

func (r *InMemoryRepo) Upsert(realm, clientID string, session StoredSession) error {
	if err := checkKeys(realm, clientID); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[realm]; !ok {
		r.sessions[realm] = make(map[string]StoredSession)
	}
	session.Scopes = append([]string(nil), session.Scopes...)
	r.sessions[realm][clientID] = session
	return nil
}

func (r *InMemoryRepo) Get(realm, clientID string) (StoredSession, error) {
	if err := checkKeys(realm, clientID); err != nil {
		return StoredSession{}, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	realmSessions, ok := r.sessions[realm]
	if !ok {
		return StoredSession{}, errors.ErrSessionNotFound
	}
	session, ok := realmSessions[clientID]
	if !ok {
		return StoredSession{}, errors.ErrSessionNotFound
	}
	session.Scopes = append([]string(nil), session.Scopes...)
	return session, nil
}

func (r *InMemoryRepo) Delete(realm, clientID string) error {
	if err := checkKeys(realm, clientID); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	realmSessions, ok := r.sessions[realm]
	if !ok {
		return nil // Already doesn't exist, no error
	}
	delete(realmSessions, clientID)
	if len(realmSessions) == 0 {
		delete(r.sessions, realm)
	}
	return nil
}

func checkKeys(realm, clientID string) error {
	if realm == "" {
		return fmt.Errorf("realm is required")
	}
	if clientID == "" {
		return fmt.Errorf("clientID is required")
	}
	return nil
}
