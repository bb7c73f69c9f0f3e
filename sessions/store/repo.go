package store

import "time"

// StoredSession is what survives between handshakes for one realm and client.
type StoredSession struct {
	// Identity
	Realm    string
	ClientID string
	Subject  string
	Email    string
	Name     string

	// Tokens (refresh is essential, access is convenience)
	AccessToken  string
	RefreshToken string
	IDToken      string

	Scopes []string

	ExpiresAt time.Time
	CreatedAt time.Time
}

type Repo interface {
	Upsert(realm, clientID string, session StoredSession) error
	Get(realm, clientID string) (StoredSession, error)
	Delete(realm, clientID string) error
}
