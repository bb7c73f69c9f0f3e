package authflow

import "time"

// State is what an interactive login needs to remember between sending the
// browser to the provider and receiving the callback.
type State struct {
	Realm        string
	CodeVerifier string
	Nonce        string
	CreatedAt    time.Time
}

type Repo interface {
	Upsert(state string, flowState *State) error
	Get(state string) (*State, error)
	Delete(state string) error
}
