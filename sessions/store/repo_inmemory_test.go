package store_test

import (
	"testing"
	"time"

	"github.com/jrsteele09/go-token-lifecycle/internal/errors"
	"github.com/jrsteele09/go-token-lifecycle/sessions/store"
	"github.com/stretchr/testify/require"
)

func TestInMemoryRepo(t *testing.T) {
	repo := store.NewInMemoryRepo()
	session := store.StoredSession{
		Realm:        "apps",
		ClientID:     "spa",
		AccessToken:  "access",
		RefreshToken: "refresh",
		Scopes:       []string{"openid"},
		ExpiresAt:    time.Now().Add(time.Hour),
	}

	t.Run("missing session", func(t *testing.T) {
		_, err := repo.Get("apps", "spa")
		require.ErrorIs(t, err, errors.ErrSessionNotFound)
	})

	t.Run("upsert and get", func(t *testing.T) {
		require.NoError(t, repo.Upsert("apps", "spa", session))
		got, err := repo.Get("apps", "spa")
		require.NoError(t, err)
		require.Equal(t, session, got)

		got.Scopes[0] = "mutated"
		again, err := repo.Get("apps", "spa")
		require.NoError(t, err)
		require.Equal(t, "openid", again.Scopes[0])
	})

	t.Run("sessions are isolated per realm and client", func(t *testing.T) {
		_, err := repo.Get("apps", "other")
		require.ErrorIs(t, err, errors.ErrSessionNotFound)
		_, err = repo.Get("other", "spa")
		require.ErrorIs(t, err, errors.ErrSessionNotFound)
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, repo.Delete("apps", "spa"))
		_, err := repo.Get("apps", "spa")
		require.ErrorIs(t, err, errors.ErrSessionNotFound)
		require.NoError(t, repo.Delete("apps", "spa"))
	})

	t.Run("keys are required", func(t *testing.T) {
		require.Error(t, repo.Upsert("", "spa", session))
		require.Error(t, repo.Upsert("apps", "", session))
		_, err := repo.Get("", "")
		require.Error(t, err)
	})
}
