package config_test

import (
	"testing"
	"time"

	"github.com/jrsteele09/go-token-lifecycle/internal/config"
	"github.com/jrsteele09/go-token-lifecycle/internal/errors"
	"github.com/jrsteele09/go-token-lifecycle/oauthmodel"
	"github.com/stretchr/testify/require"
)

func setIdentityEnv(t *testing.T) {
	t.Helper()
	t.Setenv("OIDC_SERVER_URL", "https://sso.example.com")
	t.Setenv("OIDC_REALM", "apps")
	t.Setenv("OIDC_CLIENT_ID", "spa")
	t.Setenv("OIDC_LOGIN_POLICY", "check-sso")
}

func TestNew(t *testing.T) {
	setIdentityEnv(t)
	t.Setenv("PORT", "9090")

	c := config.New()
	require.Equal(t, ":9090", c.GetPort())
	require.Equal(t, "DEV", c.GetEnv())
	require.Equal(t, "https://sso.example.com", c.GetServerURL())
	require.Equal(t, "apps", c.GetRealm())
	require.Equal(t, "spa", c.GetClientID())
	require.Equal(t, oauthmodel.CheckSSO, c.GetLoginPolicy())
	require.Equal(t, 120*time.Second, c.GetRefreshThreshold())
	require.Equal(t, 2*time.Second, c.GetSettleDelay())
	require.Equal(t, 10*time.Second, c.GetRefreshInterval())
	require.NoError(t, config.Validate(c))
}

func TestGetPort(t *testing.T) {
	t.Setenv("PORT", ":7000")
	require.Equal(t, ":7000", config.EnvVars{}.GetPort())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{name: "missing client id", env: map[string]string{"OIDC_CLIENT_ID": ""}},
		{name: "relative server url", env: map[string]string{"OIDC_SERVER_URL": "sso.example.com"}},
		{name: "unknown login policy", env: map[string]string{"OIDC_LOGIN_POLICY": "sometimes"}},
		{name: "login-required without redirect host", env: map[string]string{
			"OIDC_LOGIN_POLICY": "login-required",
			"OIDC_REDIRECT_URL": "/callback",
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setIdentityEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			require.ErrorIs(t, config.Validate(config.New()), errors.ErrInvalidConfig)
		})
	}
}
