package config

import (
	"fmt"
	"net/url"

	"github.com/jrsteele09/go-token-lifecycle/internal/errors"
	"github.com/jrsteele09/go-token-lifecycle/oauthmodel"
)

const (
	serverURLEnvVar    = "OIDC_SERVER_URL"
	realmEnvVar        = "OIDC_REALM"
	clientIDEnvVar     = "OIDC_CLIENT_ID"
	clientSecretEnvVar = "OIDC_CLIENT_SECRET"
	redirectURLEnvVar  = "OIDC_REDIRECT_URL"
	loginPolicyEnvVar  = "OIDC_LOGIN_POLICY"
)

type Identity struct{}

var _ IdentityConfig = Identity{}

func (Identity) GetServerURL() string {
	return GetEnv(serverURLEnvVar, "http://localhost:8081")
}

func (Identity) GetRealm() string {
	return GetEnv(realmEnvVar, "master")
}

func (Identity) GetClientID() string {
	return GetEnv(clientIDEnvVar, "")
}

// GetClientSecret is empty for public clients.
func (Identity) GetClientSecret() string {
	return GetEnv(clientSecretEnvVar, "")
}

// GetRedirectURL is where the provider sends the browser back to after an
// interactive login. The host and path are served locally during the handshake.
func (Identity) GetRedirectURL() string {
	return GetEnv(redirectURLEnvVar, "http://localhost:8400/callback")
}

func (Identity) GetLoginPolicy() oauthmodel.LoginPolicy {
	return oauthmodel.LoginPolicy(GetEnv(loginPolicyEnvVar, string(oauthmodel.LoginRequired)))
}

// Validate checks the identity options are usable before any handshake is attempted.
func Validate(c IdentityConfig) error {
	serverURL, err := url.Parse(c.GetServerURL())
	if err != nil || serverURL.Scheme == "" || serverURL.Host == "" {
		return fmt.Errorf("server url %q: %w", c.GetServerURL(), errors.ErrInvalidConfig)
	}
	if c.GetRealm() == "" {
		return fmt.Errorf("realm is required: %w", errors.ErrInvalidConfig)
	}
	if c.GetClientID() == "" {
		return fmt.Errorf("client id is required: %w", errors.ErrInvalidConfig)
	}
	if !c.GetLoginPolicy().IsValid() {
		return fmt.Errorf("login policy %q: %w", c.GetLoginPolicy(), errors.ErrInvalidConfig)
	}
	if c.GetLoginPolicy() == oauthmodel.LoginRequired {
		redirectURL, err := url.Parse(c.GetRedirectURL())
		if err != nil || redirectURL.Host == "" {
			return fmt.Errorf("redirect url %q: %w", c.GetRedirectURL(), errors.ErrInvalidConfig)
		}
	}
	return nil
}
