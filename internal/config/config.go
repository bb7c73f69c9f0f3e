package config

import (
	"time"

	"github.com/jrsteele09/go-token-lifecycle/oauthmodel"
)

type Config interface {
	EnvConfig
	IdentityConfig
	LifecycleConfig
}

type EnvConfig interface {
	GetPort() string
	GetAppName() string
	GetEnv() string
}

// IdentityConfig describes how to reach the identity provider.
type IdentityConfig interface {
	GetServerURL() string
	GetRealm() string
	GetClientID() string
	GetClientSecret() string
	GetRedirectURL() string
	GetLoginPolicy() oauthmodel.LoginPolicy
}

// LifecycleConfig holds the timings of the token refresh cycle.
type LifecycleConfig interface {
	GetRefreshThreshold() time.Duration
	GetSettleDelay() time.Duration
	GetRefreshInterval() time.Duration
}

type mainConfig struct {
	EnvVars
	Identity
	Lifecycle
}

func New() Config {
	return mainConfig{}
}
