package oauthmodel

// LoginPolicy determines what the session handshake does when no
// authenticated session exists yet.
type LoginPolicy string

const (
	// LoginRequired runs an interactive login when no session can be restored.
	LoginRequired LoginPolicy = "login-required"

	// CheckSSO only checks for an existing session and never prompts.
	// An absent session is reported as "not authenticated", not as a failure.
	CheckSSO LoginPolicy = "check-sso"
)

func (p LoginPolicy) IsValid() bool {
	return p == LoginRequired || p == CheckSSO
}

func (p LoginPolicy) String() string {
	return string(p)
}
