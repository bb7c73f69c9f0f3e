package errors

import (
	"errors"
	"fmt"
)

// Common error types for the token lifecycle
var (
	// Lifecycle errors
	ErrInitializationFailed = errors.New("initialization failed")
	ErrRefreshFailed        = errors.New("refresh failed")
	ErrNoRefreshToken       = errors.New("no refresh token")
	ErrNotAuthenticated     = errors.New("not authenticated")

	// Session errors
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionExpired  = errors.New("session expired")

	// Handshake errors
	ErrInvalidState        = errors.New("invalid state parameter")
	ErrInvalidNonce        = errors.New("invalid nonce")
	ErrMissingIDToken      = errors.New("no ID token in response")
	ErrAuthorizationDenied = errors.New("authorization denied")

	// Configuration errors
	ErrInvalidConfig = errors.New("invalid configuration")
)

// Wrapf wraps an error with context using fmt.Errorf
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return errors.Is(err, target)
}
