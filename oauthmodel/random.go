package oauthmodel

import (
	"crypto/rand"
	"encoding/base64"
)

// GenerateRandomString creates a random base64url string from length random bytes.
// Used for OAuth state and OIDC nonce values.
func GenerateRandomString(length int) string {
	b := make([]byte, length)
	_, _ = rand.Read(b)
	return base64.RawURLEncoding.EncodeToString(b)
}
