package oidcsession_test

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math/big"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jrsteele09/go-token-lifecycle/oauthmodel"
	"github.com/stretchr/testify/require"
)

const (
	testRealm    = "test-realm"
	testClientID = "test-client"
	testKeyID    = "test-key"
	testSubject  = "user-1"
	testEmail    = "john.doe@example.com"
)

type codeGrant struct {
	challenge string
	nonce     string
}

// fakeProvider is a minimal Keycloak-like realm: discovery, JWKS, authorize,
// token and logout endpoints.
type fakeProvider struct {
	t      *testing.T
	server *httptest.Server
	key    *rsa.PrivateKey

	mu               sync.Mutex
	refreshTokens    map[string]bool
	codes            map[string]codeGrant
	nextAccessToken  string
	overrideNonce    string
	denyLogin        bool
	tokenCalls       int
	logoutCalls      int
	loggedOutRefresh []string
	rotations        int
}

func newFakeProvider(t *testing.T) *fakeProvider {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	fp := &fakeProvider{
		t:               t,
		key:             key,
		refreshTokens:   make(map[string]bool),
		codes:           make(map[string]codeGrant),
		nextAccessToken: "abc123",
	}

	prefix := "/realms/" + testRealm
	mux := http.NewServeMux()
	mux.HandleFunc(prefix+"/.well-known/openid-configuration", fp.discovery)
	mux.HandleFunc(prefix+"/protocol/openid-connect/certs", fp.jwks)
	mux.HandleFunc(prefix+"/protocol/openid-connect/auth", fp.authorize)
	mux.HandleFunc(prefix+"/protocol/openid-connect/token", fp.token)
	mux.HandleFunc(prefix+"/protocol/openid-connect/logout", fp.logout)

	fp.server = httptest.NewServer(mux)
	t.Cleanup(fp.server.Close)
	return fp
}

func (fp *fakeProvider) URL() string {
	return fp.server.URL
}

func (fp *fakeProvider) issuer() string {
	return fp.server.URL + "/realms/" + testRealm
}

func (fp *fakeProvider) addRefreshToken(token string) {
	fp.mu.Lock()
	defer fp.mu.Unlock()
	fp.refreshTokens[token] = true
}

func (fp *fakeProvider) TokenCalls() int {
	fp.mu.Lock()
	defer fp.mu.Unlock()
	return fp.tokenCalls
}

func (fp *fakeProvider) LogoutCalls() (int, []string) {
	fp.mu.Lock()
	defer fp.mu.Unlock()
	return fp.logoutCalls, append([]string(nil), fp.loggedOutRefresh...)
}

func (fp *fakeProvider) discovery(w http.ResponseWriter, r *http.Request) {
	base := fp.issuer() + "/protocol/openid-connect"
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"issuer":                                fp.issuer(),
		"authorization_endpoint":                base + "/auth",
		"token_endpoint":                        base + "/token",
		"jwks_uri":                              base + "/certs",
		"end_session_endpoint":                  base + "/logout",
		"id_token_signing_alg_values_supported": []string{"RS256"},
	})
}

func (fp *fakeProvider) jwks(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"keys": []map[string]string{{
			"kty": "RSA",
			"kid": testKeyID,
			"alg": "RS256",
			"use": "sig",
			"n":   base64.RawURLEncoding.EncodeToString(fp.key.N.Bytes()),
			"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(fp.key.E)).Bytes()),
		}},
	})
}

// authorize stands in for the browser login: it redirects straight back to the client.
func (fp *fakeProvider) authorize(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	redirectURI, err := url.Parse(q.Get("redirect_uri"))
	if err != nil {
		http.Error(w, "bad redirect_uri", http.StatusBadRequest)
		return
	}

	params := url.Values{}
	params.Set("state", q.Get("state"))

	fp.mu.Lock()
	if fp.denyLogin {
		params.Set("error", "access_denied")
		params.Set("error_description", "user cancelled")
	} else {
		code := oauthmodel.GenerateRandomString(16)
		fp.codes[code] = codeGrant{challenge: q.Get("code_challenge"), nonce: q.Get("nonce")}
		params.Set("code", code)
	}
	fp.mu.Unlock()

	redirectURI.RawQuery = params.Encode()
	http.Redirect(w, r, redirectURI.String(), http.StatusFound)
}

func (fp *fakeProvider) token(w http.ResponseWriter, r *http.Request) {
	require.NoError(fp.t, r.ParseForm())

	fp.mu.Lock()
	defer fp.mu.Unlock()
	fp.tokenCalls++

	switch r.PostForm.Get("grant_type") {
	case "refresh_token":
		refreshToken := r.PostForm.Get("refresh_token")
		if !fp.refreshTokens[refreshToken] {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_grant"})
			return
		}
		delete(fp.refreshTokens, refreshToken)
		fp.rotations++
		rotated := fmt.Sprintf("rotated-%d", fp.rotations)
		fp.refreshTokens[rotated] = true
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"access_token":  fp.nextAccessToken,
			"token_type":    "Bearer",
			"expires_in":    300,
			"refresh_token": rotated,
		})

	case "authorization_code":
		grant, ok := fp.codes[r.PostForm.Get("code")]
		if !ok {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_grant"})
			return
		}
		sum := sha256.Sum256([]byte(r.PostForm.Get("code_verifier")))
		if base64.RawURLEncoding.EncodeToString(sum[:]) != grant.challenge {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_grant", "error_description": "PKCE mismatch"})
			return
		}
		delete(fp.codes, r.PostForm.Get("code"))

		nonce := grant.nonce
		if fp.overrideNonce != "" {
			nonce = fp.overrideNonce
		}
		fp.refreshTokens["login-refresh"] = true
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"access_token":  "login-access",
			"token_type":    "Bearer",
			"expires_in":    300,
			"refresh_token": "login-refresh",
			"id_token":      fp.signIDToken(nonce),
		})

	default:
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unsupported_grant_type"})
	}
}

func (fp *fakeProvider) logout(w http.ResponseWriter, r *http.Request) {
	require.NoError(fp.t, r.ParseForm())

	fp.mu.Lock()
	defer fp.mu.Unlock()
	fp.logoutCalls++
	fp.loggedOutRefresh = append(fp.loggedOutRefresh, r.PostForm.Get("refresh_token"))
	w.WriteHeader(http.StatusNoContent)
}

func (fp *fakeProvider) signIDToken(nonce string) string {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, jwt.MapClaims{
		"iss":   fp.issuer(),
		"aud":   testClientID,
		"sub":   testSubject,
		"email": testEmail,
		"name":  "John Doe",
		"nonce": nonce,
		"iat":   now.Unix(),
		"exp":   now.Add(5 * time.Minute).Unix(),
	})
	token.Header["kid"] = testKeyID
	signed, err := token.SignedString(fp.key)
	require.NoError(fp.t, err)
	return signed
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// freeRedirectURL returns a loopback callback URL on a currently unused port.
func freeRedirectURL(t *testing.T) string {
	t.Helper()
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := listener.Addr().String()
	require.NoError(t, listener.Close())
	return "http://" + addr + "/callback"
}
