// Package idptest runs an in-process OpenID Connect provider for tests.
package idptest

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/lestrrat-go/jwx/v2/jwt"
	"github.com/stretchr/testify/require"
)

const (
	ClientID     = "bff-client"
	ClientSecret = "bff-secret"
	keyID        = "idptest-key"
)

// Provider serves discovery, JWKS and a token endpoint. Behaviour is tuned
// through Configure.
type Provider struct {
	Server *httptest.Server

	mu         sync.Mutex
	signingKey jwk.Key
	publicSet  jwk.Set

	// Code is the only authorization code the token endpoint accepts
	Code string
	// Nonce is echoed into issued ID tokens
	Nonce             string
	Subject           string
	PreferredUsername string
	ExpiresIn         int
	RefreshExpiresIn  int
	// RotateRefresh issues a new refresh token on every refresh
	RotateRefresh bool
	// RedirectTokenEndpoint makes the token endpoint answer with a 302
	RedirectTokenEndpoint bool
	// Delay is slept before answering the token endpoint
	Delay time.Duration

	tokenRequests int
	lastForm      map[string]string
}

func NewProvider(t *testing.T) *Provider {
	t.Helper()

	raw, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	private, err := jwk.FromRaw(raw)
	require.NoError(t, err)
	require.NoError(t, private.Set(jwk.KeyIDKey, keyID))
	require.NoError(t, private.Set(jwk.AlgorithmKey, jwa.RS256))

	public, err := jwk.PublicKeyOf(private)
	require.NoError(t, err)
	require.NoError(t, public.Set(jwk.KeyIDKey, keyID))
	require.NoError(t, public.Set(jwk.AlgorithmKey, jwa.RS256))
	set := jwk.NewSet()
	require.NoError(t, set.AddKey(public))

	p := &Provider{
		signingKey:        private,
		publicSet:         set,
		Code:              "xyz",
		Subject:           "u-1",
		PreferredUsername: "alice",
		ExpiresIn:         3600,
		RefreshExpiresIn:  1800,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/.well-known/openid-configuration", p.discovery)
	mux.HandleFunc("/jwks", p.jwks)
	mux.HandleFunc("/token", p.token)
	p.Server = httptest.NewServer(mux)
	t.Cleanup(p.Server.Close)
	return p
}

func (p *Provider) Issuer() string {
	return p.Server.URL
}

func (p *Provider) EndSessionEndpoint() string {
	return p.Server.URL + "/logout"
}

// TokenRequests is how many times the token endpoint was called
func (p *Provider) TokenRequests() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.tokenRequests
}

// LastForm returns the form of the latest token request
func (p *Provider) LastForm() map[string]string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastForm
}

// Configure changes the provider behaviour under its lock
func (p *Provider) Configure(change func(p *Provider)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	change(p)
}

// SetNonce sets the nonce echoed into the next issued ID token
func (p *Provider) SetNonce(nonce string) {
	p.Configure(func(p *Provider) { p.Nonce = nonce })
}

// SignIDToken issues an ID token for this provider with the given extra claims
func (p *Provider) SignIDToken(t *testing.T, audience string, expiry time.Time, claims map[string]any) string {
	t.Helper()
	signed, err := p.signIDToken(audience, expiry, claims)
	require.NoError(t, err)
	return signed
}

func (p *Provider) signIDToken(audience string, expiry time.Time, claims map[string]any) (string, error) {
	builder := jwt.NewBuilder().
		Issuer(p.Issuer()).
		Audience([]string{audience}).
		IssuedAt(time.Now()).
		Expiration(expiry)
	for k, v := range claims {
		builder = builder.Claim(k, v)
	}
	token, err := builder.Build()
	if err != nil {
		return "", err
	}
	signed, err := jwt.Sign(token, jwt.WithKey(jwa.RS256, p.signingKey))
	if err != nil {
		return "", err
	}
	return string(signed), nil
}

func (p *Provider) discovery(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"issuer":                                p.Issuer(),
		"authorization_endpoint":                p.Server.URL + "/authorize",
		"token_endpoint":                        p.Server.URL + "/token",
		"jwks_uri":                              p.Server.URL + "/jwks",
		"end_session_endpoint":                  p.EndSessionEndpoint(),
		"id_token_signing_alg_values_supported": []string{"RS256"},
		"code_challenge_methods_supported":      []string{"S256"},
	})
}

func (p *Provider) jwks(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, p.publicSet)
}

func (p *Provider) token(w http.ResponseWriter, r *http.Request) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.tokenRequests++
	if err := r.ParseForm(); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_request"})
		return
	}
	p.lastForm = make(map[string]string)
	for k := range r.PostForm {
		p.lastForm[k] = r.PostForm.Get(k)
	}

	if p.Delay > 0 {
		time.Sleep(p.Delay)
	}
	if p.RedirectTokenEndpoint {
		http.Redirect(w, r, p.Server.URL+"/elsewhere", http.StatusFound)
		return
	}

	switch r.PostForm.Get("grant_type") {
	case "authorization_code":
		if r.PostForm.Get("code") != p.Code || r.PostForm.Get("code_verifier") == "" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_grant"})
			return
		}
		idToken, err := p.signIDToken(ClientID, time.Now().Add(time.Hour), map[string]any{
			"sub":                p.Subject,
			"preferred_username": p.PreferredUsername,
			"nonce":              p.Nonce,
			"groups":             []string{"staff"},
		})
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "server_error"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"access_token":  "AT1",
			"token_type":    "Bearer",
			"refresh_token": "RT1",
			"expires_in":    p.ExpiresIn,
			"id_token":      idToken,
		})
	case "refresh_token":
		if r.PostForm.Get("refresh_token") == "" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_grant"})
			return
		}
		body := map[string]any{
			"access_token": "AT2",
			"token_type":   "Bearer",
			"expires_in":   p.RefreshExpiresIn,
		}
		if p.RotateRefresh {
			body["refresh_token"] = "RT2"
		}
		writeJSON(w, http.StatusOK, body)
	default:
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unsupported_grant_type"})
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
