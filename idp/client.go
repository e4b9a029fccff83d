// Package idp talks to the OpenID Connect provider: authorization URLs, code
// and refresh token exchanges, and ID token verification.
package idp

import (
	"context"
	"time"
)

//go:generate mockgen -destination=idpmock/client_mock.go -package=idpmock github.com/jrsteele09/go-oidc-bff/idp Client

// Client is everything the auth flow needs from the identity provider
type Client interface {
	// AuthCodeURL builds the authorization redirect with an S256 PKCE challenge
	AuthCodeURL(state, nonce, pkceVerifier string, scopes []string) string
	ExchangeCode(ctx context.Context, code, pkceVerifier string) (*TokenSet, error)
	Refresh(ctx context.Context, refreshToken string) (*TokenSet, error)
	// VerifyIDToken checks signature, issuer, audience and expiry, then the nonce
	VerifyIDToken(ctx context.Context, rawIDToken, nonce string) (*Claims, error)
	EndSessionEndpoint() string
}

// TokenSet is the result of a token endpoint call. A zero ExpiresIn means the
// provider did not report a lifetime.
type TokenSet struct {
	AccessToken  string
	RefreshToken string
	IDToken      string
	ExpiresIn    time.Duration
}

// Claims are the ID token claims the gateway keeps
type Claims struct {
	Subject           string `json:"sub"`
	PreferredUsername string `json:"preferred_username"`
}
