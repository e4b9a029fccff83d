package idp

import (
	"context"
	"crypto/subtle"
	"fmt"
	"net/http"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/hashicorp/go-cleanhttp"
	bfferrors "github.com/jrsteele09/go-oidc-bff/internal/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
)

const DefaultTimeout = 10 * time.Second

type Config struct {
	IssuerURL    string
	ClientID     string
	ClientSecret string
	RedirectURL  string
	// Timeout bounds every provider call, defaults to DefaultTimeout
	Timeout time.Duration
	// Now overrides the clock used for ID token expiry checks
	Now func() time.Time
}

var _ Client = (*OIDCClient)(nil)

type OIDCClient struct {
	provider           *oidc.Provider
	oauth2Config       *oauth2.Config
	verifier           *oidc.IDTokenVerifier
	httpClient         *http.Client
	timeout            time.Duration
	endSessionEndpoint string
}

// NewHTTPClient returns a pooled client that never follows redirects
func NewHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Transport: cleanhttp.DefaultPooledTransport(),
		Timeout:   timeout,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

// NewOIDCClient runs discovery against the issuer and prepares the oauth2
// configuration and ID token verifier.
func NewOIDCClient(ctx context.Context, cfg Config) (*OIDCClient, error) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	httpClient := NewHTTPClient(cfg.Timeout)

	// The provider keeps this context for later JWKS fetches so it must outlive ctx
	providerCtx := oidc.ClientContext(context.WithoutCancel(ctx), httpClient)
	provider, err := oidc.NewProvider(providerCtx, cfg.IssuerURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create OIDC provider: %w", err)
	}

	var discovery struct {
		EndSessionEndpoint string `json:"end_session_endpoint"`
	}
	if err := provider.Claims(&discovery); err != nil {
		return nil, fmt.Errorf("failed to read discovery document: %w", err)
	}

	client := &OIDCClient{
		provider: provider,
		oauth2Config: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Endpoint:     provider.Endpoint(),
			RedirectURL:  cfg.RedirectURL,
		},
		verifier: provider.Verifier(&oidc.Config{
			ClientID: cfg.ClientID,
			Now:      cfg.Now,
		}),
		httpClient:         httpClient,
		timeout:            cfg.Timeout,
		endSessionEndpoint: discovery.EndSessionEndpoint,
	}

	log.Info().
		Str("issuer", cfg.IssuerURL).
		Str("authorization_endpoint", provider.Endpoint().AuthURL).
		Str("end_session_endpoint", discovery.EndSessionEndpoint).
		Msg("OIDC provider discovered")
	return client, nil
}

func (c *OIDCClient) AuthCodeURL(state, nonce, pkceVerifier string, scopes []string) string {
	cfg := *c.oauth2Config
	cfg.Scopes = scopes
	return cfg.AuthCodeURL(state, oauth2.S256ChallengeOption(pkceVerifier), oidc.Nonce(nonce))
}

func (c *OIDCClient) ExchangeCode(ctx context.Context, code, pkceVerifier string) (*TokenSet, error) {
	ctx, cancel := c.callContext(ctx)
	defer cancel()

	token, err := c.oauth2Config.Exchange(ctx, code, oauth2.VerifierOption(pkceVerifier))
	if err != nil {
		return nil, fmt.Errorf("code exchange failed: %w", err)
	}
	return tokenSetFrom(token), nil
}

func (c *OIDCClient) Refresh(ctx context.Context, refreshToken string) (*TokenSet, error) {
	ctx, cancel := c.callContext(ctx)
	defer cancel()

	token, err := c.oauth2Config.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken}).Token()
	if err != nil {
		return nil, fmt.Errorf("refresh token exchange failed: %w", err)
	}
	return tokenSetFrom(token), nil
}

func (c *OIDCClient) VerifyIDToken(ctx context.Context, rawIDToken, nonce string) (*Claims, error) {
	if nonce == "" {
		return nil, bfferrors.Wrapf(bfferrors.ErrNonceMismatch, "no nonce to compare")
	}

	ctx, cancel := c.callContext(ctx)
	defer cancel()

	idToken, err := c.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return nil, fmt.Errorf("ID token verification failed: %w", err)
	}

	var claims Claims
	if err := idToken.Claims(&claims); err != nil {
		return nil, fmt.Errorf("failed to extract claims: %w", err)
	}
	if len(idToken.Nonce) != len(nonce) || subtle.ConstantTimeCompare([]byte(idToken.Nonce), []byte(nonce)) != 1 {
		return nil, bfferrors.ErrNonceMismatch
	}
	claims.Subject = idToken.Subject
	return &claims, nil
}

func (c *OIDCClient) EndSessionEndpoint() string {
	return c.endSessionEndpoint
}

func (c *OIDCClient) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
	return context.WithTimeout(ctx, c.timeout)
}

func tokenSetFrom(token *oauth2.Token) *TokenSet {
	set := &TokenSet{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
	}
	if rawIDToken, ok := token.Extra("id_token").(string); ok {
		set.IDToken = rawIDToken
	}
	switch {
	case token.ExpiresIn > 0:
		set.ExpiresIn = time.Duration(token.ExpiresIn) * time.Second
	case !token.Expiry.IsZero():
		if d := time.Until(token.Expiry).Round(time.Second); d > 0 {
			set.ExpiresIn = d
		}
	}
	return set
}
