package authflow

import (
	"context"
	"crypto/subtle"
	"fmt"

	"github.com/jrsteele09/go-oidc-bff/idp"
	"github.com/jrsteele09/go-oidc-bff/internal/utils"
	"github.com/jrsteele09/go-oidc-bff/sessions"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
)

const randomValueLength = 32

// CallbackParams are the query parameters the provider sends to /callback
type CallbackParams struct {
	Code             string
	State            string
	Error            string
	ErrorDescription string
}

// BeginLogin stores fresh PKCE verifier, state and nonce values in the session
// and returns the provider authorization URL to redirect to.
func (f *Flow) BeginLogin(ctx context.Context, sess *sessions.Session) (string, error) {
	verifier := oauth2.GenerateVerifier()
	state, err := utils.RandomString(randomValueLength)
	if err != nil {
		return "", newError(KindInternal, "failed to generate state", err)
	}
	nonce, err := utils.RandomString(randomValueLength)
	if err != nil {
		return "", newError(KindInternal, "failed to generate nonce", err)
	}

	// A new login replaces whatever the session held before
	if err := sess.Update(ctx, func(rec *sessions.Record) {
		rec.ClearAuthenticated()
		rec.ClearEphemeral()
		rec.PKCEVerifier = &verifier
	}); err != nil {
		return "", storageError("failed to store pkce verifier", err)
	}
	if err := sess.Update(ctx, func(rec *sessions.Record) { rec.State = &state }); err != nil {
		return "", storageError("failed to store state", err)
	}
	if err := sess.Update(ctx, func(rec *sessions.Record) { rec.Nonce = &nonce }); err != nil {
		return "", storageError("failed to store nonce", err)
	}

	if f.metrics != nil {
		f.metrics.IncrementLoginsStarted()
	}
	log.Debug().Str("session", sess.ID()).Msg("Login started")
	return f.idp.AuthCodeURL(state, nonce, verifier, f.cfg.Scopes), nil
}

// CompleteLogin validates the callback against the session, exchanges the
// code and stores the tokens and identity. Each ephemeral value is removed as
// soon as it has been used so a replayed callback cannot succeed. The
// authenticated record gets a new session id; the pre-login id is dropped.
func (f *Flow) CompleteLogin(ctx context.Context, sess *sessions.Session, params CallbackParams) error {
	c := &callback{flow: f, sess: sess, params: params}
	steps := []func(context.Context) error{
		c.checkProviderError,
		c.matchState,
		c.exchangeCode,
		c.storeExpiry,
		c.storeTokens,
		c.verifyIDToken,
		c.storeIdentity,
		c.rotateSession,
	}
	for _, step := range steps {
		if err := step(ctx); err != nil {
			return err
		}
	}

	if f.metrics != nil {
		f.metrics.IncrementLoginsCompleted()
	}
	log.Debug().Str("session", sess.ID()).Str("user_id", c.claims.Subject).Msg("Login completed")
	return nil
}

// callback carries the intermediate results of CompleteLogin between steps
type callback struct {
	flow   *Flow
	sess   *sessions.Session
	params CallbackParams
	tokens *idp.TokenSet
	claims *idp.Claims
}

func (c *callback) checkProviderError(context.Context) error {
	if c.params.Error == "" {
		return nil
	}
	reason := "provider returned " + c.params.Error
	if c.params.ErrorDescription != "" {
		reason = fmt.Sprintf("%s: %s", reason, c.params.ErrorDescription)
	}
	return newError(KindProviderError, reason, nil)
}

func (c *callback) matchState(ctx context.Context) error {
	if c.params.State == "" {
		return newError(KindValidationError, "missing state parameter", nil)
	}
	rec, err := c.sess.Load(ctx)
	if err != nil {
		return storageError("failed to read session", err)
	}
	if rec.State == nil {
		return newError(KindValidationError, "no state in session", nil)
	}
	if !equal(*rec.State, c.params.State) {
		return newError(KindValidationError, "state mismatch", nil)
	}
	if err := c.sess.Update(ctx, func(rec *sessions.Record) { rec.State = nil }); err != nil {
		return storageError("failed to remove state", err)
	}
	return nil
}

func (c *callback) exchangeCode(ctx context.Context) error {
	if c.params.Code == "" {
		return newError(KindValidationError, "missing code parameter", nil)
	}
	rec, err := c.sess.Load(ctx)
	if err != nil {
		return storageError("failed to read session", err)
	}
	if rec.PKCEVerifier == nil {
		return newError(KindValidationError, "no pkce verifier in session", nil)
	}

	tokens, err := c.flow.idp.ExchangeCode(ctx, c.params.Code, *rec.PKCEVerifier)
	if err != nil {
		return newError(KindExchangeError, "code exchange failed", err)
	}
	if tokens == nil {
		return newError(KindExchangeError, "code exchange returned no tokens", nil)
	}
	c.tokens = tokens

	if err := c.sess.Update(ctx, func(rec *sessions.Record) { rec.PKCEVerifier = nil }); err != nil {
		return storageError("failed to remove pkce verifier", err)
	}
	return nil
}

func (c *callback) storeExpiry(ctx context.Context) error {
	if c.tokens.ExpiresIn <= 0 {
		return newError(KindMissingExpiry, "token response has no expiry", nil)
	}
	expiry := c.flow.absoluteExpiry(c.tokens.ExpiresIn)
	if err := c.sess.Update(ctx, func(rec *sessions.Record) { rec.TokenExpiry = &expiry }); err != nil {
		return storageError("failed to store token expiry", err)
	}
	return nil
}

func (c *callback) storeTokens(ctx context.Context) error {
	if c.tokens.AccessToken == "" {
		return newError(KindExchangeError, "token response has no access token", nil)
	}
	accessToken := c.tokens.AccessToken
	if err := c.sess.Update(ctx, func(rec *sessions.Record) { rec.AccessToken = &accessToken }); err != nil {
		return storageError("failed to store access token", err)
	}

	if c.tokens.RefreshToken == "" {
		return newError(KindExchangeError, "token response has no refresh token", nil)
	}
	refreshToken := c.tokens.RefreshToken
	if err := c.sess.Update(ctx, func(rec *sessions.Record) { rec.RefreshToken = &refreshToken }); err != nil {
		return storageError("failed to store refresh token", err)
	}
	return nil
}

func (c *callback) verifyIDToken(ctx context.Context) error {
	if c.tokens.IDToken == "" {
		return newError(KindExchangeError, "token response has no id token", nil)
	}
	rec, err := c.sess.Load(ctx)
	if err != nil {
		return storageError("failed to read session", err)
	}
	if rec.Nonce == nil {
		return newError(KindValidationError, "no nonce in session", nil)
	}

	claims, err := c.flow.idp.VerifyIDToken(ctx, c.tokens.IDToken, *rec.Nonce)
	if err != nil {
		return newError(KindClaimsVerificationError, "id token verification failed", err)
	}
	if claims == nil {
		return newError(KindClaimsVerificationError, "id token verification returned no claims", nil)
	}
	c.claims = claims

	idToken := c.tokens.IDToken
	if err := c.sess.Update(ctx, func(rec *sessions.Record) { rec.IDToken = &idToken }); err != nil {
		return storageError("failed to store id token", err)
	}
	if err := c.sess.Update(ctx, func(rec *sessions.Record) { rec.Nonce = nil }); err != nil {
		return storageError("failed to remove nonce", err)
	}
	return nil
}

func (c *callback) storeIdentity(ctx context.Context) error {
	if c.claims.PreferredUsername == "" {
		return newError(KindMissingIdentity, "id token has no preferred_username", nil)
	}
	if c.claims.Subject == "" {
		return newError(KindMissingIdentity, "id token has no subject", nil)
	}
	username := c.claims.PreferredUsername
	userID := c.claims.Subject
	if err := c.sess.Update(ctx, func(rec *sessions.Record) {
		rec.Username = &username
		rec.UserID = &userID
	}); err != nil {
		return storageError("failed to store identity", err)
	}
	return nil
}

func (c *callback) rotateSession(ctx context.Context) error {
	previousID := c.sess.ID()
	if err := c.sess.Rotate(ctx, c.flow.newSessionID()); err != nil {
		return storageError("failed to rotate session id", err)
	}
	log.Debug().Str("previous_session", previousID).Str("session", c.sess.ID()).Msg("Session id rotated")
	return nil
}

// equal compares two secrets byte for byte in constant time
func equal(a, b string) bool {
	return len(a) == len(b) && subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
