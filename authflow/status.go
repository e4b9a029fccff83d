package authflow

import (
	"context"

	"github.com/jrsteele09/go-oidc-bff/idp"
	"github.com/jrsteele09/go-oidc-bff/sessions"
	"github.com/rs/zerolog/log"
)

type Status string

const (
	StatusLoggedIn    Status = "logged_in"
	StatusNotLoggedIn Status = "not_logged_in"
)

// CheckSessionStatus reports whether the session holds a usable access token,
// refreshing it once when it is inside the early refresh window. A session
// without tokens is simply not logged in.
func (f *Flow) CheckSessionStatus(ctx context.Context, sess *sessions.Session) (Status, error) {
	status, err := f.checkSessionStatus(ctx, sess)
	if err == nil && f.metrics != nil {
		f.metrics.ObserveSessionStatus(string(status))
	}
	return status, err
}

func (f *Flow) checkSessionStatus(ctx context.Context, sess *sessions.Session) (Status, error) {
	rec, err := sess.Load(ctx)
	if err != nil {
		return "", storageError("failed to read session", err)
	}
	if rec.AccessToken == nil || rec.RefreshToken == nil {
		return StatusNotLoggedIn, nil
	}
	if rec.TokenExpiry == nil {
		return "", newError(KindMissingExpiry, "access token stored without expiry", nil)
	}
	if f.usable(*rec.TokenExpiry) {
		return StatusLoggedIn, nil
	}

	tokens, err := f.refresh(ctx, sess.ID(), *rec.RefreshToken)
	if f.metrics != nil {
		f.metrics.ObserveRefresh(err == nil)
	}
	if err != nil {
		return "", newError(KindExchangeError, "refresh token exchange failed", err)
	}
	if tokens == nil {
		return "", newError(KindExchangeError, "refresh returned no tokens", nil)
	}
	if tokens.ExpiresIn <= 0 {
		return "", newError(KindMissingExpiry, "refresh response has no expiry", nil)
	}
	if tokens.AccessToken == "" {
		return "", newError(KindExchangeError, "refresh response has no access token", nil)
	}

	expiry := f.absoluteExpiry(tokens.ExpiresIn)
	if err := sess.Update(ctx, func(rec *sessions.Record) { rec.TokenExpiry = &expiry }); err != nil {
		return "", storageError("failed to store token expiry", err)
	}
	accessToken := tokens.AccessToken
	if err := sess.Update(ctx, func(rec *sessions.Record) { rec.AccessToken = &accessToken }); err != nil {
		return "", storageError("failed to store access token", err)
	}
	if tokens.RefreshToken != "" {
		refreshToken := tokens.RefreshToken
		if err := sess.Update(ctx, func(rec *sessions.Record) { rec.RefreshToken = &refreshToken }); err != nil {
			return "", storageError("failed to store refresh token", err)
		}
	}

	log.Debug().Str("session", sess.ID()).Int64("token_expiry", expiry).Msg("Access token refreshed")
	if f.usable(expiry) {
		return StatusLoggedIn, nil
	}
	return StatusNotLoggedIn, nil
}

// refresh collapses concurrent refreshes of one session in this process into
// a single provider call.
func (f *Flow) refresh(ctx context.Context, sessionID, refreshToken string) (*idp.TokenSet, error) {
	result, err, shared := f.refreshes.Do(sessionID, func() (interface{}, error) {
		return f.idp.Refresh(context.WithoutCancel(ctx), refreshToken)
	})
	if shared {
		log.Debug().Str("session", sessionID).Msg("Joined in-flight token refresh")
	}
	if err != nil {
		return nil, err
	}
	tokens, _ := result.(*idp.TokenSet)
	return tokens, nil
}
