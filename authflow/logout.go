package authflow

import (
	"context"
	"net/url"

	"github.com/jrsteele09/go-oidc-bff/sessions"
	"github.com/rs/zerolog/log"
)

// Logout destroys the session and returns the provider end-session URL
// carrying the id token hint. The session is purged whatever happens.
func (f *Flow) Logout(ctx context.Context, sess *sessions.Session) (string, error) {
	rec, err := sess.Load(ctx)
	if err != nil {
		return "", storageError("failed to read session", err)
	}
	if rec.IDToken == nil {
		return "", newError(KindValidationError, "no id token in session", nil)
	}

	endSessionURL, err := f.endSessionURL(*rec.IDToken)
	if err != nil {
		return "", err
	}

	if err := sess.Purge(ctx); err != nil {
		return "", storageError("failed to purge session", err)
	}

	if f.metrics != nil {
		f.metrics.IncrementLogouts()
	}
	log.Debug().Str("session", sess.ID()).Msg("Logged out")
	return endSessionURL, nil
}

func (f *Flow) endSessionURL(idToken string) (string, error) {
	base := f.cfg.LogoutURL
	if base == "" {
		base = f.idp.EndSessionEndpoint()
	}
	if base == "" {
		return "", newError(KindProviderError, "provider has no end session endpoint", nil)
	}

	u, err := url.Parse(base)
	if err != nil {
		return "", newError(KindInternal, "invalid logout url", err)
	}
	q := u.Query()
	q.Set("id_token_hint", idToken)
	q.Set("post_logout_redirect_uri", f.cfg.ClientAppURL)
	u.RawQuery = q.Encode()
	return u.String(), nil
}
