package authflow

import (
	"context"

	"github.com/jrsteele09/go-oidc-bff/sessions"
)

type UserDetails struct {
	Username string `json:"username"`
	UserID   string `json:"user_id"`
}

// UserDetails returns the identity stored at login. Without one it either
// fails or answers with the configured defaults.
func (f *Flow) UserDetails(ctx context.Context, sess *sessions.Session) (UserDetails, error) {
	rec, err := sess.Load(ctx)
	if err != nil {
		return UserDetails{}, storageError("failed to read session", err)
	}
	if rec.Username == nil || rec.UserID == nil {
		if f.cfg.FailDetailsWhenUnauthenticated {
			return UserDetails{}, newError(KindMissingIdentity, "no user in session", nil)
		}
		return UserDetails{Username: f.cfg.DefaultUsername, UserID: f.cfg.DefaultUserID}, nil
	}
	return UserDetails{Username: *rec.Username, UserID: *rec.UserID}, nil
}
