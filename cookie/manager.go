// Package cookie carries the session id between the browser and the gateway.
// The browser only ever sees a sealed, opaque value.
package cookie

import (
	"net/http"
	"time"

	bfferrors "github.com/jrsteele09/go-oidc-bff/internal/errors"
	"github.com/segmentio/ksuid"
)

// Manager issues, reads and expires the session cookie
type Manager struct {
	name   string
	domain string
	maxAge time.Duration
	codec  Codec
}

func NewManager(name, domain string, maxAge time.Duration, codec Codec) *Manager {
	return &Manager{
		name:   name,
		domain: domain,
		maxAge: maxAge,
		codec:  codec,
	}
}

func (m *Manager) Name() string { return m.name }

// NewSessionID returns a fresh, sortable, globally unique session id
func NewSessionID() string {
	return ksuid.New().String()
}

// Read returns the session id carried by the request. Missing, tampered or
// malformed cookies are reported as an error so the caller starts a fresh session.
func (m *Manager) Read(r *http.Request) (string, error) {
	c, err := r.Cookie(m.name)
	if err != nil {
		return "", bfferrors.Wrapf(bfferrors.ErrInvalidCookie, "%v", err)
	}
	sid, err := m.codec.Decode(c.Value)
	if err != nil {
		return "", err
	}
	if _, err := ksuid.Parse(sid); err != nil {
		return "", bfferrors.Wrapf(bfferrors.ErrInvalidSessionID, "%v", err)
	}
	return sid, nil
}

// Issue sets the cookie for sessionID, restarting its lifetime
func (m *Manager) Issue(w http.ResponseWriter, sessionID string) error {
	value, err := m.codec.Encode(sessionID)
	if err != nil {
		return err
	}
	c := m.template()
	c.Value = value
	c.MaxAge = int(m.maxAge.Seconds())
	http.SetCookie(w, c)
	return nil
}

// Expire tells the browser to drop the cookie
func (m *Manager) Expire(w http.ResponseWriter) {
	c := m.template()
	c.MaxAge = -1
	http.SetCookie(w, c)
}

func (m *Manager) template() *http.Cookie {
	return &http.Cookie{
		Name:     m.name,
		Domain:   m.domain,
		Path:     "/",
		Secure:   true,
		HttpOnly: true,
		SameSite: http.SameSiteNoneMode,
	}
}
