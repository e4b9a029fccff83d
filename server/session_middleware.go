package server

import (
	"context"
	"net/http"

	"github.com/jrsteele09/go-oidc-bff/cookie"
	"github.com/jrsteele09/go-oidc-bff/sessions"
	"github.com/rs/zerolog"
)

type contextKey string

const sessionContextKey contextKey = "session"

// SessionMiddleware binds the request to its session. A missing or invalid
// cookie starts a fresh, empty session.
func (s *Server) SessionMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess := s.sessionFor(r)

		sw := &sessionWriter{ResponseWriter: w, r: r, sess: sess, cookies: s.cookies}
		ctx := context.WithValue(r.Context(), sessionContextKey, sess)
		next(sw, r.WithContext(ctx))

		// Handlers that never write still need the cookie settled
		sw.commit()
	}
}

func (s *Server) sessionFor(r *http.Request) *sessions.Session {
	ttl := s.config.GetSessionTTL()
	sessionID, err := s.cookies.Read(r)
	if err != nil {
		if _, cookieErr := r.Cookie(s.cookies.Name()); cookieErr == nil {
			zerolog.Ctx(r.Context()).Debug().Err(err).Msg("Ignoring unusable session cookie")
		}
		return sessions.NewSession(cookie.NewSessionID(), s.repo, ttl, true)
	}
	return sessions.NewSession(sessionID, s.repo, ttl, false)
}

func sessionFromContext(ctx context.Context) *sessions.Session {
	sess, _ := ctx.Value(sessionContextKey).(*sessions.Session)
	return sess
}

// sessionWriter emits Set-Cookie just before the response header goes out:
// issue or renew for a live session, expire for a purged one.
type sessionWriter struct {
	http.ResponseWriter
	r         *http.Request
	sess      *sessions.Session
	cookies   *cookie.Manager
	committed bool
}

func (w *sessionWriter) WriteHeader(status int) {
	w.commit()
	w.ResponseWriter.WriteHeader(status)
}

func (w *sessionWriter) Write(b []byte) (int, error) {
	w.commit()
	return w.ResponseWriter.Write(b)
}

func (w *sessionWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

func (w *sessionWriter) commit() {
	if w.committed {
		return
	}
	w.committed = true

	logger := zerolog.Ctx(w.r.Context())
	switch {
	case w.sess.Purged():
		w.cookies.Expire(w.ResponseWriter)
	case w.sess.Live():
		if err := w.sess.Touch(w.r.Context()); err != nil {
			logger.Warn().Err(err).Str("session", w.sess.ID()).Msg("Failed to renew session TTL")
		}
		if err := w.cookies.Issue(w.ResponseWriter, w.sess.ID()); err != nil {
			logger.Error().Err(err).Msg("Failed to issue session cookie")
		}
	}
}
