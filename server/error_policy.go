package server

import (
	"net/http"

	"github.com/jrsteele09/go-oidc-bff/authflow"
	"github.com/jrsteele09/go-oidc-bff/sessions"
	"github.com/rs/zerolog"
)

// failClosed is the single failure exit of every flow handler: log the
// detail, destroy the session and send the browser back to the client app.
// Nothing about the failure reaches the browser.
func (s *Server) failClosed(w http.ResponseWriter, r *http.Request, sess *sessions.Session, handler string, err error) {
	kind := authflow.KindOf(err)
	logger := zerolog.Ctx(r.Context())

	event := logger.Error().
		Str("handler", handler).
		Str("kind", string(kind)).
		Str("reason", authflow.ReasonOf(err))
	if sess != nil {
		event = event.Str("session", sess.ID())
	}
	event.Err(err).Msgf("(%s) %s", handler, authflow.ReasonOf(err))

	if sess != nil {
		if purgeErr := sess.Purge(r.Context()); purgeErr != nil {
			logger.Error().Err(purgeErr).Str("handler", handler).Msg("Failed to purge session")
		}
	}
	s.metrics.ObserveErrorPolicy(handler, string(kind))

	redirectNoCache(w, r, s.flow.ClientAppURL())
}
