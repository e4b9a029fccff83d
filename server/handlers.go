package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/jrsteele09/go-oidc-bff/authflow"
	"github.com/rs/zerolog"
)

const healthCheckTimeout = 2 * time.Second

var errNoSession = errors.New("request has no session")

type statusResponse struct {
	Status authflow.Status `json:"status"`
}

func (s *Server) LoginHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess := sessionFromContext(r.Context())
		if sess == nil {
			s.failClosed(w, r, nil, "login", errNoSession)
			return
		}

		authURL, err := s.flow.BeginLogin(r.Context(), sess)
		if err != nil {
			s.failClosed(w, r, sess, "login", err)
			return
		}
		redirectNoCache(w, r, authURL)
	}
}

func (s *Server) CallbackHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess := sessionFromContext(r.Context())
		if sess == nil {
			s.failClosed(w, r, nil, "callback", errNoSession)
			return
		}

		query := r.URL.Query()
		params := authflow.CallbackParams{
			Code:             query.Get("code"),
			State:            query.Get("state"),
			Error:            query.Get("error"),
			ErrorDescription: query.Get("error_description"),
		}
		if err := s.flow.CompleteLogin(r.Context(), sess, params); err != nil {
			s.failClosed(w, r, sess, "callback", err)
			return
		}
		redirectNoCache(w, r, s.flow.ClientAppURL())
	}
}

func (s *Server) SessionStatusHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess := sessionFromContext(r.Context())
		if sess == nil {
			s.failClosed(w, r, nil, "sessionstatus", errNoSession)
			return
		}

		status, err := s.flow.CheckSessionStatus(r.Context(), sess)
		if err != nil {
			s.failClosed(w, r, sess, "sessionstatus", err)
			return
		}
		writeJSON(w, r, http.StatusOK, statusResponse{Status: status})
	}
}

func (s *Server) DetailsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess := sessionFromContext(r.Context())
		if sess == nil {
			s.failClosed(w, r, nil, "details", errNoSession)
			return
		}

		details, err := s.flow.UserDetails(r.Context(), sess)
		if err != nil {
			s.failClosed(w, r, sess, "details", err)
			return
		}
		writeJSON(w, r, http.StatusOK, details)
	}
}

func (s *Server) LogoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess := sessionFromContext(r.Context())
		if sess == nil {
			s.failClosed(w, r, nil, "logout", errNoSession)
			return
		}

		endSessionURL, err := s.flow.Logout(r.Context(), sess)
		if err != nil {
			s.failClosed(w, r, sess, "logout", err)
			return
		}
		redirectNoCache(w, r, endSessionURL)
	}
}

// HealthHandler reports whether the session store answers
func (s *Server) HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		defer cancel()

		if err := s.repo.Ping(ctx); err != nil {
			zerolog.Ctx(r.Context()).Warn().Err(err).Msg("Health check failed")
			writeJSON(w, r, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
		writeJSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
	}
}
