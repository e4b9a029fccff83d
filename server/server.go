package server

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/jrsteele09/go-oidc-bff/authflow"
	"github.com/jrsteele09/go-oidc-bff/cookie"
	"github.com/jrsteele09/go-oidc-bff/internal/config"
	"github.com/jrsteele09/go-oidc-bff/internal/metrics"
	"github.com/jrsteele09/go-oidc-bff/sessions"
	"github.com/rs/zerolog/log"
)

// Deps are the shared, read-only collaborators handed to every request
type Deps struct {
	Flow    *authflow.Flow
	Repo    sessions.Repo
	Cookies *cookie.Manager
	Metrics *metrics.Metrics
}

type Server struct {
	mux     *http.ServeMux
	handler http.Handler
	routes  []string
	config  config.Config
	flow    *authflow.Flow
	repo    sessions.Repo
	cookies *cookie.Manager
	metrics *metrics.Metrics
}

func New(config config.Config, deps Deps) (*Server, error) {
	if deps.Flow == nil {
		return nil, errors.New("[Server New] auth flow is required")
	}
	if deps.Repo == nil {
		return nil, errors.New("[Server New] session repo is required")
	}
	if deps.Cookies == nil {
		return nil, errors.New("[Server New] cookie manager is required")
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.New()
	}

	s := &Server{
		mux:     http.NewServeMux(),
		config:  config,
		flow:    deps.Flow,
		repo:    deps.Repo,
		cookies: deps.Cookies,
		metrics: deps.Metrics,
	}

	s.initRoutes()
	s.handler = ChainMiddleware(s.mux.ServeHTTP, s.GlobalMiddleware()...)
	s.logRoutes()

	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

func (s *Server) RegisterRouteHandler(pattern string, handler http.Handler) {
	s.routes = append(s.routes, pattern)
	s.mux.Handle(pattern, handler)
}

func (s *Server) RegisterRouteFunc(pattern string, handler func(http.ResponseWriter, *http.Request)) {
	s.routes = append(s.routes, pattern)
	s.mux.HandleFunc(pattern, handler)
}

// Routes lists the registered patterns in registration order
func (s *Server) Routes() []string {
	return append([]string(nil), s.routes...)
}

func (s *Server) logRoutes() {
	for _, route := range s.routes {
		parts := strings.SplitN(route, " ", 2)

		if len(parts) > 1 {
			logRoute(parts[0], parts[1])
		} else {
			logRoute("", parts[0])
		}
	}
}

func logRoute(method, path string) {
	paddedMethod := fmt.Sprintf(" %-7s", method)
	color, ok := methodColors[method]
	if !ok {
		color = Gray
	}
	log.Debug().Msgf("[%s] %s", color+paddedMethod+ResetColor, path)
}
