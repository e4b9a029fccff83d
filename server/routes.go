package server

import (
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func (s *Server) initRoutes() {
	// Browser flow, all bound to the session cookie
	s.RegisterRouteFunc("GET "+RouteLogin, ChainMiddleware(s.LoginHandler(), s.SessionMiddleware))
	s.RegisterRouteFunc("GET "+RouteCallback, ChainMiddleware(s.CallbackHandler(), s.SessionMiddleware))
	s.RegisterRouteFunc("GET "+RouteSessionStatus, ChainMiddleware(s.SessionStatusHandler(), s.SessionMiddleware))
	s.RegisterRouteFunc("GET "+RouteDetails, ChainMiddleware(s.DetailsHandler(), s.SessionMiddleware))
	s.RegisterRouteFunc("GET "+RouteLogout, ChainMiddleware(s.LogoutHandler(), s.SessionMiddleware))

	s.RegisterRouteHandler("GET "+RouteMetrics, promhttp.HandlerFor(s.metrics.Registry, promhttp.HandlerOpts{}))
	s.RegisterRouteFunc("GET "+RouteHealth, s.HealthHandler())
}
