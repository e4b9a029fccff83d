package server

// Route path constants
const (
	RouteLogin         = "/login"
	RouteCallback      = "/callback"
	RouteSessionStatus = "/sessionstatus"
	RouteDetails       = "/details"
	RouteLogout        = "/logout"

	// Operational
	RouteMetrics = "/metrics"
	RouteHealth  = "/healthz"
)
