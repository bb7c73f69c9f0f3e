package server

// Route path constants
const (
	RouteHealth = "/healthz"

	// API Routes
	RouteAPISession = "/api/session"
	RouteAPIWhoAmI  = "/api/whoami"
)
