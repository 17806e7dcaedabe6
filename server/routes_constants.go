package server

import "github.com/jrsteele09/go-sso/ssoapi"

// Route path constants
// The routes client applications depend on live in ssoapi
const (
	RouteIndex = "/"

	// Browser-navigated pages
	RouteLogin      = ssoapi.RouteLogin
	RouteLogout     = ssoapi.RouteLogout
	RouteSilentAuth = ssoapi.RouteSilentAuth
	RouteDashboard  = "/dashboard"
	RouteResetPage  = "/reset-password"

	// Form submissions
	RouteAuthLogin          = "/auth/login"
	RouteAuthSignup         = "/auth/signup"
	RouteAuthForgotPassword = "/auth/forgot-password"

	// API Routes
	RouteAPILogout  = ssoapi.RouteAPILogout
	RouteAPIRefresh = ssoapi.RouteAPIRefresh

	// Discovery
	RouteWellKnownOpenIDConfig = ssoapi.RouteDiscovery
	RouteWellKnownJWKS         = ssoapi.RouteJWKS

	RouteMetrics = "/metrics"

	// Static Asset Routes (patterns)
	RouteStaticCSS = "/css/{file}"
	RouteStaticJS  = "/js/{file}"
)

const (
	contentTypeHTML = "text/html; charset=utf-8"
	contentTypeJSON = "application/json"
)
