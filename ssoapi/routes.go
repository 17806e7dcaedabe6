// Package ssoapi holds the wire contract shared by the auth server and the client library:
// endpoint paths, JSON bodies, query and fragment parameter names.
package ssoapi

// Auth server endpoints used by client applications
const (
	// RouteLogin is the browser-navigated login page.
	// Example: GET /login?client_id=http://localhost:3002&redirect_uri=...&response_type=token&scope=openid+profile+email
	RouteLogin = "/login"

	// RouteLogout is the browser-navigated logout page.
	// Example: GET /logout?redirect_uri=http%3A%2F%2Flocalhost%3A3002
	RouteLogout = "/logout"

	// RouteSilentAuth is loaded in a hidden frame and answers with a SilentAuthResponse message.
	// Example: GET /silent-auth?client_id=http%3A%2F%2Flocalhost%3A3002
	RouteSilentAuth = "/silent-auth"

	// RouteAPILogout is the best-effort logout notification.
	// Body: LogoutRequest
	RouteAPILogout = "/api/logout"

	// RouteAPIRefresh exchanges a refresh token for a new access token.
	// Body: RefreshRequest, response: RefreshResponse
	RouteAPIRefresh = "/api/refresh"

	// RouteDiscovery publishes the issuer and the endpoints above.
	RouteDiscovery = "/.well-known/openid-configuration"

	// RouteJWKS publishes the public signing keys when tokens are signed with RS256.
	RouteJWKS = "/.well-known/jwks.json"
)

// Query parameters of the login request
const (
	ParamClientID     = "client_id"
	ParamRedirectURI  = "redirect_uri"
	ParamResponseType = "response_type"
	ParamScope        = "scope"
	ParamState        = "state"
)

// Defaults applied when the request omits them
const (
	ResponseTypeToken = "token"
	DefaultScope      = "openid profile email"
)

// Fragment parameters of the redirect back to the client application
const (
	FragmentAccessToken  = "access_token"
	FragmentTokenType    = "token_type"
	FragmentExpiresIn    = "expires_in"
	FragmentRefreshToken = "refresh_token"
	FragmentState        = "state"
	FragmentError        = "error"

	TokenTypeBearer = "Bearer"
)
