package ssoapi

// RefreshRequest is the body of POST /api/refresh.
type RefreshRequest struct {
	// RefreshToken is the opaque token issued with the access token.
	RefreshToken string `json:"refresh_token"`

	// ClientID is the origin of the calling application; it becomes the aud claim.
	ClientID string `json:"client_id"`
}

// RefreshResponse is returned by POST /api/refresh.
type RefreshResponse struct {
	// AccessToken is a freshly minted bearer token.
	AccessToken string `json:"access_token"`

	// RefreshToken replaces the redeemed one, which is now spent.
	RefreshToken string `json:"refresh_token,omitempty"`

	// TokenType is always "Bearer".
	TokenType string `json:"token_type"`

	// ExpiresIn is the access token lifetime in seconds.
	ExpiresIn int `json:"expires_in"`
}

// LogoutRequest is the body of POST /api/logout.
type LogoutRequest struct {
	ClientID string `json:"client_id"`
}

// ErrorResponse is the JSON error body of the /api endpoints.
type ErrorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
}

// Discovery is the subset of the OpenID provider metadata the auth server publishes.
type Discovery struct {
	Issuer                 string   `json:"issuer"`
	AuthorizationEndpoint  string   `json:"authorization_endpoint"`
	TokenEndpoint          string   `json:"token_endpoint"`
	JWKSURI                string   `json:"jwks_uri"`
	UserInfoEndpoint       string   `json:"userinfo_endpoint,omitempty"`
	EndSessionEndpoint     string   `json:"end_session_endpoint"`
	SilentAuthEndpoint     string   `json:"silent_auth_endpoint"`
	RefreshEndpoint        string   `json:"refresh_endpoint"`
	LogoutNotifyEndpoint   string   `json:"logout_endpoint"`
	ResponseTypesSupported []string `json:"response_types_supported"`
	ScopesSupported        []string `json:"scopes_supported"`
	SubjectTypesSupported  []string `json:"subject_types_supported"`
	IDTokenSigningAlgs     []string `json:"id_token_signing_alg_values_supported"`
}
