package ssoapi

// MessageTypeSilentAuthResponse tags the message posted by the silent-auth frame.
const MessageTypeSilentAuthResponse = "silent-auth-response"

// SilentAuthResponse is posted by the silent-auth frame to its parent.
// Token is nil when the browser has no session at the auth server.
type SilentAuthResponse struct {
	// Type is always MessageTypeSilentAuthResponse.
	Type string `json:"type"`

	// Token is the bearer token, or null.
	Token *string `json:"token"`

	// RefreshToken is a refresh token issued to this client, present with Token.
	RefreshToken string `json:"refreshToken,omitempty"`

	// Error describes an internal failure. Token is null when set.
	Error string `json:"error,omitempty"`
}

// Envelope is the generic cross-window message shape {type, data}.
type Envelope struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}
