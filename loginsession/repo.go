// Package loginsession keeps the identity-backend session for each browser that signed in
// at the auth server, keyed by the browser session id cookie.
package loginsession

import (
	"context"
	"time"
)

type Session struct {
	// Core identity
	UserID   string         `json:"user_id"`
	Email    string         `json:"email"`
	Role     string         `json:"role,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`

	// Backend tokens (refresh is essential, access is convenience)
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`

	// Session management
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

// Repo stores sessions. Get returns errors.ErrSessionNotFound for unknown ids.
type Repo interface {
	Upsert(ctx context.Context, sessionID string, session Session) error
	Get(ctx context.Context, sessionID string) (Session, error)
	Delete(ctx context.Context, sessionID string) error
}
