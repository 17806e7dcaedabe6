// Package backend is the thin façade over the identity provider: password signup, login,
// password reset and session retrieval.
package backend

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/pkg/errors"

	ierrors "github.com/jrsteele09/go-sso/internal/errors"
	"github.com/jrsteele09/go-sso/token"
)

type User struct {
	ID       string         `json:"id"`
	Email    string         `json:"email"`
	Role     string         `json:"role,omitempty"`
	Metadata map[string]any `json:"user_metadata,omitempty"`
}

// Identity converts the user into token input
func (u User) Identity() token.Identity {
	return token.Identity{ID: u.ID, Email: u.Email, Role: u.Role, Metadata: u.Metadata}
}

// DisplayName is the metadata name or the local part of the email
func (u User) DisplayName() string {
	return token.DisplayName(u.Email, u.Metadata)
}

// Session is an identity-provider session. ExpiresAt is in unix seconds.
type Session struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresAt    int64  `json:"expires_at"`
	User         User   `json:"user"`
}

// Expired reports whether the backend access token is past its expiry
func (s *Session) Expired(now time.Time) bool {
	return s.ExpiresAt != 0 && s.ExpiresAt <= now.Unix()
}

// SignUpResult carries no Session when the backend requires email confirmation first.
type SignUpResult struct {
	User    *User
	Session *Session
}

// AuthError is any failure reported by the identity provider.
type AuthError struct {
	Status  int    // HTTP status the provider answered with
	Code    string // provider error code, e.g. invalid_credentials
	Message string // human readable, shown to the user
	Err     error  // optional sentinel from internal/errors
}

func (e *AuthError) Error() string {
	if e.Code == "" {
		return e.Message
	}
	return fmt.Sprintf("%s (%s)", e.Message, e.Code)
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// IsRejection reports whether the provider refused the request itself. Transport failures,
// unreadable answers, rate limiting and 5xx responses are not rejections.
func IsRejection(err error) bool {
	if err == nil || errors.Is(err, ierrors.ErrRateLimited) {
		return false
	}
	var authErr *AuthError
	if errors.As(err, &authErr) && authErr.Status != 0 {
		return authErr.Status >= http.StatusBadRequest &&
			authErr.Status < http.StatusInternalServerError &&
			authErr.Status != http.StatusTooManyRequests
	}
	return errors.Is(err, ierrors.ErrInvalidRefreshToken) || errors.Is(err, ierrors.ErrInvalidCredentials)
}

// Provider is an identity backend.
type Provider interface {
	SignInWithPassword(ctx context.Context, email, password string) (*Session, error)
	SignUp(ctx context.Context, email, password string, metadata map[string]any) (*SignUpResult, error)
	ResetPasswordForEmail(ctx context.Context, email, redirectTo string) error
	RefreshSession(ctx context.Context, refreshToken string) (*Session, error)
	SignOut(ctx context.Context, accessToken string) error
}
