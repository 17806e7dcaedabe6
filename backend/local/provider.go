// Package local is an in-process identity provider backed by the users store. It stands in
// for the hosted backend in development and tests.
package local

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/jrsteele09/go-sso/backend"
	ierrors "github.com/jrsteele09/go-sso/internal/errors"
	"github.com/jrsteele09/go-sso/token"
	"github.com/jrsteele09/go-sso/token/refresh"
	"github.com/jrsteele09/go-sso/users"
)

const accessTokenIssuer = "local"

var _ backend.Provider = (*Provider)(nil)

// ResetRequest is a recorded password-reset email
type ResetRequest struct {
	Email       string
	RedirectTo  string
	RequestedAt time.Time
}

type Provider struct {
	users               users.UserRepo
	refresh             *refresh.Manager
	access              *token.Codec
	accessSigner        token.Signer
	requireConfirmation bool
	refreshExpiry       time.Duration
	policy              users.PasswordPolicy
	nowTime             func() time.Time

	mu     sync.Mutex
	resets []ResetRequest
}

type Option func(*Provider)

// WithEmailConfirmation makes SignUp return no session until the user is confirmed
func WithEmailConfirmation(required bool) Option {
	return func(p *Provider) {
		p.requireConfirmation = required
	}
}

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(now func() time.Time) Option {
	return func(p *Provider) {
		p.nowTime = now
	}
}

// WithAccessTokenSecret signs provider access tokens with secret instead of a random per-process key
func WithAccessTokenSecret(secret string) Option {
	return func(p *Provider) {
		p.accessSigner = token.NewHMACSigner(secret)
	}
}

// WithPasswordPolicy replaces users.DefaultPasswordPolicy for new accounts
func WithPasswordPolicy(policy users.PasswordPolicy) Option {
	return func(p *Provider) {
		p.policy = policy
	}
}

// WithRefreshExpiry sets how long an issued refresh token stays valid
func WithRefreshExpiry(expiry time.Duration) Option {
	return func(p *Provider) {
		p.refreshExpiry = expiry
	}
}

func New(userRepo users.UserRepo, refreshRepo refresh.Repo, options ...Option) *Provider {
	p := &Provider{
		users:   userRepo,
		policy:  users.DefaultPasswordPolicy,
		nowTime: time.Now,
	}
	for _, opt := range options {
		opt(p)
	}
	if p.accessSigner == nil {
		p.accessSigner = token.NewHMACSigner(randomSecret())
	}
	p.access = token.NewCodec(accessTokenIssuer, token.WithSigner(p.accessSigner), token.WithNowTime(p.nowTime))
	managerOpts := []refresh.ManagerOption{refresh.WithNowFunc(p.nowTime)}
	if p.refreshExpiry > 0 {
		managerOpts = append(managerOpts, refresh.WithExpiry(p.refreshExpiry))
	}
	p.refresh = refresh.NewManager(refreshRepo, managerOpts...)
	return p
}

func (p *Provider) SignInWithPassword(ctx context.Context, email, password string) (*backend.Session, error) {
	u, err := p.users.GetByEmail(ctx, normaliseEmail(email))
	if err != nil || !u.CheckPassword(password) {
		return nil, invalidCredentials()
	}
	if u.Blocked {
		return nil, &backend.AuthError{Status: http.StatusForbidden, Code: "user_banned", Message: "User is banned"}
	}
	if !u.Confirmed {
		return nil, &backend.AuthError{Status: http.StatusBadRequest, Code: "email_not_confirmed", Message: "Email not confirmed", Err: ierrors.ErrUserNotConfirmed}
	}

	u.LastLogin = p.nowTime()
	if err := p.users.Upsert(ctx, u); err != nil {
		return nil, internalError(err)
	}
	return p.issue(ctx, u, "")
}

func (p *Provider) SignUp(ctx context.Context, email, password string, metadata map[string]any) (*backend.SignUpResult, error) {
	email = normaliseEmail(email)
	if email == "" || !strings.Contains(email, "@") {
		return nil, &backend.AuthError{Status: http.StatusBadRequest, Code: "validation_failed", Message: "Unable to validate email address: invalid format"}
	}
	if err := p.policy.Validate(password); err != nil {
		msg, _, _ := strings.Cut(err.Error(), ": ")
		return nil, &backend.AuthError{Status: http.StatusUnprocessableEntity, Code: "weak_password", Message: msg, Err: ierrors.ErrWeakPassword}
	}
	if _, err := p.users.GetByEmail(ctx, email); err == nil {
		return nil, userExists()
	}

	hash, err := users.HashPassword(password)
	if err != nil {
		return nil, internalError(err)
	}
	u := &users.User{
		Email:        email,
		PasswordHash: hash,
		Role:         users.RoleUser,
		Metadata:     metadata,
		DateJoined:   p.nowTime(),
		Confirmed:    !p.requireConfirmation,
	}
	if err := p.users.Upsert(ctx, u); err != nil {
		if ierrors.Is(err, ierrors.ErrUserExists) {
			return nil, userExists()
		}
		return nil, internalError(err)
	}

	user := toUser(u)
	if p.requireConfirmation {
		log.Info().Str("email", email).Msg("signup pending email confirmation")
		return &backend.SignUpResult{User: &user}, nil
	}
	session, err := p.issue(ctx, u, "")
	if err != nil {
		return nil, err
	}
	return &backend.SignUpResult{User: &user, Session: session}, nil
}

// ResetPasswordForEmail records the request. Unknown addresses succeed silently.
func (p *Provider) ResetPasswordForEmail(ctx context.Context, email, redirectTo string) error {
	email = normaliseEmail(email)
	if _, err := p.users.GetByEmail(ctx, email); err != nil {
		log.Debug().Str("email", email).Msg("password reset for unknown email ignored")
		return nil
	}

	p.mu.Lock()
	p.resets = append(p.resets, ResetRequest{Email: email, RedirectTo: redirectTo, RequestedAt: p.nowTime()})
	p.mu.Unlock()

	log.Info().Str("email", email).Str("redirect_to", redirectTo).Msg("password reset requested")
	return nil
}

// ResetRequests returns the recorded reset requests
func (p *Provider) ResetRequests() []ResetRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]ResetRequest(nil), p.resets...)
}

func (p *Provider) RefreshSession(ctx context.Context, refreshToken string) (*backend.Session, error) {
	rotated, err := p.refresh.Rotate(ctx, refreshToken)
	if err != nil {
		return nil, &backend.AuthError{Status: http.StatusBadRequest, Code: "refresh_token_not_found", Message: "Invalid Refresh Token: Refresh Token Not Found", Err: ierrors.ErrInvalidRefreshToken}
	}
	u, err := p.users.GetByID(ctx, rotated.UserID)
	if err != nil {
		return nil, invalidCredentials()
	}
	return p.session(u, rotated.Token)
}

// SignOut revokes every refresh token of the user the access token belongs to.
func (p *Provider) SignOut(ctx context.Context, accessToken string) error {
	claims, err := p.access.Verify(accessToken)
	if err != nil {
		return &backend.AuthError{Status: http.StatusUnauthorized, Code: "bad_jwt", Message: "invalid JWT", Err: err}
	}
	return p.refresh.RevokeUser(ctx, claims.Subject)
}

// Confirm marks a pending signup as confirmed
func (p *Provider) Confirm(ctx context.Context, email string) error {
	return p.users.SetConfirmed(ctx, normaliseEmail(email), true)
}

func (p *Provider) issue(ctx context.Context, u *users.User, clientID string) (*backend.Session, error) {
	rt, err := p.refresh.Create(ctx, u.ID, clientID)
	if err != nil {
		return nil, internalError(err)
	}
	return p.session(u, rt)
}

func (p *Provider) session(u *users.User, refreshToken string) (*backend.Session, error) {
	user := toUser(u)
	claims := p.access.Claims(user.Identity(), "")
	at, err := p.access.Sign(claims)
	if err != nil {
		return nil, internalError(err)
	}
	return &backend.Session{
		AccessToken:  at,
		RefreshToken: refreshToken,
		ExpiresAt:    claims.ExpiresAt,
		User:         user,
	}, nil
}

func toUser(u *users.User) backend.User {
	return backend.User{
		ID:       u.ID,
		Email:    u.Email,
		Role:     string(u.Role),
		Metadata: u.Metadata,
	}
}

func normaliseEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func invalidCredentials() error {
	return &backend.AuthError{Status: http.StatusBadRequest, Code: "invalid_credentials", Message: "Invalid login credentials", Err: ierrors.ErrInvalidCredentials}
}

func userExists() error {
	return &backend.AuthError{Status: http.StatusUnprocessableEntity, Code: "user_already_exists", Message: "User already registered", Err: ierrors.ErrUserExists}
}

func internalError(err error) error {
	log.Err(err).Msg("local identity provider failure")
	return &backend.AuthError{Status: http.StatusInternalServerError, Code: "unexpected_failure", Message: "Unexpected failure, please try again", Err: ierrors.ErrInternal}
}

func randomSecret() string {
	b := make([]byte, 32)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
