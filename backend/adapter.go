package backend

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	ierrors "github.com/jrsteele09/go-sso/internal/errors"
	"github.com/jrsteele09/go-sso/loginsession"
)

// Adapter keeps one provider session per browser, keyed by browser session id.
type Adapter struct {
	provider Provider
	sessions loginsession.Repo
	nowTime  func() time.Time
}

type AdapterOption func(*Adapter)

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(now func() time.Time) AdapterOption {
	return func(a *Adapter) {
		a.nowTime = now
	}
}

func NewAdapter(provider Provider, sessions loginsession.Repo, options ...AdapterOption) *Adapter {
	a := &Adapter{
		provider: provider,
		sessions: sessions,
		nowTime:  time.Now,
	}
	for _, opt := range options {
		opt(a)
	}
	return a
}

// SignIn authenticates and remembers the session for sid
func (a *Adapter) SignIn(ctx context.Context, sid, email, password string) (*Session, error) {
	session, err := a.provider.SignInWithPassword(ctx, email, password)
	if err != nil {
		return nil, err
	}
	if err := a.remember(ctx, sid, session); err != nil {
		return nil, err
	}
	return session, nil
}

// SignUp registers a user. name goes into the user metadata. When the provider returns a
// session it is remembered for sid.
func (a *Adapter) SignUp(ctx context.Context, sid, email, password, name string) (*SignUpResult, error) {
	result, err := a.provider.SignUp(ctx, email, password, map[string]any{"name": name})
	if err != nil {
		return nil, err
	}
	if result.Session != nil {
		if err := a.remember(ctx, sid, result.Session); err != nil {
			return nil, err
		}
	}
	return result, nil
}

func (a *Adapter) RequestPasswordReset(ctx context.Context, email, redirectTo string) error {
	return a.provider.ResetPasswordForEmail(ctx, email, redirectTo)
}

// CurrentSession returns the session for sid, or nil when there is none. An expired session
// is refreshed with its refresh token and dropped when the provider rejects that token.
// Any other refresh failure is returned and the session is kept for the next attempt.
func (a *Adapter) CurrentSession(ctx context.Context, sid string) (*Session, error) {
	if sid == "" {
		return nil, nil
	}
	stored, err := a.sessions.Get(ctx, sid)
	if errors.Is(err, ierrors.ErrSessionNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "load login session")
	}

	session := fromStored(stored)
	if !session.Expired(a.nowTime()) {
		return session, nil
	}

	refreshed, err := a.Refresh(ctx, session.RefreshToken)
	if err != nil {
		if !IsRejection(err) {
			return nil, errors.Wrap(err, "refresh login session")
		}
		log.Warn().Err(err).Str("user", session.User.Email).Msg("dropping expired session, refresh failed")
		if delErr := a.sessions.Delete(ctx, sid); delErr != nil {
			log.Err(delErr).Msg("failed to delete expired login session")
		}
		return nil, nil
	}
	if err := a.remember(ctx, sid, refreshed); err != nil {
		return nil, err
	}
	return refreshed, nil
}

// SignOut ends the provider session for sid. Provider failures are logged, the local session is always removed.
func (a *Adapter) SignOut(ctx context.Context, sid string) error {
	if sid == "" {
		return nil
	}
	stored, err := a.sessions.Get(ctx, sid)
	if errors.Is(err, ierrors.ErrSessionNotFound) {
		return nil
	}
	if err != nil {
		return errors.Wrap(err, "load login session")
	}
	if err := a.provider.SignOut(ctx, stored.AccessToken); err != nil {
		log.Warn().Err(err).Str("user", stored.Email).Msg("identity provider sign out failed")
	}
	return a.sessions.Delete(ctx, sid)
}

// Refresh exchanges a refresh token for a new session without touching any browser session.
func (a *Adapter) Refresh(ctx context.Context, refreshToken string) (*Session, error) {
	if refreshToken == "" {
		return nil, &AuthError{Status: 400, Code: "refresh_token_not_found", Message: "Refresh token is required", Err: ierrors.ErrInvalidRefreshToken}
	}
	sess, err := a.provider.RefreshSession(ctx, refreshToken)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, &AuthError{Status: 401, Code: "session_not_found", Message: "Refresh returned no session", Err: ierrors.ErrInvalidRefreshToken}
	}
	return sess, nil
}

func (a *Adapter) remember(ctx context.Context, sid string, s *Session) error {
	if sid == "" || s == nil {
		return nil
	}
	if err := a.sessions.Upsert(ctx, sid, toStored(s, a.nowTime())); err != nil {
		return errors.Wrap(err, "store login session")
	}
	return nil
}

func toStored(s *Session, now time.Time) loginsession.Session {
	var expires time.Time
	if s.ExpiresAt != 0 {
		expires = time.Unix(s.ExpiresAt, 0)
	}
	return loginsession.Session{
		UserID:       s.User.ID,
		Email:        s.User.Email,
		Role:         s.User.Role,
		Metadata:     s.User.Metadata,
		AccessToken:  s.AccessToken,
		RefreshToken: s.RefreshToken,
		ExpiresAt:    expires,
		CreatedAt:    now,
	}
}

func fromStored(s loginsession.Session) *Session {
	var expires int64
	if !s.ExpiresAt.IsZero() {
		expires = s.ExpiresAt.Unix()
	}
	return &Session{
		AccessToken:  s.AccessToken,
		RefreshToken: s.RefreshToken,
		ExpiresAt:    expires,
		User: User{
			ID:       s.UserID,
			Email:    s.Email,
			Role:     s.Role,
			Metadata: s.Metadata,
		},
	}
}
