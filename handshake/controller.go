// Package handshake drives the auth server side of SSO: the login, signup and
// forgot-password forms, token issuance and the redirect back to the client application.
package handshake

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/jrsteele09/go-sso/backend"
	"github.com/jrsteele09/go-sso/internal/metrics"
	"github.com/jrsteele09/go-sso/internal/utils"
	"github.com/jrsteele09/go-sso/session"
	"github.com/jrsteele09/go-sso/ssoapi"
	"github.com/jrsteele09/go-sso/storage"
	"github.com/jrsteele09/go-sso/token"
)

const (
	DefaultDashboardPath = "/dashboard"
	ResetPasswordPath    = "/reset-password"

	SignupRedirectDelay = 2 * time.Second
	ResetSwitchDelay    = 3 * time.Second
)

// Outcome tells the page what to show after an operation.
// Redirect and SwitchTo take effect after Delay; a zero Delay means immediately.
type Outcome struct {
	Form     Form
	Message  *Message
	Redirect string
	SwitchTo *Form
	Delay    time.Duration
}

type Controller struct {
	adapter   *backend.Adapter
	codec     *token.Codec
	stores    *session.Partitioned
	grants    *Grants
	dashboard string
	locale    string
	metrics   *metrics.Metrics
}

type Option func(*Controller)

func WithLocale(locale string) Option {
	return func(c *Controller) {
		if locale != "" {
			c.locale = locale
		}
	}
}

func WithDashboardPath(path string) Option {
	return func(c *Controller) {
		c.dashboard = path
	}
}

// WithGrants sets where client refresh tokens live. The default keeps them in memory.
func WithGrants(g *Grants) Option {
	return func(c *Controller) {
		c.grants = g
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Controller) {
		c.metrics = m
	}
}

// NewController wires the backend adapter, the token codec and the per-browser stores
func NewController(adapter *backend.Adapter, codec *token.Codec, stores *session.Partitioned, opts ...Option) *Controller {
	c := &Controller{
		adapter:   adapter,
		codec:     codec,
		stores:    stores,
		dashboard: DefaultDashboardPath,
		locale:    DefaultLocale,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.grants == nil {
		c.grants = NewGrants(storage.NewMemory())
	}
	return c
}

// Issuer is the iss claim of issued tokens
func (c *Controller) Issuer() string {
	return c.codec.Issuer()
}

func (c *Controller) Locale() string {
	return c.locale
}

// Message builds a localised message of kind for key
func (c *Controller) Message(kind MessageKind, key MessageKey) *Message {
	return newMessage(kind, Localize(c.locale, key))
}

func (c *Controller) fail(form Form, op string, err error, fallback MessageKey) Outcome {
	log.Warn().Err(err).Str("operation", op).Msg("handshake operation failed")
	c.metrics.Handshake(op, metrics.ResultFailure)
	return Outcome{Form: form, Message: newMessage(KindError, errorText(c.locale, err, fallback))}
}

// Login signs the browser in and, on success, completes the handshake.
func (c *Controller) Login(ctx context.Context, sid string, req Request, email, password string) Outcome {
	sess, err := c.adapter.SignIn(ctx, sid, normaliseEmail(email), password)
	if err != nil {
		return c.fail(FormLogin, "login", err, MsgLoginFailed)
	}

	redirect, err := c.CompleteLogin(ctx, sid, req, sess)
	if err != nil {
		return c.fail(FormLogin, "login", err, MsgLoginFailed)
	}
	c.metrics.Handshake("login", metrics.ResultSuccess)
	return Outcome{
		Form:     FormLogin,
		Message:  c.Message(KindSuccess, MsgLoginSuccess),
		Redirect: redirect,
	}
}

// CompleteLogin mints a token and a client refresh token for the session's user, persists
// them with the summary in the browser's store and returns where to send the browser next.
func (c *Controller) CompleteLogin(ctx context.Context, sid string, req Request, sess *backend.Session) (string, error) {
	if sess == nil {
		return "", errors.New("no session to complete")
	}

	accessToken, err := c.codec.Encode(sess.User.Identity(), req.ClientID)
	if err != nil {
		return "", errors.Wrap(err, "failed to issue token")
	}
	refreshToken, err := c.grants.Issue(ctx, sess.User.Identity(), req.ClientID)
	if err != nil {
		return "", errors.Wrap(err, "failed to issue refresh token")
	}

	store := c.stores.For(sid)
	if err := store.SetToken(ctx, accessToken); err != nil {
		return "", errors.Wrap(err, "failed to store token")
	}
	if err := store.SetRefreshToken(ctx, refreshToken); err != nil {
		return "", errors.Wrap(err, "failed to store refresh token")
	}
	if err := store.SetSummary(ctx, summaryOf(sess)); err != nil {
		return "", errors.Wrap(err, "failed to store session summary")
	}
	c.metrics.TokenIssued(req.ClientID)

	if !req.IsSSO() {
		return c.dashboard, nil
	}
	return req.RedirectURL(accessToken, refreshToken)
}

// Signup validates the form, registers the user and either signs them straight in or
// sends them back to the login form when the backend wants the email confirmed first.
func (c *Controller) Signup(ctx context.Context, sid string, req Request, form SignupForm) Outcome {
	if err := ValidateSignup(form); err != nil {
		c.metrics.Handshake("signup", metrics.ResultInvalid)
		return Outcome{Form: FormSignup, Message: c.Message(KindError, messageForValidation(err))}
	}

	result, err := c.adapter.SignUp(ctx, sid, normaliseEmail(form.Email), form.Password, form.Name)
	if err != nil {
		return c.fail(FormSignup, "signup", err, MsgSignupFailed)
	}
	if result.User == nil && result.Session == nil {
		c.metrics.Handshake("signup", metrics.ResultNone)
		return Outcome{Form: FormSignup}
	}

	c.metrics.Handshake("signup", metrics.ResultSuccess)
	out := Outcome{
		Form:    FormSignup,
		Message: c.Message(KindSuccess, MsgSignupSuccess),
		Delay:   SignupRedirectDelay,
	}
	if result.Session == nil {
		login := FormLogin
		out.SwitchTo = &login
		return out
	}

	redirect, err := c.CompleteLogin(ctx, sid, req, result.Session)
	if err != nil {
		return c.fail(FormSignup, "signup", err, MsgSignupFailed)
	}
	out.Redirect = redirect
	return out
}

// ForgotPassword asks the backend to email a reset link pointing at <origin>/reset-password.
func (c *Controller) ForgotPassword(ctx context.Context, email, origin string) Outcome {
	redirectTo := origin + ResetPasswordPath
	if err := c.adapter.RequestPasswordReset(ctx, normaliseEmail(email), redirectTo); err != nil {
		return c.fail(FormForgotPassword, "forgot_password", err, MsgResetFailed)
	}
	c.metrics.Handshake("forgot_password", metrics.ResultSuccess)
	login := FormLogin
	return Outcome{
		Form:     FormForgotPassword,
		Message:  c.Message(KindSuccess, MsgResetSent),
		SwitchTo: &login,
		Delay:    ResetSwitchDelay,
	}
}

// PageLoad checks for an existing session when the login page opens. A signed-in browser
// is sent back to the client application at once, or to the dashboard for a direct visit.
// Otherwise the requested form is rendered. Session lookup failures are logged only.
func (c *Controller) PageLoad(ctx context.Context, sid string, req Request, form Form) Outcome {
	sess, err := c.adapter.CurrentSession(ctx, sid)
	if err != nil {
		log.Err(err).Msg("session check failed")
		return Outcome{Form: form}
	}
	if sess == nil {
		return Outcome{Form: form}
	}
	if !req.IsSSO() {
		return Outcome{Form: form, Redirect: c.dashboard}
	}

	redirect, err := c.CompleteLogin(ctx, sid, req, sess)
	if err != nil {
		log.Err(err).Msg("silent login completion failed")
		return Outcome{Form: form, Message: c.Message(KindError, MsgLoginFailed)}
	}
	c.metrics.Handshake("page_load", metrics.ResultSuccess)
	return Outcome{Form: form, Redirect: redirect}
}

// SilentAuth answers the hidden frame of a client application. Token is nil without a session.
func (c *Controller) SilentAuth(ctx context.Context, sid string, req Request) ssoapi.SilentAuthResponse {
	resp := ssoapi.SilentAuthResponse{Type: ssoapi.MessageTypeSilentAuthResponse}

	sess, err := c.adapter.CurrentSession(ctx, sid)
	if err != nil {
		log.Err(err).Msg("silent auth session check failed")
		c.metrics.Handshake("silent_auth", metrics.ResultFailure)
		resp.Error = err.Error()
		return resp
	}
	if sess == nil {
		c.metrics.Handshake("silent_auth", metrics.ResultNone)
		return resp
	}

	accessToken, err := c.codec.Encode(sess.User.Identity(), req.ClientID)
	if err != nil {
		log.Err(err).Msg("silent auth token issue failed")
		c.metrics.Handshake("silent_auth", metrics.ResultFailure)
		resp.Error = err.Error()
		return resp
	}
	refreshToken, err := c.grants.Issue(ctx, sess.User.Identity(), req.ClientID)
	if err != nil {
		log.Err(err).Msg("silent auth refresh token issue failed")
		c.metrics.Handshake("silent_auth", metrics.ResultFailure)
		resp.Error = err.Error()
		return resp
	}
	c.metrics.Handshake("silent_auth", metrics.ResultSuccess)
	c.metrics.TokenIssued(req.ClientID)
	resp.Token = utils.Ptr(accessToken)
	resp.RefreshToken = refreshToken
	return resp
}

// Refresh redeems a client refresh token for a new access token. The token is single use;
// the response always carries its replacement.
func (c *Controller) Refresh(ctx context.Context, refreshToken, clientID string) (*ssoapi.RefreshResponse, error) {
	grant, err := c.grants.Redeem(ctx, refreshToken, clientID)
	if err != nil {
		c.metrics.Handshake("refresh", metrics.ResultFailure)
		return nil, err
	}

	accessToken, err := c.codec.Encode(grant.Identity, grant.ClientID)
	if err != nil {
		c.metrics.Handshake("refresh", metrics.ResultFailure)
		return nil, errors.Wrap(err, "failed to issue token")
	}
	c.metrics.Handshake("refresh", metrics.ResultSuccess)
	c.metrics.TokenIssued(grant.ClientID)

	return &ssoapi.RefreshResponse{
		AccessToken:  accessToken,
		TokenType:    ssoapi.TokenTypeBearer,
		ExpiresIn:    int(token.Lifetime.Seconds()),
		RefreshToken: grant.RefreshToken,
	}, nil
}

// Logout ends the backend session of the browser, revokes the client refresh tokens of its
// user and clears its store.
func (c *Controller) Logout(ctx context.Context, sid string) error {
	store := c.stores.For(sid)
	if summary, err := store.Summary(ctx); err != nil {
		log.Err(err).Msg("load session summary failed")
	} else if summary != nil {
		if err := c.grants.RevokeUser(ctx, summary.User.ID); err != nil {
			log.Err(err).Str("user", summary.User.Email).Msg("revoke client refresh tokens failed")
		}
	}
	if err := c.adapter.SignOut(ctx, sid); err != nil {
		log.Err(err).Msg("sign out failed")
	}
	if err := store.Clear(ctx); err != nil {
		return errors.Wrap(err, "failed to clear session store")
	}
	c.metrics.Handshake("logout", metrics.ResultSuccess)
	return nil
}

// Summary returns the signed-in user shown on the dashboard, or nil.
func (c *Controller) Summary(ctx context.Context, sid string) (*session.Summary, error) {
	return c.stores.For(sid).Summary(ctx)
}

func summaryOf(s *backend.Session) session.Summary {
	return session.Summary{
		User: session.SummaryUser{
			ID:    s.User.ID,
			Email: s.User.Email,
			Name:  s.User.DisplayName(),
		},
		ExpiresAt: s.ExpiresAt,
	}
}
