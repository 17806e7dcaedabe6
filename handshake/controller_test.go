package handshake_test

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jrsteele09/go-sso/backend"
	"github.com/jrsteele09/go-sso/backend/local"
	"github.com/jrsteele09/go-sso/backend/providerfake"
	"github.com/jrsteele09/go-sso/handshake"
	"github.com/jrsteele09/go-sso/loginsession"
	"github.com/jrsteele09/go-sso/session"
	"github.com/jrsteele09/go-sso/storage"
	"github.com/jrsteele09/go-sso/token"
	refreshfake "github.com/jrsteele09/go-sso/token/refresh/repofake"
	userfake "github.com/jrsteele09/go-sso/users/repofake"
)

const (
	issuer   = "http://localhost:3001"
	clientID = "http://localhost:3002"
	sid      = "browser-1"
)

type controllerFixture struct {
	now        time.Time
	provider   *providerfake.FakeProvider
	stores     *session.Partitioned
	controller *handshake.Controller
}

func newControllerFixture(opts ...handshake.Option) *controllerFixture {
	f := &controllerFixture{
		now:      time.Date(2025, 7, 29, 10, 0, 0, 0, time.UTC),
		provider: providerfake.New(),
		stores:   session.NewPartitioned(storage.NewMemoryPartitions(), session.DefaultKeys()),
	}
	nowFn := func() time.Time { return f.now }
	adapter := backend.NewAdapter(f.provider, loginsession.NewInMemoryRepo(), backend.WithNowTime(nowFn))
	codec := token.NewCodec(issuer, token.WithNowTime(nowFn))
	f.controller = handshake.NewController(adapter, codec, f.stores, opts...)
	return f
}

func (f *controllerFixture) session() *backend.Session {
	return &backend.Session{
		AccessToken:  "backend-at",
		RefreshToken: "rt-1",
		ExpiresAt:    f.now.Add(time.Hour).Unix(),
		User: backend.User{
			ID:       "user-1",
			Email:    "jane@example.com",
			Metadata: map[string]any{"name": "Jane"},
		},
	}
}

func ssoRequest() handshake.Request {
	return handshake.ParseRequest(url.Values{
		"client_id":    {clientID},
		"redirect_uri": {clientID + "/callback"},
		"state":        {"xyz"},
	})
}

func fragmentOf(t *testing.T, redirect string) url.Values {
	t.Helper()
	i := strings.Index(redirect, "#")
	require.GreaterOrEqual(t, i, 0, redirect)
	values, err := url.ParseQuery(redirect[i+1:])
	require.NoError(t, err)
	return values
}

func TestLogin_SSORedirect(t *testing.T) {
	f := newControllerFixture()
	ctx := context.Background()
	f.provider.SignInSession = f.session()

	out := f.controller.Login(ctx, sid, ssoRequest(), " jane@example.com ", "password1")

	require.Equal(t, handshake.KindSuccess, out.Message.Kind)
	require.Equal(t, handshake.MessageDismissAfter, out.Message.DismissAfter)
	require.Zero(t, out.Delay)
	require.True(t, strings.HasPrefix(out.Redirect, clientID+"/callback#access_token="), out.Redirect)
	frag := fragmentOf(t, out.Redirect)
	clientRefresh := frag.Get("refresh_token")
	require.NotEmpty(t, clientRefresh)
	require.NotEqual(t, "rt-1", clientRefresh, "backend refresh token stays on the server")
	require.True(t, strings.HasSuffix(out.Redirect, "&token_type=Bearer&expires_in=3600&refresh_token="+clientRefresh+"&state=xyz"), out.Redirect)

	claims, err := token.Decode(frag.Get("access_token"))
	require.NoError(t, err)
	require.Equal(t, "user-1", claims.Subject)
	require.Equal(t, "Jane", claims.Name)
	require.Equal(t, "user", claims.Role)
	require.Equal(t, clientID, claims.Audience)
	require.Equal(t, issuer, claims.Issuer)
	require.Equal(t, f.now.Unix()+3600, claims.ExpiresAt)

	store := f.stores.For(sid)
	stored, ok, err := store.Token(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, frag.Get("access_token"), stored)

	rt, _, _ := store.RefreshToken(ctx)
	require.Equal(t, clientRefresh, rt)

	summary, err := f.controller.Summary(ctx, sid)
	require.NoError(t, err)
	require.Equal(t, session.Summary{
		User:      session.SummaryUser{ID: "user-1", Email: "jane@example.com", Name: "Jane"},
		ExpiresAt: f.now.Add(time.Hour).Unix(),
	}, *summary)
}

func TestLogin_DirectVisitGoesToDashboard(t *testing.T) {
	f := newControllerFixture(handshake.WithDashboardPath("/home"))
	f.provider.SignInSession = f.session()

	out := f.controller.Login(context.Background(), sid, handshake.ParseRequest(url.Values{}), "jane@example.com", "password1")
	require.Equal(t, "/home", out.Redirect)
}

func TestLogin_FailureShowsBackendMessage(t *testing.T) {
	f := newControllerFixture()
	ctx := context.Background()
	f.provider.SignInErr = &backend.AuthError{Status: 400, Code: "invalid_credentials", Message: "Invalid login credentials"}

	out := f.controller.Login(ctx, sid, ssoRequest(), "jane@example.com", "wrong")

	require.Equal(t, handshake.FormLogin, out.Form)
	require.Empty(t, out.Redirect)
	require.Equal(t, handshake.KindError, out.Message.Kind)
	require.Equal(t, "Invalid login credentials", out.Message.Text)

	_, ok, err := f.stores.For(sid).Token(ctx)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestLogin_FailureFallsBackToCatalog(t *testing.T) {
	f := newControllerFixture(handshake.WithLocale("ko"))
	f.provider.SignInErr = errors.New("connection reset")

	out := f.controller.Login(context.Background(), sid, ssoRequest(), "jane@example.com", "pw")
	require.Equal(t, "로그인 중 오류가 발생했습니다.", out.Message.Text)
}

func TestLogin_InvalidRedirectURIIsReported(t *testing.T) {
	f := newControllerFixture()
	f.provider.SignInSession = f.session()
	req := ssoRequest()
	req.RedirectURI = "/not/absolute"

	out := f.controller.Login(context.Background(), sid, req, "jane@example.com", "pw")
	require.Equal(t, handshake.KindError, out.Message.Kind)
	require.Empty(t, out.Redirect)
}

func TestSignup_ValidationBeforeBackend(t *testing.T) {
	f := newControllerFixture(handshake.WithLocale("ko"))

	out := f.controller.Signup(context.Background(), sid, ssoRequest(), handshake.SignupForm{
		Email: "jane@example.com", Password: "short", PasswordConfirm: "short", AgreeTerms: true,
	})

	require.Equal(t, handshake.FormSignup, out.Form)
	require.Equal(t, "비밀번호는 최소 8자 이상이어야 합니다.", out.Message.Text)
	require.Zero(t, f.provider.CallCount("SignUp"))
}

func TestSignup_ConfirmationRequiredSwitchesToLogin(t *testing.T) {
	f := newControllerFixture()
	f.provider.SignUpResult = &backend.SignUpResult{User: &backend.User{ID: "user-1", Email: "jane@example.com"}}

	out := f.controller.Signup(context.Background(), sid, ssoRequest(), handshake.SignupForm{
		Email: "jane@example.com", Password: "password1", PasswordConfirm: "password1", Name: "Jane", AgreeTerms: true,
	})

	require.Equal(t, handshake.KindSuccess, out.Message.Kind)
	require.NotNil(t, out.SwitchTo)
	require.Equal(t, handshake.FormLogin, *out.SwitchTo)
	require.Equal(t, handshake.SignupRedirectDelay, out.Delay)
	require.Empty(t, out.Redirect)
	require.Equal(t, map[string]any{"name": "Jane"}, f.provider.LastMetadata)
}

func TestSignup_WithSessionCompletesLogin(t *testing.T) {
	f := newControllerFixture()
	s := f.session()
	f.provider.SignUpResult = &backend.SignUpResult{User: &s.User, Session: s}

	out := f.controller.Signup(context.Background(), sid, ssoRequest(), handshake.SignupForm{
		Email: "jane@example.com", Password: "password1", PasswordConfirm: "password1", AgreeTerms: true,
	})

	require.Nil(t, out.SwitchTo)
	require.Equal(t, 2*time.Second, out.Delay)
	require.Equal(t, "xyz", fragmentOf(t, out.Redirect).Get("state"))
}

func TestSignup_BackendError(t *testing.T) {
	f := newControllerFixture()
	f.provider.SignUpErr = &backend.AuthError{Status: 422, Code: "user_already_exists", Message: "User already registered"}

	out := f.controller.Signup(context.Background(), sid, ssoRequest(), handshake.SignupForm{
		Email: "jane@example.com", Password: "password1", PasswordConfirm: "password1", AgreeTerms: true,
	})
	require.Equal(t, handshake.FormSignup, out.Form)
	require.Equal(t, "User already registered", out.Message.Text)
}

func TestForgotPassword(t *testing.T) {
	f := newControllerFixture()

	out := f.controller.ForgotPassword(context.Background(), "jane@example.com", "http://localhost:3001")

	require.Equal(t, "http://localhost:3001/reset-password", f.provider.LastRedirectTo)
	require.Equal(t, handshake.KindSuccess, out.Message.Kind)
	require.Equal(t, handshake.FormLogin, *out.SwitchTo)
	require.Equal(t, 3*time.Second, out.Delay)

	f.provider.ResetErr = errors.New("smtp down")
	out = f.controller.ForgotPassword(context.Background(), "jane@example.com", "http://localhost:3001")
	require.Equal(t, handshake.FormForgotPassword, out.Form)
	require.Equal(t, "An error occurred while resetting the password.", out.Message.Text)
	require.Nil(t, out.SwitchTo)
}

func TestPageLoad(t *testing.T) {
	f := newControllerFixture()
	ctx := context.Background()

	out := f.controller.PageLoad(ctx, sid, ssoRequest(), handshake.FormSignup)
	require.Equal(t, handshake.Outcome{Form: handshake.FormSignup}, out)

	f.provider.SignInSession = f.session()
	f.controller.Login(ctx, sid, handshake.Request{}, "jane@example.com", "pw")

	out = f.controller.PageLoad(ctx, sid, ssoRequest(), handshake.FormLogin)
	require.Nil(t, out.Message)
	require.Equal(t, clientID, mustDecode(t, fragmentOf(t, out.Redirect).Get("access_token")).Audience)

	out = f.controller.PageLoad(ctx, sid, handshake.Request{}, handshake.FormLogin)
	require.Equal(t, handshake.DefaultDashboardPath, out.Redirect)
}

func TestSilentAuth(t *testing.T) {
	f := newControllerFixture()
	ctx := context.Background()

	resp := f.controller.SilentAuth(ctx, sid, ssoRequest())
	require.Equal(t, "silent-auth-response", resp.Type)
	require.Nil(t, resp.Token)
	require.Empty(t, resp.Error)

	f.provider.SignInSession = f.session()
	f.controller.Login(ctx, sid, handshake.Request{}, "jane@example.com", "pw")

	resp = f.controller.SilentAuth(ctx, sid, handshake.Request{ClientID: "http://localhost:3003"})
	require.NotNil(t, resp.Token)
	require.NotEmpty(t, resp.RefreshToken)
	require.NotEqual(t, "rt-1", resp.RefreshToken)
	require.Equal(t, "http://localhost:3003", mustDecode(t, *resp.Token).Audience)
}

func TestRefresh(t *testing.T) {
	f := newControllerFixture()
	ctx := context.Background()
	f.provider.SignInSession = f.session()
	out := f.controller.Login(ctx, sid, ssoRequest(), "jane@example.com", "pw")
	issued := fragmentOf(t, out.Redirect).Get("refresh_token")

	resp, err := f.controller.Refresh(ctx, issued, clientID)
	require.NoError(t, err)
	require.Equal(t, "Bearer", resp.TokenType)
	require.Equal(t, 3600, resp.ExpiresIn)
	require.NotEmpty(t, resp.RefreshToken)
	require.NotEqual(t, issued, resp.RefreshToken)
	claims := mustDecode(t, resp.AccessToken)
	require.Equal(t, clientID, claims.Audience)
	require.Equal(t, "user-1", claims.Subject)
	require.Equal(t, "Jane", claims.Name)
	require.Zero(t, f.provider.CallCount("RefreshSession"), "client refresh never spends the backend session")

	_, err = f.controller.Refresh(ctx, issued, clientID)
	require.True(t, backend.IsRejection(err), "a spent token is rejected: %v", err)

	_, err = f.controller.Refresh(ctx, resp.RefreshToken, "http://localhost:3003")
	require.True(t, backend.IsRejection(err), "token is bound to its client: %v", err)

	_, err = f.controller.Refresh(ctx, "", clientID)
	require.True(t, backend.IsRejection(err))
}

func TestRefresh_ClientsHoldIndependentTokens(t *testing.T) {
	now := time.Date(2025, 7, 29, 10, 0, 0, 0, time.UTC)
	nowFn := func() time.Time { return now }
	provider := local.New(userfake.NewFakeUserRepo(), refreshfake.NewFakeRefreshTokenRepo(), local.WithNowTime(nowFn))
	adapter := backend.NewAdapter(provider, loginsession.NewInMemoryRepo(), backend.WithNowTime(nowFn))
	controller := handshake.NewController(adapter, token.NewCodec(issuer, token.WithNowTime(nowFn)),
		session.NewPartitioned(storage.NewMemoryPartitions(), session.DefaultKeys()))
	ctx := context.Background()

	out := controller.Signup(ctx, sid, ssoRequest(), handshake.SignupForm{
		Email: "jane@example.com", Password: "Passw0rdX", PasswordConfirm: "Passw0rdX", Name: "Jane", AgreeTerms: true,
	})
	require.NotEmpty(t, out.Redirect, "%+v", out.Message)
	appA := fragmentOf(t, out.Redirect).Get("refresh_token")

	const appBID = "http://localhost:3003"
	silent := controller.SilentAuth(ctx, sid, handshake.Request{ClientID: appBID})
	require.NotNil(t, silent.Token)
	appB := silent.RefreshToken
	require.NotEqual(t, appA, appB)

	for range 2 {
		resp, err := controller.Refresh(ctx, appA, clientID)
		require.NoError(t, err)
		appA = resp.RefreshToken
	}

	resp, err := controller.Refresh(ctx, appB, appBID)
	require.NoError(t, err)
	require.Equal(t, appBID, mustDecode(t, resp.AccessToken).Audience)

	now = now.Add(61 * time.Minute)
	page := controller.PageLoad(ctx, sid, ssoRequest(), handshake.FormLogin)
	require.Nil(t, page.Message)
	require.True(t, strings.HasPrefix(page.Redirect, clientID+"/callback#access_token="), "browser session outlives client refreshes: %q", page.Redirect)
}

func TestLogout_RevokesClientRefreshTokens(t *testing.T) {
	f := newControllerFixture()
	ctx := context.Background()
	f.provider.SignInSession = f.session()
	out := f.controller.Login(ctx, sid, ssoRequest(), "jane@example.com", "pw")
	issued := fragmentOf(t, out.Redirect).Get("refresh_token")

	require.NoError(t, f.controller.Logout(ctx, sid))

	_, err := f.controller.Refresh(ctx, issued, clientID)
	require.True(t, backend.IsRejection(err), "%v", err)
}

func TestLogout(t *testing.T) {
	f := newControllerFixture()
	ctx := context.Background()
	f.provider.SignInSession = f.session()
	f.controller.Login(ctx, sid, handshake.Request{}, "jane@example.com", "pw")

	f.provider.SignOutErr = errors.New("backend down")
	require.NoError(t, f.controller.Logout(ctx, sid))
	require.Equal(t, "backend-at", f.provider.LastAccessToken)

	summary, err := f.controller.Summary(ctx, sid)
	require.NoError(t, err)
	require.Nil(t, summary)
	require.Nil(t, f.controller.SilentAuth(ctx, sid, handshake.Request{}).Token)

	require.NoError(t, f.controller.Logout(ctx, sid))
}

func mustDecode(t *testing.T, raw string) *token.Claims {
	t.Helper()
	claims, err := token.Decode(raw)
	require.NoError(t, err)
	return claims
}
