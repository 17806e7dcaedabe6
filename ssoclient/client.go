package ssoclient

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"

	ierrors "github.com/jrsteele09/go-sso/internal/errors"
	"github.com/jrsteele09/go-sso/messaging"
	"github.com/jrsteele09/go-sso/session"
	"github.com/jrsteele09/go-sso/ssoapi"
	"github.com/jrsteele09/go-sso/token"
)

var (
	ErrNoToken              = ierrors.ErrNoToken
	ErrAuthenticationFailed = ierrors.ErrAuthenticationFailed
)

// DefaultSilentAuthTimeout bounds how long CheckSilentAuth waits for the frame to answer
const DefaultSilentAuthTimeout = 5 * time.Second

// Config is the shared SSO configuration as seen by one client application.
type Config struct {
	// AuthServerURL is the base URL of the auth server, e.g. "http://localhost:3001".
	AuthServerURL string

	// ClientID is the origin of this application. Defaults to the origin of the page.
	ClientID string

	// Keys names the storage slots. Empty names get the defaults.
	Keys session.Keys

	// AllowedOrigins gates OnMessage handlers.
	AllowedOrigins []string

	// SilentAuthTimeout defaults to DefaultSilentAuthTimeout.
	SilentAuthTimeout time.Duration
}

// UserInfo is the user as described by the stored token
type UserInfo struct {
	ID       string         `json:"id"`
	Email    string         `json:"email"`
	Name     string         `json:"name"`
	Role     string         `json:"role"`
	Metadata map[string]any `json:"metadata"`
}

func userInfoFromClaims(c *token.Claims) *UserInfo {
	return &UserInfo{
		ID:       c.Subject,
		Email:    c.Email,
		Name:     c.Name,
		Role:     c.Role,
		Metadata: c.UserMetadata,
	}
}

type Client struct {
	cfg        Config
	authURL    string
	authOrigin string
	host       Host
	store      *session.Store
	dispatcher *messaging.Dispatcher
	detach     func()

	httpClient *http.Client
	verifier   Verifier
	logger     zerolog.Logger
	nowTime    func() time.Time
	after      func(time.Duration) <-chan time.Time
	refreshes  singleflight.Group
}

type Option func(*Client)

func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.httpClient = client
	}
}

// WithVerifier makes the client check token signatures before trusting a token
func WithVerifier(v Verifier) Option {
	return func(c *Client) {
		c.verifier = v
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(now func() time.Time) Option {
	return func(c *Client) {
		c.nowTime = now
	}
}

// WithAfterFunc replaces time.After for the silent-auth timeout (primarily for testing)
func WithAfterFunc(after func(time.Duration) <-chan time.Time) Option {
	return func(c *Client) {
		c.after = after
	}
}

// New builds a client and starts listening for messages on the host bus. Call Close to stop.
func New(cfg Config, host Host, opts ...Option) (*Client, error) {
	if err := host.validate(); err != nil {
		return nil, err
	}
	authURL, err := url.Parse(strings.TrimRight(cfg.AuthServerURL, "/"))
	if err != nil || authURL.Scheme == "" || authURL.Host == "" {
		return nil, errors.Errorf("invalid auth server url %q", cfg.AuthServerURL)
	}
	if cfg.ClientID == "" {
		cfg.ClientID = originOf(host.Browser.Location())
	}
	if cfg.SilentAuthTimeout <= 0 {
		cfg.SilentAuthTimeout = DefaultSilentAuthTimeout
	}

	c := &Client{
		cfg:        cfg,
		authURL:    authURL.String(),
		authOrigin: originOf(authURL),
		host:       host,
		store:      session.New(host.Durable, host.Ephemeral, cfg.Keys),
		httpClient: http.DefaultClient,
		logger:     log.Logger,
		nowTime:    time.Now,
		after:      time.After,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.dispatcher = messaging.NewDispatcher(cfg.AllowedOrigins, c.logger)
	c.detach = c.dispatcher.Attach(host.Bus)
	return c, nil
}

// Close stops message dispatch
func (c *Client) Close() {
	c.detach()
}

// Store is the session store the client reads and writes
func (c *Client) Store() *session.Store {
	return c.store
}

func (c *Client) ClientID() string {
	return c.cfg.ClientID
}

// OnMessage registers handler for messages of msgType from allowed origins.
func (c *Client) OnMessage(msgType string, handler messaging.Handler) {
	c.dispatcher.On(msgType, handler)
}

func (c *Client) claims(ctx context.Context) (*token.Claims, error) {
	raw, ok, err := c.store.Token(ctx)
	if err != nil {
		return nil, err
	}
	if !ok || raw == "" {
		return nil, ErrNoToken
	}
	claims, err := token.Decode(raw)
	if err != nil {
		return nil, err
	}
	if c.verifier != nil {
		if err := c.verifier.Verify(ctx, raw); err != nil {
			return nil, err
		}
	}
	return claims, nil
}

// IsAuthenticated reports whether a usable token is stored. An expired token is refreshed.
func (c *Client) IsAuthenticated(ctx context.Context) bool {
	claims, err := c.claims(ctx)
	if errors.Is(err, ErrNoToken) {
		return false
	}
	if err != nil {
		c.logger.Error().Err(err).Msg("token validation error")
		return false
	}
	if token.IsExpired(claims, c.nowTime()) {
		return c.RefreshToken(ctx)
	}
	return true
}

// UserInfo describes the user of the stored token, or nil when there is no readable token.
func (c *Client) UserInfo(ctx context.Context) *UserInfo {
	claims, err := c.claims(ctx)
	if err != nil {
		if !errors.Is(err, ErrNoToken) {
			c.logger.Error().Err(err).Msg("error parsing user info")
		}
		return nil
	}
	return userInfoFromClaims(claims)
}

// LoginURL is the auth server login page for a return to returnURL
func (c *Client) LoginURL(returnURL string) string {
	params := url.Values{
		ssoapi.ParamClientID:     {c.cfg.ClientID},
		ssoapi.ParamRedirectURI:  {returnURL},
		ssoapi.ParamResponseType: {ssoapi.ResponseTypeToken},
		ssoapi.ParamScope:        {ssoapi.DefaultScope},
	}
	return c.authURL + ssoapi.RouteLogin + "?" + params.Encode()
}

// Login sends the browser to the auth server. An empty returnURL returns to the current page.
func (c *Client) Login(returnURL string) {
	if returnURL == "" {
		returnURL = c.host.Browser.Location().String()
	}
	c.host.Browser.Navigate(c.LoginURL(returnURL))
}

// Logout clears local state, tells the auth server (ignoring failures) and navigates to its
// logout page, which returns to this application.
func (c *Client) Logout(ctx context.Context) error {
	clearErr := c.store.Clear(ctx)
	if clearErr != nil {
		c.logger.Error().Err(clearErr).Msg("failed to clear session store")
	}

	if err := c.postJSON(ctx, ssoapi.RouteAPILogout, ssoapi.LogoutRequest{ClientID: c.cfg.ClientID}, nil); err != nil {
		c.logger.Error().Err(err).Msg("logout error")
	}

	c.host.Browser.Navigate(c.authURL + ssoapi.RouteLogout + "?" + ssoapi.ParamRedirectURI + "=" + url.QueryEscape(c.cfg.ClientID))
	return clearErr
}

// HandleCallback stores the token delivered in the URL fragment and strips the fragment
// from the visible URL.
func (c *Client) HandleCallback(ctx context.Context) bool {
	loc := c.host.Browser.Location()
	params, err := url.ParseQuery(loc.EscapedFragment())
	if err != nil {
		c.logger.Error().Err(err).Msg("malformed callback fragment")
		return false
	}
	if e := params.Get(ssoapi.FragmentError); e != "" {
		c.logger.Error().Str("error", e).Msg("authentication error")
		return false
	}

	accessToken := params.Get(ssoapi.FragmentAccessToken)
	if accessToken == "" {
		return false
	}
	if err := c.store.SetToken(ctx, accessToken); err != nil {
		c.logger.Error().Err(err).Msg("failed to store token")
		return false
	}
	if rt := params.Get(ssoapi.FragmentRefreshToken); rt != "" {
		if err := c.store.SetRefreshToken(ctx, rt); err != nil {
			c.logger.Error().Err(err).Msg("failed to store refresh token")
		}
	}

	path := loc.EscapedPath()
	if path == "" {
		path = "/"
	}
	c.host.Browser.ReplaceURL(path)
	return true
}

// ProtectRoute authenticates the page: first the callback fragment, then the stored token,
// then silent auth. onSuccess gets the user. Without onFailure a failure starts a login.
func (c *Client) ProtectRoute(ctx context.Context, onSuccess func(*UserInfo), onFailure func()) {
	succeed := func() {
		if onSuccess != nil {
			onSuccess(c.UserInfo(ctx))
		}
	}

	if strings.Contains(c.host.Browser.Location().EscapedFragment(), ssoapi.FragmentAccessToken) && c.HandleCallback(ctx) {
		succeed()
		return
	}
	if c.IsAuthenticated(ctx) {
		succeed()
		return
	}
	if c.CheckSilentAuth(ctx) {
		succeed()
		return
	}

	if onFailure != nil {
		onFailure()
		return
	}
	c.Login("")
}

func originOf(u *url.URL) string {
	if u == nil || u.Scheme == "" {
		return ""
	}
	return u.Scheme + "://" + u.Host
}
