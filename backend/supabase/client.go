// Package supabase talks to a hosted Supabase project through its GoTrue REST API.
package supabase

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/jrsteele09/go-sso/backend"
	ierrors "github.com/jrsteele09/go-sso/internal/errors"
)

const (
	authPath       = "/auth/v1"
	defaultTimeout = 10 * time.Second
	maxErrorBody   = 64 << 10
)

var _ backend.Provider = (*Client)(nil)

// Client is a GoTrue client authenticated with the project's anon key.
type Client struct {
	baseURL    string
	anonKey    string
	httpClient *http.Client
	nowTime    func() time.Time
}

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		cl.httpClient = c
	}
}

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(now func() time.Time) Option {
	return func(cl *Client) {
		cl.nowTime = now
	}
}

// New returns a client for the project at projectURL (e.g. https://xyz.supabase.co).
func New(projectURL, anonKey string, options ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(projectURL, "/") + authPath,
		anonKey:    anonKey,
		httpClient: &http.Client{Timeout: defaultTimeout},
		nowTime:    time.Now,
	}
	for _, opt := range options {
		opt(c)
	}
	return c
}

type userResponse struct {
	ID           string         `json:"id"`
	Email        string         `json:"email"`
	Role         string         `json:"role"`
	UserMetadata map[string]any `json:"user_metadata"`
}

type sessionResponse struct {
	AccessToken  string        `json:"access_token"`
	TokenType    string        `json:"token_type"`
	ExpiresIn    int64         `json:"expires_in"`
	ExpiresAt    int64         `json:"expires_at"`
	RefreshToken string        `json:"refresh_token"`
	User         *userResponse `json:"user"`

	// signup without autoconfirm answers with the bare user
	userResponse
}

type errorResponse struct {
	ErrorCode        string `json:"error_code"`
	Msg              string `json:"msg"`
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
	Message          string `json:"message"`
}

func (c *Client) SignInWithPassword(ctx context.Context, email, password string) (*backend.Session, error) {
	var resp sessionResponse
	body := map[string]string{"email": email, "password": password}
	if err := c.do(ctx, http.MethodPost, "/token?grant_type=password", "", body, &resp); err != nil {
		return nil, err
	}
	return c.toSession(&resp)
}

func (c *Client) SignUp(ctx context.Context, email, password string, metadata map[string]any) (*backend.SignUpResult, error) {
	var resp sessionResponse
	body := map[string]any{"email": email, "password": password, "data": metadata}
	if err := c.do(ctx, http.MethodPost, "/signup", "", body, &resp); err != nil {
		return nil, err
	}

	if resp.AccessToken == "" {
		user := toUser(&resp.userResponse)
		return &backend.SignUpResult{User: &user}, nil
	}
	session, err := c.toSession(&resp)
	if err != nil {
		return nil, err
	}
	return &backend.SignUpResult{User: &session.User, Session: session}, nil
}

func (c *Client) ResetPasswordForEmail(ctx context.Context, email, redirectTo string) error {
	path := "/recover"
	if redirectTo != "" {
		path += "?redirect_to=" + url.QueryEscape(redirectTo)
	}
	return c.do(ctx, http.MethodPost, path, "", map[string]string{"email": email}, nil)
}

func (c *Client) RefreshSession(ctx context.Context, refreshToken string) (*backend.Session, error) {
	var resp sessionResponse
	body := map[string]string{"refresh_token": refreshToken}
	if err := c.do(ctx, http.MethodPost, "/token?grant_type=refresh_token", "", body, &resp); err != nil {
		return nil, err
	}
	return c.toSession(&resp)
}

func (c *Client) SignOut(ctx context.Context, accessToken string) error {
	if accessToken == "" {
		return nil
	}
	return c.do(ctx, http.MethodPost, "/logout", accessToken, nil, nil)
}

func (c *Client) do(ctx context.Context, method, path, bearer string, in, out any) error {
	var reader io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode %s request: %w", path, err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build %s request: %w", path, err)
	}
	if bearer == "" {
		bearer = c.anonKey
	}
	req.Header.Set("apikey", c.anonKey)
	req.Header.Set("Authorization", "Bearer "+bearer)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &backend.AuthError{Code: "network_error", Message: err.Error(), Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return decodeError(resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	var body errorResponse
	_ = json.Unmarshal(raw, &body)

	code := firstNonEmpty(body.ErrorCode, body.Error)
	msg := firstNonEmpty(body.Msg, body.ErrorDescription, body.Message, strings.TrimSpace(string(raw)), resp.Status)
	return &backend.AuthError{
		Status:  resp.StatusCode,
		Code:    code,
		Message: msg,
		Err:     sentinelFor(code, resp.StatusCode),
	}
}

func sentinelFor(code string, status int) error {
	switch code {
	case "invalid_credentials", "invalid_grant":
		return ierrors.ErrInvalidCredentials
	case "user_already_exists", "email_exists":
		return ierrors.ErrUserExists
	case "weak_password":
		return ierrors.ErrWeakPassword
	case "email_not_confirmed":
		return ierrors.ErrUserNotConfirmed
	case "user_not_found":
		return ierrors.ErrUserNotFound
	case "refresh_token_not_found", "refresh_token_already_used":
		return ierrors.ErrInvalidRefreshToken
	case "over_request_rate_limit", "over_email_send_rate_limit":
		return ierrors.ErrRateLimited
	}
	if status == http.StatusTooManyRequests {
		return ierrors.ErrRateLimited
	}
	return nil
}

func (c *Client) toSession(resp *sessionResponse) (*backend.Session, error) {
	if resp.AccessToken == "" || resp.User == nil {
		return nil, &backend.AuthError{Code: "invalid_response", Message: "identity provider returned no session"}
	}
	expiresAt := resp.ExpiresAt
	if expiresAt == 0 && resp.ExpiresIn > 0 {
		expiresAt = c.nowTime().Unix() + resp.ExpiresIn
	}
	return &backend.Session{
		AccessToken:  resp.AccessToken,
		RefreshToken: resp.RefreshToken,
		ExpiresAt:    expiresAt,
		User:         toUser(resp.User),
	}, nil
}

func toUser(u *userResponse) backend.User {
	return backend.User{
		ID:       u.ID,
		Email:    u.Email,
		Role:     u.Role,
		Metadata: u.UserMetadata,
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
