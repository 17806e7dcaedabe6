package ssoclient

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/oauth2"

	"github.com/jrsteele09/go-sso/ssoapi"
	"github.com/jrsteele09/go-sso/token"
)

// refreshTimeout bounds the shared refresh request, which outlives any single caller's context
const refreshTimeout = 30 * time.Second

// RefreshToken exchanges the stored refresh token for a new access token. Without a
// stored refresh token it returns false at once. Concurrent calls share one request;
// a caller whose ctx ends returns false without cancelling it for the others.
func (c *Client) RefreshToken(ctx context.Context) bool {
	ch := c.refreshes.DoChan("refresh", func() (any, error) {
		shared, cancel := context.WithTimeout(context.WithoutCancel(ctx), refreshTimeout)
		defer cancel()
		return c.refresh(shared), nil
	})
	select {
	case res := <-ch:
		return res.Val.(bool)
	case <-ctx.Done():
		return false
	}
}

func (c *Client) refresh(ctx context.Context) bool {
	rt, ok, err := c.store.RefreshToken(ctx)
	if err != nil {
		c.logger.Error().Err(err).Msg("failed to read refresh token")
		return false
	}
	if !ok || rt == "" {
		return false
	}

	var resp ssoapi.RefreshResponse
	if err := c.postJSON(ctx, ssoapi.RouteAPIRefresh, ssoapi.RefreshRequest{RefreshToken: rt, ClientID: c.cfg.ClientID}, &resp); err != nil {
		c.logger.Error().Err(err).Msg("token refresh error")
		return false
	}
	if resp.AccessToken == "" {
		return false
	}

	if err := c.store.SetToken(ctx, resp.AccessToken); err != nil {
		c.logger.Error().Err(err).Msg("failed to store refreshed token")
		return false
	}
	if resp.RefreshToken != "" {
		if err := c.store.SetRefreshToken(ctx, resp.RefreshToken); err != nil {
			c.logger.Error().Err(err).Msg("failed to store rotated refresh token")
		}
	}
	return true
}

// postJSON posts body to path on the auth server and decodes a 2xx answer into out when set.
func (c *Client) postJSON(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return errors.Wrap(err, "encode request")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.authURL+path, bytes.NewReader(payload))
	if err != nil {
		return errors.Wrap(err, "build request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrapf(err, "POST %s", path)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return errors.Errorf("POST %s: unexpected status %d", path, resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	return errors.Wrap(json.NewDecoder(resp.Body).Decode(out), "decode response")
}

// AuthenticatedFetch sends req with the stored bearer token and a JSON content type.
// On 401 it refreshes the token and retries once. When the refresh fails it starts a login
// and returns ErrAuthenticationFailed. Any other response is returned as is.
func (c *Client) AuthenticatedFetch(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	accessToken, ok, err := c.store.Token(ctx)
	if err != nil {
		return nil, err
	}
	if !ok || accessToken == "" {
		return nil, ErrNoToken
	}
	if err := rewindable(req); err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(withBearer(req, accessToken))
	if err != nil || resp.StatusCode != http.StatusUnauthorized {
		return resp, err
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()

	if !c.RefreshToken(ctx) {
		c.Login("")
		return nil, ErrAuthenticationFailed
	}
	accessToken, _, err = c.store.Token(ctx)
	if err != nil {
		return nil, err
	}

	retry := withBearer(req, accessToken)
	if req.GetBody != nil {
		if retry.Body, err = req.GetBody(); err != nil {
			return nil, errors.Wrap(err, "rewind request body")
		}
	}
	return c.httpClient.Do(retry)
}

// rewindable makes sure the body of req can be sent twice
func rewindable(req *http.Request) error {
	if req.Body == nil || req.Body == http.NoBody || req.GetBody != nil {
		return nil
	}
	data, err := io.ReadAll(req.Body)
	req.Body.Close()
	if err != nil {
		return errors.Wrap(err, "read request body")
	}
	req.Body = io.NopCloser(bytes.NewReader(data))
	req.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(data)), nil
	}
	return nil
}

func withBearer(req *http.Request, accessToken string) *http.Request {
	r := req.Clone(req.Context())
	r.Header.Set("Authorization", "Bearer "+accessToken)
	r.Header.Set("Content-Type", "application/json")
	return r
}

// TokenSource exposes the stored token as an oauth2.TokenSource, refreshing it when expired.
func (c *Client) TokenSource(ctx context.Context) oauth2.TokenSource {
	return &tokenSource{ctx: ctx, client: c}
}

// HTTPClient returns an http.Client that adds the bearer token to every request
func (c *Client) HTTPClient(ctx context.Context) *http.Client {
	return oauth2.NewClient(context.WithValue(ctx, oauth2.HTTPClient, c.httpClient), c.TokenSource(ctx))
}

type tokenSource struct {
	ctx    context.Context
	client *Client
}

func (ts *tokenSource) Token() (*oauth2.Token, error) {
	c := ts.client
	claims, err := c.claims(ts.ctx)
	if err != nil {
		return nil, err
	}
	if token.IsExpired(claims, c.nowTime()) {
		if !c.RefreshToken(ts.ctx) {
			return nil, ErrAuthenticationFailed
		}
		if claims, err = c.claims(ts.ctx); err != nil {
			return nil, err
		}
	}

	raw, _, err := c.store.Token(ts.ctx)
	if err != nil {
		return nil, err
	}
	rt, _, _ := c.store.RefreshToken(ts.ctx)
	t := &oauth2.Token{
		AccessToken:  raw,
		TokenType:    ssoapi.TokenTypeBearer,
		RefreshToken: rt,
	}
	if claims.ExpiresAt != 0 {
		t.Expiry = time.Unix(claims.ExpiresAt, 0)
	}
	return t, nil
}
