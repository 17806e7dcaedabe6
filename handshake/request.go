package handshake

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/jrsteele09/go-sso/ssoapi"
	"github.com/jrsteele09/go-sso/token"
)

// Request holds the SSO parameters a client application sent to the login page.
type Request struct {
	// ClientID is the origin of the requesting application and becomes the token audience.
	// Example: "http://localhost:3002"
	ClientID string

	// RedirectURI is where the token is delivered. Empty for a direct visit to the login page.
	// Example: "http://localhost:3002/callback"
	RedirectURI string

	// ResponseType defaults to "token", the only type that delivers a token in the fragment.
	ResponseType string

	// Scope defaults to "openid profile email". It is carried, not enforced.
	Scope string

	// State is echoed back untouched in the redirect fragment.
	State string
}

// ParseRequest reads the SSO parameters from a query, applying defaults.
func ParseRequest(q url.Values) Request {
	r := Request{
		ClientID:     q.Get(ssoapi.ParamClientID),
		RedirectURI:  q.Get(ssoapi.ParamRedirectURI),
		ResponseType: q.Get(ssoapi.ParamResponseType),
		Scope:        q.Get(ssoapi.ParamScope),
		State:        q.Get(ssoapi.ParamState),
	}
	if r.ResponseType == "" {
		r.ResponseType = ssoapi.ResponseTypeToken
	}
	if r.Scope == "" {
		r.Scope = ssoapi.DefaultScope
	}
	return r
}

// IsSSO reports whether a client application is waiting for a redirect.
func (r Request) IsSSO() bool {
	return r.RedirectURI != ""
}

// Query is the inverse of ParseRequest, used to carry the request across form posts.
func (r Request) Query() url.Values {
	q := url.Values{}
	set := func(k, v string) {
		if v != "" {
			q.Set(k, v)
		}
	}
	set(ssoapi.ParamClientID, r.ClientID)
	set(ssoapi.ParamRedirectURI, r.RedirectURI)
	set(ssoapi.ParamResponseType, r.ResponseType)
	set(ssoapi.ParamScope, r.Scope)
	set(ssoapi.ParamState, r.State)
	return q
}

// RedirectURL builds the URL the browser is sent to once it holds accessToken.
// For response_type=token the fragment is
// access_token=..&token_type=Bearer&expires_in=3600[&refresh_token=..][&state=..],
// replacing any fragment the redirect_uri already had. Values are query escaped.
// Other response types get the redirect_uri back unchanged.
func (r Request) RedirectURL(accessToken, refreshToken string) (string, error) {
	u, err := url.Parse(r.RedirectURI)
	if err != nil {
		return "", errors.Wrap(err, "invalid redirect_uri")
	}
	if !u.IsAbs() || u.Host == "" {
		return "", errors.Errorf("invalid redirect_uri %q: not an absolute URL", r.RedirectURI)
	}
	if r.ResponseType != ssoapi.ResponseTypeToken {
		return u.String(), nil
	}
	u.Fragment = ""
	u.RawFragment = ""

	params := [][2]string{
		{ssoapi.FragmentAccessToken, accessToken},
		{ssoapi.FragmentTokenType, ssoapi.TokenTypeBearer},
		{ssoapi.FragmentExpiresIn, strconv.Itoa(int(token.Lifetime.Seconds()))},
	}
	if refreshToken != "" {
		params = append(params, [2]string{ssoapi.FragmentRefreshToken, refreshToken})
	}
	if r.State != "" {
		params = append(params, [2]string{ssoapi.FragmentState, r.State})
	}

	parts := make([]string, 0, len(params))
	for _, p := range params {
		parts = append(parts, p[0]+"="+url.QueryEscape(p[1]))
	}
	return u.String() + "#" + strings.Join(parts, "&"), nil
}
