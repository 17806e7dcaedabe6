package ssoclient

import (
	"context"
	"strings"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/pkg/errors"

	ierrors "github.com/jrsteele09/go-sso/internal/errors"
	"github.com/jrsteele09/go-sso/ssoapi"
	"github.com/jrsteele09/go-sso/token"
)

// Verifier checks the signature of a raw token
type Verifier interface {
	Verify(ctx context.Context, raw string) error
}

// VerifierFunc adapts a function to Verifier
type VerifierFunc func(ctx context.Context, raw string) error

func (f VerifierFunc) Verify(ctx context.Context, raw string) error {
	return f(ctx, raw)
}

// SignerVerifier verifies with a token.Signer that holds the key, e.g. a shared HMAC secret
func SignerVerifier(s token.Signer) Verifier {
	return VerifierFunc(func(_ context.Context, raw string) error {
		return s.Verify(raw)
	})
}

// NewRemoteVerifier verifies against the JSON Web Key Set published at jwksURL.
// Keys are fetched lazily and refetched when a token names an unknown key.
func NewRemoteVerifier(ctx context.Context, jwksURL string) Verifier {
	keySet := oidc.NewRemoteKeySet(ctx, jwksURL)
	return VerifierFunc(func(ctx context.Context, raw string) error {
		if _, err := keySet.VerifySignature(ctx, raw); err != nil {
			return ierrors.Wrapf(ierrors.ErrInvalidSignature, "%v", err)
		}
		return nil
	})
}

// Discover reads the auth server discovery document. The document's issuer must equal
// authServerURL.
func Discover(ctx context.Context, authServerURL string) (*ssoapi.Discovery, error) {
	provider, err := oidc.NewProvider(ctx, strings.TrimRight(authServerURL, "/"))
	if err != nil {
		return nil, errors.Wrap(err, "failed to discover auth server")
	}
	var d ssoapi.Discovery
	if err := provider.Claims(&d); err != nil {
		return nil, errors.Wrap(err, "failed to decode discovery document")
	}
	return &d, nil
}

// DiscoverVerifier returns a remote verifier when the auth server publishes signing keys,
// or nil when its tokens can't be verified by clients.
func DiscoverVerifier(ctx context.Context, authServerURL string) (Verifier, error) {
	d, err := Discover(ctx, authServerURL)
	if err != nil {
		return nil, err
	}
	for _, alg := range d.IDTokenSigningAlgs {
		if alg == token.RS256 && d.JWKSURI != "" {
			return NewRemoteVerifier(ctx, d.JWKSURI), nil
		}
	}
	return nil, nil
}
