package ssoclient_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jrsteele09/go-sso/ssoapi"
	"github.com/jrsteele09/go-sso/ssoclient"
	"github.com/jrsteele09/go-sso/token"
)

// newKeyServer publishes a discovery document and, when signer has keys, its JWKS.
func newKeyServer(t *testing.T, signer token.Signer) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	mux.HandleFunc("GET "+ssoapi.RouteDiscovery, func(w http.ResponseWriter, r *http.Request) {
		d := ssoapi.Discovery{
			Issuer:                 srv.URL,
			AuthorizationEndpoint:  srv.URL + ssoapi.RouteLogin,
			TokenEndpoint:          srv.URL + ssoapi.RouteAPIRefresh,
			ResponseTypesSupported: []string{ssoapi.ResponseTypeToken},
			IDTokenSigningAlgs:     []string{signer.Algorithm()},
		}
		if _, ok := signer.(token.KeySetProvider); ok {
			d.JWKSURI = srv.URL + ssoapi.RouteJWKS
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(d)
	})
	mux.HandleFunc("GET "+ssoapi.RouteJWKS, func(w http.ResponseWriter, r *http.Request) {
		ks, ok := signer.(token.KeySetProvider)
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(ks.JWKS())
	})
	return srv
}

func newRSASigner(t *testing.T, keyID string) *token.KeyPairSigner {
	t.Helper()
	kp, err := token.GenerateRSAKeyPair(keyID, 2048)
	require.NoError(t, err)
	return token.NewKeyPairSigner(kp)
}

func TestDiscoverVerifier_RS256(t *testing.T) {
	signer := newRSASigner(t, "key-1")
	srv := newKeyServer(t, signer)
	ctx := context.Background()

	d, err := ssoclient.Discover(ctx, srv.URL)
	require.NoError(t, err)
	require.Equal(t, srv.URL, d.Issuer)
	require.Equal(t, srv.URL+ssoapi.RouteJWKS, d.JWKSURI)

	v, err := ssoclient.DiscoverVerifier(ctx, srv.URL)
	require.NoError(t, err)
	require.NotNil(t, v)

	codec := token.NewCodec(srv.URL, token.WithSigner(signer))
	good, err := codec.Encode(token.Identity{ID: "user-1", Email: "a@example.com"}, appOrigin)
	require.NoError(t, err)
	require.NoError(t, v.Verify(ctx, good))

	other := token.NewCodec(srv.URL, token.WithSigner(newRSASigner(t, "key-1")))
	forged, err := other.Encode(token.Identity{ID: "user-1", Email: "a@example.com"}, appOrigin)
	require.NoError(t, err)
	require.Error(t, v.Verify(ctx, forged))
}

func TestDiscoverVerifier_PlaceholderHasNoKeys(t *testing.T) {
	srv := newKeyServer(t, token.NewPlaceholderSigner())

	v, err := ssoclient.DiscoverVerifier(context.Background(), srv.URL)
	require.NoError(t, err)
	require.Nil(t, v)
}

func TestClientWithVerifier_RejectsForgedToken(t *testing.T) {
	signer := token.NewHMACSigner("shared-secret")
	f := newClientFixture(t, ssoclient.WithVerifier(ssoclient.SignerVerifier(signer)))

	// the fixture codec uses the placeholder signer
	f.storeToken(t, f.mint(t, "mallory"))
	require.False(t, f.client.IsAuthenticated(context.Background()))

	codec := token.NewCodec(f.auth.URL, token.WithSigner(signer), token.WithNowTime(func() time.Time { return f.now }))
	good, err := codec.Encode(token.Identity{ID: "user-1", Email: "a@example.com"}, appOrigin)
	require.NoError(t, err)
	f.storeToken(t, good)
	require.True(t, f.client.IsAuthenticated(context.Background()))
}
