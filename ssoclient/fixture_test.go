package ssoclient_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/jrsteele09/go-sso/messaging"
	"github.com/jrsteele09/go-sso/session"
	"github.com/jrsteele09/go-sso/ssoapi"
	"github.com/jrsteele09/go-sso/ssoclient"
	"github.com/jrsteele09/go-sso/ssoclient/hostfake"
	"github.com/jrsteele09/go-sso/storage"
	"github.com/jrsteele09/go-sso/token"
)

const (
	appOrigin = "http://localhost:3002"
	appPage   = appOrigin + "/app"
)

// authServerFake answers the auth server API endpoints
type authServerFake struct {
	*httptest.Server

	mu            sync.Mutex
	refreshCalls  int
	lastRefresh   ssoapi.RefreshRequest
	refreshStatus int
	refreshResp   ssoapi.RefreshResponse
	refreshGate   chan struct{}
	refreshSeen   chan struct{}
	logouts       []ssoapi.LogoutRequest
	silentResp    ssoapi.SilentAuthResponse
}

func newAuthServerFake(t *testing.T) *authServerFake {
	f := &authServerFake{refreshStatus: http.StatusOK}
	mux := http.NewServeMux()
	mux.HandleFunc("POST "+ssoapi.RouteAPIRefresh, func(w http.ResponseWriter, r *http.Request) {
		var req ssoapi.RefreshRequest
		_ = json.NewDecoder(r.Body).Decode(&req)

		f.mu.Lock()
		f.refreshCalls++
		f.lastRefresh = req
		status, resp, gate, seen := f.refreshStatus, f.refreshResp, f.refreshGate, f.refreshSeen
		f.mu.Unlock()

		if seen != nil {
			seen <- struct{}{}
		}
		if gate != nil {
			<-gate
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(resp)
	})
	mux.HandleFunc("POST "+ssoapi.RouteAPILogout, func(w http.ResponseWriter, r *http.Request) {
		var req ssoapi.LogoutRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		f.mu.Lock()
		f.logouts = append(f.logouts, req)
		f.mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("GET "+ssoapi.RouteSilentAuth, func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		resp := f.silentResp
		f.mu.Unlock()
		resp.Type = ssoapi.MessageTypeSilentAuthResponse
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	})
	f.Server = httptest.NewServer(mux)
	t.Cleanup(f.Close)
	return f
}

func (f *authServerFake) RefreshCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.refreshCalls
}

type clientFixture struct {
	now       time.Time
	auth      *authServerFake
	browser   *ssoclient.URLBrowser
	frames    *hostfake.FakeFrames
	bus       *messaging.LocalBus
	durable   *storage.Memory
	ephemeral *storage.Memory
	timeouts  chan time.Time
	waited    []time.Duration
	codec     *token.Codec
	client    *ssoclient.Client
}

func newClientFixture(t *testing.T, opts ...ssoclient.Option) *clientFixture {
	return newClientFixtureAt(t, appPage, opts...)
}

func newClientFixtureAt(t *testing.T, page string, opts ...ssoclient.Option) *clientFixture {
	t.Helper()
	f := &clientFixture{
		now:       time.Date(2025, 7, 29, 10, 0, 0, 0, time.UTC),
		auth:      newAuthServerFake(t),
		frames:    hostfake.NewFakeFrames(),
		bus:       messaging.NewLocalBus(),
		durable:   storage.NewMemory(),
		ephemeral: storage.NewMemory(),
		timeouts:  make(chan time.Time, 1),
	}
	var err error
	f.browser, err = ssoclient.NewURLBrowser(page)
	require.NoError(t, err)
	f.codec = token.NewCodec(f.auth.URL, token.WithNowTime(func() time.Time { return f.now }))

	opts = append([]ssoclient.Option{
		ssoclient.WithHTTPClient(f.auth.Client()),
		ssoclient.WithLogger(zerolog.Nop()),
		ssoclient.WithNowTime(func() time.Time { return f.now }),
		ssoclient.WithAfterFunc(func(d time.Duration) <-chan time.Time {
			f.waited = append(f.waited, d)
			return f.timeouts
		}),
	}, opts...)

	f.client, err = ssoclient.New(ssoclient.Config{
		AuthServerURL:  f.auth.URL,
		Keys:           session.DefaultKeys(),
		AllowedOrigins: []string{f.auth.URL, "http://localhost:3003"},
	}, ssoclient.Host{
		Browser:   f.browser,
		Frames:    f.frames,
		Bus:       f.bus,
		Durable:   f.durable,
		Ephemeral: f.ephemeral,
	}, opts...)
	require.NoError(t, err)
	t.Cleanup(f.client.Close)
	return f
}

func (f *authServerFake) LastRefresh() ssoapi.RefreshRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastRefresh
}

func (f *authServerFake) Logouts() []ssoapi.LogoutRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]ssoapi.LogoutRequest(nil), f.logouts...)
}

func (f *clientFixture) mint(t *testing.T, id string) string {
	t.Helper()
	raw, err := f.codec.Encode(token.Identity{ID: id, Email: id + "@example.com", Metadata: map[string]any{"name": "Jane"}}, appOrigin)
	require.NoError(t, err)
	return raw
}

func (f *clientFixture) storeToken(t *testing.T, raw string) {
	t.Helper()
	require.NoError(t, f.client.Store().SetToken(context.Background(), raw))
}

func (f *clientFixture) storeRefreshToken(t *testing.T, rt string) {
	t.Helper()
	require.NoError(t, f.client.Store().SetRefreshToken(context.Background(), rt))
}

func (f *clientFixture) storedToken(t *testing.T) string {
	t.Helper()
	raw, _, err := f.client.Store().Token(context.Background())
	require.NoError(t, err)
	return raw
}

// respondSilently makes the hidden frame answer from origin
func (f *clientFixture) respondSilently(origin string, tok *string, refreshToken string) {
	f.frames.OnLoad = hostfake.RespondWith(f.bus, origin, ssoapi.SilentAuthResponse{Token: tok, RefreshToken: refreshToken})
}

func envelopeEvent(t *testing.T, origin, msgType string, data any) messaging.Event {
	t.Helper()
	ev, err := messaging.NewEvent(origin, ssoapi.Envelope{Type: msgType, Data: data})
	require.NoError(t, err)
	return ev
}
