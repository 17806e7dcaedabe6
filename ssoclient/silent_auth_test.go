package ssoclient_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jrsteele09/go-sso/internal/utils"
	"github.com/jrsteele09/go-sso/ssoapi"
	"github.com/jrsteele09/go-sso/ssoclient"
)

func TestCheckSilentAuth_Success(t *testing.T) {
	f := newClientFixture(t)
	ctx := context.Background()
	tok := f.mint(t, "user-1")
	f.respondSilently(f.auth.URL, &tok, "rt-1")

	require.True(t, f.client.CheckSilentAuth(ctx))

	require.Equal(t, tok, f.storedToken(t))
	rt, _, _ := f.client.Store().RefreshToken(ctx)
	require.Equal(t, "rt-1", rt)

	frames := f.frames.Frames()
	require.Len(t, frames, 1)
	require.Equal(t, f.auth.URL+"/silent-auth?client_id=http%3A%2F%2Flocalhost%3A3002", frames[0].Src)
	require.Equal(t, 1, frames[0].Removals())
	require.Equal(t, []time.Duration{ssoclient.DefaultSilentAuthTimeout}, f.waited)

	// only the client's own dispatcher stays attached
	require.Equal(t, 1, f.bus.Listeners())
}

func TestCheckSilentAuth_NoSession(t *testing.T) {
	f := newClientFixture(t)
	f.respondSilently(f.auth.URL, nil, "")

	require.False(t, f.client.CheckSilentAuth(context.Background()))
	require.Zero(t, f.durable.Len())
	require.Equal(t, 1, f.frames.Frames()[0].Removals())
}

func TestCheckSilentAuth_IgnoresOtherOrigins(t *testing.T) {
	f := newClientFixture(t)
	f.respondSilently("http://evil.example", utils.Ptr(f.mint(t, "mallory")), "rt-evil")
	f.timeouts <- f.now

	require.False(t, f.client.CheckSilentAuth(context.Background()))
	require.Zero(t, f.durable.Len())
	require.Equal(t, 1, f.frames.Frames()[0].Removals())
	require.Equal(t, 1, f.bus.Listeners())
}

func TestCheckSilentAuth_IgnoresOtherMessageTypes(t *testing.T) {
	f := newClientFixture(t)
	f.frames.OnLoad = func(string) {
		f.bus.Post(envelopeEvent(t, f.auth.URL, "profile-updated", map[string]string{"token": "x"}))
	}
	f.timeouts <- f.now

	require.False(t, f.client.CheckSilentAuth(context.Background()))
	require.Zero(t, f.durable.Len())
}

func TestCheckSilentAuth_FrameLoadFails(t *testing.T) {
	f := newClientFixture(t)
	f.frames.LoadErr = errors.New("blocked")

	require.False(t, f.client.CheckSilentAuth(context.Background()))
	require.Equal(t, 1, f.bus.Listeners())
}

func TestCheckSilentAuth_ContextCancelled(t *testing.T) {
	f := newClientFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.False(t, f.client.CheckSilentAuth(ctx))
	require.Equal(t, 1, f.frames.Frames()[0].Removals())
}

func TestCheckSilentAuth_HTTPFrames(t *testing.T) {
	f := newClientFixture(t)
	tok := f.mint(t, "user-1")
	f.auth.silentResp = ssoapi.SilentAuthResponse{Token: &tok, RefreshToken: "rt-http"}

	client, err := ssoclient.New(ssoclient.Config{AuthServerURL: f.auth.URL}, ssoclient.Host{
		Browser:   f.browser,
		Frames:    ssoclient.NewHTTPFrames(f.auth.Client(), f.bus),
		Bus:       f.bus,
		Durable:   f.durable,
		Ephemeral: f.ephemeral,
	}, ssoclient.WithHTTPClient(f.auth.Client()))
	require.NoError(t, err)
	defer client.Close()

	require.True(t, client.CheckSilentAuth(context.Background()))
	raw, _, err := client.Store().Token(context.Background())
	require.NoError(t, err)
	require.Equal(t, tok, raw)
}
