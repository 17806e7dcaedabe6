package ssoclient

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"sync"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/jrsteele09/go-sso/internal/utils"
	"github.com/jrsteele09/go-sso/messaging"
	"github.com/jrsteele09/go-sso/ssoapi"
)

// SilentAuthURL is the auth server page loaded in the hidden frame
func (c *Client) SilentAuthURL() string {
	return c.authURL + ssoapi.RouteSilentAuth + "?" + ssoapi.ParamClientID + "=" + url.QueryEscape(c.cfg.ClientID)
}

// CheckSilentAuth asks the auth server, through a hidden frame, whether the browser is
// still signed in there. Only a silent-auth response from exactly the auth server origin
// counts. It gives up after the silent-auth timeout. The listener and frame are removed
// exactly once, whichever way it ends.
func (c *Client) CheckSilentAuth(ctx context.Context) bool {
	responses := make(chan ssoapi.SilentAuthResponse, 1)
	removeListener := c.host.Bus.Listen(func(ev messaging.Event) {
		if ev.Origin != c.authOrigin {
			return
		}
		var msg ssoapi.SilentAuthResponse
		if err := ev.Decode(&msg); err != nil || msg.Type != ssoapi.MessageTypeSilentAuthResponse {
			return
		}
		select {
		case responses <- msg:
		default:
		}
	})

	var frame Frame
	var once sync.Once
	cleanup := func() {
		once.Do(func() {
			removeListener()
			if frame != nil {
				frame.Remove()
			}
		})
	}
	defer cleanup()

	timeout := c.after(c.cfg.SilentAuthTimeout)
	frame, err := c.host.Frames.Load(c.SilentAuthURL())
	if err != nil {
		c.logger.Error().Err(err).Msg("failed to load silent auth frame")
		return false
	}

	select {
	case msg := <-responses:
		cleanup()
		if msg.Error != "" {
			c.logger.Warn().Str("error", msg.Error).Msg("silent auth error")
		}
		raw := utils.Value(msg.Token)
		if raw == "" {
			return false
		}
		if err := c.store.SetToken(ctx, raw); err != nil {
			c.logger.Error().Err(err).Msg("failed to store token")
			return false
		}
		if msg.RefreshToken != "" {
			if err := c.store.SetRefreshToken(ctx, msg.RefreshToken); err != nil {
				c.logger.Error().Err(err).Msg("failed to store refresh token")
			}
		}
		return true
	case <-timeout:
		c.logger.Debug().Msg("silent auth timed out")
		return false
	case <-ctx.Done():
		return false
	}
}

// HTTPFrames loads the silent-auth page as JSON instead of rendering it, then posts the
// answer on the bus with the origin of the final response URL. The client's cookie jar
// carries the auth server session.
type HTTPFrames struct {
	client *http.Client
	bus    messaging.Bus
}

func NewHTTPFrames(client *http.Client, bus messaging.Bus) *HTTPFrames {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPFrames{client: client, bus: bus}
}

type httpFrame struct {
	cancel context.CancelFunc
}

func (f *httpFrame) Remove() {
	f.cancel()
}

// Load starts fetching src in the background. Removing the frame cancels the fetch and
// suppresses its message.
func (h *HTTPFrames) Load(src string) (Frame, error) {
	ctx, cancel := context.WithCancel(context.Background())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
	if err != nil {
		cancel()
		return nil, errors.Wrap(err, "invalid frame url")
	}
	req.Header.Set("Accept", "application/json")

	go func() {
		resp, err := h.client.Do(req)
		if err != nil {
			if ctx.Err() == nil {
				log.Warn().Err(err).Str("src", src).Msg("frame load failed")
			}
			return
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		if err != nil || !json.Valid(data) {
			log.Warn().Err(err).Str("src", src).Int("status", resp.StatusCode).Msg("frame answered without a message")
			return
		}
		if ctx.Err() != nil {
			return
		}
		h.bus.Post(messaging.Event{Origin: originOf(resp.Request.URL), Data: data})
	}()
	return &httpFrame{cancel: cancel}, nil
}
