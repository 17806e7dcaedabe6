package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/jrsteele09/go-sso/backend"
	"github.com/jrsteele09/go-sso/handshake"
	"github.com/jrsteele09/go-sso/internal/config"
	"github.com/jrsteele09/go-sso/internal/metrics"
	"github.com/jrsteele09/go-sso/internal/ratelimit"
	"github.com/jrsteele09/go-sso/server"
	"github.com/jrsteele09/go-sso/token"
	"github.com/jrsteele09/go-sso/token/refresh"
)

func main() {
	for {
		if err := run(); err != nil {
			log.Error().Err(err).Msg("Error running server")
			time.Sleep(1 * time.Second)
		} else {
			break
		}
	}
	log.Info().Msg("Server stopped")
}

func run() (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Bytes("stack", debug.Stack()).Msg("Recovered from panic")
			returnError = errors.New("panic recovered")
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	config.LoadDotEnv()
	env := config.EnvVars{}
	if env.GetEnv() == "DEV" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}

	src, err := config.LoadFileSource(env.GetSSOConfigPath(), env.GetEnv())
	if err != nil {
		return fmt.Errorf("load sso config: %w", err)
	}
	if err := src.Watch(ctx, func(config.File) { log.Info().Str("path", src.Path()).Msg("sso config reloaded") }); err != nil {
		log.Warn().Err(err).Msg("sso config will not be reloaded")
	}
	c := config.New(src)

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.NewMetrics(registry)

	st, err := newStores(c)
	if err != nil {
		return err
	}
	defer st.close()

	provider, closeProvider, err := newProvider(c)
	if err != nil {
		return err
	}
	defer closeProvider()

	signer, err := token.NewSigner(c.GetTokenSigning(), token.SignerOptions{
		Secret:  c.GetTokenSigningKey(),
		KeyFile: c.GetTokenKeyFile(),
		KeyID:   c.GetTokenKeyID(),
	})
	if err != nil {
		return fmt.Errorf("token signer: %w", err)
	}
	issuer := c.GetAuthServerURL()
	if issuer == "" {
		issuer = c.GetBaseURL()
	}
	codec := token.NewCodec(issuer, token.WithSigner(signer))

	adapter := backend.NewAdapter(backend.Instrument(provider, m), st.logins)
	var grantOpts []refresh.ManagerOption
	if expiry := c.GetRefreshTokenExpiry(); expiry > 0 {
		grantOpts = append(grantOpts, refresh.WithExpiry(expiry))
	}
	grants := handshake.NewGrants(st.grants, grantOpts...)
	controller := handshake.NewController(adapter, codec, st.browsers,
		handshake.WithLocale(c.GetLocale()),
		handshake.WithGrants(grants),
		handshake.WithMetrics(m),
	)

	limiter := ratelimit.New(c.GetFormRateLimit(), c.GetFormRateBurst())
	go cleanupLimiter(ctx, limiter)

	handler, err := server.New(c, controller,
		server.WithSigner(signer),
		server.WithMetrics(m),
		server.WithRateLimiter(limiter),
	)
	if err != nil {
		return err
	}

	displayAppname(c.GetAppName())
	log.Info().Str("issuer", issuer).Str("backend", c.GetBackend()).Str("signing", signer.Algorithm()).Msg("SSO server configured")

	srv := &http.Server{Addr: c.GetPort(), Handler: handler, ReadHeaderTimeout: 10 * time.Second}
	errs := make(chan error, 1)
	go func() { errs <- listenAndServe(srv) }()

	select {
	case err := <-errs:
		return err
	case <-waitForStopSignal():
	}
	return shutdown(srv)
}

func cleanupLimiter(ctx context.Context, l *ratelimit.Limiter) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := l.Cleanup(10 * time.Minute); n > 0 {
				log.Debug().Int("removed", n).Msg("rate limiter cleanup")
			}
		}
	}
}

func listenAndServe(server *http.Server) error {
	log.Info().Msgf("Server listening on %s", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server.ListenAndServe %w", err)
	}
	return nil
}

func waitForStopSignal() <-chan os.Signal {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	return stop
}

func shutdown(server *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server.Shutdown: %w", err)
	}
	return nil
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
