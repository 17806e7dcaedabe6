// Command demo-service is a client application of the SSO server. It serves an API that
// accepts the bearer tokens the auth server issues for its origin.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/cors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/jrsteele09/go-sso/internal/config"
	"github.com/jrsteele09/go-sso/ssoclient"
)

func main() {
	config.LoadDotEnv()
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})

	authServer := config.GetEnv("AUTH_SERVER_URL", "http://localhost:3001")
	origin := config.GetEnv("SERVICE_ORIGIN", "http://localhost:3002")
	addr := config.GetEnv("SERVICE_ADDR", ":3002")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	verifier, err := ssoclient.DiscoverVerifier(ctx, authServer)
	if err != nil {
		log.Warn().Err(err).Str("auth_server", authServer).Msg("discovery failed, tokens are decoded without verification")
	} else if verifier == nil {
		log.Warn().Msg("auth server publishes no signing keys, tokens are decoded without verification")
	}

	srv := &http.Server{Addr: addr, Handler: newHandler(origin, verifier), ReadHeaderTimeout: 10 * time.Second}
	go func() {
		log.Info().Str("addr", addr).Str("audience", origin).Msg("demo service listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("demo service stopped")
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Err(err).Msg("shutdown")
	}
}

func newHandler(origin string, verifier ssoclient.Verifier) http.Handler {
	requireBearer := ssoclient.RequireBearer(ssoclient.BearerOptions{Verifier: verifier, Audience: origin})

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	mux.Handle("GET /api/me", requireBearer(http.HandlerFunc(meHandler)))

	return cors.Handler(cors.Options{
		AllowedOrigins:   []string{origin},
		AllowedMethods:   []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
	})(mux)
}

func meHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := ssoclient.UserFromContext(r.Context())
	if !ok {
		http.Error(w, "no user", http.StatusUnauthorized)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(user)
}
