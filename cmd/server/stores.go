package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/jrsteele09/go-sso/backend"
	"github.com/jrsteele09/go-sso/backend/local"
	"github.com/jrsteele09/go-sso/backend/supabase"
	"github.com/jrsteele09/go-sso/internal/config"
	"github.com/jrsteele09/go-sso/loginsession"
	"github.com/jrsteele09/go-sso/session"
	"github.com/jrsteele09/go-sso/storage"
	"github.com/jrsteele09/go-sso/token/refresh"
	refreshfake "github.com/jrsteele09/go-sso/token/refresh/repofake"
	"github.com/jrsteele09/go-sso/users"
	userfake "github.com/jrsteele09/go-sso/users/repofake"
	"github.com/jrsteele09/go-sso/users/sqliterepo"
)

const redisNamespace = "sso"

// state holds the server side stores: browser sessions, backend login sessions and the
// refresh tokens issued to client applications.
type state struct {
	browsers *session.Partitioned
	logins   loginsession.Repo
	grants   storage.KV
	close    func()
}

// newStores keeps server state in redis when REDIS_ADDR is set, in memory otherwise.
func newStores(c config.Config) (*state, error) {
	addrs := c.GetRedisAddrs()
	if len(addrs) == 0 {
		log.Info().Msg("Using in-memory session storage")
		return &state{
			browsers: session.NewPartitioned(storage.NewMemoryPartitions(), c.GetSessionKeys()),
			logins:   loginsession.NewInMemoryRepo(),
			grants:   storage.NewMemory(),
			close:    func() {},
		}, nil
	}

	client := storage.NewRedisClient(addrs, c.GetRedisPassword(), c.GetRedisCluster())
	if err := client.Ping(context.Background()).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", strings.Join(addrs, ","), err)
	}
	log.Info().Strs("addrs", addrs).Msg("Using redis session storage")

	ttl := c.GetMaxSessionAge()
	return &state{
		browsers: session.NewPartitioned(storage.NewRedis(client, redisNamespace+":browser", ttl), c.GetSessionKeys()),
		logins:   loginsession.NewRedisRepo(client, redisNamespace+":login", ttl),
		grants:   storage.NewRedis(client, redisNamespace+":grants", c.GetRefreshTokenExpiry()),
		close:    func() { _ = client.Close() },
	}, nil
}

// newProvider picks the identity backend: supabase, or the built-in local store backed by
// sqlite at DB_PATH (in memory when unset).
func newProvider(c config.Config) (backend.Provider, func(), error) {
	switch c.GetBackend() {
	case config.BackendSupabase:
		if c.GetSupabaseURL() == "" || c.GetSupabaseAnonKey() == "" {
			return nil, nil, fmt.Errorf("supabase backend needs SUPABASE_URL and SUPABASE_ANON_KEY")
		}
		return supabase.New(c.GetSupabaseURL(), c.GetSupabaseAnonKey()), func() {}, nil

	case config.BackendLocal:
		var (
			userRepo    users.UserRepo
			refreshRepo refresh.Repo
			closeFn     = func() {}
		)
		if path := c.GetDBPath(); path != "" {
			store, err := sqliterepo.Open(path)
			if err != nil {
				return nil, nil, fmt.Errorf("open user database: %w", err)
			}
			userRepo, refreshRepo = store, store.RefreshTokens()
			closeFn = func() { _ = store.Close() }
			log.Info().Str("path", path).Msg("Using sqlite user store")
		} else {
			userRepo, refreshRepo = userfake.NewFakeUserRepo(), refreshfake.NewFakeRefreshTokenRepo()
			log.Warn().Msg("DB_PATH not set, users are kept in memory")
		}
		opts := []local.Option{
			local.WithEmailConfirmation(c.GetRequireEmailConfirmation()),
			local.WithRefreshExpiry(c.GetRefreshTokenExpiry()),
		}
		if secret := c.GetTokenSigningKey(); secret != "" {
			opts = append(opts, local.WithAccessTokenSecret(secret))
		}
		return local.New(userRepo, refreshRepo, opts...), closeFn, nil

	default:
		return nil, nil, fmt.Errorf("unknown backend %q", c.GetBackend())
	}
}
