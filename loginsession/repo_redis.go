package loginsession

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	ierrors "github.com/jrsteele09/go-sso/internal/errors"
)

// RedisRepo stores sessions as JSON under "<namespace>:<sessionID>" with a sliding TTL.
type RedisRepo struct {
	client    redis.UniversalClient
	namespace string
	ttl       time.Duration
}

func NewRedisRepo(client redis.UniversalClient, namespace string, ttl time.Duration) *RedisRepo {
	return &RedisRepo{client: client, namespace: namespace, ttl: ttl}
}

func (r *RedisRepo) key(sessionID string) string {
	return r.namespace + ":" + sessionID
}

func (r *RedisRepo) Upsert(ctx context.Context, sessionID string, session Session) error {
	if sessionID == "" {
		return fmt.Errorf("sessionID is required")
	}
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("encode login session: %w", err)
	}
	if err := r.client.Set(ctx, r.key(sessionID), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("store login session: %w", err)
	}
	return nil
}

func (r *RedisRepo) Get(ctx context.Context, sessionID string) (Session, error) {
	if sessionID == "" {
		return Session{}, fmt.Errorf("sessionID is required")
	}
	data, err := r.client.Get(ctx, r.key(sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Session{}, ierrors.ErrSessionNotFound
	}
	if err != nil {
		return Session{}, fmt.Errorf("load login session: %w", err)
	}

	var session Session
	if err := json.Unmarshal(data, &session); err != nil {
		return Session{}, fmt.Errorf("decode login session: %w", err)
	}
	return session, nil
}

func (r *RedisRepo) Delete(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return fmt.Errorf("sessionID is required")
	}
	if err := r.client.Del(ctx, r.key(sessionID)).Err(); err != nil {
		return fmt.Errorf("delete login session: %w", err)
	}
	return nil
}
