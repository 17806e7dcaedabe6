package refresh

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"sync"
	"time"

	ierrors "github.com/jrsteele09/go-sso/internal/errors"
	"github.com/jrsteele09/go-sso/storage"
)

var _ Repo = (*KVRepo)(nil)

// KVRepo keeps refresh tokens in a storage.KV. A per-user index of token strings backs
// DeleteByUserID; index updates are serialised within the process only.
type KVRepo struct {
	kv storage.KV
	mu sync.Mutex
}

type kvRecord struct {
	UserID   string    `json:"user_id"`
	ClientID string    `json:"client_id"`
	Iat      time.Time `json:"iat"`
}

func NewKVRepo(kv storage.KV) *KVRepo {
	return &KVRepo{kv: kv}
}

func tokenKey(token string) string { return "rt:" + token }
func userKey(userID string) string { return "user:" + userID }

func (r *KVRepo) Upsert(ctx context.Context, rt *StoredRefreshToken) error {
	raw, err := json.Marshal(kvRecord{UserID: rt.UserID, ClientID: rt.ClientID, Iat: rt.Iat})
	if err != nil {
		return fmt.Errorf("encode refresh token: %w", err)
	}
	if err := r.kv.Set(ctx, tokenKey(rt.Token), string(raw)); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	tokens, err := r.index(ctx, rt.UserID)
	if err != nil {
		return err
	}
	if slices.Contains(tokens, rt.Token) {
		return nil
	}
	return r.setIndex(ctx, rt.UserID, append(tokens, rt.Token))
}

func (r *KVRepo) Get(ctx context.Context, token string) (*StoredRefreshToken, error) {
	raw, ok, err := r.kv.Get(ctx, tokenKey(token))
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ierrors.ErrInvalidRefreshToken
	}
	var rec kvRecord
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return nil, fmt.Errorf("decode refresh token: %w", err)
	}
	return &StoredRefreshToken{Token: token, UserID: rec.UserID, ClientID: rec.ClientID, Iat: rec.Iat}, nil
}

func (r *KVRepo) Delete(ctx context.Context, token string) error {
	rt, err := r.Get(ctx, token)
	if err != nil {
		return err
	}
	if err := r.kv.Delete(ctx, tokenKey(token)); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	tokens, err := r.index(ctx, rt.UserID)
	if err != nil {
		return err
	}
	return r.setIndex(ctx, rt.UserID, slices.DeleteFunc(tokens, func(t string) bool { return t == token }))
}

func (r *KVRepo) DeleteByUserID(ctx context.Context, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	tokens, err := r.index(ctx, userID)
	if err != nil {
		return err
	}
	for _, t := range tokens {
		if err := r.kv.Delete(ctx, tokenKey(t)); err != nil {
			return err
		}
	}
	return r.kv.Delete(ctx, userKey(userID))
}

func (r *KVRepo) index(ctx context.Context, userID string) ([]string, error) {
	raw, ok, err := r.kv.Get(ctx, userKey(userID))
	if err != nil || !ok {
		return nil, err
	}
	var tokens []string
	if err := json.Unmarshal([]byte(raw), &tokens); err != nil {
		return nil, fmt.Errorf("decode refresh token index: %w", err)
	}
	return tokens, nil
}

func (r *KVRepo) setIndex(ctx context.Context, userID string, tokens []string) error {
	if len(tokens) == 0 {
		return r.kv.Delete(ctx, userKey(userID))
	}
	raw, err := json.Marshal(tokens)
	if err != nil {
		return fmt.Errorf("encode refresh token index: %w", err)
	}
	return r.kv.Set(ctx, userKey(userID), string(raw))
}
