// Package session owns the three persisted SSO slots: the bearer token, the refresh token
// and the session summary. Both the auth server and the client library read and write
// them only through Store.
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/jrsteele09/go-sso/storage"
)

// Keys names the storage slots. Names are configuration supplied.
type Keys struct {
	Token        string `yaml:"tokenKey" json:"tokenKey"`
	RefreshToken string `yaml:"refreshTokenKey" json:"refreshTokenKey"`
	Session      string `yaml:"sessionKey" json:"sessionKey"`
}

// DefaultKeys returns the stock slot names
func DefaultKeys() Keys {
	return Keys{
		Token:        "sso_token",
		RefreshToken: "sso_refresh_token",
		Session:      "sso_session",
	}
}

// SummaryUser is the user part of a Summary
type SummaryUser struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

// Summary is a convenience cache of who is signed in, kept apart from the token itself.
type Summary struct {
	User      SummaryUser `json:"user"`
	ExpiresAt int64       `json:"expires_at"`
}

// Slot identifies one of the persisted values
type Slot int

const (
	SlotToken Slot = iota
	SlotRefreshToken
	SlotSummary
)

func (s Slot) String() string {
	switch s {
	case SlotToken:
		return "token"
	case SlotRefreshToken:
		return "refresh_token"
	case SlotSummary:
		return "session"
	default:
		return fmt.Sprintf("slot(%d)", int(s))
	}
}

// Change describes a write. Cleared is set for Store.Clear, which reports once for all slots.
type Change struct {
	Slot    Slot
	Value   string
	Cleared bool
}

// Store wraps a durable KV (per origin) and an ephemeral KV (per tab).
type Store struct {
	durable   storage.KV
	ephemeral storage.KV
	keys      Keys

	mu     sync.RWMutex
	nextID int
	subs   map[int]func(Change)
}

// New creates a store. ephemeral may be nil when there is no per-tab storage.
func New(durable, ephemeral storage.KV, keys Keys) *Store {
	if keys.Token == "" || keys.RefreshToken == "" || keys.Session == "" {
		defaults := DefaultKeys()
		if keys.Token == "" {
			keys.Token = defaults.Token
		}
		if keys.RefreshToken == "" {
			keys.RefreshToken = defaults.RefreshToken
		}
		if keys.Session == "" {
			keys.Session = defaults.Session
		}
	}
	return &Store{
		durable:   durable,
		ephemeral: ephemeral,
		keys:      keys,
		subs:      make(map[int]func(Change)),
	}
}

// Subscribe registers fn for every subsequent change and returns a function removing it.
func (s *Store) Subscribe(fn func(Change)) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = fn
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, id)
			s.mu.Unlock()
		})
	}
}

func (s *Store) notify(c Change) {
	s.mu.RLock()
	fns := make([]func(Change), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.mu.RUnlock()

	for _, fn := range fns {
		fn(c)
	}
}

func (s *Store) Token(ctx context.Context) (string, bool, error) {
	return s.durable.Get(ctx, s.keys.Token)
}

func (s *Store) SetToken(ctx context.Context, token string) error {
	if err := s.durable.Set(ctx, s.keys.Token, token); err != nil {
		return fmt.Errorf("store token: %w", err)
	}
	s.notify(Change{Slot: SlotToken, Value: token})
	return nil
}

func (s *Store) RefreshToken(ctx context.Context) (string, bool, error) {
	return s.durable.Get(ctx, s.keys.RefreshToken)
}

func (s *Store) SetRefreshToken(ctx context.Context, refreshToken string) error {
	if err := s.durable.Set(ctx, s.keys.RefreshToken, refreshToken); err != nil {
		return fmt.Errorf("store refresh token: %w", err)
	}
	s.notify(Change{Slot: SlotRefreshToken, Value: refreshToken})
	return nil
}

// Summary returns the cached summary, or nil if none is stored.
func (s *Store) Summary(ctx context.Context) (*Summary, error) {
	raw, ok, err := s.durable.Get(ctx, s.keys.Session)
	if err != nil || !ok {
		return nil, err
	}
	var summary Summary
	if err := json.Unmarshal([]byte(raw), &summary); err != nil {
		return nil, fmt.Errorf("decode session summary: %w", err)
	}
	return &summary, nil
}

func (s *Store) SetSummary(ctx context.Context, summary Summary) error {
	data, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("encode session summary: %w", err)
	}
	if err := s.durable.Set(ctx, s.keys.Session, string(data)); err != nil {
		return fmt.Errorf("store session summary: %w", err)
	}
	s.notify(Change{Slot: SlotSummary, Value: string(data)})
	return nil
}

// Clear removes the three durable slots and everything in the ephemeral store. It is idempotent.
func (s *Store) Clear(ctx context.Context) error {
	for _, key := range []string{s.keys.Token, s.keys.RefreshToken, s.keys.Session} {
		if err := s.durable.Delete(ctx, key); err != nil {
			return fmt.Errorf("clear %s: %w", key, err)
		}
	}
	if s.ephemeral != nil {
		if err := s.ephemeral.Clear(ctx); err != nil {
			return fmt.Errorf("clear ephemeral storage: %w", err)
		}
	}
	s.notify(Change{Cleared: true})
	return nil
}

// Partitioned gives each browser session its own Store over a shared backend.
type Partitioned struct {
	parts storage.Partitioner
	keys  Keys
}

func NewPartitioned(parts storage.Partitioner, keys Keys) *Partitioned {
	return &Partitioned{parts: parts, keys: keys}
}

// For returns the store of browser session sid. The auth server has no per-tab storage.
func (p *Partitioned) For(sid string) *Store {
	return New(p.parts.Partition(sid), nil, p.keys)
}
