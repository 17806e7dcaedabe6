package refresh

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	ierrors "github.com/jrsteele09/go-sso/internal/errors"
)

const (
	// DefaultLength is the number of random bytes in a token (hex encoded on the wire)
	DefaultLength = 32
	// DefaultExpiry matches the seven day refresh lifetime of the hosted backend
	DefaultExpiry = 7 * 24 * time.Hour
)

// Manager handles refresh token creation, validation, and rotation
type Manager struct {
	repo   Repo
	length int
	expiry time.Duration
	now    func() time.Time
}

type ManagerOption func(*Manager)

func WithExpiry(expiry time.Duration) ManagerOption {
	return func(m *Manager) {
		m.expiry = expiry
	}
}

func WithNowFunc(now func() time.Time) ManagerOption {
	return func(m *Manager) {
		m.now = now
	}
}

// NewManager creates a new refresh token manager
func NewManager(repo Repo, options ...ManagerOption) *Manager {
	m := &Manager{
		repo:   repo,
		length: DefaultLength,
		expiry: DefaultExpiry,
		now:    time.Now,
	}
	for _, opt := range options {
		opt(m)
	}
	return m
}

// Create generates a new refresh token and stores it
func (m *Manager) Create(ctx context.Context, userID, clientID string) (string, error) {
	tokenBytes := make([]byte, m.length)
	if _, err := rand.Read(tokenBytes); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}

	tokenStr := hex.EncodeToString(tokenBytes)
	if err := m.repo.Upsert(ctx, &StoredRefreshToken{
		Token:    tokenStr,
		UserID:   userID,
		ClientID: clientID,
		Iat:      m.now(),
	}); err != nil {
		return "", fmt.Errorf("failed to store refresh token: %w", err)
	}
	return tokenStr, nil
}

// Rotate exchanges token for a fresh one. The old token is single use.
func (m *Manager) Rotate(ctx context.Context, token string) (*StoredRefreshToken, error) {
	rt, err := m.repo.Get(ctx, token)
	if err != nil {
		return nil, err
	}
	if err := m.repo.Delete(ctx, token); err != nil {
		return nil, fmt.Errorf("failed to delete used refresh token: %w", err)
	}
	if m.IsExpired(rt) {
		return nil, ierrors.Wrapf(ierrors.ErrInvalidRefreshToken, "refresh token expired")
	}

	next, err := m.Create(ctx, rt.UserID, rt.ClientID)
	if err != nil {
		return nil, err
	}
	return &StoredRefreshToken{Token: next, UserID: rt.UserID, ClientID: rt.ClientID, Iat: m.now()}, nil
}

// Revoke removes a single token. Unknown tokens are ignored.
func (m *Manager) Revoke(ctx context.Context, token string) error {
	if err := m.repo.Delete(ctx, token); err != nil && !ierrors.Is(err, ierrors.ErrInvalidRefreshToken) {
		return err
	}
	return nil
}

// RevokeUser removes every token issued to userID
func (m *Manager) RevokeUser(ctx context.Context, userID string) error {
	return m.repo.DeleteByUserID(ctx, userID)
}

// IsExpired checks if a refresh token has outlived the configured expiry
func (m *Manager) IsExpired(rt *StoredRefreshToken) bool {
	return m.now().Sub(rt.Iat) > m.expiry
}
