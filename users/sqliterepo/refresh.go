package sqliterepo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	ierrors "github.com/jrsteele09/go-sso/internal/errors"
	"github.com/jrsteele09/go-sso/token/refresh"
)

// RefreshStore persists refresh tokens next to the users they belong to.
type RefreshStore struct {
	db *sql.DB
}

func (s *RefreshStore) Upsert(ctx context.Context, rt *refresh.StoredRefreshToken) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO refresh_tokens (token, user_id, client_id, issued_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (token) DO UPDATE SET
			user_id = excluded.user_id,
			client_id = excluded.client_id,
			issued_at = excluded.issued_at
		`,
		rt.Token,
		rt.UserID,
		rt.ClientID,
		rt.Iat.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("couldn't insert into refresh_tokens: %w", err)
	}
	return nil
}

func (s *RefreshStore) Delete(ctx context.Context, token string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM refresh_tokens WHERE token = ?`, token)
	if err != nil {
		return fmt.Errorf("couldn't delete refresh token: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ierrors.ErrInvalidRefreshToken
	}
	return nil
}

func (s *RefreshStore) Get(ctx context.Context, token string) (*refresh.StoredRefreshToken, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT token, user_id, client_id, issued_at
		FROM refresh_tokens
		WHERE token = ?
		`,
		token,
	)

	var (
		rt       refresh.StoredRefreshToken
		issuedAt int64
	)
	err := row.Scan(&rt.Token, &rt.UserID, &rt.ClientID, &issuedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ierrors.ErrInvalidRefreshToken
	}
	if err != nil {
		return nil, fmt.Errorf("couldn't read refresh token: %w", err)
	}
	rt.Iat = fromUnixMilli(issuedAt)
	return &rt, nil
}

func (s *RefreshStore) DeleteByUserID(ctx context.Context, userID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM refresh_tokens WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("couldn't delete refresh tokens: %w", err)
	}
	return nil
}
