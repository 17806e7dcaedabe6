// Package sqliterepo provides SQLite persistence for local users and their refresh tokens.
package sqliterepo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	ierrors "github.com/jrsteele09/go-sso/internal/errors"
	"github.com/jrsteele09/go-sso/token/refresh"
	"github.com/jrsteele09/go-sso/users"
)

var (
	_ users.UserRepo = (*Store)(nil)
	_ refresh.Repo   = (*RefreshStore)(nil)
)

type Store struct {
	db *sql.DB
}

// Open opens (or creates) the database at dbPath. ":memory:" gives a private in-memory database.
func Open(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	// a single connection keeps ":memory:" databases shared and serialises writers
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA foreign_keys = ON;"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to init database schema: couldn't enable foreign keys: %w", err)
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to init database: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// RefreshTokens returns the refresh token table of the same database
func (s *Store) RefreshTokens() *RefreshStore {
	return &RefreshStore{db: s.db}
}

func initSchema(db *sql.DB) error {
	if err := initTable(db, "users", `
		CREATE TABLE IF NOT EXISTS users (
			id            TEXT PRIMARY KEY,
			email         TEXT UNIQUE NOT NULL COLLATE NOCASE,
			password_hash TEXT NOT NULL,
			role          TEXT NOT NULL DEFAULT 'user',
			metadata      TEXT NOT NULL DEFAULT '{}',
			date_joined   INTEGER NOT NULL,
			last_login    INTEGER NOT NULL DEFAULT 0,
			confirmed     INTEGER NOT NULL DEFAULT 0,
			blocked       INTEGER NOT NULL DEFAULT 0
		);`,
	); err != nil {
		return err
	}

	if err := initTable(db, "refresh_tokens", `
		CREATE TABLE IF NOT EXISTS refresh_tokens (
			token      TEXT PRIMARY KEY,
			user_id    TEXT NOT NULL,
			client_id  TEXT NOT NULL DEFAULT '',
			issued_at  INTEGER NOT NULL,
			FOREIGN KEY (user_id) REFERENCES users (id) ON DELETE CASCADE
		);`,
	); err != nil {
		return err
	}

	return nil
}

func initTable(db *sql.DB, name string, sql string) error {
	if _, err := db.Exec(sql); err != nil {
		return fmt.Errorf("failed to init '%s' table schema: %w", name, err)
	}
	return nil
}

func (s *Store) Upsert(ctx context.Context, user *users.User) error {
	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	metadata, err := json.Marshal(user.Metadata)
	if err != nil {
		return fmt.Errorf("couldn't encode user metadata: %w", err)
	}
	if user.Metadata == nil {
		metadata = []byte("{}")
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO users (id, email, password_hash, role, metadata, date_joined, last_login, confirmed, blocked)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			email = excluded.email,
			password_hash = excluded.password_hash,
			role = excluded.role,
			metadata = excluded.metadata,
			last_login = excluded.last_login,
			confirmed = excluded.confirmed,
			blocked = excluded.blocked
		`,
		user.ID,
		user.Email,
		user.PasswordHash,
		string(user.Role),
		string(metadata),
		unixOrZero(user.DateJoined),
		unixOrZero(user.LastLogin),
		user.Confirmed,
		user.Blocked,
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed: users.email") {
			return ierrors.ErrUserExists
		}
		return fmt.Errorf("couldn't upsert user: %w", err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, email string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM users WHERE email = ?`, email)
	if err != nil {
		return fmt.Errorf("couldn't delete user: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ierrors.ErrUserNotFound
	}
	return nil
}

const selectUser = `
	SELECT id, email, password_hash, role, metadata, date_joined, last_login, confirmed, blocked
	FROM users`

func (s *Store) GetByEmail(ctx context.Context, email string) (*users.User, error) {
	return scanUser(s.db.QueryRowContext(ctx, selectUser+` WHERE email = ?`, email))
}

func (s *Store) GetByID(ctx context.Context, id string) (*users.User, error) {
	return scanUser(s.db.QueryRowContext(ctx, selectUser+` WHERE id = ?`, id))
}

func (s *Store) List(ctx context.Context, offset, limit int) ([]*users.User, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, selectUser+` ORDER BY email LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("couldn't list users: %w", err)
	}
	defer rows.Close()

	list := []*users.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, u)
	}
	return list, rows.Err()
}

func (s *Store) SetConfirmed(ctx context.Context, email string, confirmed bool) error {
	res, err := s.db.ExecContext(ctx, `UPDATE users SET confirmed = ? WHERE email = ?`, confirmed, email)
	if err != nil {
		return fmt.Errorf("couldn't update user: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ierrors.ErrUserNotFound
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanUser(row scanner) (*users.User, error) {
	var (
		u                     users.User
		role, metadata        string
		dateJoined, lastLogin int64
	)
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &role, &metadata, &dateJoined, &lastLogin, &u.Confirmed, &u.Blocked)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ierrors.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("couldn't read user: %w", err)
	}

	u.Role = users.RoleType(role)
	if err := json.Unmarshal([]byte(metadata), &u.Metadata); err != nil {
		return nil, fmt.Errorf("couldn't decode user metadata: %w", err)
	}
	u.DateJoined = fromUnix(dateJoined)
	u.LastLogin = fromUnix(lastLogin)
	return &u, nil
}

func unixOrZero(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.Unix()
}

func fromUnix(sec int64) time.Time {
	if sec == 0 {
		return time.Time{}
	}
	return time.Unix(sec, 0).UTC()
}

func fromUnixMilli(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}
