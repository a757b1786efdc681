// Package sqlite provides SQLite-backed user and session stores.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/scottschroeder/storyestimate/internal/estimate"
	"github.com/scottschroeder/storyestimate/internal/user"
)

//go:embed schema.sql
var schema string

// Store owns the SQLite handle shared by the user and session stores.
type Store struct {
	sqlDB *sql.DB
}

// Open opens the database at path and creates the schema if needed.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	dsn := filepath.Clean(path) + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := sqlDB.Exec(schema); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// Users returns the user store view of s.
func (s *Store) Users() *UserStore { return &UserStore{sqlDB: s.sqlDB} }

// Sessions returns the session store view of s.
func (s *Store) Sessions() *SessionStore { return &SessionStore{sqlDB: s.sqlDB} }

// UserStore implements user.Store.
type UserStore struct {
	sqlDB *sql.DB
}

func (s *UserStore) Add(ctx context.Context, u *user.User) error {
	res, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO users (id, token_hash, created_at) VALUES (?, ?, ?)
		 ON CONFLICT(id) DO NOTHING`,
		u.ID, u.TokenHash, u.CreatedAt.UTC().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	if n == 0 {
		return user.ErrExists
	}
	return nil
}

func (s *UserStore) Get(ctx context.Context, id string) (*user.User, error) {
	var (
		u       user.User
		created int64
	)
	err := s.sqlDB.QueryRowContext(ctx,
		`SELECT id, token_hash, created_at FROM users WHERE id = ?`, id,
	).Scan(&u.ID, &u.TokenHash, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	u.CreatedAt = time.UnixMilli(created).UTC()
	return &u, nil
}

// SessionStore implements estimate.Store. Each session is one JSON row.
type SessionStore struct {
	sqlDB *sql.DB
}

func (s *SessionStore) Create(ctx context.Context, sess *estimate.Session) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	res, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO sessions (id, data, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(id) DO NOTHING`,
		sess.ID, string(data), time.Now().UTC().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	if n == 0 {
		return estimate.ErrExists
	}
	return nil
}

func (s *SessionStore) Get(ctx context.Context, id string) (*estimate.Session, error) {
	var data string
	err := s.sqlDB.QueryRowContext(ctx, `SELECT data FROM sessions WHERE id = ?`, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	var sess estimate.Session
	if err := json.Unmarshal([]byte(data), &sess); err != nil {
		return nil, fmt.Errorf("unmarshal session: %w", err)
	}
	if sess.Members == nil {
		sess.Members = []*estimate.Member{}
	}
	if sess.Admins == nil {
		sess.Admins = []string{}
	}
	return &sess, nil
}

func (s *SessionStore) Put(ctx context.Context, sess *estimate.Session) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	res, err := s.sqlDB.ExecContext(ctx,
		`UPDATE sessions SET data = ?, updated_at = ? WHERE id = ?`,
		string(data), time.Now().UTC().UnixMilli(), sess.ID,
	)
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("update session %s: not found", sess.ID)
	}
	return nil
}

func (s *SessionStore) Delete(ctx context.Context, id string) (bool, error) {
	res, err := s.sqlDB.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete session: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete session: %w", err)
	}
	return n == 1, nil
}
