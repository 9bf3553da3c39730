// Package userdb is the MySQL-backed relational DAO for im_user, the Go
// equivalent of original_source/server/src/dao/user_dao.cpp, using
// database/sql and the MySQL driver directly instead of a DSL
// query-builder (no sqlpp11 equivalent appears anywhere in the pack).
package userdb

import (
	"context"
	"database/sql"
	"errors"

	_ "github.com/go-sql-driver/mysql"

	"github.com/sususu5/im-server/auth"
)

// Store is a MySQL-backed auth.UserStore.
type Store struct {
	db *sql.DB
}

// Open connects to MySQL using dsn (e.g. "user:pass@tcp(host:3306)/im").
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

// NewWithDB wraps an already-open *sql.DB, e.g. a pool shared with
// frienddb.Store.
func NewWithDB(db *sql.DB) *Store { return &Store{db: db} }

const schema = `
CREATE TABLE IF NOT EXISTS im_user (
	user_id BIGINT UNSIGNED PRIMARY KEY,
	username VARCHAR(64) NOT NULL UNIQUE,
	password VARCHAR(255) NOT NULL
)`

// EnsureSchema creates im_user if it does not already exist. The
// migration system itself is an external collaborator (spec.md §1); this
// is only a convenience for local/dev runs.
func (s *Store) EnsureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// Exists reports whether username is already registered.
func (s *Store) Exists(ctx context.Context, username string) (bool, error) {
	var dummy string
	err := s.db.QueryRowContext(ctx, `SELECT username FROM im_user WHERE username = ? LIMIT 1`, username).Scan(&dummy)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Insert adds a new user row.
func (s *Store) Insert(ctx context.Context, u auth.User) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO im_user (user_id, username, password) VALUES (?, ?, ?)`,
		u.UserID, u.Username, u.PasswordHash)
	return err
}

// FindByUsername returns auth.ErrUnknownUser if no such user exists.
func (s *Store) FindByUsername(ctx context.Context, username string) (auth.User, error) {
	var u auth.User
	err := s.db.QueryRowContext(ctx, `SELECT user_id, username, password FROM im_user WHERE username = ?`, username).
		Scan(&u.UserID, &u.Username, &u.PasswordHash)
	if errors.Is(err, sql.ErrNoRows) {
		return auth.User{}, auth.ErrUnknownUser
	}
	return u, err
}

// Username looks up a display name by id. friendsvc's pushes take names
// from frienddb.Store.Username, the store main wires into it.
func (s *Store) Username(ctx context.Context, userID uint64) (string, error) {
	var username string
	err := s.db.QueryRowContext(ctx, `SELECT username FROM im_user WHERE user_id = ?`, userID).Scan(&username)
	return username, err
}

// Close releases the underlying connection pool.
func (s *Store) Close() error { return s.db.Close() }
