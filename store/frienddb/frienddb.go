// Package frienddb is the MySQL-backed relational DAO for im_friend,
// the Go equivalent of original_source/server/src/dao/friend_dao.cpp.
// HandleFriend runs the forward-edge update and the reverse-edge
// create-or-update inside one transaction, matching the original's
// start_transaction/commit_transaction/rollback_transaction shape.
package frienddb

import (
	"context"
	"database/sql"
	"errors"

	_ "github.com/go-sql-driver/mysql"

	"github.com/sususu5/im-server/friendsvc"
)

const (
	statusPending  = 0
	statusAccepted = 1
	statusRejected = 2
)

// Store is a MySQL-backed friendsvc.Store.
type Store struct {
	db *sql.DB
}

// NewWithDB wraps an already-open *sql.DB, typically shared with
// store/userdb's pool.
func NewWithDB(db *sql.DB) *Store { return &Store{db: db} }

const schema = `
CREATE TABLE IF NOT EXISTS im_friend (
	id BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
	user_id BIGINT UNSIGNED NOT NULL,
	friend_id BIGINT UNSIGNED NOT NULL,
	status TINYINT NOT NULL,
	verify_msg VARCHAR(255),
	created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
	UNIQUE KEY uniq_edge (user_id, friend_id)
)`

// EnsureSchema creates im_friend if it does not already exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// AddFriend inserts a PENDING edge, returning friendsvc.ErrEdgeExists if
// one is already present.
func (s *Store) AddFriend(ctx context.Context, userID, friendID uint64, verifyMsg string) (uint64, error) {
	var dummy uint64
	err := s.db.QueryRowContext(ctx, `SELECT id FROM im_friend WHERE user_id = ? AND friend_id = ? LIMIT 1`,
		userID, friendID).Scan(&dummy)
	if err == nil {
		return 0, friendsvc.ErrEdgeExists
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, err
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO im_friend (user_id, friend_id, status, verify_msg) VALUES (?, ?, ?, ?)`,
		userID, friendID, statusPending, verifyMsg)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	return uint64(id), err
}

// HandleFriend applies an accept/reject decision transactionally. On
// accept, the reverse edge (receiverID -> senderID) is created if
// missing, else updated to ACCEPTED, in the same transaction.
func (s *Store) HandleFriend(ctx context.Context, receiverID, senderID uint64, accept bool) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	status := statusRejected
	if accept {
		status = statusAccepted
	}
	if _, err := tx.ExecContext(ctx, `UPDATE im_friend SET status = ? WHERE user_id = ? AND friend_id = ?`,
		status, senderID, receiverID); err != nil {
		return err
	}

	if accept {
		var dummy uint64
		err := tx.QueryRowContext(ctx, `SELECT id FROM im_friend WHERE user_id = ? AND friend_id = ?`,
			receiverID, senderID).Scan(&dummy)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO im_friend (user_id, friend_id, status) VALUES (?, ?, ?)`,
				receiverID, senderID, statusAccepted); err != nil {
				return err
			}
		case err != nil:
			return err
		default:
			if _, err := tx.ExecContext(ctx, `UPDATE im_friend SET status = ? WHERE user_id = ? AND friend_id = ?`,
				statusAccepted, receiverID, senderID); err != nil {
				return err
			}
		}
	}

	return tx.Commit()
}

// GetFriendList returns only ACCEPTED edges, joined against im_user for
// display names.
func (s *Store) GetFriendList(ctx context.Context, userID uint64) ([]friendsvc.FriendInfo, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT u.user_id, u.username FROM im_friend f
		 JOIN im_user u ON u.user_id = f.friend_id
		 WHERE f.user_id = ? AND f.status = ?`, userID, statusAccepted)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []friendsvc.FriendInfo
	for rows.Next() {
		var fi friendsvc.FriendInfo
		if err := rows.Scan(&fi.UserID, &fi.Username); err != nil {
			return nil, err
		}
		out = append(out, fi)
	}
	return out, rows.Err()
}

// GetPendingRequests returns PENDING inbound requests for login catch-up.
func (s *Store) GetPendingRequests(ctx context.Context, userID uint64) ([]friendsvc.Edge, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT f.id, f.user_id, u.username, f.verify_msg, UNIX_TIMESTAMP(f.created_at)
		 FROM im_friend f JOIN im_user u ON u.user_id = f.user_id
		 WHERE f.friend_id = ? AND f.status = ?
		 ORDER BY f.id`, userID, statusPending)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []friendsvc.Edge
	for rows.Next() {
		var e friendsvc.Edge
		if err := rows.Scan(&e.ID, &e.UserID, &e.SenderName, &e.VerifyMsg, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.FriendID = userID
		e.Status = friendsvc.Pending
		out = append(out, e)
	}
	return out, rows.Err()
}

// Username looks up a display name by id.
func (s *Store) Username(ctx context.Context, userID uint64) (string, error) {
	var username string
	err := s.db.QueryRowContext(ctx, `SELECT username FROM im_user WHERE user_id = ?`, userID).Scan(&username)
	return username, err
}

// Close releases the underlying connection pool.
func (s *Store) Close() error { return s.db.Close() }
