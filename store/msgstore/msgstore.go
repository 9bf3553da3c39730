// Package msgstore is the gocql-backed wide-column message store.
// Grounded on original_source/server/src/dao/msg_scylla_dao.cpp (insert
// shape, bound statement per row) and pool/scylla_session.h (one shared
// session). spec.md §6 calls for three rows per message -- conversation
// history, receiver inbox, sender sent-box. idgen.ConversationID is the
// partition key of the conversation-history row; the inbox and sent-box
// rows go to user_messages keyed by the receiver's and sender's user id.
package msgstore

import (
	"context"

	"github.com/gocql/gocql"

	"github.com/sususu5/im-server/idgen"
	"github.com/sususu5/im-server/wire"
)

// Store is a gocql-backed message store satisfying msgwriter.BatchStore
// and msgsvc.InboxStore.
type Store struct {
	session *gocql.Session
}

// NewCluster builds a gocql ClusterConfig pointed at hosts in keyspace
// "im", matching the original's single shared Cassandra/Scylla session.
func NewCluster(hosts []string) *gocql.ClusterConfig {
	cluster := gocql.NewCluster(hosts...)
	cluster.Keyspace = "im"
	cluster.Consistency = gocql.Quorum
	return cluster
}

// Open creates a Store from an already-built cluster config.
func Open(cluster *gocql.ClusterConfig) (*Store, error) {
	session, err := cluster.CreateSession()
	if err != nil {
		return nil, err
	}
	return &Store{session: session}, nil
}

const (
	insertConversation = `INSERT INTO messages (conversation_id, timestamp, message_id, sender_id, receiver_id, content_type, content) VALUES (?, ?, ?, ?, ?, ?, ?)`
	insertUserRow      = `INSERT INTO user_messages (user_id, timestamp, message_id, sender_id, receiver_id, content_type, content) VALUES (?, ?, ?, ?, ?, ?, ?)`
	selectInbox        = `SELECT message_id, sender_id, receiver_id, content_type, content, timestamp FROM user_messages WHERE user_id = ? ORDER BY timestamp DESC LIMIT ?`
)

// InsertBatch writes every message in msgs as three rows: one keyed by
// conversation id (history), one keyed by receiver (inbox), one keyed
// by sender (sent-box). Applied as one logical batch via gocql's
// batch API, matching msgwriter's "one batch per logical unit" contract.
func (s *Store) InsertBatch(ctx context.Context, msgs []wire.Message) error {
	batch := s.session.NewBatch(gocql.LoggedBatch).WithContext(ctx)
	for _, m := range msgs {
		convID := idgen.ConversationID(m.SenderID, m.ReceiverID)
		batch.Query(insertConversation, convID, m.Timestamp, m.MsgID, m.SenderID, m.ReceiverID, m.ContentType, m.Content)
		batch.Query(insertUserRow, m.ReceiverID, m.Timestamp, m.MsgID, m.SenderID, m.ReceiverID, m.ContentType, m.Content)
		batch.Query(insertUserRow, m.SenderID, m.Timestamp, m.MsgID, m.SenderID, m.ReceiverID, m.ContentType, m.Content)
	}
	return s.session.ExecuteBatch(batch)
}

// RecentInbox returns up to limit of a user's most recent inbox rows,
// timestamp-descending.
func (s *Store) RecentInbox(ctx context.Context, userID uint64, limit int) ([]wire.Message, error) {
	iter := s.session.Query(selectInbox, userID, limit).WithContext(ctx).Iter()

	var out []wire.Message
	var m wire.Message
	for iter.Scan(&m.MsgID, &m.SenderID, &m.ReceiverID, &m.ContentType, &m.Content, &m.Timestamp) {
		out = append(out, m)
		m = wire.Message{}
	}
	if err := iter.Close(); err != nil {
		return nil, err
	}
	return out, nil
}

// Close releases the session.
func (s *Store) Close() { s.session.Close() }
