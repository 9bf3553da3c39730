// Package msgsvc implements P2P message send and inbox sync. Grounded
// on original_source/server/src/service/msg_service.cpp: the ack is
// returned synchronously once the message is handed to the async
// writer, not once it is durably stored (spec.md §4.10) -- clients
// treat the ack as "accepted for delivery."
package msgsvc

import (
	"context"
	"errors"

	"github.com/sususu5/im-server/wire"
)

// ErrEmptySender is returned when sender id is zero.
var ErrEmptySender = errors.New("msgsvc: sender id is empty")

// ErrEmptyReceiver is returned when receiver id is zero.
var ErrEmptyReceiver = errors.New("msgsvc: receiver id is empty")

// ErrEmptyTimestamp is returned when timestamp is zero.
var ErrEmptyTimestamp = errors.New("msgsvc: timestamp is empty")

// ErrEmptyMsgID is returned when the client-assigned message id is zero.
var ErrEmptyMsgID = errors.New("msgsvc: message id is empty")

const syncLimit = 500

// Writer hands a message off to the async batched writer; Enqueue never
// blocks on storage.
type Writer interface {
	Enqueue(msg wire.Message)
}

// Pusher is the slice of push.Service msgsvc needs.
type Pusher interface {
	PushP2PMessage(msg wire.Message)
}

// InboxStore reads the synchronous inbox-sync path; writes go through
// Writer, not directly through this interface.
type InboxStore interface {
	RecentInbox(ctx context.Context, userID uint64, limit int) ([]wire.Message, error)
}

// Service implements SendP2P and SyncMessages.
type Service struct {
	writer Writer
	pusher Pusher
	inbox  InboxStore
}

// NewService constructs a msgsvc Service.
func NewService(writer Writer, pusher Pusher, inbox InboxStore) *Service {
	return &Service{writer: writer, pusher: pusher, inbox: inbox}
}

// Ack mirrors the MsgAck wire payload.
type Ack struct {
	MsgID    uint64
	Success  bool
	RefSeq   uint64
	ErrorMsg string
}

// SendP2P validates the message, enqueues it for durable storage, and
// pushes it live to the receiver if online. The ack is synchronous;
// storage is not.
func (s *Service) SendP2P(senderID uint64, msg wire.Message) Ack {
	if senderID == 0 {
		return Ack{Success: false, ErrorMsg: ErrEmptySender.Error()}
	}
	if msg.ReceiverID == 0 {
		return Ack{Success: false, ErrorMsg: ErrEmptyReceiver.Error()}
	}
	if msg.Timestamp == 0 {
		return Ack{Success: false, ErrorMsg: ErrEmptyTimestamp.Error()}
	}
	if msg.MsgID == 0 {
		return Ack{Success: false, ErrorMsg: ErrEmptyMsgID.Error()}
	}

	msg.SenderID = senderID
	s.writer.Enqueue(msg)

	if s.pusher != nil {
		s.pusher.PushP2PMessage(msg)
	}

	return Ack{MsgID: msg.MsgID, Success: true, RefSeq: 0}
}

// SyncResult mirrors the SyncMsgsRes wire payload.
type SyncResult struct {
	Success  bool
	Messages []wire.Message
	ErrorMsg string
}

// SyncMessages returns the most recent syncLimit inbox entries for a
// user, timestamp-descending (spec.md §8 S1).
func (s *Service) SyncMessages(ctx context.Context, userID uint64) (SyncResult, error) {
	msgs, err := s.inbox.RecentInbox(ctx, userID, syncLimit)
	if err != nil {
		return SyncResult{Success: false, ErrorMsg: "internal database error"}, err
	}
	return SyncResult{Success: true, Messages: msgs}, nil
}
