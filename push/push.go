// Package push maps online user ids to their active session and fans
// out server-initiated envelopes to them. Grounded on
// original_source/server/src/service/push_service.cpp: a mutex guards
// only the map; the recipient's outbound queue is lock-free (session's
// MPSC queue), and delivery to an offline user is silently dropped --
// offline delivery is via message-store sync on next login.
package push

import (
	"sync"
	"time"

	"github.com/sususu5/im-server/friendsvc"
	"github.com/sususu5/im-server/wire"
)

// Connection is the slice of *session.Session push needs: enough to
// enqueue a pre-framed envelope and wake the reactor for write
// readiness. Kept as an interface so push does not import session;
// server wires the two together.
type Connection interface {
	EnqueuePush(frame []byte)
	RequestWriteReady()
}

// Service is the online-user registry and push fan-out point.
type Service struct {
	mu     sync.Mutex
	online map[uint64]Connection
}

// NewService returns an empty push registry.
func NewService() *Service {
	return &Service{online: make(map[uint64]Connection)}
}

// AddClient registers a connection as the delivery target for userID,
// called at successful login.
func (s *Service) AddClient(userID uint64, conn Connection) {
	s.mu.Lock()
	s.online[userID] = conn
	s.mu.Unlock()
}

// RemoveClient unregisters userID, called at disconnect.
func (s *Service) RemoveClient(userID uint64) {
	s.mu.Lock()
	delete(s.online, userID)
	s.mu.Unlock()
}

func (s *Service) lookup(userID uint64) (Connection, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	conn, ok := s.online[userID]
	return conn, ok
}

// send frames env and enqueues it on target's outbound queue if online;
// a no-op otherwise. Frames are length-prefixed at enqueue time, never
// re-framed on flush (SPEC_FULL.md §5).
func (s *Service) send(target uint64, env wire.Envelope) {
	conn, ok := s.lookup(target)
	if !ok {
		return
	}
	frame, err := wire.EncodeFrame(env)
	if err != nil {
		return
	}
	conn.EnqueuePush(frame)
	conn.RequestWriteReady()
}

// PushFriendRequest delivers FRIEND_REQ_PUSH to receiverID.
func (s *Service) PushFriendRequest(receiverID uint64, reqID, senderID uint64, senderName, verifyMsg string) {
	payload := wire.FriendReqPush{ReqID: reqID, SenderID: senderID, SenderName: senderName, VerifyMsg: verifyMsg}
	s.send(receiverID, wire.Envelope{
		Cmd:       wire.CmdFriendReqPush,
		Seq:       0,
		Timestamp: uint64(time.Now().Unix()),
		Payload:   payload.Marshal(),
	})
}

// PushFriendStatus delivers FRIEND_STATUS_PUSH to senderID, reporting
// how friendID resolved the request.
func (s *Service) PushFriendStatus(senderID uint64, friendID uint64, friendName string, status friendsvc.Status) {
	payload := wire.FriendStatusPush{FriendID: friendID, FriendName: friendName, Status: wire.FriendStatus(status)}
	s.send(senderID, wire.Envelope{
		Cmd:       wire.CmdFriendStatusPush,
		Seq:       0,
		Timestamp: uint64(time.Now().Unix()),
		Payload:   payload.Marshal(),
	})
}

// PushP2PMessage delivers P2P_MSG_PUSH to msg.ReceiverID.
func (s *Service) PushP2PMessage(msg wire.Message) {
	payload := wire.P2PMsgPush{Message: msg}
	s.send(msg.ReceiverID, wire.Envelope{
		Cmd:       wire.CmdP2PMsgPush,
		Seq:       0,
		Timestamp: uint64(time.Now().Unix()),
		Payload:   payload.Marshal(),
	})
}
