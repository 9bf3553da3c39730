// Package session models per-connection state: read/write buffers, the
// protocol lock (undetermined until the first bytes arrive), the
// outbound push queue, and the bound user id. Grounded on
// original_source's TcpConnection, with its ProtocolHandler base class
// replaced by a small sum type per spec.md's design notes §9 rather than
// an interface hierarchy, since exactly two variants exist.
package session

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sys/unix"

	"github.com/sususu5/im-server/buffer"
	"github.com/sususu5/im-server/mpsc"
)

// Protocol identifies which wire protocol a connection has locked onto.
type Protocol int

const (
	Undetermined Protocol = iota
	HTTP
	Binary
)

// Handler is the sum type replacing ProtocolHandler. httpproto sets HTTP
// on a connection's first HTTP request; Binary is never set, as the
// binary handler keeps no per-connection state beyond the shared buffers.
type Handler struct {
	HTTP   *HTTPState
	Binary *BinaryState
}

// HTTPState holds per-connection HTTP/1.1 parser state. The concrete
// fields live in package httpproto; this is an opaque handle so session
// does not import httpproto (which imports session for the connection
// type it operates on).
type HTTPState struct {
	Opaque interface{}
}

// BinaryState holds per-connection binary-protocol state (currently
// none beyond the shared buffers, kept for symmetry and future fields).
type BinaryState struct {
	Opaque interface{}
}

// Session is one accepted connection's full state. Its buffers are
// touched only by the single worker task currently running for this fd
// -- one-shot reactor re-arming is the mutual-exclusion mechanism, so no
// lock guards ReadBuf/WriteBuf. The mutex here protects only the fields
// touched from other goroutines: the bound user id and the last-activity
// time.
type Session struct {
	Fd         int
	RemoteAddr string
	TraceID    string

	ReadBuf  *buffer.Buffer
	WriteBuf *buffer.Buffer

	Protocol Protocol
	Handler  Handler

	Outbound *mpsc.Queue

	// notifyWritable re-arms this connection's fd for EPOLLOUT, set by the
	// server at construction. It is how any goroutine -- a push fan-out, a
	// service callback -- wakes the reactor after enqueuing outbound data,
	// so enqueue and re-arm never race into a lost wake-up.
	notifyWritable func()

	mu           sync.Mutex
	userID       uint64
	lastActivity time.Time

	KeepAlive bool
}

// New creates a Session for a freshly accepted connection. notifyWritable
// is invoked whenever a push enqueues data so the reactor re-arms EPOLLOUT
// for this fd; it may be nil in tests that don't exercise the reactor.
func New(fd int, remoteAddr string, notifyWritable func()) *Session {
	return &Session{
		Fd:             fd,
		RemoteAddr:     remoteAddr,
		TraceID:        uuid.NewString(),
		ReadBuf:        buffer.New(),
		WriteBuf:       buffer.New(),
		Outbound:       mpsc.New(),
		notifyWritable: notifyWritable,
		lastActivity:   time.Now(),
		KeepAlive:      true,
	}
}

// Close releases the underlying socket. Safe to call once the session has
// been removed from every map that could still reach it (the server's
// connection table, the push registry).
func (s *Session) Close() error {
	return unix.Close(s.Fd)
}

// SetUserID binds the session to an authenticated user, as
// TcpConnection::set_user_id does on successful login.
func (s *Session) SetUserID(id uint64) {
	s.mu.Lock()
	s.userID = id
	s.mu.Unlock()
}

// UserID returns the bound user id, or 0 if unauthenticated.
func (s *Session) UserID() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.userID
}

// LoggedIn reports whether the session has completed login.
func (s *Session) LoggedIn() bool { return s.UserID() != 0 }

// Touch records activity, resetting the idle-timeout deadline.
func (s *Session) Touch() {
	s.mu.Lock()
	s.lastActivity = time.Now()
	s.mu.Unlock()
}

// LastActivity returns the last time Touch was called.
func (s *Session) LastActivity() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActivity
}

// LockProtocol sets the connection's protocol exactly once; later calls
// are no-ops, matching "once locked, never changes" (spec.md §8.4).
func (s *Session) LockProtocol(p Protocol) {
	if s.Protocol == Undetermined {
		s.Protocol = p
	}
}

// EnqueuePush appends an already-framed outbound message. Any
// goroutine may call this; the queue itself is lock-free.
func (s *Session) EnqueuePush(frame []byte) {
	s.Outbound.Enqueue(frame)
}

// RequestWriteReady re-arms the connection's fd for EPOLLOUT so the
// reactor delivers a write event for the frame just enqueued. Satisfies
// push.Connection and msgsvc's live-delivery path.
func (s *Session) RequestWriteReady() {
	if s.notifyWritable != nil {
		s.notifyWritable()
	}
}

// DrainPush pulls every currently queued outbound frame, in FIFO order.
func (s *Session) DrainPush() [][]byte {
	var out [][]byte
	for {
		v, ok := s.Outbound.Dequeue()
		if !ok {
			return out
		}
		out = append(out, v.([]byte))
	}
}
