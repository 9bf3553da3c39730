//go:build linux
// +build linux

// Package gaio is the event-driven I/O reactor at the core of the im-server
// connection pipeline. It wraps the kernel readiness multiplexer (epoll) the
// way github.com/xtaci/gaio wraps its poller internally: a small, mutex-free
// hot path around syscall batches, with one-shot re-arming left to the
// caller so the fd's readiness IS the connection's mutual-exclusion
// mechanism (at most one goroutine ever services a given fd at a time).
package gaio

import (
	"errors"
	"sync"

	"golang.org/x/sys/unix"
)

// Trigger selects whether registered fds are level- or edge-triggered.
type Trigger int

const (
	// LevelTriggered re-delivers readiness every Wait call until drained.
	LevelTriggered Trigger = iota
	// EdgeTriggered delivers readiness once per state transition; callers
	// must drain until EAGAIN and must re-arm (Mod) before the next event.
	EdgeTriggered
)

// Event flags, mirroring the EPOLL* bits a caller cares about without
// leaking the syscall package into callers that don't need it.
const (
	EventRead  = unix.EPOLLIN
	EventWrite = unix.EPOLLOUT
	EventError = unix.EPOLLERR | unix.EPOLLHUP | unix.EPOLLRDHUP
)

// ErrReactorClosed is returned by Reactor methods after Close.
var ErrReactorClosed = errors.New("gaio: reactor closed")

// Event is one readiness notification delivered by Wait.
type Event struct {
	Fd     int
	Events uint32
}

func (e Event) Readable() bool { return e.Events&uint32(EventRead) != 0 }
func (e Event) Writable() bool { return e.Events&uint32(EventWrite) != 0 }
func (e Event) ErrorOrHangup() bool {
	return e.Events&uint32(EventError) != 0
}

// Reactor wraps a single epoll instance. All methods are safe for
// concurrent use; Wait is expected to be called from a single dedicated
// goroutine (the server's reactor thread, per spec), while Add/Mod/Del may
// be called from worker goroutines re-arming a connection they just
// finished servicing.
type Reactor struct {
	epfd int

	mu     sync.Mutex
	closed bool

	// double-buffered raw event scratch, echoing the swap-buffer idiom
	// used for gaio's internal read buffer: avoids reallocating on every
	// Wait call while still handing the caller a stable slice.
	raw     [2][]unix.EpollEvent
	rawIdx  int
	results []Event
}

// NewReactor creates an epoll-backed Reactor sized for up to maxEvents
// simultaneous ready fds per Wait call (the same batch-processing idea
// gaio uses to amortize syscall overhead across many tiny events).
func NewReactor() (*Reactor, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, err
	}
	r := &Reactor{epfd: epfd}
	r.raw[0] = make([]unix.EpollEvent, maxEvents)
	r.raw[1] = make([]unix.EpollEvent, maxEvents)
	r.results = make([]Event, 0, maxEvents)
	return r, nil
}

// Add registers fd for the given event mask. trig selects edge- or
// level-triggering; oneshot additionally sets EPOLLONESHOT so the fd must
// be re-armed via Mod after every delivered event.
func (r *Reactor) Add(fd int, events uint32, trig Trigger, oneshot bool) error {
	return r.ctl(unix.EPOLL_CTL_ADD, fd, events, trig, oneshot)
}

// Mod re-arms fd for the given event mask. Used both to switch a
// connection between read-interest and write-interest and, under
// one-shot semantics, to re-enable delivery after each event.
func (r *Reactor) Mod(fd int, events uint32, trig Trigger, oneshot bool) error {
	return r.ctl(unix.EPOLL_CTL_MOD, fd, events, trig, oneshot)
}

// Del removes fd from the interest set. The kernel does this
// automatically on close(2), but calling it explicitly avoids racing a
// reused fd number against a stale registration.
func (r *Reactor) Del(fd int) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return ErrReactorClosed
	}
	r.mu.Unlock()
	err := unix.EpollCtl(r.epfd, unix.EPOLL_CTL_DEL, fd, nil)
	if err != nil && err != unix.ENOENT {
		return err
	}
	return nil
}

func (r *Reactor) ctl(op int, fd int, events uint32, trig Trigger, oneshot bool) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return ErrReactorClosed
	}
	r.mu.Unlock()

	if trig == EdgeTriggered {
		events |= unix.EPOLLET
	}
	if oneshot {
		events |= unix.EPOLLONESHOT
	}
	ev := unix.EpollEvent{Events: events, Fd: int32(fd)}
	return unix.EpollCtl(r.epfd, op, fd, &ev)
}

// Wait blocks until at least one fd is ready, timeoutMS elapses (-1 blocks
// forever, 0 polls), or an unrecoverable error occurs. The returned slice
// is only valid until the next call to Wait.
func (r *Reactor) Wait(timeoutMS int) ([]Event, error) {
	buf := r.raw[r.rawIdx]
	r.rawIdx = (r.rawIdx + 1) % len(r.raw)

	var n int
	var err error
	for {
		n, err = unix.EpollWait(r.epfd, buf, timeoutMS)
		if err == unix.EINTR {
			continue
		}
		break
	}
	if err != nil {
		return nil, err
	}

	r.results = r.results[:0]
	for i := 0; i < n; i++ {
		r.results = append(r.results, Event{
			Fd:     int(buf[i].Fd),
			Events: buf[i].Events,
		})
	}
	return r.results, nil
}

// Close releases the underlying epoll fd. Any blocked Wait call returns an
// error once the fd is closed out from under it.
func (r *Reactor) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	r.mu.Unlock()
	return unix.Close(r.epfd)
}
