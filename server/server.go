//go:build linux
// +build linux

// Package server wires the reactor, worker pool, idle timer, and the two
// protocol dispatchers into the accept/read/write lifecycle described by
// original_source/server/src/core/webserver.{h,cpp}: a single goroutine
// owns Reactor.Wait, every readable/writable fd is handed to the worker
// pool, and one-shot re-arming is the only synchronization a connection's
// buffers need.
package server

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sys/unix"

	"github.com/sususu5/im-server/binproto"
	"github.com/sususu5/im-server/config"
	"github.com/sususu5/im-server/gaio"
	"github.com/sususu5/im-server/httpproto"
	"github.com/sususu5/im-server/imlog"
	"github.com/sususu5/im-server/push"
	"github.com/sususu5/im-server/session"
	"github.com/sususu5/im-server/timer"
	"github.com/sususu5/im-server/workerpool"
)

// maxFD bounds simultaneously tracked connections, matching
// TcpConnection::user_count's comparison against MAX_FD in dealListen_.
const maxFD = 65536

// listenBacklog matches the literal listen(listenFd_, 8) in initSocket_.
const listenBacklog = 8

// maxPollMS bounds how long Reactor.Wait blocks when no idle timer entry
// is pending, so ctx cancellation and Stop are noticed promptly even on
// an otherwise quiet server.
const maxPollMS = 1000

// Server owns one listening socket and every connection accepted on it.
type Server struct {
	cfg config.Config

	reactor *gaio.Reactor
	pool    *workerpool.Pool
	ht      *timer.HeapTimer

	bin     *binproto.Dispatcher
	http    *httpproto.Processor
	pushSvc *push.Service
	log     *imlog.Logger

	listenFd int
	trig     gaio.Trigger

	mu    sync.Mutex
	conns map[int]*session.Session

	closing atomic.Bool
	runCtx  context.Context
}

// New binds the listening socket and constructs the reactor, worker pool,
// and idle timer, but does not start serving; call Run to do that.
func New(cfg config.Config, bin *binproto.Dispatcher, httpProc *httpproto.Processor, pushSvc *push.Service, log *imlog.Logger) (*Server, error) {
	listenFd, err := listen(cfg.Port)
	if err != nil {
		return nil, err
	}

	reactor, err := gaio.NewReactor()
	if err != nil {
		unix.Close(listenFd)
		return nil, err
	}

	// The listen fd always stays level-triggered so a burst of connects
	// arriving between two accept4 calls is never silently missed --
	// initEventMode_ leaves listenEvent_'s EPOLLET bit off in trigMode 0
	// and 1, and the accept-until-EAGAIN loop in dealListen_ covers the
	// other two, so level-triggering here is always safe to fall back to.
	if err := reactor.Add(listenFd, uint32(gaio.EventRead), gaio.LevelTriggered, false); err != nil {
		reactor.Close()
		unix.Close(listenFd)
		return nil, err
	}

	trig := gaio.LevelTriggered
	if cfg.EdgeTriggered {
		trig = gaio.EdgeTriggered
	}

	s := &Server{
		cfg:      cfg,
		reactor:  reactor,
		pool:     workerpool.New(cfg.WorkerPoolSize, cfg.WorkerPoolSize*4),
		ht:       timer.New(),
		bin:      bin,
		http:     httpProc,
		pushSvc:  pushSvc,
		log:      log,
		listenFd: listenFd,
		trig:     trig,
		conns:    make(map[int]*session.Session),
	}
	s.ht.SetCallback(s.onIdleTimeout)
	return s, nil
}

// Run drives the reactor loop until ctx is canceled or Stop is called.
func (s *Server) Run(ctx context.Context) error {
	s.runCtx = ctx
	defer s.pool.Shutdown()

	if s.log != nil {
		s.log.Info("server: listening on port %d (edge-triggered=%v)", s.cfg.Port, s.cfg.EdgeTriggered)
	}

	for {
		if s.closing.Load() {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		waitMS := maxPollMS
		if s.cfg.IdleTimeoutMS > 0 {
			if d := s.ht.NextDelay(); d >= 0 {
				if ms := int(d / time.Millisecond); ms < waitMS {
					waitMS = ms
				}
			}
		}

		events, err := s.reactor.Wait(waitMS)
		if err != nil {
			if s.closing.Load() {
				return nil
			}
			return err
		}

		for _, ev := range events {
			switch {
			case ev.Fd == s.listenFd:
				s.acceptLoop()
			case ev.ErrorOrHangup():
				s.closeConnByFd(ev.Fd)
			case ev.Readable():
				s.dealRead(ev.Fd)
			case ev.Writable():
				s.dealWrite(ev.Fd)
			}
		}
	}
}

// Stop closes the listening socket and every tracked connection, and
// waits for in-flight worker tasks to finish. Safe to call more than
// once and safe to call concurrently with Run.
func (s *Server) Stop() {
	if !s.closing.CompareAndSwap(false, true) {
		return
	}

	_ = s.reactor.Close()
	_ = unix.Close(s.listenFd)

	s.mu.Lock()
	conns := make([]*session.Session, 0, len(s.conns))
	for _, c := range s.conns {
		conns = append(conns, c)
	}
	s.conns = make(map[int]*session.Session)
	s.mu.Unlock()

	for _, c := range conns {
		if c.LoggedIn() && s.pushSvc != nil {
			s.pushSvc.RemoveClient(c.UserID())
		}
		_ = c.Close()
	}
	s.pool.Shutdown()
}

// Addr reports the listening socket's bound address, resolving an
// ephemeral port (cfg.Port == 0, used by tests) to the one the kernel
// actually assigned.
func (s *Server) Addr() (string, error) {
	sa, err := unix.Getsockname(s.listenFd)
	if err != nil {
		return "", err
	}
	addr4, ok := sa.(*unix.SockaddrInet4)
	if !ok {
		return "", fmt.Errorf("server: unexpected sockaddr type %T", sa)
	}
	return net.JoinHostPort("127.0.0.1", strconv.Itoa(addr4.Port)), nil
}

// listen replicates initSocket_: socket, SO_REUSEADDR, bind, listen with
// a backlog of 8, then switch to non-blocking for the reactor to own.
func listen(port int) (int, error) {
	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM, 0)
	if err != nil {
		return -1, err
	}
	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		unix.Close(fd)
		return -1, err
	}
	addr := &unix.SockaddrInet4{Port: port}
	if err := unix.Bind(fd, addr); err != nil {
		unix.Close(fd)
		return -1, err
	}
	if err := unix.Listen(fd, listenBacklog); err != nil {
		unix.Close(fd)
		return -1, err
	}
	if err := unix.SetNonblock(fd, true); err != nil {
		unix.Close(fd)
		return -1, err
	}
	return fd, nil
}
