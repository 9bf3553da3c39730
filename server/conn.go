//go:build linux
// +build linux

package server

import (
	"bytes"
	"net"
	"strconv"
	"time"

	"golang.org/x/sys/unix"

	"github.com/sususu5/im-server/gaio"
	"github.com/sususu5/im-server/httpproto"
	"github.com/sususu5/im-server/session"
)

// httpPrefixes are the four-byte request-line prefixes a connection's
// first bytes are checked against to decide HTTP vs. the binary
// envelope protocol. Anything that doesn't match one of these is
// assumed to be a binary frame.
var httpPrefixes = [][]byte{
	[]byte("GET "), []byte("POST"), []byte("HEAD"),
	[]byte("PUT "), []byte("DELE"),
}

// acceptLoop drains every pending connection on the listen fd, matching
// dealListen_'s accept-until-EAGAIN loop. A single call is enough
// regardless of trigger mode: level-triggered delivery re-fires on any
// connection left unaccepted, and edge-triggered delivery requires
// draining to EAGAIN exactly once per readiness notification.
func (s *Server) acceptLoop() {
	for {
		nfd, sa, err := unix.Accept4(s.listenFd, unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC)
		if err != nil {
			if err != unix.EAGAIN {
				if s.log != nil {
					s.log.Warn("server: accept failed: %v", err)
				}
			}
			return
		}

		s.mu.Lock()
		full := len(s.conns) >= maxFD
		s.mu.Unlock()
		if full {
			sendBusy(nfd)
			if s.log != nil {
				s.log.Warn("server: connection table full, rejecting fd %d", nfd)
			}
			continue
		}

		s.addClient(nfd, remoteAddrString(sa))
	}
}

// sendBusy mirrors sendError_'s "Server busy!" rejection for a
// connection that arrived once the table is already at capacity.
func sendBusy(fd int) {
	_, _ = unix.Write(fd, []byte("Server busy!"))
	_ = unix.Close(fd)
}

func (s *Server) addClient(fd int, remoteAddr string) {
	sess := session.New(fd, remoteAddr, func() { s.requestWrite(fd) })

	s.mu.Lock()
	s.conns[fd] = sess
	s.mu.Unlock()

	if err := s.reactor.Add(fd, uint32(gaio.EventRead), s.trig, true); err != nil {
		s.mu.Lock()
		delete(s.conns, fd)
		s.mu.Unlock()
		unix.Close(fd)
		return
	}

	if s.cfg.IdleTimeoutMS > 0 {
		s.ht.Add(fd, time.Duration(s.cfg.IdleTimeoutMS)*time.Millisecond)
	}

	if s.log != nil {
		s.log.Info("server: client[%d] in from %s", fd, remoteAddr)
	}
}

// requestWrite re-arms fd for EPOLLOUT from any goroutine that just
// enqueued outbound data -- a push fan-out, a sibling worker -- without
// racing the connection's own read/write cycle, since Mod only ever
// changes the interest mask and is safe to call concurrently with Wait.
func (s *Server) requestWrite(fd int) {
	s.mu.Lock()
	_, ok := s.conns[fd]
	s.mu.Unlock()
	if !ok {
		return
	}
	_ = s.reactor.Mod(fd, uint32(gaio.EventRead|gaio.EventWrite), s.trig, true)
}

func (s *Server) dealRead(fd int) {
	if s.cfg.IdleTimeoutMS > 0 {
		s.ht.Adjust(fd, time.Duration(s.cfg.IdleTimeoutMS)*time.Millisecond)
	}
	s.pool.Submit(func() { s.onRead(fd) })
}

func (s *Server) dealWrite(fd int) {
	if s.cfg.IdleTimeoutMS > 0 {
		s.ht.Adjust(fd, time.Duration(s.cfg.IdleTimeoutMS)*time.Millisecond)
	}
	s.pool.Submit(func() { s.onWrite(fd) })
}

// onRead matches onRead_: a read that produced nothing and wasn't
// merely EAGAIN means the peer is gone, so the connection closes.
// Anything else advances to onProcess. Under edge triggering the fd is
// read until EAGAIN (or EOF) before processing.
func (s *Server) onRead(fd int) {
	sess := s.lookup(fd)
	if sess == nil {
		return
	}

	var n int
	var err error
	for {
		var got int
		got, err = sess.ReadBuf.ReadFD(fd)
		n += got
		if err != nil || got == 0 || s.trig != gaio.EdgeTriggered {
			break
		}
	}
	if err != nil && err != unix.EAGAIN {
		s.closeConn(sess)
		return
	}
	if n == 0 && err == nil {
		s.closeConn(sess)
		return
	}

	sess.Touch()
	s.onProcess(sess)
}

// onProcess locks the connection's protocol on its first bytes, then
// dispatches to the matching handler. Matches onProcess_'s modFd
// branch on the handler's return value: a response queued means
// switch to EPOLLOUT, otherwise stay on EPOLLIN.
func (s *Server) onProcess(sess *session.Session) {
	if sess.Protocol == session.Undetermined {
		proto, ok := detectProtocol(sess.ReadBuf.Peek())
		if !ok {
			s.rearm(sess, uint32(gaio.EventRead))
			return
		}
		sess.LockProtocol(proto)
	}

	var wrote bool
	switch sess.Protocol {
	case session.Binary:
		wrote = s.bin.Process(s.runCtx, sess)
	case session.HTTP:
		wrote = s.http.Process(s.runCtx, sess)
	}

	if wrote {
		s.rearm(sess, uint32(gaio.EventRead|gaio.EventWrite))
		return
	}
	s.rearm(sess, uint32(gaio.EventRead))
}

func detectProtocol(buf []byte) (session.Protocol, bool) {
	if len(buf) < 4 {
		return session.Undetermined, false
	}
	prefix := buf[:4]
	for _, p := range httpPrefixes {
		if bytes.Equal(prefix, p) {
			return session.HTTP, true
		}
	}
	return session.Binary, true
}

// onWrite matches onWrite_: flush what's queued, then decide whether to
// stay armed for more writing, fall back to reading (keep-alive), or
// close. HTTP sessions additionally drain a pending mmap'd file through
// the same writev(2) call as the header bytes.
func (s *Server) onWrite(fd int) {
	sess := s.lookup(fd)
	if sess == nil {
		return
	}

	if sess.Protocol == session.Binary {
		for _, frame := range sess.DrainPush() {
			sess.WriteBuf.Append(frame)
		}
	}

	var err error
	if sess.Protocol == session.HTTP {
		extra := httpproto.PendingFile(sess)
		var extraWritten int
		_, extraWritten, err = sess.WriteBuf.WriteFDv(fd, extra)
		if extraWritten > 0 {
			httpproto.ConsumeFile(sess, extraWritten)
		}
	} else {
		_, err = sess.WriteBuf.WriteFD(fd)
	}

	if err != nil && err != unix.EAGAIN {
		s.closeConn(sess)
		return
	}
	if err == unix.EAGAIN {
		s.rearm(sess, uint32(gaio.EventRead|gaio.EventWrite))
		return
	}

	pending := sess.WriteBuf.Readable() > 0 || len(httpproto.PendingFile(sess)) > 0
	if pending {
		s.rearm(sess, uint32(gaio.EventRead|gaio.EventWrite))
		return
	}
	if !sess.KeepAlive {
		s.closeConn(sess)
		return
	}
	s.rearm(sess, uint32(gaio.EventRead))
}

func (s *Server) rearm(sess *session.Session, events uint32) {
	if err := s.reactor.Mod(sess.Fd, events, s.trig, true); err != nil {
		s.closeConn(sess)
	}
}

func (s *Server) closeConn(sess *session.Session) {
	s.mu.Lock()
	delete(s.conns, sess.Fd)
	s.mu.Unlock()

	s.ht.Cancel(sess.Fd)
	_ = s.reactor.Del(sess.Fd)
	if sess.LoggedIn() && s.pushSvc != nil {
		s.pushSvc.RemoveClient(sess.UserID())
	}
	_ = sess.Close()

	if s.log != nil {
		s.log.Info("server: client[%d] quit", sess.Fd)
	}
}

func (s *Server) closeConnByFd(fd int) {
	sess := s.lookup(fd)
	if sess == nil {
		_ = unix.Close(fd)
		return
	}
	s.closeConn(sess)
}

// onIdleTimeout is HeapTimer's callback, invoked for any fd whose
// deadline elapsed without an intervening dealRead/dealWrite adjusting
// it -- the same eviction path as Webserver's timer->add/adjust pair
// feeding closeConn_.
func (s *Server) onIdleTimeout(fd int) {
	s.closeConnByFd(fd)
}

func (s *Server) lookup(fd int) *session.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conns[fd]
}

func remoteAddrString(sa unix.Sockaddr) string {
	addr4, ok := sa.(*unix.SockaddrInet4)
	if !ok {
		return ""
	}
	ip := net.IPv4(addr4.Addr[0], addr4.Addr[1], addr4.Addr[2], addr4.Addr[3])
	return net.JoinHostPort(ip.String(), strconv.Itoa(addr4.Port))
}
