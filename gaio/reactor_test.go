//go:build linux
// +build linux

package gaio

import (
	"net"
	"testing"
	"time"
)

func fd(conn net.Conn) int {
	// net.TCPConn.File() dup()s the descriptor; cheap enough for tests.
	tc := conn.(*net.TCPConn)
	f, err := tc.File()
	if err != nil {
		panic(err)
	}
	return int(f.Fd())
}

func TestReactorAddWaitEcho(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()

	r, err := NewReactor()
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()

	accepted := make(chan net.Conn, 1)
	go func() {
		c, err := ln.Accept()
		if err != nil {
			return
		}
		accepted <- c
	}()

	cliConn, err := net.Dial("tcp", ln.Addr().String())
	if err != nil {
		t.Fatal(err)
	}
	defer cliConn.Close()

	srvConn := <-accepted
	defer srvConn.Close()

	srvFd := fd(srvConn)
	if err := r.Add(srvFd, uint32(EventRead), LevelTriggered, true); err != nil {
		t.Fatal(err)
	}

	if _, err := cliConn.Write([]byte("ping")); err != nil {
		t.Fatal(err)
	}

	events, err := r.Wait(1000)
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 1 || events[0].Fd != srvFd || !events[0].Readable() {
		t.Fatalf("unexpected events: %+v", events)
	}

	if err := r.Mod(srvFd, uint32(EventRead), LevelTriggered, true); err != nil {
		t.Fatal(err)
	}
	if err := r.Del(srvFd); err != nil {
		t.Fatal(err)
	}
}

func TestReactorWaitTimeout(t *testing.T) {
	r, err := NewReactor()
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()

	start := time.Now()
	events, err := r.Wait(50)
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 0 {
		t.Fatalf("expected no events, got %+v", events)
	}
	if time.Since(start) < 40*time.Millisecond {
		t.Fatalf("Wait returned too early: %v", time.Since(start))
	}
}
