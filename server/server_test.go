//go:build linux
// +build linux

package server

import (
	"bytes"
	"context"
	"encoding/binary"
	"net"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sususu5/im-server/auth"
	"github.com/sususu5/im-server/binproto"
	"github.com/sususu5/im-server/config"
	"github.com/sususu5/im-server/friendsvc"
	"github.com/sususu5/im-server/httpproto"
	"github.com/sususu5/im-server/msgsvc"
	"github.com/sususu5/im-server/push"
	"github.com/sususu5/im-server/session"
	"github.com/sususu5/im-server/wire"
)

type fakeUserStore struct{ users map[string]auth.User }

func newFakeUserStore() *fakeUserStore { return &fakeUserStore{users: map[string]auth.User{}} }

func (f *fakeUserStore) Exists(_ context.Context, username string) (bool, error) {
	_, ok := f.users[username]
	return ok, nil
}

func (f *fakeUserStore) Insert(_ context.Context, u auth.User) error {
	f.users[u.Username] = u
	return nil
}

func (f *fakeUserStore) FindByUsername(_ context.Context, username string) (auth.User, error) {
	u, ok := f.users[username]
	if !ok {
		return auth.User{}, auth.ErrUnknownUser
	}
	return u, nil
}

type fakeFriendStore struct{}

func (fakeFriendStore) AddFriend(_ context.Context, _, _ uint64, _ string) (uint64, error) {
	return 1, nil
}
func (fakeFriendStore) HandleFriend(_ context.Context, _, _ uint64, _ bool) error { return nil }
func (fakeFriendStore) GetFriendList(_ context.Context, _ uint64) ([]friendsvc.FriendInfo, error) {
	return nil, nil
}
func (fakeFriendStore) GetPendingRequests(_ context.Context, _ uint64) ([]friendsvc.Edge, error) {
	return nil, nil
}
func (fakeFriendStore) Username(_ context.Context, _ uint64) (string, error) { return "", nil }

type fakeWriter struct{}

func (fakeWriter) Enqueue(wire.Message) {}

type fakeInbox struct{}

func (fakeInbox) RecentInbox(_ context.Context, _ uint64, _ int) ([]wire.Message, error) {
	return nil, nil
}

func newTestServer(t *testing.T) (*Server, context.CancelFunc) {
	return newTestServerCfg(t, config.Config{
		Port:           0,
		EdgeTriggered:  false,
		IdleTimeoutMS:  0,
		WorkerPoolSize: 4,
	}, t.TempDir())
}

func newTestServerCfg(t *testing.T, cfg config.Config, staticRoot string) (*Server, context.CancelFunc) {
	t.Helper()

	userStore := newFakeUserStore()
	authSvc := auth.NewService(userStore, nil, nil, []byte("secret"), "im-server-test")
	friendSvc := friendsvc.NewService(fakeFriendStore{}, nil)
	msgSvc := msgsvc.NewService(fakeWriter{}, nil, fakeInbox{})
	pushSvc := push.NewService()
	dispatcher := binproto.NewDispatcher(authSvc, friendSvc, msgSvc, pushSvc, nil)
	httpProc := httpproto.NewProcessor(staticRoot, nil)

	srv, err := New(cfg, dispatcher, httpProc, pushSvc, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	go srv.Run(ctx)

	t.Cleanup(func() {
		cancel()
		srv.Stop()
	})
	return srv, cancel
}

func writeFrame(t *testing.T, conn net.Conn, env wire.Envelope) {
	t.Helper()
	frame, err := wire.EncodeFrame(env)
	require.NoError(t, err)
	require.NoError(t, conn.SetWriteDeadline(time.Now().Add(2*time.Second)))
	_, err = conn.Write(frame)
	require.NoError(t, err)
}

func readFrame(t *testing.T, conn net.Conn) wire.Envelope {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))

	header := make([]byte, 4)
	_, err := readFull(conn, header)
	require.NoError(t, err)

	body := make([]byte, binary.BigEndian.Uint32(header))
	_, err = readFull(conn, body)
	require.NoError(t, err)

	env, consumed, ready, err := wire.DecodeFrame(append(header, body...))
	require.NoError(t, err)
	require.True(t, ready)
	require.Equal(t, 4+len(body), consumed)
	return env
}

func readFull(conn net.Conn, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := conn.Read(buf[total:])
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

func TestServerAcceptsRegisterAndLoginOverBinaryProtocol(t *testing.T) {
	srv, _ := newTestServer(t)

	addr, err := srv.Addr()
	require.NoError(t, err)

	conn, err := net.DialTimeout("tcp", addr, 2*time.Second)
	require.NoError(t, err)
	defer conn.Close()

	regReq := wire.RegisterReq{Username: "alice", Password: "p"}
	writeFrame(t, conn, wire.Envelope{Cmd: wire.CmdRegisterReq, Seq: 1, Payload: regReq.Marshal()})

	regResp := readFrame(t, conn)
	require.Equal(t, wire.CmdRegisterRes, regResp.Cmd)
	res, err := wire.UnmarshalRegisterRes(regResp.Payload)
	require.NoError(t, err)
	require.True(t, res.Success)

	loginReq := wire.LoginReq{Username: "alice", Password: "p"}
	writeFrame(t, conn, wire.Envelope{Cmd: wire.CmdLoginReq, Seq: 2, Payload: loginReq.Marshal()})

	loginResp := readFrame(t, conn)
	require.Equal(t, wire.CmdLoginRes, loginResp.Cmd)
	login, err := wire.UnmarshalLoginRes(loginResp.Payload)
	require.NoError(t, err)
	require.True(t, login.Success)
	require.Equal(t, res.UserID, login.UserInfo.UserID)
}

func TestServerGatesUnauthenticatedCommand(t *testing.T) {
	srv, _ := newTestServer(t)

	addr, err := srv.Addr()
	require.NoError(t, err)

	conn, err := net.DialTimeout("tcp", addr, 2*time.Second)
	require.NoError(t, err)
	defer conn.Close()

	writeFrame(t, conn, wire.Envelope{Cmd: wire.CmdGetFriendListReq, Seq: 5})

	resp := readFrame(t, conn)
	require.Equal(t, wire.CmdGetFriendListRes, resp.Cmd)
	require.Equal(t, uint64(5), resp.Seq)
	require.Empty(t, resp.Payload)
}

func TestServerKeepsHTTPConnectionAliveAcrossRequests(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "index.html"), []byte("hello world"), 0o644))

	srv, _ := newTestServerCfg(t, config.Config{
		Port:           0,
		EdgeTriggered:  false,
		IdleTimeoutMS:  0,
		WorkerPoolSize: 4,
	}, root)

	addr, err := srv.Addr()
	require.NoError(t, err)

	conn, err := net.DialTimeout("tcp", addr, 2*time.Second)
	require.NoError(t, err)
	defer conn.Close()

	for i := 0; i < 2; i++ {
		_, err = conn.Write([]byte("GET / HTTP/1.1\r\nConnection: keep-alive\r\n\r\n"))
		require.NoError(t, err)

		resp := readHTTPResponse(t, conn)
		require.Contains(t, resp, "200 OK")
		require.Contains(t, resp, "hello world")
	}
}

func readHTTPResponse(t *testing.T, conn net.Conn) string {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))

	var raw []byte
	buf := make([]byte, 512)
	for {
		n, err := conn.Read(buf)
		raw = append(raw, buf[:n]...)
		require.NoError(t, err)

		headerEnd := bytes.Index(raw, []byte("\r\n\r\n"))
		if headerEnd < 0 {
			continue
		}
		m := regexp.MustCompile(`Content-Length: (\d+)`).FindSubmatch(raw)
		require.NotNil(t, m)
		length, err := strconv.Atoi(string(m[1]))
		require.NoError(t, err)
		if len(raw) >= headerEnd+4+length {
			return string(raw[:headerEnd+4+length])
		}
	}
}

func TestServerReapsIdleConnection(t *testing.T) {
	srv, _ := newTestServerCfg(t, config.Config{
		Port:           0,
		EdgeTriggered:  false,
		IdleTimeoutMS:  100,
		WorkerPoolSize: 4,
	}, t.TempDir())

	addr, err := srv.Addr()
	require.NoError(t, err)

	conn, err := net.DialTimeout("tcp", addr, 2*time.Second)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	buf := make([]byte, 1)
	_, err = conn.Read(buf)
	require.Error(t, err) // closed by the idle timer, well before the deadline
}

func TestDetectProtocolLocksOnFirstBytes(t *testing.T) {
	cases := []struct {
		first string
		want  session.Protocol
	}{
		{"GET ", session.HTTP},
		{"POST", session.HTTP},
		{"HEAD", session.HTTP},
		{"PUT ", session.HTTP},
		{"DELE", session.HTTP},
		{"\x00\x00\x00\x12", session.Binary},
		{"ABCD", session.Binary},
	}
	for _, tc := range cases {
		proto, ok := detectProtocol([]byte(tc.first))
		require.True(t, ok, tc.first)
		require.Equal(t, tc.want, proto, tc.first)
	}

	_, ok := detectProtocol([]byte("GE"))
	require.False(t, ok)
}

func TestServerStopClosesConnections(t *testing.T) {
	srv, cancel := newTestServer(t)

	addr, err := srv.Addr()
	require.NoError(t, err)

	conn, err := net.DialTimeout("tcp", addr, 2*time.Second)
	require.NoError(t, err)
	defer conn.Close()

	cancel()
	srv.Stop()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	buf := make([]byte, 1)
	_, err = conn.Read(buf)
	require.Error(t, err)
}
