package push

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sususu5/im-server/friendsvc"
	"github.com/sususu5/im-server/wire"
)

type fakeConn struct {
	frames     [][]byte
	rearmCalls int
}

func (c *fakeConn) EnqueuePush(frame []byte) { c.frames = append(c.frames, frame) }
func (c *fakeConn) RequestWriteReady()       { c.rearmCalls++ }

func TestPushToOnlineUserEnqueuesFramedEnvelope(t *testing.T) {
	svc := NewService()
	conn := &fakeConn{}
	svc.AddClient(7, conn)

	svc.PushFriendRequest(7, 1, 2, "bob", "hi")
	require.Len(t, conn.frames, 1)
	require.Equal(t, 1, conn.rearmCalls)

	_, consumed, ready, err := wire.DecodeFrame(conn.frames[0])
	require.NoError(t, err)
	require.True(t, ready)
	require.Equal(t, len(conn.frames[0]), consumed)
}

func TestPushToOfflineUserIsDropped(t *testing.T) {
	svc := NewService()
	svc.PushFriendRequest(7, 1, 2, "bob", "hi")
	_, ok := svc.lookup(7)
	require.False(t, ok)
}

func TestRemoveClientStopsDelivery(t *testing.T) {
	svc := NewService()
	conn := &fakeConn{}
	svc.AddClient(3, conn)
	svc.RemoveClient(3)

	svc.PushP2PMessage(wire.Message{ReceiverID: 3, Content: []byte("hi")})
	require.Empty(t, conn.frames)
}

func TestPushFriendStatusAndP2PMessage(t *testing.T) {
	svc := NewService()
	conn := &fakeConn{}
	svc.AddClient(1, conn)

	svc.PushFriendStatus(1, 2, "alice", friendsvc.Accepted)
	svc.PushP2PMessage(wire.Message{SenderID: 2, ReceiverID: 1, Content: []byte("hello")})
	require.Len(t, conn.frames, 2)
}
