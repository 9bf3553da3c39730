package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNewSessionDefaults(t *testing.T) {
	s := New(5, "127.0.0.1:9", nil)
	require.Equal(t, Undetermined, s.Protocol)
	require.False(t, s.LoggedIn())
	require.NotEmpty(t, s.TraceID)
}

func TestSetUserIDAndLoggedIn(t *testing.T) {
	s := New(5, "127.0.0.1:9", nil)
	require.False(t, s.LoggedIn())
	s.SetUserID(42)
	require.True(t, s.LoggedIn())
	require.Equal(t, uint64(42), s.UserID())
}

func TestLockProtocolIsSticky(t *testing.T) {
	s := New(5, "127.0.0.1:9", nil)
	s.LockProtocol(HTTP)
	s.LockProtocol(Binary)
	require.Equal(t, HTTP, s.Protocol)
}

func TestTouchAdvancesLastActivity(t *testing.T) {
	s := New(5, "127.0.0.1:9", nil)
	first := s.LastActivity()
	time.Sleep(2 * time.Millisecond)
	s.Touch()
	require.True(t, s.LastActivity().After(first))
}

func TestEnqueueDrainPushOrder(t *testing.T) {
	s := New(5, "127.0.0.1:9", nil)
	s.EnqueuePush([]byte("a"))
	s.EnqueuePush([]byte("b"))
	frames := s.DrainPush()
	require.Equal(t, [][]byte{[]byte("a"), []byte("b")}, frames)
	require.Empty(t, s.DrainPush())
}

func TestRequestWriteReadyInvokesCallback(t *testing.T) {
	calls := 0
	s := New(5, "127.0.0.1:9", func() { calls++ })
	s.RequestWriteReady()
	s.RequestWriteReady()
	require.Equal(t, 2, calls)
}
