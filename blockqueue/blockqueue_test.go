package blockqueue

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestPushPopOrder(t *testing.T) {
	q := New(2)
	q.PushBack("a")
	q.PushBack("b")
	require.True(t, q.Full())

	item, ok := q.Pop(time.Second)
	require.True(t, ok)
	require.Equal(t, "a", item)

	item, ok = q.Pop(time.Second)
	require.True(t, ok)
	require.Equal(t, "b", item)
}

func TestPopTimeout(t *testing.T) {
	q := New(1)
	start := time.Now()
	_, ok := q.Pop(20 * time.Millisecond)
	require.False(t, ok)
	require.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
}

func TestCloseWakesWaitersAndDrains(t *testing.T) {
	q := New(4)
	q.PushBack("pending")

	done := make(chan struct{})
	go func() {
		defer close(done)
		item, ok := q.Pop(0)
		require.True(t, ok)
		require.Equal(t, "pending", item)

		_, ok = q.Pop(0)
		require.False(t, ok)
	}()

	q.Close()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Pop did not wake up after Close")
	}
}

func TestPushBackAfterCloseIsNoop(t *testing.T) {
	q := New(1)
	q.Close()
	q.PushBack("dropped")
	require.Equal(t, 0, q.Len())
}
