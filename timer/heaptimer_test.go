package timer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestHeapInvariantAfterAddAdjustCancel(t *testing.T) {
	ht := New()
	ht.Add(1, 50*time.Millisecond)
	ht.Add(2, 10*time.Millisecond)
	ht.Add(3, 30*time.Millisecond)
	ht.Adjust(1, 5*time.Millisecond)
	ht.Cancel(2)

	require.Equal(t, 2, ht.Len())

	for i, n := range ht.heap {
		require.Equal(t, i, n.idx)
		ref, ok := ht.ref[n.id]
		require.True(t, ok)
		require.Equal(t, n, ref)
	}
	for i := 1; i < len(ht.heap); i++ {
		parent := (i - 1) / 2
		require.False(t, ht.heap[i].expires.Before(ht.heap[parent].expires))
	}
}

func TestTickFiresExpiredOnly(t *testing.T) {
	ht := New()
	var fired []int
	ht.SetCallback(func(id int) { fired = append(fired, id) })

	ht.Add(1, 10*time.Millisecond)
	ht.Add(2, time.Hour)

	time.Sleep(20 * time.Millisecond)
	ht.Tick()

	require.Equal(t, []int{1}, fired)
	require.Equal(t, 1, ht.Len())
}

func TestNextDelayEmpty(t *testing.T) {
	ht := New()
	require.Equal(t, time.Duration(-1), ht.NextDelay())
}
