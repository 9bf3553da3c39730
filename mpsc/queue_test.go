package mpsc

import (
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEnqueueDequeueOrder(t *testing.T) {
	q := New()
	require.True(t, q.Empty())

	for i := 0; i < 5; i++ {
		q.Enqueue(i)
	}
	require.False(t, q.Empty())

	for i := 0; i < 5; i++ {
		v, ok := q.Dequeue()
		require.True(t, ok)
		require.Equal(t, i, v)
	}
	_, ok := q.Dequeue()
	require.False(t, ok)
}

func TestDequeueBulk(t *testing.T) {
	q := New()
	for i := 0; i < 10; i++ {
		q.Enqueue(i)
	}
	batch := q.DequeueBulk(4)
	require.Equal(t, []interface{}{0, 1, 2, 3}, batch)
	require.Equal(t, 6, len(q.DequeueBulk(100)))
}

func TestConcurrentProducersSingleConsumer(t *testing.T) {
	q := New()
	const producers = 8
	const perProducer = 1000

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(base int) {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				q.Enqueue(base*perProducer + i)
			}
		}(p)
	}
	wg.Wait()

	var got []int
	for {
		v, ok := q.Dequeue()
		if !ok {
			break
		}
		got = append(got, v.(int))
	}
	require.Equal(t, producers*perProducer, len(got))
	sort.Ints(got)
	for i, v := range got {
		require.Equal(t, i, v)
	}
}
