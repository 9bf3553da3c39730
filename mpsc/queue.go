// Package mpsc implements an unbounded multi-producer single-consumer
// queue with a sentinel node and CAS-based enqueue, the same structure as
// the original server's core/mpsc_queue.h. Producers never block; the
// sole consumer dequeues lock-free.
package mpsc

import "sync/atomic"

type node struct {
	value interface{}
	next  atomic.Pointer[node]
}

// Queue is a lock-free MPSC queue. The zero value is not usable; use New.
type Queue struct {
	head atomic.Pointer[node]
	tail atomic.Pointer[node]
}

// New returns an empty Queue.
func New() *Queue {
	dummy := &node{}
	q := &Queue{}
	q.head.Store(dummy)
	q.tail.Store(dummy)
	return q
}

// Enqueue appends v. Safe to call concurrently from any number of
// producer goroutines.
func (q *Queue) Enqueue(v interface{}) {
	n := &node{value: v}
	for {
		tail := q.tail.Load()
		next := tail.next.Load()
		if tail != q.tail.Load() {
			continue
		}
		if next == nil {
			if tail.next.CompareAndSwap(nil, n) {
				q.tail.CompareAndSwap(tail, n)
				return
			}
		} else {
			// tail has fallen behind; help advance it before retrying.
			q.tail.CompareAndSwap(tail, next)
		}
	}
}

// Dequeue removes and returns the oldest value. ok is false if the queue
// was empty. Only a single goroutine may call Dequeue/DequeueBulk at a
// time.
func (q *Queue) Dequeue() (v interface{}, ok bool) {
	head := q.head.Load()
	next := head.next.Load()
	if next == nil {
		return nil, false
	}
	v = next.value
	next.value = nil
	q.head.Store(next)
	return v, true
}

// DequeueBulk extracts up to max items in FIFO order and returns them as
// a slice (empty if the queue was empty). Used by the async message writer to batch storage
// writes.
func (q *Queue) DequeueBulk(max int) []interface{} {
	out := make([]interface{}, 0, max)
	for len(out) < max {
		v, ok := q.Dequeue()
		if !ok {
			break
		}
		out = append(out, v)
	}
	return out
}

// Empty reports whether the queue currently has no elements. Racy by
// nature in the presence of concurrent producers; intended only as a
// hint (e.g. to decide whether to keep draining at shutdown).
func (q *Queue) Empty() bool {
	head := q.head.Load()
	return head.next.Load() == nil
}
