// Package msgwriter implements the async batched storage writer: a
// single background goroutine draining an MPSC queue in batches of up
// to 100, retrying a failed batch with exponential backoff (50ms
// doubling to 1s cap, 3 retries) before dropping it with a log entry.
// Grounded on original_source/server/src/dao/async_msg_writer.{h,cpp}.
package msgwriter

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/sususu5/im-server/mpsc"
	"github.com/sususu5/im-server/wire"
)

const (
	batchSize  = 100
	maxRetries = 3
	baseWait   = 50 * time.Millisecond
	maxWait    = time.Second
	idleWait   = time.Millisecond
)

// BatchStore persists one logical batch of messages, e.g. into all
// three wide-column rows (conversation/inbox/sentbox) per message.
type BatchStore interface {
	InsertBatch(ctx context.Context, msgs []wire.Message) error
}

// Writer is the async batched writer.
type Writer struct {
	queue   *mpsc.Queue
	store   BatchStore
	log     *zap.Logger
	done    chan struct{}
	stopped chan struct{}
}

// New constructs a Writer. Start must be called to begin draining.
func New(store BatchStore, log *zap.Logger) *Writer {
	return &Writer{
		queue:   mpsc.New(),
		store:   store,
		log:     log,
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
}

// Enqueue hands a message to the writer. Never blocks.
func (w *Writer) Enqueue(msg wire.Message) {
	w.queue.Enqueue(msg)
}

// Start runs the worker loop in a new goroutine.
func (w *Writer) Start(ctx context.Context) {
	go w.workerLoop(ctx)
}

// Stop signals the worker to flush remaining items and return. Blocks
// until the worker has drained the queue.
func (w *Writer) Stop() {
	close(w.done)
	<-w.stopped
}

func (w *Writer) workerLoop(ctx context.Context) {
	defer close(w.stopped)
	for {
		select {
		case <-w.done:
			w.drainRemaining(ctx)
			return
		default:
		}

		batch := w.dequeueBatch()
		if len(batch) == 0 {
			time.Sleep(idleWait)
			continue
		}
		w.writeBatchWithRetry(ctx, batch)
	}
}

func (w *Writer) drainRemaining(ctx context.Context) {
	for !w.queue.Empty() {
		batch := w.dequeueBatch()
		if len(batch) == 0 {
			return
		}
		w.writeBatchWithRetry(ctx, batch)
	}
}

func (w *Writer) dequeueBatch() []wire.Message {
	raw := w.queue.DequeueBulk(batchSize)
	if len(raw) == 0 {
		return nil
	}
	batch := make([]wire.Message, len(raw))
	for i, v := range raw {
		batch[i] = v.(wire.Message)
	}
	return batch
}

func (w *Writer) writeBatchWithRetry(ctx context.Context, batch []wire.Message) {
	wait := baseWait
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if err := w.store.InsertBatch(ctx, batch); err == nil {
			return
		} else if attempt == maxRetries {
			w.log.Error("failed to insert message batch", zap.Int("count", len(batch)), zap.Error(err))
			return
		} else {
			w.log.Warn("batch insert failed, retrying",
				zap.Int("attempt", attempt+1), zap.Int("max_retries", maxRetries), zap.Duration("wait", wait))
			time.Sleep(wait)
			wait *= 2
			if wait > maxWait {
				wait = maxWait
			}
		}
	}
}
