// Package buffer implements a growable read/write byte buffer with
// scatter/gather I/O support, the per-connection building block the
// reactor's read and write paths operate on.
package buffer

import (
	"golang.org/x/sys/unix"
)

// initialSize is the starting capacity of a freshly constructed Buffer.
const initialSize = 1024

// scratchSize is the size of the stack-resident scratch area used by
// ReadFD so a single readv(2) can drain a full TCP window even when the
// buffer itself is undersized.
const scratchSize = 65536

// Buffer is a contiguous backing array with two monotonic cursors,
// readPos <= writePos <= len(buf). It is not safe for concurrent use: the
// reactor's one-shot re-arming guarantees only the currently-running
// connection task ever touches a given Buffer.
type Buffer struct {
	buf      []byte
	readPos  int
	writePos int
}

// New returns a Buffer with the default initial capacity.
func New() *Buffer { return NewSize(initialSize) }

// NewSize returns a Buffer with the given initial capacity.
func NewSize(n int) *Buffer {
	if n <= 0 {
		n = initialSize
	}
	return &Buffer{buf: make([]byte, n)}
}

// Readable returns the number of bytes available to read.
func (b *Buffer) Readable() int { return b.writePos - b.readPos }

// Writable returns the number of bytes that can be written without growing.
func (b *Buffer) Writable() int { return len(b.buf) - b.writePos }

// Prependable returns the number of bytes already retrieved from the front,
// i.e. the space that a compaction could reclaim.
func (b *Buffer) Prependable() int { return b.readPos }

// Peek returns the slice of currently readable bytes. The slice aliases
// the buffer's backing array and is invalidated by any subsequent call
// that grows or compacts the buffer.
func (b *Buffer) Peek() []byte { return b.buf[b.readPos:b.writePos] }

// Retrieve advances the read cursor by n bytes. It panics if n exceeds
// Readable, mirroring the original's assertion-based contract.
func (b *Buffer) Retrieve(n int) {
	if n > b.Readable() {
		panic("buffer: retrieve exceeds readable bytes")
	}
	b.readPos += n
}

// RetrieveAll discards every readable byte and resets both cursors to 0,
// allowing the backing array to be reused from the start.
func (b *Buffer) RetrieveAll() {
	b.readPos = 0
	b.writePos = 0
}

// RetrieveAllToBytes drains the buffer and returns a fresh copy of what
// was readable.
func (b *Buffer) RetrieveAllToBytes() []byte {
	out := make([]byte, b.Readable())
	copy(out, b.Peek())
	b.RetrieveAll()
	return out
}

// ensureWritable grows or compacts the buffer so at least n bytes can be
// appended without further resizing, following the same policy as the
// original: compact in place when prependable+writable space suffices,
// otherwise grow to exactly cover the request.
func (b *Buffer) ensureWritable(n int) {
	if b.Writable() >= n {
		return
	}
	b.makeSpace(n)
}

func (b *Buffer) makeSpace(n int) {
	if b.Writable()+b.Prependable() < n {
		grown := make([]byte, b.writePos+n+1)
		copy(grown, b.buf[:b.writePos])
		b.buf = grown
		return
	}
	readable := b.Readable()
	copy(b.buf, b.buf[b.readPos:b.writePos])
	b.readPos = 0
	b.writePos = readable
}

// Append copies data onto the write cursor, growing the buffer if needed.
func (b *Buffer) Append(data []byte) {
	b.ensureWritable(len(data))
	copy(b.buf[b.writePos:], data)
	b.writePos += len(data)
}

// BeginWrite returns a slice of the writable region for callers that want
// to fill it directly (e.g. a syscall.Read destination) before calling
// HasWritten.
func (b *Buffer) BeginWrite() []byte { return b.buf[b.writePos:] }

// HasWritten advances the write cursor after the caller filled bytes
// returned by BeginWrite directly.
func (b *Buffer) HasWritten(n int) { b.writePos += n }

// ReadFD performs a scatter read from fd into the buffer's writable
// region plus a 64KiB stack scratch area, growing the backing store
// exactly once if the scratch area ended up holding data. Returns the
// number of bytes read (0 with io.EOF-equivalent left to the caller to
// interpret) and any syscall error.
func (b *Buffer) ReadFD(fd int) (int, error) {
	var scratch [scratchSize]byte
	writable := b.Writable()
	if writable == 0 {
		// ensure the first iovec is still well-formed; make_space policy
		// kicks in below via Append once we know how much landed in scratch.
		b.ensureWritable(1)
		writable = b.Writable()
	}

	n, err := unix.Readv(fd, [][]byte{b.buf[b.writePos : b.writePos+writable], scratch[:]})
	if n < 0 {
		n = 0
	}
	if err != nil && n == 0 {
		return 0, err
	}
	if n <= writable {
		b.writePos += n
	} else {
		b.writePos += writable
		b.Append(scratch[:n-writable])
	}
	return n, err
}

// WriteFD drains readable bytes to fd via a single write(2) call,
// advancing the read cursor by however many bytes were accepted.
func (b *Buffer) WriteFD(fd int) (int, error) {
	n, err := unix.Write(fd, b.Peek())
	if n > 0 {
		b.readPos += n
	}
	return n, err
}

// WriteFDv drains readable bytes and extra (e.g. an mmap'd static file
// trailing behind the response headers) to fd as a single writev(2)
// call, the zero-copy send httpproto's PendingFile/ConsumeFile split
// exists for. It returns the total bytes written and, separately, how
// many of those bytes came from extra so the caller can advance that
// slice's own cursor.
func (b *Buffer) WriteFDv(fd int, extra []byte) (written int, extraWritten int, err error) {
	bufLen := b.Readable()
	var iovs [][]byte
	if bufLen > 0 {
		iovs = append(iovs, b.Peek())
	}
	if len(extra) > 0 {
		iovs = append(iovs, extra)
	}
	if len(iovs) == 0 {
		return 0, 0, nil
	}

	n, err := unix.Writev(fd, iovs)
	if n < 0 {
		n = 0
	}
	switch {
	case n <= bufLen:
		b.readPos += n
	default:
		b.readPos = b.writePos
		extraWritten = n - bufLen
	}
	return n, extraWritten, err
}
