package wire

import "encoding/binary"

// Writer appends fixed- and variable-length fields to a growing byte
// slice. Strings and byte blobs are length-prefixed so Reader can walk
// back over them without a schema.
type Writer struct {
	buf []byte
}

func (w *Writer) WriteU64(v uint64) {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	w.buf = append(w.buf, b[:]...)
}

func (w *Writer) WriteI32(v int32) { w.WriteU32(uint32(v)) }

func (w *Writer) WriteU32(v uint32) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	w.buf = append(w.buf, b[:]...)
}

func (w *Writer) WriteBool(v bool) {
	if v {
		w.buf = append(w.buf, 1)
	} else {
		w.buf = append(w.buf, 0)
	}
}

func (w *Writer) WriteString(s string) {
	w.WriteU32(uint32(len(s)))
	w.buf = append(w.buf, s...)
}

func (w *Writer) WriteBytes(b []byte) {
	w.WriteU32(uint32(len(b)))
	w.buf = append(w.buf, b...)
}

// Bytes returns the accumulated payload.
func (w *Writer) Bytes() []byte { return w.buf }

// Reader walks a byte slice produced by Writer, returning ErrTruncated as
// soon as a declared field runs past the end of the buffer.
type Reader struct {
	buf []byte
	pos int
}

func NewReader(buf []byte) *Reader { return &Reader{buf: buf} }

func (r *Reader) ReadU64() (uint64, error) {
	if r.pos+8 > len(r.buf) {
		return 0, ErrTruncated
	}
	v := binary.BigEndian.Uint64(r.buf[r.pos:])
	r.pos += 8
	return v, nil
}

func (r *Reader) ReadU32() (uint32, error) {
	if r.pos+4 > len(r.buf) {
		return 0, ErrTruncated
	}
	v := binary.BigEndian.Uint32(r.buf[r.pos:])
	r.pos += 4
	return v, nil
}

func (r *Reader) ReadI32() (int32, error) {
	v, err := r.ReadU32()
	return int32(v), err
}

func (r *Reader) ReadBool() (bool, error) {
	if r.pos+1 > len(r.buf) {
		return false, ErrTruncated
	}
	v := r.buf[r.pos] != 0
	r.pos++
	return v, nil
}

func (r *Reader) ReadString() (string, error) {
	b, err := r.ReadBytes()
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (r *Reader) ReadBytes() ([]byte, error) {
	n, err := r.ReadU32()
	if err != nil {
		return nil, err
	}
	if r.pos+int(n) > len(r.buf) {
		return nil, ErrTruncated
	}
	b := r.buf[r.pos : r.pos+int(n)]
	r.pos += int(n)
	return b, nil
}
