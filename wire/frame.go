package wire

import "encoding/binary"

const frameHeaderLen = 4

// EncodeFrame serializes env and prefixes it with its big-endian length.
func EncodeFrame(env Envelope) ([]byte, error) {
	body := encodeEnvelope(env)
	if len(body) > MaxFrameLen {
		return nil, ErrFrameTooLarge
	}
	out := make([]byte, frameHeaderLen+len(body))
	binary.BigEndian.PutUint32(out, uint32(len(body)))
	copy(out[frameHeaderLen:], body)
	return out, nil
}

// DecodeFrame attempts to pull one complete frame off the front of buf. It
// returns the decoded envelope, the number of bytes consumed, and a ready
// flag: false means "not enough bytes yet, don't consume." A length prefix
// over MaxFrameLen is a protocol error: the 4-byte header is consumed so
// the caller can resynchronize and continue parsing later bytes.
func DecodeFrame(buf []byte) (env Envelope, consumed int, ready bool, err error) {
	if len(buf) < frameHeaderLen {
		return Envelope{}, 0, false, nil
	}
	length := binary.BigEndian.Uint32(buf)
	if length > MaxFrameLen {
		return Envelope{}, frameHeaderLen, false, ErrFrameTooLarge
	}
	total := frameHeaderLen + int(length)
	if len(buf) < total {
		return Envelope{}, 0, false, nil
	}
	env, err = decodeEnvelope(buf[frameHeaderLen:total])
	if err != nil {
		return Envelope{}, total, false, err
	}
	return env, total, true, nil
}

func encodeEnvelope(env Envelope) []byte {
	out := make([]byte, 2+8+8+len(env.Payload))
	binary.BigEndian.PutUint16(out, uint16(env.Cmd))
	binary.BigEndian.PutUint64(out[2:], env.Seq)
	binary.BigEndian.PutUint64(out[10:], env.Timestamp)
	copy(out[18:], env.Payload)
	return out
}

func decodeEnvelope(buf []byte) (Envelope, error) {
	if len(buf) < 18 {
		return Envelope{}, ErrTruncated
	}
	env := Envelope{
		Cmd:       Cmd(binary.BigEndian.Uint16(buf)),
		Seq:       binary.BigEndian.Uint64(buf[2:]),
		Timestamp: binary.BigEndian.Uint64(buf[10:]),
	}
	if len(buf) > 18 {
		env.Payload = append([]byte(nil), buf[18:]...)
	}
	return env, nil
}
