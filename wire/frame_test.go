package wire

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFrameRoundTrip(t *testing.T) {
	env := Envelope{
		Cmd:       CmdLoginReq,
		Seq:       7,
		Timestamp: 1717000000,
		Payload:   LoginReq{Username: "alice", Password: "p"}.Marshal(),
	}
	frame, err := EncodeFrame(env)
	require.NoError(t, err)

	got, consumed, ready, err := DecodeFrame(frame)
	require.NoError(t, err)
	require.True(t, ready)
	require.Equal(t, len(frame), consumed)
	require.Equal(t, env.Cmd, got.Cmd)
	require.Equal(t, env.Seq, got.Seq)
	require.Equal(t, env.Timestamp, got.Timestamp)

	req, err := UnmarshalLoginReq(got.Payload)
	require.NoError(t, err)
	require.Equal(t, "alice", req.Username)
	require.Equal(t, "p", req.Password)
}

func TestDecodeFrameNotReady(t *testing.T) {
	env := Envelope{Cmd: CmdHeartbeat, Seq: 1}
	frame, err := EncodeFrame(env)
	require.NoError(t, err)

	_, consumed, ready, err := DecodeFrame(frame[:len(frame)-1])
	require.NoError(t, err)
	require.False(t, ready)
	require.Equal(t, 0, consumed)
}

func TestDecodeFrameSplitAcrossReads(t *testing.T) {
	env := Envelope{
		Cmd:     CmdP2PMsgReq,
		Seq:     3,
		Payload: P2PMsgReq{Message: Message{MsgID: 42, Content: []byte("hello")}}.Marshal(),
	}
	frame, err := EncodeFrame(env)
	require.NoError(t, err)

	var buf []byte
	var decoded Envelope
	var ready bool
	for _, b := range frame {
		buf = append(buf, b)
		d, consumed, r, err := DecodeFrame(buf)
		require.NoError(t, err)
		if r {
			decoded, ready = d, r
			require.Equal(t, len(frame), consumed)
		}
	}
	require.True(t, ready)
	msg, err := UnmarshalP2PMsgReq(decoded.Payload)
	require.NoError(t, err)
	require.Equal(t, uint64(42), msg.MsgID)
	require.Equal(t, []byte("hello"), msg.Content)
}

func TestDecodeFrameOversized(t *testing.T) {
	buf := make([]byte, 8)
	buf[0] = 0xFF
	buf[1] = 0xFF
	buf[2] = 0xFF
	buf[3] = 0xFF
	_, consumed, ready, err := DecodeFrame(buf)
	require.ErrorIs(t, err, ErrFrameTooLarge)
	require.False(t, ready)
	require.Equal(t, 4, consumed)
}

func TestGetFriendListRoundTrip(t *testing.T) {
	res := GetFriendListRes{
		Success: true,
		Friends: []FriendInfo{
			{UserID: 1, Username: "a", Status: FriendAccepted},
			{UserID: 2, Username: "b", Status: FriendPending},
		},
	}
	got, err := UnmarshalGetFriendListRes(res.Marshal())
	require.NoError(t, err)
	require.Equal(t, res, got)
}
