// Package wire implements the binary frame codec and command envelope
// shapes of the IM wire protocol: a 4-byte big-endian length prefix
// followed by a serialized envelope. Codegen for the original protobuf
// schema is out of scope, so envelopes are encoded with a small
// hand-written TLV scheme instead of a generated marshaler.
package wire

import "errors"

// Cmd identifies an envelope's payload shape.
type Cmd uint16

const (
	CmdRegisterReq Cmd = iota + 1
	CmdRegisterRes
	CmdLoginReq
	CmdLoginRes
	CmdAddFriendReq
	CmdAddFriendRes
	CmdHandleFriendReq
	CmdHandleFriendRes
	CmdGetFriendListReq
	CmdGetFriendListRes
	CmdP2PMsgReq
	CmdMsgAck
	CmdSyncMsgsReq
	CmdSyncMsgsRes
	CmdHeartbeat
	CmdFriendReqPush
	CmdFriendStatusPush
	CmdP2PMsgPush
)

// MaxFrameLen is the largest payload a frame may carry; larger length
// prefixes are treated as a protocol error.
const MaxFrameLen = 1 << 20

// ErrFrameTooLarge is returned by DecodeFrame when a length prefix exceeds
// MaxFrameLen.
var ErrFrameTooLarge = errors.New("wire: frame exceeds max length")

// ErrTruncated is returned by field decoders when a buffer ends before a
// declared field is fully present.
var ErrTruncated = errors.New("wire: truncated payload")

// Envelope is the top-level message: a command code, a correlation
// sequence (pushes carry seq=0), a unix-seconds timestamp, and a
// command-specific payload.
type Envelope struct {
	Cmd       Cmd
	Seq       uint64
	Timestamp uint64
	Payload   []byte
}

// FriendStatus mirrors the friendship edge status enum.
type FriendStatus int32

const (
	FriendPending FriendStatus = iota
	FriendAccepted
	FriendRejected
)

// FriendAction is the accept/reject decision carried by HandleFriendReq.
type FriendAction int32

const (
	ActionAccept FriendAction = iota
	ActionReject
)
