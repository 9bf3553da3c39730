// Package binproto implements the binary envelope handler: frame
// decoding, command dispatch, and response encoding. Grounded on
// original_source/server/src/handler/protobuf_handler.cpp, generalized
// from its protobuf oneof dispatch to wire's hand-rolled TLV payloads
// (codegen for the original .proto schema is out of scope per spec.md
// §1) and from its raw conn_->is_logged_in()/RequireAuth gate to
// session.Session.LoggedIn.
package binproto

import (
	"context"
	"time"

	"github.com/sususu5/im-server/auth"
	"github.com/sususu5/im-server/friendsvc"
	"github.com/sususu5/im-server/imlog"
	"github.com/sususu5/im-server/msgsvc"
	"github.com/sususu5/im-server/push"
	"github.com/sususu5/im-server/session"
	"github.com/sususu5/im-server/wire"
)

// OnlineRegistry is the slice of push.Service the binary handler needs
// to bind a freshly logged-in user's connection for fan-out delivery.
type OnlineRegistry interface {
	AddClient(userID uint64, conn push.Connection)
}

// Dispatcher wires the three domain services to the wire protocol.
type Dispatcher struct {
	Auth     *auth.Service
	Friends  *friendsvc.Service
	Messages *msgsvc.Service
	Online   OnlineRegistry
	Log      *imlog.Logger
}

// NewDispatcher constructs a Dispatcher. log may be nil in tests.
func NewDispatcher(a *auth.Service, f *friendsvc.Service, m *msgsvc.Service, online OnlineRegistry, log *imlog.Logger) *Dispatcher {
	return &Dispatcher{Auth: a, Friends: f, Messages: m, Online: online, Log: log}
}

// Process decodes and dispatches every complete frame currently buffered
// in sess.ReadBuf, appending a response frame to sess.WriteBuf for each
// request that produces one. It returns true if at least one response
// frame was produced, so the caller knows to re-arm for EPOLLOUT
// (spec.md §4.14).
func (d *Dispatcher) Process(ctx context.Context, sess *session.Session) bool {
	wrote := false
	for {
		env, consumed, ready, err := wire.DecodeFrame(sess.ReadBuf.Peek())
		if !ready {
			if consumed > 0 {
				// Protocol error: an oversized length prefix consumes only
				// the 4-byte header, a malformed payload consumes its whole
				// frame; parsing resumes on the next bytes, per spec.md §7/§8 S3.
				sess.ReadBuf.Retrieve(consumed)
				if d.Log != nil {
					d.Log.Warn("binproto: dropping malformed frame: %v", err)
				}
				continue
			}
			return wrote
		}
		sess.ReadBuf.Retrieve(consumed)

		resp, hasResp, after := d.dispatch(ctx, sess, env)
		if !hasResp {
			if after != nil {
				after()
			}
			continue
		}
		frame, err := wire.EncodeFrame(resp)
		if err != nil {
			if d.Log != nil {
				d.Log.Error("binproto: failed to encode response cmd=%d: %v", resp.Cmd, err)
			}
			continue
		}
		sess.WriteBuf.Append(frame)
		wrote = true
		// after runs once the response bytes are queued, e.g. login's
		// catch-up friend-request push (auth.Service.Login's doc comment:
		// respond first, push after).
		if after != nil {
			after()
		}
	}
}

// dispatch returns the response envelope (if any), whether a response
// should be sent, and an optional side effect to run immediately after
// the response frame has been appended to sess.WriteBuf.
func (d *Dispatcher) dispatch(ctx context.Context, sess *session.Session, env wire.Envelope) (wire.Envelope, bool, func()) {
	switch env.Cmd {
	case wire.CmdHeartbeat:
		// Idle timer is already reset by the caller on any read activity;
		// heartbeat carries no response (spec.md §6).
		return wire.Envelope{}, false, nil
	case wire.CmdRegisterReq:
		resp, ok := d.handleRegister(ctx, env)
		return resp, ok, nil
	case wire.CmdLoginReq:
		return d.handleLogin(ctx, sess, env)
	case wire.CmdAddFriendReq:
		if resp, blocked := d.gate(sess, env, wire.CmdAddFriendRes); blocked {
			return resp, true, nil
		}
		resp, ok := d.handleAddFriend(ctx, sess, env)
		return resp, ok, nil
	case wire.CmdHandleFriendReq:
		if resp, blocked := d.gate(sess, env, wire.CmdHandleFriendRes); blocked {
			return resp, true, nil
		}
		resp, ok := d.handleHandleFriend(ctx, sess, env)
		return resp, ok, nil
	case wire.CmdGetFriendListReq:
		if resp, blocked := d.gate(sess, env, wire.CmdGetFriendListRes); blocked {
			return resp, true, nil
		}
		resp, ok := d.handleGetFriendList(ctx, sess, env)
		return resp, ok, nil
	case wire.CmdP2PMsgReq:
		if resp, blocked := d.gate(sess, env, wire.CmdMsgAck); blocked {
			return resp, true, nil
		}
		resp, ok := d.handleP2PMsg(sess, env)
		return resp, ok, nil
	case wire.CmdSyncMsgsReq:
		if resp, blocked := d.gate(sess, env, wire.CmdSyncMsgsRes); blocked {
			return resp, true, nil
		}
		resp, ok := d.handleSyncMsgs(ctx, sess, env)
		return resp, ok, nil
	default:
		return wire.Envelope{}, false, nil
	}
}

// gate enforces spec.md §6's authentication rule: any command other than
// REGISTER/LOGIN on a connection with no bound user id yields a response
// envelope carrying the matching RES cmd and no payload.
func (d *Dispatcher) gate(sess *session.Session, env wire.Envelope, respCmd wire.Cmd) (wire.Envelope, bool) {
	if sess.LoggedIn() {
		return wire.Envelope{}, false
	}
	return wire.Envelope{Cmd: respCmd, Seq: env.Seq, Timestamp: nowUnix()}, true
}

func nowUnix() uint64 { return uint64(time.Now().Unix()) }
