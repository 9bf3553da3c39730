package binproto

import (
	"context"

	"github.com/sususu5/im-server/friendsvc"
	"github.com/sususu5/im-server/session"
	"github.com/sususu5/im-server/wire"
)

func (d *Dispatcher) handleRegister(ctx context.Context, env wire.Envelope) (wire.Envelope, bool) {
	req, err := wire.UnmarshalRegisterReq(env.Payload)
	if err != nil {
		return d.badRequest(env, wire.CmdRegisterRes)
	}
	result, err := d.Auth.Register(ctx, req.Username, req.Password)
	if err != nil && d.Log != nil {
		d.Log.Error("binproto: register failed for %q: %v", req.Username, err)
	}
	res := wire.RegisterRes{Success: result.Success, UserID: result.UserID, ErrorMsg: result.ErrorMsg}
	return wire.Envelope{Cmd: wire.CmdRegisterRes, Seq: env.Seq, Timestamp: nowUnix(), Payload: res.Marshal()}, true
}

func (d *Dispatcher) handleLogin(ctx context.Context, sess *session.Session, env wire.Envelope) (wire.Envelope, bool, func()) {
	req, err := wire.UnmarshalLoginReq(env.Payload)
	if err != nil {
		resp, ok := d.badRequest(env, wire.CmdLoginRes)
		return resp, ok, nil
	}
	result, err := d.Auth.Login(ctx, req.Username, req.Password)
	if err != nil && d.Log != nil {
		d.Log.Error("binproto: login failed for %q: %v", req.Username, err)
	}

	res := wire.LoginRes{
		Success:  result.Success,
		Token:    result.Token,
		ErrorMsg: result.ErrorMsg,
		UserInfo: wire.UserInfo{UserID: result.UserID, Username: result.Username},
	}
	envelope := wire.Envelope{Cmd: wire.CmdLoginRes, Seq: env.Seq, Timestamp: nowUnix(), Payload: res.Marshal()}

	if !result.Success {
		return envelope, true, nil
	}
	sess.SetUserID(result.UserID)
	if d.Online != nil {
		d.Online.AddClient(result.UserID, sess)
	}
	return envelope, true, func() {
		if err := d.Auth.PushPendingFriendRequests(ctx, result.UserID); err != nil && d.Log != nil {
			d.Log.Error("binproto: pending friend push failed for user %d: %v", result.UserID, err)
		}
	}
}

func (d *Dispatcher) handleAddFriend(ctx context.Context, sess *session.Session, env wire.Envelope) (wire.Envelope, bool) {
	req, err := wire.UnmarshalAddFriendReq(env.Payload)
	if err != nil {
		return d.badRequest(env, wire.CmdAddFriendRes)
	}
	result, err := d.Friends.AddFriend(ctx, sess.UserID(), req.ReceiverID, req.VerifyMsg)
	if err != nil && d.Log != nil {
		d.Log.Error("binproto: add friend failed: %v", err)
	}
	res := wire.AddFriendRes{Success: result.Success, ErrorMsg: result.ErrorMsg}
	return wire.Envelope{Cmd: wire.CmdAddFriendRes, Seq: env.Seq, Timestamp: nowUnix(), Payload: res.Marshal()}, true
}

func (d *Dispatcher) handleHandleFriend(ctx context.Context, sess *session.Session, env wire.Envelope) (wire.Envelope, bool) {
	req, err := wire.UnmarshalHandleFriendReq(env.Payload)
	if err != nil {
		return d.badRequest(env, wire.CmdHandleFriendRes)
	}
	action := friendsvc.Accept
	if req.Action == wire.ActionReject {
		action = friendsvc.Reject
	}
	result, err := d.Friends.HandleFriend(ctx, sess.UserID(), req.SenderID, action)
	if err != nil && d.Log != nil {
		d.Log.Error("binproto: handle friend failed: %v", err)
	}
	res := wire.HandleFriendRes{Success: result.Success, SenderID: result.SenderID, ErrorMsg: result.ErrorMsg}
	return wire.Envelope{Cmd: wire.CmdHandleFriendRes, Seq: env.Seq, Timestamp: nowUnix(), Payload: res.Marshal()}, true
}

func (d *Dispatcher) handleGetFriendList(ctx context.Context, sess *session.Session, env wire.Envelope) (wire.Envelope, bool) {
	result, err := d.Friends.GetFriendList(ctx, sess.UserID())
	if err != nil && d.Log != nil {
		d.Log.Error("binproto: get friend list failed: %v", err)
	}
	friends := make([]wire.FriendInfo, 0, len(result.Friends))
	for _, f := range result.Friends {
		friends = append(friends, wire.FriendInfo{UserID: f.UserID, Username: f.Username, Status: wire.FriendAccepted})
	}
	res := wire.GetFriendListRes{Success: result.Success, Friends: friends, ErrorMsg: result.ErrorMsg}
	return wire.Envelope{Cmd: wire.CmdGetFriendListRes, Seq: env.Seq, Timestamp: nowUnix(), Payload: res.Marshal()}, true
}

func (d *Dispatcher) handleP2PMsg(sess *session.Session, env wire.Envelope) (wire.Envelope, bool) {
	req, err := wire.UnmarshalP2PMsgReq(env.Payload)
	if err != nil {
		return d.badRequest(env, wire.CmdMsgAck)
	}
	ack := d.Messages.SendP2P(sess.UserID(), req.Message)
	res := wire.MsgAck{MsgID: ack.MsgID, Success: ack.Success, RefSeq: env.Seq, ErrorMsg: ack.ErrorMsg}
	return wire.Envelope{Cmd: wire.CmdMsgAck, Seq: env.Seq, Timestamp: nowUnix(), Payload: res.Marshal()}, true
}

func (d *Dispatcher) handleSyncMsgs(ctx context.Context, sess *session.Session, env wire.Envelope) (wire.Envelope, bool) {
	result, err := d.Messages.SyncMessages(ctx, sess.UserID())
	if err != nil && d.Log != nil {
		d.Log.Error("binproto: sync messages failed: %v", err)
	}
	res := wire.SyncMsgsRes{Success: result.Success, Messages: result.Messages, ErrorMsg: result.ErrorMsg}
	return wire.Envelope{Cmd: wire.CmdSyncMsgsRes, Seq: env.Seq, Timestamp: nowUnix(), Payload: res.Marshal()}, true
}

// badRequest builds an empty-payload failure response for a request that
// failed to decode, reusing respCmd's Success=false shape where the
// caller already knows the concrete type isn't needed byte-for-byte.
func (d *Dispatcher) badRequest(env wire.Envelope, respCmd wire.Cmd) (wire.Envelope, bool) {
	return wire.Envelope{Cmd: respCmd, Seq: env.Seq, Timestamp: nowUnix()}, true
}
