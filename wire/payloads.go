package wire

// UserInfo is the public-facing user summary attached to LoginRes.
type UserInfo struct {
	UserID   uint64
	Username string
	Status   int32
}

func (u UserInfo) marshal(w *Writer) {
	w.WriteU64(u.UserID)
	w.WriteString(u.Username)
	w.WriteI32(u.Status)
}

func unmarshalUserInfo(r *Reader) (UserInfo, error) {
	var u UserInfo
	var err error
	if u.UserID, err = r.ReadU64(); err != nil {
		return u, err
	}
	if u.Username, err = r.ReadString(); err != nil {
		return u, err
	}
	if u.Status, err = r.ReadI32(); err != nil {
		return u, err
	}
	return u, nil
}

// FriendInfo is one row of a GetFriendListRes.
type FriendInfo struct {
	UserID   uint64
	Username string
	Status   FriendStatus
}

// Message is a single stored or in-flight P2P message.
type Message struct {
	MsgID       uint64
	SenderID    uint64
	ReceiverID  uint64
	ContentType int32
	Content     []byte
	Timestamp   uint64
}

func (m Message) marshal(w *Writer) {
	w.WriteU64(m.MsgID)
	w.WriteU64(m.SenderID)
	w.WriteU64(m.ReceiverID)
	w.WriteI32(m.ContentType)
	w.WriteBytes(m.Content)
	w.WriteU64(m.Timestamp)
}

func unmarshalMessage(r *Reader) (Message, error) {
	var m Message
	var err error
	if m.MsgID, err = r.ReadU64(); err != nil {
		return m, err
	}
	if m.SenderID, err = r.ReadU64(); err != nil {
		return m, err
	}
	if m.ReceiverID, err = r.ReadU64(); err != nil {
		return m, err
	}
	if m.ContentType, err = r.ReadI32(); err != nil {
		return m, err
	}
	if m.Content, err = r.ReadBytes(); err != nil {
		return m, err
	}
	m.Content = append([]byte(nil), m.Content...)
	if m.Timestamp, err = r.ReadU64(); err != nil {
		return m, err
	}
	return m, nil
}

type RegisterReq struct {
	Username string
	Password string
}

func (p RegisterReq) Marshal() []byte {
	var w Writer
	w.WriteString(p.Username)
	w.WriteString(p.Password)
	return w.Bytes()
}

func UnmarshalRegisterReq(buf []byte) (RegisterReq, error) {
	r := NewReader(buf)
	var p RegisterReq
	var err error
	if p.Username, err = r.ReadString(); err != nil {
		return p, err
	}
	if p.Password, err = r.ReadString(); err != nil {
		return p, err
	}
	return p, nil
}

type RegisterRes struct {
	Success  bool
	UserID   uint64
	ErrorMsg string
}

func (p RegisterRes) Marshal() []byte {
	var w Writer
	w.WriteBool(p.Success)
	w.WriteU64(p.UserID)
	w.WriteString(p.ErrorMsg)
	return w.Bytes()
}

func UnmarshalRegisterRes(buf []byte) (RegisterRes, error) {
	r := NewReader(buf)
	var p RegisterRes
	var err error
	if p.Success, err = r.ReadBool(); err != nil {
		return p, err
	}
	if p.UserID, err = r.ReadU64(); err != nil {
		return p, err
	}
	if p.ErrorMsg, err = r.ReadString(); err != nil {
		return p, err
	}
	return p, nil
}

type LoginReq struct {
	Username string
	Password string
}

func (p LoginReq) Marshal() []byte {
	var w Writer
	w.WriteString(p.Username)
	w.WriteString(p.Password)
	return w.Bytes()
}

func UnmarshalLoginReq(buf []byte) (LoginReq, error) {
	r := NewReader(buf)
	var p LoginReq
	var err error
	if p.Username, err = r.ReadString(); err != nil {
		return p, err
	}
	if p.Password, err = r.ReadString(); err != nil {
		return p, err
	}
	return p, nil
}

type LoginRes struct {
	Success  bool
	Token    string
	UserInfo UserInfo
	ErrorMsg string
}

func (p LoginRes) Marshal() []byte {
	var w Writer
	w.WriteBool(p.Success)
	w.WriteString(p.Token)
	p.UserInfo.marshal(&w)
	w.WriteString(p.ErrorMsg)
	return w.Bytes()
}

func UnmarshalLoginRes(buf []byte) (LoginRes, error) {
	r := NewReader(buf)
	var p LoginRes
	var err error
	if p.Success, err = r.ReadBool(); err != nil {
		return p, err
	}
	if p.Token, err = r.ReadString(); err != nil {
		return p, err
	}
	if p.UserInfo, err = unmarshalUserInfo(r); err != nil {
		return p, err
	}
	if p.ErrorMsg, err = r.ReadString(); err != nil {
		return p, err
	}
	return p, nil
}

type AddFriendReq struct {
	ReceiverID uint64
	VerifyMsg  string
}

func (p AddFriendReq) Marshal() []byte {
	var w Writer
	w.WriteU64(p.ReceiverID)
	w.WriteString(p.VerifyMsg)
	return w.Bytes()
}

func UnmarshalAddFriendReq(buf []byte) (AddFriendReq, error) {
	r := NewReader(buf)
	var p AddFriendReq
	var err error
	if p.ReceiverID, err = r.ReadU64(); err != nil {
		return p, err
	}
	if p.VerifyMsg, err = r.ReadString(); err != nil {
		return p, err
	}
	return p, nil
}

type AddFriendRes struct {
	Success  bool
	ErrorMsg string
}

func (p AddFriendRes) Marshal() []byte {
	var w Writer
	w.WriteBool(p.Success)
	w.WriteString(p.ErrorMsg)
	return w.Bytes()
}

func UnmarshalAddFriendRes(buf []byte) (AddFriendRes, error) {
	r := NewReader(buf)
	var p AddFriendRes
	var err error
	if p.Success, err = r.ReadBool(); err != nil {
		return p, err
	}
	if p.ErrorMsg, err = r.ReadString(); err != nil {
		return p, err
	}
	return p, nil
}

type HandleFriendReq struct {
	ReqID    uint64
	SenderID uint64
	Action   FriendAction
}

func (p HandleFriendReq) Marshal() []byte {
	var w Writer
	w.WriteU64(p.ReqID)
	w.WriteU64(p.SenderID)
	w.WriteI32(int32(p.Action))
	return w.Bytes()
}

func UnmarshalHandleFriendReq(buf []byte) (HandleFriendReq, error) {
	r := NewReader(buf)
	var p HandleFriendReq
	var err error
	if p.ReqID, err = r.ReadU64(); err != nil {
		return p, err
	}
	if p.SenderID, err = r.ReadU64(); err != nil {
		return p, err
	}
	action, err := r.ReadI32()
	if err != nil {
		return p, err
	}
	p.Action = FriendAction(action)
	return p, nil
}

type HandleFriendRes struct {
	Success  bool
	SenderID uint64
	ErrorMsg string
}

func (p HandleFriendRes) Marshal() []byte {
	var w Writer
	w.WriteBool(p.Success)
	w.WriteU64(p.SenderID)
	w.WriteString(p.ErrorMsg)
	return w.Bytes()
}

func UnmarshalHandleFriendRes(buf []byte) (HandleFriendRes, error) {
	r := NewReader(buf)
	var p HandleFriendRes
	var err error
	if p.Success, err = r.ReadBool(); err != nil {
		return p, err
	}
	if p.SenderID, err = r.ReadU64(); err != nil {
		return p, err
	}
	if p.ErrorMsg, err = r.ReadString(); err != nil {
		return p, err
	}
	return p, nil
}

type GetFriendListRes struct {
	Success  bool
	Friends  []FriendInfo
	ErrorMsg string
}

func (p GetFriendListRes) Marshal() []byte {
	var w Writer
	w.WriteBool(p.Success)
	w.WriteU32(uint32(len(p.Friends)))
	for _, f := range p.Friends {
		w.WriteU64(f.UserID)
		w.WriteString(f.Username)
		w.WriteI32(int32(f.Status))
	}
	w.WriteString(p.ErrorMsg)
	return w.Bytes()
}

func UnmarshalGetFriendListRes(buf []byte) (GetFriendListRes, error) {
	r := NewReader(buf)
	var p GetFriendListRes
	var err error
	if p.Success, err = r.ReadBool(); err != nil {
		return p, err
	}
	n, err := r.ReadU32()
	if err != nil {
		return p, err
	}
	p.Friends = make([]FriendInfo, 0, n)
	for i := uint32(0); i < n; i++ {
		var f FriendInfo
		if f.UserID, err = r.ReadU64(); err != nil {
			return p, err
		}
		if f.Username, err = r.ReadString(); err != nil {
			return p, err
		}
		status, err := r.ReadI32()
		if err != nil {
			return p, err
		}
		f.Status = FriendStatus(status)
		p.Friends = append(p.Friends, f)
	}
	if p.ErrorMsg, err = r.ReadString(); err != nil {
		return p, err
	}
	return p, nil
}

type P2PMsgReq struct {
	Message
}

func (p P2PMsgReq) Marshal() []byte {
	var w Writer
	p.Message.marshal(&w)
	return w.Bytes()
}

func UnmarshalP2PMsgReq(buf []byte) (P2PMsgReq, error) {
	m, err := unmarshalMessage(NewReader(buf))
	return P2PMsgReq{Message: m}, err
}

type MsgAck struct {
	MsgID    uint64
	Success  bool
	RefSeq   uint64
	ErrorMsg string
}

func (p MsgAck) Marshal() []byte {
	var w Writer
	w.WriteU64(p.MsgID)
	w.WriteBool(p.Success)
	w.WriteU64(p.RefSeq)
	w.WriteString(p.ErrorMsg)
	return w.Bytes()
}

func UnmarshalMsgAck(buf []byte) (MsgAck, error) {
	r := NewReader(buf)
	var p MsgAck
	var err error
	if p.MsgID, err = r.ReadU64(); err != nil {
		return p, err
	}
	if p.Success, err = r.ReadBool(); err != nil {
		return p, err
	}
	if p.RefSeq, err = r.ReadU64(); err != nil {
		return p, err
	}
	if p.ErrorMsg, err = r.ReadString(); err != nil {
		return p, err
	}
	return p, nil
}

type SyncMsgsRes struct {
	Success  bool
	Messages []Message
	ErrorMsg string
}

func (p SyncMsgsRes) Marshal() []byte {
	var w Writer
	w.WriteBool(p.Success)
	w.WriteU32(uint32(len(p.Messages)))
	for _, m := range p.Messages {
		m.marshal(&w)
	}
	w.WriteString(p.ErrorMsg)
	return w.Bytes()
}

func UnmarshalSyncMsgsRes(buf []byte) (SyncMsgsRes, error) {
	r := NewReader(buf)
	var p SyncMsgsRes
	var err error
	if p.Success, err = r.ReadBool(); err != nil {
		return p, err
	}
	n, err := r.ReadU32()
	if err != nil {
		return p, err
	}
	p.Messages = make([]Message, 0, n)
	for i := uint32(0); i < n; i++ {
		m, err := unmarshalMessage(r)
		if err != nil {
			return p, err
		}
		p.Messages = append(p.Messages, m)
	}
	if p.ErrorMsg, err = r.ReadString(); err != nil {
		return p, err
	}
	return p, nil
}

// FriendReqPush notifies a receiver of a new incoming friend request.
type FriendReqPush struct {
	ReqID      uint64
	SenderID   uint64
	SenderName string
	VerifyMsg  string
}

func (p FriendReqPush) Marshal() []byte {
	var w Writer
	w.WriteU64(p.ReqID)
	w.WriteU64(p.SenderID)
	w.WriteString(p.SenderName)
	w.WriteString(p.VerifyMsg)
	return w.Bytes()
}

func UnmarshalFriendReqPush(buf []byte) (FriendReqPush, error) {
	r := NewReader(buf)
	var p FriendReqPush
	var err error
	if p.ReqID, err = r.ReadU64(); err != nil {
		return p, err
	}
	if p.SenderID, err = r.ReadU64(); err != nil {
		return p, err
	}
	if p.SenderName, err = r.ReadString(); err != nil {
		return p, err
	}
	if p.VerifyMsg, err = r.ReadString(); err != nil {
		return p, err
	}
	return p, nil
}

// FriendStatusPush notifies a requester that their request was resolved.
type FriendStatusPush struct {
	FriendID   uint64
	FriendName string
	Status     FriendStatus
}

func (p FriendStatusPush) Marshal() []byte {
	var w Writer
	w.WriteU64(p.FriendID)
	w.WriteString(p.FriendName)
	w.WriteI32(int32(p.Status))
	return w.Bytes()
}

func UnmarshalFriendStatusPush(buf []byte) (FriendStatusPush, error) {
	r := NewReader(buf)
	var p FriendStatusPush
	var err error
	if p.FriendID, err = r.ReadU64(); err != nil {
		return p, err
	}
	if p.FriendName, err = r.ReadString(); err != nil {
		return p, err
	}
	status, err := r.ReadI32()
	if err != nil {
		return p, err
	}
	p.Status = FriendStatus(status)
	return p, nil
}

// P2PMsgPush delivers a live message to an online receiver.
type P2PMsgPush struct {
	Message
}

func (p P2PMsgPush) Marshal() []byte {
	var w Writer
	p.Message.marshal(&w)
	return w.Bytes()
}

func UnmarshalP2PMsgPush(buf []byte) (P2PMsgPush, error) {
	m, err := unmarshalMessage(NewReader(buf))
	return P2PMsgPush{Message: m}, err
}
