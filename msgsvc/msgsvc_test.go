package msgsvc

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sususu5/im-server/wire"
)

type fakeWriter struct{ enqueued []wire.Message }

func (w *fakeWriter) Enqueue(msg wire.Message) { w.enqueued = append(w.enqueued, msg) }

type fakePusher struct{ pushed []wire.Message }

func (p *fakePusher) PushP2PMessage(msg wire.Message) { p.pushed = append(p.pushed, msg) }

type fakeInbox struct {
	messages []wire.Message
	err      error
}

func (f *fakeInbox) RecentInbox(_ context.Context, _ uint64, limit int) ([]wire.Message, error) {
	if f.err != nil {
		return nil, f.err
	}
	if len(f.messages) > limit {
		return f.messages[:limit], nil
	}
	return f.messages, nil
}

func TestSendP2PEnqueuesAndPushes(t *testing.T) {
	writer := &fakeWriter{}
	pusher := &fakePusher{}
	svc := NewService(writer, pusher, nil)

	ack := svc.SendP2P(1, wire.Message{MsgID: 42, ReceiverID: 2, Timestamp: 100, Content: []byte("hi")})
	require.True(t, ack.Success)
	require.Equal(t, uint64(42), ack.MsgID)
	require.Len(t, writer.enqueued, 1)
	require.Equal(t, uint64(1), writer.enqueued[0].SenderID)
	require.Len(t, pusher.pushed, 1)
}

func TestSendP2PRejectsMissingFields(t *testing.T) {
	svc := NewService(&fakeWriter{}, &fakePusher{}, nil)

	ack := svc.SendP2P(0, wire.Message{ReceiverID: 2, Timestamp: 1})
	require.False(t, ack.Success)
	require.Equal(t, ErrEmptySender.Error(), ack.ErrorMsg)

	ack = svc.SendP2P(1, wire.Message{ReceiverID: 0, Timestamp: 1})
	require.False(t, ack.Success)
	require.Equal(t, ErrEmptyReceiver.Error(), ack.ErrorMsg)

	ack = svc.SendP2P(1, wire.Message{ReceiverID: 2, Timestamp: 0})
	require.False(t, ack.Success)
	require.Equal(t, ErrEmptyTimestamp.Error(), ack.ErrorMsg)

	ack = svc.SendP2P(1, wire.Message{ReceiverID: 2, Timestamp: 1, MsgID: 0})
	require.False(t, ack.Success)
	require.Equal(t, ErrEmptyMsgID.Error(), ack.ErrorMsg)
}

func TestSyncMessagesReturnsRecentInbox(t *testing.T) {
	inbox := &fakeInbox{messages: []wire.Message{{MsgID: 1}, {MsgID: 2}}}
	svc := NewService(&fakeWriter{}, nil, inbox)

	res, err := svc.SyncMessages(context.Background(), 1)
	require.NoError(t, err)
	require.True(t, res.Success)
	require.Len(t, res.Messages, 2)
}
