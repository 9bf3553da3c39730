package friendsvc

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	edges     map[[2]uint64]*Edge
	usernames map[uint64]string
	nextID    uint64
}

func newFakeStore() *fakeStore {
	return &fakeStore{edges: map[[2]uint64]*Edge{}, usernames: map[uint64]string{}}
}

func (f *fakeStore) AddFriend(_ context.Context, userID, friendID uint64, verifyMsg string) (uint64, error) {
	key := [2]uint64{userID, friendID}
	if _, ok := f.edges[key]; ok {
		return 0, ErrEdgeExists
	}
	f.nextID++
	f.edges[key] = &Edge{ID: f.nextID, UserID: userID, FriendID: friendID, Status: Pending, VerifyMsg: verifyMsg}
	return f.nextID, nil
}

func (f *fakeStore) HandleFriend(_ context.Context, receiverID, senderID uint64, accept bool) error {
	status := Rejected
	if accept {
		status = Accepted
	}
	f.edges[[2]uint64{senderID, receiverID}].Status = status
	if accept {
		rev, ok := f.edges[[2]uint64{receiverID, senderID}]
		if !ok {
			f.nextID++
			f.edges[[2]uint64{receiverID, senderID}] = &Edge{ID: f.nextID, UserID: receiverID, FriendID: senderID, Status: Accepted}
		} else {
			rev.Status = Accepted
		}
	}
	return nil
}

func (f *fakeStore) GetFriendList(_ context.Context, userID uint64) ([]FriendInfo, error) {
	var out []FriendInfo
	for key, e := range f.edges {
		if key[0] == userID && e.Status == Accepted {
			out = append(out, FriendInfo{UserID: e.FriendID, Username: f.usernames[e.FriendID]})
		}
	}
	return out, nil
}

func (f *fakeStore) GetPendingRequests(_ context.Context, userID uint64) ([]Edge, error) {
	var out []Edge
	for key, e := range f.edges {
		if key[1] == userID && e.Status == Pending {
			out = append(out, *e)
		}
	}
	return out, nil
}

func (f *fakeStore) Username(_ context.Context, userID uint64) (string, error) {
	return f.usernames[userID], nil
}

type fakePusher struct {
	reqs     []PendingReq
	statuses []PendingStatus
}

type PendingReq struct {
	UserID, ReqID, SenderID uint64
	SenderName, VerifyMsg   string
}

type PendingStatus struct {
	UserID, FriendID uint64
	FriendName       string
	Status           Status
}

func (f *fakePusher) PushFriendRequest(userID uint64, reqID, senderID uint64, senderName, verifyMsg string) {
	f.reqs = append(f.reqs, PendingReq{userID, reqID, senderID, senderName, verifyMsg})
}

func (f *fakePusher) PushFriendStatus(userID uint64, friendID uint64, friendName string, status Status) {
	f.statuses = append(f.statuses, PendingStatus{userID, friendID, friendName, status})
}

func TestAddFriendThenAcceptSymmetry(t *testing.T) {
	store := newFakeStore()
	store.usernames[1] = "alice"
	store.usernames[2] = "bob"
	pusher := &fakePusher{}
	svc := NewService(store, pusher)
	ctx := context.Background()

	res, err := svc.AddFriend(ctx, 1, 2, "hi")
	require.NoError(t, err)
	require.True(t, res.Success)
	require.Len(t, pusher.reqs, 1)
	require.Equal(t, uint64(2), pusher.reqs[0].UserID)

	hres, err := svc.HandleFriend(ctx, 2, 1, Accept)
	require.NoError(t, err)
	require.True(t, hres.Success)
	require.Equal(t, uint64(1), hres.SenderID)

	aliceFriends, err := svc.GetFriendList(ctx, 1)
	require.NoError(t, err)
	require.Len(t, aliceFriends.Friends, 1)
	require.Equal(t, uint64(2), aliceFriends.Friends[0].UserID)

	bobFriends, err := svc.GetFriendList(ctx, 2)
	require.NoError(t, err)
	require.Len(t, bobFriends.Friends, 1)
	require.Equal(t, uint64(1), bobFriends.Friends[0].UserID)

	require.Len(t, pusher.statuses, 1)
	require.Equal(t, Accepted, pusher.statuses[0].Status)
}

func TestAddFriendRejectLeavesNeitherSideFriends(t *testing.T) {
	store := newFakeStore()
	svc := NewService(store, nil)
	ctx := context.Background()

	_, err := svc.AddFriend(ctx, 1, 2, "hi")
	require.NoError(t, err)
	_, err = svc.HandleFriend(ctx, 2, 1, Reject)
	require.NoError(t, err)

	aliceFriends, _ := svc.GetFriendList(ctx, 1)
	bobFriends, _ := svc.GetFriendList(ctx, 2)
	require.Empty(t, aliceFriends.Friends)
	require.Empty(t, bobFriends.Friends)
}

func TestAddFriendDuplicateEdge(t *testing.T) {
	store := newFakeStore()
	svc := NewService(store, nil)
	ctx := context.Background()

	_, err := svc.AddFriend(ctx, 1, 2, "hi")
	require.NoError(t, err)

	res, err := svc.AddFriend(ctx, 1, 2, "hi again")
	require.NoError(t, err)
	require.False(t, res.Success)
	require.Equal(t, ErrEdgeExists.Error(), res.ErrorMsg)
}

func TestGetPendingRequestsForLoginCatchup(t *testing.T) {
	store := newFakeStore()
	svc := NewService(store, nil)
	ctx := context.Background()

	_, err := svc.AddFriend(ctx, 10, 99, "a")
	require.NoError(t, err)
	_, err = svc.AddFriend(ctx, 11, 99, "b")
	require.NoError(t, err)

	pending, err := svc.GetPendingRequests(ctx, 99)
	require.NoError(t, err)
	require.Len(t, pending, 2)
}
