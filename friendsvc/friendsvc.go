// Package friendsvc implements the friend graph: requesting, accepting
// or rejecting, listing accepted friends, and fetching pending inbound
// requests for login catch-up. Grounded on
// original_source/server/src/service/friend_service.cpp and
// dao/friend_dao.cpp.
package friendsvc

import (
	"context"
	"errors"
)

// Status mirrors the friendship edge status enum.
type Status int

const (
	Pending Status = iota
	Accepted
	Rejected
)

// Action is the accept/reject decision passed to HandleFriend.
type Action int

const (
	Accept Action = iota
	Reject
)

// Edge is one row of im_friend.
type Edge struct {
	ID         uint64
	UserID     uint64
	SenderName string
	FriendID   uint64
	Status     Status
	VerifyMsg  string
	CreatedAt  int64
}

// ErrEdgeExists is returned by AddFriend when the (user_id, friend_id)
// pair already has an edge, matching AddFriendResult::ALREADY_EXISTS.
var ErrEdgeExists = errors.New("friendsvc: friend request already sent or exists")

// FriendInfo is one row of a GetFriendList result.
type FriendInfo struct {
	UserID   uint64
	Username string
}

// Store is the persistence contract friendsvc needs from the relational
// store.
type Store interface {
	AddFriend(ctx context.Context, userID, friendID uint64, verifyMsg string) (edgeID uint64, err error)
	HandleFriend(ctx context.Context, receiverID, senderID uint64, accept bool) error
	GetFriendList(ctx context.Context, userID uint64) ([]FriendInfo, error)
	GetPendingRequests(ctx context.Context, userID uint64) ([]Edge, error)
	Username(ctx context.Context, userID uint64) (string, error)
}

// Pusher is the slice of push.Service friendsvc needs.
type Pusher interface {
	PushFriendRequest(userID uint64, reqID, senderID uint64, senderName, verifyMsg string)
	PushFriendStatus(userID uint64, friendID uint64, friendName string, status Status)
}

// Service implements the friend-graph operations.
type Service struct {
	store  Store
	pusher Pusher
}

// NewService constructs a friendsvc Service. pusher may be nil in tests
// that don't exercise the push fan-out.
func NewService(store Store, pusher Pusher) *Service {
	return &Service{store: store, pusher: pusher}
}

// AddFriendResult mirrors the AddFriendRes wire payload.
type AddFriendResult struct {
	Success  bool
	ErrorMsg string
}

// AddFriend creates a PENDING edge from sender to receiver and, if the
// receiver is online, pushes FRIEND_REQ_PUSH.
func (s *Service) AddFriend(ctx context.Context, senderID, receiverID uint64, verifyMsg string) (AddFriendResult, error) {
	edgeID, err := s.store.AddFriend(ctx, senderID, receiverID, verifyMsg)
	if errors.Is(err, ErrEdgeExists) {
		return AddFriendResult{Success: false, ErrorMsg: ErrEdgeExists.Error()}, nil
	}
	if err != nil {
		return AddFriendResult{Success: false, ErrorMsg: "internal database error"}, err
	}

	if s.pusher != nil {
		senderName, err := s.store.Username(ctx, senderID)
		if err == nil {
			s.pusher.PushFriendRequest(receiverID, edgeID, senderID, senderName, verifyMsg)
		}
	}
	return AddFriendResult{Success: true}, nil
}

// HandleFriendResult mirrors the HandleFriendRes wire payload.
type HandleFriendResult struct {
	Success  bool
	SenderID uint64
	ErrorMsg string
}

// HandleFriend applies an accept/reject decision in one transaction
// (forward edge updated; on accept, the reverse edge is created or
// updated to ACCEPTED in the same transaction), then pushes
// FRIEND_STATUS_PUSH to the original sender.
func (s *Service) HandleFriend(ctx context.Context, receiverID, senderID uint64, action Action) (HandleFriendResult, error) {
	err := s.store.HandleFriend(ctx, receiverID, senderID, action == Accept)
	if err != nil {
		return HandleFriendResult{Success: false, ErrorMsg: "transaction failed"}, err
	}

	if s.pusher != nil {
		receiverName, err := s.store.Username(ctx, receiverID)
		if err == nil {
			status := Rejected
			if action == Accept {
				status = Accepted
			}
			s.pusher.PushFriendStatus(senderID, receiverID, receiverName, status)
		}
	}
	return HandleFriendResult{Success: true, SenderID: senderID}, nil
}

// GetFriendListResult mirrors the GetFriendListRes wire payload.
type GetFriendListResult struct {
	Success  bool
	Friends  []FriendInfo
	ErrorMsg string
}

// GetFriendList returns only ACCEPTED edges, joined against the user
// table for display names.
func (s *Service) GetFriendList(ctx context.Context, userID uint64) (GetFriendListResult, error) {
	friends, err := s.store.GetFriendList(ctx, userID)
	if err != nil {
		return GetFriendListResult{Success: false, ErrorMsg: "internal database error"}, err
	}
	return GetFriendListResult{Success: true, Friends: friends}, nil
}

// GetPendingRequests returns PENDING inbound requests for login catch-up.
func (s *Service) GetPendingRequests(ctx context.Context, userID uint64) ([]Edge, error) {
	return s.store.GetPendingRequests(ctx, userID)
}
