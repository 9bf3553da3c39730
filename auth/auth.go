// Package auth implements registration and login: bcrypt password
// hashing, user-id issuance, and HS256 JWT session tokens. Grounded on
// original_source/server/src/service/auth_service.cpp and
// utils/token_util.h, generalized to Go idioms (explicit error returns,
// a UserStore interface in place of the DAO-pointer dependency).
package auth

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/sususu5/im-server/idgen"
)

// ErrEmptyCredentials is returned when username or password is blank.
var ErrEmptyCredentials = errors.New("auth: username or password cannot be empty")

// ErrUsernameTaken is returned by Register when the username already exists.
var ErrUsernameTaken = errors.New("auth: username already exists")

// ErrUnknownUser is returned by Login when no such username is registered.
var ErrUnknownUser = errors.New("auth: username not found")

// ErrBadPassword is returned by Login on a password mismatch.
var ErrBadPassword = errors.New("auth: invalid password")

// User is the persisted record a UserStore manages.
type User struct {
	UserID       uint64
	Username     string
	PasswordHash string
}

// UserStore is the persistence contract auth needs from the relational
// store, kept narrow so auth does not import store/userdb directly.
type UserStore interface {
	Exists(ctx context.Context, username string) (bool, error)
	Insert(ctx context.Context, u User) error
	FindByUsername(ctx context.Context, username string) (User, error)
}

// PendingFriendLister is the slice of friendsvc.Service auth needs to
// push catch-up friend requests right after a successful login.
type PendingFriendLister interface {
	GetPendingRequests(ctx context.Context, userID uint64) ([]PendingFriendRequest, error)
}

// PendingFriendRequest is the subset of a friendship edge auth needs to
// build a FriendReqPush without importing friendsvc's full type.
type PendingFriendRequest struct {
	ReqID      uint64
	SenderID   uint64
	SenderName string
	VerifyMsg  string
}

// Pusher delivers a pre-framed envelope to a user's active session, if
// online. Satisfied by push.Service.
type Pusher interface {
	PushFriendRequest(receiverID uint64, reqID, senderID uint64, senderName, verifyMsg string)
}

const tokenTTL = 24 * time.Hour

// Service issues and verifies sessions against a UserStore.
type Service struct {
	store     UserStore
	friends   PendingFriendLister
	pusher    Pusher
	jwtSecret []byte
	issuer    string
}

// NewService constructs an auth Service. jwtSecret and issuer configure
// the HS256 token; friends/pusher may be nil if login catch-up pushes
// are not wired (e.g. in isolated tests).
func NewService(store UserStore, friends PendingFriendLister, pusher Pusher, jwtSecret []byte, issuer string) *Service {
	return &Service{store: store, friends: friends, pusher: pusher, jwtSecret: jwtSecret, issuer: issuer}
}

// RegisterResult mirrors the RegisterRes wire payload.
type RegisterResult struct {
	Success  bool
	UserID   uint64
	ErrorMsg string
}

// Register validates, hashes the password, allocates a user id, and
// inserts a new user row. Non-nil error values are internal/storage
// failures; validation failures are communicated via RegisterResult.
func (s *Service) Register(ctx context.Context, username, password string) (RegisterResult, error) {
	if username == "" || password == "" {
		return RegisterResult{Success: false, ErrorMsg: ErrEmptyCredentials.Error()}, nil
	}

	exists, err := s.store.Exists(ctx, username)
	if err != nil {
		return RegisterResult{}, err
	}
	if exists {
		return RegisterResult{Success: false, ErrorMsg: ErrUsernameTaken.Error()}, nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return RegisterResult{}, err
	}

	userID := idgen.NewUserID()
	if err := s.store.Insert(ctx, User{UserID: userID, Username: username, PasswordHash: string(hash)}); err != nil {
		return RegisterResult{Success: false, ErrorMsg: "internal error"}, err
	}

	return RegisterResult{Success: true, UserID: userID}, nil
}

// LoginResult mirrors the LoginRes wire payload.
type LoginResult struct {
	Success  bool
	Token    string
	UserID   uint64
	Username string
	ErrorMsg string
}

// Login verifies credentials and issues a signed session token. It does
// not push pending friend requests itself: the caller invokes
// PushPendingFriendRequests once the login response has been queued --
// matching the ordering in original_source's HandleLogin, which responds
// first and pushes after.
func (s *Service) Login(ctx context.Context, username, password string) (LoginResult, error) {
	if username == "" || password == "" {
		return LoginResult{Success: false, ErrorMsg: ErrEmptyCredentials.Error()}, nil
	}

	user, err := s.store.FindByUsername(ctx, username)
	if errors.Is(err, ErrUnknownUser) {
		return LoginResult{Success: false, ErrorMsg: ErrUnknownUser.Error()}, nil
	}
	if err != nil {
		return LoginResult{}, err
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return LoginResult{Success: false, ErrorMsg: ErrBadPassword.Error()}, nil
	}

	token, err := s.issueToken(user)
	if err != nil {
		return LoginResult{}, err
	}

	return LoginResult{Success: true, Token: token, UserID: user.UserID, Username: user.Username}, nil
}

// PushPendingFriendRequests delivers login catch-up pushes. Called by
// the binary handler after the LoginRes has already been written, per
// the ordering documented in SPEC_FULL.md §4.
func (s *Service) PushPendingFriendRequests(ctx context.Context, userID uint64) error {
	if s.friends == nil || s.pusher == nil {
		return nil
	}
	pending, err := s.friends.GetPendingRequests(ctx, userID)
	if err != nil {
		return err
	}
	for _, req := range pending {
		s.pusher.PushFriendRequest(userID, req.ReqID, req.SenderID, req.SenderName, req.VerifyMsg)
	}
	return nil
}

type claims struct {
	UserID   uint64 `json:"user_id"`
	Username string `json:"username"`
	jwt.RegisteredClaims
}

func (s *Service) issueToken(u User) (string, error) {
	now := time.Now()
	c := claims{
		UserID:   u.UserID,
		Username: u.Username,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(tokenTTL)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(s.jwtSecret)
}

// VerifyToken checks signature, issuer, and expiry, returning the bound
// user id on success.
func (s *Service) VerifyToken(token string) (uint64, error) {
	parsed, err := jwt.ParseWithClaims(token, &claims{}, func(t *jwt.Token) (interface{}, error) {
		return s.jwtSecret, nil
	}, jwt.WithIssuer(s.issuer), jwt.WithValidMethods([]string{"HS256"}))
	if err != nil {
		return 0, err
	}
	c, ok := parsed.Claims.(*claims)
	if !ok || !parsed.Valid {
		return 0, errors.New("auth: invalid token")
	}
	return c.UserID, nil
}
