package store

import (
	"context"

	"github.com/chitchat/chitchat/pkg/domain"
)

// The interfaces below are the authoritative side of every store. The REST
// client in pkg/client satisfies all of them.

// AuthTransport authenticates and resolves identity.
type AuthTransport interface {
	Login(ctx context.Context, creds domain.Credentials) (*domain.Session, error)
	Register(ctx context.Context, reg domain.Registration) (*domain.Session, error)
	Logout(ctx context.Context) error
	GetProfile(ctx context.Context) (*domain.User, error)
	UpdateProfile(ctx context.Context, upd domain.ProfileUpdate) (*domain.User, error)
	SetToken(token string)
}

// RoomTransport reads and writes rooms and their messages.
type RoomTransport interface {
	ListRooms(ctx context.Context) ([]domain.Room, error)
	CreateRoom(ctx context.Context, name string, kind domain.RoomKind, participantIDs []string) (*domain.Room, error)
	OpenDirect(ctx context.Context, userID string) (*domain.Room, error)
	AddParticipant(ctx context.Context, roomID, userID string) (*domain.Room, error)
	RemoveParticipant(ctx context.Context, roomID, userID string) error
	GetMessages(ctx context.Context, roomID string, page domain.PageRequest) (*domain.MessagePage, error)
	SendMessage(ctx context.Context, roomID, body string, typ domain.MessageType) (*domain.Message, error)
	EditMessage(ctx context.Context, messageID, body string, typ domain.MessageType) (*domain.Message, error)
	DeleteMessage(ctx context.Context, messageID string) error
	SearchMessages(ctx context.Context, q domain.SearchQuery) (*domain.MessagePage, error)
}

// BotResponder generates replies for configured bots.
type BotResponder interface {
	GenerateBotResponse(ctx context.Context, botID, prompt string) (string, error)
}

// FriendTransport manages relationships and user lookup.
type FriendTransport interface {
	ListFriends(ctx context.Context) ([]domain.User, error)
	ListFriendRequests(ctx context.Context) ([]domain.FriendRequest, error)
	SendFriendRequest(ctx context.Context, identifier string) error
	AcceptFriendRequest(ctx context.Context, requestID string) error
	RejectFriendRequest(ctx context.Context, requestID string) error
	RemoveFriend(ctx context.Context, friendID string) error
	FindUser(ctx context.Context, query string) (*domain.UserMatch, error)
	SearchUsers(ctx context.Context, query string) ([]domain.User, error)
}

// EventSource delivers push events until ctx ends or the channel fails.
type EventSource interface {
	Listen(ctx context.Context, handle func(domain.Event)) error
}

// TypingSender publishes the local user's typing state.
type TypingSender interface {
	SendTyping(roomID string, typing bool) error
}
