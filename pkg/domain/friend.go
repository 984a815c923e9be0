package domain

import "time"

// RequestStatus is the state of a friend request on the server.
type RequestStatus string

const (
	RequestPending  RequestStatus = "pending"
	RequestAccepted RequestStatus = "accepted"
	RequestRejected RequestStatus = "rejected"
)

// FriendRequest is a pending or resolved friendship request.
type FriendRequest struct {
	ID         string        `json:"id"`
	SenderID   string        `json:"sender_id"`
	ReceiverID string        `json:"receiver_id"`
	Sender     User          `json:"sender"`
	Status     RequestStatus `json:"status"`
	CreatedAt  time.Time     `json:"created_at"`
}

// Relationship is how a looked-up user relates to the local user.
type Relationship string

const (
	RelationNone     Relationship = "none"
	RelationFriends  Relationship = "friends"
	RelationPending  Relationship = "pending"  // we asked them
	RelationReceived Relationship = "received" // they asked us
)

// UserMatch is a user lookup result with its relationship to the local user.
type UserMatch struct {
	User         User         `json:"user"`
	Relationship Relationship `json:"relationship"`
}
