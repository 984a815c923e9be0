package domain

// EventType names a push-channel event.
type EventType string

const (
	EventNewMessage            EventType = "new_message"
	EventMessageEdited         EventType = "message_edited"
	EventMessageDeleted        EventType = "message_deleted"
	EventTyping                EventType = "typing_indicator"
	EventUserStatus            EventType = "user_status"
	EventFriendRequest         EventType = "friend_request"
	EventFriendRequestAccepted EventType = "friend_request_accepted"
)

// Event is a decoded push-channel event. Which fields are set depends on Type.
type Event struct {
	Type      EventType
	RoomID    string
	UserID    string
	MessageID string
	RequestID string
	Message   *Message       // new_message, message_edited
	Request   *FriendRequest // friend_request
	Friend    *User          // friend_request_accepted
	Typing    bool           // typing_indicator
	Online    bool           // user_status
}
