package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/chitchat/chitchat/pkg/domain"
)

// ListRooms returns the rooms the authenticated user participates in.
func (c *Client) ListRooms(ctx context.Context) ([]domain.Room, error) {
	var rooms []roomDTO
	if err := c.get(ctx, "/api/chat/rooms", &rooms); err != nil {
		return nil, fmt.Errorf("client.ListRooms: %w", err)
	}
	out := make([]domain.Room, 0, len(rooms))
	for _, r := range rooms {
		out = append(out, r.toDomain())
	}
	return out, nil
}

// GetRoom fetches one room with its participants.
func (c *Client) GetRoom(ctx context.Context, roomID string) (*domain.Room, error) {
	var r roomDTO
	if err := c.get(ctx, "/api/chat/rooms/"+url.PathEscape(roomID), &r); err != nil {
		return nil, fmt.Errorf("client.GetRoom: %w", err)
	}
	out := r.toDomain()
	return &out, nil
}

// CreateRoom creates a direct or group room with the given participants.
func (c *Client) CreateRoom(ctx context.Context, name string, kind domain.RoomKind, participantIDs []string) (*domain.Room, error) {
	body := map[string]any{
		"name":           name,
		"isGroup":        kind == domain.RoomGroup,
		"participantIds": participantIDs,
	}
	var r roomDTO
	if err := c.post(ctx, "/api/chat/rooms", body, &r); err != nil {
		return nil, fmt.Errorf("client.CreateRoom: %w", err)
	}
	out := r.toDomain()
	return &out, nil
}

// OpenDirect finds or creates the direct room with userID.
func (c *Client) OpenDirect(ctx context.Context, userID string) (*domain.Room, error) {
	var r roomDTO
	if err := c.post(ctx, "/api/chat/rooms/dm/"+url.PathEscape(userID), nil, &r); err != nil {
		return nil, fmt.Errorf("client.OpenDirect: %w", err)
	}
	out := r.toDomain()
	return &out, nil
}

// AddParticipant adds userID to a group room and returns the updated room.
func (c *Client) AddParticipant(ctx context.Context, roomID, userID string) (*domain.Room, error) {
	params := url.Values{}
	params.Set("participantId", userID)

	var r roomDTO
	if err := c.post(ctx, "/api/chat/rooms/"+url.PathEscape(roomID)+"/participants?"+params.Encode(), nil, &r); err != nil {
		return nil, fmt.Errorf("client.AddParticipant: %w", err)
	}
	out := r.toDomain()
	return &out, nil
}

// RemoveParticipant removes userID from a group room.
func (c *Client) RemoveParticipant(ctx context.Context, roomID, userID string) error {
	if err := c.delete(ctx, "/api/chat/rooms/"+url.PathEscape(roomID)+"/participants/"+url.PathEscape(userID)); err != nil {
		return fmt.Errorf("client.RemoveParticipant: %w", err)
	}
	return nil
}

// GetMessages returns one page of a room's history.
func (c *Client) GetMessages(ctx context.Context, roomID string, page domain.PageRequest) (*domain.MessagePage, error) {
	params := pageParams(page)

	var raw json.RawMessage
	if err := c.get(ctx, "/api/chat/rooms/"+url.PathEscape(roomID)+"/messages?"+params.Encode(), &raw); err != nil {
		return nil, fmt.Errorf("client.GetMessages: %w", err)
	}
	p, err := decodeMessagePage(raw, page)
	if err != nil {
		return nil, fmt.Errorf("client.GetMessages: %w", err)
	}
	for i := range p.Messages {
		if p.Messages[i].RoomID == "" {
			p.Messages[i].RoomID = roomID
		}
	}
	return p, nil
}

// SendMessage posts a message to a room and returns the stored message.
// The server may answer without a body, in which case the result is nil.
func (c *Client) SendMessage(ctx context.Context, roomID, body string, typ domain.MessageType) (*domain.Message, error) {
	payload := map[string]string{
		"content":     body,
		"messageType": wireMessageType(typ),
	}
	var m *messageDTO
	if err := c.post(ctx, "/api/chat/rooms/"+url.PathEscape(roomID)+"/messages", payload, &m); err != nil {
		return nil, fmt.Errorf("client.SendMessage: %w", err)
	}
	if m == nil || m.ID == "" {
		return nil, nil
	}
	out := m.toDomain()
	if out.RoomID == "" {
		out.RoomID = roomID
	}
	return &out, nil
}

// EditMessage replaces a message body.
func (c *Client) EditMessage(ctx context.Context, messageID, body string, typ domain.MessageType) (*domain.Message, error) {
	payload := map[string]string{
		"content":     body,
		"messageType": wireMessageType(typ),
	}
	var m *messageDTO
	if err := c.put(ctx, "/api/chat/messages/"+url.PathEscape(messageID), payload, &m); err != nil {
		return nil, fmt.Errorf("client.EditMessage: %w", err)
	}
	if m == nil || m.ID == "" {
		return nil, nil
	}
	out := m.toDomain()
	return &out, nil
}

// DeleteMessage soft-deletes a message.
func (c *Client) DeleteMessage(ctx context.Context, messageID string) error {
	if err := c.delete(ctx, "/api/chat/messages/"+url.PathEscape(messageID)); err != nil {
		return fmt.Errorf("client.DeleteMessage: %w", err)
	}
	return nil
}

// SearchMessages searches one room, or all rooms when q.RoomID is empty.
func (c *Client) SearchMessages(ctx context.Context, q domain.SearchQuery) (*domain.MessagePage, error) {
	params := pageParams(q.PageRequest)
	params.Set("query", q.Query)

	path := "/api/chat/messages/search?"
	if q.RoomID != "" {
		path = "/api/chat/rooms/" + url.PathEscape(q.RoomID) + "/messages/search?"
	}

	var raw json.RawMessage
	if err := c.get(ctx, path+params.Encode(), &raw); err != nil {
		return nil, fmt.Errorf("client.SearchMessages: %w", err)
	}
	p, err := decodeMessagePage(raw, q.PageRequest)
	if err != nil {
		return nil, fmt.Errorf("client.SearchMessages: %w", err)
	}
	return p, nil
}

func pageParams(p domain.PageRequest) url.Values {
	params := url.Values{}
	params.Set("page", strconv.Itoa(p.Page))
	if p.Size > 0 {
		params.Set("size", strconv.Itoa(p.Size))
	}
	return params
}

func wireMessageType(t domain.MessageType) string {
	if t == "" {
		t = domain.MessageText
	}
	return strings.ToUpper(string(t))
}
