package client

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/chitchat/chitchat/pkg/domain"
)

// Backend payloads are mapped to domain types here and nowhere else.

// wireID accepts ids encoded as JSON strings or numbers.
type wireID string

func (id *wireID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*id = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = wireID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("id: %w", err)
	}
	*id = wireID(n.String())
	return nil
}

// wireTime accepts RFC 3339 strings, zone-less local date-times (read as
// UTC), epoch milliseconds and [y, m, d, h, min, s, nanos] arrays.
type wireTime struct {
	time.Time
}

var localLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

func (t *wireTime) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case len(b) == 0 || bytes.Equal(b, []byte("null")):
		t.Time = time.Time{}
		return nil
	case b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		if s == "" {
			t.Time = time.Time{}
			return nil
		}
		if parsed, err := time.Parse(time.RFC3339Nano, s); err == nil {
			t.Time = parsed
			return nil
		}
		for _, layout := range localLayouts {
			if parsed, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
				t.Time = parsed
				return nil
			}
		}
		return fmt.Errorf("unrecognised timestamp %q", s)
	case b[0] == '[':
		var parts []int
		if err := json.Unmarshal(b, &parts); err != nil {
			return fmt.Errorf("timestamp array: %w", err)
		}
		if len(parts) < 3 {
			return fmt.Errorf("timestamp array too short: %v", parts)
		}
		for len(parts) < 7 {
			parts = append(parts, 0)
		}
		t.Time = time.Date(parts[0], time.Month(parts[1]), parts[2], parts[3], parts[4], parts[5], parts[6], time.UTC)
		return nil
	default:
		var ms int64
		if err := json.Unmarshal(b, &ms); err != nil {
			return fmt.Errorf("timestamp: %w", err)
		}
		t.Time = time.UnixMilli(ms).UTC()
		return nil
	}
}

func (t wireTime) ptr() *time.Time {
	if t.IsZero() {
		return nil
	}
	v := t.Time
	return &v
}

type userDTO struct {
	ID         wireID `json:"id"`
	FullName   string `json:"fullName"`
	Name       string `json:"name"`
	Username   string `json:"username"`
	Email      string `json:"email"`
	AvatarURL  string `json:"avatarUrl"`
	Status     *bool  `json:"status"`
	Online     *bool  `json:"online"`
	IsBot      bool   `json:"isBot"`
	Provider   string `json:"provider"`
	Model      string `json:"model"`
	Configured *bool  `json:"isConfigured"`
}

func (u userDTO) toDomain() domain.User {
	out := domain.User{
		ID:          string(u.ID),
		DisplayName: u.FullName,
		Handle:      u.Username,
		Email:       u.Email,
		AvatarURL:   u.AvatarURL,
	}
	if out.DisplayName == "" {
		out.DisplayName = u.Name
	}
	switch {
	case u.Online != nil:
		out.Online = *u.Online
	case u.Status != nil:
		out.Online = *u.Status
	}
	if u.IsBot || u.Provider != "" {
		configured := true
		if u.Configured != nil {
			configured = *u.Configured
		}
		out.Bot = &domain.BotProfile{
			Provider:   strings.ToLower(u.Provider),
			Model:      u.Model,
			Configured: configured,
		}
	}
	return out
}

type messageDTO struct {
	ID          wireID   `json:"id"`
	RoomID      wireID   `json:"roomId"`
	SenderID    wireID   `json:"senderId"`
	Content     string   `json:"content"`
	MessageType string   `json:"messageType"`
	SentAt      wireTime `json:"sentAt"`
	CreatedAt   wireTime `json:"createdAt"`
	EditedAt    wireTime `json:"editedAt"`
	IsEdited    bool     `json:"isEdited"`
	IsDeleted   bool     `json:"isDeleted"`
	DeletedAt   wireTime `json:"deletedAt"`
	Sender      *userDTO `json:"sender"`
}

func (m messageDTO) toDomain() domain.Message {
	typ, err := domain.ParseMessageType(m.MessageType)
	if err != nil {
		typ = domain.MessageText
	}
	out := domain.Message{
		ID:        string(m.ID),
		RoomID:    string(m.RoomID),
		SenderID:  string(m.SenderID),
		Body:      m.Content,
		Type:      typ,
		CreatedAt: m.SentAt.Time,
		EditedAt:  m.EditedAt.ptr(),
		DeletedAt: m.DeletedAt.ptr(),
		State:     domain.StateConfirmed,
	}
	if out.CreatedAt.IsZero() {
		out.CreatedAt = m.CreatedAt.Time
	}
	if m.Sender != nil {
		u := m.Sender.toDomain()
		out.Sender = &u
		if out.SenderID == "" {
			out.SenderID = u.ID
		}
	}
	if m.IsEdited && out.EditedAt == nil {
		at := out.CreatedAt
		out.EditedAt = &at
	}
	if m.IsDeleted && out.DeletedAt == nil {
		at := out.CreatedAt
		out.DeletedAt = &at
	}
	if out.Deleted() {
		out.Body = ""
	}
	return out
}

func mapMessages(in []messageDTO) []domain.Message {
	out := make([]domain.Message, 0, len(in))
	for _, m := range in {
		out = append(out, m.toDomain())
	}
	return out
}

type roomDTO struct {
	ID           wireID            `json:"id"`
	Name         string            `json:"name"`
	Kind         string            `json:"kind"`
	Type         string            `json:"type"`
	IsGroup      *bool             `json:"isGroup"`
	IsBotChat    bool              `json:"isBotChat"`
	CreatorID    wireID            `json:"creatorId"`
	AvatarURL    string            `json:"avatarUrl"`
	CreatedAt    wireTime          `json:"createdAt"`
	Participants []userDTO         `json:"participants"`
	Admins       []wireID          `json:"admins"`
	Roles        map[string]string `json:"roles"`
	LastMessage  *messageDTO       `json:"lastMessage"`
}

func (r roomDTO) kind(participants []domain.Participant) domain.RoomKind {
	switch strings.ToLower(r.Kind) {
	case "direct", "dm":
		return domain.RoomDirect
	case "group":
		return domain.RoomGroup
	case "bot":
		return domain.RoomBot
	}
	if (r.IsGroup != nil && *r.IsGroup) || strings.EqualFold(r.Type, "group") {
		return domain.RoomGroup
	}
	if r.IsBotChat {
		return domain.RoomBot
	}
	for _, p := range participants {
		if p.User.IsBot() {
			return domain.RoomBot
		}
	}
	return domain.RoomDirect
}

func (r roomDTO) toDomain() domain.Room {
	out := domain.Room{
		ID:        string(r.ID),
		Name:      r.Name,
		AvatarURL: r.AvatarURL,
		CreatorID: string(r.CreatorID),
		CreatedAt: r.CreatedAt.Time,
	}
	seen := make(map[string]bool, len(r.Participants))
	for _, u := range r.Participants {
		p := domain.Participant{User: u.toDomain()}
		if p.User.ID == "" || seen[p.User.ID] {
			continue
		}
		seen[p.User.ID] = true
		out.Participants = append(out.Participants, p)
	}
	out.Kind = r.kind(out.Participants)

	if out.Kind == domain.RoomGroup {
		admins := make(map[string]bool, len(r.Admins))
		for _, id := range r.Admins {
			admins[string(id)] = true
		}
		for i := range out.Participants {
			id := out.Participants[i].User.ID
			switch {
			case r.Roles[id] != "":
				out.Participants[i].Role = domain.Role(strings.ToLower(r.Roles[id]))
			case admins[id] || (len(admins) == 0 && id == out.CreatorID):
				out.Participants[i].Role = domain.RoleAdmin
			default:
				out.Participants[i].Role = domain.RoleMember
			}
		}
	}
	if r.LastMessage != nil {
		m := r.LastMessage.toDomain()
		if m.RoomID == "" {
			m.RoomID = out.ID
		}
		out.LastMessage = &m
	}
	return out
}

// pageDTO is a Spring Data page. Some deployments return a bare array instead.
type pageDTO struct {
	Content       []messageDTO `json:"content"`
	Messages      []messageDTO `json:"messages"`
	TotalElements int          `json:"totalElements"`
	TotalPages    int          `json:"totalPages"`
	Number        int          `json:"number"`
	Size          int          `json:"size"`
}

func decodeMessagePage(raw json.RawMessage, req domain.PageRequest) (*domain.MessagePage, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return &domain.MessagePage{Messages: []domain.Message{}, Page: req.Page, Size: req.Size}, nil
	}
	if raw[0] == '[' {
		var list []messageDTO
		if err := json.Unmarshal(raw, &list); err != nil {
			return nil, fmt.Errorf("decode message list: %w", err)
		}
		msgs := mapMessages(list)
		pages := 0
		if len(msgs) > 0 {
			pages = 1
		}
		return &domain.MessagePage{Messages: msgs, Total: len(msgs), TotalPages: pages, Page: 0, Size: len(msgs)}, nil
	}
	var p pageDTO
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("decode message page: %w", err)
	}
	items := p.Content
	if items == nil {
		items = p.Messages
	}
	msgs := mapMessages(items)
	if p.TotalElements == 0 {
		p.TotalElements = len(msgs)
	}
	if p.Size == 0 {
		p.Size = req.Size
	}
	return &domain.MessagePage{
		Messages:   msgs,
		Total:      p.TotalElements,
		TotalPages: p.TotalPages,
		Page:       p.Number,
		Size:       p.Size,
	}, nil
}

type friendRequestDTO struct {
	ID         wireID   `json:"id"`
	SenderID   wireID   `json:"senderId"`
	ReceiverID wireID   `json:"receiverId"`
	Status     string   `json:"status"`
	CreatedAt  wireTime `json:"createdAt"`
	Sender     *userDTO `json:"sender"`
}

func (f friendRequestDTO) toDomain() domain.FriendRequest {
	out := domain.FriendRequest{
		ID:         string(f.ID),
		SenderID:   string(f.SenderID),
		ReceiverID: string(f.ReceiverID),
		Status:     domain.RequestStatus(strings.ToLower(f.Status)),
		CreatedAt:  f.CreatedAt.Time,
	}
	if out.Status == "" {
		out.Status = domain.RequestPending
	}
	if f.Sender != nil {
		out.Sender = f.Sender.toDomain()
		if out.SenderID == "" {
			out.SenderID = out.Sender.ID
		}
	}
	return out
}

type authDTO struct {
	Token       string  `json:"token"`
	AccessToken string  `json:"accessToken"`
	User        userDTO `json:"user"`
}

func (a authDTO) toDomain() (*domain.Session, error) {
	tok := a.Token
	if tok == "" {
		tok = a.AccessToken
	}
	if tok == "" || a.User.ID == "" {
		return nil, fmt.Errorf("auth response missing token or user")
	}
	return &domain.Session{User: a.User.toDomain(), Token: tok}, nil
}

type attachmentDTO struct {
	ID         wireID   `json:"id"`
	MessageID  wireID   `json:"messageId"`
	FileName   string   `json:"fileName"`
	FileURL    string   `json:"fileUrl"`
	FileType   string   `json:"fileType"`
	FileSize   int64    `json:"fileSize"`
	UploadedAt wireTime `json:"uploadedAt"`
}

func (a attachmentDTO) toDomain() domain.Attachment {
	return domain.Attachment{
		ID:          string(a.ID),
		MessageID:   string(a.MessageID),
		FileName:    a.FileName,
		URL:         a.FileURL,
		ContentType: a.FileType,
		Size:        a.FileSize,
		UploadedAt:  a.UploadedAt.Time,
	}
}

type botDTO struct {
	ID       wireID `json:"id"`
	BotID    wireID `json:"botId"`
	Name     string `json:"name"`
	BotName  string `json:"botName"`
	Provider string `json:"provider"`
	Model    string `json:"model"`
}

func (b botDTO) toDomain() domain.Bot {
	out := domain.Bot{
		ID:       string(b.BotID),
		Name:     b.BotName,
		Provider: strings.ToLower(b.Provider),
		Model:    b.Model,
	}
	if out.ID == "" {
		out.ID = string(b.ID)
	}
	if out.Name == "" {
		out.Name = b.Name
	}
	return out
}
