package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/chitchat/chitchat/pkg/domain"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 << 10
	sendBufSize    = 32
)

// ErrNotConnected is returned by Realtime.Send when no connection is live.
var ErrNotConnected = errors.New("push channel not connected")

// envelope is the push-channel frame in both directions.
type envelope struct {
	Type    domain.EventType `json:"type"`
	Payload json.RawMessage  `json:"payload"`
}

// Realtime is the websocket push channel. One Listen call owns one
// connection; Send writes through whichever connection is live.
type Realtime struct {
	url    string
	token  func() string
	dialer *websocket.Dialer

	// OnDecodeError, if set, is called for frames that cannot be decoded.
	OnDecodeError func(raw []byte, err error)

	mu   sync.Mutex
	send chan envelope
}

// NewRealtime creates a push channel client for wsURL. token is consulted on
// every dial so a refreshed credential is picked up on reconnect.
func NewRealtime(wsURL string, token func() string) *Realtime {
	return &Realtime{
		url:   wsURL,
		token: token,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: 10 * time.Second,
		},
	}
}

// Realtime returns a push channel client that authenticates with this
// client's current token.
func (c *Client) Realtime(wsURL string) *Realtime {
	if wsURL == "" {
		wsURL = WebSocketURL(c.baseURL)
	}
	return NewRealtime(wsURL, c.Token)
}

// WebSocketURL derives the push endpoint from an API base URL.
func WebSocketURL(apiBase string) string {
	u, err := url.Parse(apiBase)
	if err != nil {
		return ""
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/ws"
	return u.String()
}

// Listen connects and delivers decoded events to handle until ctx is
// cancelled (nil error) or the connection fails.
func (r *Realtime) Listen(ctx context.Context, handle func(domain.Event)) error {
	target, err := url.Parse(r.url)
	if err != nil {
		return fmt.Errorf("client.Listen: parse url: %w", err)
	}
	header := http.Header{}
	if tok := r.token(); tok != "" {
		q := target.Query()
		q.Set("token", tok)
		target.RawQuery = q.Encode()
		header.Set("Authorization", "Bearer "+tok)
	}

	conn, resp, err := r.dialer.DialContext(ctx, target.String(), header)
	if err != nil {
		if resp != nil && resp.StatusCode >= 400 {
			return fmt.Errorf("client.Listen: %w", &HTTPError{StatusCode: resp.StatusCode, Message: "websocket handshake rejected"})
		}
		return fmt.Errorf("client.Listen: dial: %w", err)
	}

	connCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	send := make(chan envelope, sendBufSize)
	r.mu.Lock()
	r.send = send
	r.mu.Unlock()
	defer func() {
		r.mu.Lock()
		if r.send == send {
			r.send = nil
		}
		r.mu.Unlock()
	}()

	writeDone := make(chan struct{})
	go func() {
		defer close(writeDone)
		r.writePump(connCtx, conn, send)
	}()

	readErr := r.readPump(connCtx, conn, handle)
	cancel()
	conn.Close() //nolint:errcheck // unblocks the write pump
	<-writeDone

	if ctx.Err() != nil {
		return nil
	}
	return fmt.Errorf("client.Listen: %w", readErr)
}

// Send queues an event on the live connection without blocking.
func (r *Realtime) Send(typ domain.EventType, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("client.Send: %w", err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.send == nil {
		return ErrNotConnected
	}
	select {
	case r.send <- envelope{Type: typ, Payload: data}:
		return nil
	default:
		return fmt.Errorf("client.Send: outbound buffer full")
	}
}

// SendTyping tells the room the local user started or stopped typing.
func (r *Realtime) SendTyping(roomID string, typing bool) error {
	return r.Send(domain.EventTyping, map[string]any{"roomId": roomID, "typing": typing})
}

func (r *Realtime) readPump(ctx context.Context, conn *websocket.Conn, handle func(domain.Event)) error {
	go func() {
		<-ctx.Done()
		conn.Close() //nolint:errcheck // unblocks ReadMessage
	}()

	conn.SetReadLimit(maxMessageSize)
	if err := conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		return err
	}
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}
		ev, err := decodeEvent(raw)
		if err != nil {
			if r.OnDecodeError != nil {
				r.OnDecodeError(raw, err)
			}
			continue
		}
		handle(ev)
	}
}

func (r *Realtime) writePump(ctx context.Context, conn *websocket.Conn, send <-chan envelope) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
			return
		case msg := <-send:
			if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := conn.WriteJSON(msg); err != nil {
				return
			}
		case <-ticker.C:
			if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

type deletedPayload struct {
	MessageID wireID `json:"messageId"`
	RoomID    wireID `json:"roomId"`
}

type typingPayload struct {
	RoomID   wireID `json:"roomId"`
	UserID   wireID `json:"userId"`
	Typing   *bool  `json:"typing"`
	IsTyping *bool  `json:"isTyping"`
}

type statusPayload struct {
	UserID wireID `json:"userId"`
	Online bool   `json:"online"`
}

type acceptedPayload struct {
	RequestID wireID   `json:"requestId"`
	Friend    *userDTO `json:"friend"`
}

func decodeEvent(raw []byte) (domain.Event, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return domain.Event{}, fmt.Errorf("decode envelope: %w", err)
	}
	ev := domain.Event{Type: env.Type}

	switch env.Type {
	case domain.EventNewMessage, domain.EventMessageEdited:
		var m messageDTO
		if err := json.Unmarshal(env.Payload, &m); err != nil {
			return ev, fmt.Errorf("decode %s: %w", env.Type, err)
		}
		msg := m.toDomain()
		if msg.ID == "" || msg.RoomID == "" {
			return ev, fmt.Errorf("decode %s: message without id or room", env.Type)
		}
		ev.Message = &msg
		ev.MessageID = msg.ID
		ev.RoomID = msg.RoomID
		ev.UserID = msg.SenderID
	case domain.EventMessageDeleted:
		var p deletedPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return ev, fmt.Errorf("decode %s: %w", env.Type, err)
		}
		ev.MessageID = string(p.MessageID)
		ev.RoomID = string(p.RoomID)
	case domain.EventTyping:
		var p typingPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return ev, fmt.Errorf("decode %s: %w", env.Type, err)
		}
		ev.RoomID = string(p.RoomID)
		ev.UserID = string(p.UserID)
		ev.Typing = true
		switch {
		case p.Typing != nil:
			ev.Typing = *p.Typing
		case p.IsTyping != nil:
			ev.Typing = *p.IsTyping
		}
	case domain.EventUserStatus:
		var p statusPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return ev, fmt.Errorf("decode %s: %w", env.Type, err)
		}
		ev.UserID = string(p.UserID)
		ev.Online = p.Online
	case domain.EventFriendRequest:
		var p friendRequestDTO
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return ev, fmt.Errorf("decode %s: %w", env.Type, err)
		}
		req := p.toDomain()
		ev.Request = &req
		ev.RequestID = req.ID
		ev.UserID = req.SenderID
	case domain.EventFriendRequestAccepted:
		var p acceptedPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return ev, fmt.Errorf("decode %s: %w", env.Type, err)
		}
		ev.RequestID = string(p.RequestID)
		if p.Friend != nil {
			u := p.Friend.toDomain()
			ev.Friend = &u
			ev.UserID = u.ID
		}
	default:
		return ev, fmt.Errorf("unknown event type %q", env.Type)
	}
	return ev, nil
}
