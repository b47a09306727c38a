/*
Package chat contains the session & broadcast engine: the hub event loop, the
websocket client pumps, and the wire event types exchanged with clients.

This file defines the JSON event envelope and every inbound and outbound
payload shape.
*/
package chat

import (
	"encoding/json"
	"time"

	"huddle/internal/app/history"
	"huddle/internal/app/presence"
	"huddle/internal/app/user"
	"huddle/internal/pkg/randx"
)

// EventType names one kind of wire event.
type EventType string

// Inbound events (client -> server).
const (
	// EventLogin is an interactive login attempt with credentials.
	EventLogin EventType = "LOGIN"

	// EventSessionLogin is a silent re-authentication with a stored token.
	EventSessionLogin EventType = "SESSION_LOGIN"

	// EventText is a chat message from an authenticated connection.
	EventText EventType = "TEXT"

	// EventTypingStart and EventTypingStop signal the typing indicator.
	EventTypingStart EventType = "TYPING_START"
	EventTypingStop  EventType = "TYPING_STOP"

	// EventLogout is an explicit sign-off; the connection is discarded after it.
	EventLogout EventType = "LOGOUT"
)

// Outbound events (server -> client).
const (
	// EventLoginError reports a failed login or resumption to the requester only.
	EventLoginError EventType = "LOGIN_ERROR"

	// EventSession acknowledges the session token to hold for resumption.
	EventSession EventType = "SESSION"

	// EventHistory replays the retained message log to a new authentication.
	EventHistory EventType = "HISTORY"

	// EventMessage carries one chat message to every connection.
	EventMessage EventType = "MESSAGE"

	// EventUserJoined and EventUserLeft announce roster changes to everyone
	// except the connection that caused them.
	EventUserJoined EventType = "USER_JOINED"
	EventUserLeft   EventType = "USER_LEFT"

	// EventPresence carries the full roster snapshot to every connection.
	EventPresence EventType = "PRESENCE"

	// EventTyping carries a typing-state change to everyone except the typist.
	EventTyping EventType = "TYPING"

	// EventError reports a rejected intent (such as an over-long message) to
	// the offending connection only.
	EventError EventType = "ERROR"
)

// Event is the outbound envelope. Payload shape depends on Type.
type Event struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	Timestamp int64     `json:"timestamp"`
	Payload   any       `json:"payload,omitempty"`
}

// NewEvent builds an outbound envelope with a fresh id and the current time
// in Unix milliseconds.
func NewEvent(eventType EventType, payload any) Event {
	return Event{
		ID:        randx.MessageID(),
		Type:      eventType,
		Timestamp: time.Now().UnixMilli(),
		Payload:   payload,
	}
}

// inboundEvent is the envelope clients send. Payload stays raw until the
// event type chooses its shape.
type inboundEvent struct {
	Type    EventType       `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// LoginPayload is the EventLogin payload.
type LoginPayload struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Avatar   string `json:"avatar"`
}

// SessionLoginPayload is the EventSessionLogin payload.
type SessionLoginPayload struct {
	Token    string `json:"token"`
	Username string `json:"username"`
}

// TextPayload is the EventText payload.
type TextPayload struct {
	Text string `json:"text"`
}

// LoginErrorPayload is the EventLoginError payload.
type LoginErrorPayload struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// ErrorPayload is the EventError payload.
type ErrorPayload struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// SessionPayload is the EventSession payload: the token/username pair the
// client must store and replay on its next connection.
type SessionPayload struct {
	Token    string `json:"token"`
	Username string `json:"username"`
}

// HistoryPayload is the EventHistory payload.
type HistoryPayload struct {
	Messages []history.Message `json:"messages"`
}

// UserEventPayload is the EventUserJoined / EventUserLeft payload.
type UserEventPayload struct {
	User user.User `json:"user"`
}

// PresencePayload is the EventPresence payload.
type PresencePayload struct {
	Users []presence.Entry `json:"users"`
}

// TypingPayload is the EventTyping payload.
type TypingPayload struct {
	ConnID   string `json:"connId"`
	Username string `json:"username"`
	IsTyping bool   `json:"isTyping"`
}
