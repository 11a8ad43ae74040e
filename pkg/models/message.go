package models

import (
	"encoding/json"
	"time"
)

type EventType string

const (
	EventTypeAuth      EventType = "auth"
	EventTypeMessage   EventType = "message"
	EventTypeTyping    EventType = "typing"
	EventTypeRead      EventType = "read"
	EventTypeDelivered EventType = "delivered"
	EventTypeUserList  EventType = "userList"
	EventTypeStatus    EventType = "status"
	EventTypeHistory   EventType = "history"
	EventTypeError     EventType = "error"

	EventTypeJoin              EventType = "join"
	EventTypeBalanceUpdated    EventType = "balance_updated"
	EventTypePaymentSuccessful EventType = "payment_successful"
)

// Event is the envelope for everything that crosses a WebSocket,
// in either direction.
type Event struct {
	Type    EventType   `json:"type"`
	Payload interface{} `json:"payload,omitempty"`
}

// InboundEvent keeps the payload raw until the handler registered
// for the event type decodes it.
type InboundEvent struct {
	Type    EventType       `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type MessageKind string

const (
	MessageKindText  MessageKind = "text"
	MessageKindOther MessageKind = "other"
)

type ChatMessage struct {
	ID        string      `json:"id"`
	From      string      `json:"from"`
	To        string      `json:"to"`
	Content   string      `json:"content"`
	Kind      MessageKind `json:"type"`
	CreatedAt time.Time   `json:"createdAt"`
	Delivered bool        `json:"delivered"`
	Read      bool        `json:"read"`
}

type AuthPayload struct {
	Username string `json:"username"`
	UserID   string `json:"userId,omitempty"`
}

type AuthResult struct {
	Success  bool   `json:"success"`
	UserID   string `json:"userId"`
	Username string `json:"username"`
}

type SendMessagePayload struct {
	To      string `json:"to"`
	Content string `json:"content"`
	Kind    string `json:"type,omitempty"`
}

type TypingPayload struct {
	To     string `json:"to"`
	Typing bool   `json:"typing"`
}

type TypingNotice struct {
	From     string `json:"from"`
	Username string `json:"username"`
	Typing   bool   `json:"typing"`
}

type ReadPayload struct {
	From       string   `json:"from"`
	MessageIDs []string `json:"messageIds"`
}

type ReadNotice struct {
	MessageIDs []string `json:"messageIds"`
	By         string   `json:"by"`
}

type DeliveredNotice struct {
	MessageID string `json:"messageId"`
	To        string `json:"to"`
}

type StatusNotice struct {
	UserID   string    `json:"userId"`
	Username string    `json:"username"`
	Online   bool      `json:"online"`
	LastSeen time.Time `json:"lastSeen"`
}

type UserListPayload struct {
	Users []*User `json:"users"`
}

type HistoryPayload struct {
	Messages []*ChatMessage `json:"messages"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}

type JoinPayload struct {
	ID string `json:"id"`
}
