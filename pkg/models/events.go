package models

import (
	"encoding/json"
	"fmt"
)

// EventKind enumerates every event carried over the realtime channel.
// Payloads are typed per kind; the wire format is {"event": kind, "data": ...}.
type EventKind string

// Client -> server events.
const (
	EvUserJoin          EventKind = "user_join"
	EvSendMessage       EventKind = "send_message"
	EvPrivateMessage    EventKind = "private_message"
	EvTyping            EventKind = "typing"
	EvEditMessage       EventKind = "edit_message"
	EvDeleteMessage     EventKind = "delete_message"
	EvEditPrivate       EventKind = "edit_private_message"
	EvDeletePrivate     EventKind = "delete_private_message"
	EvDeletePrivateChat EventKind = "delete_private_chat"
)

// Server -> client events.
const (
	EvUserList          EventKind = "user_list"
	EvUserJoined        EventKind = "user_joined"
	EvUserLeft          EventKind = "user_left"
	EvReceiveMessage    EventKind = "receive_message"
	EvTypingUsers       EventKind = "typing_users"
	EvMessageEdited     EventKind = "message_edited"
	EvMessageDeleted    EventKind = "message_deleted"
	EvPrivateEdited     EventKind = "private_message_edited"
	EvPrivateDeleted    EventKind = "private_message_deleted"
	EvForceLogout       EventKind = "force_logout"
	EvPrivateChatGone   EventKind = "private_chat_deleted"
	EvPrivateChatGoneBy EventKind = "private_chat_deleted_by_other"
	EvRecentMessages    EventKind = "recent_messages"
)

// Event is the fixed tagged envelope for the transport boundary.
type Event struct {
	Kind EventKind       `json:"event"`
	Data json.RawMessage `json:"data,omitempty"`
}

// NewEvent builds an Event with the payload JSON-encoded. A nil payload
// yields an envelope with no data field.
func NewEvent(kind EventKind, payload any) (Event, error) {
	if payload == nil {
		return Event{Kind: kind}, nil
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return Event{}, fmt.Errorf("encode %s payload: %w", kind, err)
	}
	return Event{Kind: kind, Data: b}, nil
}

// MustEvent is NewEvent for payloads that cannot fail to encode.
func MustEvent(kind EventKind, payload any) Event {
	ev, err := NewEvent(kind, payload)
	if err != nil {
		panic(err)
	}
	return ev
}

// Decode unmarshals the event payload into out.
func (e Event) Decode(out any) error {
	if len(e.Data) == 0 {
		return fmt.Errorf("event %s has no payload", e.Kind)
	}
	if err := json.Unmarshal(e.Data, out); err != nil {
		return fmt.Errorf("decode %s payload: %w", e.Kind, err)
	}
	return nil
}

// --- inbound payloads ---

// UserJoinPayload carries the username binding a connection.
type UserJoinPayload struct {
	Username string `json:"username"`
}

// SendMessagePayload is a group message submission.
type SendMessagePayload struct {
	Sender  string `json:"sender"`
	Body    string `json:"message"`
	ReplyTo int64  `json:"replyTo,omitempty"`
}

// PrivateMessagePayload is a direct message submission.
type PrivateMessagePayload struct {
	To      string `json:"to"`
	Sender  string `json:"sender"`
	Body    string `json:"message"`
	ReplyTo int64  `json:"replyTo,omitempty"`
}

// TypingPayload flips the sender's typing state within a scope.
type TypingPayload struct {
	IsTyping bool        `json:"isTyping"`
	Scope    TypingScope `json:"chatContext"`
}

// EditPayload rewrites the body of an owned message.
type EditPayload struct {
	ID      int64  `json:"id"`
	NewBody string `json:"newContent"`
}

// DeletePayload soft-deletes an owned message.
type DeletePayload struct {
	ID int64 `json:"id"`
}

// DeletePrivateChatPayload erases a private conversation for both sides.
type DeletePrivateChatPayload struct {
	Username  string `json:"username"`
	OtherUser string `json:"otherUser"`
}

// --- outbound payloads ---

// UserPresencePayload announces a single user joining or leaving.
type UserPresencePayload struct {
	Username string `json:"username"`
}

// EditedPayload announces an applied edit.
type EditedPayload struct {
	ID      int64  `json:"id"`
	NewBody string `json:"newContent"`
}

// DeletedPayload announces an applied soft-delete.
type DeletedPayload struct {
	ID int64 `json:"id"`
}

// ChatDeletedByPayload tells the counterpart who erased the conversation.
type ChatDeletedByPayload struct {
	Username string `json:"username"`
}
