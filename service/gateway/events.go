package gateway

import (
	"encoding/json"
	"time"

	"PGateway/tools/errs"
)

// EventType is the closed set of frame kinds on the wire. Inbound kinds
// are dispatched exhaustively; an unknown kind is a validation error, not
// a dropped frame.
type EventType string

// Inbound kinds.
const (
	EvtJoinRoom       EventType = "join_room"
	EvtLeaveRoom      EventType = "leave_room"
	EvtSendMessage    EventType = "send_message"
	EvtSendPrivate    EventType = "send_private_message"
	EvtEditMessage    EventType = "edit_message"
	EvtDeleteMessage  EventType = "delete_message"
	EvtReaction       EventType = "message_reaction"
	EvtTypingStart    EventType = "typing_start"
	EvtTypingStop     EventType = "typing_stop"
	EvtMarkAsRead     EventType = "mark_as_read"
	EvtUpdateStatus   EventType = "update_status"
	EvtPinMessage     EventType = "pin_message"
	EvtUnpinMessage   EventType = "unpin_message"
)

// Outbound kinds.
const (
	EvtRoomJoined      EventType = "room_joined"
	EvtRoomLeft        EventType = "room_left"
	EvtMessageReceived EventType = "message_received"
	EvtMessageSent     EventType = "message_sent"
	EvtPrivateReceived EventType = "private_message_received"
	EvtPrivateSent     EventType = "private_message_sent"
	EvtMessageEdited   EventType = "message_edited"
	EvtMessageDeleted  EventType = "message_deleted"
	EvtUserOnline      EventType = "user_online"
	EvtUserOffline     EventType = "user_offline"
	EvtUserJoined      EventType = "user_joined"
	EvtUserLeft        EventType = "user_left"
	EvtUserStatus      EventType = "user_status"
	EvtOnlineUsers     EventType = "online_users"
	EvtMessagesRead    EventType = "messages_read"
	EvtMessagePinned   EventType = "message_pinned"
	EvtError           EventType = "error"
)

// InboundEvent is one client frame. Payload stays an untyped map here;
// handlers decode it into the typed payload for their kind.
type InboundEvent struct {
	Type    EventType      `json:"type"`
	Payload map[string]any `json:"payload"`
}

// OutboundEvent is one server frame. Ts is the server timestamp in
// milliseconds for every kind.
type OutboundEvent struct {
	Type    EventType `json:"type"`
	Ts      int64     `json:"ts"`
	Payload any       `json:"payload,omitempty"`
}

func ParseInbound(raw []byte) (*InboundEvent, error) {
	var evt InboundEvent
	if err := json.Unmarshal(raw, &evt); err != nil {
		return nil, err
	}
	if evt.Type == "" {
		return nil, errs.ErrValidation.WithDetail("missing event type")
	}
	return &evt, nil
}

// NewOutbound stamps the event with the current server time.
func NewOutbound(t EventType, payload any) *OutboundEvent {
	return &OutboundEvent{Type: t, Ts: time.Now().UnixMilli(), Payload: payload}
}

func (e *OutboundEvent) Encode() []byte {
	b, err := json.Marshal(e)
	if err != nil {
		// Payloads are plain structs; a marshal failure is a programming
		// error surfaced as an empty error frame.
		b, _ = json.Marshal(&OutboundEvent{Type: EvtError, Ts: e.Ts})
	}
	return b
}

// ---- Inbound payloads ----

type JoinRoomPayload struct {
	RoomID string `json:"room_id"`
}

type LeaveRoomPayload struct {
	RoomID string `json:"room_id"`
}

type SendMessagePayload struct {
	RoomID      string            `json:"room_id"`
	Content     string            `json:"content"`
	ContentType string            `json:"type"`
	ReplyTo     string            `json:"reply_to,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	ClientMsgID string            `json:"client_msg_id,omitempty"`
}

type SendPrivatePayload struct {
	RecipientID string            `json:"recipient_id"`
	Content     string            `json:"content"`
	ContentType string            `json:"type"`
	ReplyTo     string            `json:"reply_to,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	ClientMsgID string            `json:"client_msg_id,omitempty"`
}

type EditMessagePayload struct {
	MessageID string `json:"message_id"`
	Content   string `json:"content"`
}

type DeleteMessagePayload struct {
	MessageID string `json:"message_id"`
}

type ReactionPayload struct {
	MessageID string `json:"message_id"`
	Emoji     string `json:"emoji"`
	Action    string `json:"action"` // "add" or "remove"
}

type TypingPayload struct {
	RoomID      string `json:"room_id,omitempty"`
	RecipientID string `json:"recipient_id,omitempty"`
}

type MarkAsReadPayload struct {
	MessageIDs []string `json:"message_ids"`
}

type UpdateStatusPayload struct {
	Status        string `json:"status"`
	StatusMessage string `json:"status_message,omitempty"`
}

type PinPayload struct {
	MessageID string `json:"message_id"`
}

// ---- Outbound payloads ----

type RoomJoinedPayload struct {
	RoomID  string    `json:"room_id"`
	UserID  string    `json:"user_id"`
	History []Message `json:"history"` // newest first, capped
}

type RoomEventPayload struct {
	RoomID string `json:"room_id"`
	UserID string `json:"user_id"`
}

type MessagePayload struct {
	Message Message `json:"message"`
}

type AckPayload struct {
	Message     Message `json:"message"`
	ClientMsgID string  `json:"client_msg_id,omitempty"`
}

type TypingEventPayload struct {
	UserID      string `json:"user_id"`
	RoomID      string `json:"room_id,omitempty"`
	RecipientID string `json:"recipient_id,omitempty"`
}

type PresencePayload struct {
	UserID string `json:"user_id"`
	RoomID string `json:"room_id,omitempty"`
}

type StatusPayload struct {
	UserID        string `json:"user_id"`
	Status        string `json:"status"`
	StatusMessage string `json:"status_message,omitempty"`
	RoomID        string `json:"room_id,omitempty"`
}

type OnlineUsersPayload struct {
	Users []string `json:"users"`
}

type MessagesReadPayload struct {
	MessageIDs []string `json:"message_ids"`
}

type MessagePinnedPayload struct {
	MessageID string `json:"message_id"`
	Pinned    bool   `json:"pinned"`
}

type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
}

// ErrorEvent converts any error into the single error frame reported to
// the acting connection.
func ErrorEvent(err error) *OutboundEvent {
	ce := errs.AsCodeError(err)
	return NewOutbound(EvtError, ErrorPayload{
		Code:    errs.CodeName(ce.Code),
		Message: ce.Msg,
		Detail:  ce.Detail,
	})
}
