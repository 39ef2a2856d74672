package gateway

import (
	"context"
	"time"
)

// Message is the wire/domain shape the gateway fans out. Persistence
// collaborators map their storage models into it.
type Message struct {
	ID          string              `json:"id"`
	RoomID      string              `json:"room_id,omitempty"`
	SenderID    string              `json:"sender_id"`
	RecipientID string              `json:"recipient_id,omitempty"`
	Content     string              `json:"content"`
	ContentType string              `json:"type"`
	ReplyTo     string              `json:"reply_to,omitempty"`
	Metadata    map[string]string   `json:"metadata,omitempty"`
	Reactions   map[string][]string `json:"reactions,omitempty"` // emoji -> user ids
	Pinned      bool                `json:"pinned,omitempty"`
	Deleted     bool                `json:"deleted,omitempty"`
	CreatedAt   time.Time           `json:"created_at"`
	EditedAt    *time.Time          `json:"edited_at,omitempty"`
}

// IsPrivate reports whether the message belongs to a 1:1 conversation.
func (m *Message) IsPrivate() bool { return m.RoomID == "" }

// CreateMessageInput carries a validated send request into the Message
// collaborator. Exactly one of RoomID / RecipientID is set.
type CreateMessageInput struct {
	SenderID    string
	RoomID      string
	RecipientID string
	Content     string
	ContentType string
	ReplyTo     string
	Metadata    map[string]string
}

// MessageService is the persistence collaborator for messages. Each call
// either fully applies the mutation or returns a coded error; the gateway
// never retries.
type MessageService interface {
	Create(ctx context.Context, in CreateMessageInput) (*Message, error)
	Edit(ctx context.Context, actorID, messageID, content string) (*Message, error)
	Delete(ctx context.Context, actorID, messageID string) (*Message, error)
	ToggleReaction(ctx context.Context, actorID, messageID, emoji, action string) (*Message, error)
	MarkRead(ctx context.Context, actorID string, messageIDs []string) error
	FetchPage(ctx context.Context, roomID string, limit int) ([]Message, error)
	SetPinned(ctx context.Context, actorID, messageID string, pinned bool) (*Message, error)
}

// RoomService answers persisted membership questions and applies
// join/leave durably.
type RoomService interface {
	CanJoin(ctx context.Context, userID, roomID string) error
	Join(ctx context.Context, userID, roomID string) error
	Leave(ctx context.Context, userID, roomID string) error
	// RoomsOf lists rooms whose persisted membership includes the user;
	// used to seed live membership at connect time.
	RoomsOf(ctx context.Context, userID string) ([]string, error)
}

// UserService owns user-level policy and presence persistence.
type UserService interface {
	// IsBlocked reports whether either side blocks the other.
	IsBlocked(ctx context.Context, userID, otherID string) (bool, error)
	SetOnline(ctx context.Context, userID, nodeID string) error
	SetOffline(ctx context.Context, userID string, lastSeen time.Time) error
	SetStatus(ctx context.Context, userID, status, statusMessage string) error
}

// AuthService verifies the handshake credential and resolves the user
// identity. Connections failing this never reach the registry.
type AuthService interface {
	VerifyAndResolve(ctx context.Context, credential string) (string, error)
}

// EventFeed mirrors persisted chat events onto a broker for downstream
// consumers (archiver, notification workers). Live fan-out never depends
// on it; a nil feed disables mirroring.
type EventFeed interface {
	Publish(ctx context.Context, subject string, v any) error
}
