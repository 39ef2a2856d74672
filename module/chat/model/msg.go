package model

import (
	"time"

	"PGateway/service/gateway"
)

const MessageCollection = "message"

// MessageModel is the storage shape of a chat message. Room messages set
// RoomID; private messages set RecipientID.
type MessageModel struct {
	ID          string              `bson:"_id"`
	RoomID      string              `bson:"room_id,omitempty"`
	SenderID    string              `bson:"sender_id"`
	RecipientID string              `bson:"recipient_id,omitempty"`
	Content     string              `bson:"content"`
	ContentType string              `bson:"content_type"`
	ReplyTo     string              `bson:"reply_to,omitempty"`
	Metadata    map[string]string   `bson:"metadata,omitempty"`
	Reactions   map[string][]string `bson:"reactions,omitempty"`
	Pinned      bool                `bson:"pinned,omitempty"`
	Deleted     bool                `bson:"deleted,omitempty"`
	ReadBy      []string            `bson:"read_by,omitempty"`
	CreatedAtMS int64               `bson:"created_at_ms"`
	EditedAtMS  int64               `bson:"edited_at_ms,omitempty"`
}

// ToGateway maps the storage model onto the wire shape.
func (m *MessageModel) ToGateway() gateway.Message {
	out := gateway.Message{
		ID:          m.ID,
		RoomID:      m.RoomID,
		SenderID:    m.SenderID,
		RecipientID: m.RecipientID,
		Content:     m.Content,
		ContentType: m.ContentType,
		ReplyTo:     m.ReplyTo,
		Metadata:    m.Metadata,
		Reactions:   m.Reactions,
		Pinned:      m.Pinned,
		Deleted:     m.Deleted,
		CreatedAt:   time.UnixMilli(m.CreatedAtMS),
	}
	if m.EditedAtMS > 0 {
		t := time.UnixMilli(m.EditedAtMS)
		out.EditedAt = &t
	}
	return out
}
