package service

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	chatmodel "PGateway/module/chat/model"
	usermodel "PGateway/module/user/model"
	"PGateway/service/gateway"
	"PGateway/tools/errs"
	"PGateway/tools/ids"
)

// MessageStore is the Mongo-backed Message collaborator. It owns the
// mutation-side authorization the gateway delegates: membership and mute
// for creates, ownership and edit window for edits, admin override for
// deletes.
type MessageStore struct {
	msgs       *mongo.Collection
	rooms      *mongo.Collection
	users      *mongo.Collection
	editWindow time.Duration
}

func NewMessageStore(db *mongo.Database, editWindow time.Duration) *MessageStore {
	if editWindow <= 0 {
		editWindow = 15 * time.Minute
	}
	return &MessageStore{
		msgs:       db.Collection(chatmodel.MessageCollection),
		rooms:      db.Collection(chatmodel.RoomCollection),
		users:      db.Collection(usermodel.UserCollection),
		editWindow: editWindow,
	}
}

func (s *MessageStore) loadRoom(ctx context.Context, roomID string) (*chatmodel.RoomModel, error) {
	var room chatmodel.RoomModel
	err := s.rooms.FindOne(ctx, bson.M{"_id": roomID}).Decode(&room)
	if err == mongo.ErrNoDocuments {
		return nil, errs.ErrNotFound.WithDetail("room " + roomID)
	}
	if err != nil {
		return nil, errs.ErrInternal.WrapMsg("load room")
	}
	return &room, nil
}

func (s *MessageStore) loadMessage(ctx context.Context, messageID string) (*chatmodel.MessageModel, error) {
	var msg chatmodel.MessageModel
	err := s.msgs.FindOne(ctx, bson.M{"_id": messageID}).Decode(&msg)
	if err == mongo.ErrNoDocuments {
		return nil, errs.ErrNotFound.WithDetail("message " + messageID)
	}
	if err != nil {
		return nil, errs.ErrInternal.WrapMsg("load message")
	}
	return &msg, nil
}

func (s *MessageStore) loadUser(ctx context.Context, userID string) (*usermodel.UserModel, error) {
	var u usermodel.UserModel
	err := s.users.FindOne(ctx, bson.M{"_id": userID}).Decode(&u)
	if err == mongo.ErrNoDocuments {
		return nil, errs.ErrNotFound.WithDetail("user " + userID)
	}
	if err != nil {
		return nil, errs.ErrInternal.WrapMsg("load user")
	}
	return &u, nil
}

// Mutation authorization is decided by the policy functions below, kept
// pure over the loaded models so the rules can be checked without a
// database.

func sendPolicy(room *chatmodel.RoomModel, senderID string) error {
	if !room.HasMember(senderID) {
		return errs.ErrAccessDenied.WithDetail("not a room member")
	}
	if room.IsMuted(senderID) {
		return errs.ErrAccessDenied.WithDetail("muted in this room")
	}
	return nil
}

func editPolicy(msg *chatmodel.MessageModel, actorID string, now time.Time, window time.Duration) error {
	if msg.Deleted {
		return errs.ErrNotFound.WithDetail("message deleted")
	}
	if msg.SenderID != actorID {
		return errs.ErrAccessDenied.WithDetail("only the sender may edit")
	}
	if now.Sub(time.UnixMilli(msg.CreatedAtMS)) > window {
		return errs.ErrAccessDenied.WithDetail("edit window expired")
	}
	return nil
}

// deletePolicy: the sender may always delete; room admins may remove
// other members' messages. room is nil for private messages.
func deletePolicy(msg *chatmodel.MessageModel, room *chatmodel.RoomModel, actorID string) error {
	if msg.Deleted {
		return errs.ErrNotFound.WithDetail("message deleted")
	}
	if msg.SenderID == actorID {
		return nil
	}
	if room == nil {
		return errs.ErrAccessDenied.WithDetail("only the sender may delete")
	}
	if !room.HasAdmin(actorID) {
		return errs.ErrAccessDenied.WithDetail("admin required")
	}
	return nil
}

// pinPolicy: room pins need admin; private pins are sender-only.
func pinPolicy(msg *chatmodel.MessageModel, room *chatmodel.RoomModel, actorID string) error {
	if msg.Deleted {
		return errs.ErrNotFound.WithDetail("message deleted")
	}
	if room != nil {
		if !room.HasAdmin(actorID) {
			return errs.ErrAccessDenied.WithDetail("admin required")
		}
		return nil
	}
	if msg.SenderID != actorID {
		return errs.ErrAccessDenied.WithDetail("only the sender may pin")
	}
	return nil
}

func (s *MessageStore) Create(ctx context.Context, in gateway.CreateMessageInput) (*gateway.Message, error) {
	if in.RoomID != "" {
		room, err := s.loadRoom(ctx, in.RoomID)
		if err != nil {
			return nil, err
		}
		if err := sendPolicy(room, in.SenderID); err != nil {
			return nil, err
		}
	} else {
		recipient, err := s.loadUser(ctx, in.RecipientID)
		if err != nil {
			return nil, err
		}
		sender, err := s.loadUser(ctx, in.SenderID)
		if err != nil {
			return nil, err
		}
		if recipient.HasBlocked(in.SenderID) || sender.HasBlocked(in.RecipientID) {
			return nil, errs.ErrAccessDenied.WithDetail("messaging unavailable for this user")
		}
	}

	contentType := in.ContentType
	if contentType == "" {
		contentType = "text"
	}
	m := &chatmodel.MessageModel{
		ID:          ids.GenerateString(),
		RoomID:      in.RoomID,
		SenderID:    in.SenderID,
		RecipientID: in.RecipientID,
		Content:     in.Content,
		ContentType: contentType,
		ReplyTo:     in.ReplyTo,
		Metadata:    in.Metadata,
		CreatedAtMS: time.Now().UnixMilli(),
	}
	if _, err := s.msgs.InsertOne(ctx, m); err != nil {
		return nil, errs.ErrInternal.WrapMsg("insert message")
	}
	out := m.ToGateway()
	return &out, nil
}

func (s *MessageStore) Edit(ctx context.Context, actorID, messageID, content string) (*gateway.Message, error) {
	msg, err := s.loadMessage(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if err := editPolicy(msg, actorID, time.Now(), s.editWindow); err != nil {
		return nil, err
	}

	return s.updateAndReturn(ctx, messageID, bson.M{"$set": bson.M{
		"content":      content,
		"edited_at_ms": time.Now().UnixMilli(),
	}})
}

func (s *MessageStore) Delete(ctx context.Context, actorID, messageID string) (*gateway.Message, error) {
	msg, err := s.loadMessage(ctx, messageID)
	if err != nil {
		return nil, err
	}
	var room *chatmodel.RoomModel
	if msg.SenderID != actorID && msg.RoomID != "" {
		if room, err = s.loadRoom(ctx, msg.RoomID); err != nil {
			return nil, err
		}
	}
	if err := deletePolicy(msg, room, actorID); err != nil {
		return nil, err
	}

	// Tombstone rather than remove, so history pagination stays stable.
	return s.updateAndReturn(ctx, messageID, bson.M{"$set": bson.M{
		"deleted": true,
		"content": "",
	}})
}

func (s *MessageStore) ToggleReaction(ctx context.Context, actorID, messageID, emoji, action string) (*gateway.Message, error) {
	msg, err := s.loadMessage(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if msg.Deleted {
		return nil, errs.ErrNotFound.WithDetail("message deleted")
	}
	if err := s.requireParticipant(ctx, actorID, msg); err != nil {
		return nil, err
	}

	field := "reactions." + emoji
	var update bson.M
	if action == "add" {
		update = bson.M{"$addToSet": bson.M{field: actorID}}
	} else {
		update = bson.M{"$pull": bson.M{field: actorID}}
	}
	return s.updateAndReturn(ctx, messageID, update)
}

func (s *MessageStore) MarkRead(ctx context.Context, actorID string, messageIDs []string) error {
	_, err := s.msgs.UpdateMany(ctx,
		bson.M{"_id": bson.M{"$in": messageIDs}},
		bson.M{"$addToSet": bson.M{"read_by": actorID}},
	)
	if err != nil {
		return errs.ErrInternal.WrapMsg("mark read")
	}
	return nil
}

func (s *MessageStore) FetchPage(ctx context.Context, roomID string, limit int) ([]gateway.Message, error) {
	if limit <= 0 {
		limit = 50
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at_ms", Value: -1}}).
		SetLimit(int64(limit))
	cur, err := s.msgs.Find(ctx, bson.M{"room_id": roomID, "deleted": bson.M{"$ne": true}}, opts)
	if err != nil {
		return nil, errs.ErrInternal.WrapMsg("fetch page")
	}
	defer cur.Close(ctx)

	var out []gateway.Message
	for cur.Next(ctx) {
		var m chatmodel.MessageModel
		if err := cur.Decode(&m); err != nil {
			return nil, errs.ErrInternal.WrapMsg("decode message")
		}
		out = append(out, m.ToGateway())
	}
	if err := cur.Err(); err != nil {
		return nil, errs.ErrInternal.WrapMsg("cursor")
	}
	return out, nil
}

func (s *MessageStore) SetPinned(ctx context.Context, actorID, messageID string, pinned bool) (*gateway.Message, error) {
	msg, err := s.loadMessage(ctx, messageID)
	if err != nil {
		return nil, err
	}
	var room *chatmodel.RoomModel
	if msg.RoomID != "" {
		if room, err = s.loadRoom(ctx, msg.RoomID); err != nil {
			return nil, err
		}
	}
	if err := pinPolicy(msg, room, actorID); err != nil {
		return nil, err
	}

	return s.updateAndReturn(ctx, messageID, bson.M{"$set": bson.M{"pinned": pinned}})
}

// requireParticipant checks the actor can see the message: room member
// for room messages, either side for private ones. Blocked participants
// keep reaction rights; blocking gates new messages, not existing
// conversations.
func (s *MessageStore) requireParticipant(ctx context.Context, actorID string, msg *chatmodel.MessageModel) error {
	if msg.RoomID != "" {
		room, err := s.loadRoom(ctx, msg.RoomID)
		if err != nil {
			return err
		}
		if !room.HasMember(actorID) {
			return errs.ErrAccessDenied.WithDetail("not a room member")
		}
		return nil
	}
	if actorID != msg.SenderID && actorID != msg.RecipientID {
		return errs.ErrAccessDenied.WithDetail("not a participant")
	}
	return nil
}

func (s *MessageStore) updateAndReturn(ctx context.Context, messageID string, update bson.M) (*gateway.Message, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var m chatmodel.MessageModel
	err := s.msgs.FindOneAndUpdate(ctx, bson.M{"_id": messageID}, update, opts).Decode(&m)
	if err == mongo.ErrNoDocuments {
		return nil, errs.ErrNotFound.WithDetail("message " + messageID)
	}
	if err != nil {
		return nil, errs.ErrInternal.WrapMsg("update message")
	}
	out := m.ToGateway()
	return &out, nil
}
