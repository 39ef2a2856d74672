package service

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	chatmodel "PGateway/module/chat/model"
	"PGateway/tools/errs"
)

// RoomStore is the Mongo-backed Room collaborator; the rooms collection
// holds authoritative membership.
type RoomStore struct {
	rooms *mongo.Collection
}

func NewRoomStore(db *mongo.Database) *RoomStore {
	return &RoomStore{rooms: db.Collection(chatmodel.RoomCollection)}
}

func (s *RoomStore) load(ctx context.Context, roomID string) (*chatmodel.RoomModel, error) {
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

// joinPolicy decides admission from the persisted room state alone.
// Existing members always pass; everyone else needs an open, non-full
// room and a clean ban list.
func joinPolicy(room *chatmodel.RoomModel, userID string) error {
	if room.IsBanned(userID) {
		return errs.ErrAccessDenied.WithDetail("banned from this room")
	}
	if room.HasMember(userID) {
		return nil
	}
	if !room.Open {
		return errs.ErrAccessDenied.WithDetail("not a room member")
	}
	if room.Full() {
		return errs.ErrConflict.WithDetail("room is full")
	}
	return nil
}

func (s *RoomStore) CanJoin(ctx context.Context, userID, roomID string) error {
	room, err := s.load(ctx, roomID)
	if err != nil {
		return err
	}
	return joinPolicy(room, userID)
}

// Join adds the user to the persisted member list; idempotent.
func (s *RoomStore) Join(ctx context.Context, userID, roomID string) error {
	res, err := s.rooms.UpdateOne(ctx,
		bson.M{"_id": roomID},
		bson.M{"$addToSet": bson.M{"members": userID}},
	)
	if err != nil {
		return errs.ErrInternal.WrapMsg("room join")
	}
	if res.MatchedCount == 0 {
		return errs.ErrNotFound.WithDetail("room " + roomID)
	}
	return nil
}

// Leave removes the user from members, admins and muted; idempotent.
func (s *RoomStore) Leave(ctx context.Context, userID, roomID string) error {
	res, err := s.rooms.UpdateOne(ctx,
		bson.M{"_id": roomID},
		bson.M{"$pull": bson.M{"members": userID, "admins": userID, "muted": userID}},
	)
	if err != nil {
		return errs.ErrInternal.WrapMsg("room leave")
	}
	if res.MatchedCount == 0 {
		return errs.ErrNotFound.WithDetail("room " + roomID)
	}
	return nil
}

// RoomsOf lists ids of rooms whose persisted membership includes the
// user; seeds the live index at connect time.
func (s *RoomStore) RoomsOf(ctx context.Context, userID string) ([]string, error) {
	opts := options.Find().SetProjection(bson.M{"_id": 1})
	cur, err := s.rooms.Find(ctx, bson.M{"members": userID}, opts)
	if err != nil {
		return nil, errs.ErrInternal.WrapMsg("rooms of user")
	}
	defer cur.Close(ctx)

	var out []string
	for cur.Next(ctx) {
		var doc struct {
			ID string `bson:"_id"`
		}
		if err := cur.Decode(&doc); err != nil {
			return nil, errs.ErrInternal.WrapMsg("decode room id")
		}
		out = append(out, doc.ID)
	}
	if err := cur.Err(); err != nil {
		return nil, errs.ErrInternal.WrapMsg("cursor")
	}
	return out, nil
}
