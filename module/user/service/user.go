package service

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	usermodel "PGateway/module/user/model"
	"PGateway/service/storage"
	"PGateway/tools/errs"
)

// UserStore is the User collaborator: block policy from Mongo, presence
// fast path in Redis, with status/last-seen mirrored onto the user
// document for the CRUD side of the product.
type UserStore struct {
	users    *mongo.Collection
	presence *storage.PresenceStore
}

func NewUserStore(db *mongo.Database, presence *storage.PresenceStore) *UserStore {
	return &UserStore{users: db.Collection(usermodel.UserCollection), presence: presence}
}

// IsBlocked reports whether either side blocks the other.
func (s *UserStore) IsBlocked(ctx context.Context, userID, otherID string) (bool, error) {
	cur, err := s.users.Find(ctx, bson.M{"_id": bson.M{"$in": []string{userID, otherID}}})
	if err != nil {
		return false, errs.ErrInternal.WrapMsg("load users")
	}
	defer cur.Close(ctx)

	found := 0
	for cur.Next(ctx) {
		var u usermodel.UserModel
		if err := cur.Decode(&u); err != nil {
			return false, errs.ErrInternal.WrapMsg("decode user")
		}
		found++
		switch u.ID {
		case userID:
			if u.HasBlocked(otherID) {
				return true, nil
			}
		case otherID:
			if u.HasBlocked(userID) {
				return true, nil
			}
		}
	}
	if err := cur.Err(); err != nil {
		return false, errs.ErrInternal.WrapMsg("cursor")
	}
	if found < 2 {
		return false, errs.ErrNotFound.WithDetail("user missing")
	}
	return false, nil
}

func (s *UserStore) SetOnline(ctx context.Context, userID, nodeID string) error {
	if err := s.presence.SetOnline(ctx, userID, nodeID); err != nil {
		return err
	}
	_, err := s.users.UpdateOne(ctx,
		bson.M{"_id": userID},
		bson.M{"$set": bson.M{"status": "online"}},
	)
	if err != nil {
		return errs.ErrInternal.WrapMsg("persist online status")
	}
	return nil
}

func (s *UserStore) SetOffline(ctx context.Context, userID string, lastSeen time.Time) error {
	if err := s.presence.SetOffline(ctx, userID, lastSeen); err != nil {
		return err
	}
	_, err := s.users.UpdateOne(ctx,
		bson.M{"_id": userID},
		bson.M{"$set": bson.M{"status": "offline", "last_seen_ms": lastSeen.UnixMilli()}},
	)
	if err != nil {
		return errs.ErrInternal.WrapMsg("persist offline status")
	}
	return nil
}

func (s *UserStore) SetStatus(ctx context.Context, userID, status, statusMessage string) error {
	if err := s.presence.SetStatus(ctx, userID, status, statusMessage); err != nil {
		return err
	}
	res, err := s.users.UpdateOne(ctx,
		bson.M{"_id": userID},
		bson.M{"$set": bson.M{"status": status, "status_message": statusMessage}},
	)
	if err != nil {
		return errs.ErrInternal.WrapMsg("persist status")
	}
	if res.MatchedCount == 0 {
		return errs.ErrNotFound.WithDetail("user " + userID)
	}
	return nil
}
