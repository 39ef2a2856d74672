package storage

import (
	"context"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// Presence keys:
//
//	im:presence:<user>  -> node id, TTL bounds staleness after a crash
//	im:lastseen:<user>  -> unix millis of last disconnect
//	im:status:<user>    -> hash {status, message}
const defaultPresenceTTL = 5 * time.Minute

func presenceKey(user string) string { return "im:presence:" + user }
func lastSeenKey(user string) string { return "im:lastseen:" + user }
func statusKey(user string) string   { return "im:status:" + user }

// PresenceStore persists online/offline/status state in Redis.
type PresenceStore struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewPresenceStore(rdb *redis.Client) *PresenceStore {
	return &PresenceStore{rdb: rdb, ttl: defaultPresenceTTL}
}

// SetOnline marks the user online on the given node and renews the TTL.
func (s *PresenceStore) SetOnline(ctx context.Context, user, nodeID string) error {
	if s.rdb == nil {
		return errors.New("redis not initialized")
	}
	return s.rdb.Set(ctx, presenceKey(user), nodeID, s.ttl).Err()
}

// SetOffline clears the presence key and records last-seen.
func (s *PresenceStore) SetOffline(ctx context.Context, user string, lastSeen time.Time) error {
	if s.rdb == nil {
		return errors.New("redis not initialized")
	}
	pipe := s.rdb.TxPipeline()
	pipe.Del(ctx, presenceKey(user))
	pipe.Set(ctx, lastSeenKey(user), strconv.FormatInt(lastSeen.UnixMilli(), 10), 0)
	_, err := pipe.Exec(ctx)
	return err
}

// SetStatus stores the user's status and custom message.
func (s *PresenceStore) SetStatus(ctx context.Context, user, status, statusMessage string) error {
	if s.rdb == nil {
		return errors.New("redis not initialized")
	}
	return s.rdb.HSet(ctx, statusKey(user), "status", status, "message", statusMessage).Err()
}

// Lookup reports whether the user is online and on which node.
func (s *PresenceStore) Lookup(ctx context.Context, user string) (nodeID string, online bool, err error) {
	if s.rdb == nil {
		return "", false, errors.New("redis not initialized")
	}
	val, err := s.rdb.Get(ctx, presenceKey(user)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}

// LastSeen returns the recorded last-seen time, zero if never recorded.
func (s *PresenceStore) LastSeen(ctx context.Context, user string) (time.Time, error) {
	if s.rdb == nil {
		return time.Time{}, errors.New("redis not initialized")
	}
	val, err := s.rdb.Get(ctx, lastSeenKey(user)).Result()
	if errors.Is(err, redis.Nil) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, err
	}
	ms, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return time.Time{}, errors.Wrap(err, "parse lastseen")
	}
	return time.UnixMilli(ms), nil
}
