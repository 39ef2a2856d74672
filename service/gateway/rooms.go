package gateway

import (
	"sort"
	"sync"
)

// RoomIndex mirrors persisted room membership for identities that are
// currently connected. It is never the source of truth for membership,
// only for reachability.
type RoomIndex struct {
	mu     sync.RWMutex
	byRoom map[string]map[string]struct{}
}

func NewRoomIndex() *RoomIndex {
	return &RoomIndex{byRoom: make(map[string]map[string]struct{})}
}

// Join adds userID to the room's live set. Idempotent; reports whether
// the entry was newly added.
func (x *RoomIndex) Join(roomID, userID string) bool {
	x.mu.Lock()
	defer x.mu.Unlock()
	set := x.byRoom[roomID]
	if set == nil {
		set = make(map[string]struct{})
		x.byRoom[roomID] = set
	}
	if _, ok := set[userID]; ok {
		return false
	}
	set[userID] = struct{}{}
	return true
}

// Leave removes userID from the room's live set and prunes empty sets.
// Idempotent; reports whether an entry was removed.
func (x *RoomIndex) Leave(roomID, userID string) bool {
	x.mu.Lock()
	defer x.mu.Unlock()
	set := x.byRoom[roomID]
	if set == nil {
		return false
	}
	if _, ok := set[userID]; !ok {
		return false
	}
	delete(set, userID)
	if len(set) == 0 {
		delete(x.byRoom, roomID)
	}
	return true
}

// LiveMembers snapshots the currently-connected members of a room.
func (x *RoomIndex) LiveMembers(roomID string) []string {
	x.mu.RLock()
	defer x.mu.RUnlock()
	set := x.byRoom[roomID]
	out := make([]string, 0, len(set))
	for u := range set {
		out = append(out, u)
	}
	sort.Strings(out)
	return out
}

// Contains reports whether userID is live in roomID.
func (x *RoomIndex) Contains(roomID, userID string) bool {
	x.mu.RLock()
	defer x.mu.RUnlock()
	set := x.byRoom[roomID]
	if set == nil {
		return false
	}
	_, ok := set[userID]
	return ok
}
