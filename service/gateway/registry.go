package gateway

import (
	"sort"
	"sync"
	"time"
)

// Conn is one live, authenticated connection. The registry owns the
// record; everything else sees it through registry lookups.
type Conn struct {
	ID     string
	UserID string
	Sink   Sink

	ConnectedAt time.Time
	LastActive  time.Time

	mu    sync.Mutex
	rooms map[string]struct{}
}

// JoinedRooms snapshots the connection's live room set.
func (c *Conn) JoinedRooms() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.rooms))
	for r := range c.rooms {
		out = append(out, r)
	}
	sort.Strings(out)
	return out
}

func (c *Conn) addRoom(roomID string) {
	c.mu.Lock()
	c.rooms[roomID] = struct{}{}
	c.mu.Unlock()
}

func (c *Conn) removeRoom(roomID string) {
	c.mu.Lock()
	delete(c.rooms, roomID)
	c.mu.Unlock()
}

func (c *Conn) inRoom(roomID string) bool {
	c.mu.Lock()
	_, ok := c.rooms[roomID]
	c.mu.Unlock()
	return ok
}

// Touch refreshes the last-activity timestamp (pong handler, inbound
// frames).
func (c *Conn) Touch() {
	c.mu.Lock()
	c.LastActive = time.Now()
	c.mu.Unlock()
}

// Registry maps a user identity to its single live connection. A newer
// connection for the same identity silently supersedes the old one.
type Registry struct {
	mu     sync.RWMutex
	byUser map[string]*Conn
	clock  func() time.Time
}

func NewRegistry() *Registry {
	return &Registry{byUser: make(map[string]*Conn), clock: time.Now}
}

// Register installs a connection for userID and returns the record plus
// the evicted previous connection, if any. The caller closes the evicted
// transport; its indexes are cleaned through the normal disconnect path.
func (r *Registry) Register(userID, connID string, sink Sink) (conn *Conn, evicted *Conn) {
	now := r.clock()
	c := &Conn{
		ID:          connID,
		UserID:      userID,
		Sink:        sink,
		ConnectedAt: now,
		LastActive:  now,
		rooms:       make(map[string]struct{}),
	}

	r.mu.Lock()
	evicted = r.byUser[userID]
	r.byUser[userID] = c
	r.mu.Unlock()
	return c, evicted
}

// Unregister removes the connection if it is still the current one for
// its user. Returns false for a stale or duplicate disconnect, which the
// caller treats as a no-op.
func (r *Registry) Unregister(c *Conn) bool {
	if c == nil {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.byUser[c.UserID]
	if !ok || cur.ID != c.ID {
		return false
	}
	delete(r.byUser, c.UserID)
	return true
}

func (r *Registry) Lookup(userID string) (*Conn, bool) {
	r.mu.RLock()
	c, ok := r.byUser[userID]
	r.mu.RUnlock()
	return c, ok
}

// ListOnline snapshots the identities with a live connection.
func (r *Registry) ListOnline() []string {
	r.mu.RLock()
	out := make([]string, 0, len(r.byUser))
	for u := range r.byUser {
		out = append(out, u)
	}
	r.mu.RUnlock()
	sort.Strings(out)
	return out
}

// Conns snapshots every live connection, for global broadcasts.
func (r *Registry) Conns() []*Conn {
	r.mu.RLock()
	out := make([]*Conn, 0, len(r.byUser))
	for _, c := range r.byUser {
		out = append(out, c)
	}
	r.mu.RUnlock()
	return out
}
