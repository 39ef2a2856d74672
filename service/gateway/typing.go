package gateway

import (
	"strings"
	"sync"
	"time"
)

const (
	roomScopePrefix    = "room:"
	privateScopePrefix = "dm:"
)

// ConversationKey builds the order-independent key for a 1:1
// conversation: ConversationKey(a, b) == ConversationKey(b, a).
func ConversationKey(a, b string) string {
	if a > b {
		a, b = b, a
	}
	return a + "|" + b
}

// RoomScope keys typing state for a room.
func RoomScope(roomID string) string { return roomScopePrefix + roomID }

// PrivateScope keys typing state for a private conversation.
func PrivateScope(a, b string) string { return privateScopePrefix + ConversationKey(a, b) }

// SplitScope breaks a scope key back into its parts. For a private scope
// the two participants are returned; for a room scope only roomID is set.
func SplitScope(scope string) (roomID, peerA, peerB string) {
	if rest, ok := strings.CutPrefix(scope, roomScopePrefix); ok {
		return rest, "", ""
	}
	if rest, ok := strings.CutPrefix(scope, privateScopePrefix); ok {
		parts := strings.SplitN(rest, "|", 2)
		if len(parts) == 2 {
			return "", parts[0], parts[1]
		}
	}
	return "", "", ""
}

// ExpiredSession is one typing session removed by the sweeper.
type ExpiredSession struct {
	Scope  string
	UserID string
}

// TypingTracker holds ephemeral "who is typing where" state. Sessions
// refresh on repeated starts and expire once older than the timeout; the
// timeout applies uniformly to room and private scopes.
type TypingTracker struct {
	mu       sync.Mutex
	sessions map[string]map[string]time.Time // scope -> user -> started/refreshed at
	timeout  time.Duration
	clock    func() time.Time
}

func NewTypingTracker(timeout time.Duration) *TypingTracker {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &TypingTracker{
		sessions: make(map[string]map[string]time.Time),
		timeout:  timeout,
		clock:    time.Now,
	}
}

// Start inserts or refreshes the session and reports whether it was
// newly created rather than refreshed. Notification policy is the
// caller's; the dispatcher re-announces on every start so late joiners
// still see active typists.
func (t *TypingTracker) Start(scope, userID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	set := t.sessions[scope]
	if set == nil {
		set = make(map[string]time.Time)
		t.sessions[scope] = set
	}
	_, existed := set[userID]
	set[userID] = t.clock()
	return !existed
}

// Stop removes the session if present. Stopping typing that was never
// started is not an error; it reports false and emits nothing.
func (t *TypingTracker) Stop(scope, userID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	set := t.sessions[scope]
	if set == nil {
		return false
	}
	if _, ok := set[userID]; !ok {
		return false
	}
	delete(set, userID)
	if len(set) == 0 {
		delete(t.sessions, scope)
	}
	return true
}

// IsTyping reports live session existence, expiry-checked: a session past
// the timeout is never reported even before the sweeper prunes it.
func (t *TypingTracker) IsTyping(scope, userID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	set := t.sessions[scope]
	if set == nil {
		return false
	}
	started, ok := set[userID]
	if !ok {
		return false
	}
	return t.clock().Sub(started) <= t.timeout
}

// ClearUser drops every session the user holds, in any scope, and
// returns the affected scopes. Used on disconnect.
func (t *TypingTracker) ClearUser(userID string) []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	var scopes []string
	for scope, set := range t.sessions {
		if _, ok := set[userID]; !ok {
			continue
		}
		delete(set, userID)
		if len(set) == 0 {
			delete(t.sessions, scope)
		}
		scopes = append(scopes, scope)
	}
	return scopes
}

// Sweep removes sessions older than the timeout and returns them so the
// caller can emit typing-stop to each audience.
func (t *TypingTracker) Sweep() []ExpiredSession {
	now := t.clock()
	t.mu.Lock()
	defer t.mu.Unlock()
	var expired []ExpiredSession
	for scope, set := range t.sessions {
		for user, started := range set {
			if now.Sub(started) > t.timeout {
				delete(set, user)
				expired = append(expired, ExpiredSession{Scope: scope, UserID: user})
			}
		}
		if len(set) == 0 {
			delete(t.sessions, scope)
		}
	}
	return expired
}

// setClock injects a deterministic clock in tests.
func (t *TypingTracker) setClock(clock func() time.Time) { t.clock = clock }
