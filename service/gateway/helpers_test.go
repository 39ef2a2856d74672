package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"PGateway/tools/errs"
)

// fakeSink records every frame pushed to a connection, decoded back into
// outbound events for assertions.
type fakeSink struct {
	mu     sync.Mutex
	events []OutboundEvent
	closed bool
}

func (s *fakeSink) Push(payload []byte) bool {
	var evt OutboundEvent
	if err := json.Unmarshal(payload, &evt); err != nil {
		panic(fmt.Sprintf("fakeSink: bad frame: %v", err))
	}
	s.mu.Lock()
	s.events = append(s.events, evt)
	s.mu.Unlock()
	return true
}

func (s *fakeSink) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
}

func (s *fakeSink) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// ofType returns recorded events of one kind.
func (s *fakeSink) ofType(t EventType) []OutboundEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []OutboundEvent
	for _, e := range s.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

func (s *fakeSink) count(t EventType) int { return len(s.ofType(t)) }

// payload returns the decoded payload map of the i-th event of a kind.
func (s *fakeSink) payload(t *testing.T, kind EventType, i int) map[string]any {
	t.Helper()
	evts := s.ofType(kind)
	require.Greater(t, len(evts), i, "expected at least %d %s events", i+1, kind)
	m, ok := evts[i].Payload.(map[string]any)
	require.True(t, ok, "payload of %s is not an object", kind)
	return m
}

func (s *fakeSink) reset() {
	s.mu.Lock()
	s.events = nil
	s.mu.Unlock()
}

// fakeRooms is an in-memory Room collaborator.
type fakeRooms struct {
	mu      sync.Mutex
	members map[string][]string // roomID -> persisted members
	open    map[string]bool
	joinErr error
}

func newFakeRooms() *fakeRooms {
	return &fakeRooms{
		members: make(map[string][]string),
		open:    make(map[string]bool),
	}
}

func (f *fakeRooms) addRoom(roomID string, members ...string) {
	f.mu.Lock()
	f.members[roomID] = append([]string(nil), members...)
	f.mu.Unlock()
}

func (f *fakeRooms) isMember(roomID, userID string) bool {
	for _, m := range f.members[roomID] {
		if m == userID {
			return true
		}
	}
	return false
}

func (f *fakeRooms) CanJoin(_ context.Context, userID, roomID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.members[roomID]; !ok {
		return errs.ErrNotFound.WithDetail("room " + roomID)
	}
	if f.isMember(roomID, userID) || f.open[roomID] {
		return nil
	}
	return errs.ErrAccessDenied.WithDetail("not a room member")
}

func (f *fakeRooms) Join(_ context.Context, userID, roomID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.joinErr != nil {
		return f.joinErr
	}
	if !f.isMember(roomID, userID) {
		f.members[roomID] = append(f.members[roomID], userID)
	}
	return nil
}

func (f *fakeRooms) Leave(_ context.Context, userID, roomID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := f.members[roomID][:0]
	for _, m := range f.members[roomID] {
		if m != userID {
			out = append(out, m)
		}
	}
	f.members[roomID] = out
	return nil
}

func (f *fakeRooms) RoomsOf(_ context.Context, userID string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for roomID := range f.members {
		if f.isMember(roomID, userID) {
			out = append(out, roomID)
		}
	}
	sort.Strings(out)
	return out, nil
}

// fakeMsgs is an in-memory Message collaborator.
type fakeMsgs struct {
	mu        sync.Mutex
	seq       int
	store     map[string]*Message
	pages     map[string][]Message // canned history per room
	createErr error
	read      map[string][]string // actor -> marked ids
}

func newFakeMsgs() *fakeMsgs {
	return &fakeMsgs{
		store: make(map[string]*Message),
		pages: make(map[string][]Message),
		read:  make(map[string][]string),
	}
}

func (f *fakeMsgs) created() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.store)
}

func (f *fakeMsgs) Create(_ context.Context, in CreateMessageInput) (*Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.seq++
	m := &Message{
		ID:          fmt.Sprintf("m%d", f.seq),
		RoomID:      in.RoomID,
		SenderID:    in.SenderID,
		RecipientID: in.RecipientID,
		Content:     in.Content,
		ContentType: in.ContentType,
		ReplyTo:     in.ReplyTo,
		Metadata:    in.Metadata,
		CreatedAt:   time.Now(),
	}
	f.store[m.ID] = m
	return m, nil
}

func (f *fakeMsgs) get(id string) (*Message, error) {
	m, ok := f.store[id]
	if !ok {
		return nil, errs.ErrNotFound.WithDetail("message " + id)
	}
	return m, nil
}

func (f *fakeMsgs) Edit(_ context.Context, actorID, messageID, content string) (*Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, err := f.get(messageID)
	if err != nil {
		return nil, err
	}
	if m.SenderID != actorID {
		return nil, errs.ErrAccessDenied.WithDetail("only the sender may edit")
	}
	m.Content = content
	now := time.Now()
	m.EditedAt = &now
	cp := *m
	return &cp, nil
}

func (f *fakeMsgs) Delete(_ context.Context, actorID, messageID string) (*Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, err := f.get(messageID)
	if err != nil {
		return nil, err
	}
	if m.SenderID != actorID {
		return nil, errs.ErrAccessDenied.WithDetail("only the sender may delete")
	}
	m.Deleted = true
	m.Content = ""
	cp := *m
	return &cp, nil
}

func (f *fakeMsgs) ToggleReaction(_ context.Context, actorID, messageID, emoji, action string) (*Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, err := f.get(messageID)
	if err != nil {
		return nil, err
	}
	if m.Reactions == nil {
		m.Reactions = make(map[string][]string)
	}
	if action == "add" {
		m.Reactions[emoji] = append(m.Reactions[emoji], actorID)
	} else {
		out := m.Reactions[emoji][:0]
		for _, u := range m.Reactions[emoji] {
			if u != actorID {
				out = append(out, u)
			}
		}
		m.Reactions[emoji] = out
	}
	cp := *m
	return &cp, nil
}

func (f *fakeMsgs) MarkRead(_ context.Context, actorID string, messageIDs []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.read[actorID] = append(f.read[actorID], messageIDs...)
	return nil
}

func (f *fakeMsgs) FetchPage(_ context.Context, roomID string, limit int) ([]Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	page := f.pages[roomID]
	if len(page) > limit {
		page = page[:limit]
	}
	return page, nil
}

func (f *fakeMsgs) SetPinned(_ context.Context, actorID, messageID string, pinned bool) (*Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, err := f.get(messageID)
	if err != nil {
		return nil, err
	}
	m.Pinned = pinned
	cp := *m
	return &cp, nil
}

// fakeUsers is an in-memory User collaborator.
type fakeUsers struct {
	mu       sync.Mutex
	blocked  map[string]map[string]bool
	online   []string
	offline  []string
	statuses map[string]string
}

func newFakeUsers() *fakeUsers {
	return &fakeUsers{
		blocked:  make(map[string]map[string]bool),
		statuses: make(map[string]string),
	}
}

func (f *fakeUsers) block(a, b string) {
	f.mu.Lock()
	if f.blocked[a] == nil {
		f.blocked[a] = make(map[string]bool)
	}
	f.blocked[a][b] = true
	f.mu.Unlock()
}

func (f *fakeUsers) IsBlocked(_ context.Context, userID, otherID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.blocked[userID][otherID] || f.blocked[otherID][userID], nil
}

func (f *fakeUsers) SetOnline(_ context.Context, userID, _ string) error {
	f.mu.Lock()
	f.online = append(f.online, userID)
	f.mu.Unlock()
	return nil
}

func (f *fakeUsers) SetOffline(_ context.Context, userID string, _ time.Time) error {
	f.mu.Lock()
	f.offline = append(f.offline, userID)
	f.mu.Unlock()
	return nil
}

func (f *fakeUsers) SetStatus(_ context.Context, userID, status, _ string) error {
	f.mu.Lock()
	f.statuses[userID] = status
	f.mu.Unlock()
	return nil
}

// feedRecorder captures feed publishes.
type feedRecorder struct {
	mu       sync.Mutex
	subjects []string
}

func (f *feedRecorder) Publish(_ context.Context, subject string, _ any) error {
	f.mu.Lock()
	f.subjects = append(f.subjects, subject)
	f.mu.Unlock()
	return nil
}

// testEnv wires a gateway with inline fan-out and fake collaborators.
type testEnv struct {
	g     *Gateway
	msgs  *fakeMsgs
	rooms *fakeRooms
	users *fakeUsers
	feed  *feedRecorder
}

func newTestEnv() *testEnv {
	env := &testEnv{
		msgs:  newFakeMsgs(),
		rooms: newFakeRooms(),
		users: newFakeUsers(),
		feed:  &feedRecorder{},
	}
	env.g = New(Options{
		NodeID:          "gw_test",
		TypingTimeout:   10 * time.Second,
		SweepInterval:   time.Hour, // tests sweep explicitly
		HistoryPageSize: 5,
		FanoutWorkers:   0, // inline delivery for determinism
	}, env.msgs, env.rooms, env.users, env.feed)
	return env
}

// connect registers a user with a fresh capture sink.
func (env *testEnv) connect(t *testing.T, userID string) (*Conn, *fakeSink) {
	t.Helper()
	sink := &fakeSink{}
	conn, err := env.g.Connect(context.Background(), userID, "", sink)
	require.NoError(t, err)
	return conn, sink
}

// dispatch feeds one inbound event through the dispatcher.
func (env *testEnv) dispatch(conn *Conn, kind EventType, payload map[string]any) {
	env.g.Dispatcher().Dispatch(context.Background(), conn, &InboundEvent{Type: kind, Payload: payload})
}
