package gateway

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistrySingleConnectionPerUser(t *testing.T) {
	r := NewRegistry()

	c1, evicted := r.Register("alice", "conn-1", &fakeSink{})
	require.Nil(t, evicted)

	c2, evicted := r.Register("alice", "conn-2", &fakeSink{})
	require.NotNil(t, evicted)
	assert.Equal(t, c1.ID, evicted.ID, "the older connection is evicted")

	cur, ok := r.Lookup("alice")
	require.True(t, ok)
	assert.Equal(t, c2.ID, cur.ID)
	assert.Len(t, r.Conns(), 1)
}

func TestRegistryStaleUnregister(t *testing.T) {
	r := NewRegistry()

	c1, _ := r.Register("alice", "conn-1", &fakeSink{})
	c2, _ := r.Register("alice", "conn-2", &fakeSink{})

	// Disconnect of the superseded connection must not remove the newer one.
	assert.False(t, r.Unregister(c1))
	cur, ok := r.Lookup("alice")
	require.True(t, ok)
	assert.Equal(t, c2.ID, cur.ID)

	assert.True(t, r.Unregister(c2))
	assert.False(t, r.Unregister(c2), "duplicate unregister is a no-op")
	_, ok = r.Lookup("alice")
	assert.False(t, ok)
}

func TestRegistryListOnlineSorted(t *testing.T) {
	r := NewRegistry()
	r.Register("carol", "c1", &fakeSink{})
	r.Register("alice", "c2", &fakeSink{})
	r.Register("bob", "c3", &fakeSink{})

	assert.Equal(t, []string{"alice", "bob", "carol"}, r.ListOnline())
}

func TestGatewayConnectEvictsSilently(t *testing.T) {
	env := newTestEnv()
	env.rooms.addRoom("r1", "alice", "bob")

	_, bobSink := env.connect(t, "bob")
	c1, s1 := env.connect(t, "alice")
	bobSink.reset()

	// Second login for alice supersedes the first without any offline
	// presence leaking to observers.
	c2, _ := env.connect(t, "alice")
	assert.NotEqual(t, c1.ID, c2.ID)
	assert.True(t, s1.isClosed(), "evicted transport is closed")
	assert.Equal(t, 0, bobSink.count(EvtUserOffline), "eviction emits no user_offline")
	// One global announcement plus one scoped to the shared room.
	assert.Equal(t, 2, bobSink.count(EvtUserOnline))

	cur, ok := env.g.Registry().Lookup("alice")
	require.True(t, ok)
	assert.Equal(t, c2.ID, cur.ID)
	assert.True(t, env.g.Rooms().Contains("r1", "alice"), "re-seeded from persisted membership")
}

func TestGatewayConnectHonorsProvidedConnID(t *testing.T) {
	env := newTestEnv()

	conn, err := env.g.Connect(context.Background(), "alice", "conn-fixed", &fakeSink{})
	require.NoError(t, err)
	assert.Equal(t, "conn-fixed", conn.ID)

	// The transport labels itself with the same id before registration,
	// so the registry record and the label can never disagree.
	cur, ok := env.g.Registry().Lookup("alice")
	require.True(t, ok)
	assert.Equal(t, "conn-fixed", cur.ID)

	generated, err := env.g.Connect(context.Background(), "bob", "", &fakeSink{})
	require.NoError(t, err)
	assert.NotEmpty(t, generated.ID, "empty id gets a generated one")
}

func TestGatewayConnectSeedsPersistedRooms(t *testing.T) {
	env := newTestEnv()
	env.rooms.addRoom("r1", "alice")
	env.rooms.addRoom("r2", "alice", "bob")
	env.rooms.addRoom("r3", "bob")

	conn, _ := env.connect(t, "alice")
	assert.Equal(t, []string{"r1", "r2"}, conn.JoinedRooms())
	assert.True(t, env.g.Rooms().Contains("r1", "alice"))
	assert.True(t, env.g.Rooms().Contains("r2", "alice"))
	assert.False(t, env.g.Rooms().Contains("r3", "alice"))
}

func TestGatewayStaleDisconnectKeepsNewerConnection(t *testing.T) {
	env := newTestEnv()
	env.rooms.addRoom("r1", "alice", "bob")
	_, bobSink := env.connect(t, "bob")

	c1, _ := env.connect(t, "alice")
	c2, _ := env.connect(t, "alice")
	bobSink.reset()

	// The reader goroutine of the evicted connection eventually signals
	// disconnect; by then the user has a newer connection.
	env.g.Disconnect(context.Background(), c1)

	_, ok := env.g.Registry().Lookup("alice")
	assert.True(t, ok, "newer connection survives the stale disconnect")
	assert.True(t, env.g.Rooms().Contains("r1", "alice"))
	assert.Equal(t, 0, bobSink.count(EvtUserOffline))

	env.g.Disconnect(context.Background(), c2)
	_, ok = env.g.Registry().Lookup("alice")
	assert.False(t, ok)
	// One global announcement plus one scoped to the shared room.
	assert.Equal(t, 2, bobSink.count(EvtUserOffline))
}
