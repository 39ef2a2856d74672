package gateway

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRoomIndexJoinIdempotent(t *testing.T) {
	x := NewRoomIndex()

	assert.True(t, x.Join("r1", "alice"))
	assert.False(t, x.Join("r1", "alice"), "second join changes nothing")
	x.Join("r1", "bob")

	assert.Equal(t, []string{"alice", "bob"}, x.LiveMembers("r1"))
	assert.True(t, x.Contains("r1", "alice"))
	assert.False(t, x.Contains("r1", "carol"))
	assert.Empty(t, x.LiveMembers("r2"))
}

func TestRoomIndexLeaveIdempotent(t *testing.T) {
	x := NewRoomIndex()
	x.Join("r1", "alice")
	x.Join("r1", "bob")

	assert.True(t, x.Leave("r1", "alice"))
	assert.False(t, x.Leave("r1", "alice"), "second leave changes nothing")
	assert.False(t, x.Leave("r2", "alice"), "leaving an unknown room changes nothing")
	assert.Equal(t, []string{"bob"}, x.LiveMembers("r1"))

	assert.True(t, x.Leave("r1", "bob"))
	assert.Empty(t, x.LiveMembers("r1"), "empty sets are pruned")
	assert.False(t, x.Contains("r1", "bob"))
}
