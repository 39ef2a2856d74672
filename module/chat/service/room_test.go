package service

import (
	"testing"

	"github.com/stretchr/testify/assert"

	chatmodel "PGateway/module/chat/model"
	"PGateway/tools/errs"
)

func TestJoinPolicy(t *testing.T) {
	room := &chatmodel.RoomModel{
		ID:         "r1",
		Members:    []string{"alice"},
		Banned:     []string{"mallory"},
		Open:       true,
		MaxMembers: 2,
	}

	assert.NoError(t, joinPolicy(room, "alice"), "existing members always pass")
	assert.NoError(t, joinPolicy(room, "bob"), "open room with a free slot")
	assert.True(t, errs.ErrAccessDenied.Is(joinPolicy(room, "mallory")), "banned users are refused")

	room.Members = append(room.Members, "bob")
	assert.True(t, errs.ErrConflict.Is(joinPolicy(room, "carol")), "full room is a conflict")
	assert.NoError(t, joinPolicy(room, "alice"), "the cap never evicts existing members")
}

func TestJoinPolicyClosedRoom(t *testing.T) {
	closed := &chatmodel.RoomModel{ID: "r2", Members: []string{"alice"}}

	assert.NoError(t, joinPolicy(closed, "alice"))
	assert.True(t, errs.ErrAccessDenied.Is(joinPolicy(closed, "bob")),
		"closed rooms admit members only")
}

func TestJoinPolicyUnlimitedWhenNoCap(t *testing.T) {
	room := &chatmodel.RoomModel{ID: "r3", Members: []string{"a", "b", "c"}, Open: true}
	assert.NoError(t, joinPolicy(room, "d"), "zero max_members means unlimited")
}
