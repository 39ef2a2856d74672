package decode

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type samplePayload struct {
	RoomID string            `json:"room_id"`
	Limit  int               `json:"limit"`
	Tags   map[string]string `json:"tags"`
}

func TestMap(t *testing.T) {
	out, err := Map[samplePayload](map[string]any{
		"room_id": "r1",
		"limit":   float64(25), // JSON numbers arrive as float64
		"tags":    map[string]any{"k": "v"},
	})
	require.NoError(t, err)
	assert.Equal(t, "r1", out.RoomID)
	assert.Equal(t, 25, out.Limit)
	assert.Equal(t, map[string]string{"k": "v"}, out.Tags)
}

func TestMapMissingFieldsZeroValued(t *testing.T) {
	out, err := Map[samplePayload](map[string]any{"room_id": "r1"})
	require.NoError(t, err)
	assert.Equal(t, "r1", out.RoomID)
	assert.Zero(t, out.Limit)
}

func TestMapNil(t *testing.T) {
	_, err := Map[samplePayload](nil)
	assert.Error(t, err)
}

func TestMapWeakTyping(t *testing.T) {
	out, err := Map[samplePayload](map[string]any{"limit": "30"})
	require.NoError(t, err)
	assert.Equal(t, 30, out.Limit)
}
