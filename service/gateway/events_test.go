package gateway

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"PGateway/tools/errs"
)

func TestParseInbound(t *testing.T) {
	evt, err := ParseInbound([]byte(`{"type":"send_message","payload":{"room_id":"r1","content":"hi"}}`))
	require.NoError(t, err)
	assert.Equal(t, EvtSendMessage, evt.Type)
	assert.Equal(t, "r1", evt.Payload["room_id"])

	_, err = ParseInbound([]byte(`{"payload":{}}`))
	assert.True(t, errs.ErrValidation.Is(err), "missing type is a validation error")

	_, err = ParseInbound([]byte(`not json`))
	assert.Error(t, err)
}

func TestOutboundEncode(t *testing.T) {
	evt := NewOutbound(EvtMessageSent, AckPayload{
		Message:     Message{ID: "m1", SenderID: "alice", Content: "hi"},
		ClientMsgID: "c-1",
	})
	assert.Positive(t, evt.Ts)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(evt.Encode(), &decoded))
	assert.Equal(t, "message_sent", decoded["type"])
	assert.NotZero(t, decoded["ts"])
	payload := decoded["payload"].(map[string]any)
	assert.Equal(t, "c-1", payload["client_msg_id"])
}

func TestErrorEvent(t *testing.T) {
	evt := ErrorEvent(errs.ErrAccessDenied.WithDetail("not a room member"))
	require.Equal(t, EvtError, evt.Type)
	p := evt.Payload.(ErrorPayload)
	assert.Equal(t, "ACCESS_DENIED", p.Code)
	assert.Equal(t, "access denied", p.Message)
	assert.Equal(t, "not a room member", p.Detail)

	// Uncoded errors collapse to INTERNAL; the client never sees an
	// empty code.
	evt = ErrorEvent(assert.AnError)
	p = evt.Payload.(ErrorPayload)
	assert.Equal(t, "INTERNAL", p.Code)
}
