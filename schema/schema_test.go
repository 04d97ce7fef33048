package schema

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUniversalEventRoundTrip(t *testing.T) {
	ev := UniversalEvent{
		ID:        3,
		Timestamp: time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC),
		SessionID: "s1",
		Agent:     AgentClaude,
		Data: MessageData{Message: ParsedText("assistant", "hello")},
	}

	b, err := json.Marshal(ev)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"type":"message"`)

	var back UniversalEvent
	require.NoError(t, json.Unmarshal(b, &back))
	assert.Equal(t, int64(3), back.ID)
	assert.Equal(t, AgentClaude, back.Agent)

	msg, ok := back.Data.(MessageData)
	require.True(t, ok)
	require.NotNil(t, msg.Message.Parsed)
	assert.Equal(t, "assistant", msg.Message.Parsed.Role)
	assert.Equal(t, "hello", msg.Message.JoinedText())
}

func TestUniversalEventUnknownTagSurvives(t *testing.T) {
	line := []byte(`{"id":1,"timestamp":"2026-02-01T12:00:00Z","session_id":"s","agent":"codex","data":{"type":"exotic","x":1}}`)

	var ev UniversalEvent
	require.NoError(t, json.Unmarshal(line, &ev))

	unk, ok := ev.Data.(UnknownData)
	require.True(t, ok)
	assert.JSONEq(t, `{"type":"exotic","x":1}`, string(unk.Raw))
}

func TestUnparsedMessageRoundTrip(t *testing.T) {
	m := Unparsed(json.RawMessage(`{"weird":true}`))

	b, err := json.Marshal(m)
	require.NoError(t, err)

	var back UniversalMessage
	require.NoError(t, json.Unmarshal(b, &back))
	assert.Nil(t, back.Parsed)
	assert.JSONEq(t, `{"weird":true}`, string(back.Raw))
}

func TestParseAgent(t *testing.T) {
	a, err := ParseAgent("opencode")
	require.NoError(t, err)
	assert.Equal(t, AgentOpenCode, a)
	assert.Equal(t, RuntimeProxy, a.Runtime())

	a, err = ParseAgent("amp")
	require.NoError(t, err)
	assert.Equal(t, RuntimeSubprocess, a.Runtime())

	_, err = ParseAgent("skynet")
	assert.Error(t, err)
}
