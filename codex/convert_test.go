package codex

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bazelment/agenthub/schema"
)

func TestConvertThreadStarted(t *testing.T) {
	line := `{"jsonrpc":"2.0","method":"thread/started","params":{"thread":{"id":"thr_1"}}}`
	conv := Convert([]byte(line))

	started, ok := conv.Data.(schema.StartedData)
	require.True(t, ok)
	assert.Equal(t, "thread/started", started.Message)
	assert.Contains(t, string(started.Details), "thr_1")
}

func TestConvertTurnCompleted(t *testing.T) {
	line := `{"jsonrpc":"2.0","method":"turn/completed","params":{"thread_id":"thr_1","turn":{"id":"turn_1","status":"completed"}}}`
	conv := Convert([]byte(line))
	assert.True(t, conv.TurnDone)
	assert.Nil(t, conv.Data)

	line = `{"jsonrpc":"2.0","method":"turn/completed","params":{"thread_id":"thr_1","turn":{"id":"turn_1","status":"failed"}}}`
	conv = Convert([]byte(line))
	assert.True(t, conv.TurnDone)
	_, ok := conv.Data.(schema.ErrorData)
	assert.True(t, ok)
}

func TestConvertAgentMessageItem(t *testing.T) {
	line := `{"jsonrpc":"2.0","method":"item/completed","params":{"thread_id":"thr_1","turn_id":"turn_1","item":{"type":"agent_message","id":"item_1","text":"all done"}}}`
	conv := Convert([]byte(line))

	msg, ok := conv.Data.(schema.MessageData)
	require.True(t, ok)
	require.NotNil(t, msg.Message.Parsed)
	assert.Equal(t, "assistant", msg.Message.Parsed.Role)
	assert.Equal(t, "all done", msg.Message.JoinedText())
	assert.Equal(t, "agentMessage", msg.Message.Parsed.Metadata["itemType"])
}

func TestConvertCommandExecutionItem(t *testing.T) {
	line := `{"jsonrpc":"2.0","method":"item/completed","params":{"thread_id":"thr_1","turn_id":"turn_1","item":{"type":"command_execution","id":"item_2","command":"go test ./...","cwd":"/work","aggregated_output":"ok","exit_code":0,"status":"completed"}}}`
	conv := Convert([]byte(line))

	msg, ok := conv.Data.(schema.MessageData)
	require.True(t, ok)
	meta := msg.Message.Parsed.Metadata
	assert.Equal(t, "commandExecution", meta["itemType"])
	assert.Equal(t, "go test ./...", meta["command"])
	assert.Equal(t, 0, meta["exitCode"])
	assert.Equal(t, "ok", msg.Message.JoinedText())
}

func TestConvertFileChangeItem(t *testing.T) {
	line := `{"jsonrpc":"2.0","method":"item/completed","params":{"thread_id":"thr_1","turn_id":"turn_1","item":{"type":"file_change","id":"item_5","status":"completed","changes":[{"path":"main.go","kind":"update"}]}}}`
	conv := Convert([]byte(line))

	msg, ok := conv.Data.(schema.MessageData)
	require.True(t, ok)
	meta := msg.Message.Parsed.Metadata
	assert.Equal(t, "fileChange", meta["itemType"])
	assert.Equal(t, "completed", meta["status"])
	require.Len(t, msg.Message.Parsed.Parts, 1)
	assert.Equal(t, schema.PartUnknown, msg.Message.Parsed.Parts[0].Type)
}

func TestConvertUnknownItemType(t *testing.T) {
	line := `{"jsonrpc":"2.0","method":"item/completed","params":{"thread_id":"thr_1","turn_id":"turn_1","item":{"type":"hologram","id":"item_3","payload":{"x":1}}}}`
	conv := Convert([]byte(line))

	msg, ok := conv.Data.(schema.MessageData)
	require.True(t, ok)
	assert.Nil(t, msg.Message.Parsed)
	assert.Contains(t, string(msg.Message.Raw), "hologram")
}

func TestConvertDelta(t *testing.T) {
	line := `{"jsonrpc":"2.0","method":"item/agent_message/delta","params":{"thread_id":"thr_1","turn_id":"turn_1","item_id":"item_1","delta":"par"}}`
	conv := Convert([]byte(line))

	msg, ok := conv.Data.(schema.MessageData)
	require.True(t, ok)
	assert.Equal(t, "par", msg.Message.JoinedText())
	assert.Equal(t, true, msg.Message.Parsed.Metadata["delta"])

	line = `{"jsonrpc":"2.0","method":"item/reasoning_text/delta","params":{"thread_id":"thr_1","turn_id":"turn_1","item_id":"item_1","delta":"hmm"}}`
	conv = Convert([]byte(line))
	msg = conv.Data.(schema.MessageData)
	assert.Equal(t, "reasoning", msg.Message.Parsed.Metadata["itemType"])
}

func TestConvertErrorNotification(t *testing.T) {
	line := `{"jsonrpc":"2.0","method":"error","params":{"thread_id":"thr_1","turn_id":"turn_1","error":{"message":"context window exceeded"}}}`
	conv := Convert([]byte(line))

	errData, ok := conv.Data.(schema.ErrorData)
	require.True(t, ok)
	assert.Equal(t, "context window exceeded", errData.Message)
}

func TestConvertExecApproval(t *testing.T) {
	line := `{"jsonrpc":"2.0","id":7,"method":"execCommandApproval","params":{"thread_id":"thr_1","call_id":"call_1","command":["rm","-rf","build"],"cwd":"/work"}}`
	conv := Convert([]byte(line))

	perm, ok := conv.Data.(schema.PermissionData)
	require.True(t, ok)
	assert.Equal(t, "exec", perm.ToolName)

	require.NotNil(t, conv.Permission)
	assert.Equal(t, "7", conv.Permission.NativeID)
	assert.Contains(t, string(conv.Permission.Payload), "rm")
}

func TestConvertResponseAndUnknown(t *testing.T) {
	assert.Nil(t, Convert([]byte(`{"jsonrpc":"2.0","id":1,"result":{}}`)).Data)

	conv := Convert([]byte(`{"jsonrpc":"2.0","method":"account/updated","params":{}}`))
	_, ok := conv.Data.(schema.UnknownData)
	assert.True(t, ok)

	conv = Convert([]byte("garbage"))
	_, ok = conv.Data.(schema.UnknownData)
	assert.True(t, ok)
}

func TestEncoderUserMessage(t *testing.T) {
	var e Encoder
	b, err := e.EncodeUserMessage("hello")
	require.NoError(t, err)
	var req struct {
		ID     int64  `json:"id"`
		Method string `json:"method"`
	}
	require.NoError(t, json.Unmarshal(b, &req))
	assert.Equal(t, int64(1), req.ID)
	assert.Equal(t, "turn/create", req.Method)

	b, err = e.EncodeUserMessage("again")
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(b, &req))
	assert.Equal(t, int64(2), req.ID, "request ids increment")
}

func TestEncodePermissionReply(t *testing.T) {
	b, err := EncodePermissionReply("7", "allow")
	require.NoError(t, err)
	assert.JSONEq(t, `{"jsonrpc":"2.0","id":7,"result":{"decision":"approved"}}`, string(b))

	b, err = EncodePermissionReply(`"req-9"`, "deny")
	require.NoError(t, err)
	assert.JSONEq(t, `{"jsonrpc":"2.0","id":"req-9","result":{"decision":"denied"}}`, string(b))
}
