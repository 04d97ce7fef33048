package claude

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bazelment/agenthub/schema"
)

func TestConvertSystemInit(t *testing.T) {
	line := `{"type":"system","subtype":"init","session_id":"abc","model":"claude-sonnet-4-5","cwd":"/work"}`
	conv := Convert([]byte(line))

	started, ok := conv.Data.(schema.StartedData)
	require.True(t, ok)
	assert.Equal(t, "claude session started", started.Message)

	var details map[string]string
	require.NoError(t, json.Unmarshal(started.Details, &details))
	assert.Equal(t, "claude-sonnet-4-5", details["model"])
	assert.Equal(t, "abc", details["session_id"])
}

func TestConvertSystemNonInitSkipped(t *testing.T) {
	conv := Convert([]byte(`{"type":"system","subtype":"hook_event","session_id":"abc"}`))
	assert.Nil(t, conv.Data)
	assert.False(t, conv.TurnDone)
}

func TestConvertAssistantText(t *testing.T) {
	line := `{"type":"assistant","session_id":"abc","message":{"id":"msg_1","model":"claude-sonnet-4-5","role":"assistant","content":[{"type":"text","text":"hello there"}]}}`
	conv := Convert([]byte(line))

	msg, ok := conv.Data.(schema.MessageData)
	require.True(t, ok)
	require.NotNil(t, msg.Message.Parsed)
	assert.Equal(t, "assistant", msg.Message.Parsed.Role)
	assert.Equal(t, "msg_1", msg.Message.Parsed.ID)
	assert.Equal(t, "hello there", msg.Message.JoinedText())
	assert.Equal(t, "claude-sonnet-4-5", msg.Message.Parsed.Metadata["model"])
}

func TestConvertAssistantToolUse(t *testing.T) {
	line := `{"type":"assistant","message":{"role":"assistant","content":[{"type":"tool_use","id":"toolu_1","name":"Bash","input":{"command":"ls"}},{"type":"server_tool_use","id":"srv_1"}]}}`
	conv := Convert([]byte(line))

	msg, ok := conv.Data.(schema.MessageData)
	require.True(t, ok)
	require.Len(t, msg.Message.Parsed.Parts, 1, "unknown block types are skipped")
	part := msg.Message.Parsed.Parts[0]
	assert.Equal(t, schema.PartToolCall, part.Type)
	assert.Equal(t, "toolu_1", part.CallID)
	assert.Equal(t, "Bash", part.Name)
}

func TestConvertUserToolResult(t *testing.T) {
	line := `{"type":"user","message":{"role":"user","content":[{"type":"tool_result","tool_use_id":"toolu_1","content":"ok","is_error":false}]}}`
	conv := Convert([]byte(line))

	msg, ok := conv.Data.(schema.MessageData)
	require.True(t, ok)
	assert.Equal(t, "user", msg.Message.Parsed.Role)
	require.Len(t, msg.Message.Parsed.Parts, 1)
	assert.Equal(t, schema.PartToolResult, msg.Message.Parsed.Parts[0].Type)
	assert.Equal(t, "toolu_1", msg.Message.Parsed.Parts[0].CallID)
}

func TestConvertResult(t *testing.T) {
	conv := Convert([]byte(`{"type":"result","subtype":"success","result":"done","is_error":false,"num_turns":1}`))
	assert.Nil(t, conv.Data, "successful result only marks the turn boundary")
	assert.True(t, conv.TurnDone)
}

func TestConvertResultError(t *testing.T) {
	conv := Convert([]byte(`{"type":"result","subtype":"error_during_execution","result":"rate limited","is_error":true}`))
	require.True(t, conv.TurnDone)
	errData, ok := conv.Data.(schema.ErrorData)
	require.True(t, ok)
	assert.Equal(t, "rate limited", errData.Message)
}

func TestConvertCanUseTool(t *testing.T) {
	line := `{"type":"control_request","request_id":"req_1","request":{"subtype":"can_use_tool","tool_name":"Bash","input":{"command":"rm -rf /tmp/x"}}}`
	conv := Convert([]byte(line))

	perm, ok := conv.Data.(schema.PermissionData)
	require.True(t, ok)
	assert.Equal(t, "Bash", perm.ToolName)
	assert.NotEmpty(t, perm.PermissionID)

	require.NotNil(t, conv.Permission)
	assert.Equal(t, perm.PermissionID, conv.Permission.ID)
	assert.Equal(t, "req_1", conv.Permission.NativeID)
	assert.Equal(t, "Bash", conv.Permission.ToolName)
}

func TestConvertAskUserQuestion(t *testing.T) {
	line := `{"type":"control_request","request_id":"req_2","request":{"subtype":"can_use_tool","tool_name":"AskUserQuestion","input":{"questions":[{"question":"Deploy to prod?","header":"Deploy"}]}}}`
	conv := Convert([]byte(line))

	q, ok := conv.Data.(schema.QuestionData)
	require.True(t, ok)
	assert.Contains(t, string(q.Question), "Deploy to prod?")

	require.NotNil(t, conv.Question)
	assert.Nil(t, conv.Permission)
	assert.Equal(t, "req_2", conv.Question.NativeID)
}

func TestConvertUnknownAndNoise(t *testing.T) {
	conv := Convert([]byte(`{"type":"telemetry","blob":42}`))
	unknown, ok := conv.Data.(schema.UnknownData)
	require.True(t, ok)
	assert.JSONEq(t, `{"type":"telemetry","blob":42}`, string(unknown.Raw))

	conv = Convert([]byte("not json at all"))
	_, ok = conv.Data.(schema.UnknownData)
	assert.True(t, ok)

	assert.Nil(t, Convert([]byte("   ")).Data)
	assert.Nil(t, Convert([]byte(`{"type":"stream_event","event":{}}`)).Data)
}

func TestEncodeUserMessage(t *testing.T) {
	b, err := EncodeUserMessage("run the tests")
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"user","message":{"role":"user","content":"run the tests"}}`, string(b))
}

func TestEncodePermissionReply(t *testing.T) {
	payload := json.RawMessage(`{"subtype":"can_use_tool","tool_name":"Bash","input":{"command":"ls"}}`)

	b, err := EncodePermissionReply("req_1", payload, "allow")
	require.NoError(t, err)
	var resp ControlResponse
	require.NoError(t, json.Unmarshal(b, &resp))
	assert.Equal(t, "req_1", resp.Response.RequestID)
	allow, err := json.Marshal(resp.Response.Response)
	require.NoError(t, err)
	assert.Contains(t, string(allow), `"behavior":"allow"`)
	assert.Contains(t, string(allow), `"command":"ls"`, "original input is echoed as updatedInput")

	b, err = EncodePermissionReply("req_1", payload, "deny")
	require.NoError(t, err)
	assert.Contains(t, string(b), `"behavior":"deny"`)
}

func TestEncodeQuestionReply(t *testing.T) {
	payload := json.RawMessage(`{"subtype":"can_use_tool","tool_name":"AskUserQuestion","input":{"questions":[{"question":"Deploy?","header":"Deploy"}]}}`)
	b, err := EncodeQuestionReply("req_2", payload, "yes, ship it")
	require.NoError(t, err)
	assert.Contains(t, string(b), `"answers":{"Deploy":"yes, ship it"}`)
	assert.Contains(t, string(b), `"behavior":"allow"`)
}
