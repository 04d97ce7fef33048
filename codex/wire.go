// Package codex converts the Codex CLI app-server protocol into universal
// events. The CLI speaks JSON-RPC over stdio: server notifications stream
// thread/turn/item lifecycle, and approval prompts arrive as server-to-client
// requests that must be answered with a JSON-RPC response.
package codex

import "encoding/json"

// Notification methods the converter understands. Everything else is
// preserved as an Unknown event.
const (
	NotifyThreadStarted     = "thread/started"
	NotifyTurnStarted       = "turn/started"
	NotifyTurnCompleted     = "turn/completed"
	NotifyItemStarted       = "item/started"
	NotifyItemCompleted     = "item/completed"
	NotifyAgentMessageDelta = "item/agent_message/delta"
	NotifyReasoningDelta    = "item/reasoning_text/delta"
	NotifyCommandOutput     = "item/command_execution_output/delta"
	NotifyFileChangeDelta   = "item/file_change_output/delta"
	NotifyError             = "error"
	NotifyTokenUsage        = "thread/token_usage/updated"
)

// Server-to-client request methods for approvals.
const (
	RequestExecApproval  = "execCommandApproval"
	RequestPatchApproval = "applyPatchApproval"
)

// rpcMessage is the JSON-RPC envelope. A message with both ID and Method is
// a server-to-client request; Method alone is a notification; ID alone is a
// response to one of our requests.
type rpcMessage struct {
	JSONRPC string          `json:"jsonrpc,omitempty"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   json.RawMessage `json:"error,omitempty"`
}

// ThreadStartedNotification announces a new thread.
type ThreadStartedNotification struct {
	Thread Thread `json:"thread"`
}

// Thread is the thread descriptor.
type Thread struct {
	ID string `json:"id"`
}

// TurnStartedNotification announces a new turn.
type TurnStartedNotification struct {
	ThreadID string `json:"thread_id"`
	Turn     Turn   `json:"turn"`
}

// Turn is the turn descriptor.
type Turn struct {
	ID     string       `json:"id"`
	Status string       `json:"status,omitempty"`
	Items  []ThreadItem `json:"items,omitempty"`
}

// TurnCompletedNotification closes a turn, carrying its final items.
type TurnCompletedNotification struct {
	ThreadID string `json:"thread_id"`
	Turn     Turn   `json:"turn"`
}

// ItemNotification wraps item/started and item/completed.
type ItemNotification struct {
	ThreadID string     `json:"thread_id"`
	TurnID   string     `json:"turn_id"`
	Item     ThreadItem `json:"item"`
}

// DeltaNotification wraps the streaming text deltas.
type DeltaNotification struct {
	ThreadID string `json:"thread_id"`
	TurnID   string `json:"turn_id"`
	ItemID   string `json:"item_id"`
	Delta    string `json:"delta"`
}

// ErrorNotification reports a turn error.
type ErrorNotification struct {
	ThreadID string    `json:"thread_id"`
	TurnID   string    `json:"turn_id"`
	Error    TurnError `json:"error"`
}

// TurnError is the error body.
type TurnError struct {
	Message string `json:"message"`
}

// ThreadItem is one item in a turn: a message, a command run, a file change,
// a tool call. The type tag discriminates; unknown types keep their raw form.
type ThreadItem struct {
	Type string `json:"type"`
	ID   string `json:"id"`

	// user_message
	Content []UserInput `json:"content,omitempty"`

	// agent_message
	Text string `json:"text,omitempty"`

	// reasoning
	ReasoningContent []string `json:"reasoning_content,omitempty"`
	Summary          []string `json:"summary,omitempty"`

	// command_execution
	Command          string `json:"command,omitempty"`
	CWD              string `json:"cwd,omitempty"`
	AggregatedOutput string `json:"aggregated_output,omitempty"`
	ExitCode         *int   `json:"exit_code,omitempty"`
	Status           string `json:"status,omitempty"`

	// mcp_tool_call
	Server    string          `json:"server,omitempty"`
	Tool      string          `json:"tool,omitempty"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
	Result    json.RawMessage `json:"result,omitempty"`

	// web_search
	Query string `json:"query,omitempty"`

	// file_change
	Changes []json.RawMessage `json:"changes,omitempty"`

	raw json.RawMessage
}

// UnmarshalJSON keeps the raw item alongside the decoded fields so unknown
// item types survive conversion verbatim.
func (it *ThreadItem) UnmarshalJSON(data []byte) error {
	type alias ThreadItem
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	*it = ThreadItem(a)
	it.raw = append(json.RawMessage(nil), data...)
	return nil
}

// MarshalJSON emits the original wire form when available.
func (it ThreadItem) MarshalJSON() ([]byte, error) {
	if it.raw != nil {
		return it.raw, nil
	}
	type alias ThreadItem
	return json.Marshal(alias(it))
}

// UserInput is one element of a user_message item.
type UserInput struct {
	Type     string `json:"type"`
	Text     string `json:"text,omitempty"`
	ImageURL string `json:"image_url,omitempty"`
	Path     string `json:"path,omitempty"`
}
