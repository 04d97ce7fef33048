// Package claude converts the Claude CLI's stream-json output into universal
// events and encodes the JSON lines the CLI accepts on stdin. The CLI runs
// with --input-format stream-json --output-format stream-json; every line in
// either direction is one JSON object.
package claude

import (
	"encoding/json"
	"fmt"
)

// MessageType discriminates top-level stream-json lines.
type MessageType string

const (
	MessageTypeSystem          MessageType = "system"
	MessageTypeAssistant       MessageType = "assistant"
	MessageTypeUser            MessageType = "user"
	MessageTypeResult          MessageType = "result"
	MessageTypeStreamEvent     MessageType = "stream_event"
	MessageTypeControlRequest  MessageType = "control_request"
	MessageTypeControlResponse MessageType = "control_response"
)

// SystemMessage carries session initialization and other system events.
type SystemMessage struct {
	Type      MessageType `json:"type"`
	Subtype   string      `json:"subtype"`
	SessionID string      `json:"session_id"`
	Model     string      `json:"model,omitempty"`
	CWD       string      `json:"cwd,omitempty"`
	Tools     []string    `json:"tools,omitempty"`
}

// FlexibleContent is either a string or an array of content blocks.
type FlexibleContent struct {
	raw json.RawMessage
}

// UnmarshalJSON implements json.Unmarshaler.
func (fc *FlexibleContent) UnmarshalJSON(data []byte) error {
	fc.raw = data
	return nil
}

// MarshalJSON implements json.Marshaler.
func (fc FlexibleContent) MarshalJSON() ([]byte, error) {
	if fc.raw == nil {
		return []byte("null"), nil
	}
	return fc.raw, nil
}

// AsString returns the content as a string, if it is one.
func (fc FlexibleContent) AsString() (string, bool) {
	if len(fc.raw) == 0 || fc.raw[0] != '"' {
		return "", false
	}
	var s string
	if err := json.Unmarshal(fc.raw, &s); err != nil {
		return "", false
	}
	return s, true
}

// AsBlocks returns the content as content blocks, if it is an array.
func (fc FlexibleContent) AsBlocks() (ContentBlocks, bool) {
	if len(fc.raw) == 0 || fc.raw[0] != '[' {
		return nil, false
	}
	var blocks ContentBlocks
	if err := json.Unmarshal(fc.raw, &blocks); err != nil {
		return nil, false
	}
	return blocks, true
}

// ContentBlockType discriminates content blocks.
type ContentBlockType string

const (
	ContentBlockTypeText       ContentBlockType = "text"
	ContentBlockTypeThinking   ContentBlockType = "thinking"
	ContentBlockTypeToolUse    ContentBlockType = "tool_use"
	ContentBlockTypeToolResult ContentBlockType = "tool_result"
)

// ContentBlock is the interface for content block discrimination.
type ContentBlock interface {
	BlockType() ContentBlockType
}

// TextBlock is plain assistant text.
type TextBlock struct {
	Type ContentBlockType `json:"type"`
	Text string           `json:"text"`
}

// BlockType returns the block type.
func (b TextBlock) BlockType() ContentBlockType { return ContentBlockTypeText }

// ThinkingBlock is extended-thinking output.
type ThinkingBlock struct {
	Type     ContentBlockType `json:"type"`
	Thinking string           `json:"thinking"`
}

// BlockType returns the block type.
func (b ThinkingBlock) BlockType() ContentBlockType { return ContentBlockTypeThinking }

// ToolUseBlock is a tool invocation.
type ToolUseBlock struct {
	Type  ContentBlockType `json:"type"`
	ID    string           `json:"id"`
	Name  string           `json:"name"`
	Input json.RawMessage  `json:"input"`
}

// BlockType returns the block type.
func (b ToolUseBlock) BlockType() ContentBlockType { return ContentBlockTypeToolUse }

// ToolResultBlock is a tool result echoed back through a user message.
type ToolResultBlock struct {
	Type      ContentBlockType `json:"type"`
	ToolUseID string           `json:"tool_use_id"`
	Content   FlexibleContent  `json:"content"`
	IsError   bool             `json:"is_error,omitempty"`
}

// BlockType returns the block type.
func (b ToolResultBlock) BlockType() ContentBlockType { return ContentBlockTypeToolResult }

// ContentBlocks is a list of content blocks. Unknown block types are skipped
// during unmarshaling rather than failing the whole message.
type ContentBlocks []ContentBlock

// UnmarshalJSON implements json.Unmarshaler.
func (cb *ContentBlocks) UnmarshalJSON(data []byte) error {
	var raws []json.RawMessage
	if err := json.Unmarshal(data, &raws); err != nil {
		return err
	}
	blocks := make(ContentBlocks, 0, len(raws))
	for _, raw := range raws {
		block, err := UnmarshalContentBlock(raw)
		if err != nil {
			return err
		}
		if block != nil {
			blocks = append(blocks, block)
		}
	}
	*cb = blocks
	return nil
}

// UnmarshalContentBlock parses one content block. Unknown types return
// (nil, nil) so callers can skip them.
func UnmarshalContentBlock(raw json.RawMessage) (ContentBlock, error) {
	var base struct {
		Type ContentBlockType `json:"type"`
	}
	if err := json.Unmarshal(raw, &base); err != nil {
		return nil, err
	}
	switch base.Type {
	case ContentBlockTypeText:
		var b TextBlock
		if err := json.Unmarshal(raw, &b); err != nil {
			return nil, err
		}
		return b, nil
	case ContentBlockTypeThinking:
		var b ThinkingBlock
		if err := json.Unmarshal(raw, &b); err != nil {
			return nil, err
		}
		return b, nil
	case ContentBlockTypeToolUse:
		var b ToolUseBlock
		if err := json.Unmarshal(raw, &b); err != nil {
			return nil, err
		}
		return b, nil
	case ContentBlockTypeToolResult:
		var b ToolResultBlock
		if err := json.Unmarshal(raw, &b); err != nil {
			return nil, err
		}
		return b, nil
	default:
		return nil, nil
	}
}

// MessageContent is the inner content of assistant/user messages.
type MessageContent struct {
	Model   string          `json:"model,omitempty"`
	ID      string          `json:"id,omitempty"`
	Role    string          `json:"role"`
	Content FlexibleContent `json:"content"`
}

// ChatMessage is a complete assistant or user message.
type ChatMessage struct {
	Type      MessageType    `json:"type"`
	SessionID string         `json:"session_id"`
	UUID      string         `json:"uuid"`
	Message   MessageContent `json:"message"`
}

// ResultMessage signals turn completion.
type ResultMessage struct {
	Type       MessageType `json:"type"`
	Subtype    string      `json:"subtype"`
	SessionID  string      `json:"session_id"`
	Result     string      `json:"result"`
	IsError    bool        `json:"is_error"`
	NumTurns   int         `json:"num_turns"`
	DurationMs int64       `json:"duration_ms"`
}

// ControlRequest wraps control messages from the CLI.
type ControlRequest struct {
	Type      MessageType     `json:"type"`
	RequestID string          `json:"request_id"`
	Request   json.RawMessage `json:"request"`
}

// CanUseToolRequest asks permission for a tool use.
type CanUseToolRequest struct {
	Subtype  string         `json:"subtype"`
	ToolName string         `json:"tool_name"`
	Input    map[string]any `json:"input"`
}

// askUserQuestionTool is the tool the CLI routes user-facing questions
// through; its can_use_tool request becomes a question, not a permission.
const askUserQuestionTool = "AskUserQuestion"

// questionInput is the AskUserQuestion tool input shape.
type questionInput struct {
	Questions []struct {
		Question string `json:"question"`
		Header   string `json:"header,omitempty"`
	} `json:"questions"`
}

// UserMessageToSend is the stdin line carrying one user message.
type UserMessageToSend struct {
	Type    string                 `json:"type"`
	Message UserMessageToSendInner `json:"message"`
}

// UserMessageToSendInner is the inner part of messages we send.
type UserMessageToSendInner struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

// ControlResponse wraps responses we send back to the CLI.
type ControlResponse struct {
	Type     MessageType            `json:"type"`
	Response ControlResponsePayload `json:"response"`
}

// ControlResponsePayload is the inner response payload.
type ControlResponsePayload struct {
	Subtype   string `json:"subtype"`
	RequestID string `json:"request_id"`
	Response  any    `json:"response,omitempty"`
	Error     string `json:"error,omitempty"`
}

// PermissionResultAllow grants tool execution. The wire format requires
// updatedInput to be an object, never null.
type PermissionResultAllow struct {
	Behavior     string         `json:"behavior"`
	UpdatedInput map[string]any `json:"updatedInput"`
}

// PermissionResultDeny blocks tool execution.
type PermissionResultDeny struct {
	Behavior  string `json:"behavior"`
	Message   string `json:"message,omitempty"`
	Interrupt bool   `json:"interrupt,omitempty"`
}

func marshalLine(v any) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal stdin line: %w", err)
	}
	return b, nil
}
