// Package amp converts the Amp CLI's stream-json output into universal
// events. The format follows the same envelope convention as the Claude CLI
// (typed JSON lines with system/assistant/user/result messages) but has no
// control channel: Amp never asks questions or requests permissions over
// stdio.
package amp

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/bazelment/agenthub/schema"
)

type streamLine struct {
	Type      string `json:"type"`
	Subtype   string `json:"subtype,omitempty"`
	SessionID string `json:"session_id,omitempty"`
	Result    string `json:"result,omitempty"`
	IsError   bool   `json:"is_error,omitempty"`
	Message   *struct {
		ID      string          `json:"id,omitempty"`
		Role    string          `json:"role"`
		Content json.RawMessage `json:"content"`
	} `json:"message,omitempty"`
}

// Convert maps one stream-json line to its universal form.
func Convert(line []byte) schema.Conversion {
	line = bytes.TrimSpace(line)
	if len(line) == 0 {
		return schema.None()
	}

	var msg streamLine
	if err := json.Unmarshal(line, &msg); err != nil {
		return schema.Unknown(line)
	}

	switch msg.Type {
	case "system":
		if msg.Subtype != "init" {
			return schema.None()
		}
		details, _ := json.Marshal(map[string]string{"session_id": msg.SessionID})
		return schema.Conversion{Data: schema.StartedData{
			Message: "amp session started",
			Details: details,
		}}

	case "assistant", "user":
		if msg.Message == nil {
			return schema.Unknown(line)
		}
		parts, ok := contentParts(msg.Message.Content)
		if !ok {
			return schema.Conversion{Data: schema.MessageData{Message: schema.Unparsed(line)}}
		}
		if len(parts) == 0 {
			return schema.None()
		}
		return schema.Conversion{Data: schema.MessageData{
			Message: schema.UniversalMessage{Parsed: &schema.ParsedMessage{
				Role:  msg.Message.Role,
				ID:    msg.Message.ID,
				Parts: parts,
			}},
		}}

	case "result":
		if msg.IsError {
			return schema.Conversion{
				Data:     schema.ErrorData{Message: msg.Result, Kind: "agent"},
				TurnDone: true,
			}
		}
		return schema.Conversion{TurnDone: true}

	default:
		return schema.Unknown(line)
	}
}

// contentParts decodes string-or-blocks message content.
func contentParts(content json.RawMessage) ([]schema.MessagePart, bool) {
	if len(content) == 0 {
		return nil, false
	}
	if content[0] == '"' {
		var text string
		if err := json.Unmarshal(content, &text); err != nil {
			return nil, false
		}
		return []schema.MessagePart{schema.TextPart(text)}, true
	}

	var blocks []struct {
		Type      string          `json:"type"`
		Text      string          `json:"text,omitempty"`
		Thinking  string          `json:"thinking,omitempty"`
		ID        string          `json:"id,omitempty"`
		Name      string          `json:"name,omitempty"`
		Input     json.RawMessage `json:"input,omitempty"`
		ToolUseID string          `json:"tool_use_id,omitempty"`
		Content   json.RawMessage `json:"content,omitempty"`
		IsError   bool            `json:"is_error,omitempty"`
	}
	if err := json.Unmarshal(content, &blocks); err != nil {
		return nil, false
	}

	parts := make([]schema.MessagePart, 0, len(blocks))
	for _, b := range blocks {
		switch b.Type {
		case "text":
			parts = append(parts, schema.TextPart(b.Text))
		case "thinking":
			parts = append(parts, schema.TextPart(b.Thinking))
		case "tool_use":
			parts = append(parts, schema.ToolCallPart(b.ID, b.Name, b.Input))
		case "tool_result":
			parts = append(parts, schema.ToolResultPart(b.ToolUseID, "", b.Content, b.IsError))
		}
	}
	return parts, true
}

// EncodeUserMessage builds the stdin line carrying one user message.
func EncodeUserMessage(text string) ([]byte, error) {
	b, err := json.Marshal(struct {
		Type    string `json:"type"`
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
	}{
		Type: "user",
		Message: struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		}{Role: "user", Content: text},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal stdin line: %w", err)
	}
	return b, nil
}
