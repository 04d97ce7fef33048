package schema

import (
	"encoding/json"
	"fmt"
)

// UniversalMessage is either a structured message the converter understood
// (Parsed) or a raw payload it could not break down (Unparsed). Conversion
// never fails: when structure cannot be determined the raw payload is kept.
type UniversalMessage struct {
	// Parsed is set when the message structure was recognized.
	Parsed *ParsedMessage
	// Raw holds the verbatim payload when Parsed is nil.
	Raw json.RawMessage
}

// ParsedMessage is a structured message with role, parts and agent-specific
// metadata the core treats as opaque.
type ParsedMessage struct {
	Role     string         `json:"role"`
	ID       string         `json:"id,omitempty"`
	Parts    []MessagePart  `json:"parts"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// MarshalJSON encodes the parsed/unparsed union.
func (m UniversalMessage) MarshalJSON() ([]byte, error) {
	if m.Parsed != nil {
		return json.Marshal(struct {
			Kind string `json:"kind"`
			*ParsedMessage
		}{Kind: "parsed", ParsedMessage: m.Parsed})
	}
	return json.Marshal(struct {
		Kind string          `json:"kind"`
		Raw  json.RawMessage `json:"raw"`
	}{Kind: "unparsed", Raw: m.Raw})
}

// UnmarshalJSON decodes the parsed/unparsed union.
func (m *UniversalMessage) UnmarshalJSON(b []byte) error {
	var aux struct {
		Kind string          `json:"kind"`
		Raw  json.RawMessage `json:"raw"`
	}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	switch aux.Kind {
	case "parsed":
		var p ParsedMessage
		if err := json.Unmarshal(b, &p); err != nil {
			return err
		}
		m.Parsed = &p
		m.Raw = nil
		return nil
	case "unparsed":
		m.Parsed = nil
		m.Raw = aux.Raw
		return nil
	default:
		return fmt.Errorf("unknown message kind %q", aux.Kind)
	}
}

// PartType discriminates message part variants.
type PartType string

const (
	PartText           PartType = "text"
	PartToolCall       PartType = "tool_call"
	PartToolResult     PartType = "tool_result"
	PartFunctionCall   PartType = "function_call"
	PartFunctionResult PartType = "function_result"
	PartFile           PartType = "file"
	PartImage          PartType = "image"
	PartError          PartType = "error"
	PartUnknown        PartType = "unknown"
)

// MessagePart is one unit of message content. Exactly the fields relevant to
// its Type are populated; agent-specific payloads stay opaque raw JSON.
type MessagePart struct {
	Type PartType `json:"type"`

	// Text carries the content of text parts.
	Text string `json:"text,omitempty"`

	// ToolCall / ToolResult / FunctionCall / FunctionResult fields.
	CallID  string          `json:"call_id,omitempty"`
	Name    string          `json:"name,omitempty"`
	Input   json.RawMessage `json:"input,omitempty"`
	Output  json.RawMessage `json:"output,omitempty"`
	IsError bool            `json:"is_error,omitempty"`

	// File / Image attachment fields. Exactly one of URL and Path is set
	// for recognized attachments.
	URL      string `json:"url,omitempty"`
	Path     string `json:"path,omitempty"`
	MimeType string `json:"mime_type,omitempty"`

	// Message carries the text of error parts.
	Message string `json:"message,omitempty"`

	// Raw preserves the native payload of unknown parts verbatim.
	Raw json.RawMessage `json:"raw,omitempty"`
}

// TextPart builds a text part.
func TextPart(text string) MessagePart {
	return MessagePart{Type: PartText, Text: text}
}

// ToolCallPart builds a tool call part.
func ToolCallPart(callID, name string, input json.RawMessage) MessagePart {
	return MessagePart{Type: PartToolCall, CallID: callID, Name: name, Input: input}
}

// ToolResultPart builds a tool result part.
func ToolResultPart(callID, name string, output json.RawMessage, isError bool) MessagePart {
	return MessagePart{Type: PartToolResult, CallID: callID, Name: name, Output: output, IsError: isError}
}

// UnknownPart preserves an unrecognized native part verbatim.
func UnknownPart(raw json.RawMessage) MessagePart {
	return MessagePart{Type: PartUnknown, Raw: append(json.RawMessage(nil), raw...)}
}

// ParsedText builds a parsed message with a single text part.
func ParsedText(role, text string) UniversalMessage {
	return UniversalMessage{Parsed: &ParsedMessage{
		Role:  role,
		Parts: []MessagePart{TextPart(text)},
	}}
}

// Unparsed builds a message that falls back to the raw payload.
func Unparsed(raw json.RawMessage) UniversalMessage {
	return UniversalMessage{Raw: append(json.RawMessage(nil), raw...)}
}

// JoinedText concatenates the text parts of a message, for display and tests.
func (m UniversalMessage) JoinedText() string {
	if m.Parsed == nil {
		return ""
	}
	var out string
	for _, p := range m.Parsed.Parts {
		if p.Type == PartText {
			out += p.Text
		}
	}
	return out
}
