package claude

import (
	"bytes"
	"encoding/json"

	"github.com/google/uuid"

	"github.com/bazelment/agenthub/schema"
)

// Convert maps one stream-json line to its universal form. It is total:
// blank lines convert to nothing, unparseable or unrecognized lines convert
// to Unknown events with the raw line preserved verbatim.
func Convert(line []byte) schema.Conversion {
	line = bytes.TrimSpace(line)
	if len(line) == 0 {
		return schema.None()
	}

	var base struct {
		Type MessageType `json:"type"`
	}
	if err := json.Unmarshal(line, &base); err != nil {
		return schema.Unknown(line)
	}

	switch base.Type {
	case MessageTypeSystem:
		return convertSystem(line)
	case MessageTypeAssistant, MessageTypeUser:
		return convertChat(line)
	case MessageTypeResult:
		return convertResult(line)
	case MessageTypeControlRequest:
		return convertControlRequest(line)
	case MessageTypeStreamEvent, MessageTypeControlResponse:
		// Partial deltas and acks of our own control responses carry no
		// information the complete messages don't.
		return schema.None()
	default:
		return schema.Unknown(line)
	}
}

func convertSystem(line []byte) schema.Conversion {
	var msg SystemMessage
	if err := json.Unmarshal(line, &msg); err != nil {
		return schema.Unknown(line)
	}
	if msg.Subtype != "init" {
		return schema.None()
	}
	details, _ := json.Marshal(map[string]any{
		"session_id": msg.SessionID,
		"model":      msg.Model,
		"cwd":        msg.CWD,
	})
	return schema.Conversion{Data: schema.StartedData{
		Message: "claude session started",
		Details: details,
	}}
}

func convertChat(line []byte) schema.Conversion {
	var msg ChatMessage
	if err := json.Unmarshal(line, &msg); err != nil {
		return schema.Unknown(line)
	}

	if text, ok := msg.Message.Content.AsString(); ok {
		return schema.Conversion{Data: schema.MessageData{
			Message: schema.ParsedText(msg.Message.Role, text),
		}}
	}

	blocks, ok := msg.Message.Content.AsBlocks()
	if !ok {
		// Content was neither a string nor a block array; keep the line.
		return schema.Conversion{Data: schema.MessageData{
			Message: schema.Unparsed(line),
		}}
	}

	parts := make([]schema.MessagePart, 0, len(blocks))
	for _, block := range blocks {
		switch b := block.(type) {
		case TextBlock:
			parts = append(parts, schema.TextPart(b.Text))
		case ThinkingBlock:
			parts = append(parts, schema.TextPart(b.Thinking))
		case ToolUseBlock:
			parts = append(parts, schema.ToolCallPart(b.ID, b.Name, b.Input))
		case ToolResultBlock:
			output, _ := json.Marshal(b.Content)
			parts = append(parts, schema.ToolResultPart(b.ToolUseID, "", output, b.IsError))
		}
	}
	if len(parts) == 0 {
		return schema.None()
	}

	parsed := &schema.ParsedMessage{
		Role:  msg.Message.Role,
		ID:    msg.Message.ID,
		Parts: parts,
	}
	if msg.Message.Model != "" {
		parsed.Metadata = map[string]any{"model": msg.Message.Model}
	}
	return schema.Conversion{Data: schema.MessageData{
		Message: schema.UniversalMessage{Parsed: parsed},
	}}
}

func convertResult(line []byte) schema.Conversion {
	var msg ResultMessage
	if err := json.Unmarshal(line, &msg); err != nil {
		return schema.Unknown(line)
	}
	if msg.IsError {
		return schema.Conversion{
			Data: schema.ErrorData{
				Message: msg.Result,
				Kind:    "agent",
			},
			TurnDone: true,
		}
	}
	// The final text already arrived as an assistant message; the result
	// line only marks the turn boundary.
	return schema.Conversion{TurnDone: true}
}

func convertControlRequest(line []byte) schema.Conversion {
	var req ControlRequest
	if err := json.Unmarshal(line, &req); err != nil {
		return schema.Unknown(line)
	}
	var inner CanUseToolRequest
	if err := json.Unmarshal(req.Request, &inner); err != nil || inner.Subtype != "can_use_tool" {
		// Other control requests (hooks, MCP relays) are not part of the
		// universal surface; preserve them.
		return schema.Unknown(line)
	}

	payload := append(json.RawMessage(nil), req.Request...)
	id := uuid.NewString()

	if inner.ToolName == askUserQuestionTool {
		return schema.Conversion{
			Data: schema.QuestionData{
				QuestionID: id,
				Question:   questionBody(inner.Input),
			},
			Question: &schema.QuestionRequest{
				ID:       id,
				NativeID: req.RequestID,
				Payload:  payload,
			},
		}
	}

	return schema.Conversion{
		Data: schema.PermissionData{
			PermissionID: id,
			ToolName:     inner.ToolName,
			Request:      payload,
		},
		Permission: &schema.PermissionRequest{
			ID:       id,
			NativeID: req.RequestID,
			ToolName: inner.ToolName,
			Payload:  payload,
		},
	}
}

// questionBody extracts the question list from AskUserQuestion input,
// falling back to the whole input object.
func questionBody(input map[string]any) json.RawMessage {
	if qs, ok := input["questions"]; ok {
		if b, err := json.Marshal(qs); err == nil {
			return b
		}
	}
	b, _ := json.Marshal(input)
	return b
}
