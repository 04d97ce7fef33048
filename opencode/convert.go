package opencode

import (
	"bytes"
	"encoding/json"

	"github.com/google/uuid"

	"github.com/bazelment/agenthub/schema"
)

// frame is the envelope of one SSE data payload from the backend.
type frame struct {
	Type       string          `json:"type"`
	Properties json.RawMessage `json:"properties"`
}

// messagePart is the body of message.part.updated frames.
type messagePart struct {
	Part struct {
		ID        string `json:"id"`
		MessageID string `json:"messageID"`
		SessionID string `json:"sessionID"`
		Type      string `json:"type"`
		Text      string `json:"text,omitempty"`
		Tool      string `json:"tool,omitempty"`
		CallID    string `json:"callID,omitempty"`
		State     *struct {
			Status string          `json:"status"`
			Input  json.RawMessage `json:"input,omitempty"`
			Output string          `json:"output,omitempty"`
			Error  string          `json:"error,omitempty"`
		} `json:"state,omitempty"`
	} `json:"part"`
}

// permissionProps is the body of permission.updated frames.
type permissionProps struct {
	ID        string          `json:"id"`
	SessionID string          `json:"sessionID"`
	Type      string          `json:"type,omitempty"`
	Title     string          `json:"title,omitempty"`
	CallID    string          `json:"callID,omitempty"`
	Metadata  json.RawMessage `json:"metadata,omitempty"`
}

// sessionError is the body of session.error frames.
type sessionError struct {
	SessionID string `json:"sessionID,omitempty"`
	Error     struct {
		Name string `json:"name,omitempty"`
		Data struct {
			Message string `json:"message,omitempty"`
		} `json:"data,omitempty"`
	} `json:"error"`
}

// SessionID extracts the backend session id a frame belongs to, or "" when
// it has none (server-level frames). The proxy uses it to filter the shared
// event feed down to one session.
func SessionID(data []byte) string {
	var f frame
	if err := json.Unmarshal(data, &f); err != nil {
		return ""
	}
	var probe struct {
		SessionID string `json:"sessionID"`
		Part      struct {
			SessionID string `json:"sessionID"`
		} `json:"part"`
		Info struct {
			SessionID string `json:"sessionID"`
		} `json:"info"`
	}
	if err := json.Unmarshal(f.Properties, &probe); err != nil {
		return ""
	}
	switch {
	case probe.SessionID != "":
		return probe.SessionID
	case probe.Part.SessionID != "":
		return probe.Part.SessionID
	default:
		return probe.Info.SessionID
	}
}

// Convert maps one SSE data payload to its universal form. The caller has
// already filtered frames to the right backend session.
func Convert(data []byte) schema.Conversion {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return schema.None()
	}

	var f frame
	if err := json.Unmarshal(data, &f); err != nil {
		return schema.Unknown(data)
	}

	switch f.Type {
	case "message.part.updated":
		return convertPart(data, f.Properties)

	case "message.updated":
		// Carries message metadata only; content arrives per part.
		return schema.None()

	case "session.created":
		return schema.Conversion{Data: schema.StartedData{
			Message: "opencode session started",
			Details: append(json.RawMessage(nil), f.Properties...),
		}}

	case "session.idle":
		return schema.Conversion{TurnDone: true}

	case "permission.updated":
		return convertPermission(data, f.Properties)

	case "session.error":
		var p sessionError
		if err := json.Unmarshal(f.Properties, &p); err != nil {
			return schema.Unknown(data)
		}
		msg := p.Error.Data.Message
		if msg == "" {
			msg = p.Error.Name
		}
		return schema.Conversion{Data: schema.ErrorData{
			Message: msg,
			Kind:    "agent",
			Details: append(json.RawMessage(nil), f.Properties...),
		}}

	case "session.updated", "session.deleted", "storage.write", "server.connected":
		return schema.None()

	default:
		return schema.Unknown(data)
	}
}

func convertPart(data []byte, props json.RawMessage) schema.Conversion {
	var p messagePart
	if err := json.Unmarshal(props, &p); err != nil {
		return schema.Unknown(data)
	}

	switch p.Part.Type {
	case "text":
		if p.Part.Text == "" {
			return schema.None()
		}
		return schema.Conversion{Data: schema.MessageData{
			Message: schema.UniversalMessage{Parsed: &schema.ParsedMessage{
				Role:  "assistant",
				ID:    p.Part.MessageID,
				Parts: []schema.MessagePart{schema.TextPart(p.Part.Text)},
			}},
		}}

	case "tool":
		// Tool parts update repeatedly while running; record the final
		// state only.
		if p.Part.State == nil || (p.Part.State.Status != "completed" && p.Part.State.Status != "error") {
			return schema.None()
		}
		callID := p.Part.CallID
		if callID == "" {
			callID = p.Part.ID
		}
		output, _ := json.Marshal(p.Part.State.Output)
		if p.Part.State.Error != "" {
			output, _ = json.Marshal(p.Part.State.Error)
		}
		return schema.Conversion{Data: schema.MessageData{
			Message: schema.UniversalMessage{Parsed: &schema.ParsedMessage{
				Role: "assistant",
				ID:   p.Part.MessageID,
				Parts: []schema.MessagePart{
					schema.ToolCallPart(callID, p.Part.Tool, p.Part.State.Input),
					schema.ToolResultPart(callID, p.Part.Tool, output, p.Part.State.Status == "error"),
				},
			}},
		}}

	default:
		return schema.None()
	}
}

func convertPermission(data []byte, props json.RawMessage) schema.Conversion {
	var p permissionProps
	if err := json.Unmarshal(props, &p); err != nil {
		return schema.Unknown(data)
	}
	payload := append(json.RawMessage(nil), props...)
	id := uuid.NewString()
	return schema.Conversion{
		Data: schema.PermissionData{
			PermissionID: id,
			ToolName:     p.Type,
			Request:      payload,
		},
		Permission: &schema.PermissionRequest{
			ID:       id,
			NativeID: p.ID,
			ToolName: p.Type,
			Payload:  payload,
		},
	}
}
