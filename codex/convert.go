package codex

import (
	"bytes"
	"encoding/json"

	"github.com/google/uuid"

	"github.com/bazelment/agenthub/schema"
)

// Convert maps one JSON-RPC line from the Codex CLI to its universal form.
// Notifications become events, approval requests become pending permissions,
// responses to our own requests convert to nothing.
func Convert(line []byte) schema.Conversion {
	line = bytes.TrimSpace(line)
	if len(line) == 0 {
		return schema.None()
	}

	var msg rpcMessage
	if err := json.Unmarshal(line, &msg); err != nil {
		return schema.Unknown(line)
	}

	switch {
	case msg.Method != "" && msg.ID != nil:
		return convertRequest(line, msg)
	case msg.Method != "":
		return convertNotification(line, msg)
	default:
		// Response to a request we sent (turn/create ack). Nothing to
		// record unless it carries an error.
		if msg.Error != nil {
			return schema.Conversion{Data: schema.ErrorData{
				Message: string(msg.Error),
				Kind:    "rpc",
			}}
		}
		return schema.None()
	}
}

func convertNotification(line []byte, msg rpcMessage) schema.Conversion {
	switch msg.Method {
	case NotifyThreadStarted:
		var n ThreadStartedNotification
		if err := json.Unmarshal(msg.Params, &n); err != nil {
			return schema.Unknown(line)
		}
		details, _ := json.Marshal(n.Thread)
		return schema.Conversion{Data: schema.StartedData{
			Message: NotifyThreadStarted,
			Details: details,
		}}

	case NotifyTurnStarted:
		var n TurnStartedNotification
		if err := json.Unmarshal(msg.Params, &n); err != nil {
			return schema.Unknown(line)
		}
		details, _ := json.Marshal(n.Turn)
		return schema.Conversion{Data: schema.StartedData{
			Message: NotifyTurnStarted,
			Details: details,
		}}

	case NotifyTurnCompleted:
		var n TurnCompletedNotification
		if err := json.Unmarshal(msg.Params, &n); err != nil {
			return schema.Unknown(line)
		}
		conv := schema.Conversion{TurnDone: true}
		if n.Turn.Status == "failed" {
			conv.Data = schema.ErrorData{Message: "turn failed", Kind: "agent"}
			return conv
		}
		// The turn's items already arrived via item/completed; the
		// completion line only marks the boundary.
		return conv

	case NotifyItemStarted:
		// Items are recorded once, at completion.
		return schema.None()

	case NotifyItemCompleted:
		var n ItemNotification
		if err := json.Unmarshal(msg.Params, &n); err != nil {
			return schema.Unknown(line)
		}
		return schema.Conversion{Data: schema.MessageData{
			Message: itemToMessage(n.Item),
		}}

	case NotifyAgentMessageDelta, NotifyReasoningDelta, NotifyCommandOutput, NotifyFileChangeDelta:
		var n DeltaNotification
		if err := json.Unmarshal(msg.Params, &n); err != nil {
			return schema.Unknown(line)
		}
		return schema.Conversion{Data: schema.MessageData{
			Message: deltaToMessage(msg.Method, n),
		}}

	case NotifyError:
		var n ErrorNotification
		if err := json.Unmarshal(msg.Params, &n); err != nil {
			return schema.Unknown(line)
		}
		details, _ := json.Marshal(n)
		return schema.Conversion{Data: schema.ErrorData{
			Message: n.Error.Message,
			Kind:    "agent",
			Details: details,
		}}

	case NotifyTokenUsage:
		// Usage snapshots are preserved but not given their own shape.
		return schema.Unknown(line)

	default:
		return schema.Unknown(line)
	}
}

func convertRequest(line []byte, msg rpcMessage) schema.Conversion {
	switch msg.Method {
	case RequestExecApproval, RequestPatchApproval:
		toolName := "exec"
		if msg.Method == RequestPatchApproval {
			toolName = "apply_patch"
		}
		payload := append(json.RawMessage(nil), msg.Params...)
		id := uuid.NewString()
		return schema.Conversion{
			Data: schema.PermissionData{
				PermissionID: id,
				ToolName:     toolName,
				Request:      payload,
			},
			Permission: &schema.PermissionRequest{
				ID:       id,
				NativeID: string(bytes.TrimSpace(msg.ID)),
				ToolName: toolName,
				Payload:  payload,
			},
		}
	default:
		return schema.Unknown(line)
	}
}

func deltaToMessage(method string, n DeltaNotification) schema.UniversalMessage {
	metadata := map[string]any{
		"delta":  true,
		"turnId": n.TurnID,
	}
	switch method {
	case NotifyReasoningDelta:
		metadata["itemType"] = "reasoning"
	case NotifyCommandOutput:
		metadata["itemType"] = "commandExecution"
	case NotifyFileChangeDelta:
		metadata["itemType"] = "fileChange"
	}
	return schema.UniversalMessage{Parsed: &schema.ParsedMessage{
		Role:     "assistant",
		ID:       n.ItemID,
		Parts:    []schema.MessagePart{schema.TextPart(n.Delta)},
		Metadata: metadata,
	}}
}

// itemToMessage converts one thread item to a universal message.
func itemToMessage(item ThreadItem) schema.UniversalMessage {
	switch item.Type {
	case "user_message":
		parts := make([]schema.MessagePart, 0, len(item.Content))
		for _, in := range item.Content {
			parts = append(parts, userInputToPart(in))
		}
		return schema.UniversalMessage{Parsed: &schema.ParsedMessage{
			Role:  "user",
			ID:    item.ID,
			Parts: parts,
		}}

	case "agent_message":
		return schema.UniversalMessage{Parsed: &schema.ParsedMessage{
			Role:     "assistant",
			ID:       item.ID,
			Parts:    []schema.MessagePart{schema.TextPart(item.Text)},
			Metadata: map[string]any{"itemType": "agentMessage"},
		}}

	case "reasoning":
		parts := make([]schema.MessagePart, 0, len(item.ReasoningContent))
		for _, text := range item.ReasoningContent {
			parts = append(parts, schema.TextPart(text))
		}
		metadata := map[string]any{"itemType": "reasoning"}
		if len(item.Summary) > 0 {
			metadata["summary"] = item.Summary
		}
		return schema.UniversalMessage{Parsed: &schema.ParsedMessage{
			Role:     "assistant",
			ID:       item.ID,
			Parts:    parts,
			Metadata: metadata,
		}}

	case "command_execution":
		metadata := map[string]any{
			"itemType": "commandExecution",
			"command":  item.Command,
			"cwd":      item.CWD,
			"status":   item.Status,
		}
		if item.ExitCode != nil {
			metadata["exitCode"] = *item.ExitCode
		}
		var parts []schema.MessagePart
		if item.AggregatedOutput != "" {
			parts = append(parts, schema.TextPart(item.AggregatedOutput))
		}
		return schema.UniversalMessage{Parsed: &schema.ParsedMessage{
			Role:     "assistant",
			ID:       item.ID,
			Parts:    parts,
			Metadata: metadata,
		}}

	case "mcp_tool_call":
		return schema.UniversalMessage{Parsed: &schema.ParsedMessage{
			Role: "assistant",
			ID:   item.ID,
			Parts: []schema.MessagePart{
				schema.ToolCallPart(item.ID, item.Tool, item.Arguments),
				schema.ToolResultPart(item.ID, item.Tool, item.Result, item.Status == "failed"),
			},
			Metadata: map[string]any{
				"itemType": "mcpToolCall",
				"server":   item.Server,
				"status":   item.Status,
			},
		}}

	case "file_change":
		parts := make([]schema.MessagePart, 0, len(item.Changes))
		for _, change := range item.Changes {
			parts = append(parts, schema.UnknownPart(change))
		}
		return schema.UniversalMessage{Parsed: &schema.ParsedMessage{
			Role:  "assistant",
			ID:    item.ID,
			Parts: parts,
			Metadata: map[string]any{
				"itemType": "fileChange",
				"status":   item.Status,
			},
		}}

	case "web_search":
		return schema.UniversalMessage{Parsed: &schema.ParsedMessage{
			Role:     "assistant",
			ID:       item.ID,
			Parts:    []schema.MessagePart{schema.TextPart(item.Query)},
			Metadata: map[string]any{"itemType": "webSearch"},
		}}

	default:
		return schema.Unparsed(item.raw)
	}
}

func userInputToPart(in UserInput) schema.MessagePart {
	switch in.Type {
	case "text":
		return schema.TextPart(in.Text)
	case "image":
		return schema.MessagePart{Type: schema.PartImage, URL: in.ImageURL}
	case "local_image":
		return schema.MessagePart{Type: schema.PartImage, Path: in.Path}
	default:
		raw, _ := json.Marshal(in)
		return schema.UnknownPart(raw)
	}
}
