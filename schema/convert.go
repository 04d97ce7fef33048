package schema

import "encoding/json"

// Conversion is the outcome of converting one native agent output unit.
// Converters are total: they never fail, and at most one universal event
// comes out of one native unit.
type Conversion struct {
	// Data is the universal event payload, or nil when the unit carries
	// nothing worth recording (blank lines, keepalives).
	Data EventData

	// Question is set when the unit is a question the agent blocks on.
	// The session core registers it as an open pending entry.
	Question *QuestionRequest

	// Permission is set when the unit is a permission request.
	Permission *PermissionRequest

	// TurnDone marks the end of the agent's current turn, releasing the
	// session's in-flight send slot.
	TurnDone bool
}

// QuestionRequest describes a pending question produced by a converter.
type QuestionRequest struct {
	// ID is the stable public id used by the question reply endpoint.
	ID string
	// NativeID correlates the reply with the agent's own request id
	// (control request id, JSON-RPC id, backend permission id).
	NativeID string
	// Payload is the native request body, preserved for the client.
	Payload json.RawMessage
}

// PermissionRequest describes a pending permission request.
type PermissionRequest struct {
	ID       string
	NativeID string
	ToolName string
	Payload  json.RawMessage
}

// None is the empty conversion: nothing recorded, nothing pending.
func None() Conversion { return Conversion{} }

// Unknown wraps an unrecognized unit, preserving the raw payload verbatim.
func Unknown(raw []byte) Conversion {
	return Conversion{Data: UnknownData{Raw: append(json.RawMessage(nil), raw...)}}
}
