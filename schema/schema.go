// Package schema defines the agent-agnostic event and message model that all
// native agent output is normalized into. The types here carry no behavior
// beyond JSON encoding; conversion lives in the per-agent packages.
package schema

import (
	"encoding/json"
	"fmt"
	"time"
)

// Agent identifies a supported agent family.
type Agent string

const (
	AgentClaude   Agent = "claude"
	AgentCodex    Agent = "codex"
	AgentAmp      Agent = "amp"
	AgentOpenCode Agent = "opencode"
	// AgentMock is a deterministic in-process agent used by tests and local
	// smoke runs. It echoes the prompt back as an assistant message.
	AgentMock Agent = "mock"
)

// ParseAgent validates an agent name from a request.
func ParseAgent(s string) (Agent, error) {
	switch Agent(s) {
	case AgentClaude, AgentCodex, AgentAmp, AgentOpenCode, AgentMock:
		return Agent(s), nil
	}
	return "", fmt.Errorf("unknown agent %q", s)
}

// RuntimeMode selects the adapter strategy for an agent family.
type RuntimeMode string

const (
	// RuntimeSubprocess spawns a local CLI emitting line-delimited JSON.
	RuntimeSubprocess RuntimeMode = "subprocess"
	// RuntimeProxy forwards to an agent backend running its own server.
	RuntimeProxy RuntimeMode = "proxy"
)

// Runtime returns the runtime mode for the agent family.
func (a Agent) Runtime() RuntimeMode {
	if a == AgentOpenCode {
		return RuntimeProxy
	}
	return RuntimeSubprocess
}

// EventType discriminates the data variant of a UniversalEvent.
type EventType string

const (
	EventTypeMessage         EventType = "message"
	EventTypeStarted         EventType = "started"
	EventTypeError           EventType = "error"
	EventTypeQuestionAsked   EventType = "question_asked"
	EventTypePermissionAsked EventType = "permission_asked"
	EventTypeSessionEnded    EventType = "session_ended"
	EventTypeUnknown         EventType = "unknown"
)

// EventData is the tagged variant payload of a UniversalEvent.
type EventData interface {
	EventType() EventType
}

// MessageData wraps a normalized message from the agent or the user.
type MessageData struct {
	Message UniversalMessage `json:"message"`
}

func (MessageData) EventType() EventType { return EventTypeMessage }

// StartedData signals that the agent (or one of its turns) has started.
type StartedData struct {
	Message string          `json:"message,omitempty"`
	Details json.RawMessage `json:"details,omitempty"`
}

func (StartedData) EventType() EventType { return EventTypeStarted }

// ErrorData records an agent crash or protocol-level failure.
type ErrorData struct {
	Message string          `json:"message"`
	Kind    string          `json:"kind,omitempty"`
	Details json.RawMessage `json:"details,omitempty"`
}

func (ErrorData) EventType() EventType { return EventTypeError }

// QuestionData records a question the agent is blocked on. The id is usable
// with the question reply endpoint while the entry is open.
type QuestionData struct {
	QuestionID string          `json:"question_id"`
	Question   json.RawMessage `json:"question"`
}

func (QuestionData) EventType() EventType { return EventTypeQuestionAsked }

// PermissionData records a permission request the agent is blocked on.
type PermissionData struct {
	PermissionID string          `json:"permission_id"`
	ToolName     string          `json:"tool_name,omitempty"`
	Request      json.RawMessage `json:"request"`
}

func (PermissionData) EventType() EventType { return EventTypePermissionAsked }

// SessionEndedData is the terminal closing note appended exactly once when a
// session ends. No events follow it.
type SessionEndedData struct {
	Reason string `json:"reason"`
}

func (SessionEndedData) EventType() EventType { return EventTypeSessionEnded }

// UnknownData preserves agent output the converter did not recognize. The raw
// payload is kept verbatim so no information is lost.
type UnknownData struct {
	Raw json.RawMessage `json:"raw"`
}

func (UnknownData) EventType() EventType { return EventTypeUnknown }

// UniversalEvent is the single normalized event record all agent output is
// converted into. IDs are per-session, monotonically increasing from 1 with
// no gaps.
type UniversalEvent struct {
	ID        int64     `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	SessionID string    `json:"session_id"`
	Agent     Agent     `json:"agent"`
	Data      EventData `json:"data"`
}

// MarshalJSON encodes the tagged data union as {"type": <tag>, ...fields}.
func (e UniversalEvent) MarshalJSON() ([]byte, error) {
	type plain UniversalEvent
	data, err := marshalEventData(e.Data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(struct {
		plain
		Data json.RawMessage `json:"data"`
	}{plain: plain(e), Data: data})
}

// UnmarshalJSON decodes the tagged data union.
func (e *UniversalEvent) UnmarshalJSON(b []byte) error {
	type plain UniversalEvent
	var aux struct {
		plain
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	data, err := unmarshalEventData(aux.Data)
	if err != nil {
		return err
	}
	*e = UniversalEvent(aux.plain)
	e.Data = data
	return nil
}

func marshalEventData(d EventData) (json.RawMessage, error) {
	if d == nil {
		return json.RawMessage("null"), nil
	}
	fields, err := json.Marshal(d)
	if err != nil {
		return nil, err
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(fields, &obj); err != nil {
		return nil, err
	}
	obj["type"] = json.RawMessage(fmt.Sprintf("%q", d.EventType()))
	return json.Marshal(obj)
}

func unmarshalEventData(raw json.RawMessage) (EventData, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var tag struct {
		Type EventType `json:"type"`
	}
	if err := json.Unmarshal(raw, &tag); err != nil {
		return nil, err
	}
	switch tag.Type {
	case EventTypeMessage:
		var v MessageData
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, err
		}
		return v, nil
	case EventTypeStarted:
		var v StartedData
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, err
		}
		return v, nil
	case EventTypeError:
		var v ErrorData
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, err
		}
		return v, nil
	case EventTypeQuestionAsked:
		var v QuestionData
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, err
		}
		return v, nil
	case EventTypePermissionAsked:
		var v PermissionData
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, err
		}
		return v, nil
	case EventTypeSessionEnded:
		var v SessionEndedData
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, err
		}
		return v, nil
	case EventTypeUnknown:
		var v UnknownData
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, err
		}
		return v, nil
	default:
		// Unknown tags survive round-trips as Unknown data.
		return UnknownData{Raw: append(json.RawMessage(nil), raw...)}, nil
	}
}
