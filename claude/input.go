package claude

import "encoding/json"

// EncodeUserMessage builds the stdin line carrying one user message.
func EncodeUserMessage(text string) ([]byte, error) {
	return marshalLine(UserMessageToSend{
		Type: "user",
		Message: UserMessageToSendInner{
			Role:    "user",
			Content: text,
		},
	})
}

// EncodePermissionReply builds the control_response for a can_use_tool
// request. decision "allow" grants the tool with its original input; any
// other decision denies it.
func EncodePermissionReply(nativeID string, payload json.RawMessage, decision string) ([]byte, error) {
	if decision != "allow" {
		return marshalLine(ControlResponse{
			Type: MessageTypeControlResponse,
			Response: ControlResponsePayload{
				Subtype:   "success",
				RequestID: nativeID,
				Response: PermissionResultDeny{
					Behavior: "deny",
					Message:  "denied by client",
				},
			},
		})
	}
	return marshalLine(ControlResponse{
		Type: MessageTypeControlResponse,
		Response: ControlResponsePayload{
			Subtype:   "success",
			RequestID: nativeID,
			Response: PermissionResultAllow{
				Behavior:     "allow",
				UpdatedInput: originalInput(payload),
			},
		},
	})
}

// EncodeQuestionReply builds the control_response for an AskUserQuestion
// request: an allow with the answer embedded in updatedInput, which is how
// the CLI receives answers to its questions.
func EncodeQuestionReply(nativeID string, payload json.RawMessage, answer string) ([]byte, error) {
	input := originalInput(payload)
	updated := make(map[string]any, len(input)+1)
	for k, v := range input {
		updated[k] = v
	}
	updated["answers"] = map[string]string{answerKey(input): answer}
	return marshalLine(ControlResponse{
		Type: MessageTypeControlResponse,
		Response: ControlResponsePayload{
			Subtype:   "success",
			RequestID: nativeID,
			Response: PermissionResultAllow{
				Behavior:     "allow",
				UpdatedInput: updated,
			},
		},
	})
}

// originalInput recovers the tool input from the preserved request payload.
// The wire format forbids a null updatedInput, so this never returns nil.
func originalInput(payload json.RawMessage) map[string]any {
	var req CanUseToolRequest
	if err := json.Unmarshal(payload, &req); err != nil || req.Input == nil {
		return map[string]any{}
	}
	return req.Input
}

// answerKey picks the map key the CLI matches answers by: the first
// question's header when present, otherwise its text.
func answerKey(input map[string]any) string {
	b, err := json.Marshal(input)
	if err != nil {
		return "answer"
	}
	var q questionInput
	if err := json.Unmarshal(b, &q); err != nil || len(q.Questions) == 0 {
		return "answer"
	}
	if q.Questions[0].Header != "" {
		return q.Questions[0].Header
	}
	if q.Questions[0].Question != "" {
		return q.Questions[0].Question
	}
	return "answer"
}
