package codex

import (
	"encoding/json"
	"fmt"
	"sync/atomic"
)

// Encoder builds the JSON-RPC lines the CLI accepts on stdin. Request ids
// are generated from a per-session counter.
type Encoder struct {
	next atomic.Int64
}

// EncodeUserMessage builds a turn/create request carrying one text input.
func (e *Encoder) EncodeUserMessage(text string) ([]byte, error) {
	req := struct {
		JSONRPC string `json:"jsonrpc"`
		ID      int64  `json:"id"`
		Method  string `json:"method"`
		Params  any    `json:"params"`
	}{
		JSONRPC: "2.0",
		ID:      e.next.Add(1),
		Method:  "turn/create",
		Params: map[string]any{
			"input": []map[string]string{{"type": "text", "text": text}},
		},
	}
	b, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal turn request: %w", err)
	}
	return b, nil
}

// EncodePermissionReply builds the JSON-RPC response answering an approval
// request. nativeID is the request's raw JSON id, echoed back verbatim.
func EncodePermissionReply(nativeID string, decision string) ([]byte, error) {
	d := "denied"
	if decision == "allow" {
		d = "approved"
	}
	resp := struct {
		JSONRPC string          `json:"jsonrpc"`
		ID      json.RawMessage `json:"id"`
		Result  any             `json:"result"`
	}{
		JSONRPC: "2.0",
		ID:      json.RawMessage(nativeID),
		Result:  map[string]string{"decision": d},
	}
	b, err := json.Marshal(resp)
	if err != nil {
		return nil, fmt.Errorf("marshal approval response: %w", err)
	}
	return b, nil
}
