package runtime

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/bazelment/agenthub/schema"
	"github.com/bazelment/agenthub/session"
)

// mockAdapter is a deterministic in-process agent: it answers one message
// with a started note and an echoed assistant reply, then exits. It gives
// tests and local smoke runs full event flow with no external binary.
type mockAdapter struct {
	sink Sink

	mu   sync.Mutex
	sent bool
	done bool
}

func newMockAdapter(sink Sink) *mockAdapter {
	return &mockAdapter{sink: sink}
}

func (a *mockAdapter) Start(ctx context.Context) error { return nil }

func (a *mockAdapter) Send(ctx context.Context, text string) error {
	a.mu.Lock()
	if a.done {
		a.mu.Unlock()
		return fmt.Errorf("mock agent already exited")
	}
	first := !a.sent
	a.sent = true
	a.done = true
	a.mu.Unlock()

	if first {
		details, _ := json.Marshal(map[string]string{"model": "mock-1"})
		a.sink.Ingest(schema.Conversion{Data: schema.StartedData{
			Message: "mock agent started",
			Details: details,
		}})
	}
	a.sink.Ingest(schema.Conversion{
		Data: schema.MessageData{
			Message: schema.ParsedText("assistant", "echo: "+text),
		},
		TurnDone: true,
	})
	a.sink.Exit(nil)
	return nil
}

func (a *mockAdapter) ReplyQuestion(ctx context.Context, p session.Pending, answer string) error {
	return fmt.Errorf("mock agent does not ask questions")
}

func (a *mockAdapter) ReplyPermission(ctx context.Context, p session.Pending, decision string) error {
	return fmt.Errorf("mock agent does not request permissions")
}

func (a *mockAdapter) Stop() {}
