package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bazelment/agenthub/internal/sse"
	"github.com/bazelment/agenthub/runtime"
	"github.com/bazelment/agenthub/schema"
	"github.com/bazelment/agenthub/session"
)

type testLogWriter struct{ t *testing.T }

func (w testLogWriter) Write(p []byte) (int, error) {
	w.t.Log(string(p))
	return len(p), nil
}

func testLogger(t *testing.T) *slog.Logger {
	t.Helper()
	return slog.New(slog.NewTextHandler(testLogWriter{t}, nil))
}

// scriptAdapter lets tests control agent behavior per send.
type scriptAdapter struct {
	mu      sync.Mutex
	onSend  func(sink runtime.Sink, text string)
	sink    runtime.Sink
	answers []string
}

func (a *scriptAdapter) Start(ctx context.Context) error { return nil }

func (a *scriptAdapter) Send(ctx context.Context, text string) error {
	a.mu.Lock()
	onSend := a.onSend
	sink := a.sink
	a.mu.Unlock()
	if onSend != nil {
		onSend(sink, text)
	}
	return nil
}

func (a *scriptAdapter) ReplyQuestion(ctx context.Context, p session.Pending, answer string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.answers = append(a.answers, answer)
	return nil
}

func (a *scriptAdapter) ReplyPermission(ctx context.Context, p session.Pending, decision string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.answers = append(a.answers, decision)
	return nil
}

func (a *scriptAdapter) Stop() {}

func (a *scriptAdapter) recorded() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.answers...)
}

func newTestServer(t *testing.T, adapter *scriptAdapter) (*httptest.Server, *session.Registry) {
	t.Helper()
	factory := func(s *session.Session, p session.Params) (session.Adapter, error) {
		if adapter != nil {
			adapter.mu.Lock()
			adapter.sink = s
			adapter.mu.Unlock()
			return adapter, nil
		}
		return runtime.NewFactory(runtime.Config{}, testLogger(t))(s, p)
	}
	reg := session.NewRegistry(factory, testLogger(t))
	srv := httptest.NewServer(NewServer(reg, testLogger(t)))
	t.Cleanup(srv.Close)
	t.Cleanup(reg.Shutdown)
	return srv, reg
}

func doJSON(t *testing.T, method, url string, body any) (*http.Response, map[string]any) {
	t.Helper()
	var reader *strings.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = strings.NewReader(string(b))
	} else {
		reader = strings.NewReader("{}")
	}
	req, err := http.NewRequest(method, url, reader)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })

	var decoded map[string]any
	if resp.StatusCode != http.StatusNoContent {
		json.NewDecoder(resp.Body).Decode(&decoded)
	}
	return resp, decoded
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	resp, body := doJSON(t, http.MethodGet, srv.URL+"/v1/health", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", body["status"])
}

func TestCreateSession(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	resp, body := doJSON(t, http.MethodPost, srv.URL+"/v1/sessions/alpha",
		map[string]string{"agent": "mock", "agent_mode": "plan"})
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "alpha", body["id"])
	assert.Equal(t, "mock", body["agent"])
	assert.Equal(t, "plan", body["agent_mode"])

	// Duplicate id conflicts and leaves the original untouched.
	resp, _ = doJSON(t, http.MethodPost, srv.URL+"/v1/sessions/alpha", map[string]string{"agent": "mock"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	// Unknown agent is a validation error.
	resp, _ = doJSON(t, http.MethodPost, srv.URL+"/v1/sessions/beta", map[string]string{"agent": "hal9000"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, body = doJSON(t, http.MethodGet, srv.URL+"/v1/sessions", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	sessions := body["sessions"].([]any)
	require.Len(t, sessions, 1)
}

func TestMockFlowPollEvents(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	doJSON(t, http.MethodPost, srv.URL+"/v1/sessions/alpha", map[string]string{"agent": "mock"})

	resp, _ := doJSON(t, http.MethodPost, srv.URL+"/v1/sessions/alpha/messages", map[string]string{"message": "hello"})
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)

	// The mock agent answers and exits; poll until the terminal event.
	var events []any
	require.Eventually(t, func() bool {
		_, body := doJSON(t, http.MethodGet, srv.URL+"/v1/sessions/alpha/events", nil)
		events, _ = body["events"].([]any)
		return len(events) == 4
	}, 5*time.Second, 20*time.Millisecond)

	types := make([]string, 0, 4)
	for _, raw := range events {
		ev := raw.(map[string]any)
		types = append(types, ev["data"].(map[string]any)["type"].(string))
	}
	assert.Equal(t, []string{"message", "started", "message", "session_ended"}, types)

	// Offset polling returns only the tail.
	_, body := doJSON(t, http.MethodGet, srv.URL+"/v1/sessions/alpha/events?since=2", nil)
	tail := body["events"].([]any)
	require.Len(t, tail, 2)
	assert.Equal(t, float64(3), tail[0].(map[string]any)["id"])
	assert.Equal(t, float64(4), tail[1].(map[string]any)["id"])
	assert.Equal(t, float64(4), body["last_event_id"])

	// Sending to the ended session conflicts.
	resp, _ = doJSON(t, http.MethodPost, srv.URL+"/v1/sessions/alpha/messages", map[string]string{"message": "late"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestSendConflictWhileBusy(t *testing.T) {
	adapter := &scriptAdapter{}
	srv, _ := newTestServer(t, adapter)
	doJSON(t, http.MethodPost, srv.URL+"/v1/sessions/busy", map[string]string{"agent": "claude"})

	resp, _ := doJSON(t, http.MethodPost, srv.URL+"/v1/sessions/busy/messages", map[string]string{"message": "first"})
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)

	resp, _ = doJSON(t, http.MethodPost, srv.URL+"/v1/sessions/busy/messages", map[string]string{"message": "second"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestSendValidation(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	doJSON(t, http.MethodPost, srv.URL+"/v1/sessions/alpha", map[string]string{"agent": "mock"})

	resp, _ := doJSON(t, http.MethodPost, srv.URL+"/v1/sessions/alpha/messages", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = doJSON(t, http.MethodPost, srv.URL+"/v1/sessions/missing/messages", map[string]string{"message": "hi"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestQuestionReply(t *testing.T) {
	adapter := &scriptAdapter{}
	srv, reg := newTestServer(t, adapter)
	doJSON(t, http.MethodPost, srv.URL+"/v1/sessions/q", map[string]string{"agent": "claude"})

	sess, err := reg.Get("q")
	require.NoError(t, err)
	sess.Ingest(schema.Conversion{
		Data: schema.QuestionData{QuestionID: "q-1", Question: json.RawMessage(`"deploy?"`)},
		Question: &schema.QuestionRequest{ID: "q-1", NativeID: "native-1"},
	})

	resp, _ := doJSON(t, http.MethodPost, srv.URL+"/v1/sessions/q/questions/q-1/reply", map[string]string{"answer": "yes"})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, []string{"yes"}, adapter.recorded())

	// Second reply to the same pending id fails.
	resp, _ = doJSON(t, http.MethodPost, srv.URL+"/v1/sessions/q/questions/q-1/reply", map[string]string{"answer": "again"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Len(t, adapter.recorded(), 1, "agent saw the answer exactly once")
}

func TestPermissionReply(t *testing.T) {
	adapter := &scriptAdapter{}
	srv, reg := newTestServer(t, adapter)
	doJSON(t, http.MethodPost, srv.URL+"/v1/sessions/p", map[string]string{"agent": "claude"})

	sess, err := reg.Get("p")
	require.NoError(t, err)
	sess.Ingest(schema.Conversion{
		Data:       schema.PermissionData{PermissionID: "p-1", ToolName: "Bash"},
		Permission: &schema.PermissionRequest{ID: "p-1", NativeID: "native-2", ToolName: "Bash"},
	})

	resp, _ := doJSON(t, http.MethodPost, srv.URL+"/v1/sessions/p/permissions/p-1/reply", map[string]string{"decision": "maybe"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = doJSON(t, http.MethodPost, srv.URL+"/v1/sessions/p/permissions/p-1/reply", map[string]string{"decision": "allow"})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, []string{"allow"}, adapter.recorded())
}

func TestDeleteSession(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	doJSON(t, http.MethodPost, srv.URL+"/v1/sessions/gone", map[string]string{"agent": "mock"})

	resp, _ := doJSON(t, http.MethodDelete, srv.URL+"/v1/sessions/gone", nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, _ = doJSON(t, http.MethodGet, srv.URL+"/v1/sessions/gone/events", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestEventsSSE(t *testing.T) {
	adapter := &scriptAdapter{}
	srv, reg := newTestServer(t, adapter)
	doJSON(t, http.MethodPost, srv.URL+"/v1/sessions/stream", map[string]string{"agent": "claude"})

	sess, err := reg.Get("stream")
	require.NoError(t, err)
	sess.Ingest(schema.Conversion{Data: schema.MessageData{Message: schema.ParsedText("assistant", "early")}})

	resp, err := http.Get(srv.URL + "/v1/sessions/stream/events/sse?since=0")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	// Feed two live events and end the session while the stream is open.
	go func() {
		time.Sleep(50 * time.Millisecond)
		sess.Ingest(schema.Conversion{Data: schema.MessageData{Message: schema.ParsedText("assistant", "live")}})
		sess.End("client closed")
	}()

	scanner := sse.NewScanner(resp.Body)
	var frames []sse.Event
	for scanner.Next() {
		frames = append(frames, scanner.Event())
	}
	require.NoError(t, scanner.Err())

	require.Len(t, frames, 3, "backlog + live + terminal")
	assert.Equal(t, "message", frames[0].Type)
	assert.Equal(t, "message", frames[1].Type)
	assert.Equal(t, "session_ended", frames[2].Type)

	var ev schema.UniversalEvent
	require.NoError(t, json.Unmarshal([]byte(frames[0].Data), &ev))
	assert.Equal(t, int64(1), ev.ID)
	assert.Equal(t, "early", ev.Data.(schema.MessageData).Message.JoinedText())
}

func TestSendMessageStream(t *testing.T) {
	adapter := &scriptAdapter{}
	adapter.onSend = func(sink runtime.Sink, text string) {
		sink.Ingest(schema.Conversion{Data: schema.MessageData{
			Message: schema.ParsedText("assistant", "reply to "+text),
		}})
		sink.Ingest(schema.Conversion{TurnDone: true})
	}
	srv, _ := newTestServer(t, adapter)
	doJSON(t, http.MethodPost, srv.URL+"/v1/sessions/turn", map[string]string{"agent": "claude"})

	resp, err := http.Post(
		srv.URL+"/v1/sessions/turn/messages/stream",
		"application/json",
		strings.NewReader(`{"message":"ping"}`),
	)
	require.NoError(t, err)
	defer resp.Body.Close()

	scanner := sse.NewScanner(resp.Body)
	var texts []string
	for scanner.Next() {
		var ev schema.UniversalEvent
		require.NoError(t, json.Unmarshal([]byte(scanner.Event().Data), &ev))
		if m, ok := ev.Data.(schema.MessageData); ok {
			texts = append(texts, m.Message.JoinedText())
		}
	}
	require.NoError(t, scanner.Err())
	assert.Equal(t, []string{"ping", "reply to ping"}, texts,
		"stream carries the user message and the turn's output, then closes")
}

func TestEventsSinceValidation(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	doJSON(t, http.MethodPost, srv.URL+"/v1/sessions/alpha", map[string]string{"agent": "mock"})

	resp, _ := doJSON(t, http.MethodGet, srv.URL+"/v1/sessions/alpha/events?since=-3", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = doJSON(t, http.MethodGet, srv.URL+"/v1/sessions/alpha/events?since=abc", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
