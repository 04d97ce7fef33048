package runtime

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

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

// The mock agent's scripted exchange: one user message in, a started note
// and an echoed reply out, then a clean session end.
func TestMockAgentExchange(t *testing.T) {
	reg := session.NewRegistry(NewFactory(Config{}, testLogger(t)), testLogger(t))
	s, err := reg.Create(context.Background(), session.Params{ID: "demo", Agent: schema.AgentMock})
	require.NoError(t, err)

	require.NoError(t, s.Send(context.Background(), "hello"))
	require.Eventually(t, s.Ended, 5*time.Second, 10*time.Millisecond)

	events := s.EventsSince(0)
	require.Len(t, events, 4)

	user := events[0].Data.(schema.MessageData)
	assert.Equal(t, "user", user.Message.Parsed.Role)
	assert.Equal(t, "hello", user.Message.JoinedText())

	_, ok := events[1].Data.(schema.StartedData)
	assert.True(t, ok)

	echo := events[2].Data.(schema.MessageData)
	assert.Equal(t, "assistant", echo.Message.Parsed.Role)
	assert.Equal(t, "echo: hello", echo.Message.JoinedText())

	ended, ok := events[3].Data.(schema.SessionEndedData)
	require.True(t, ok)
	assert.Equal(t, "agent exited", ended.Reason)

	// Polling with since=2 returns exactly the tail.
	tail := s.EventsSince(2)
	require.Len(t, tail, 2)
	assert.Equal(t, int64(3), tail[0].ID)
	assert.Equal(t, int64(4), tail[1].ID)
}

func TestMockAdapterRejectsReplies(t *testing.T) {
	a := newMockAdapter(newRecordSink())
	assert.Error(t, a.ReplyQuestion(context.Background(), session.Pending{}, "yes"))
	assert.Error(t, a.ReplyPermission(context.Background(), session.Pending{}, "allow"))
}
