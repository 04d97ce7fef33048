package runtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/bazelment/agenthub/internal/sse"
	"github.com/bazelment/agenthub/opencode"
	"github.com/bazelment/agenthub/schema"
	"github.com/bazelment/agenthub/session"
)

// proxyAdapter drives a session living on a remote OpenCode server. No
// subprocess is spawned: Start creates the backend session and attaches to
// the server's shared SSE event feed, filtering frames down to the one
// backend session this adapter owns.
type proxyAdapter struct {
	client *opencode.Client
	sink   Sink
	logger *slog.Logger
	mode   string

	mu       sync.Mutex
	remoteID string
	cancel   context.CancelFunc
}

func newProxyAdapter(client *opencode.Client, sink Sink, mode string, logger *slog.Logger) *proxyAdapter {
	return &proxyAdapter{
		client: client,
		sink:   sink,
		logger: logger.With("agent", schema.AgentOpenCode),
		mode:   mode,
	}
}

// Start creates the backend session and begins streaming its events.
func (a *proxyAdapter) Start(ctx context.Context) error {
	remote, err := a.client.CreateSession(ctx)
	if err != nil {
		return err
	}

	streamCtx, cancel := context.WithCancel(context.Background())
	body, err := a.client.Events(streamCtx)
	if err != nil {
		cancel()
		return err
	}

	a.mu.Lock()
	a.remoteID = remote.ID
	a.cancel = cancel
	a.mu.Unlock()

	details, _ := json.Marshal(remote)
	a.sink.Ingest(schema.Conversion{Data: schema.StartedData{
		Message: "opencode session created",
		Details: details,
	}})
	a.logger.Info("backend session created", "remote_id", remote.ID)

	go func() {
		defer body.Close()
		scanner := sse.NewScanner(body)
		for scanner.Next() {
			ev := scanner.Event()
			if len(ev.Data) == 0 {
				continue
			}
			data := []byte(ev.Data)
			if opencode.SessionID(data) != remote.ID {
				continue
			}
			a.sink.Ingest(opencode.Convert(data))
		}
		if err := scanner.Err(); err != nil && streamCtx.Err() == nil {
			a.sink.Exit(fmt.Errorf("backend event stream: %w", err))
			return
		}
		a.sink.Exit(nil)
	}()
	return nil
}

// Send forwards one user message to the backend session.
func (a *proxyAdapter) Send(ctx context.Context, text string) error {
	return a.client.SendMessage(ctx, a.remote(), text, a.mode)
}

// ReplyQuestion is unsupported: the backend has no question channel.
func (a *proxyAdapter) ReplyQuestion(ctx context.Context, p session.Pending, answer string) error {
	return fmt.Errorf("agent %s does not ask questions", schema.AgentOpenCode)
}

// ReplyPermission answers a backend permission prompt.
func (a *proxyAdapter) ReplyPermission(ctx context.Context, p session.Pending, decision string) error {
	return a.client.ReplyPermission(ctx, a.remote(), p.NativeID, decision)
}

// Stop tears down the event stream. The backend session is left in place;
// the backend owns its lifecycle.
func (a *proxyAdapter) Stop() {
	a.mu.Lock()
	cancel := a.cancel
	a.cancel = nil
	a.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

func (a *proxyAdapter) remote() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.remoteID
}
