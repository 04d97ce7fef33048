// Package session implements the concurrent session registry and the
// per-session event log that all agent output flows through. Every event a
// session records gets a gapless, monotonically increasing id starting at 1,
// and appending, reading, and subscribing are linearized under a per-session
// lock so that no subscriber can miss or duplicate an event across the
// catch-up/live boundary.
package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/bazelment/agenthub/schema"
)

// Adapter is the session's handle on agent I/O. Subprocess, proxy, and mock
// runtimes all implement it; the session never knows which kind it has.
type Adapter interface {
	// Start brings up the underlying agent (spawn a process, create a
	// remote session). It is called once, before any Send.
	Start(ctx context.Context) error
	// Send forwards one user message to the agent.
	Send(ctx context.Context, text string) error
	// ReplyQuestion forwards the answer to a pending question.
	ReplyQuestion(ctx context.Context, p Pending, answer string) error
	// ReplyPermission forwards an allow/deny decision for a pending
	// permission request.
	ReplyPermission(ctx context.Context, p Pending, decision string) error
	// Stop tears the agent down. It must be safe to call more than once
	// and from the adapter's own reader goroutine.
	Stop()
}

// Params carries the caller-supplied configuration for a new session.
type Params struct {
	ID             string
	Agent          schema.Agent
	AgentMode      string
	Model          string
	PermissionMode string
	WorkDir        string

	// SubscriberBuffer overrides DefaultSubscriberBuffer when positive.
	SubscriberBuffer int
}

// Info is a point-in-time summary of a session, used by the list endpoint.
type Info struct {
	ID             string       `json:"id"`
	Agent          schema.Agent `json:"agent"`
	AgentMode      string       `json:"agent_mode,omitempty"`
	Model          string       `json:"model,omitempty"`
	PermissionMode string       `json:"permission_mode,omitempty"`
	CreatedAt      time.Time   `json:"created_at"`
	Ended          bool        `json:"ended"`
	EndReason      string      `json:"end_reason,omitempty"`
	LastEventID    int64       `json:"last_event_id"`
	PendingCount   int         `json:"pending_count"`
}

// Session owns one agent conversation: its event log, its live subscribers,
// its pending questions and permissions, and the adapter driving the agent.
type Session struct {
	id        string
	agent     schema.Agent
	params    Params
	createdAt time.Time
	buffer    int
	logger    *slog.Logger

	mu        sync.Mutex
	events    []schema.UniversalEvent
	subs      map[*Subscriber]struct{}
	pending   *pendingSet
	adapter   Adapter
	sending   bool
	sendDone  chan struct{}
	ended     bool
	endReason string
}

var closedChan = func() chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}()

func newSession(p Params, logger *slog.Logger) *Session {
	buffer := p.SubscriberBuffer
	if buffer <= 0 {
		buffer = DefaultSubscriberBuffer
	}
	return &Session{
		id:        p.ID,
		agent:     p.Agent,
		params:    p,
		createdAt: time.Now().UTC(),
		buffer:    buffer,
		logger:    logger.With("session", p.ID, "agent", p.Agent),
		subs:      make(map[*Subscriber]struct{}),
		pending:   newPendingSet(),
	}
}

// ID returns the caller-chosen session id.
func (s *Session) ID() string { return s.id }

// Agent returns the session's agent family.
func (s *Session) Agent() schema.Agent { return s.agent }

// Params returns the creation parameters.
func (s *Session) Params() Params { return s.params }

// Ended reports whether the session has recorded its terminal event.
func (s *Session) Ended() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ended
}

// Info returns a snapshot summary.
func (s *Session) Info() Info {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Info{
		ID:             s.id,
		Agent:          s.agent,
		AgentMode:      s.params.AgentMode,
		Model:          s.params.Model,
		PermissionMode: s.params.PermissionMode,
		CreatedAt:      s.createdAt,
		Ended:          s.ended,
		EndReason:      s.endReason,
		LastEventID:    int64(len(s.events)),
		PendingCount:   len(s.pending.snapshot()),
	}
}

// bindAdapter attaches the runtime adapter. The registry calls it once
// after inserting the session; Send rejects until it has run.
func (s *Session) bindAdapter(a Adapter) {
	s.mu.Lock()
	s.adapter = a
	s.mu.Unlock()
}

// appendLocked assigns the next event id, stores the event, and fans it out
// to live subscribers. Caller holds s.mu.
func (s *Session) appendLocked(data schema.EventData) int64 {
	id := int64(len(s.events)) + 1
	ev := schema.UniversalEvent{
		ID:        id,
		Timestamp: time.Now().UTC(),
		SessionID: s.id,
		Agent:     s.agent,
		Data:      data,
	}
	s.events = append(s.events, ev)
	for sub := range s.subs {
		select {
		case sub.events <- ev:
		default:
			// Slow consumer: detach it rather than block the session.
			sub.markLagged()
			delete(s.subs, sub)
			s.logger.Warn("subscriber lagged, detached", "event_id", id)
		}
	}
	return id
}

// Ingest records the outcome of converting one line of agent output. A nil
// Data with no pending registration and no turn signal is a no-op. Events
// arriving after the session ended are dropped.
func (s *Session) Ingest(conv schema.Conversion) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ended {
		if conv.Data != nil {
			s.logger.Debug("dropping event after session end", "type", conv.Data.EventType())
		}
		return
	}
	var eventID int64
	if conv.Data != nil {
		eventID = s.appendLocked(conv.Data)
	}
	if q := conv.Question; q != nil {
		s.pending.add(&Pending{
			ID:        q.ID,
			Kind:      PendingQuestion,
			NativeID:  q.NativeID,
			Payload:   q.Payload,
			EventID:   eventID,
			State:     PendingOpen,
			CreatedAt: time.Now().UTC(),
		})
	}
	if p := conv.Permission; p != nil {
		s.pending.add(&Pending{
			ID:        p.ID,
			Kind:      PendingPermission,
			NativeID:  p.NativeID,
			ToolName:  p.ToolName,
			Payload:   p.Payload,
			EventID:   eventID,
			State:     PendingOpen,
			CreatedAt: time.Now().UTC(),
		})
	}
	if conv.TurnDone {
		s.finishSendLocked()
	}
}

// finishSendLocked releases the send slot and wakes anyone waiting on the
// turn. Caller holds s.mu.
func (s *Session) finishSendLocked() {
	s.sending = false
	if s.sendDone != nil {
		close(s.sendDone)
		s.sendDone = nil
	}
}

// TurnComplete returns a channel that closes when the in-flight send's turn
// completes or the session ends. With no send in flight the returned
// channel is already closed.
func (s *Session) TurnComplete() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.sending || s.sendDone == nil {
		return closedChan
	}
	return s.sendDone
}

// Send records the user message as an event and forwards it to the agent.
// At most one send may be in flight; a second concurrent send fails with
// ErrSendInFlight until the agent signals the turn is done.
func (s *Session) Send(ctx context.Context, text string) error {
	s.mu.Lock()
	if s.ended {
		s.mu.Unlock()
		return ErrSessionEnded
	}
	if s.sending {
		s.mu.Unlock()
		return ErrSendInFlight
	}
	if s.adapter == nil {
		s.mu.Unlock()
		return ErrSessionStarting
	}
	s.sending = true
	s.sendDone = make(chan struct{})
	s.appendLocked(schema.MessageData{Message: schema.ParsedText("user", text)})
	adapter := s.adapter
	s.mu.Unlock()

	// The forward outlives the caller: an HTTP handler returns 202 and its
	// request context is canceled while the agent is still receiving the
	// message. Keep the caller's values but not its cancellation.
	sendCtx := context.WithoutCancel(ctx)
	go func() {
		if err := adapter.Send(sendCtx, text); err != nil {
			s.logger.Error("forwarding message to agent failed", "error", err)
			s.Ingest(schema.Conversion{Data: schema.ErrorData{
				Message: err.Error(),
				Kind:    "agent_process",
			}})
			s.End("agent error")
		}
	}()
	return nil
}

// ReplyQuestion resolves a pending question and forwards the answer. The
// entry is marked resolved before forwarding, so the agent sees the answer
// at most once even under concurrent replies.
func (s *Session) ReplyQuestion(ctx context.Context, pendingID, answer string) error {
	entry, adapter, err := s.resolve(pendingID, PendingQuestion)
	if err != nil {
		return err
	}
	return adapter.ReplyQuestion(ctx, entry, answer)
}

// ReplyPermission resolves a pending permission request and forwards the
// allow/deny decision.
func (s *Session) ReplyPermission(ctx context.Context, pendingID, decision string) error {
	entry, adapter, err := s.resolve(pendingID, PendingPermission)
	if err != nil {
		return err
	}
	return adapter.ReplyPermission(ctx, entry, decision)
}

func (s *Session) resolve(pendingID string, kind PendingKind) (Pending, Adapter, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.pending.open(pendingID)
	if !ok || e.Kind != kind {
		return Pending{}, nil, ErrPendingNotFound
	}
	e.State = PendingResolved
	return *e, s.adapter, nil
}

// Pendings returns the open pending entries in creation order.
func (s *Session) Pendings() []Pending {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending.snapshot()
}

// EventsSince returns every stored event with id greater than since. A since
// of 0 reads the whole log.
func (s *Session) EventsSince(since int64) []schema.UniversalEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.eventsSinceLocked(since)
}

func (s *Session) eventsSinceLocked(since int64) []schema.UniversalEvent {
	if since < 0 {
		since = 0
	}
	if since >= int64(len(s.events)) {
		return nil
	}
	out := make([]schema.UniversalEvent, int64(len(s.events))-since)
	copy(out, s.events[since:])
	return out
}

// Subscribe atomically reads the backlog after since and attaches a live
// subscriber, so the caller observes every event exactly once in order. If
// the session has already ended, the returned subscriber's channel is
// already closed and the backlog includes the terminal event.
func (s *Session) Subscribe(since int64) ([]schema.UniversalEvent, *Subscriber) {
	s.mu.Lock()
	defer s.mu.Unlock()
	backlog := s.eventsSinceLocked(since)
	sub := newSubscriber(s.buffer)
	if s.ended {
		sub.detach()
	} else {
		s.subs[sub] = struct{}{}
	}
	return backlog, sub
}

// Unsubscribe detaches a live subscriber. Safe to call after the session
// ended or the subscriber lagged.
func (s *Session) Unsubscribe(sub *Subscriber) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.subs[sub]; ok {
		delete(s.subs, sub)
		sub.detach()
	}
}

// End appends the terminal event, discards open pendings, closes all
// subscribers, and stops the adapter. Idempotent; only the first reason is
// recorded.
func (s *Session) End(reason string) {
	s.mu.Lock()
	if s.ended {
		s.mu.Unlock()
		return
	}
	s.ended = true
	s.endReason = reason
	s.finishSendLocked()
	s.appendLocked(schema.SessionEndedData{Reason: reason})
	s.pending.discardOpen()
	for sub := range s.subs {
		sub.detach()
		delete(s.subs, sub)
	}
	adapter := s.adapter
	s.mu.Unlock()

	s.logger.Info("session ended", "reason", reason)
	if adapter != nil {
		adapter.Stop()
	}
}

// Exit is called by the adapter when the agent terminates on its own. A
// non-nil error is recorded as an Error event before the terminal event.
func (s *Session) Exit(err error) {
	if err != nil {
		s.Ingest(schema.Conversion{Data: schema.ErrorData{
			Message: err.Error(),
			Kind:    "agent_process",
		}})
		s.End("agent error")
		return
	}
	s.End("agent exited")
}
