package session

import (
	"encoding/json"
	"time"
)

// PendingKind distinguishes the two interaction types an agent may block on.
type PendingKind string

const (
	PendingQuestion   PendingKind = "question"
	PendingPermission PendingKind = "permission"
)

// PendingState tracks the lifecycle of a pending entry.
type PendingState string

const (
	PendingOpen      PendingState = "open"
	PendingResolved  PendingState = "resolved"
	PendingDiscarded PendingState = "discarded"
)

// Pending is an unanswered question or permission request raised by the
// agent. The public ID is what clients reply to; NativeID is the agent's own
// correlation id and never leaves the server except inside the raw payload.
type Pending struct {
	ID        string          `json:"id"`
	Kind      PendingKind     `json:"kind"`
	NativeID  string          `json:"-"`
	ToolName  string          `json:"tool_name,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	EventID   int64           `json:"event_id"`
	State     PendingState    `json:"state"`
	CreatedAt time.Time       `json:"created_at"`
}

// pendingSet holds a session's pending entries. All access goes through the
// owning session's mutex.
type pendingSet struct {
	byID  map[string]*Pending
	order []string
}

func newPendingSet() *pendingSet {
	return &pendingSet{byID: make(map[string]*Pending)}
}

func (p *pendingSet) add(e *Pending) {
	p.byID[e.ID] = e
	p.order = append(p.order, e.ID)
}

// open returns the entry iff it exists and is still open.
func (p *pendingSet) open(id string) (*Pending, bool) {
	e, ok := p.byID[id]
	if !ok || e.State != PendingOpen {
		return nil, false
	}
	return e, true
}

// discardOpen marks every open entry discarded. Called when the session ends.
func (p *pendingSet) discardOpen() {
	for _, e := range p.byID {
		if e.State == PendingOpen {
			e.State = PendingDiscarded
		}
	}
}

// snapshot returns open entries in creation order.
func (p *pendingSet) snapshot() []Pending {
	out := make([]Pending, 0, len(p.order))
	for _, id := range p.order {
		if e := p.byID[id]; e.State == PendingOpen {
			out = append(out, *e)
		}
	}
	return out
}
