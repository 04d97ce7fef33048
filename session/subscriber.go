package session

import "github.com/bazelment/agenthub/schema"

// DefaultSubscriberBuffer is the per-subscriber channel capacity used when a
// session is created without an explicit buffer size.
const DefaultSubscriberBuffer = 64

// Subscriber is a live attachment to a session's event stream. Events arrive
// on Events in append order. If the consumer falls behind by more than the
// buffer size, Lagged is closed, Events is closed, and the consumer must
// recover missed events with EventsSince.
type Subscriber struct {
	events chan schema.UniversalEvent
	lagged chan struct{}
	closed bool
}

func newSubscriber(buffer int) *Subscriber {
	return &Subscriber{
		events: make(chan schema.UniversalEvent, buffer),
		lagged: make(chan struct{}),
	}
}

// Events delivers live events. The channel closes when the session ends, the
// subscriber is closed, or the subscriber lags.
func (s *Subscriber) Events() <-chan schema.UniversalEvent { return s.events }

// Lagged is closed when the subscriber could not keep up and was detached.
func (s *Subscriber) Lagged() <-chan struct{} { return s.lagged }

// detach closes the event channel. Caller holds the session lock.
func (s *Subscriber) detach() {
	if !s.closed {
		s.closed = true
		close(s.events)
	}
}

// markLagged signals lag and detaches. Caller holds the session lock.
func (s *Subscriber) markLagged() {
	close(s.lagged)
	s.detach()
}
