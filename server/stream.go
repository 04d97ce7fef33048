package server

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/bazelment/agenthub/schema"
)

// handleEventsSSE pushes events over Server-Sent Events: the backlog after
// ?since=N first, then live events as they are appended. The stream ends
// when the session does, when the client disconnects, or when the
// subscriber lags; a lagged client gets an explicit comment frame and is
// expected to repoll with ?since=.
func (s *Server) handleEventsSSE(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	since, err := sinceParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	flusher.Flush()

	backlog, sub := sess.Subscribe(since)
	defer sess.Unsubscribe(sub)

	for _, ev := range backlog {
		if !writeEventFrame(w, flusher, ev) {
			return
		}
		if ev.Data.EventType() == schema.EventTypeSessionEnded {
			return
		}
	}

	for {
		select {
		case ev, open := <-sub.Events():
			if !open {
				return
			}
			if !writeEventFrame(w, flusher, ev) {
				return
			}
			if ev.Data.EventType() == schema.EventTypeSessionEnded {
				return
			}
		case <-sub.Lagged():
			// Drain what was buffered before the overflow, then tell
			// the client to recover by polling.
			for ev := range sub.Events() {
				if !writeEventFrame(w, flusher, ev) {
					return
				}
			}
			fmt.Fprint(w, ": lagged, repoll /events?since= to recover\n\n")
			flusher.Flush()
			return
		case <-r.Context().Done():
			return
		}
	}
}

// handleSendMessageStream accepts a message and streams the events it
// causes until the agent's turn completes or the session ends. It is the
// send endpoint and the SSE feed fused into one request.
func (s *Server) handleSendMessageStream(w http.ResponseWriter, r *http.Request) {
	sess, req, ok := s.sessionAndMessage(w, r)
	if !ok {
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	// Subscribe from the current tail before sending so the user Message
	// event and everything after it is observed exactly once.
	backlog, sub := sess.Subscribe(sess.Info().LastEventID)
	defer sess.Unsubscribe(sub)

	if err := sess.Send(r.Context(), req.Message); err != nil {
		s.writeSessionError(w, err)
		return
	}
	done := sess.TurnComplete()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	flusher.Flush()

	for _, ev := range backlog {
		if !writeEventFrame(w, flusher, ev) {
			return
		}
	}

	for {
		select {
		case ev, open := <-sub.Events():
			if !open {
				return
			}
			if !writeEventFrame(w, flusher, ev) {
				return
			}
			if ev.Data.EventType() == schema.EventTypeSessionEnded {
				return
			}
		case <-done:
			// The turn is over; flush anything already buffered and
			// close the stream.
			for {
				select {
				case ev, open := <-sub.Events():
					if !open {
						return
					}
					if !writeEventFrame(w, flusher, ev) {
						return
					}
				default:
					return
				}
			}
		case <-sub.Lagged():
			fmt.Fprint(w, ": lagged, repoll /events?since= to recover\n\n")
			flusher.Flush()
			return
		case <-r.Context().Done():
			return
		}
	}
}

// writeEventFrame writes one event as an SSE frame named after its type.
// Returns false when the write fails (client gone).
func writeEventFrame(w http.ResponseWriter, flusher http.Flusher, ev schema.UniversalEvent) bool {
	payload, err := json.Marshal(ev)
	if err != nil {
		return false
	}
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Data.EventType(), payload); err != nil {
		return false
	}
	flusher.Flush()
	return true
}
