// Package server exposes the session manager over HTTP under /v1. Clients
// create sessions, send messages, poll or stream events, and answer the
// questions and permission prompts agents raise.
package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/bazelment/agenthub/schema"
	"github.com/bazelment/agenthub/session"
)

// Server is the HTTP surface over a session registry.
type Server struct {
	registry *session.Registry
	logger   *slog.Logger
	mux      *http.ServeMux
}

// NewServer builds the server and registers its routes.
func NewServer(registry *session.Registry, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		registry: registry,
		logger:   logger,
		mux:      http.NewServeMux(),
	}
	s.mux.HandleFunc("GET /v1/health", s.handleHealth)
	s.mux.HandleFunc("GET /v1/sessions", s.handleListSessions)
	s.mux.HandleFunc("POST /v1/sessions/{id}", s.handleCreateSession)
	s.mux.HandleFunc("DELETE /v1/sessions/{id}", s.handleDeleteSession)
	s.mux.HandleFunc("POST /v1/sessions/{id}/messages", s.handleSendMessage)
	s.mux.HandleFunc("POST /v1/sessions/{id}/messages/stream", s.handleSendMessageStream)
	s.mux.HandleFunc("GET /v1/sessions/{id}/events", s.handleEvents)
	s.mux.HandleFunc("GET /v1/sessions/{id}/events/sse", s.handleEventsSSE)
	s.mux.HandleFunc("POST /v1/sessions/{id}/questions/{qid}/reply", s.handleQuestionReply)
	s.mux.HandleFunc("POST /v1/sessions/{id}/permissions/{pid}/reply", s.handlePermissionReply)
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// createSessionRequest is the JSON body for POST /v1/sessions/{id}.
type createSessionRequest struct {
	Agent          string `json:"agent"`
	AgentMode      string `json:"agent_mode,omitempty"`
	Model          string `json:"model,omitempty"`
	PermissionMode string `json:"permission_mode,omitempty"`
	WorkDir        string `json:"workdir,omitempty"`
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	agent, err := schema.ParseAgent(req.Agent)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	sess, err := s.registry.Create(r.Context(), session.Params{
		ID:             r.PathValue("id"),
		Agent:          agent,
		AgentMode:      req.AgentMode,
		Model:          req.Model,
		PermissionMode: req.PermissionMode,
		WorkDir:        req.WorkDir,
	})
	if err != nil {
		s.writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, sess.Info())
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"sessions": s.registry.List()})
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := s.registry.Delete(r.PathValue("id")); err != nil {
		s.writeSessionError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// sendMessageRequest is the JSON body for message sends.
type sendMessageRequest struct {
	Message string `json:"message"`
}

func (s *Server) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	sess, req, ok := s.sessionAndMessage(w, r)
	if !ok {
		return
	}
	if err := sess.Send(r.Context(), req.Message); err != nil {
		s.writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

// questionReplyRequest is the JSON body for question replies.
type questionReplyRequest struct {
	Answer string `json:"answer"`
}

func (s *Server) handleQuestionReply(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	var req questionReplyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := sess.ReplyQuestion(r.Context(), r.PathValue("qid"), req.Answer); err != nil {
		s.writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "replied"})
}

// permissionReplyRequest is the JSON body for permission replies.
type permissionReplyRequest struct {
	Decision string `json:"decision"`
}

func (s *Server) handlePermissionReply(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	var req permissionReplyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Decision != "allow" && req.Decision != "deny" {
		writeError(w, http.StatusBadRequest, `decision must be "allow" or "deny"`)
		return
	}
	if err := sess.ReplyPermission(r.Context(), r.PathValue("pid"), req.Decision); err != nil {
		s.writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "replied"})
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	since, err := sinceParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	events := sess.EventsSince(since)
	last := since
	if n := len(events); n > 0 {
		last = events[n-1].ID
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"events":        events,
		"last_event_id": last,
	})
}

func (s *Server) session(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	sess, err := s.registry.Get(r.PathValue("id"))
	if err != nil {
		s.writeSessionError(w, err)
		return nil, false
	}
	return sess, true
}

func (s *Server) sessionAndMessage(w http.ResponseWriter, r *http.Request) (*session.Session, sendMessageRequest, bool) {
	sess, ok := s.session(w, r)
	if !ok {
		return nil, sendMessageRequest{}, false
	}
	var req sendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return nil, sendMessageRequest{}, false
	}
	if req.Message == "" {
		writeError(w, http.StatusBadRequest, "message is required")
		return nil, sendMessageRequest{}, false
	}
	return sess, req, true
}

// writeSessionError maps session errors onto the HTTP taxonomy: lookups to
// 404, conflicts to 409, everything else to 400.
func (s *Server) writeSessionError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, session.ErrSessionNotFound), errors.Is(err, session.ErrPendingNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, session.ErrSessionExists),
		errors.Is(err, session.ErrSendInFlight),
		errors.Is(err, session.ErrSessionStarting),
		errors.Is(err, session.ErrSessionEnded):
		writeError(w, http.StatusConflict, err.Error())
	default:
		writeError(w, http.StatusBadRequest, err.Error())
	}
}

func sinceParam(r *http.Request) (int64, error) {
	raw := r.URL.Query().Get("since")
	if raw == "" {
		return 0, nil
	}
	since, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || since < 0 {
		return 0, errors.New("since must be a non-negative integer")
	}
	return since, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
