package session

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/bazelment/agenthub/schema"
)

// DefaultStartupTimeout bounds how long adapter startup (process spawn,
// remote session creation) may take before the session is ended with an
// Error event.
const DefaultStartupTimeout = 30 * time.Second

// AdapterFactory builds the runtime adapter for a new session. The session
// is fully constructed but not yet started when the factory runs; adapters
// deliver output through s.Ingest and s.Exit.
type AdapterFactory func(s *Session, p Params) (Adapter, error)

// Registry is the concurrent session store. The registry lock only guards
// map membership; all per-session state lives behind each session's own
// lock, so operations on different sessions never contend.
type Registry struct {
	factory          AdapterFactory
	logger           *slog.Logger
	startupTimeout   time.Duration
	subscriberBuffer int

	mu       sync.Mutex
	sessions map[string]*Session
}

// RegistryOption customizes a Registry.
type RegistryOption func(*Registry)

// WithStartupTimeout overrides DefaultStartupTimeout.
func WithStartupTimeout(d time.Duration) RegistryOption {
	return func(r *Registry) {
		if d > 0 {
			r.startupTimeout = d
		}
	}
}

// WithSubscriberBuffer sets the default per-subscriber channel capacity for
// sessions that do not choose their own.
func WithSubscriberBuffer(n int) RegistryOption {
	return func(r *Registry) {
		if n > 0 {
			r.subscriberBuffer = n
		}
	}
}

// NewRegistry builds a registry that constructs adapters with factory.
func NewRegistry(factory AdapterFactory, logger *slog.Logger, opts ...RegistryOption) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Registry{
		factory:        factory,
		logger:         logger,
		startupTimeout: DefaultStartupTimeout,
		sessions:       make(map[string]*Session),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Create registers a new session under the caller-chosen id and starts its
// adapter. A duplicate id fails with ErrSessionExists and leaves the
// existing session untouched. Adapter startup failure does not fail the
// create: it is recorded as an Error event followed by session end, the same
// way a mid-session agent crash is.
func (r *Registry) Create(ctx context.Context, p Params) (*Session, error) {
	if p.ID == "" {
		return nil, fmt.Errorf("session id must not be empty")
	}
	if _, err := schema.ParseAgent(string(p.Agent)); err != nil {
		return nil, err
	}
	if p.SubscriberBuffer <= 0 {
		p.SubscriberBuffer = r.subscriberBuffer
	}

	s := newSession(p, r.logger)

	r.mu.Lock()
	if _, exists := r.sessions[p.ID]; exists {
		r.mu.Unlock()
		return nil, ErrSessionExists
	}
	r.sessions[p.ID] = s
	r.mu.Unlock()

	adapter, err := r.factory(s, p)
	if err != nil {
		r.remove(p.ID)
		return nil, fmt.Errorf("building adapter for agent %s: %w", p.Agent, err)
	}
	s.bindAdapter(adapter)

	startCtx, cancel := context.WithTimeout(ctx, r.startupTimeout)
	defer cancel()
	if err := adapter.Start(startCtx); err != nil {
		r.logger.Error("adapter startup failed", "session", p.ID, "error", err)
		s.Ingest(schema.Conversion{Data: schema.ErrorData{
			Message: err.Error(),
			Kind:    "agent_startup",
		}})
		s.End("agent startup failed")
		return s, nil
	}

	r.logger.Info("session created", "session", p.ID, "agent", p.Agent)
	return s, nil
}

// Get returns the session registered under id.
func (r *Registry) Get(id string) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// List returns a stable snapshot of all sessions ordered by creation time.
func (r *Registry) List() []Info {
	r.mu.Lock()
	sessions := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		sessions = append(sessions, s)
	}
	r.mu.Unlock()

	infos := make([]Info, 0, len(sessions))
	for _, s := range sessions {
		infos = append(infos, s.Info())
	}
	sort.Slice(infos, func(i, j int) bool {
		if infos[i].CreatedAt.Equal(infos[j].CreatedAt) {
			return infos[i].ID < infos[j].ID
		}
		return infos[i].CreatedAt.Before(infos[j].CreatedAt)
	})
	return infos
}

// Delete ends the session and removes it from the registry.
func (r *Registry) Delete(id string) error {
	s, err := r.Get(id)
	if err != nil {
		return err
	}
	s.End("deleted by client")
	r.remove(id)
	return nil
}

// Shutdown ends every session. Used on server shutdown.
func (r *Registry) Shutdown() {
	r.mu.Lock()
	sessions := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		sessions = append(sessions, s)
	}
	r.mu.Unlock()

	for _, s := range sessions {
		s.End("server shutting down")
	}
}

func (r *Registry) remove(id string) {
	r.mu.Lock()
	delete(r.sessions, id)
	r.mu.Unlock()
}
