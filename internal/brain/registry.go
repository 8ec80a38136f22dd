package brain

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Session is one live model conversation for an agent. At most one exists
// per agent at a time.
type Session struct {
	ID        string
	AgentID   string
	CreatedAt time.Time

	mu     sync.Mutex
	closed bool
}

// Close marks the session dead. Idempotent.
func (s *Session) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
}

// Closed reports whether the session has been torn down.
func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Registry enforces the one-live-session-per-agent rule and serializes
// turns per agent.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*Session
	locks    map[string]*sync.Mutex
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[string]*Session),
		locks:    make(map[string]*sync.Mutex),
	}
}

// Acquire takes the agent's turn lock and returns a fresh session,
// tearing down any session the agent already had. Callers must Release.
func (r *Registry) Acquire(agentID string) *Session {
	r.mu.Lock()
	lock, ok := r.locks[agentID]
	if !ok {
		lock = &sync.Mutex{}
		r.locks[agentID] = lock
	}
	r.mu.Unlock()

	lock.Lock()

	r.mu.Lock()
	defer r.mu.Unlock()
	if old, ok := r.sessions[agentID]; ok {
		old.Close()
	}
	sess := &Session{
		ID:        uuid.NewString(),
		AgentID:   agentID,
		CreatedAt: time.Now(),
	}
	r.sessions[agentID] = sess
	return sess
}

// Release drops the agent's live session and frees the turn lock.
func (r *Registry) Release(agentID string) {
	r.mu.Lock()
	if sess, ok := r.sessions[agentID]; ok {
		sess.Close()
		delete(r.sessions, agentID)
	}
	lock := r.locks[agentID]
	r.mu.Unlock()
	if lock != nil {
		lock.Unlock()
	}
}

// Live returns the agent's current session, or nil.
func (r *Registry) Live(agentID string) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sessions[agentID]
}
