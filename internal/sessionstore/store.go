// Package sessionstore is an in-process, ephemeral session store keyed by
// session id. Per spec §1's Non-goals, there is no durable persistence —
// sessions live until cleared or the process exits.
package sessionstore

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/forgewell/agentrt/internal/model"
)

// Store is the in-process session map, guarded by a single mutex the way
// the reference in-memory session store is.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*model.SessionMemory

	locksMu sync.Mutex
	locks   map[string]*sessionLock
}

type sessionLock struct {
	mu       sync.Mutex
	refCount int
}

// New creates an empty store.
func New() *Store {
	return &Store{
		sessions: make(map[string]*model.SessionMemory),
		locks:    make(map[string]*sessionLock),
	}
}

func cloneSession(s *model.SessionMemory) *model.SessionMemory {
	if s == nil {
		return nil
	}
	clone := *s
	clone.Messages = append([]model.AgentMessage(nil), s.Messages...)
	clone.Variables = cloneVars(s.Variables)
	return &clone
}

func cloneVars(vars map[string]any) map[string]any {
	if vars == nil {
		return nil
	}
	out := make(map[string]any, len(vars))
	for k, v := range vars {
		out[k] = v
	}
	return out
}

// Create allocates a new session under a freshly generated id.
func (s *Store) Create(userID string, role model.Role) *model.SessionMemory {
	now := time.Now()
	session := &model.SessionMemory{
		SessionID: uuid.NewString(),
		UserID:    userID,
		Role:      role,
		Variables: map[string]any{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.mu.Lock()
	s.sessions[session.SessionID] = session
	s.mu.Unlock()
	return cloneSession(session)
}

// Get returns a defensive copy of the session, or an error if absent.
func (s *Store) Get(id string) (*model.SessionMemory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[id]
	if !ok {
		return nil, fmt.Errorf("session not found: %s", id)
	}
	return cloneSession(session), nil
}

// GetOrCreate returns the existing session for id, or creates one (with a
// fresh id if id is empty) when absent.
func (s *Store) GetOrCreate(id, userID string, role model.Role) *model.SessionMemory {
	s.mu.Lock()
	if id != "" {
		if session, ok := s.sessions[id]; ok {
			s.mu.Unlock()
			return cloneSession(session)
		}
	}
	now := time.Now()
	sessionID := id
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	session := &model.SessionMemory{
		SessionID: sessionID,
		UserID:    userID,
		Role:      role,
		Variables: map[string]any{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.sessions[sessionID] = session
	s.mu.Unlock()
	return cloneSession(session)
}

// Clear removes a session entirely.
func (s *Store) Clear(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[id]; !ok {
		return fmt.Errorf("session not found: %s", id)
	}
	delete(s.sessions, id)
	return nil
}

// List returns a defensive copy of every session.
func (s *Store) List() []*model.SessionMemory {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*model.SessionMemory, 0, len(s.sessions))
	for _, session := range s.sessions {
		out = append(out, cloneSession(session))
	}
	return out
}

// SetVariable stores a session-scoped variable.
func (s *Store) SetVariable(id, key string, value any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[id]
	if !ok {
		return fmt.Errorf("session not found: %s", id)
	}
	if session.Variables == nil {
		session.Variables = map[string]any{}
	}
	session.Variables[key] = value
	session.UpdatedAt = time.Now()
	return nil
}

// AppendMessage appends one message to a session's history, enforcing the
// append-only and monotonic-UpdatedAt invariants from spec §3.
func (s *Store) AppendMessage(id string, msg model.AgentMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[id]
	if !ok {
		return fmt.Errorf("session not found: %s", id)
	}
	session.Messages = append(session.Messages, msg)
	now := time.Now()
	if now.After(session.UpdatedAt) {
		session.UpdatedAt = now
	}
	return nil
}

// History returns the last limit messages (all of them if limit<=0).
func (s *Store) History(id string, limit int) ([]model.AgentMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[id]
	if !ok {
		return nil, fmt.Errorf("session not found: %s", id)
	}
	messages := session.Messages
	start := 0
	if limit > 0 && len(messages) > limit {
		start = len(messages) - limit
	}
	out := make([]model.AgentMessage, len(messages)-start)
	copy(out, messages[start:])
	return out, nil
}

// HistorySummary computes the cheap aggregate view from spec §4.6.
func (s *Store) HistorySummary(id string) (model.HistorySummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[id]
	if !ok {
		return model.HistorySummary{}, fmt.Errorf("session not found: %s", id)
	}
	toolCalls := 0
	for _, m := range session.Messages {
		toolCalls += len(m.ToolCalls)
	}
	return model.HistorySummary{
		MessageCount:  len(session.Messages),
		ToolCallCount: toolCalls,
		LastActivity:  session.UpdatedAt,
	}, nil
}

// Lock serializes run() calls against the same session id, per spec §5's
// "a per-session mutex around run() satisfies the invariant". The lock is
// reference-counted and removed once unreferenced.
func (s *Store) Lock(id string) func() {
	s.locksMu.Lock()
	lock, ok := s.locks[id]
	if !ok {
		lock = &sessionLock{}
		s.locks[id] = lock
	}
	lock.refCount++
	s.locksMu.Unlock()

	lock.mu.Lock()
	return func() {
		lock.mu.Unlock()
		s.locksMu.Lock()
		lock.refCount--
		if lock.refCount == 0 {
			delete(s.locks, id)
		}
		s.locksMu.Unlock()
	}
}
