package estimate

import (
	"context"
	"errors"
	"sync"
)

// ErrExists is returned by Store.Create when the session id is taken.
var ErrExists = errors.New("session already exists")

// Store is the interface for session persistence backends. Implementations
// must not hand out references to their internal state: callers mutate what
// Get returns and write it back with Put.
type Store interface {
	// Create stores a new session. It returns ErrExists if the id is taken.
	Create(ctx context.Context, s *Session) error
	// Get returns the session with the given id, or nil if not found.
	Get(ctx context.Context, id string) (*Session, error)
	// Put overwrites an existing session.
	Put(ctx context.Context, s *Session) error
	// Delete removes a session, reporting whether it existed.
	Delete(ctx context.Context, id string) (bool, error)
}

// MemoryStore keeps sessions in memory.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewMemoryStore creates an empty in-memory session store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]*Session),
	}
}

func (m *MemoryStore) Create(_ context.Context, s *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[s.ID]; ok {
		return ErrExists
	}
	m.sessions[s.ID] = s.Clone()
	return nil
}

func (m *MemoryStore) Get(_ context.Context, id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, nil
	}
	return s.Clone(), nil
}

func (m *MemoryStore) Put(_ context.Context, s *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.ID] = s.Clone()
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.sessions[id]
	delete(m.sessions, id)
	return ok, nil
}

// Count returns the number of stored sessions.
func (m *MemoryStore) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}
