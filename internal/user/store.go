package user

import (
	"context"
	"errors"
	"sync"
)

// ErrExists is returned by Store.Add when the user id is already taken.
var ErrExists = errors.New("user already exists")

// Store is the interface for identity persistence backends.
type Store interface {
	// Add stores a new user. It returns ErrExists if the id is taken.
	Add(ctx context.Context, u *User) error
	// Get returns the user with the given id, or nil if not found.
	Get(ctx context.Context, id string) (*User, error)
}

// MemoryStore keeps users in a map keyed by user id.
type MemoryStore struct {
	mu    sync.RWMutex
	users map[string]*User
}

// NewMemoryStore creates an empty in-memory user store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users: make(map[string]*User),
	}
}

func (s *MemoryStore) Add(_ context.Context, u *User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[u.ID]; ok {
		return ErrExists
	}
	cp := *u
	s.users[u.ID] = &cp
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}

// Count returns the number of users.
func (s *MemoryStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.users)
}
