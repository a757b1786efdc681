package estimate

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/scottschroeder/storyestimate/internal/apperr"
)

// idLength is the number of lowercase letters in a session id.
const idLength = 5

const idAlphabet = "abcdefghijklmnopqrstuvwxyz"

// generateID returns a random session id of lowercase letters.
func generateID() (string, error) {
	return randomLetters(rand.Reader, idLength)
}

// randomLetters draws n letters from src. Bytes at or above the largest
// multiple of the alphabet size are discarded so every letter is equally
// likely.
func randomLetters(src io.Reader, n int) (string, error) {
	const limit = 256 - 256%len(idAlphabet)
	out := make([]byte, 0, n)
	buf := make([]byte, n)
	for len(out) < n {
		if _, err := io.ReadFull(src, buf); err != nil {
			return "", fmt.Errorf("generate session id: %w", err)
		}
		for _, b := range buf {
			if int(b) >= limit {
				continue
			}
			out = append(out, idAlphabet[int(b)%len(idAlphabet)])
			if len(out) == n {
				break
			}
		}
	}
	return string(out), nil
}

// sessionLock guards one session id. refs counts the callers currently
// holding or waiting for it; the entry is dropped when it reaches zero.
type sessionLock struct {
	sync.RWMutex
	refs int
}

// Coordinator owns session lifecycle, membership, admins and voting.
// Calls against one session are serialized; different sessions never
// contend with each other.
type Coordinator struct {
	store Store

	mu    sync.Mutex
	locks map[string]*sessionLock
}

// NewCoordinator creates a Coordinator backed by store.
func NewCoordinator(store Store) *Coordinator {
	return &Coordinator{
		store: store,
		locks: make(map[string]*sessionLock),
	}
}

func (c *Coordinator) acquire(id string) *sessionLock {
	c.mu.Lock()
	defer c.mu.Unlock()
	l, ok := c.locks[id]
	if !ok {
		l = &sessionLock{}
		c.locks[id] = l
	}
	l.refs++
	return l
}

func (c *Coordinator) release(id string, l *sessionLock) {
	c.mu.Lock()
	defer c.mu.Unlock()
	l.refs--
	if l.refs == 0 {
		delete(c.locks, id)
	}
}

// writeLock locks session id for writing and returns the matching unlock.
func (c *Coordinator) writeLock(id string) func() {
	l := c.acquire(id)
	l.Lock()
	return func() {
		l.Unlock()
		c.release(id, l)
	}
}

// readLock locks session id for reading and returns the matching unlock.
func (c *Coordinator) readLock(id string) func() {
	l := c.acquire(id)
	l.RLock()
	return func() {
		l.RUnlock()
		c.release(id, l)
	}
}

// lockCount returns the number of live lock entries.
func (c *Coordinator) lockCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.locks)
}

// load fetches a session. Must be called while holding its lock.
func (c *Coordinator) load(ctx context.Context, id string) (*Session, error) {
	s, err := c.store.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load session %s: %w", id, err)
	}
	if s == nil {
		return nil, apperr.NotFound("session not found: %s", id)
	}
	return s, nil
}

// update runs fn on session id under its write lock and saves the result.
// Nothing is written if fn fails.
func (c *Coordinator) update(ctx context.Context, id string, fn func(*Session) error) error {
	defer c.writeLock(id)()

	s, err := c.load(ctx, id)
	if err != nil {
		return err
	}
	if err := fn(s); err != nil {
		return err
	}
	if err := c.store.Put(ctx, s); err != nil {
		return fmt.Errorf("save session %s: %w", id, err)
	}
	return nil
}

// Create starts a new Clean session with callerID as its only admin.
func (c *Coordinator) Create(ctx context.Context, callerID string) (*View, error) {
	for {
		id, err := generateID()
		if err != nil {
			return nil, err
		}
		s := newSession(id, callerID)
		err = c.store.Create(ctx, s)
		if errors.Is(err, ErrExists) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("create session: %w", err)
		}
		return s.View(), nil
	}
}

// Lookup returns the current snapshot of session id.
func (c *Coordinator) Lookup(ctx context.Context, id string) (*View, error) {
	defer c.readLock(id)()

	s, err := c.load(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.View(), nil
}

// Delete removes session id. Only admins may delete.
func (c *Coordinator) Delete(ctx context.Context, callerID, id string) error {
	defer c.writeLock(id)()

	s, err := c.load(ctx, id)
	if err != nil {
		return err
	}
	if !s.IsAdmin(callerID) {
		return apperr.Forbidden("user %s is not an admin of session %s", callerID, id)
	}
	existed, err := c.store.Delete(ctx, id)
	if err != nil {
		return fmt.Errorf("delete session %s: %w", id, err)
	}
	if !existed {
		return apperr.NotFound("session not found: %s", id)
	}
	return nil
}

// Join adds callerID to the session or updates its nickname.
func (c *Coordinator) Join(ctx context.Context, callerID, id, nickname string) error {
	return c.update(ctx, id, func(s *Session) error {
		s.Join(callerID, nickname)
		return nil
	})
}

// Leave removes targetID from the session.
func (c *Coordinator) Leave(ctx context.Context, callerID, id, targetID string) error {
	return c.update(ctx, id, func(s *Session) error {
		return s.Leave(callerID, targetID)
	})
}

// PlaceVote records callerID's vote.
func (c *Coordinator) PlaceVote(ctx context.Context, callerID, id string, amount uint32) error {
	return c.update(ctx, id, func(s *Session) error {
		return s.PlaceVote(callerID, amount)
	})
}

// SetState moves the session to state.
func (c *Coordinator) SetState(ctx context.Context, callerID, id string, state State) error {
	return c.update(ctx, id, func(s *Session) error {
		return s.SetState(callerID, state)
	})
}

// GrantAdmin gives targetID admin rights in the session.
func (c *Coordinator) GrantAdmin(ctx context.Context, callerID, id, targetID string) error {
	return c.update(ctx, id, func(s *Session) error {
		return s.GrantAdmin(callerID, targetID)
	})
}

// RevokeAdmin takes admin rights away from targetID.
func (c *Coordinator) RevokeAdmin(ctx context.Context, callerID, id, targetID string) error {
	return c.update(ctx, id, func(s *Session) error {
		return s.RevokeAdmin(callerID, targetID)
	})
}
