// Package memory implements an in-memory session store for development and tests.
package memory

import (
	"context"
	"sync"
	"time"

	"cartflow/pkg/session"
)

type entry struct {
	user    string
	expires time.Time
}

// Store provides an in-memory implementation of session.Store.
type Store struct {
	mu       sync.Mutex
	sessions map[string]entry
	ttl      time.Duration
	now      func() time.Time
}

// New creates a Store whose sessions expire after ttl.
func New(ttl time.Duration) *Store {
	return &Store{sessions: make(map[string]entry), ttl: ttl, now: time.Now}
}

// Create starts a session for user.
func (s *Store) Create(ctx context.Context, user string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sid := session.NewID()
	s.sessions[sid] = entry{user: user, expires: s.now().Add(s.ttl)}
	return sid, nil
}

// Lookup returns the user owning session id.
func (s *Store) Lookup(ctx context.Context, id string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.sessions[id]
	if !ok {
		return "", session.ErrNotFound
	}
	if !s.now().Before(e.expires) {
		delete(s.sessions, id)
		return "", session.ErrNotFound
	}
	return e.user, nil
}

// Delete ends session id.
func (s *Store) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
	return nil
}
