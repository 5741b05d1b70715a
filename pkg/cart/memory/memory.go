// Package memory implements an in-memory cart slot.
package memory

import (
	"context"
	"sync"

	"cartflow/pkg/cart"
)

// Slot provides an in-memory implementation of cart.Slot.
type Slot struct {
	mu   sync.RWMutex
	data map[string]string
}

// New creates a new in-memory slot.
func New() *Slot {
	return &Slot{data: make(map[string]string)}
}

// Read returns the value stored under key.
func (s *Slot) Read(ctx context.Context, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.data[key]
	if !ok {
		return "", cart.ErrSlotEmpty
	}
	return v, nil
}

// Write stores value under key.
func (s *Slot) Write(ctx context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = value
	return nil
}

// Delete removes key.
func (s *Slot) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.data[key]; !ok {
		return cart.ErrSlotEmpty
	}
	delete(s.data, key)
	return nil
}
