// Package session maps opaque session ids to user names.
package session

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// ErrNotFound indicates the session does not exist or has expired.
var ErrNotFound = errors.New("session not found")

// Store creates and resolves sessions.
type Store interface {
	Create(ctx context.Context, user string) (string, error)
	Lookup(ctx context.Context, id string) (string, error)
	Delete(ctx context.Context, id string) error
}

// NewID returns a fresh session id.
func NewID() string {
	return uuid.NewString()
}
