// Package redis keeps sessions in Redis with a TTL.
package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"cartflow/pkg/session"
)

const keyPrefix = "session:"

// Store is a Redis-backed session.Store.
type Store struct {
	client *redis.Client
	ttl    time.Duration
}

// New creates a Store whose sessions expire after ttl.
func New(client *redis.Client, ttl time.Duration) *Store {
	return &Store{client: client, ttl: ttl}
}

// Create starts a session for user.
func (s *Store) Create(ctx context.Context, user string) (string, error) {
	sid := session.NewID()
	if err := s.client.Set(ctx, keyPrefix+sid, user, s.ttl).Err(); err != nil {
		return "", err
	}
	return sid, nil
}

// Lookup returns the user owning session id.
func (s *Store) Lookup(ctx context.Context, id string) (string, error) {
	user, err := s.client.Get(ctx, keyPrefix+id).Result()
	if err == redis.Nil || (err == nil && user == "") {
		return "", session.ErrNotFound
	}
	return user, err
}

// Delete ends session id.
func (s *Store) Delete(ctx context.Context, id string) error {
	return s.client.Del(ctx, keyPrefix+id).Err()
}
