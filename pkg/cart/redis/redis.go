// Package redis stores cart blobs in Redis.
package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"cartflow/pkg/cart"
)

// Slot persists cart blobs as plain Redis strings.
type Slot struct {
	client *redis.Client
	ttl    time.Duration // 0 keeps keys forever
}

// New creates a Redis slot. A positive ttl expires idle carts.
func New(client *redis.Client, ttl time.Duration) *Slot {
	return &Slot{client: client, ttl: ttl}
}

// Read returns the value stored under key.
func (s *Slot) Read(ctx context.Context, key string) (string, error) {
	v, err := s.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", cart.ErrSlotEmpty
	}
	return v, err
}

// Write stores value under key, refreshing the ttl.
func (s *Slot) Write(ctx context.Context, key, value string) error {
	return s.client.Set(ctx, key, value, s.ttl).Err()
}

// Delete removes key.
func (s *Slot) Delete(ctx context.Context, key string) error {
	n, err := s.client.Del(ctx, key).Result()
	if err != nil {
		return err
	}
	if n == 0 {
		return cart.ErrSlotEmpty
	}
	return nil
}
