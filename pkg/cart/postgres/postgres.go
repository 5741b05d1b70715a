// Package postgres stores cart blobs in PostgreSQL.
package postgres

import (
	"context"
	"database/sql"

	_ "github.com/lib/pq"

	"cartflow/pkg/cart"
)

// Schema creates the table used by Slot.
const Schema = `CREATE TABLE IF NOT EXISTS cart_slots (key TEXT PRIMARY KEY, value TEXT NOT NULL, updated_at TIMESTAMPTZ NOT NULL DEFAULT now())`

// Slot persists cart blobs in PostgreSQL.
type Slot struct {
	db *sql.DB
}

// New creates a PostgreSQL slot. The caller must ensure the cart_slots table
// exists, see Schema.
func New(db *sql.DB) *Slot {
	return &Slot{db: db}
}

// Migrate creates the cart_slots table if needed.
func (s *Slot) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, Schema)
	return err
}

// Read retrieves the value stored under key.
func (s *Slot) Read(ctx context.Context, key string) (string, error) {
	var v string
	err := s.db.QueryRowContext(ctx, "SELECT value FROM cart_slots WHERE key=$1", key).Scan(&v)
	if err == sql.ErrNoRows {
		return "", cart.ErrSlotEmpty
	}
	return v, err
}

// Write upserts value under key.
func (s *Slot) Write(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO cart_slots (key,value) VALUES ($1,$2) ON CONFLICT (key) DO UPDATE SET value=EXCLUDED.value, updated_at=now()",
		key, value)
	return err
}

// Delete removes key.
func (s *Slot) Delete(ctx context.Context, key string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM cart_slots WHERE key=$1", key)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return cart.ErrSlotEmpty
	}
	return nil
}
