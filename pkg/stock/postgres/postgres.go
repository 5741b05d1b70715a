// Package postgres is a cart.StockGateway reading a PostgreSQL product catalog.
package postgres

import (
	"context"
	"database/sql"
	"errors"

	_ "github.com/lib/pq"

	"cartflow/pkg/cart"
)

// Schema creates the products table read by Catalog.
const Schema = `CREATE TABLE IF NOT EXISTS products (
	id BIGSERIAL PRIMARY KEY,
	title TEXT NOT NULL,
	price NUMERIC(12,2) NOT NULL DEFAULT 0,
	image TEXT NOT NULL DEFAULT '',
	stock INT NOT NULL DEFAULT 0 CHECK (stock >= 0)
)`

// Catalog answers stock and product lookups from the products table.
type Catalog struct {
	db *sql.DB
}

// New creates a Catalog.
func New(db *sql.DB) *Catalog {
	return &Catalog{db: db}
}

// Migrate creates the products table if needed.
func (c *Catalog) Migrate(ctx context.Context) error {
	_, err := c.db.ExecContext(ctx, Schema)
	return err
}

// Stock returns current stock for a product.
func (c *Catalog) Stock(ctx context.Context, productID int64) (cart.StockInfo, error) {
	var stock int
	err := c.db.QueryRowContext(ctx, `SELECT stock FROM products WHERE id=$1`, productID).Scan(&stock)
	if errors.Is(err, sql.ErrNoRows) {
		return cart.StockInfo{}, cart.ErrProductNotFound
	}
	if err != nil {
		return cart.StockInfo{}, err
	}
	return cart.StockInfo{ProductID: productID, Amount: stock}, nil
}

// Product returns the display data of a product.
func (c *Catalog) Product(ctx context.Context, productID int64) (cart.Product, error) {
	var p cart.Product
	err := c.db.QueryRowContext(ctx,
		`SELECT id, title, price, image FROM products WHERE id=$1`, productID,
	).Scan(&p.ID, &p.Title, &p.Price, &p.Image)
	if errors.Is(err, sql.ErrNoRows) {
		return cart.Product{}, cart.ErrProductNotFound
	}
	return p, err
}
