// Package memory implements an in-memory product catalog usable as a
// cart.StockGateway.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"cartflow/pkg/cart"
)

// Catalog holds products and their stock.
type Catalog struct {
	mu       sync.RWMutex
	products map[int64]cart.Product
	stock    map[int64]int
}

// New creates an empty catalog.
func New() *Catalog {
	return &Catalog{
		products: make(map[int64]cart.Product),
		stock:    make(map[int64]int),
	}
}

// Put adds or replaces a product together with its stock.
func (c *Catalog) Put(p cart.Product, stock int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.products[p.ID] = p
	c.stock[p.ID] = stock
}

// SetStock changes the stock of a known product.
func (c *Catalog) SetStock(productID int64, stock int) error {
	if stock < 0 {
		return fmt.Errorf("stock cannot be negative")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.products[productID]; !ok {
		return cart.ErrProductNotFound
	}
	c.stock[productID] = stock
	return nil
}

// Stock returns the available units of productID.
func (c *Catalog) Stock(ctx context.Context, productID int64) (cart.StockInfo, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if _, ok := c.products[productID]; !ok {
		return cart.StockInfo{}, cart.ErrProductNotFound
	}
	return cart.StockInfo{ProductID: productID, Amount: c.stock[productID]}, nil
}

// Product returns the display data of productID.
func (c *Catalog) Product(ctx context.Context, productID int64) (cart.Product, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.products[productID]
	if !ok {
		return cart.Product{}, cart.ErrProductNotFound
	}
	return p, nil
}

type seed struct {
	Products []cart.Product   `json:"products"`
	Stock    []cart.StockInfo `json:"stock"`
}

// Load reads a storefront fixture of the form
//
//	{"products": [{"id":1,"title":"...","price":1.5,"image":"..."}],
//	 "stock":    [{"id":1,"amount":3}]}
func Load(r io.Reader) (*Catalog, error) {
	var s seed
	if err := json.NewDecoder(r).Decode(&s); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	c := New()
	for _, p := range s.Products {
		c.Put(p, 0)
	}
	for _, st := range s.Stock {
		if err := c.SetStock(st.ProductID, st.Amount); err != nil {
			return nil, fmt.Errorf("stock for product %d: %w", st.ProductID, err)
		}
	}
	return c, nil
}
