// Package cart holds a shopper's cart, validates quantities against a stock
// gateway and mirrors every change to a durable slot.
package cart

import (
	"context"
	"errors"
)

// DefaultKey is the slot key the cart blob is stored under.
const DefaultKey = "@cartflow:cart"

// Product is the display data of a catalog product.
type Product struct {
	ID    int64   `json:"id"`
	Title string  `json:"title"`
	Price float64 `json:"price"`
	Image string  `json:"image"`
}

// LineItem is one distinct product in the cart together with its quantity.
type LineItem struct {
	Product
	Amount int `json:"amount"`
}

// Cart is an ordered list of line items with unique product ids.
type Cart []LineItem

// StockInfo is the number of units available for a product.
type StockInfo struct {
	ProductID int64 `json:"id"`
	Amount    int   `json:"amount"`
}

// StockGateway answers stock and product lookups.
type StockGateway interface {
	Stock(ctx context.Context, productID int64) (StockInfo, error)
	Product(ctx context.Context, productID int64) (Product, error)
}

// Slot is a durable key/value string store.
type Slot interface {
	Read(ctx context.Context, key string) (string, error)
	Write(ctx context.Context, key, value string) error
}

// Deleter is implemented by slots that can drop a key. Store.Clear uses it
// when available and writes an empty snapshot otherwise.
type Deleter interface {
	Delete(ctx context.Context, key string) error
}

// Notifier receives a message for every rejected or failed operation.
type Notifier interface {
	Notify(ctx context.Context, m Message)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, m Message)

// Notify calls f.
func (f NotifierFunc) Notify(ctx context.Context, m Message) { f(ctx, m) }

// ErrSlotEmpty is returned by a Slot when nothing is stored under the key.
var ErrSlotEmpty = errors.New("slot empty")

// ErrProductNotFound is returned by a StockGateway for unknown products.
var ErrProductNotFound = errors.New("product not found")

func (c Cart) index(productID int64) int {
	for i, it := range c {
		if it.ID == productID {
			return i
		}
	}
	return -1
}

// Find returns the line item for productID.
func (c Cart) Find(productID int64) (LineItem, bool) {
	if i := c.index(productID); i >= 0 {
		return c[i], true
	}
	return LineItem{}, false
}

func (c Cart) clone() Cart {
	out := make(Cart, len(c))
	copy(out, c)
	return out
}
