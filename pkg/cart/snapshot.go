package cart

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// SnapshotVersion is the schema version written by Encode.
const SnapshotVersion = 1

// ErrCorruptSnapshot is returned by Decode for blobs that cannot be trusted.
var ErrCorruptSnapshot = errors.New("corrupt cart snapshot")

// Snapshot is the persisted form of a Cart.
type Snapshot struct {
	Version int            `json:"version"`
	Items   []SnapshotItem `json:"items"`
}

// SnapshotItem is the persisted form of a LineItem.
type SnapshotItem struct {
	ProductID int64   `json:"productId"`
	Title     string  `json:"title,omitempty"`
	Price     float64 `json:"price,omitempty"`
	Image     string  `json:"image,omitempty"`
	Amount    int     `json:"amount"`
}

// Encode serializes c as a versioned snapshot.
func Encode(c Cart) (string, error) {
	snap := Snapshot{Version: SnapshotVersion, Items: make([]SnapshotItem, 0, len(c))}
	for _, it := range c {
		snap.Items = append(snap.Items, SnapshotItem{
			ProductID: it.ID,
			Title:     it.Title,
			Price:     it.Price,
			Image:     it.Image,
			Amount:    it.Amount,
		})
	}
	b, err := json.Marshal(snap)
	if err != nil {
		return "", fmt.Errorf("encode cart: %w", err)
	}
	return string(b), nil
}

// Decode parses a blob written by Encode. A bare JSON array of products with
// an "amount" field, as written by the old storefront client, is accepted and
// migrated.
func Decode(raw string) (Cart, error) {
	data := bytes.TrimSpace([]byte(raw))
	if len(data) > 0 && data[0] == '[' {
		var legacy []LineItem
		if err := json.Unmarshal(data, &legacy); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCorruptSnapshot, err)
		}
		return validate(Cart(legacy))
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptSnapshot, err)
	}
	if snap.Version != SnapshotVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrCorruptSnapshot, snap.Version)
	}

	c := make(Cart, 0, len(snap.Items))
	for _, it := range snap.Items {
		c = append(c, LineItem{
			Product: Product{ID: it.ProductID, Title: it.Title, Price: it.Price, Image: it.Image},
			Amount:  it.Amount,
		})
	}
	return validate(c)
}

func validate(c Cart) (Cart, error) {
	seen := make(map[int64]struct{}, len(c))
	for _, it := range c {
		if it.Amount < 1 {
			return nil, fmt.Errorf("%w: product %d has amount %d", ErrCorruptSnapshot, it.ID, it.Amount)
		}
		if _, dup := seen[it.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate product %d", ErrCorruptSnapshot, it.ID)
		}
		seen[it.ID] = struct{}{}
	}
	if c == nil {
		c = Cart{}
	}
	return c, nil
}
