package cart

import (
	"context"
	"errors"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"cartflow/pkg/logger"
	"cartflow/pkg/otel"
)

// Store owns a Cart. Operations are serialized and atomic: a call either
// validates, mutates and persists, or leaves the cart untouched.
type Store struct {
	mu       sync.Mutex
	items    Cart
	key      string
	slot     Slot
	gateway  StockGateway
	notifier Notifier
	log      *logger.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithKey overrides DefaultKey.
func WithKey(key string) Option {
	return func(s *Store) { s.key = key }
}

// WithNotifier sets the sink for shopper-facing messages.
func WithNotifier(n Notifier) Option {
	return func(s *Store) { s.notifier = n }
}

// WithLogger sets the logger.
func WithLogger(l *logger.Logger) Option {
	return func(s *Store) { s.log = l }
}

// NewStore returns a Store whose cart is loaded from slot. A missing or
// unreadable blob yields an empty cart.
func NewStore(ctx context.Context, slot Slot, gateway StockGateway, opts ...Option) *Store {
	s := &Store{
		key:      DefaultKey,
		slot:     slot,
		gateway:  gateway,
		notifier: NotifierFunc(func(context.Context, Message) {}),
		log:      logger.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.items = s.load(ctx)
	return s
}

func (s *Store) load(ctx context.Context) Cart {
	raw, err := s.slot.Read(ctx, s.key)
	if errors.Is(err, ErrSlotEmpty) {
		return Cart{}
	}
	if err != nil {
		s.log.Warn(ctx, "read cart slot", "key", s.key, "error", err)
		return Cart{}
	}
	c, err := Decode(raw)
	if err != nil {
		s.log.Warn(ctx, "discarding stored cart", "key", s.key, "error", err)
		return Cart{}
	}
	s.log.Debug(ctx, "cart loaded", "key", s.key, "items", len(c))
	return c
}

// Key returns the slot key of the cart.
func (s *Store) Key() string { return s.key }

// Items returns a copy of the cart.
func (s *Store) Items() Cart {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.items.clone()
}

// AddItem adds one unit of productID, appending a new line item when the
// product is not in the cart yet.
func (s *Store) AddItem(ctx context.Context, productID int64) error {
	ctx, span := otel.AddSpan(ctx, "cart.AddItem", attribute.Int64("product.id", productID))
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.report(ctx, span, s.add(ctx, productID))
}

// RemoveItem drops the line item for productID.
func (s *Store) RemoveItem(ctx context.Context, productID int64) error {
	ctx, span := otel.AddSpan(ctx, "cart.RemoveItem", attribute.Int64("product.id", productID))
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.report(ctx, span, s.remove(ctx, productID))
}

// UpdateAmount sets the quantity of an existing line item. Unknown products
// are ignored.
func (s *Store) UpdateAmount(ctx context.Context, productID int64, amount int) error {
	ctx, span := otel.AddSpan(ctx, "cart.UpdateAmount",
		attribute.Int64("product.id", productID),
		attribute.Int("amount", amount),
	)
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.report(ctx, span, s.setAmount(ctx, OpUpdate, productID, amount))
}

// Clear empties the cart and drops its blob from the slot.
func (s *Store) Clear(ctx context.Context) {
	ctx, span := otel.AddSpan(ctx, "cart.Clear")
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.slot.(Deleter)
	if !ok {
		s.commit(ctx, Cart{})
		return
	}
	s.items = Cart{}
	if err := d.Delete(ctx, s.key); err != nil && !errors.Is(err, ErrSlotEmpty) {
		s.saveFailed(ctx, err)
	}
}

func (s *Store) add(ctx context.Context, id int64) error {
	stock, err := s.gateway.Stock(ctx, id)
	if err != nil {
		return failed(OpAdd, id, err)
	}

	if it, ok := s.items.Find(id); ok {
		if it.Amount+1 > stock.Amount {
			return outOfStock(OpAdd, KindQuantityUnavailable, id)
		}
		return s.setAmount(ctx, OpAdd, id, it.Amount+1)
	}

	if stock.Amount <= 0 {
		return outOfStock(OpAdd, KindOutOfStock, id)
	}
	p, err := s.gateway.Product(ctx, id)
	if err != nil {
		return failed(OpAdd, id, err)
	}
	p.ID = id

	s.commit(ctx, append(s.items.clone(), LineItem{Product: p, Amount: 1}))
	return nil
}

func (s *Store) remove(ctx context.Context, id int64) error {
	i := s.items.index(id)
	if i < 0 {
		return notFound(OpRemove, id)
	}
	next := make(Cart, 0, len(s.items)-1)
	next = append(next, s.items[:i]...)
	next = append(next, s.items[i+1:]...)
	s.commit(ctx, next)
	return nil
}

// setAmount rejects non-positive amounts outright; see DESIGN.md for why a
// negative amount is not written through.
func (s *Store) setAmount(ctx context.Context, op Op, id int64, amount int) error {
	i := s.items.index(id)
	if i < 0 {
		return nil
	}
	if amount <= 0 {
		return outOfStock(op, KindQuantityUnavailable, id)
	}
	stock, err := s.gateway.Stock(ctx, id)
	if err != nil {
		return failed(op, id, err)
	}
	if amount > stock.Amount {
		return outOfStock(op, KindQuantityUnavailable, id)
	}

	next := s.items.clone()
	next[i].Amount = amount
	s.commit(ctx, next)
	return nil
}

// commit replaces the in-memory cart and persists it. A failed write is
// reported to the notifier but does not roll back the in-memory state.
func (s *Store) commit(ctx context.Context, next Cart) {
	s.items = next

	raw, err := Encode(next)
	if err == nil {
		err = s.slot.Write(ctx, s.key, raw)
	}
	if err != nil {
		s.saveFailed(ctx, err)
	}
}

func (s *Store) saveFailed(ctx context.Context, err error) {
	s.log.Error(ctx, "save cart", "key", s.key, "error", err)
	s.notifier.Notify(ctx, Message{Kind: KindSaveFailed, Text: KindSaveFailed.String()})
}

func (s *Store) report(ctx context.Context, span trace.Span, err error) error {
	if err == nil {
		return nil
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())

	var ce *Error
	if errors.As(err, &ce) {
		if errors.Is(err, ErrOperationFailed) {
			s.log.Error(ctx, "cart operation failed", "op", ce.Op, "product_id", ce.ProductID, "error", err)
		} else {
			s.log.Info(ctx, "cart operation rejected", "op", ce.Op, "product_id", ce.ProductID, "kind", ce.Kind.String())
		}
		s.notifier.Notify(ctx, ce.Message())
	}
	return err
}
