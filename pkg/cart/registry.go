package cart

import (
	"context"
	"sync"
	"time"
)

type entry struct {
	once     sync.Once
	store    *Store
	lastUsed time.Time
}

// Registry keeps one Store per owner. Each store persists under
// DefaultKey + ":" + owner, so an owner gets the same cart back across
// sessions. Stores unused for longer than the idle timeout are dropped from
// memory; their carts stay in the slot and are reloaded on the next Get.
type Registry struct {
	mu        sync.Mutex
	entries   map[string]*entry
	slot      Slot
	gateway   StockGateway
	opts      []Option
	idle      time.Duration
	lastSweep time.Time
	now       func() time.Time
}

// NewRegistry creates a Registry whose stores share slot, gateway and opts.
// An idle timeout <= 0 disables eviction.
func NewRegistry(slot Slot, gateway StockGateway, idle time.Duration, opts ...Option) *Registry {
	return &Registry{
		entries: make(map[string]*entry),
		slot:    slot,
		gateway: gateway,
		opts:    opts,
		idle:    idle,
		now:     time.Now,
	}
}

// Get returns the store of owner, loading it from the slot on first use.
// The load runs outside the registry lock so a slow slot only delays callers
// asking for the same owner.
func (r *Registry) Get(ctx context.Context, owner string) *Store {
	now := r.now()

	r.mu.Lock()
	r.sweep(now)
	e, ok := r.entries[owner]
	if !ok {
		e = &entry{}
		r.entries[owner] = e
	}
	e.lastUsed = now
	r.mu.Unlock()

	e.once.Do(func() {
		opts := append(append([]Option{}, r.opts...), WithKey(DefaultKey+":"+owner))
		e.store = NewStore(ctx, r.slot, r.gateway, opts...)
	})
	return e.store
}

// Len reports how many stores are held in memory.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// sweep drops idle entries, at most once per half idle period.
func (r *Registry) sweep(now time.Time) {
	if r.idle <= 0 || now.Sub(r.lastSweep) < r.idle/2 {
		return
	}
	r.lastSweep = now
	for owner, e := range r.entries {
		if now.Sub(e.lastUsed) > r.idle {
			delete(r.entries, owner)
		}
	}
}
