// Package notify provides cart.Notifier sinks.
package notify

import (
	"context"
	"fmt"
	"io"
	"sync"

	"cartflow/pkg/cart"
	"cartflow/pkg/logger"
)

// Log writes every message to l at warn level.
func Log(l *logger.Logger) cart.Notifier {
	return cart.NotifierFunc(func(ctx context.Context, m cart.Message) {
		l.Warn(ctx, "cart notification", "kind", m.Kind.String(), "product_id", m.ProductID)
	})
}

// Writer prints every message as a line to w.
func Writer(w io.Writer) cart.Notifier {
	return cart.NotifierFunc(func(ctx context.Context, m cart.Message) {
		fmt.Fprintf(w, "error: %s\n", m.Text)
	})
}

// Multi fans a message out to every sink.
func Multi(sinks ...cart.Notifier) cart.Notifier {
	return cart.NotifierFunc(func(ctx context.Context, m cart.Message) {
		for _, s := range sinks {
			s.Notify(ctx, m)
		}
	})
}

// Collector gathers the messages raised while serving one request.
type Collector struct {
	mu   sync.Mutex
	msgs []cart.Message
}

// Messages returns the collected messages.
func (c *Collector) Messages() []cart.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]cart.Message, len(c.msgs))
	copy(out, c.msgs)
	return out
}

type collectorKey struct{}

// WithCollector attaches a fresh Collector to ctx.
func WithCollector(ctx context.Context) (context.Context, *Collector) {
	c := &Collector{}
	return context.WithValue(ctx, collectorKey{}, c), c
}

// Context delivers messages to the Collector attached to the call's context,
// if any.
func Context() cart.Notifier {
	return cart.NotifierFunc(func(ctx context.Context, m cart.Message) {
		c, ok := ctx.Value(collectorKey{}).(*Collector)
		if !ok {
			return
		}
		c.mu.Lock()
		c.msgs = append(c.msgs, m)
		c.mu.Unlock()
	})
}
