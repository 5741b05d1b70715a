package notify

import (
	"bytes"
	"context"
	"testing"

	"cartflow/pkg/cart"
)

func TestWriter(t *testing.T) {
	var buf bytes.Buffer
	Writer(&buf).Notify(context.Background(), cart.Message{Kind: cart.KindRemoveFailed, Text: cart.KindRemoveFailed.String()})
	if got := buf.String(); got != "error: remove failed\n" {
		t.Fatalf("unexpected output %q", got)
	}
}

func TestContextCollector(t *testing.T) {
	n := Context()

	// no collector: dropped silently
	n.Notify(context.Background(), cart.Message{Kind: cart.KindAddFailed})

	ctx, c := WithCollector(context.Background())
	n.Notify(ctx, cart.Message{Kind: cart.KindSaveFailed})
	Multi(n, n).Notify(ctx, cart.Message{Kind: cart.KindOutOfStock})

	msgs := c.Messages()
	if len(msgs) != 3 || msgs[0].Kind != cart.KindSaveFailed || msgs[2].Kind != cart.KindOutOfStock {
		t.Fatalf("unexpected messages: %+v", msgs)
	}
}
