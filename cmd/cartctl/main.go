// Command cartctl manages a local cart persisted on disk and validated
// against the storefront stock API.
//
//	cartctl list
//	cartctl add ID
//	cartctl remove ID
//	cartctl set ID AMOUNT
//	cartctl clear
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"text/tabwriter"
	"time"

	"cartflow/pkg/cart"
	cartfile "cartflow/pkg/cart/file"
	"cartflow/pkg/logger"
	"cartflow/pkg/notify"
	"cartflow/pkg/otel"
	stockhttp "cartflow/pkg/stock/httpapi"
)

func main() {
	os.Exit(run(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("cartctl", flag.ContinueOnError)
	fs.SetOutput(stderr)
	stockURL := fs.String("stock-url", envOr("STOCK_API_URL", "http://localhost:3333"), "storefront stock API base URL")
	dir := fs.String("dir", defaultDir(), "directory holding the cart file")
	key := fs.String("key", cart.DefaultKey, "cart key")
	timeout := fs.Duration("timeout", 5*time.Second, "stock API timeout")
	verbose := fs.Bool("v", false, "debug logging to stderr")
	fs.Usage = func() {
		fmt.Fprintln(stderr, "usage: cartctl [flags] list | add ID | remove ID | set ID AMOUNT | clear")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return 2
	}

	log := logger.NewNop()
	if *verbose {
		log = logger.New(stderr, logger.LevelDebug, "cartctl", otel.GetTraceID)
	}

	slot, err := cartfile.New(*dir)
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}
	gw := stockhttp.New(stockhttp.Config{BaseURL: *stockURL, Timeout: *timeout}, log)
	store := cart.NewStore(ctx, slot, gw,
		cart.WithKey(*key),
		cart.WithLogger(log),
		cart.WithNotifier(notify.Writer(stderr)),
	)

	rest := fs.Args()
	if len(rest) == 0 {
		fs.Usage()
		return 2
	}

	switch cmd := rest[0]; {
	case cmd == "list" && len(rest) == 1:
		printCart(stdout, store.Items())
		return 0
	case cmd == "clear" && len(rest) == 1:
		store.Clear(ctx)
		return outcome(stdout, store, nil)
	case cmd == "add" && len(rest) == 2:
		id, ok := parseID(stderr, rest[1])
		if !ok {
			return 2
		}
		return outcome(stdout, store, store.AddItem(ctx, id))
	case cmd == "remove" && len(rest) == 2:
		id, ok := parseID(stderr, rest[1])
		if !ok {
			return 2
		}
		return outcome(stdout, store, store.RemoveItem(ctx, id))
	case cmd == "set" && len(rest) == 3:
		id, ok := parseID(stderr, rest[1])
		if !ok {
			return 2
		}
		amount, err := strconv.Atoi(rest[2])
		if err != nil {
			fmt.Fprintf(stderr, "error: invalid amount %q\n", rest[2])
			return 2
		}
		return outcome(stdout, store, store.UpdateAmount(ctx, id, amount))
	default:
		fs.Usage()
		return 2
	}
}

// outcome prints the cart after a successful operation. Failures have
// already been reported by the notifier.
func outcome(stdout io.Writer, store *cart.Store, err error) int {
	if err != nil {
		return 1
	}
	printCart(stdout, store.Items())
	return 0
}

func printCart(w io.Writer, c cart.Cart) {
	if len(c) == 0 {
		fmt.Fprintln(w, "cart is empty")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTITLE\tPRICE\tAMOUNT")
	for _, it := range c {
		fmt.Fprintf(tw, "%d\t%s\t%.2f\t%d\n", it.ID, it.Title, it.Price, it.Amount)
	}
	tw.Flush()
}

func parseID(stderr io.Writer, s string) (int64, bool) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		fmt.Fprintf(stderr, "error: invalid product id %q\n", s)
		return 0, false
	}
	return id, true
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func defaultDir() string {
	if d, err := os.UserConfigDir(); err == nil {
		return filepath.Join(d, "cartflow")
	}
	return ".cartflow"
}
