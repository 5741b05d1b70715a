// Package httpapi is a cart.StockGateway backed by the storefront REST API:
//
//	GET {base}/stock/{id}    -> {"id": 1, "amount": 3}
//	GET {base}/products/{id} -> {"id": 1, "title": "...", "price": 9.9, "image": "..."}
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel/attribute"

	"cartflow/pkg/cart"
	"cartflow/pkg/logger"
	"cartflow/pkg/otel"
)

const defaultTimeout = 5 * time.Second

// Config configures a Client.
type Config struct {
	BaseURL string
	Timeout time.Duration
}

// Client calls the stock API through a circuit breaker.
type Client struct {
	base string
	hc   *http.Client
	cb   *gobreaker.CircuitBreaker
	log  *logger.Logger
}

// New returns a Client for cfg.BaseURL.
func New(cfg Config, log *logger.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	st := gobreaker.Settings{
		Name:        "StockAPI",
		MaxRequests: 1,
		Interval:    10 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 5 && failureRatio >= 0.5
		},
		// an unknown product is an answer, not an outage
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, cart.ErrProductNotFound)
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			log.Warn(context.Background(), "circuit breaker state changed", "name", name, "from", from.String(), "to", to.String())
		},
	}

	return &Client{
		base: strings.TrimRight(cfg.BaseURL, "/"),
		hc:   &http.Client{Timeout: timeout},
		cb:   gobreaker.NewCircuitBreaker(st),
		log:  log,
	}
}

// Stock returns the available units of productID.
func (c *Client) Stock(ctx context.Context, productID int64) (cart.StockInfo, error) {
	var s cart.StockInfo
	if err := c.get(ctx, "/stock/"+strconv.FormatInt(productID, 10), &s); err != nil {
		return cart.StockInfo{}, err
	}
	s.ProductID = productID
	return s, nil
}

// Product returns the display data of productID.
func (c *Client) Product(ctx context.Context, productID int64) (cart.Product, error) {
	var p cart.Product
	if err := c.get(ctx, "/products/"+strconv.FormatInt(productID, 10), &p); err != nil {
		return cart.Product{}, err
	}
	return p, nil
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	ctx, span := otel.AddSpan(ctx, "stockapi.GET", attribute.String("http.path", path))
	defer span.End()

	_, err := c.cb.Execute(func() (interface{}, error) {
		return nil, c.do(ctx, path, out)
	})
	if err != nil {
		span.RecordError(err)
		c.log.Debug(ctx, "stock api call failed", "path", path, "error", err)
		return err
	}
	return nil
}

func (c *Client) do(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	otel.InjectHeaders(ctx, req.Header)

	resp, err := c.hc.Do(req)
	if err != nil {
		return fmt.Errorf("stock api GET %s: %w", path, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("stock api GET %s: %w", path, cart.ErrProductNotFound)
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("stock api GET %s: unexpected status %d: %s", path, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("stock api GET %s: decode: %w", path, err)
	}
	return nil
}
