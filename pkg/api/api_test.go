package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"cartflow/pkg/cart"
	cartmem "cartflow/pkg/cart/memory"
	"cartflow/pkg/notify"
	sessmem "cartflow/pkg/session/memory"
	stockmem "cartflow/pkg/stock/memory"
)

type testEnv struct {
	srv     *httptest.Server
	catalog *stockmem.Catalog
	carts   *cart.Registry
	client  *http.Client
}

func newTestEnv(t *testing.T, slot cart.Slot) *testEnv {
	t.Helper()
	return newTestEnvTTL(t, slot, time.Hour, time.Hour)
}

func newTestEnvTTL(t *testing.T, slot cart.Slot, sessionTTL, idle time.Duration) *testEnv {
	t.Helper()
	catalog := stockmem.New()
	catalog.Put(cart.Product{ID: 1, Title: "Tênis", Price: 179.9}, 1)
	catalog.Put(cart.Product{ID: 2, Title: "Bota", Price: 99.9}, 0)
	catalog.Put(cart.Product{ID: 3, Title: "Chinelo", Price: 19.9}, 5)

	carts := cart.NewRegistry(slot, catalog, idle, cart.WithNotifier(notify.Context()))
	s := New(Deps{
		Carts:    carts,
		Sessions: sessmem.New(sessionTTL),
		Catalog:  catalog,
	})
	srv := httptest.NewServer(s.Router())
	t.Cleanup(srv.Close)
	return &testEnv{srv: srv, catalog: catalog, carts: carts, client: srv.Client()}
}

func (e *testEnv) do(t *testing.T, method, path string, body any, cookie *http.Cookie) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req, err := http.NewRequest(method, e.srv.URL+path, &buf)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if cookie != nil {
		req.AddCookie(cookie)
	}
	resp, err := e.client.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func (e *testEnv) login(t *testing.T, user string) *http.Cookie {
	t.Helper()
	resp := e.do(t, http.MethodPost, "/login", loginRequest{Username: user, Password: "x"}, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login: status %d", resp.StatusCode)
	}
	for _, c := range resp.Cookies() {
		if c.Name == sessionCookie {
			return c
		}
	}
	t.Fatal("login did not set a session cookie")
	return nil
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return v
}

func TestCartRequiresSession(t *testing.T) {
	e := newTestEnv(t, cartmem.New())

	if resp := e.do(t, http.MethodGet, "/cart", nil, nil); resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
	bogus := &http.Cookie{Name: sessionCookie, Value: "nope"}
	if resp := e.do(t, http.MethodGet, "/cart", nil, bogus); resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 for unknown session, got %d", resp.StatusCode)
	}
}

func TestLoginRejectsEmptyUser(t *testing.T) {
	e := newTestEnv(t, cartmem.New())
	resp := e.do(t, http.MethodPost, "/login", loginRequest{}, nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestCartFlow(t *testing.T) {
	e := newTestEnv(t, cartmem.New())
	c := e.login(t, "alice")

	resp := e.do(t, http.MethodPost, "/cart/items", addItemRequest{ProductID: 1}, c)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("add: status %d", resp.StatusCode)
	}
	got := decode[cartResponse](t, resp)
	if len(got.Items) != 1 || got.Items[0].ID != 1 || got.Items[0].Amount != 1 {
		t.Fatalf("unexpected cart: %+v", got.Items)
	}

	// stock of product 1 is exhausted
	resp = e.do(t, http.MethodPost, "/cart/items", addItemRequest{ProductID: 1}, c)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409, got %d", resp.StatusCode)
	}
	errBody := decode[errorResponse](t, resp)
	if errBody.Kind != cart.KindQuantityUnavailable || errBody.Error != "requested quantity unavailable" {
		t.Fatalf("unexpected error body: %+v", errBody)
	}

	resp = e.do(t, http.MethodPost, "/cart/items", addItemRequest{ProductID: 2}, c)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409 for product without stock, got %d", resp.StatusCode)
	}
	if b := decode[errorResponse](t, resp); b.Kind != cart.KindOutOfStock {
		t.Fatalf("unexpected error body: %+v", b)
	}

	e.do(t, http.MethodPost, "/cart/items", addItemRequest{ProductID: 3}, c)
	resp = e.do(t, http.MethodPut, "/cart/items/3", updateItemRequest{Amount: 5}, c)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("update: status %d", resp.StatusCode)
	}
	resp = e.do(t, http.MethodPut, "/cart/items/3", updateItemRequest{Amount: 6}, c)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409, got %d", resp.StatusCode)
	}

	resp = e.do(t, http.MethodDelete, "/cart/items/2", nil, c)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
	if b := decode[errorResponse](t, resp); b.Error != "remove failed" {
		t.Fatalf("unexpected error body: %+v", b)
	}

	resp = e.do(t, http.MethodDelete, "/cart/items/1", nil, c)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("remove: status %d", resp.StatusCode)
	}

	got = decode[cartResponse](t, e.do(t, http.MethodGet, "/cart", nil, c))
	if len(got.Items) != 1 || got.Items[0].ID != 3 || got.Items[0].Amount != 5 {
		t.Fatalf("unexpected final cart: %+v", got.Items)
	}
}

func TestUpdateUnknownItemIsNoop(t *testing.T) {
	e := newTestEnv(t, cartmem.New())
	c := e.login(t, "alice")

	resp := e.do(t, http.MethodPut, "/cart/items/3", updateItemRequest{Amount: 2}, c)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if got := decode[cartResponse](t, resp); len(got.Items) != 0 || len(got.Messages) != 0 {
		t.Fatalf("expected untouched cart, got %+v", got)
	}
}

func TestUsersHaveSeparateCarts(t *testing.T) {
	e := newTestEnv(t, cartmem.New())
	a, b := e.login(t, "alice"), e.login(t, "bob")

	e.do(t, http.MethodPost, "/cart/items", addItemRequest{ProductID: 3}, a)
	got := decode[cartResponse](t, e.do(t, http.MethodGet, "/cart", nil, b))
	if len(got.Items) != 0 {
		t.Fatalf("expected empty cart for another user, got %+v", got.Items)
	}
}

func TestCartSurvivesRelogin(t *testing.T) {
	e := newTestEnv(t, cartmem.New())
	first := e.login(t, "alice")
	e.do(t, http.MethodPost, "/cart/items", addItemRequest{ProductID: 3}, first)
	e.do(t, http.MethodPost, "/logout", nil, first)

	second := e.login(t, "alice")
	if second.Value == first.Value {
		t.Fatal("expected a new session id")
	}
	got := decode[cartResponse](t, e.do(t, http.MethodGet, "/cart", nil, second))
	if len(got.Items) != 1 || got.Items[0].ID != 3 {
		t.Fatalf("expected cart kept across logins, got %+v", got.Items)
	}
}

func TestExpiredSessionsDoNotAccumulateStores(t *testing.T) {
	slot := cartmem.New()
	e := newTestEnvTTL(t, slot, 20*time.Millisecond, 40*time.Millisecond)

	for i := 0; i < 5; i++ {
		c := e.login(t, "alice")
		if resp := e.do(t, http.MethodPut, "/cart/items/3", updateItemRequest{Amount: 1}, c); resp.StatusCode != http.StatusOK {
			t.Fatalf("update: status %d", resp.StatusCode)
		}
	}
	if n := e.carts.Len(); n != 1 {
		t.Fatalf("expected one store for one user, got %d", n)
	}

	c := e.login(t, "alice")
	e.do(t, http.MethodPost, "/cart/items", addItemRequest{ProductID: 3}, c)
	time.Sleep(50 * time.Millisecond)

	if resp := e.do(t, http.MethodGet, "/cart", nil, c); resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected expired session, got %d", resp.StatusCode)
	}

	// bob's request sweeps alice's idle store
	e.do(t, http.MethodGet, "/cart", nil, e.login(t, "bob"))
	if n := e.carts.Len(); n != 1 {
		t.Fatalf("expected idle store evicted, got %d stores", n)
	}

	got := decode[cartResponse](t, e.do(t, http.MethodGet, "/cart", nil, e.login(t, "alice")))
	if len(got.Items) != 1 || got.Items[0].ID != 3 {
		t.Fatalf("expected cart reloaded from the slot, got %+v", got.Items)
	}
}

func TestClearCart(t *testing.T) {
	e := newTestEnv(t, cartmem.New())
	c := e.login(t, "alice")
	e.do(t, http.MethodPost, "/cart/items", addItemRequest{ProductID: 3}, c)

	resp := e.do(t, http.MethodDelete, "/cart", nil, c)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("clear: status %d", resp.StatusCode)
	}
	if got := decode[cartResponse](t, resp); len(got.Items) != 0 {
		t.Fatalf("expected empty cart, got %+v", got.Items)
	}
	if got := decode[cartResponse](t, e.do(t, http.MethodGet, "/cart", nil, c)); len(got.Items) != 0 {
		t.Fatalf("expected empty cart after clear, got %+v", got.Items)
	}
}

func TestLogoutEndsSession(t *testing.T) {
	e := newTestEnv(t, cartmem.New())
	c := e.login(t, "alice")

	if resp := e.do(t, http.MethodPost, "/logout", nil, c); resp.StatusCode != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", resp.StatusCode)
	}
	if resp := e.do(t, http.MethodGet, "/cart", nil, c); resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 after logout, got %d", resp.StatusCode)
	}
}

func TestSaveFailureIsReportedButApplied(t *testing.T) {
	e := newTestEnv(t, failingSlot{})
	c := e.login(t, "alice")

	resp := e.do(t, http.MethodPost, "/cart/items", addItemRequest{ProductID: 3}, c)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	got := decode[cartResponse](t, resp)
	if len(got.Items) != 1 {
		t.Fatalf("expected item in memory, got %+v", got.Items)
	}
	if len(got.Messages) != 1 || got.Messages[0].Kind != cart.KindSaveFailed {
		t.Fatalf("expected save failure message, got %+v", got.Messages)
	}
}

func TestBadRequests(t *testing.T) {
	e := newTestEnv(t, cartmem.New())
	c := e.login(t, "alice")

	if resp := e.do(t, http.MethodPost, "/cart/items", map[string]any{}, c); resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing productId, got %d", resp.StatusCode)
	}
	if resp := e.do(t, http.MethodPut, "/cart/items/3", "nope", c); resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for invalid body, got %d", resp.StatusCode)
	}
}

func TestCatalogRoutes(t *testing.T) {
	e := newTestEnv(t, cartmem.New())

	resp := e.do(t, http.MethodGet, "/stock/3", nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("stock: status %d", resp.StatusCode)
	}
	if s := decode[cart.StockInfo](t, resp); s.ProductID != 3 || s.Amount != 5 {
		t.Fatalf("unexpected stock: %+v", s)
	}

	resp = e.do(t, http.MethodGet, "/products/1", nil, nil)
	if p := decode[cart.Product](t, resp); p.Title != "Tênis" {
		t.Fatalf("unexpected product: %+v", p)
	}

	if resp := e.do(t, http.MethodGet, "/products/99", nil, nil); resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}

type failingSlot struct{}

func (failingSlot) Read(ctx context.Context, key string) (string, error) {
	return "", cart.ErrSlotEmpty
}
func (failingSlot) Write(ctx context.Context, key, value string) error {
	return errors.New("quota exceeded")
}
