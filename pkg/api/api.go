// Package api exposes per-session carts over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	httpSwagger "github.com/swaggo/http-swagger"
	"go.opentelemetry.io/otel/trace"

	"cartflow/pkg/cart"
	"cartflow/pkg/logger"
	"cartflow/pkg/notify"
	"cartflow/pkg/otel"
	"cartflow/pkg/session"
)

const sessionCookie = "session_id"

type ctxKey int

const userKey ctxKey = iota

// Server handles cart, session and catalog requests.
type Server struct {
	carts      *cart.Registry
	sessions   session.Store
	catalog    cart.StockGateway
	log        *logger.Logger
	tracer     trace.Tracer
	sessionTTL time.Duration
}

// Deps are the collaborators of a Server.
type Deps struct {
	Carts      *cart.Registry
	Sessions   session.Store
	Catalog    cart.StockGateway
	Log        *logger.Logger
	Tracer     trace.Tracer
	SessionTTL time.Duration
}

// New returns a Server.
func New(d Deps) *Server {
	if d.Log == nil {
		d.Log = logger.NewNop()
	}
	if d.SessionTTL <= 0 {
		d.SessionTTL = time.Hour
	}
	return &Server{
		carts:      d.Carts,
		sessions:   d.Sessions,
		catalog:    d.Catalog,
		log:        d.Log,
		tracer:     d.Tracer,
		sessionTTL: d.SessionTTL,
	}
}

// Router builds the HTTP routes.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(s.traceMiddleware)

	r.HandleFunc("/login", s.loginHandler).Methods(http.MethodPost)
	r.HandleFunc("/logout", s.logoutHandler).Methods(http.MethodPost)

	r.HandleFunc("/stock/{id:[0-9]+}", s.getStockHandler).Methods(http.MethodGet)
	r.HandleFunc("/products/{id:[0-9]+}", s.getProductHandler).Methods(http.MethodGet)

	api := r.PathPrefix("/cart").Subrouter()
	api.Use(s.authMiddleware)
	api.HandleFunc("", s.getCartHandler).Methods(http.MethodGet)
	api.HandleFunc("", s.clearCartHandler).Methods(http.MethodDelete)
	api.HandleFunc("/items", s.addItemHandler).Methods(http.MethodPost)
	api.HandleFunc("/items/{id:[0-9]+}", s.updateItemHandler).Methods(http.MethodPut)
	api.HandleFunc("/items/{id:[0-9]+}", s.removeItemHandler).Methods(http.MethodDelete)

	r.PathPrefix("/swagger/").Handler(httpSwagger.WrapHandler)
	return r
}

// loginRequest represents login credentials.
type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// addItemRequest selects the product to add.
type addItemRequest struct {
	ProductID int64 `json:"productId"`
}

// updateItemRequest carries the desired quantity.
type updateItemRequest struct {
	Amount int `json:"amount"`
}

// cartResponse is the cart after an operation together with any
// notifications it raised.
type cartResponse struct {
	Items    cart.Cart      `json:"items"`
	Messages []cart.Message `json:"messages"`
}

// errorResponse describes a rejected operation.
type errorResponse struct {
	Error     string    `json:"error"`
	Kind      cart.Kind `json:"kind,omitempty"`
	ProductID int64     `json:"productId,omitempty"`
}

// loginHandler handles user login and session creation.
// @Summary Login
// @Description Authenticates user and sets session cookie
// @Accept json
// @Produce json
// @Param creds body loginRequest true "Credentials"
// @Success 200
// @Router /login [post]
func (s *Server) loginHandler(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.AddSpan(r.Context(), "loginHandler")
	defer span.End()

	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Username == "" {
		writeErr(w, http.StatusBadRequest, "invalid credentials")
		return
	}
	sid, err := s.sessions.Create(ctx, req.Username)
	if err != nil {
		s.log.Error(ctx, "create session", "error", err)
		writeErr(w, http.StatusInternalServerError, "session error")
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    sid,
		Path:     "/",
		Expires:  time.Now().Add(s.sessionTTL),
		HttpOnly: true,
	})
	w.WriteHeader(http.StatusOK)
}

// logoutHandler ends the session. The user's cart is kept.
// @Summary Logout
// @Success 204
// @Router /logout [post]
func (s *Server) logoutHandler(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.AddSpan(r.Context(), "logoutHandler")
	defer span.End()

	if c, err := r.Cookie(sessionCookie); err == nil {
		if err := s.sessions.Delete(ctx, c.Value); err != nil {
			s.log.Error(ctx, "delete session", "error", err)
		}
	}
	http.SetCookie(w, &http.Cookie{Name: sessionCookie, Value: "", Path: "/", MaxAge: -1, HttpOnly: true})
	w.WriteHeader(http.StatusNoContent)
}

// getCartHandler returns the user's cart.
// @Summary Get cart
// @Produce json
// @Success 200 {object} cartResponse
// @Security ApiKeyAuth
// @Router /cart [get]
func (s *Server) getCartHandler(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.AddSpan(r.Context(), "getCartHandler")
	defer span.End()

	st := s.carts.Get(ctx, userFrom(ctx))
	writeJSON(w, http.StatusOK, cartResponse{Items: st.Items(), Messages: []cart.Message{}})
}

// clearCartHandler empties the user's cart.
// @Summary Clear cart
// @Produce json
// @Success 200 {object} cartResponse
// @Security ApiKeyAuth
// @Router /cart [delete]
func (s *Server) clearCartHandler(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.AddSpan(r.Context(), "clearCartHandler")
	defer span.End()

	s.apply(ctx, w, func(ctx context.Context, st *cart.Store) error {
		st.Clear(ctx)
		return nil
	})
}

// addItemHandler adds one unit of a product.
// @Summary Add item
// @Accept json
// @Produce json
// @Param item body addItemRequest true "Product"
// @Success 200 {object} cartResponse
// @Failure 409 {object} errorResponse
// @Failure 502 {object} errorResponse
// @Security ApiKeyAuth
// @Router /cart/items [post]
func (s *Server) addItemHandler(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.AddSpan(r.Context(), "addItemHandler")
	defer span.End()

	var req addItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ProductID <= 0 {
		writeErr(w, http.StatusBadRequest, "productId is required")
		return
	}
	s.apply(ctx, w, func(ctx context.Context, st *cart.Store) error {
		return st.AddItem(ctx, req.ProductID)
	})
}

// updateItemHandler sets the quantity of a line item.
// @Summary Update item amount
// @Accept json
// @Produce json
// @Param id path int true "Product ID"
// @Param amount body updateItemRequest true "Amount"
// @Success 200 {object} cartResponse
// @Failure 409 {object} errorResponse
// @Failure 502 {object} errorResponse
// @Security ApiKeyAuth
// @Router /cart/items/{id} [put]
func (s *Server) updateItemHandler(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.AddSpan(r.Context(), "updateItemHandler")
	defer span.End()

	id, ok := productID(w, r)
	if !ok {
		return
	}
	var req updateItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid json")
		return
	}
	s.apply(ctx, w, func(ctx context.Context, st *cart.Store) error {
		return st.UpdateAmount(ctx, id, req.Amount)
	})
}

// removeItemHandler removes a line item.
// @Summary Remove item
// @Produce json
// @Param id path int true "Product ID"
// @Success 200 {object} cartResponse
// @Failure 404 {object} errorResponse
// @Security ApiKeyAuth
// @Router /cart/items/{id} [delete]
func (s *Server) removeItemHandler(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.AddSpan(r.Context(), "removeItemHandler")
	defer span.End()

	id, ok := productID(w, r)
	if !ok {
		return
	}
	s.apply(ctx, w, func(ctx context.Context, st *cart.Store) error {
		return st.RemoveItem(ctx, id)
	})
}

// getStockHandler reports available units of a product.
// @Summary Get stock
// @Produce json
// @Param id path int true "Product ID"
// @Success 200 {object} cart.StockInfo
// @Failure 404 {object} errorResponse
// @Router /stock/{id} [get]
func (s *Server) getStockHandler(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.AddSpan(r.Context(), "getStockHandler")
	defer span.End()

	id, ok := productID(w, r)
	if !ok {
		return
	}
	st, err := s.catalog.Stock(ctx, id)
	if err != nil {
		s.catalogErr(ctx, w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// getProductHandler returns product display data.
// @Summary Get product
// @Produce json
// @Param id path int true "Product ID"
// @Success 200 {object} cart.Product
// @Failure 404 {object} errorResponse
// @Router /products/{id} [get]
func (s *Server) getProductHandler(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.AddSpan(r.Context(), "getProductHandler")
	defer span.End()

	id, ok := productID(w, r)
	if !ok {
		return
	}
	p, err := s.catalog.Product(ctx, id)
	if err != nil {
		s.catalogErr(ctx, w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// apply runs op against the user's store and writes the outcome.
func (s *Server) apply(ctx context.Context, w http.ResponseWriter, op func(context.Context, *cart.Store) error) {
	ctx, collected := notify.WithCollector(ctx)
	st := s.carts.Get(ctx, userFrom(ctx))

	if err := op(ctx, st); err != nil {
		writeCartErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cartResponse{Items: st.Items(), Messages: collected.Messages()})
}

func (s *Server) catalogErr(ctx context.Context, w http.ResponseWriter, err error) {
	if errors.Is(err, cart.ErrProductNotFound) {
		writeErr(w, http.StatusNotFound, "product not found")
		return
	}
	s.log.Error(ctx, "catalog lookup", "error", err)
	writeErr(w, http.StatusBadGateway, "stock service unavailable")
}

// authMiddleware ensures a valid session exists.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := r.Cookie(sessionCookie)
		if err != nil {
			writeErr(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		user, err := s.sessions.Lookup(r.Context(), c.Value)
		if err != nil {
			if !errors.Is(err, session.ErrNotFound) {
				s.log.Error(r.Context(), "lookup session", "error", err)
			}
			writeErr(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		ctx := context.WithValue(r.Context(), userKey, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) traceMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := otel.ExtractHeaders(r.Context(), r.Header)
		if s.tracer != nil {
			ctx = otel.InjectTracing(ctx, s.tracer)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func userFrom(ctx context.Context) string {
	user, _ := ctx.Value(userKey).(string)
	return user
}

func productID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil || id <= 0 {
		writeErr(w, http.StatusBadRequest, "invalid product id")
		return 0, false
	}
	return id, true
}

// --- helpers ---
func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, errorResponse{Error: msg})
}

func writeCartErr(w http.ResponseWriter, err error) {
	code := http.StatusInternalServerError
	switch {
	case errors.Is(err, cart.ErrOutOfStock):
		code = http.StatusConflict
	case errors.Is(err, cart.ErrItemNotFound):
		code = http.StatusNotFound
	case errors.Is(err, cart.ErrOperationFailed):
		code = http.StatusBadGateway
	}
	m, ok := cart.MessageFor(err)
	if !ok {
		writeErr(w, code, err.Error())
		return
	}
	writeJSON(w, code, errorResponse{Error: m.Text, Kind: m.Kind, ProductID: m.ProductID})
}
