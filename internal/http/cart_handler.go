package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/fjod/restaurant-ordering/internal/cart"
	"github.com/fjod/restaurant-ordering/internal/checkout"
	"github.com/fjod/restaurant-ordering/internal/domain"
)

const maxItemQuantity = 99

// SessionStore hands out the per-session cart and checkout.
type SessionStore interface {
	Cart(ctx context.Context, sessionID string) *cart.Store
	StartCheckout(ctx context.Context, sessionID string) (*checkout.Flow, error)
	Checkout(sessionID string) (*checkout.Flow, bool)
	EndCheckout(sessionID string, flow *checkout.Flow)
}

// CartStream pushes cart changes to a connected client.
type CartStream interface {
	ServeWS(w http.ResponseWriter, r *http.Request, sessionID string)
}

type CartHandler struct {
	sessions SessionStore
	menu     MenuReader
	stream   CartStream
	log      *slog.Logger
	timeout  time.Duration
}

func NewCartHandler(sessions SessionStore, menu MenuReader, stream CartStream, log *slog.Logger, timeout time.Duration) *CartHandler {
	return &CartHandler{
		sessions: sessions,
		menu:     menu,
		stream:   stream,
		log:      log,
		timeout:  timeout,
	}
}

type AddItemRequestDTO struct {
	DishID              int64  `json:"dish_id"`
	Quantity            *int   `json:"quantity"`
	SpecialInstructions string `json:"special_instructions"`
}

type UpdateQuantityRequestDTO struct {
	Quantity int `json:"quantity"`
}

type CartResponseDTO struct {
	SessionID  string                `json:"session_id"`
	Items      []domain.CartLineItem `json:"items"`
	TotalItems int                   `json:"total_items"`
	TotalPrice decimal.Decimal       `json:"total_price"`
}

func newCartResponse(store *cart.Store) CartResponseDTO {
	items := store.Items()
	if items == nil {
		items = []domain.CartLineItem{}
	}
	return CartResponseDTO{
		SessionID:  store.SessionID(),
		Items:      items,
		TotalItems: store.TotalItemCount(),
		TotalPrice: store.TotalPrice(),
	}
}

// GET /api/v1/cart
func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	store := h.sessions.Cart(ctx, getSessionIDFromContext(r.Context()))
	respondJSON(w, http.StatusOK, newCartResponse(store))
}

// POST /api/v1/cart/items
func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req AddItemRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	if req.DishID <= 0 {
		respondError(w, http.StatusBadRequest, "invalid_dish_id", "dish_id must be positive")
		return
	}
	quantity := 1
	if req.Quantity != nil {
		quantity = *req.Quantity
	}
	if quantity <= 0 || quantity > maxItemQuantity {
		respondError(w, http.StatusBadRequest, "invalid_quantity", "quantity must be between 1 and 99")
		return
	}

	dish, err := h.menu.GetDish(ctx, req.DishID)
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}
	if !dish.IsAvailable {
		respondError(w, http.StatusConflict, "dish_unavailable", dish.Name+" is not available right now")
		return
	}

	store := h.sessions.Cart(ctx, getSessionIDFromContext(r.Context()))
	if err := store.AddItem(ctx, *dish, quantity, req.SpecialInstructions); err != nil {
		handleError(w, r, h.log, err)
		return
	}

	respondJSON(w, http.StatusOK, newCartResponse(store))
}

// PUT /api/v1/cart/items/{dish_id}
// A quantity of zero removes the line.
func (h *CartHandler) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	dishID, ok := dishIDParam(w, r)
	if !ok {
		return
	}

	var req UpdateQuantityRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.Quantity > maxItemQuantity {
		respondError(w, http.StatusBadRequest, "invalid_quantity", "quantity must not exceed 99")
		return
	}

	store := h.sessions.Cart(ctx, getSessionIDFromContext(r.Context()))
	store.SetQuantity(ctx, dishID, req.Quantity)
	respondJSON(w, http.StatusOK, newCartResponse(store))
}

// DELETE /api/v1/cart/items/{dish_id}
func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	dishID, ok := dishIDParam(w, r)
	if !ok {
		return
	}

	store := h.sessions.Cart(ctx, getSessionIDFromContext(r.Context()))
	store.RemoveItem(ctx, dishID)
	respondJSON(w, http.StatusOK, newCartResponse(store))
}

// DELETE /api/v1/cart
func (h *CartHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	store := h.sessions.Cart(ctx, getSessionIDFromContext(r.Context()))
	store.Clear(ctx)
	respondJSON(w, http.StatusOK, newCartResponse(store))
}

// GET /api/v1/cart/events
func (h *CartHandler) Events(w http.ResponseWriter, r *http.Request) {
	sessionID := getSessionIDFromContext(r.Context())
	// load the cart so the session is live before the socket subscribes
	h.sessions.Cart(r.Context(), sessionID)
	h.stream.ServeWS(w, r, sessionID)
}

func dishIDParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	dishID, err := strconv.ParseInt(chi.URLParam(r, "dish_id"), 10, 64)
	if err != nil || dishID <= 0 {
		respondError(w, http.StatusBadRequest, "invalid_dish_id", "dish_id must be a positive integer")
		return 0, false
	}
	return dishID, true
}
