package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

type RouterConfig struct {
	Sessions       SessionStore
	Menu           MenuReader
	Orders         OrderReader
	Stream         CartStream
	Tokens         *TokenIssuer
	SubmitLimiter  *SubmitLimiter
	Health         func(ctx context.Context) error
	Log            *slog.Logger
	RequestTimeout time.Duration
	MaxBodySize    int64
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(RequestIDMiddleware)
	r.Use(RequestLogger(cfg.Log))
	r.Use(middleware.Recoverer)

	sessionHandler := NewSessionHandler(cfg.Tokens)
	menuHandler := NewMenuHandler(cfg.Menu, cfg.Log, cfg.RequestTimeout)
	cartHandler := NewCartHandler(cfg.Sessions, cfg.Menu, cfg.Stream, cfg.Log, cfg.RequestTimeout)
	checkoutHandler := NewCheckoutHandler(cfg.Sessions, cfg.Log)
	ordersHandler := NewOrdersHandler(cfg.Orders, cfg.Log, cfg.RequestTimeout)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		if cfg.Health != nil {
			if err := cfg.Health(r.Context()); err != nil {
				respondJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy"})
				return
			}
		}
		respondJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
	})

	r.Route("/api/v1", func(r chi.Router) {
		// the websocket outlives any request timeout
		r.With(SessionAuth(cfg.Tokens)).Get("/cart/events", cartHandler.Events)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(cfg.RequestTimeout))
			if cfg.MaxBodySize > 0 {
				r.Use(middleware.RequestSize(cfg.MaxBodySize))
			}
			r.Use(middleware.Compress(5))

			r.Post("/session", sessionHandler.CreateSession)
			r.Get("/menu", menuHandler.ListDishes)
			r.Get("/menu/categories", menuHandler.ListCategories)
			r.Get("/menu/{dish_id}", menuHandler.GetDish)

			r.Group(func(r chi.Router) {
				r.Use(SessionAuth(cfg.Tokens))

				r.Get("/cart", cartHandler.GetCart)
				r.Delete("/cart", cartHandler.ClearCart)
				r.Post("/cart/items", cartHandler.AddItem)
				r.Put("/cart/items/{dish_id}", cartHandler.UpdateQuantity)
				r.Delete("/cart/items/{dish_id}", cartHandler.RemoveItem)

				r.Post("/checkout", checkoutHandler.Begin)
				r.Get("/checkout", checkoutHandler.Get)
				r.Delete("/checkout", checkoutHandler.Cancel)
				r.Put("/checkout/delivery", checkoutHandler.UpdateDelivery)
				r.Put("/checkout/payment", checkoutHandler.UpdatePayment)
				r.Post("/checkout/next", checkoutHandler.Next)
				r.Post("/checkout/back", checkoutHandler.Back)
				if cfg.SubmitLimiter != nil {
					r.With(cfg.SubmitLimiter.Middleware).Post("/checkout/submit", checkoutHandler.Submit)
				} else {
					r.Post("/checkout/submit", checkoutHandler.Submit)
				}

				r.Get("/orders/{order_id}", ordersHandler.GetOrder)
			})
		})
	})

	return r
}
