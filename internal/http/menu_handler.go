package http

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/fjod/restaurant-ordering/internal/catalog"
	"github.com/fjod/restaurant-ordering/internal/domain"
)

type MenuReader interface {
	ListDishes(ctx context.Context, filter catalog.DishFilter) ([]*domain.Dish, error)
	ListCategories(ctx context.Context) ([]*domain.Category, error)
	GetDish(ctx context.Context, id int64) (*domain.Dish, error)
}

type MenuHandler struct {
	menu    MenuReader
	log     *slog.Logger
	timeout time.Duration
}

func NewMenuHandler(menu MenuReader, log *slog.Logger, timeout time.Duration) *MenuHandler {
	return &MenuHandler{menu: menu, log: log, timeout: timeout}
}

type MenuResponseDTO struct {
	Dishes []*domain.Dish `json:"dishes"`
}

type CategoriesResponseDTO struct {
	Categories []*domain.Category `json:"categories"`
}

// parseDishFilter reads the optional category, vegetarian and spicy query parameters.
func parseDishFilter(r *http.Request) (catalog.DishFilter, string, bool) {
	var f catalog.DishFilter
	q := r.URL.Query()

	if v := q.Get("category"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil || id <= 0 {
			return f, "category must be a positive integer", false
		}
		f.CategoryID = &id
	}
	for name, dst := range map[string]**bool{"vegetarian": &f.Vegetarian, "spicy": &f.Spicy} {
		v := q.Get(name)
		if v == "" {
			continue
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			return f, name + " must be true or false", false
		}
		*dst = &b
	}
	return f, "", true
}

// GET /api/v1/menu?category=&vegetarian=&spicy=
func (h *MenuHandler) ListDishes(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	filter, msg, ok := parseDishFilter(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid_filter", msg)
		return
	}

	dishes, err := h.menu.ListDishes(ctx, filter)
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}
	if dishes == nil {
		dishes = []*domain.Dish{}
	}
	respondJSON(w, http.StatusOK, MenuResponseDTO{Dishes: dishes})
}

// GET /api/v1/menu/categories
func (h *MenuHandler) ListCategories(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	categories, err := h.menu.ListCategories(ctx)
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}
	if categories == nil {
		categories = []*domain.Category{}
	}
	respondJSON(w, http.StatusOK, CategoriesResponseDTO{Categories: categories})
}

// GET /api/v1/menu/{dish_id}
func (h *MenuHandler) GetDish(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	id, err := strconv.ParseInt(chi.URLParam(r, "dish_id"), 10, 64)
	if err != nil || id <= 0 {
		respondError(w, http.StatusBadRequest, "invalid_dish_id", "dish_id must be a positive integer")
		return
	}

	dish, err := h.menu.GetDish(ctx, id)
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, dish)
}
