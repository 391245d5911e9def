package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type Dish struct {
	ID              int64           `json:"id"`
	Name            string          `json:"name"`
	Description     string          `json:"description"`
	Price           decimal.Decimal `json:"price"`
	CategoryID      int64           `json:"category_id"`
	Category        string          `json:"category"`
	IsAvailable     bool            `json:"is_available"`
	PreparationTime int             `json:"preparation_time"`
	IsSpicy         bool            `json:"is_spicy"`
	IsVegetarian    bool            `json:"is_vegetarian"`
	CreatedAt       time.Time       `json:"created_at"`
}

type Category struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}
