// Package catalog serves the restaurant menu from SQLite.
package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/fjod/restaurant-ordering/internal/domain"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "modernc.org/sqlite"
)

var ErrDishNotFound = errors.New("dish not found")

const dishColumns = `
	d.id, d.name, d.description, d.price, d.category_id, c.name,
	d.is_available, d.preparation_time, d.is_spicy, d.is_vegetarian, d.created_at`

type Repository struct {
	db *sql.DB
}

func NewRepository(dbPath string) (*Repository, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Repository{db: db}, nil
}

func (r *Repository) RunMigrations(migrationsPath string) error {
	driver, err := sqlite.WithInstance(r.db, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("could not create migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(
		fmt.Sprintf("file://%s", migrationsPath),
		"sqlite",
		driver,
	)
	if err != nil {
		return fmt.Errorf("could not create migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("could not run migrations: %w", err)
	}

	return nil
}

// DishFilter narrows ListDishes. Nil fields do not filter.
type DishFilter struct {
	CategoryID *int64
	Vegetarian *bool
	Spicy      *bool
}

func (f DishFilter) where() (string, []any) {
	clause := `WHERE d.is_available = 1`
	var args []any
	if f.CategoryID != nil {
		clause += ` AND d.category_id = ?`
		args = append(args, *f.CategoryID)
	}
	if f.Vegetarian != nil {
		clause += ` AND d.is_vegetarian = ?`
		args = append(args, *f.Vegetarian)
	}
	if f.Spicy != nil {
		clause += ` AND d.is_spicy = ?`
		args = append(args, *f.Spicy)
	}
	return clause, args
}

// ListDishes returns the dishes currently on offer, grouped by category.
func (r *Repository) ListDishes(ctx context.Context, filter DishFilter) ([]*domain.Dish, error) {
	where, args := filter.where()
	query := `SELECT` + dishColumns + `
		FROM dishes d JOIN categories c ON c.id = d.category_id
		` + where + `
		ORDER BY c.id, d.name`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query dishes: %w", err)
	}
	defer rows.Close()

	var dishes []*domain.Dish
	for rows.Next() {
		d, err := scanDish(rows)
		if err != nil {
			return nil, err
		}
		dishes = append(dishes, d)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return dishes, nil
}

func (r *Repository) ListCategories(ctx context.Context) ([]*domain.Category, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, name, description FROM categories ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query categories: %w", err)
	}
	defer rows.Close()

	var categories []*domain.Category
	for rows.Next() {
		c := &domain.Category{}
		if err := rows.Scan(&c.ID, &c.Name, &c.Description); err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		categories = append(categories, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return categories, nil
}

// GetDish returns a dish whether or not it is currently available.
func (r *Repository) GetDish(ctx context.Context, id int64) (*domain.Dish, error) {
	query := `SELECT` + dishColumns + `
		FROM dishes d JOIN categories c ON c.id = d.category_id
		WHERE d.id = ?`

	d, err := scanDish(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrDishNotFound
	}
	return d, err
}

func (r *Repository) Close() error {
	return r.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanDish(row scanner) (*domain.Dish, error) {
	d := &domain.Dish{}
	err := row.Scan(
		&d.ID,
		&d.Name,
		&d.Description,
		&d.Price,
		&d.CategoryID,
		&d.Category,
		&d.IsAvailable,
		&d.PreparationTime,
		&d.IsSpicy,
		&d.IsVegetarian,
		&d.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan dish: %w", err)
	}
	return d, nil
}
