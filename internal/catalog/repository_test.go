package catalog

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestDB(t *testing.T) *Repository {
	t.Helper()
	repo, err := NewRepository(filepath.Join(t.TempDir(), "catalog.db"))
	require.NoError(t, err)

	require.NoError(t, repo.RunMigrations("./migrations"))
	t.Cleanup(func() { _ = repo.Close() })

	return repo
}

func TestListDishes_OnlyAvailable(t *testing.T) {
	repo := setupTestDB(t)

	dishes, err := repo.ListDishes(context.Background(), DishFilter{})
	require.NoError(t, err)

	assert.Len(t, dishes, 6) // seed has 7, one unavailable
	for _, d := range dishes {
		assert.True(t, d.IsAvailable, d.Name)
		assert.NotEmpty(t, d.Category)
	}
	assert.Equal(t, "Starters", dishes[0].Category)
}

func TestListDishes_Filters(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()
	yes, no := true, false
	mains := int64(2)

	vegetarian, err := repo.ListDishes(ctx, DishFilter{Vegetarian: &yes})
	require.NoError(t, err)
	assert.Len(t, vegetarian, 3)
	for _, d := range vegetarian {
		assert.True(t, d.IsVegetarian, d.Name)
	}

	mildMains, err := repo.ListDishes(ctx, DishFilter{CategoryID: &mains, Spicy: &no})
	require.NoError(t, err)
	require.Len(t, mildMains, 2)
	assert.Equal(t, "Beef Burger", mildMains[0].Name)
	assert.Equal(t, "Margherita Pizza", mildMains[1].Name)

	missing := int64(99)
	none, err := repo.ListDishes(ctx, DishFilter{CategoryID: &missing})
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestListCategories(t *testing.T) {
	repo := setupTestDB(t)

	categories, err := repo.ListCategories(context.Background())
	require.NoError(t, err)

	require.Len(t, categories, 3)
	assert.Equal(t, "Starters", categories[0].Name)
	assert.Equal(t, "Something sweet", categories[2].Description)
}

func TestGetDish_Found(t *testing.T) {
	repo := setupTestDB(t)

	d, err := repo.GetDish(context.Background(), 1)
	require.NoError(t, err)

	assert.Equal(t, "Margherita Pizza", d.Name)
	assert.True(t, decimal.NewFromInt(10).Equal(d.Price))
	assert.Equal(t, "Mains", d.Category)
	assert.True(t, d.IsVegetarian)
	assert.False(t, d.IsSpicy)
	assert.Equal(t, 15, d.PreparationTime)
}

func TestGetDish_PriceIsExact(t *testing.T) {
	repo := setupTestDB(t)

	d, err := repo.GetDish(context.Background(), 4)
	require.NoError(t, err)
	assert.Equal(t, "12.90", d.Price.StringFixed(2))
}

func TestGetDish_Unavailable(t *testing.T) {
	repo := setupTestDB(t)

	d, err := repo.GetDish(context.Background(), 7)
	require.NoError(t, err)
	assert.False(t, d.IsAvailable)
}

func TestGetDish_NotFound(t *testing.T) {
	repo := setupTestDB(t)

	_, err := repo.GetDish(context.Background(), 999)
	assert.ErrorIs(t, err, ErrDishNotFound)
}

func TestRunMigrations_Idempotent(t *testing.T) {
	repo := setupTestDB(t)

	assert.NoError(t, repo.RunMigrations("./migrations"))
}
