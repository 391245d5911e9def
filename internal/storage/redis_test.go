package storage

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/fjod/restaurant-ordering/internal/domain"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestRedis creates a miniredis server and returns a RedisStorage instance
func setupTestRedis(t *testing.T) (*RedisStorage, *miniredis.Miniredis, func()) {
	mr := miniredis.RunT(t)

	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})

	s := NewRedisStorage(client, time.Hour)

	cleanup := func() {
		client.Close()
		mr.Close()
	}

	return s, mr, cleanup
}

func sampleCart() domain.Cart {
	return domain.Cart{Items: []domain.CartLineItem{
		{DishID: 1, Name: "Pizza", UnitPrice: decimal.RequireFromString("10.00"), Quantity: 2, SpecialInstructions: "extra basil"},
		{DishID: 7, Name: "Tiramisu", UnitPrice: decimal.RequireFromString("6.35"), Quantity: 1},
	}}
}

func TestRedis_SaveLoadRoundTrip(t *testing.T) {
	s, _, cleanup := setupTestRedis(t)
	defer cleanup()

	ctx := context.Background()
	key := CartKey("session-1")
	cart := sampleCart()

	require.NoError(t, s.Save(ctx, key, cart))

	loaded, err := s.Load(ctx, key)
	require.NoError(t, err)
	require.Len(t, loaded.Items, 2)
	assert.Equal(t, int64(1), loaded.Items[0].DishID)
	assert.Equal(t, "Pizza", loaded.Items[0].Name)
	assert.Equal(t, 2, loaded.Items[0].Quantity)
	assert.Equal(t, "extra basil", loaded.Items[0].SpecialInstructions)
	assert.True(t, cart.Items[1].UnitPrice.Equal(loaded.Items[1].UnitPrice))
	assert.True(t, cart.TotalPrice().Equal(loaded.TotalPrice()))
}

func TestRedis_LoadMissing(t *testing.T) {
	s, _, cleanup := setupTestRedis(t)
	defer cleanup()

	_, err := s.Load(context.Background(), CartKey("nobody"))
	assert.ErrorIs(t, err, ErrCartNotFound)
}

func TestRedis_LoadCorrupted(t *testing.T) {
	s, mr, cleanup := setupTestRedis(t)
	defer cleanup()

	key := CartKey("broken")
	data, err := json.Marshal(sampleCart())
	require.NoError(t, err)
	require.NoError(t, mr.Set(key, string(data[:10])))

	_, errLoad := s.Load(context.Background(), key)
	assert.ErrorIs(t, errLoad, ErrCorruptCart)
}

func TestRedis_SaveSetsTTL(t *testing.T) {
	s, mr, cleanup := setupTestRedis(t)
	defer cleanup()

	key := CartKey("ttl")
	require.NoError(t, s.Save(context.Background(), key, sampleCart()))

	assert.Equal(t, time.Hour, mr.TTL(key))
}

func TestRedis_Delete(t *testing.T) {
	s, mr, cleanup := setupTestRedis(t)
	defer cleanup()

	ctx := context.Background()
	key := CartKey("gone")
	require.NoError(t, s.Save(ctx, key, sampleCart()))
	assert.True(t, mr.Exists(key))

	require.NoError(t, s.Delete(ctx, key))
	assert.False(t, mr.Exists(key))

	// Deleting a missing key is not an error
	assert.NoError(t, s.Delete(ctx, key))
}

func TestRedis_Ping(t *testing.T) {
	s, _, cleanup := setupTestRedis(t)
	defer cleanup()

	assert.NoError(t, s.Ping(context.Background()))
}

func TestCartKey_Format(t *testing.T) {
	assert.Equal(t, "cart:test123", CartKey("test123"))
}
