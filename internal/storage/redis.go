package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/fjod/restaurant-ordering/internal/domain"
	"github.com/redis/go-redis/v9"
)

const DefaultRedisTTL = 30 * 24 * time.Hour

type RedisStorage struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisStorage(client *redis.Client, ttl time.Duration) *RedisStorage {
	if ttl <= 0 {
		ttl = DefaultRedisTTL
	}
	return &RedisStorage{
		client: client,
		ttl:    ttl,
	}
}

func (r *RedisStorage) Load(ctx context.Context, key string) (domain.Cart, error) {
	data, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.Cart{}, ErrCartNotFound
	}
	if err != nil {
		return domain.Cart{}, fmt.Errorf("redis get failed: %w", err)
	}

	var cart domain.Cart
	if errUnmarshal := json.Unmarshal(data, &cart); errUnmarshal != nil {
		return domain.Cart{}, fmt.Errorf("%w: %v", ErrCorruptCart, errUnmarshal)
	}

	return cart, nil
}

func (r *RedisStorage) Save(ctx context.Context, key string, cart domain.Cart) error {
	jsonCart, err := json.Marshal(cart)
	if err != nil {
		return fmt.Errorf("marshal cart failed: %w", err)
	}

	if errSet := r.client.Set(ctx, key, jsonCart, r.ttl).Err(); errSet != nil {
		return fmt.Errorf("redis set failed: %w", errSet)
	}
	return nil
}

func (r *RedisStorage) Delete(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}

	return nil
}

func (r *RedisStorage) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
