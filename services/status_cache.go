package services

import (
	"context"
	"encoding/json"
	"errors"
	"order-payment-service/models"
	"time"

	"github.com/redis/go-redis/v9"
)

// StatusCache fronts the polling path. Get returns (nil, nil) on a miss.
type StatusCache interface {
	Get(ctx context.Context, orderNo string) (*models.StatusView, error)
	Set(ctx context.Context, view *models.StatusView) error
	Invalidate(ctx context.Context, orderNo string) error
}

const statusKeyPrefix = "order_status:"

type RedisStatusCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisStatusCache(client *redis.Client, ttl time.Duration) *RedisStatusCache {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &RedisStatusCache{client: client, ttl: ttl}
}

func (c *RedisStatusCache) Get(ctx context.Context, orderNo string) (*models.StatusView, error) {
	val, err := c.client.Get(ctx, statusKeyPrefix+orderNo).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var view models.StatusView
	if err := json.Unmarshal([]byte(val), &view); err != nil {
		return nil, err
	}
	return &view, nil
}

func (c *RedisStatusCache) Set(ctx context.Context, view *models.StatusView) error {
	data, err := json.Marshal(view)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, statusKeyPrefix+view.OrderNo, data, c.ttl).Err()
}

func (c *RedisStatusCache) Invalidate(ctx context.Context, orderNo string) error {
	return c.client.Del(ctx, statusKeyPrefix+orderNo).Err()
}
