package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	redis "github.com/redis/go-redis/v9"
)

const keyPrefix = "saledesk:plan-conditions:"

type RedisConditionsCache struct {
	client *redis.Client
}

func NewRedisConditionsCache(addr string, password string, db int) *RedisConditionsCache {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	return &RedisConditionsCache{client: client}
}

func (c *RedisConditionsCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisConditionsCache) Close() error {
	return c.client.Close()
}

func (c *RedisConditionsCache) Get(ctx context.Context, key string) (*ConditionsEntry, bool, error) {
	val, err := c.client.Get(ctx, keyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var entry ConditionsEntry
	if err := json.Unmarshal(val, &entry); err != nil {
		return nil, false, err
	}
	return &entry, true, nil
}

func (c *RedisConditionsCache) Set(ctx context.Context, key string, value *ConditionsEntry, ttl time.Duration) error {
	if value == nil {
		return nil
	}
	payload, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, keyPrefix+key, payload, ttl).Err()
}
