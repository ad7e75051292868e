package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/kjstillabower/station-collector/internal/models"
)

// RedisCache implements Cache using redis string keys with expiry.
type RedisCache struct {
	client *redis.Client
}

// NewRedisCache connects using a redis:// URL.
func NewRedisCache(url string) (*RedisCache, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return &RedisCache{client: redis.NewClient(opts)}, nil
}

func (c *RedisCache) Get(ctx context.Context, stationID string) (models.ObservationRecord, bool, error) {
	raw, err := c.client.Get(ctx, cacheKey(stationID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return models.ObservationRecord{}, false, nil
		}
		return models.ObservationRecord{}, false, err
	}
	var rec models.ObservationRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return models.ObservationRecord{}, false, err
	}
	return rec, true, nil
}

func (c *RedisCache) Set(ctx context.Context, stationID string, value models.ObservationRecord, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, cacheKey(stationID), raw, ttl).Err()
}

func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}
