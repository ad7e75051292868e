package cache

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/bradfitz/gomemcache/memcache"

	"github.com/kjstillabower/station-collector/internal/models"
)

const keyPrefix = "observation:latest:"

// MemcachedCache implements Cache using memcached.
type MemcachedCache struct {
	client *memcache.Client
}

// NewMemcachedCache creates a MemcachedCache. addrs is a comma-separated list
// (e.g. "localhost:11211" or "host1:11211,host2:11211"). timeout and maxIdleConns
// use package defaults if zero.
func NewMemcachedCache(addrs string, timeout time.Duration, maxIdleConns int) (*MemcachedCache, error) {
	servers := parseAddrs(addrs)
	if len(servers) == 0 {
		servers = []string{"localhost:11211"}
	}
	client := memcache.New(servers...)
	if timeout > 0 {
		client.Timeout = timeout
	}
	if maxIdleConns > 0 {
		client.MaxIdleConns = maxIdleConns
	}
	return &MemcachedCache{client: client}, nil
}

func parseAddrs(s string) []string {
	var out []string
	for _, a := range strings.Split(s, ",") {
		a = strings.TrimSpace(a)
		if a != "" {
			out = append(out, a)
		}
	}
	return out
}

func cacheKey(stationID string) string {
	return keyPrefix + stationID
}

func (c *MemcachedCache) Get(ctx context.Context, stationID string) (models.ObservationRecord, bool, error) {
	if ctx.Err() != nil {
		return models.ObservationRecord{}, false, ctx.Err()
	}
	item, err := c.client.Get(cacheKey(stationID))
	if err != nil {
		if errors.Is(err, memcache.ErrCacheMiss) {
			return models.ObservationRecord{}, false, nil
		}
		return models.ObservationRecord{}, false, err
	}
	var rec models.ObservationRecord
	if err := json.Unmarshal(item.Value, &rec); err != nil {
		return models.ObservationRecord{}, false, err
	}
	return rec, true, nil
}

func (c *MemcachedCache) Set(ctx context.Context, stationID string, value models.ObservationRecord, ttl time.Duration) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.client.Set(&memcache.Item{
		Key:        cacheKey(stationID),
		Value:      raw,
		Expiration: expirationSeconds(ttl),
	})
}

// expirationSeconds converts ttl to memcached's relative expiry. Values past
// 30 days would be read as a unix timestamp, so they fall back to one hour.
func expirationSeconds(ttl time.Duration) int32 {
	const maxRelativeExp = 30 * 24 * 60 * 60
	exp := int64(ttl.Seconds())
	if exp <= 0 || exp > maxRelativeExp {
		return 3600
	}
	return int32(exp)
}

// Ping checks if memcached is reachable. Used for health checks.
func (c *MemcachedCache) Ping(ctx context.Context) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return c.client.Ping()
}

// Close closes the memcached client connections. Call during shutdown.
func (c *MemcachedCache) Close() error {
	return c.client.Close()
}
