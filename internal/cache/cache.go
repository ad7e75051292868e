// Package cache keeps the latest stored observation per station so the query
// API can answer without touching the database.
package cache

import (
	"context"
	"sync"
	"time"

	"github.com/kjstillabower/station-collector/internal/models"
)

// Cache stores the latest observation per station id.
// Get returns (value, true, nil) on hit and (zero, false, nil) on miss.
type Cache interface {
	Get(ctx context.Context, stationID string) (models.ObservationRecord, bool, error)
	Set(ctx context.Context, stationID string, value models.ObservationRecord, ttl time.Duration) error
}

// Pinger is implemented by caches backed by a remote server.
type Pinger interface {
	Ping(ctx context.Context) error
}

// InMemoryCache implements Cache with a map and per-entry expiry. Expired
// entries are removed on access. Safe for concurrent use.
type InMemoryCache struct {
	mu   sync.Mutex
	data map[string]cacheEntry
	now  func() time.Time
}

type cacheEntry struct {
	value     models.ObservationRecord
	expiresAt time.Time
}

func NewInMemoryCache() *InMemoryCache {
	return &InMemoryCache{
		data: make(map[string]cacheEntry),
		now:  time.Now,
	}
}

func (c *InMemoryCache) Get(ctx context.Context, stationID string) (models.ObservationRecord, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.data[stationID]
	if !ok {
		return models.ObservationRecord{}, false, nil
	}
	if c.now().After(entry.expiresAt) {
		delete(c.data, stationID)
		return models.ObservationRecord{}, false, nil
	}
	return entry.value, true, nil
}

func (c *InMemoryCache) Set(ctx context.Context, stationID string, value models.ObservationRecord, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.data[stationID] = cacheEntry{
		value:     value,
		expiresAt: c.now().Add(ttl),
	}
	return nil
}
