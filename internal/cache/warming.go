package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/station-collector/internal/models"
	"github.com/kjstillabower/station-collector/internal/store"
)

// LatestReader loads the newest stored observation for a station.
// *store.SQLStore implements it.
type LatestReader interface {
	LatestObservation(ctx context.Context, stationID string) (models.ObservationRecord, error)
}

// Warmer fills the cache from storage so the query API has data before the
// first polling pass completes.
type Warmer struct {
	reader LatestReader
	cache  Cache
	ttl    time.Duration
	logger *zap.Logger
}

func NewWarmer(reader LatestReader, c Cache, ttl time.Duration, logger *zap.Logger) *Warmer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Warmer{reader: reader, cache: c, ttl: ttl, logger: logger}
}

// Warm loads each station concurrently. Stations with no stored observation
// are skipped. Returns the joined errors of stations that failed.
func (w *Warmer) Warm(ctx context.Context, stationIDs []string) error {
	start := time.Now()
	w.logger.Info("warming cache", zap.Int("stations", len(stationIDs)))

	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		warmed int
	)
	errCh := make(chan error, len(stationIDs))
	for _, id := range stationIDs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rec, err := w.reader.LatestObservation(ctx, id)
			if errors.Is(err, store.ErrNotFound) {
				return
			}
			if err != nil {
				errCh <- fmt.Errorf("warm %s: %w", id, err)
				return
			}
			if err := w.cache.Set(ctx, id, rec, w.ttl); err != nil {
				errCh <- fmt.Errorf("warm %s: cache set: %w", id, err)
				return
			}
			mu.Lock()
			warmed++
			mu.Unlock()
		}()
	}
	wg.Wait()
	close(errCh)

	var errs []error
	for err := range errCh {
		errs = append(errs, err)
	}
	w.logger.Info("cache warming complete",
		zap.Int("stations", len(stationIDs)),
		zap.Int("warmed", warmed),
		zap.Int("errors", len(errs)),
		zap.Duration("duration", time.Since(start)))
	return errors.Join(errs...)
}
