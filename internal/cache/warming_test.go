package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/kjstillabower/station-collector/internal/models"
	"github.com/kjstillabower/station-collector/internal/store"
)

type fakeReader struct {
	mu      sync.Mutex
	records map[string]models.ObservationRecord
	errs    map[string]error
	calls   int
}

func (f *fakeReader) LatestObservation(ctx context.Context, stationID string) (models.ObservationRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if err := f.errs[stationID]; err != nil {
		return models.ObservationRecord{}, err
	}
	rec, ok := f.records[stationID]
	if !ok {
		return models.ObservationRecord{}, fmt.Errorf("observations for %s: %w", stationID, store.ErrNotFound)
	}
	return rec, nil
}

func TestWarmer_Warm_PopulatesCache(t *testing.T) {
	reader := &fakeReader{records: map[string]models.ObservationRecord{
		"KBOS": {StationID: "KBOS", TimestampUTC: "t1"},
		"KSEA": {StationID: "KSEA", TimestampUTC: "t2"},
	}}
	c := NewInMemoryCache()
	w := NewWarmer(reader, c, time.Minute, nil)

	if err := w.Warm(context.Background(), []string{"KBOS", "KSEA", "KNEW"}); err != nil {
		t.Fatalf("Warm() error = %v, want nil (missing stations are skipped)", err)
	}
	for _, id := range []string{"KBOS", "KSEA"} {
		if _, ok, _ := c.Get(context.Background(), id); !ok {
			t.Errorf("cache miss for %s after warming", id)
		}
	}
	if _, ok, _ := c.Get(context.Background(), "KNEW"); ok {
		t.Error("station without observations should not be cached")
	}
	if reader.calls != 3 {
		t.Errorf("reader calls = %d, want 3", reader.calls)
	}
}

func TestWarmer_Warm_EmptyStations(t *testing.T) {
	w := NewWarmer(&fakeReader{}, NewInMemoryCache(), time.Minute, nil)
	if err := w.Warm(context.Background(), nil); err != nil {
		t.Errorf("Warm(nil) error = %v", err)
	}
}

func TestWarmer_Warm_ReaderError(t *testing.T) {
	dbErr := errors.New("database is locked")
	reader := &fakeReader{
		records: map[string]models.ObservationRecord{"KSEA": {StationID: "KSEA"}},
		errs:    map[string]error{"KBOS": dbErr},
	}
	c := NewInMemoryCache()
	w := NewWarmer(reader, c, time.Minute, nil)

	err := w.Warm(context.Background(), []string{"KBOS", "KSEA"})
	if !errors.Is(err, dbErr) {
		t.Fatalf("Warm() error = %v, want it to wrap %v", err, dbErr)
	}
	if _, ok, _ := c.Get(context.Background(), "KSEA"); !ok {
		t.Error("healthy station should still be warmed")
	}
}
