// Package scheduler drives the collector: a one-time metadata pass over every
// configured station followed by sequential observation passes separated by a
// fixed sleep.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kjstillabower/station-collector/internal/cache"
	"github.com/kjstillabower/station-collector/internal/lifecycle"
	"github.com/kjstillabower/station-collector/internal/models"
	"github.com/kjstillabower/station-collector/internal/observability"
	"github.com/kjstillabower/station-collector/internal/publish"
	"github.com/kjstillabower/station-collector/internal/station"
	"github.com/kjstillabower/station-collector/internal/store"
	"github.com/kjstillabower/station-collector/internal/traffic"
)

// DefaultInterval is used when no positive interval is configured.
const DefaultInterval = 300 * time.Second

// Poll outcomes, also used as metric label values.
const (
	OutcomeStored     = "stored"
	OutcomeDuplicate  = "duplicate"
	OutcomeFetchError = "fetch_error"
	OutcomeStoreError = "store_error"
)

// PassSummary counts what happened to each station during one pass.
type PassSummary struct {
	PollID      string
	Stored      int
	Duplicates  int
	FetchErrors int
	StoreErrors int
	Duration    time.Duration
}

// Scheduler owns the station list and the polling loop.
type Scheduler struct {
	stations  []*station.Station
	store     store.Store
	cache     cache.Cache
	cacheTTL  time.Duration
	publisher publish.Publisher
	interval  time.Duration
	logger    *zap.Logger

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

type Option func(*Scheduler)

// WithCache stores every successfully fetched observation in c for ttl.
func WithCache(c cache.Cache, ttl time.Duration) Option {
	return func(s *Scheduler) {
		s.cache = c
		s.cacheTTL = ttl
	}
}

// WithPublisher forwards newly inserted observations to p.
func WithPublisher(p publish.Publisher) Option {
	return func(s *Scheduler) { s.publisher = p }
}

// WithInterval sets the sleep between passes. Non-positive values keep DefaultInterval.
func WithInterval(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.interval = d
		}
	}
}

func withSleep(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(s *Scheduler) { s.sleep = fn }
}

// New creates a scheduler over stations, in the order given.
func New(stations []*station.Station, st store.Store, logger *zap.Logger, opts ...Option) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Scheduler{
		stations:  stations,
		store:     st,
		publisher: publish.Noop{},
		interval:  DefaultInterval,
		logger:    logger,
		now:       time.Now,
		sleep:     sleepContext,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Interval returns the configured sleep between passes.
func (s *Scheduler) Interval() time.Duration { return s.interval }

// Run bootstraps storage, performs the metadata pass and then polls until ctx
// is cancelled. It returns ctx.Err() on cancellation and a non-nil error for
// any fatal condition.
func (s *Scheduler) Run(ctx context.Context) error {
	if err := s.Bootstrap(ctx); err != nil {
		return err
	}
	if err := s.MetadataPass(ctx); err != nil {
		return err
	}

	lifecycle.SetPhase(lifecycle.PhaseSteadyPolling)
	s.logger.Info("steady polling started", zap.Duration("interval", s.interval), zap.Int("stations", len(s.stations)))
	for {
		s.PollOnce(ctx)
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.sleep(ctx, s.interval); err != nil {
			return err
		}
	}
}

// Bootstrap creates the storage tables. Failure is fatal.
func (s *Scheduler) Bootstrap(ctx context.Context) error {
	lifecycle.SetPhase(lifecycle.PhaseBootstrapping)
	observability.StationsConfigured.Set(float64(len(s.stations)))
	if err := s.store.EnsureTables(ctx); err != nil {
		return fmt.Errorf("ensure tables: %w", err)
	}
	return nil
}

// MetadataPass fetches and upserts metadata for every station once, in order.
// A station whose metadata could not be acquired is logged and not upserted;
// a metadata body that does not parse stops the pass with an error.
func (s *Scheduler) MetadataPass(ctx context.Context) error {
	lifecycle.SetPhase(lifecycle.PhaseMetadataPass)
	for _, st := range s.stations {
		if err := ctx.Err(); err != nil {
			return err
		}
		logger := s.logger.With(zap.String("station_id", st.Identifier()))

		if err := st.FetchMetadata(ctx); err != nil {
			if station.IsFatal(err) {
				return err
			}
			logger.Warn("station metadata unavailable, not stored", zap.Error(err))
			observability.StationUpsertsTotal.WithLabelValues("skipped").Inc()
			continue
		}

		if err := s.store.UpsertStation(ctx, st.Record()); err != nil {
			logger.Error("station upsert failed", zap.Error(err))
			observability.StationUpsertsTotal.WithLabelValues("error").Inc()
			continue
		}
		observability.StationUpsertsTotal.WithLabelValues("ok").Inc()
		logger.Info("station stored",
			zap.String("name", st.Name()),
			zap.Float64("latitude_deg", st.Latitude()),
			zap.Float64("longitude_deg", st.Longitude()),
			zap.Float64("elevation_ft", st.ElevationFeet()),
		)
	}
	return nil
}

// PollOnce visits every station once. A failure for one station never stops
// the pass; cancellation of ctx does, between stations.
func (s *Scheduler) PollOnce(ctx context.Context) PassSummary {
	summary := PassSummary{PollID: uuid.New().String()}
	logger := s.logger.With(zap.String("poll_id", summary.PollID))
	start := s.now()

	for _, st := range s.stations {
		if ctx.Err() != nil {
			logger.Info("poll pass interrupted", zap.Error(ctx.Err()))
			break
		}
		switch s.pollStation(ctx, st, logger.With(zap.String("station_id", st.Identifier()))) {
		case OutcomeStored:
			summary.Stored++
		case OutcomeDuplicate:
			summary.Duplicates++
		case OutcomeFetchError:
			summary.FetchErrors++
		case OutcomeStoreError:
			summary.StoreErrors++
		}
	}

	end := s.now()
	summary.Duration = end.Sub(start)
	observability.PollPassDuration.Observe(summary.Duration.Seconds())
	observability.PollPassesTotal.Inc()
	lifecycle.RecordPassCompleted(end)

	logger.Info("poll pass completed",
		zap.Int("stored", summary.Stored),
		zap.Int("duplicates", summary.Duplicates),
		zap.Int("fetch_errors", summary.FetchErrors),
		zap.Int("store_errors", summary.StoreErrors),
		zap.Duration("duration", summary.Duration),
	)
	return summary
}

func (s *Scheduler) pollStation(ctx context.Context, st *station.Station, logger *zap.Logger) (outcome string) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("station poll panicked", zap.Any("panic", r), zap.Stack("stack"))
			outcome = OutcomeFetchError
		}
		observability.RecordPollOutcome(outcome)
		if outcome == OutcomeFetchError || outcome == OutcomeStoreError {
			traffic.RecordPollError()
		} else {
			traffic.RecordPollSuccess()
		}
	}()

	rec, err := st.FetchLatestObservation(ctx)
	if err != nil {
		var obsErr *station.ObservationError
		kind := station.KindTransport
		if errors.As(err, &obsErr) {
			kind = obsErr.Kind
		}
		logger.Warn("observation fetch failed", zap.String("kind", string(kind)), zap.Error(err))
		return OutcomeFetchError
	}
	observability.MarkStationObserved(st.Identifier(), s.now())
	s.cacheLatest(ctx, rec, logger)

	err = s.store.InsertObservation(ctx, rec)
	switch {
	case errors.Is(err, store.ErrDuplicateObservation):
		logger.Info("ignored duplicate observation", zap.String("timestamp_UTC", rec.TimestampUTC))
		return OutcomeDuplicate
	case err != nil:
		logger.Error("observation insert failed", zap.Error(err))
		return OutcomeStoreError
	}

	logger.Debug("observation stored", zap.String("timestamp_UTC", rec.TimestampUTC))
	if err := s.publisher.Publish(ctx, rec); err != nil {
		logger.Warn("observation publish failed", zap.Error(err))
	}
	return OutcomeStored
}

func (s *Scheduler) cacheLatest(ctx context.Context, rec models.ObservationRecord, logger *zap.Logger) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, rec.StationID, rec, s.cacheTTL); err != nil {
		observability.CacheErrorsTotal.WithLabelValues("set").Inc()
		logger.Warn("cache set failed", zap.Error(err))
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
