package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/kjstillabower/station-collector/internal/cache"
	"github.com/kjstillabower/station-collector/internal/lifecycle"
	"github.com/kjstillabower/station-collector/internal/models"
	"github.com/kjstillabower/station-collector/internal/observability"
	"github.com/kjstillabower/station-collector/internal/store"
	"github.com/kjstillabower/station-collector/internal/traffic"
	"github.com/kjstillabower/station-collector/internal/validation"
)

const (
	defaultObservationLimit = 24
	maxObservationLimit     = 500

	// sharedReadTimeout bounds a coalesced storage read, which outlives the
	// request that started it.
	sharedReadTimeout = 5 * time.Second
)

// HealthConfig holds thresholds and dependency probes for the health handler.
type HealthConfig struct {
	// Window is the sliding window over which the poll error rate is computed.
	Window           time.Duration
	DegradedErrorPct int
	// PollInterval is the configured sleep between passes. A pass older than
	// three intervals marks the pipeline stale.
	PollInterval time.Duration
	StartTime    time.Time
	StorePing    func(ctx context.Context) error
	// CachePing, when set, is called to check cache reachability.
	CachePing func(ctx context.Context) error
}

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	reader           store.Reader
	latest           cache.Cache
	cacheTTL         time.Duration
	healthConfig     *HealthConfig
	logger           *zap.Logger
	coalesce         singleflight.Group
	healthStatusMu   sync.Mutex
	healthStatusPrev string
}

// NewHandler returns a new Handler. latest may be nil, in which case the
// latest-observation endpoint always reads from storage.
func NewHandler(reader store.Reader, latest cache.Cache, cacheTTL time.Duration, healthConfig *HealthConfig, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		reader:       reader,
		latest:       latest,
		cacheTTL:     cacheTTL,
		healthConfig: healthConfig,
		logger:       logger,
	}
}

// ListStations handles GET /stations.
func (h *Handler) ListStations(w http.ResponseWriter, r *http.Request) {
	stations, err := h.reader.ListStations(r.Context())
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	if stations == nil {
		stations = []models.StationRecord{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"stations": stations})
}

// GetStation handles GET /stations/{id}.
func (h *Handler) GetStation(w http.ResponseWriter, r *http.Request) {
	id, ok := stationID(w, r)
	if !ok {
		return
	}
	rec, err := h.reader.GetStation(r.Context(), id)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// ListObservations handles GET /stations/{id}/observations?limit=N, newest first.
func (h *Handler) ListObservations(w http.ResponseWriter, r *http.Request) {
	id, ok := stationID(w, r)
	if !ok {
		return
	}
	limit := defaultObservationLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > maxObservationLimit {
			writeError(w, r, http.StatusBadRequest, "INVALID_LIMIT", "limit must be between 1 and "+strconv.Itoa(maxObservationLimit))
			return
		}
		limit = n
	}
	obs, err := h.reader.ListObservations(r.Context(), id, limit)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	if obs == nil {
		obs = []models.ObservationRecord{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"station_id":   id,
		"observations": obs,
	})
}

// GetLatestObservation handles GET /stations/{id}/observations/latest.
// The cache is consulted first; a miss falls back to storage and refills it.
func (h *Handler) GetLatestObservation(w http.ResponseWriter, r *http.Request) {
	id, ok := stationID(w, r)
	if !ok {
		return
	}
	ctx := r.Context()
	logger := requestLogger(r, h.logger)

	if h.latest != nil {
		rec, hit, err := h.latest.Get(ctx, id)
		switch {
		case err != nil:
			observability.CacheErrorsTotal.WithLabelValues("get").Inc()
			logger.Warn("cache get failed", zap.Error(err))
		case hit:
			observability.CacheHitsTotal.WithLabelValues(cacheType(h.latest)).Inc()
			writeJSON(w, http.StatusOK, rec)
			return
		}
	}

	// Concurrent misses for one station share a single storage read. The read
	// is detached from the request that started it so a caller that goes away
	// does not fail the others waiting on the same key.
	ch := h.coalesce.DoChan(id, func() (interface{}, error) {
		sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sharedReadTimeout)
		defer cancel()
		rec, err := h.reader.LatestObservation(sctx, id)
		if err != nil {
			return nil, err
		}
		if h.latest != nil {
			if err := h.latest.Set(sctx, id, rec, h.cacheTTL); err != nil {
				observability.CacheErrorsTotal.WithLabelValues("set").Inc()
				logger.Warn("cache set failed", zap.Error(err))
			}
		}
		return rec, nil
	})
	select {
	case <-ctx.Done():
		writeStoreError(w, r, ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			writeStoreError(w, r, res.Err)
			return
		}
		writeJSON(w, http.StatusOK, res.Val.(models.ObservationRecord))
	}
}

func cacheType(c cache.Cache) string {
	switch c.(type) {
	case *cache.MemcachedCache:
		return "memcached"
	case *cache.RedisCache:
		return "redis"
	default:
		return "in_memory"
	}
}

func stationID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id, err := validation.ValidateStationID(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_STATION", err.Error())
		return "", false
	}
	return id, true
}

// healthResult holds the computed health status and metadata for logging.
type healthResult struct {
	status     string
	statusCode int
	reason     string
	checks     map[string]string
}

// GetHealth handles GET /health.
func (h *Handler) GetHealth(w http.ResponseWriter, r *http.Request) {
	result := h.computeHealthStatus(r.Context())

	h.healthStatusMu.Lock()
	prev := h.healthStatusPrev
	if prev != "" && prev != result.status {
		h.logger.Info("health status transition",
			zap.String("previous_status", prev),
			zap.String("current_status", result.status),
			zap.String("reason", result.reason))
	}
	h.healthStatusPrev = result.status
	h.healthStatusMu.Unlock()

	resp := map[string]interface{}{
		"status":    result.status,
		"service":   "station-collector",
		"version":   "dev",
		"phase":     lifecycle.CurrentPhase().String(),
		"checks":    result.checks,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	if result.reason != "" {
		resp["reason"] = result.reason
	}
	if at, ok := lifecycle.LastPassCompleted(); ok {
		resp["lastPassCompleted"] = at.UTC().Format(time.RFC3339)
	}
	writeJSON(w, result.statusCode, resp)
}

// computeHealthStatus evaluates conditions in priority order:
// shutting-down > storage unreachable > starting > stale > degraded > healthy.
// Cache reachability is reported but never changes the status.
func (h *Handler) computeHealthStatus(ctx context.Context) healthResult {
	checks := make(map[string]string)
	if lifecycle.IsShuttingDown() {
		return healthResult{"shutting-down", http.StatusServiceUnavailable, "signal", checks}
	}
	if h.healthConfig == nil {
		return healthResult{"healthy", http.StatusOK, "", checks}
	}

	if h.healthConfig.CachePing != nil {
		checks["cache"] = probe(ctx, h.healthConfig.CachePing)
	}
	if h.healthConfig.StorePing != nil {
		checks["storage"] = probe(ctx, h.healthConfig.StorePing)
		if checks["storage"] != "healthy" {
			return healthResult{"degraded", http.StatusServiceUnavailable, "storage_unreachable", checks}
		}
	}

	if lifecycle.CurrentPhase() != lifecycle.PhaseSteadyPolling {
		checks["pipeline"] = lifecycle.CurrentPhase().String()
		return healthResult{"starting", http.StatusServiceUnavailable, "pipeline_not_polling", checks}
	}
	checks["pipeline"] = "healthy"

	if h.healthConfig.PollInterval > 0 {
		if at, ok := lifecycle.LastPassCompleted(); ok && time.Since(at) > 3*h.healthConfig.PollInterval {
			checks["pipeline"] = "stale"
			return healthResult{"degraded", http.StatusServiceUnavailable, "poll_stale", checks}
		}
	}

	if h.healthConfig.Window > 0 && h.healthConfig.DegradedErrorPct > 0 {
		errs, total := traffic.PollErrorRate(h.healthConfig.Window)
		if total > 0 && float64(errs)*100/float64(total) >= float64(h.healthConfig.DegradedErrorPct) {
			checks["provider"] = "unhealthy"
			return healthResult{"degraded", http.StatusServiceUnavailable, "error_rate_breach", checks}
		}
		checks["provider"] = "healthy"
	}
	return healthResult{"healthy", http.StatusOK, "", checks}
}

func probe(ctx context.Context, ping func(context.Context) error) string {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if ping(ctx) != nil {
		return "unhealthy"
	}
	return "healthy"
}

// writeJSON writes a JSON response with the specified HTTP status code.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes an error response in the standard error format with code, message,
// and requestId (correlation ID) if available in request context.
func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	writeJSON(w, status, map[string]interface{}{
		"error": map[string]string{
			"code":      code,
			"message":   message,
			"requestId": correlationID(r),
		},
	})
}

// writeStoreError maps storage errors to 404 or 503.
func writeStoreError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, r, http.StatusNotFound, "NOT_FOUND", "no data for station")
		return
	}
	if errors.Is(err, context.DeadlineExceeded) {
		writeError(w, r, http.StatusGatewayTimeout, "TIMEOUT", "storage query timed out")
		return
	}
	writeError(w, r, http.StatusServiceUnavailable, "STORAGE_UNAVAILABLE", "Unable to read stored data")
	requestLogger(r, nil).Warn("storage read failed", zap.Error(err))
}
