package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kjstillabower/station-collector/internal/cache"
	"github.com/kjstillabower/station-collector/internal/client"
	"github.com/kjstillabower/station-collector/internal/config"
	httphandler "github.com/kjstillabower/station-collector/internal/http"
	"github.com/kjstillabower/station-collector/internal/lifecycle"
	"github.com/kjstillabower/station-collector/internal/observability"
	"github.com/kjstillabower/station-collector/internal/scheduler"
	"github.com/kjstillabower/station-collector/internal/station"
	"github.com/kjstillabower/station-collector/internal/store"
)

func main() {
	logger, err := observability.NewLogger("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("config", zap.Error(err))
	}
	if logger, err = observability.NewLogger(cfg.LogLevel); err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()
	for _, w := range cfg.Warnings {
		logger.Warn("config", zap.String("warning", w))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	storeCfg := storeConfig(cfg.DB)
	openCtx, openCancel := context.WithTimeout(ctx, 30*time.Second)
	st, err := store.Open(openCtx, storeCfg)
	openCancel()
	if err != nil {
		logger.Fatal("storage", zap.String("driver", storeCfg.Driver), zap.Error(err))
	}
	logger.Info("storage connected", zap.String("driver", storeCfg.Driver),
		zap.String("station_table", storeCfg.StationTable), zap.String("observation_table", storeCfg.ObservationTable))

	latest, cacheCloser, err := buildCache(cfg.Cache)
	if err != nil {
		logger.Fatal("cache", zap.Error(err))
	}
	logger.Info("cache backend: "+cfg.Cache.Backend, zap.Duration("ttl", cfg.Cache.TTL))

	publisher, err := buildPublisher(ctx, cfg.Publish, logger)
	if err != nil {
		logger.Fatal("publisher", zap.Error(err))
	}
	logger.Info("publish backend: " + cfg.Publish.Backend)

	providerClient, err := client.NewProviderClient(cfg.UserAgent, cfg.ProviderTimeout)
	if err != nil {
		logger.Fatal("provider client", zap.Error(err))
	}
	stations := make([]*station.Station, 0, len(cfg.Stations))
	for _, id := range cfg.Stations {
		stations = append(stations, station.New(id, cfg.StationsURL, providerClient, logger))
	}

	warmCtx, warmCancel := context.WithTimeout(ctx, 30*time.Second)
	err = prepareStore(warmCtx, st, latest, cfg.Cache.TTL, cfg.Stations, logger)
	warmCancel()
	if err != nil {
		logger.Fatal("storage", zap.Error(err))
	}

	healthConfig := &httphandler.HealthConfig{
		Window:           cfg.HealthWindow,
		DegradedErrorPct: cfg.DegradedErrorPct,
		PollInterval:     cfg.PollInterval,
		StartTime:        time.Now(),
		StorePing:        st.Ping,
	}
	if p, ok := latest.(cache.Pinger); ok {
		healthConfig.CachePing = p.Ping
	}
	observability.RegisterWindowGauges(cfg.HealthWindow)

	var limiter *rate.Limiter
	if cfg.RateLimitRPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst)
	}
	handler := httphandler.NewHandler(st, latest, cfg.Cache.TTL, healthConfig, logger)
	srv := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      httphandler.NewRouter(handler, limiter, cfg.RequestTimeout, logger),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info("server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	sched := scheduler.New(stations, st, logger,
		scheduler.WithInterval(cfg.PollInterval),
		scheduler.WithCache(latest, cfg.Cache.TTL),
		scheduler.WithPublisher(publisher),
	)
	runErr := make(chan error, 1)
	go func() { runErr <- sched.Run(ctx) }()

	select {
	case err := <-runErr:
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Fatal("collector stopped", zap.Error(err))
		}
	case <-ctx.Done():
		<-runErr
	}
	stop()

	logger.Info("graceful shutdown triggered")
	lifecycle.SetShuttingDown(true)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	if err := httphandler.WaitForInFlight(shutdownCtx, 50*time.Millisecond); err != nil {
		logger.Warn("in-flight requests not completed", zap.Error(err), zap.Int64("remaining", httphandler.InFlightCount()))
	}

	if err := publisher.Close(); err != nil {
		logger.Error("publisher close", zap.Error(err))
	}
	if cacheCloser != nil {
		if err := cacheCloser(); err != nil {
			logger.Error("cache close", zap.Error(err))
		}
	}
	if err := st.Close(); err != nil {
		logger.Error("storage close", zap.Error(err))
	}
	logger.Info("shutdown complete")
	if err := observability.FlushTelemetry(context.Background(), logger); err != nil {
		fmt.Fprintf(os.Stderr, "telemetry flush: %v\n", err)
	}
}
