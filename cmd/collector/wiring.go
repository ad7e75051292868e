package main

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/station-collector/internal/cache"
	"github.com/kjstillabower/station-collector/internal/config"
	"github.com/kjstillabower/station-collector/internal/publish"
	"github.com/kjstillabower/station-collector/internal/store"
)

func storeConfig(db config.DBConfig) store.Config {
	return store.Config{
		Driver:           db.Driver,
		DSN:              db.DSN,
		Host:             db.Host,
		Port:             db.Port,
		User:             db.User,
		Password:         db.Password,
		Database:         db.Database,
		SSLMode:          db.SSLMode,
		Path:             db.Path,
		StationTable:     db.StationTable,
		ObservationTable: db.ObservationTable,
		MaxOpenConns:     db.MaxOpenConns,
		MaxIdleConns:     db.MaxIdleConns,
		ConnMaxLifetime:  db.ConnMaxLifetime,
	}
}

// buildCache returns the latest-observation cache and, for remote backends,
// a function that closes it.
func buildCache(cfg config.CacheConfig) (cache.Cache, func() error, error) {
	switch cfg.Backend {
	case "memcached":
		mc, err := cache.NewMemcachedCache(cfg.MemcachedAddrs, cfg.MemcachedTimeout, cfg.MemcachedMaxIdleConns)
		if err != nil {
			return nil, nil, fmt.Errorf("memcached cache: %w", err)
		}
		return mc, mc.Close, nil
	case "redis":
		rc, err := cache.NewRedisCache(cfg.RedisURL)
		if err != nil {
			return nil, nil, fmt.Errorf("redis cache: %w", err)
		}
		return rc, rc.Close, nil
	default:
		return cache.NewInMemoryCache(), nil, nil
	}
}

const defaultConnectTimeout = 10 * time.Second

// prepareStore creates the tables if missing and then fills latest from
// storage. Only table creation is fatal; a warming failure is logged.
func prepareStore(ctx context.Context, st *store.SQLStore, latest cache.Cache, ttl time.Duration, stationIDs []string, logger *zap.Logger) error {
	if err := st.EnsureTables(ctx); err != nil {
		return fmt.Errorf("ensure tables: %w", err)
	}
	if err := cache.NewWarmer(st, latest, ttl, logger).Warm(ctx, stationIDs); err != nil {
		logger.Warn("cache warming failed", zap.Error(err))
	}
	return nil
}

func buildPublisher(ctx context.Context, cfg config.PublishConfig, logger *zap.Logger) (publish.Publisher, error) {
	switch cfg.Backend {
	case publish.BackendMQTT:
		p := publish.NewMQTTPublisher(publish.MQTTConfig{
			Broker:      cfg.MQTTBroker,
			ClientID:    cfg.MQTTClientID,
			TopicPrefix: cfg.MQTTTopicPrefix,
			QoS:         byte(cfg.MQTTQoS),
			Timeout:     cfg.Timeout,
		}, logger)
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = defaultConnectTimeout
		}
		connectCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		if err := p.Connect(connectCtx); err != nil {
			_ = p.Close()
			return nil, fmt.Errorf("mqtt connect: %w", err)
		}
		return p, nil
	case publish.BackendKafka:
		p, err := publish.NewKafkaPublisher(publish.KafkaConfig{
			Brokers: cfg.KafkaBrokers,
			Topic:   cfg.KafkaTopic,
			Timeout: cfg.Timeout,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("kafka publisher: %w", err)
		}
		return p, nil
	default:
		return publish.Noop{}, nil
	}
}
