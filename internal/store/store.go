// Package store persists station metadata and observations in a SQL
// database. sqlite3, postgres and mysql are supported.
package store

import (
	"context"
	"errors"

	"github.com/kjstillabower/station-collector/internal/models"
)

var (
	// ErrDuplicateObservation is returned by InsertObservation when a row
	// with the same (station_id, timestamp_UTC) already exists.
	ErrDuplicateObservation = errors.New("duplicate observation")

	ErrNotFound = errors.New("not found")
)

// Store is the write side used by the polling pipeline.
type Store interface {
	// EnsureTables creates both tables if they do not exist.
	EnsureTables(ctx context.Context) error
	// UpsertStation inserts or replaces the row keyed by call_id.
	UpsertStation(ctx context.Context, rec models.StationRecord) error
	// InsertObservation appends rec. A key collision returns an error
	// wrapping ErrDuplicateObservation and leaves the stored row untouched.
	InsertObservation(ctx context.Context, rec models.ObservationRecord) error
}

// Reader is the query side used by the HTTP API and cache warming.
type Reader interface {
	ListStations(ctx context.Context) ([]models.StationRecord, error)
	GetStation(ctx context.Context, callID string) (models.StationRecord, error)
	LatestObservation(ctx context.Context, stationID string) (models.ObservationRecord, error)
	// ListObservations returns up to limit observations, newest first.
	ListObservations(ctx context.Context, stationID string, limit int) ([]models.ObservationRecord, error)
}
