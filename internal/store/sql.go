package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/kjstillabower/station-collector/internal/models"
	"github.com/kjstillabower/station-collector/internal/validation"
)

// SQLStore implements Store and Reader on a *sql.DB.
type SQLStore struct {
	db               *sql.DB
	driver           string
	stationTable     string
	observationTable string

	upsertStationSQL     string
	insertObservationSQL string
}

var (
	_ Store  = (*SQLStore)(nil)
	_ Reader = (*SQLStore)(nil)
)

// NewSQLStore wraps db. Table names are validated because they are
// interpolated into every statement.
func NewSQLStore(db *sql.DB, driver, stationTable, observationTable string) (*SQLStore, error) {
	switch driver {
	case DriverSQLite, DriverPostgres, DriverMySQL:
	default:
		return nil, fmt.Errorf("unsupported driver %q", driver)
	}
	for _, table := range []string{stationTable, observationTable} {
		if err := validation.ValidateTableName(table); err != nil {
			return nil, fmt.Errorf("table %q: %w", table, err)
		}
	}

	return &SQLStore{
		db:                   db,
		driver:               driver,
		stationTable:         stationTable,
		observationTable:     observationTable,
		upsertStationSQL:     upsertStationQuery(driver, stationTable),
		insertObservationSQL: rebind(driver, fmt.Sprintf("INSERT INTO %s (%s) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)", observationTable, observationColumns)),
	}, nil
}

func (s *SQLStore) EnsureTables(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, stationDDL(s.stationTable)); err != nil {
		return fmt.Errorf("create table %s: %w", s.stationTable, err)
	}
	if _, err := s.db.ExecContext(ctx, observationDDL(s.observationTable)); err != nil {
		return fmt.Errorf("create table %s: %w", s.observationTable, err)
	}
	return nil
}

func (s *SQLStore) UpsertStation(ctx context.Context, rec models.StationRecord) error {
	_, err := s.db.ExecContext(ctx, s.upsertStationSQL,
		rec.CallID,
		clip(rec.Name, nameWidth),
		rec.LatitudeDeg,
		rec.LongitudeDeg,
		rec.ElevationM,
		clip(rec.URL, urlWidth),
	)
	if err != nil {
		return fmt.Errorf("upsert station %s: %w", rec.CallID, err)
	}
	return nil
}

func (s *SQLStore) InsertObservation(ctx context.Context, rec models.ObservationRecord) error {
	_, err := s.db.ExecContext(ctx, s.insertObservationSQL,
		rec.StationID,
		clip(rec.TimestampUTC, timestampWidth),
		rec.TemperatureC,
		rec.TemperatureF,
		rec.DewpointC,
		rec.DewpointF,
		clip(rec.Description, descriptionWidth),
		rec.WindDirection,
		rec.WindSpeedKmH,
		rec.WindSpeedMiH,
		rec.WindGustKmH,
		rec.WindGustMiH,
		rec.PressurePa,
		rec.PressureInHg,
		rec.RelativeHumidity,
	)
	if err != nil {
		if isDuplicateKey(err) {
			return fmt.Errorf("insert observation %s@%s: %w: %v", rec.StationID, rec.TimestampUTC, ErrDuplicateObservation, err)
		}
		return fmt.Errorf("insert observation %s@%s: %w", rec.StationID, rec.TimestampUTC, err)
	}
	return nil
}

func (s *SQLStore) ListStations(ctx context.Context) ([]models.StationRecord, error) {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf("SELECT %s FROM %s ORDER BY call_id", stationColumns, s.stationTable))
	if err != nil {
		return nil, fmt.Errorf("list stations: %w", err)
	}
	defer rows.Close()

	stations := []models.StationRecord{}
	for rows.Next() {
		rec, err := scanStation(rows)
		if err != nil {
			return nil, fmt.Errorf("list stations: %w", err)
		}
		stations = append(stations, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list stations: %w", err)
	}
	return stations, nil
}

func (s *SQLStore) GetStation(ctx context.Context, callID string) (models.StationRecord, error) {
	q := rebind(s.driver, fmt.Sprintf("SELECT %s FROM %s WHERE call_id = ?", stationColumns, s.stationTable))
	rec, err := scanStation(s.db.QueryRowContext(ctx, q, callID))
	if errors.Is(err, sql.ErrNoRows) {
		return models.StationRecord{}, fmt.Errorf("station %s: %w", callID, ErrNotFound)
	}
	if err != nil {
		return models.StationRecord{}, fmt.Errorf("get station %s: %w", callID, err)
	}
	return rec, nil
}

func (s *SQLStore) LatestObservation(ctx context.Context, stationID string) (models.ObservationRecord, error) {
	obs, err := s.ListObservations(ctx, stationID, 1)
	if err != nil {
		return models.ObservationRecord{}, err
	}
	if len(obs) == 0 {
		return models.ObservationRecord{}, fmt.Errorf("observations for %s: %w", stationID, ErrNotFound)
	}
	return obs[0], nil
}

func (s *SQLStore) ListObservations(ctx context.Context, stationID string, limit int) ([]models.ObservationRecord, error) {
	if limit <= 0 {
		return []models.ObservationRecord{}, nil
	}
	q := rebind(s.driver, fmt.Sprintf(
		"SELECT %s FROM %s WHERE station_id = ? ORDER BY timestamp_UTC DESC LIMIT ?",
		observationColumns, s.observationTable))

	rows, err := s.db.QueryContext(ctx, q, stationID, limit)
	if err != nil {
		return nil, fmt.Errorf("list observations %s: %w", stationID, err)
	}
	defer rows.Close()

	out := []models.ObservationRecord{}
	for rows.Next() {
		var r models.ObservationRecord
		if err := rows.Scan(
			&r.StationID, &r.TimestampUTC,
			&r.TemperatureC, &r.TemperatureF,
			&r.DewpointC, &r.DewpointF,
			&r.Description, &r.WindDirection,
			&r.WindSpeedKmH, &r.WindSpeedMiH,
			&r.WindGustKmH, &r.WindGustMiH,
			&r.PressurePa, &r.PressureInHg,
			&r.RelativeHumidity,
		); err != nil {
			return nil, fmt.Errorf("list observations %s: %w", stationID, err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list observations %s: %w", stationID, err)
	}
	return out, nil
}

// Ping checks database connectivity.
func (s *SQLStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanStation(row rowScanner) (models.StationRecord, error) {
	var r models.StationRecord
	err := row.Scan(&r.CallID, &r.Name, &r.LatitudeDeg, &r.LongitudeDeg, &r.ElevationM, &r.URL)
	return r, err
}
