package store

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/kjstillabower/station-collector/internal/models"
)

func newTestStore(t *testing.T) *SQLStore {
	t.Helper()
	s, err := Open(context.Background(), Config{
		Driver:           DriverSQLite,
		Path:             ":memory:",
		StationTable:     "station",
		ObservationTable: "observation",
	})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	if err := s.EnsureTables(context.Background()); err != nil {
		t.Fatalf("EnsureTables() error = %v", err)
	}
	return s
}

func observation(stationID, ts string, tempC float64) models.ObservationRecord {
	return models.ObservationRecord{
		StationID:        stationID,
		TimestampUTC:     ts,
		TemperatureC:     tempC,
		TemperatureF:     tempC*9/5 + 32,
		DewpointC:        models.MissingValue,
		DewpointF:        models.MissingValue,
		Description:      "Clear",
		WindDirection:    180,
		WindSpeedKmH:     10,
		WindSpeedMiH:     6.213712,
		WindGustKmH:      models.MissingValue,
		WindGustMiH:      models.MissingValue,
		PressurePa:       101325,
		PressureInHg:     29.92,
		RelativeHumidity: 55,
	}
}

func TestEnsureTables_Idempotent(t *testing.T) {
	s := newTestStore(t)
	if err := s.EnsureTables(context.Background()); err != nil {
		t.Errorf("second EnsureTables() error = %v", err)
	}
}

func TestUpsertStation_Overwrites(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first := models.StationRecord{CallID: "KBOS", Name: "Boston", LatitudeDeg: 42.36, LongitudeDeg: -71.01, ElevationM: 6, URL: "https://api.example/stations/KBOS"}
	second := first
	second.Name = "Boston Logan"

	if err := s.UpsertStation(ctx, first); err != nil {
		t.Fatalf("UpsertStation(first) error = %v", err)
	}
	if err := s.UpsertStation(ctx, second); err != nil {
		t.Fatalf("UpsertStation(second) error = %v", err)
	}

	stations, err := s.ListStations(ctx)
	if err != nil {
		t.Fatalf("ListStations() error = %v", err)
	}
	if len(stations) != 1 {
		t.Fatalf("ListStations() returned %d rows, want 1", len(stations))
	}
	if stations[0] != second {
		t.Errorf("stored station = %+v, want %+v", stations[0], second)
	}
}

func TestInsertObservation_DuplicateKey(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	rec := observation("KBOS", "2024-01-15T12:00:00+00:00", 15)

	if err := s.InsertObservation(ctx, rec); err != nil {
		t.Fatalf("first InsertObservation() error = %v", err)
	}

	changed := rec
	changed.TemperatureC = 99
	err := s.InsertObservation(ctx, changed)
	if !errors.Is(err, ErrDuplicateObservation) {
		t.Fatalf("second InsertObservation() error = %v, want ErrDuplicateObservation", err)
	}

	got, err := s.ListObservations(ctx, "KBOS", 10)
	if err != nil {
		t.Fatalf("ListObservations() error = %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("rows = %d, want 1", len(got))
	}
	if got[0] != rec {
		t.Errorf("stored = %+v, want first insert %+v", got[0], rec)
	}
}

func TestInsertObservation_SentinelsRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	rec := observation("KSEA", "", models.MissingValue)
	rec.TemperatureF = models.MissingValue

	if err := s.InsertObservation(ctx, rec); err != nil {
		t.Fatalf("InsertObservation() error = %v", err)
	}
	got, err := s.LatestObservation(ctx, "KSEA")
	if err != nil {
		t.Fatalf("LatestObservation() error = %v", err)
	}
	if got != rec {
		t.Errorf("LatestObservation() = %+v, want %+v", got, rec)
	}
}

func TestInsertObservation_ClipsLongDescription(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	rec := observation("KBOS", "2024-01-15T12:00:00+00:00", 1)
	rec.Description = strings.Repeat("x", descriptionWidth+10)

	if err := s.InsertObservation(ctx, rec); err != nil {
		t.Fatalf("InsertObservation() error = %v", err)
	}
	got, err := s.LatestObservation(ctx, "KBOS")
	if err != nil {
		t.Fatalf("LatestObservation() error = %v", err)
	}
	if len(got.Description) != descriptionWidth {
		t.Errorf("description length = %d, want %d", len(got.Description), descriptionWidth)
	}
}

func TestListObservations_NewestFirstWithLimit(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	for i, ts := range []string{
		"2024-01-15T10:00:00+00:00",
		"2024-01-15T12:00:00+00:00",
		"2024-01-15T11:00:00+00:00",
	} {
		if err := s.InsertObservation(ctx, observation("KBOS", ts, float64(i))); err != nil {
			t.Fatalf("InsertObservation(%s) error = %v", ts, err)
		}
	}
	if err := s.InsertObservation(ctx, observation("KSEA", "2024-01-15T13:00:00+00:00", 0)); err != nil {
		t.Fatalf("InsertObservation(KSEA) error = %v", err)
	}

	got, err := s.ListObservations(ctx, "KBOS", 2)
	if err != nil {
		t.Fatalf("ListObservations() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if got[0].TimestampUTC != "2024-01-15T12:00:00+00:00" || got[1].TimestampUTC != "2024-01-15T11:00:00+00:00" {
		t.Errorf("order = %s, %s", got[0].TimestampUTC, got[1].TimestampUTC)
	}

	none, err := s.ListObservations(ctx, "KBOS", 0)
	if err != nil || len(none) != 0 {
		t.Errorf("ListObservations(limit=0) = %v, %v; want empty", none, err)
	}
}

func TestGetStation_NotFound(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.GetStation(context.Background(), "KNONE"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetStation() error = %v, want ErrNotFound", err)
	}
	if _, err := s.LatestObservation(context.Background(), "KNONE"); !errors.Is(err, ErrNotFound) {
		t.Errorf("LatestObservation() error = %v, want ErrNotFound", err)
	}
}

func TestGetStation_Found(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	rec := models.StationRecord{CallID: "KXYZ0", Name: "Test Site", LatitudeDeg: 42.36, LongitudeDeg: -71.05, ElevationM: 10, URL: "https://api.example/stations/KXYZ0"}
	if err := s.UpsertStation(ctx, rec); err != nil {
		t.Fatalf("UpsertStation() error = %v", err)
	}
	got, err := s.GetStation(ctx, "KXYZ0")
	if err != nil {
		t.Fatalf("GetStation() error = %v", err)
	}
	if got != rec {
		t.Errorf("GetStation() = %+v, want %+v", got, rec)
	}
}

func TestNewSQLStore_RejectsBadInput(t *testing.T) {
	tests := []struct {
		name, driver, stations, observations string
	}{
		{"unknown driver", "oracle", "station", "observation"},
		{"bad station table", DriverSQLite, "station;drop", "observation"},
		{"bad observation table", DriverSQLite, "station", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewSQLStore(nil, tt.driver, tt.stations, tt.observations); err == nil {
				t.Error("NewSQLStore() expected error, got nil")
			}
		})
	}
}

func TestPing(t *testing.T) {
	s := newTestStore(t)
	if err := s.Ping(context.Background()); err != nil {
		t.Errorf("Ping() error = %v", err)
	}
}
