// Package station models a single provider monitoring station: its identity,
// the endpoints derived from it and the metadata and raw payloads from its
// most recent fetches.
package station

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/kjstillabower/station-collector/internal/client"
	"github.com/kjstillabower/station-collector/internal/models"
	"github.com/kjstillabower/station-collector/internal/normalize"
	"github.com/kjstillabower/station-collector/internal/units"
)

// rawLogLimit bounds how much of an unparseable body is logged.
const rawLogLimit = 512

// Getter fetches a provider resource. *client.ProviderClient implements it.
type Getter interface {
	Get(ctx context.Context, endpoint client.Endpoint, url string) ([]byte, error)
}

// Station is one configured monitoring point. Fetch methods are meant to be
// called from one goroutine; accessors may be called concurrently.
type Station struct {
	identifier     string
	metadataURL    string
	observationURL string

	getter Getter
	logger *zap.Logger

	mu             sync.RWMutex
	name           string
	latitude       float64
	longitude      float64
	elevationM     float64
	rawMetadata    []byte
	rawObservation []byte
}

// New builds a station. baseURL is used verbatim as the prefix of the
// identifier, so it normally ends in a slash.
func New(identifier, baseURL string, getter Getter, logger *zap.Logger) *Station {
	if logger == nil {
		logger = zap.NewNop()
	}
	metadataURL := baseURL + identifier
	return &Station{
		identifier:     identifier,
		metadataURL:    metadataURL,
		observationURL: metadataURL + "/observations/latest",
		getter:         getter,
		logger:         logger.With(zap.String("station_id", identifier)),
	}
}

func (s *Station) Identifier() string     { return s.identifier }
func (s *Station) MetadataURL() string    { return s.metadataURL }
func (s *Station) ObservationURL() string { return s.observationURL }

func (s *Station) Name() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.name
}

func (s *Station) Latitude() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.latitude
}

func (s *Station) Longitude() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.longitude
}

func (s *Station) ElevationMeters() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.elevationM
}

// ElevationFeet is derived from ElevationMeters on every call.
func (s *Station) ElevationFeet() float64 {
	return units.Feet(s.ElevationMeters())
}

// RawMetadata returns the body of the last metadata response.
func (s *Station) RawMetadata() []byte {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rawMetadata
}

// RawObservation returns the body of the last observation response.
func (s *Station) RawObservation() []byte {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rawObservation
}

// Record projects the current state for persistence.
func (s *Station) Record() models.StationRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return models.StationRecord{
		CallID:       s.identifier,
		Name:         s.name,
		LatitudeDeg:  s.latitude,
		LongitudeDeg: s.longitude,
		ElevationM:   s.elevationM,
		URL:          s.metadataURL,
	}
}

// FetchMetadata fetches and applies the station's metadata. All four
// metadata fields are replaced together from one document.
//
// Errors are *AcquisitionError when nothing usable was received and
// *MetadataParseError when the body is not JSON.
func (s *Station) FetchMetadata(ctx context.Context) error {
	body, err := s.getter.Get(ctx, client.EndpointMetadata, s.metadataURL)
	if body != nil {
		s.mu.Lock()
		s.rawMetadata = body
		s.mu.Unlock()
	}
	if err != nil {
		return &AcquisitionError{StationID: s.identifier, Err: err}
	}

	doc, err := normalize.Parse(body)
	if err != nil {
		s.logger.Debug("unparseable metadata body", zap.ByteString("raw", truncate(body)))
		return &MetadataParseError{StationID: s.identifier, Err: err}
	}

	meta := normalize.ParseMetadata(doc, s.identifier)
	if meta.NameFallback {
		s.logger.Warn("station name missing, using identifier")
	}
	if meta.Latitude == 0.0 {
		s.logger.Warn("latitude is 0.0, may be missing from metadata")
	}
	if meta.Longitude == 0.0 {
		s.logger.Warn("longitude is 0.0, may be missing from metadata")
	}

	s.mu.Lock()
	s.name = meta.Name
	s.latitude = meta.Latitude
	s.longitude = meta.Longitude
	s.elevationM = meta.ElevationM
	s.mu.Unlock()
	return nil
}

// FetchLatestObservation fetches the station's most recent observation.
// Every failure is an *ObservationError.
func (s *Station) FetchLatestObservation(ctx context.Context) (models.ObservationRecord, error) {
	body, err := s.getter.Get(ctx, client.EndpointObservation, s.observationURL)
	if body != nil {
		s.mu.Lock()
		s.rawObservation = body
		s.mu.Unlock()
	}
	if err != nil {
		kind := KindTransport
		if errors.Is(err, client.ErrUpstreamStatus) || errors.Is(err, client.ErrBodyRead) {
			kind = KindBody
		}
		return models.ObservationRecord{}, &ObservationError{StationID: s.identifier, Kind: kind, Err: err}
	}

	doc, err := normalize.Parse(body)
	if err != nil {
		s.logger.Debug("unparseable observation body", zap.ByteString("raw", truncate(body)))
		return models.ObservationRecord{}, &ObservationError{StationID: s.identifier, Kind: KindParse, Err: err}
	}

	reading := normalize.ParseObservation(doc)
	if len(reading.Missing) > 0 {
		s.logger.Warn("observation fields missing, using defaults", zap.Strings("fields", reading.Missing))
	}
	return reading.Record(s.identifier), nil
}

func truncate(b []byte) []byte {
	if len(b) > rawLogLimit {
		return b[:rawLogLimit]
	}
	return b
}
