package station

import (
	"errors"
	"fmt"
)

// ObservationErrorKind distinguishes why an observation fetch failed.
type ObservationErrorKind string

const (
	KindTransport ObservationErrorKind = "transport"
	KindBody      ObservationErrorKind = "body"
	KindParse     ObservationErrorKind = "parse"
)

// AcquisitionError is returned when station metadata could not be fetched.
// The station's state is left unchanged.
type AcquisitionError struct {
	StationID string
	Err       error
}

func (e *AcquisitionError) Error() string {
	return fmt.Sprintf("station %s: fetch metadata: %v", e.StationID, e.Err)
}

func (e *AcquisitionError) Unwrap() error { return e.Err }

// MetadataParseError is returned when a metadata body is not valid JSON.
// Without metadata no station record can be stored, so the collector treats
// it as fatal.
type MetadataParseError struct {
	StationID string
	Err       error
}

func (e *MetadataParseError) Error() string {
	return fmt.Sprintf("station %s: parse metadata: %v", e.StationID, e.Err)
}

func (e *MetadataParseError) Unwrap() error { return e.Err }

// ObservationError is returned by FetchLatestObservation. It never stops the
// polling loop.
type ObservationError struct {
	StationID string
	Kind      ObservationErrorKind
	Err       error
}

func (e *ObservationError) Error() string {
	return fmt.Sprintf("station %s: observation %s failure: %v", e.StationID, e.Kind, e.Err)
}

func (e *ObservationError) Unwrap() error { return e.Err }

// IsFatal reports whether err must stop the collector.
func IsFatal(err error) bool {
	var parseErr *MetadataParseError
	return errors.As(err, &parseErr)
}
