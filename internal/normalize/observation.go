package normalize

import (
	"github.com/kjstillabower/station-collector/internal/models"
	"github.com/kjstillabower/station-collector/internal/units"
)

// Provider field names under properties.
const (
	FieldTemperature        = "temperature"
	FieldDewpoint           = "dewpoint"
	FieldWindDirection      = "windDirection"
	FieldWindSpeed          = "windSpeed"
	FieldWindGust           = "windGust"
	FieldBarometricPressure = "barometricPressure"
	FieldRelativeHumidity   = "relativeHumidity"
	FieldTextDescription    = "textDescription"
	FieldTimestamp          = "timestamp"
)

// Reading is an observation as reported by the provider. Numeric fields are
// nil when the provider omitted them or sent a non-numeric value.
type Reading struct {
	Timestamp        string
	Description      string
	TemperatureC     *float64
	DewpointC        *float64
	WindDirection    *float64
	WindSpeedKmH     *float64
	WindGustKmH      *float64
	PressurePa       *float64
	RelativeHumidity *float64

	// Missing lists the provider fields that fell back to a default.
	Missing []string
}

// ParseObservation reads the observation fields of doc.
func ParseObservation(doc Document) Reading {
	var r Reading

	measure := func(field string) *float64 {
		if v, ok := doc.Float("properties", field, "value"); ok {
			return &v
		}
		r.Missing = append(r.Missing, field)
		return nil
	}
	text := func(field string) string {
		if s, ok := doc.String("properties", field); ok {
			return s
		}
		r.Missing = append(r.Missing, field)
		return ""
	}

	r.Timestamp = text(FieldTimestamp)
	r.TemperatureC = measure(FieldTemperature)
	r.DewpointC = measure(FieldDewpoint)
	r.Description = text(FieldTextDescription)
	r.WindDirection = measure(FieldWindDirection)
	r.WindSpeedKmH = measure(FieldWindSpeed)
	r.WindGustKmH = measure(FieldWindGust)
	r.PressurePa = measure(FieldBarometricPressure)
	r.RelativeHumidity = measure(FieldRelativeHumidity)
	return r
}

// Record projects the reading onto a storage record, replacing absent
// measurements with models.MissingValue.
func (r Reading) Record(stationID string) models.ObservationRecord {
	tempC := orMissing(r.TemperatureC)
	dewC := orMissing(r.DewpointC)
	speed := orMissing(r.WindSpeedKmH)
	gust := orMissing(r.WindGustKmH)
	pa := orMissing(r.PressurePa)

	return models.ObservationRecord{
		StationID:        stationID,
		TimestampUTC:     r.Timestamp,
		TemperatureC:     tempC,
		TemperatureF:     units.Fahrenheit(tempC),
		DewpointC:        dewC,
		DewpointF:        units.Fahrenheit(dewC),
		Description:      r.Description,
		WindDirection:    orMissing(r.WindDirection),
		WindSpeedKmH:     speed,
		WindSpeedMiH:     units.MilesPerHour(speed),
		WindGustKmH:      gust,
		WindGustMiH:      units.MilesPerHour(gust),
		PressurePa:       pa,
		PressureInHg:     units.InchesHg(pa),
		RelativeHumidity: orMissing(r.RelativeHumidity),
	}
}

func orMissing(v *float64) float64 {
	if v == nil {
		return models.MissingValue
	}
	return *v
}
