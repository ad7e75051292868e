// Package units converts provider measurements into the derived units stored
// alongside them. Every conversion maps models.MissingValue to itself.
package units

import "github.com/kjstillabower/station-collector/internal/models"

const (
	FeetPerMeter      = 3.28084
	MilesPerKilometer = 0.6213712
	InchesHgPerPascal = 0.00029529983071445
)

// Fahrenheit converts degrees Celsius to degrees Fahrenheit.
func Fahrenheit(celsius float64) float64 {
	if celsius == models.MissingValue {
		return models.MissingValue
	}
	return celsius*9/5 + 32
}

// MilesPerHour converts km/h to mi/h.
func MilesPerHour(kmh float64) float64 {
	if kmh == models.MissingValue {
		return models.MissingValue
	}
	return kmh * MilesPerKilometer
}

// InchesHg converts pascals to inches of mercury.
func InchesHg(pa float64) float64 {
	if pa == models.MissingValue {
		return models.MissingValue
	}
	return pa * InchesHgPerPascal
}

// Feet converts meters to feet.
func Feet(meters float64) float64 {
	if meters == models.MissingValue {
		return models.MissingValue
	}
	return meters * FeetPerMeter
}
