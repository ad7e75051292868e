package units

import (
	"math"
	"testing"

	"github.com/kjstillabower/station-collector/internal/models"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestConversions(t *testing.T) {
	tests := []struct {
		name string
		fn   func(float64) float64
		in   float64
		want float64
	}{
		{"freezing point", Fahrenheit, 0.0, 32.0},
		{"fifteen celsius", Fahrenheit, 15.0, 59.0},
		{"below zero", Fahrenheit, -40.0, -40.0},
		{"ten km/h", MilesPerHour, 10.0, 6.213712},
		{"zero km/h", MilesPerHour, 0.0, 0.0},
		{"standard pressure", InchesHg, 100000.0, 29.529983071445},
		{"ten meters", Feet, 10.0, 32.8084},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.fn(tt.in); !almostEqual(got, tt.want) {
				t.Errorf("conversion(%v) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestConversions_MissingValuePassesThrough(t *testing.T) {
	for name, fn := range map[string]func(float64) float64{
		"Fahrenheit":   Fahrenheit,
		"MilesPerHour": MilesPerHour,
		"InchesHg":     InchesHg,
		"Feet":         Feet,
	} {
		if got := fn(models.MissingValue); got != models.MissingValue {
			t.Errorf("%s(MissingValue) = %v, want %v", name, got, models.MissingValue)
		}
	}
}
