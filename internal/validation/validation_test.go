package validation

import (
	"errors"
	"testing"
)

func TestValidateStationID(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr error
	}{
		{"four letters", "KBOS", "KBOS", nil},
		{"five with digit", "KXYZ0", "KXYZ0", nil},
		{"trimmed", "  KSEA \n", "KSEA", nil},
		{"single char", "K", "K", nil},
		{"empty", "", "", ErrStationIDEmpty},
		{"whitespace only", "   ", "", ErrStationIDEmpty},
		{"too long", "KBOSTN", "", ErrStationIDTooLong},
		{"slash", "KB/S", "", ErrStationIDInvalidChars},
		{"inner space", "K BS", "", ErrStationIDInvalidChars},
		{"sql", "K';--", "", ErrStationIDInvalidChars},
		{"non-ascii letter", "KÖB", "", ErrStationIDInvalidChars},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ValidateStationID(tt.input)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("ValidateStationID(%q) error = %v, want %v", tt.input, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ValidateStationID(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestValidateTableName(t *testing.T) {
	tests := []struct {
		name  string
		input string
		ok    bool
	}{
		{"plain", "station", true},
		{"underscore prefix", "_obs", true},
		{"mixed case digits", "Weather_Obs2", true},
		{"empty", "", false},
		{"leading digit", "1station", false},
		{"hyphen", "weather-obs", false},
		{"injection", "station; DROP TABLE x", false},
		{"schema qualified", "public.station", false},
		{"too long", "a234567890123456789012345678901234567890123456789012345678901234x", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateTableName(tt.input)
			if (err == nil) != tt.ok {
				t.Errorf("ValidateTableName(%q) error = %v, want ok=%v", tt.input, err, tt.ok)
			}
		})
	}
}
