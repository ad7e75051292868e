package validation

import (
	"errors"
	"regexp"
	"strings"
	"unicode"
)

// MaxStationIDLen matches the width of the station table's call_id column.
const MaxStationIDLen = 5

// ErrStationIDEmpty is returned when a station identifier is empty after trim.
var ErrStationIDEmpty = errors.New("station identifier is required")

// ErrStationIDTooLong is returned when a station identifier exceeds MaxStationIDLen.
var ErrStationIDTooLong = errors.New("station identifier too long")

// ErrStationIDInvalidChars is returned when a station identifier is not ASCII alphanumeric.
var ErrStationIDInvalidChars = errors.New("station identifier contains invalid characters")

// ErrTableNameInvalid is returned for table names that cannot be used unquoted in SQL.
var ErrTableNameInvalid = errors.New("invalid table name")

var tableNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]{0,63}$`)

// ValidateStationID trims the input and checks it is 1 to MaxStationIDLen
// ASCII letters or digits. Returns the trimmed identifier. Case is preserved;
// the provider's identifiers are upper-case.
func ValidateStationID(input string) (string, error) {
	s := strings.TrimSpace(input)
	if s == "" {
		return "", ErrStationIDEmpty
	}
	if len(s) > MaxStationIDLen {
		return "", ErrStationIDTooLong
	}
	for _, c := range s {
		if c > unicode.MaxASCII || !(unicode.IsLetter(c) || unicode.IsDigit(c)) {
			return "", ErrStationIDInvalidChars
		}
	}
	return s, nil
}

// ValidateTableName reports whether name is a plain SQL identifier. Table
// names are interpolated into DDL and queries, so nothing else is accepted.
func ValidateTableName(name string) error {
	if !tableNamePattern.MatchString(name) {
		return ErrTableNameInvalid
	}
	return nil
}
