package models

// StationRecord is the persisted snapshot of a station's identity and location.
// It is derived from the in-memory station on demand and never cached.
type StationRecord struct {
	CallID       string  `json:"call_id"`
	Name         string  `json:"name"`
	LatitudeDeg  float64 `json:"latitude_deg"`
	LongitudeDeg float64 `json:"longitude_deg"`
	ElevationM   float64 `json:"elevation_m"`
	URL          string  `json:"url"`
}
