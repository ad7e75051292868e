package normalize

// Metadata is the station description extracted from a metadata document.
type Metadata struct {
	Name         string
	NameFallback bool
	Latitude     float64
	Longitude    float64
	ElevationM   float64
}

// StationName reads properties.name. When it is absent, fallback is returned
// and the second result is true.
func StationName(doc Document, fallback string) (string, bool) {
	if name, ok := doc.String("properties", "name"); ok {
		return name, false
	}
	return fallback, true
}

// Longitude reads geometry.coordinates[0], defaulting to 0.0.
func Longitude(doc Document) float64 {
	v, _ := doc.Float("geometry", "coordinates", 0)
	return v
}

// Latitude reads geometry.coordinates[1], defaulting to 0.0.
func Latitude(doc Document) float64 {
	v, _ := doc.Float("geometry", "coordinates", 1)
	return v
}

// Elevation reads properties.elevation.value in meters, defaulting to 0.0.
func Elevation(doc Document) float64 {
	v, _ := doc.Float("properties", "elevation", "value")
	return v
}

// ParseMetadata extracts all station fields in a single pass. The station
// identifier is the name fallback.
func ParseMetadata(doc Document, identifier string) Metadata {
	name, fallback := StationName(doc, identifier)
	return Metadata{
		Name:         name,
		NameFallback: fallback,
		Latitude:     Latitude(doc),
		Longitude:    Longitude(doc),
		ElevationM:   Elevation(doc),
	}
}
