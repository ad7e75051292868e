package normalize

import (
	"testing"
)

func mustParse(t *testing.T, raw string) Document {
	t.Helper()
	doc, err := Parse([]byte(raw))
	if err != nil {
		t.Fatalf("Parse(%q) error = %v", raw, err)
	}
	return doc
}

func TestParseMetadata_DuplicatePropertiesDocument(t *testing.T) {
	doc := mustParse(t, `{"properties":{"name":"Test Site"},"geometry":{"coordinates":[-71.05,42.36]},"properties":{"elevation":{"value":10.0}}}`)

	got := ParseMetadata(doc, "KXYZ0")
	want := Metadata{Name: "Test Site", Latitude: 42.36, Longitude: -71.05, ElevationM: 10.0}
	if got != want {
		t.Errorf("ParseMetadata() = %+v, want %+v", got, want)
	}
}

func TestStationName(t *testing.T) {
	tests := []struct {
		name         string
		raw          string
		wantName     string
		wantFallback bool
	}{
		{"present", `{"properties":{"name":"Boston"}}`, "Boston", false},
		{"missing", `{"properties":{}}`, "KBOS", true},
		{"wrong type", `{"properties":{"name":42}}`, "KBOS", true},
		{"null", `{"properties":{"name":null}}`, "KBOS", true},
		{"no properties", `{}`, "KBOS", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			name, fallback := StationName(mustParse(t, tt.raw), "KBOS")
			if name != tt.wantName || fallback != tt.wantFallback {
				t.Errorf("StationName() = %q, %v; want %q, %v", name, fallback, tt.wantName, tt.wantFallback)
			}
		})
	}
}

func TestCoordinates_RoundTrip(t *testing.T) {
	coords := [][2]float64{
		{-71.05, 42.36},
		{139.6917, 35.6895},
		{-0.1276, 51.5072},
		{174.7762, -41.2865},
	}
	for _, c := range coords {
		doc := mustParse(t, `{"geometry":{"coordinates":[`+ftoa(c[0])+`,`+ftoa(c[1])+`]}}`)
		if got := Longitude(doc); got != c[0] {
			t.Errorf("Longitude() = %v, want %v", got, c[0])
		}
		if got := Latitude(doc); got != c[1] {
			t.Errorf("Latitude() = %v, want %v", got, c[1])
		}
	}
}

// A provider value of exactly 0.0 and a missing coordinate are
// indistinguishable to callers; both yield 0.0.
func TestCoordinates_ZeroIsAmbiguous(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"true zero", `{"geometry":{"coordinates":[0.0,0.0]}}`},
		{"missing geometry", `{}`},
		{"short array", `{"geometry":{"coordinates":[]}}`},
		{"non-numeric", `{"geometry":{"coordinates":["x","y"]}}`},
		{"null", `{"geometry":{"coordinates":[null,null]}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := mustParse(t, tt.raw)
			if lon, lat := Longitude(doc), Latitude(doc); lon != 0.0 || lat != 0.0 {
				t.Errorf("coordinates = (%v, %v), want (0, 0)", lon, lat)
			}
		})
	}
}

func TestElevation(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want float64
	}{
		{"present", `{"properties":{"elevation":{"unitCode":"wmoUnit:m","value":6.096}}}`, 6.096},
		{"null value", `{"properties":{"elevation":{"value":null}}}`, 0.0},
		{"missing", `{"properties":{}}`, 0.0},
		{"string value", `{"properties":{"elevation":{"value":"high"}}}`, 0.0},
		{"out of range", `{"foo":1e400,"properties":{"elevation":{"value":1e400}}}`, 0.0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Elevation(mustParse(t, tt.raw)); got != tt.want {
				t.Errorf("Elevation() = %v, want %v", got, tt.want)
			}
		})
	}
}
