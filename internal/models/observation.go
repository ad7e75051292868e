package models

// MissingValue is stored in numeric observation columns when the provider
// omitted the field or sent something that is not a number.
const MissingValue = -999.99

// ObservationRecord is one timestamped reading as written to storage.
// Numeric fields hold MissingValue when absent; TimestampUTC and Description
// are empty strings when absent.
type ObservationRecord struct {
	StationID        string  `json:"station_id"`
	TimestampUTC     string  `json:"timestamp_UTC"`
	TemperatureC     float64 `json:"temperature_C"`
	TemperatureF     float64 `json:"temperature_F"`
	DewpointC        float64 `json:"dewpoint_C"`
	DewpointF        float64 `json:"dewpoint_F"`
	Description      string  `json:"description"`
	WindDirection    float64 `json:"wind_dir"`
	WindSpeedKmH     float64 `json:"wind_spd_km_h"`
	WindSpeedMiH     float64 `json:"wind_spd_mi_h"`
	WindGustKmH      float64 `json:"wind_gust_km_h"`
	WindGustMiH      float64 `json:"wind_gust_mi_h"`
	PressurePa       float64 `json:"baro_pres_pa"`
	PressureInHg     float64 `json:"baro_pres_inHg"`
	RelativeHumidity float64 `json:"rel_humidity"`
}
