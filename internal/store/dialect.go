package store

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
)

// Driver names as registered with database/sql.
const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
	DriverMySQL    = "mysql"
)

// Column widths of the string columns.
const (
	stationIDWidth   = 5
	nameWidth        = 80
	urlWidth         = 80
	descriptionWidth = 40
	timestampWidth   = 40
)

const stationColumns = "call_id, name, latitude_deg, longitude_deg, elevation_m, url"

const observationColumns = "station_id, timestamp_UTC, temperature_C, temperature_F, dewpoint_C, dewpoint_F, " +
	"description, wind_dir, wind_spd_km_h, wind_spd_mi_h, wind_gust_km_h, wind_gust_mi_h, " +
	"baro_pres_pa, baro_pres_inHg, rel_humidity"

func stationDDL(table string) string {
	return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	call_id VARCHAR(%d) NOT NULL PRIMARY KEY,
	name VARCHAR(%d),
	latitude_deg DOUBLE PRECISION,
	longitude_deg DOUBLE PRECISION,
	elevation_m DOUBLE PRECISION,
	url VARCHAR(%d)
)`, table, stationIDWidth, nameWidth, urlWidth)
}

func observationDDL(table string) string {
	return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	station_id VARCHAR(20) NOT NULL,
	timestamp_UTC VARCHAR(%d) NOT NULL,
	temperature_C DOUBLE PRECISION,
	temperature_F DOUBLE PRECISION,
	dewpoint_C DOUBLE PRECISION,
	dewpoint_F DOUBLE PRECISION,
	description VARCHAR(%d),
	wind_dir DOUBLE PRECISION,
	wind_spd_km_h DOUBLE PRECISION,
	wind_spd_mi_h DOUBLE PRECISION,
	wind_gust_km_h DOUBLE PRECISION,
	wind_gust_mi_h DOUBLE PRECISION,
	baro_pres_pa DOUBLE PRECISION,
	baro_pres_inHg DOUBLE PRECISION,
	rel_humidity DOUBLE PRECISION,
	PRIMARY KEY (station_id, timestamp_UTC)
)`, table, timestampWidth, descriptionWidth)
}

func upsertStationQuery(driver, table string) string {
	if driver == DriverMySQL {
		return fmt.Sprintf("REPLACE INTO %s (%s) VALUES (?, ?, ?, ?, ?, ?)", table, stationColumns)
	}
	return rebind(driver, fmt.Sprintf(`INSERT INTO %s (%s) VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT (call_id) DO UPDATE SET
	name = excluded.name,
	latitude_deg = excluded.latitude_deg,
	longitude_deg = excluded.longitude_deg,
	elevation_m = excluded.elevation_m,
	url = excluded.url`, table, stationColumns))
}

// rebind rewrites ? placeholders to $n for postgres.
func rebind(driver, query string) string {
	if driver != DriverPostgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 16)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// isDuplicateKey reports whether err is a primary key or unique violation
// from any supported driver.
func isDuplicateKey(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) {
		return mysqlErr.Number == 1062
	}
	return false
}

// clip shortens s to at most width runes so it fits its column on databases
// that reject oversized values.
func clip(s string, width int) string {
	if len(s) <= width {
		return s
	}
	r := []rune(s)
	if len(r) <= width {
		return s
	}
	return string(r[:width])
}
