package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/kjstillabower/station-collector/internal/validation"
)

// DefaultPollInterval applies when parameters.interval is unset or unparsable.
const DefaultPollInterval = 300 * time.Second

const defaultStationsURL = "https://api.weather.gov/stations/"

// Config holds collector configuration loaded from YAML and env.
type Config struct {
	LogLevel string

	ServerPort      string `validate:"required,numeric"`
	RequestTimeout  time.Duration
	RateLimitRPS    int `validate:"gt=0"`
	RateLimitBurst  int `validate:"gt=0"`
	ShutdownTimeout time.Duration

	HealthWindow     time.Duration
	DegradedErrorPct int `validate:"gte=1,lte=100"`

	StationsURL     string `validate:"required,url"`
	UserAgent       string `validate:"required"`
	ProviderTimeout time.Duration

	Stations     []string `validate:"required,min=1,dive,station_id"`
	PollInterval time.Duration

	DB      DBConfig
	Cache   CacheConfig
	Publish PublishConfig

	// Warnings lists defaults that replaced unusable values. The caller logs them.
	Warnings []string
}

// DBConfig selects the SQL backend. DSN, when set, wins over the discrete fields.
type DBConfig struct {
	Driver   string `validate:"required,oneof=sqlite3 postgres mysql"`
	DSN      string
	Host     string
	Port     int `validate:"gte=0,lte=65535"`
	User     string
	Password string
	Database string
	Path     string `validate:"required_if=Driver sqlite3"`
	SSLMode  string

	StationTable     string `validate:"required,sql_identifier"`
	ObservationTable string `validate:"required,sql_identifier"`

	MaxOpenConns    int `validate:"gte=0"`
	MaxIdleConns    int `validate:"gte=0"`
	ConnMaxLifetime time.Duration
}

type CacheConfig struct {
	Backend               string `validate:"oneof=in_memory memcached redis"`
	TTL                   time.Duration
	MemcachedAddrs        string
	MemcachedTimeout      time.Duration
	MemcachedMaxIdleConns int
	RedisURL              string `validate:"required_if=Backend redis"`
}

type PublishConfig struct {
	Backend         string `validate:"oneof=none mqtt kafka"`
	Timeout         time.Duration
	MQTTBroker      string `validate:"required_if=Backend mqtt"`
	MQTTClientID    string
	MQTTTopicPrefix string
	MQTTQoS         int      `validate:"gte=0,lte=2"`
	KafkaBrokers    []string `validate:"required_if=Backend kafka"`
	KafkaTopic      string   `validate:"required_if=Backend kafka"`
}

type fileConfig struct {
	Log struct {
		Level string `yaml:"level"`
	} `yaml:"log"`

	Server struct {
		Port           string `yaml:"port"`
		RequestTimeout string `yaml:"request_timeout"`
		RateLimitRPS   int    `yaml:"rate_limit_rps"`
		RateLimitBurst int    `yaml:"rate_limit_burst"`
	} `yaml:"server"`

	Shutdown struct {
		Timeout string `yaml:"timeout"`
	} `yaml:"shutdown"`

	Health struct {
		Window           string `yaml:"window"`
		DegradedErrorPct int    `yaml:"degraded_error_pct"`
	} `yaml:"health"`

	Provider struct {
		StationsURL string `yaml:"stations_url"`
		UserAgent   string `yaml:"user_agent"`
		Timeout     string `yaml:"timeout"`
	} `yaml:"provider"`

	DB struct {
		Driver           string `yaml:"driver"`
		DSN              string `yaml:"dsn"`
		Host             string `yaml:"host"`
		Port             int    `yaml:"port"`
		User             string `yaml:"user"`
		Password         string `yaml:"password"`
		Database         string `yaml:"database"`
		Path             string `yaml:"path"`
		SSLMode          string `yaml:"sslmode"`
		StationTable     string `yaml:"station_table"`
		ObservationTable string `yaml:"observation_table"`
		Pool             struct {
			MaxOpenConns    int    `yaml:"max_open_conns"`
			MaxIdleConns    int    `yaml:"max_idle_conns"`
			ConnMaxLifetime string `yaml:"conn_max_lifetime"`
		} `yaml:"pool"`
	} `yaml:"db"`

	Stations []string `yaml:"stations"`

	Parameters struct {
		Interval string `yaml:"interval"`
	} `yaml:"parameters"`

	Cache struct {
		Backend   string `yaml:"backend"`
		TTL       string `yaml:"ttl"`
		Memcached struct {
			Addrs        string `yaml:"addrs"`
			Timeout      string `yaml:"timeout"`
			MaxIdleConns int    `yaml:"max_idle_conns"`
		} `yaml:"memcached"`
		Redis struct {
			URL string `yaml:"url"`
		} `yaml:"redis"`
	} `yaml:"cache"`

	Publish struct {
		Backend string `yaml:"backend"`
		Timeout string `yaml:"timeout"`
		MQTT    struct {
			Broker      string `yaml:"broker"`
			ClientID    string `yaml:"client_id"`
			TopicPrefix string `yaml:"topic_prefix"`
			QoS         int    `yaml:"qos"`
		} `yaml:"mqtt"`
		Kafka struct {
			Brokers []string `yaml:"brokers"`
			Topic   string   `yaml:"topic"`
		} `yaml:"kafka"`
	} `yaml:"publish"`
}

type secretsFile struct {
	DBPassword string `yaml:"db_password"`
}

// Load reads .env (if present), then config/{ENV_NAME}.yaml (default dev)
// relative to the working directory, or the file named by CONFIG_PATH.
// The database password comes from DB_PASSWORD, config/secrets.yaml or the
// main file, in that order.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("config: get working directory: %w", err)
	}
	configDir := filepath.Join(cwd, "config")

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		env := os.Getenv("ENV_NAME")
		if env == "" {
			env = "dev"
		}
		configPath = filepath.Join(configDir, env+".yaml")
	} else {
		configDir = filepath.Dir(configPath)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found: %s", configPath)
		}
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	cfg := &Config{}
	cfg.LogLevel = fc.Log.Level

	cfg.ServerPort = fc.Server.Port
	if cfg.ServerPort == "" {
		cfg.ServerPort = "8080"
	}
	cfg.RequestTimeout = parseDuration(fc.Server.RequestTimeout, 5*time.Second)
	cfg.RateLimitRPS = fc.Server.RateLimitRPS
	if cfg.RateLimitRPS <= 0 {
		cfg.RateLimitRPS = 20
	}
	cfg.RateLimitBurst = fc.Server.RateLimitBurst
	if cfg.RateLimitBurst <= 0 {
		cfg.RateLimitBurst = 40
	}
	cfg.ShutdownTimeout = parseDuration(fc.Shutdown.Timeout, 30*time.Second)

	cfg.HealthWindow = parseDuration(fc.Health.Window, 15*time.Minute)
	cfg.DegradedErrorPct = fc.Health.DegradedErrorPct
	if cfg.DegradedErrorPct <= 0 {
		cfg.DegradedErrorPct = 50
	}

	cfg.StationsURL = strings.TrimSpace(fc.Provider.StationsURL)
	if cfg.StationsURL == "" {
		cfg.StationsURL = defaultStationsURL
	}
	if !strings.HasSuffix(cfg.StationsURL, "/") {
		cfg.StationsURL += "/"
	}
	cfg.UserAgent = strings.TrimSpace(envOr("PROVIDER_USER_AGENT", fc.Provider.UserAgent))
	cfg.ProviderTimeout = parseDurationOrZero(fc.Provider.Timeout, 0)

	cfg.Stations, cfg.Warnings = normalizeStations(fc.Stations, cfg.Warnings)

	interval, ok := parseInterval(fc.Parameters.Interval)
	if !ok {
		cfg.Warnings = append(cfg.Warnings, fmt.Sprintf("parameters.interval %q unusable, using %s", fc.Parameters.Interval, DefaultPollInterval))
	}
	cfg.PollInterval = interval

	password, err := loadDBPassword(configDir, fc.DB.Password)
	if err != nil {
		return nil, err
	}
	cfg.DB = DBConfig{
		Driver:           strings.ToLower(strings.TrimSpace(fc.DB.Driver)),
		DSN:              envOr("DB_DSN", fc.DB.DSN),
		Host:             fc.DB.Host,
		Port:             fc.DB.Port,
		User:             fc.DB.User,
		Password:         password,
		Database:         fc.DB.Database,
		Path:             fc.DB.Path,
		SSLMode:          fc.DB.SSLMode,
		StationTable:     fc.DB.StationTable,
		ObservationTable: fc.DB.ObservationTable,
		MaxOpenConns:     fc.DB.Pool.MaxOpenConns,
		MaxIdleConns:     fc.DB.Pool.MaxIdleConns,
		ConnMaxLifetime:  parseDurationOrZero(fc.DB.Pool.ConnMaxLifetime, 0),
	}
	if cfg.DB.Driver == "" {
		cfg.DB.Driver = "sqlite3"
	}
	if cfg.DB.Driver == "sqlite3" && cfg.DB.Path == "" {
		cfg.DB.Path = "data/collector.db"
	}
	if cfg.DB.StationTable == "" {
		cfg.DB.StationTable = "station"
	}
	if cfg.DB.ObservationTable == "" {
		cfg.DB.ObservationTable = "observation"
	}

	cfg.Cache = CacheConfig{
		Backend:               lowerEnvOr("CACHE_BACKEND", fc.Cache.Backend),
		TTL:                   parseDuration(fc.Cache.TTL, 2*DefaultPollInterval),
		MemcachedAddrs:        envOr("MEMCACHED_ADDRS", fc.Cache.Memcached.Addrs),
		MemcachedTimeout:      parseDuration(fc.Cache.Memcached.Timeout, 500*time.Millisecond),
		MemcachedMaxIdleConns: fc.Cache.Memcached.MaxIdleConns,
		RedisURL:              envOr("REDIS_URL", fc.Cache.Redis.URL),
	}
	if cfg.Cache.Backend == "" {
		cfg.Cache.Backend = "in_memory"
	}
	if cfg.Cache.MemcachedAddrs == "" {
		cfg.Cache.MemcachedAddrs = "localhost:11211"
	}
	if cfg.Cache.MemcachedMaxIdleConns <= 0 {
		cfg.Cache.MemcachedMaxIdleConns = 2
	}

	cfg.Publish = PublishConfig{
		Backend:         lowerEnvOr("PUBLISH_BACKEND", fc.Publish.Backend),
		Timeout:         parseDuration(fc.Publish.Timeout, 5*time.Second),
		MQTTBroker:      fc.Publish.MQTT.Broker,
		MQTTClientID:    fc.Publish.MQTT.ClientID,
		MQTTTopicPrefix: fc.Publish.MQTT.TopicPrefix,
		MQTTQoS:         fc.Publish.MQTT.QoS,
		KafkaBrokers:    fc.Publish.Kafka.Brokers,
		KafkaTopic:      fc.Publish.Kafka.Topic,
	}
	if cfg.Publish.Backend == "" {
		cfg.Publish.Backend = "none"
	}
	if cfg.Publish.MQTTClientID == "" {
		cfg.Publish.MQTTClientID = "station-collector"
	}
	if cfg.Publish.MQTTTopicPrefix == "" {
		cfg.Publish.MQTTTopicPrefix = "weather"
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// parseInterval accepts whole seconds ("300") or a Go duration ("5m").
// Empty, unparsable and non-positive values yield DefaultPollInterval; ok is
// false only for values that were set but unusable.
func parseInterval(s string) (time.Duration, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return DefaultPollInterval, true
	}
	if secs, err := strconv.Atoi(s); err == nil {
		if secs <= 0 {
			return DefaultPollInterval, false
		}
		return time.Duration(secs) * time.Second, true
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return DefaultPollInterval, false
	}
	return d, true
}

// normalizeStations trims identifiers and drops repeats, keeping first
// occurrence order. Invalid identifiers are kept for validate to report.
func normalizeStations(in []string, warnings []string) ([]string, []string) {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, id := range in {
		id = strings.TrimSpace(id)
		if _, dup := seen[id]; dup {
			warnings = append(warnings, fmt.Sprintf("station %q listed more than once", id))
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out, warnings
}

func loadDBPassword(configDir, fromFile string) (string, error) {
	if p := os.Getenv("DB_PASSWORD"); p != "" {
		return p, nil
	}
	secretsData, err := os.ReadFile(filepath.Join(configDir, "secrets.yaml"))
	if err != nil {
		if !os.IsNotExist(err) {
			return "", fmt.Errorf("read secrets file: %w", err)
		}
		return fromFile, nil
	}
	var sec secretsFile
	if err := yaml.Unmarshal(secretsData, &sec); err != nil {
		return "", fmt.Errorf("parse secrets file: %w", err)
	}
	if sec.DBPassword != "" {
		return sec.DBPassword, nil
	}
	return fromFile, nil
}

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return strings.TrimSpace(fallback)
}

func lowerEnvOr(key, fallback string) string {
	return strings.ToLower(envOr(key, fallback))
}

// parseDuration parses a duration string and returns defaultVal if parsing fails or result is <= 0.
func parseDuration(s string, defaultVal time.Duration) time.Duration {
	d := parseDurationOrZero(s, defaultVal)
	if d <= 0 {
		return defaultVal
	}
	return d
}

// parseDurationOrZero parses a duration string, returning defaultVal on empty string or parse error.
// Returns zero or negative durations as-is (caller should handle fallback).
func parseDurationOrZero(s string, defaultVal time.Duration) time.Duration {
	s = strings.TrimSpace(s)
	if s == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return defaultVal
	}
	return d
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("station_id", func(fl validator.FieldLevel) bool {
		id, err := validation.ValidateStationID(fl.Field().String())
		return err == nil && id == fl.Field().String()
	})
	_ = v.RegisterValidation("sql_identifier", func(fl validator.FieldLevel) bool {
		return validation.ValidateTableName(fl.Field().String()) == nil
	})
	return v
}

// validate performs post-load validation of configuration values.
func validate(cfg *Config) error {
	if err := newValidator().Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %q (value %v)", fe.Namespace(), fe.Tag(), redactValue(fe)))
			}
			return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	if cfg.DB.Driver != "sqlite3" && cfg.DB.DSN == "" && cfg.DB.Host == "" {
		return fmt.Errorf("invalid config: db.host or db.dsn is required for driver %s", cfg.DB.Driver)
	}
	if cfg.RequestTimeout <= 0 {
		return fmt.Errorf("invalid config: server.request_timeout must be positive")
	}
	return nil
}

func redactValue(fe validator.FieldError) any {
	if strings.Contains(strings.ToLower(fe.Field()), "password") {
		return "xxxxx"
	}
	return fe.Value()
}
