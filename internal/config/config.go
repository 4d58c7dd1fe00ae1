package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
type Config struct {
	Server     ServerConfig
	Storage    StorageConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	NewRelic   NewRelicConfig
	Geo        GeoConfig
	Proximity  ProximityConfig
	Assignment AssignmentConfig
	Log        LogConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// StorageConfig selects where bookings and users live.
type StorageConfig struct {
	Backend  string // postgres or memory
	SeedDemo bool   // seed demo users into the memory backend
}

// DatabaseConfig holds PostgreSQL configuration.
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// RedisConfig holds Redis configuration.
type RedisConfig struct {
	Enabled  bool
	Addr     string
	Password string
	DB       int
}

// NewRelicConfig holds New Relic configuration.
type NewRelicConfig struct {
	AppName    string
	LicenseKey string
	Enabled    bool
}

// GeoConfig holds geocoding configuration.
type GeoConfig struct {
	APIKey      string
	Region      string
	Language    string
	Timeout     time.Duration
	Concurrency int
	Country     string
	MinLat      float64
	MaxLat      float64
	MinLon      float64
	MaxLon      float64
}

// ProximityConfig holds nearby-driver search configuration.
type ProximityConfig struct {
	DefaultRadiusKm  float64
	DisplayThreshold int
	MaxCandidates    int
	Debounce         time.Duration
	Clustering       bool
}

// AssignmentConfig holds booking lock configuration.
type AssignmentConfig struct {
	LockBackend string // local or redis
	LockTTL     time.Duration // expiry of a crashed holder's keys; live holders refresh
	LockWait    time.Duration
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string
	Format string // json or text
}

var defaults = map[string]any{
	"SERVER_PORT":          "8080",
	"SERVER_READ_TIMEOUT":  10 * time.Second,
	"SERVER_WRITE_TIMEOUT": 10 * time.Second,

	"STORAGE_BACKEND":   "postgres",
	"STORAGE_SEED_DEMO": false,

	"DB_HOST":     "localhost",
	"DB_PORT":     "5432",
	"DB_USER":     "postgres",
	"DB_PASSWORD": "postgres",
	"DB_NAME":     "taxi",
	"DB_SSLMODE":  "disable",

	"REDIS_ENABLED":  false,
	"REDIS_ADDR":     "localhost:6379",
	"REDIS_PASSWORD": "",
	"REDIS_DB":       0,

	"NEW_RELIC_APP_NAME":    "taxi-booking-service",
	"NEW_RELIC_LICENSE_KEY": "",
	"NEW_RELIC_ENABLED":     false,

	"GEO_API_KEY":     "",
	"GEO_REGION":      "np",
	"GEO_LANGUAGE":    "en",
	"GEO_TIMEOUT":     8 * time.Second,
	"GEO_CONCURRENCY": 4,
	"GEO_COUNTRY":     "Nepal",
	"GEO_MIN_LAT":     25.0,
	"GEO_MAX_LAT":     31.5,
	"GEO_MIN_LON":     79.0,
	"GEO_MAX_LON":     89.3,

	"PROXIMITY_DEFAULT_RADIUS_KM":  3.0,
	"PROXIMITY_DISPLAY_THRESHOLD":  10,
	"PROXIMITY_MAX_CANDIDATES":     200,
	"PROXIMITY_DEBOUNCE":           250 * time.Millisecond,
	"PROXIMITY_CLUSTERING_ENABLED": true,

	"ASSIGNMENT_LOCK_BACKEND": "local",
	"ASSIGNMENT_LOCK_TTL":     10 * time.Second,
	"ASSIGNMENT_LOCK_WAIT":    5 * time.Second,

	"LOG_LEVEL":  "info",
	"LOG_FORMAT": "json",
}

// Load loads configuration from environment variables.
func Load() *Config {
	v := viper.New()
	v.AutomaticEnv()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	return load(v)
}

func load(v *viper.Viper) *Config {
	return &Config{
		Server: ServerConfig{
			Port:         v.GetString("SERVER_PORT"),
			ReadTimeout:  v.GetDuration("SERVER_READ_TIMEOUT"),
			WriteTimeout: v.GetDuration("SERVER_WRITE_TIMEOUT"),
		},
		Storage: StorageConfig{
			Backend:  strings.ToLower(v.GetString("STORAGE_BACKEND")),
			SeedDemo: v.GetBool("STORAGE_SEED_DEMO"),
		},
		Database: DatabaseConfig{
			Host:     v.GetString("DB_HOST"),
			Port:     v.GetString("DB_PORT"),
			User:     v.GetString("DB_USER"),
			Password: v.GetString("DB_PASSWORD"),
			DBName:   v.GetString("DB_NAME"),
			SSLMode:  v.GetString("DB_SSLMODE"),
		},
		Redis: RedisConfig{
			Enabled:  v.GetBool("REDIS_ENABLED"),
			Addr:     v.GetString("REDIS_ADDR"),
			Password: v.GetString("REDIS_PASSWORD"),
			DB:       v.GetInt("REDIS_DB"),
		},
		NewRelic: NewRelicConfig{
			AppName:    v.GetString("NEW_RELIC_APP_NAME"),
			LicenseKey: v.GetString("NEW_RELIC_LICENSE_KEY"),
			Enabled:    v.GetBool("NEW_RELIC_ENABLED"),
		},
		Geo: GeoConfig{
			APIKey:      v.GetString("GEO_API_KEY"),
			Region:      v.GetString("GEO_REGION"),
			Language:    v.GetString("GEO_LANGUAGE"),
			Timeout:     v.GetDuration("GEO_TIMEOUT"),
			Concurrency: v.GetInt("GEO_CONCURRENCY"),
			Country:     v.GetString("GEO_COUNTRY"),
			MinLat:      v.GetFloat64("GEO_MIN_LAT"),
			MaxLat:      v.GetFloat64("GEO_MAX_LAT"),
			MinLon:      v.GetFloat64("GEO_MIN_LON"),
			MaxLon:      v.GetFloat64("GEO_MAX_LON"),
		},
		Proximity: ProximityConfig{
			DefaultRadiusKm:  v.GetFloat64("PROXIMITY_DEFAULT_RADIUS_KM"),
			DisplayThreshold: v.GetInt("PROXIMITY_DISPLAY_THRESHOLD"),
			MaxCandidates:    v.GetInt("PROXIMITY_MAX_CANDIDATES"),
			Debounce:         v.GetDuration("PROXIMITY_DEBOUNCE"),
			Clustering:       v.GetBool("PROXIMITY_CLUSTERING_ENABLED"),
		},
		Assignment: AssignmentConfig{
			LockBackend: strings.ToLower(v.GetString("ASSIGNMENT_LOCK_BACKEND")),
			LockTTL:     v.GetDuration("ASSIGNMENT_LOCK_TTL"),
			LockWait:    v.GetDuration("ASSIGNMENT_LOCK_WAIT"),
		},
		Log: LogConfig{
			Level:  v.GetString("LOG_LEVEL"),
			Format: v.GetString("LOG_FORMAT"),
		},
	}
}
