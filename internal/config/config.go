// Package config loads service settings from the environment and an
// optional .env file.
package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Port string `mapstructure:"PORT"`

	DBDriver    string `mapstructure:"DB_DRIVER"`
	DBPath      string `mapstructure:"DB_PATH"`
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	SeedPath    string `mapstructure:"SEED_PATH"`

	GoogleMapsAPIKey string        `mapstructure:"GOOGLE_MAPS_API_KEY"`
	RoutingTimeout   time.Duration `mapstructure:"ROUTING_TIMEOUT"`
	AverageSpeedKmh  float64       `mapstructure:"AVERAGE_SPEED_KMH"`

	RedisURL    string        `mapstructure:"REDIS_URL"`
	LocationTTL time.Duration `mapstructure:"LOCATION_TTL"`

	KafkaBrokers    string `mapstructure:"KAFKA_BROKERS"`
	KafkaAlertTopic string `mapstructure:"KAFKA_ALERT_TOPIC"`

	GPSTimeout               time.Duration `mapstructure:"GPS_TIMEOUT"`
	DeviationThresholdMeters float64       `mapstructure:"DEVIATION_THRESHOLD_METERS"`
	DeviationVertexOnly      bool          `mapstructure:"DEVIATION_VERTEX_ONLY"`
	LateGrace                time.Duration `mapstructure:"LATE_GRACE"`
	ArrivalCheckInterval     time.Duration `mapstructure:"ARRIVAL_CHECK_INTERVAL"`
	ArrivalCheckConcurrency  int           `mapstructure:"ARRIVAL_CHECK_CONCURRENCY"`
	RouteStaleAfter          time.Duration `mapstructure:"ROUTE_STALE_AFTER"`

	LiveStateSize  int           `mapstructure:"LIVE_STATE_SIZE"`
	RouteCacheSize int           `mapstructure:"ROUTE_CACHE_SIZE"`
	RouteCacheTTL  time.Duration `mapstructure:"ROUTE_CACHE_TTL"`
}

var defaults = map[string]any{
	"PORT":                       "8080",
	"DB_DRIVER":                  "sqlite",
	"DB_PATH":                    "data/app.db",
	"DATABASE_URL":               "",
	"SEED_PATH":                  "data/seeds/trips.json",
	"GOOGLE_MAPS_API_KEY":        "",
	"ROUTING_TIMEOUT":            "15s",
	"AVERAGE_SPEED_KMH":          30.0,
	"REDIS_URL":                  "",
	"LOCATION_TTL":               "30m",
	"KAFKA_BROKERS":              "",
	"KAFKA_ALERT_TOPIC":          "transport.alerts",
	"GPS_TIMEOUT":                "5m",
	"DEVIATION_THRESHOLD_METERS": 500.0,
	"DEVIATION_VERTEX_ONLY":      false,
	"LATE_GRACE":                 "10m",
	"ARRIVAL_CHECK_INTERVAL":     "2m",
	"ARRIVAL_CHECK_CONCURRENCY":  8,
	"ROUTE_STALE_AFTER":          "24h",
	"LIVE_STATE_SIZE":            10000,
	"ROUTE_CACHE_SIZE":           5000,
	"ROUTE_CACHE_TTL":            "6h",
}

// Load reads .env (if present) into the process environment and decodes
// the environment over the defaults.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found (using environment variables)")
	}

	v := viper.New()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	switch c.DBDriver {
	case "sqlite", "pgx":
	default:
		return fmt.Errorf("DB_DRIVER must be sqlite or pgx, got %q", c.DBDriver)
	}
	if c.DBDriver == "pgx" && strings.TrimSpace(c.DatabaseURL) == "" {
		return fmt.Errorf("DATABASE_URL is required when DB_DRIVER=pgx")
	}
	if c.RoutingTimeout <= 0 {
		return fmt.Errorf("ROUTING_TIMEOUT must be positive")
	}
	if c.GPSTimeout <= 0 {
		return fmt.Errorf("GPS_TIMEOUT must be positive")
	}
	if c.DeviationThresholdMeters <= 0 {
		return fmt.Errorf("DEVIATION_THRESHOLD_METERS must be positive")
	}
	if c.LateGrace < 0 {
		return fmt.Errorf("LATE_GRACE must not be negative")
	}
	if c.LiveStateSize <= 0 || c.RouteCacheSize <= 0 {
		return fmt.Errorf("LIVE_STATE_SIZE and ROUTE_CACHE_SIZE must be positive")
	}
	if c.ArrivalCheckInterval <= 0 {
		return fmt.Errorf("ARRIVAL_CHECK_INTERVAL must be positive")
	}
	if c.ArrivalCheckConcurrency <= 0 {
		return fmt.Errorf("ARRIVAL_CHECK_CONCURRENCY must be positive")
	}
	return nil
}

// DSN returns the data source for the configured driver.
func (c *Config) DSN() string {
	if c.DBDriver == "pgx" {
		return c.DatabaseURL
	}
	return c.DBPath
}

// Brokers splits KAFKA_BROKERS on commas. Empty means Kafka is disabled.
func (c *Config) Brokers() []string {
	var out []string
	for _, b := range strings.Split(c.KafkaBrokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}
