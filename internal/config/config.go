package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string

	OTLPEndpoint string

	Warehouse DatabaseConfig
	Source    DatabaseConfig

	Redis RedisConfig

	Worker WorkerConfig

	Metrics MetricsConfig

	// SkipDuplicates skips fact rows whose (id_original, fuente_origen) pair is already loaded.
	SkipDuplicates bool
}

type DatabaseConfig struct {
	Type            string
	Host            string
	Port            string
	Name            string
	User            string
	Password        string
	SSLMode         string
	MaxIdleConn     int
	MaxOpenConn     int
	ConnMaxLifetime int
	ConnMaxIdleTime int
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	LockTTL  time.Duration
}

type WorkerConfig struct {
	// RunInterval of zero means run once and stop the host.
	RunInterval time.Duration
	RunTimeout  time.Duration
}

type MetricsConfig struct {
	Exporter  string
	Endpoint  string
	AuthToken string
}

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	cfg := Config{
		AppName:      getenv("APP_SERVICE", "opinionetl"),
		AppVersion:   getenv("APP_VERSION", "0.1.0"),
		Environment:  getenv("ENVIRONMENT", "development"),
		OTLPEndpoint: getenv("OTLP_ENDPOINT", "localhost:4317"),
		Warehouse:    loadDatabase("DATABASE", "postgres"),
		Source:       loadDatabase("SOURCE_DATABASE", "postgres"),
		Redis: RedisConfig{
			Addr:     strings.TrimSpace(getenv("REDIS_ADDR", "")),
			Password: getenv("REDIS_PASSWORD", ""),
			DB:       getenvInt("REDIS_DB", 0),
			LockTTL:  getenvDuration("ETL_LOCK_TTL", 30*time.Minute),
		},
		Worker: WorkerConfig{
			RunInterval: getenvDuration("ETL_RUN_INTERVAL", 0),
			RunTimeout:  getenvDuration("ETL_RUN_TIMEOUT", 0),
		},
		Metrics: MetricsConfig{
			Exporter:  strings.ToLower(strings.TrimSpace(getenv("METRICS_EXPORTER", ""))),
			Endpoint:  strings.TrimSpace(getenv("METRICS_ENDPOINT", "")),
			AuthToken: strings.TrimSpace(getenv("METRICS_AUTH_TOKEN", "")),
		},
		SkipDuplicates: getenvBool("ETL_SKIP_DUPLICATES", true),
	}

	return cfg
}

func loadDatabase(prefix, defType string) DatabaseConfig {
	return DatabaseConfig{
		Type:            strings.ToLower(getenv(prefix+"_TYPE", defType)),
		Host:            getenv(prefix+"_HOST", "localhost"),
		Port:            getenv(prefix+"_PORT", "5432"),
		Name:            getenv(prefix+"_NAME", "postgres"),
		User:            getenv(prefix+"_USER", "postgres"),
		Password:        getenv(prefix+"_PASSWORD", ""),
		SSLMode:         getenv(prefix+"_SSLMODE", "disable"),
		MaxIdleConn:     getenvInt(prefix+"_MAX_IDLE_CONN", 5),
		MaxOpenConn:     getenvInt(prefix+"_MAX_OPEN_CONN", 10),
		ConnMaxLifetime: getenvInt(prefix+"_CONN_MAX_LIFETIME", 300),
		ConnMaxIdleTime: getenvInt(prefix+"_CONN_MAX_IDLE_TIME", 60),
	}
}

// RedisEnabled reports whether a redis address is configured for the run lock.
func (c Config) RedisEnabled() bool {
	return c.Redis.Addr != ""
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if value == "" {
		return def
	}
	switch value {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}

func getenvInt(key string, def int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return parsed
}

func getenvDuration(key string, def time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return def
	}
	return parsed
}
