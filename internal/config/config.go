package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"carrental/internal/cache"
	"carrental/internal/database"
	"carrental/internal/external"
	"carrental/internal/messaging"

	"github.com/joho/godotenv"
)

const (
	StorageDriverPostgres = "postgres"
	StorageDriverMemory   = "memory"
)

// Config holds the application configuration
type Config struct {
	Port           string
	GinMode        string
	LogLevel       string
	LogFormat      string
	RequestTimeout time.Duration

	// StorageDriver selects postgres or the in-memory store
	StorageDriver string
	// DurationMode selects how rental hours are derived from HH:MM strings
	DurationMode string

	Auth      AuthConfig
	RateLimit RateLimitConfig
	Jobs      JobsConfig

	Database database.Config
	NATS     messaging.Config
	Cache    cache.Config
	Payment  external.PaymentConfig
}

type AuthConfig struct {
	JWTSecret string
}

type RateLimitConfig struct {
	RPS   float64
	Burst int
}

type JobsConfig struct {
	ReconcileInterval time.Duration
}

// Load reads the configuration from the environment. A .env file in the working
// directory is loaded first when present; real environment variables win.
func Load() *Config {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		slog.Warn("Failed to load .env file", "error", err)
	}

	return &Config{
		Port:           getEnv("PORT", "5000"),
		GinMode:        getEnv("GIN_MODE", "debug"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		LogFormat:      getEnv("LOG_FORMAT", "json"),
		RequestTimeout: time.Duration(getEnvInt("REQUEST_TIMEOUT_SEC", 30)) * time.Second,

		StorageDriver: strings.ToLower(getEnv("STORAGE_DRIVER", StorageDriverPostgres)),
		DurationMode:  strings.ToLower(getEnv("DURATION_MODE", "decimal")),

		Auth: AuthConfig{
			JWTSecret: getEnv("JWT_SECRET", ""),
		},

		RateLimit: RateLimitConfig{
			RPS:   getEnvFloat("RATE_LIMIT_RPS", 20),
			Burst: getEnvInt("RATE_LIMIT_BURST", 40),
		},

		Jobs: JobsConfig{
			ReconcileInterval: time.Duration(getEnvInt("RECONCILE_INTERVAL_SEC", 60)) * time.Second,
		},

		Database: database.Config{
			Host:               getEnv("DB_HOST", "localhost"),
			Port:               getEnvInt("DB_PORT", 5432),
			User:               getEnv("DB_USER", "carrental"),
			Password:           getEnv("DB_PASSWORD", "carrental"),
			DBName:             getEnv("DB_NAME", "carrental"),
			SSLMode:            getEnv("DB_SSLMODE", "disable"),
			MaxOpenConns:       getEnvInt("DB_MAX_OPEN_CONNS", 50),
			MaxIdleConns:       getEnvInt("DB_MAX_IDLE_CONNS", 10),
			ConnMaxLifetimeMin: getEnvInt("DB_CONN_MAX_LIFETIME_MIN", 5),
			ConnMaxIdleTimeMin: getEnvInt("DB_CONN_MAX_IDLE_TIME_MIN", 1),
		},

		NATS: messaging.Config{
			URL:       getEnv("NATS_URL", "nats://localhost:4222"),
			ClusterID: getEnv("NATS_CLUSTER_ID", "carrental"),
			ClientID:  getEnv("NATS_CLIENT_ID", "carrental-api"),
		},

		Cache: cache.Config{
			Addr:     getEnv("VALKEY_ADDR", "localhost:6379"),
			Password: getEnv("VALKEY_PASSWORD", ""),
			DB:       getEnvInt("VALKEY_DB", 0),
			TTL:      time.Duration(getEnvInt("CACHE_TTL_SEC", 60)) * time.Second,
		},

		Payment: external.PaymentConfig{
			SecretKey: getEnv("PAYMENT_SECRET_KEY", ""),
			Currency:  strings.ToLower(getEnv("PAYMENT_CURRENCY", "usd")),
			Timeout:   time.Duration(getEnvInt("PAYMENT_TIMEOUT_SEC", 30)) * time.Second,
			BaseURL:   getEnv("PAYMENT_API_URL", ""),
		},
	}
}

// getEnv returns the environment variable or the default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}
