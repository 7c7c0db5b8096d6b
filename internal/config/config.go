// Package config manages application configuration
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/findosh/agriconnect/internal/storage"
	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	// Server settings
	Port        string
	Environment string // "development" or "production"
	LogLevel    string

	// Durable store
	StoreDriver   string // "memory", "sqlite" or "redis"
	DatabaseURL   string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisPrefix   string

	// Security
	SecretKey string // For signing simulated tokens

	// Session settings
	RefreshCheckInterval time.Duration
	RefreshThreshold     time.Duration
	SimulatedLatency     bool

	// Experiments
	ExperimentsFile string
}

// Load reads an optional .env file, then configuration from environment
// variables with sensible defaults
func Load() *Config {
	// Variables already set in the environment win over .env
	_ = godotenv.Load()

	return &Config{
		Port:                 getEnv("AGRICONNECT_PORT", "8080"),
		Environment:          getEnv("AGRICONNECT_ENV", "development"),
		LogLevel:             getEnv("AGRICONNECT_LOG_LEVEL", "info"),
		StoreDriver:          getEnv("AGRICONNECT_STORE_DRIVER", "sqlite"),
		DatabaseURL:          getEnv("AGRICONNECT_DATABASE_URL", "agriconnect.db"),
		RedisAddr:            getEnv("AGRICONNECT_REDIS_ADDR", "localhost:6379"),
		RedisPassword:        getEnv("AGRICONNECT_REDIS_PASSWORD", ""),
		RedisDB:              getIntEnv("AGRICONNECT_REDIS_DB", 0),
		RedisPrefix:          getEnv("AGRICONNECT_REDIS_PREFIX", "agriconnect:"),
		SecretKey:            getEnv("AGRICONNECT_SECRET_KEY", "dev-secret-key-change-in-production"),
		RefreshCheckInterval: getDurationEnv("AGRICONNECT_REFRESH_CHECK_INTERVAL", time.Minute),
		RefreshThreshold:     getDurationEnv("AGRICONNECT_REFRESH_THRESHOLD", 5*time.Minute),
		SimulatedLatency:     getBoolEnv("AGRICONNECT_SIMULATED_LATENCY", true),
		ExperimentsFile:      getEnv("AGRICONNECT_EXPERIMENTS_FILE", ""),
	}
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// Store returns the durable store settings
func (c *Config) Store() storage.Config {
	return storage.Config{
		Driver:      c.StoreDriver,
		DatabaseURL: c.DatabaseURL,
		Redis: storage.RedisConfig{
			Addr:     c.RedisAddr,
			Password: c.RedisPassword,
			DB:       c.RedisDB,
			Prefix:   c.RedisPrefix,
		},
	}
}
