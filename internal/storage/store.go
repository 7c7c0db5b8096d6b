package storage

import (
	"context"
	"fmt"
)

// Store is a string-keyed durable store. Writes to different keys are
// independent; nothing spans more than one key atomically.
type Store interface {
	// Get returns the value for key and whether it was present
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	// Delete removes keys; missing keys are not an error
	Delete(ctx context.Context, keys ...string) error
	Close() error
}

// Driver identifiers
const (
	DriverMemory = "memory"
	DriverSQLite = "sqlite"
	DriverRedis  = "redis"
)

// Config selects and tunes a store driver
type Config struct {
	Driver      string
	DatabaseURL string
	Redis       RedisConfig
}

// RedisConfig captures connection options
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

// New creates a store based on the provided configuration
func New(cfg Config) (Store, error) {
	driver := cfg.Driver
	if driver == "" {
		driver = DriverMemory
	}

	switch driver {
	case DriverMemory:
		return NewMemory(), nil
	case DriverSQLite:
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("sqlite driver requires a database URL")
		}
		return NewSQLite(cfg.DatabaseURL)
	case DriverRedis:
		return NewRedis(cfg.Redis)
	default:
		return nil, fmt.Errorf("unsupported store driver: %s", driver)
	}
}
