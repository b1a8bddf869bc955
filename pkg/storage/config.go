package storage

import (
	"fmt"
	"time"
)

// Config holds storage backend configuration.
type Config struct {
	// PostgresURL is the connection string of the primary database.
	PostgresURL string `yaml:"postgres_url"`

	// PostgresMaxConns and PostgresMinConns tune the connection pool.
	PostgresMaxConns int `yaml:"postgres_max_conns"`
	PostgresMinConns int `yaml:"postgres_min_conns"`

	// PostgresTimeout bounds the initial connectivity check.
	PostgresTimeout time.Duration `yaml:"postgres_timeout"`

	// MigrateOnStart runs schema migrations during startup.
	MigrateOnStart bool `yaml:"migrate_on_start"`

	// CacheEnabled layers the Redis caching decorator over the relational
	// store.
	CacheEnabled bool   `yaml:"cache_enabled"`
	RedisAddr    string `yaml:"redis_addr"`
	RedisPass    string `yaml:"redis_pass"`
	RedisDB      int    `yaml:"redis_db"`

	// ResourceTTL and ListTTL bound cache entry lifetimes. They are the
	// outer limit on the eventual-consistency gap of concurrent miss-fills
	// racing invalidations.
	ResourceTTL time.Duration `yaml:"resource_ttl"`
	ListTTL     time.Duration `yaml:"list_ttl"`
}

// DefaultConfig returns the storage defaults.
func DefaultConfig() Config {
	return Config{
		PostgresMaxConns: 25,
		PostgresMinConns: 5,
		PostgresTimeout:  10 * time.Second,
		ResourceTTL:      15 * time.Minute,
		ListTTL:          5 * time.Minute,
	}
}

// Validate checks the configuration for internal consistency.
func (c Config) Validate() error {
	if c.PostgresURL == "" {
		return fmt.Errorf("postgres URL is required")
	}
	if c.PostgresMaxConns < c.PostgresMinConns {
		return fmt.Errorf("postgres max conns (%d) below min conns (%d)", c.PostgresMaxConns, c.PostgresMinConns)
	}
	if c.CacheEnabled && c.RedisAddr == "" {
		return fmt.Errorf("redis address is required when caching is enabled")
	}
	return nil
}
