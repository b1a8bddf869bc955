package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/aravindb26/middleware-sub022/pkg/observability"
	"github.com/aravindb26/middleware-sub022/pkg/storage"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	Server ServerConfig `yaml:"server"`

	// Storage configuration
	Storage storage.Config `yaml:"storage"`

	// Observability configuration
	Observability ObservabilityConfig `yaml:"observability"`

	// Properties holds the global defaults for configuration properties
	// such as com.openexchange.resource.simplePermissionMode. Per-context
	// values from the database override these.
	Properties PropertiesConfig `yaml:"properties"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            string        `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// Health/metrics server (separate port for k8s probes)
	HealthPort string `yaml:"health_port"`
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	// Logging
	LogLevel observability.LogLevel `yaml:"log_level"`

	// Metrics
	MetricsEnabled bool `yaml:"metrics_enabled"`
}

// PropertiesConfig holds configuration-property settings.
type PropertiesConfig struct {
	// File is a YAML file holding property defaults, hot-reloaded on
	// change. Empty disables file-based defaults.
	File string `yaml:"file"`

	// Defaults are property defaults given inline; a file entry with the
	// same name wins.
	Defaults map[string]string `yaml:"defaults"`

	// ContextCacheSize bounds the per-context property override cache.
	ContextCacheSize int `yaml:"context_cache_size"`

	// ContextCacheTTL bounds how long per-context overrides are served
	// without re-reading the database.
	ContextCacheTTL time.Duration `yaml:"context_cache_ttl"`

	// UseCountRetention bounds how long booking use counts are kept;
	// older rows are purged by the maintenance job.
	UseCountRetention time.Duration `yaml:"use_count_retention"`

	// UseCountPurgeSchedule is the cron schedule of the purge job.
	UseCountPurgeSchedule string `yaml:"use_count_purge_schedule"`
}

// LoadConfig loads configuration from the environment. When
// RESOURCED_CONFIG_FILE is set, the YAML file is read first and
// environment variables override it.
func LoadConfig() (*Config, error) {
	cfg := defaultConfig()

	if file := getEnv("RESOURCED_CONFIG_FILE", ""); file != "" {
		if err := cfg.loadFile(file); err != nil {
			return nil, err
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            "8080",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			HealthPort:      "9090",
		},
		Storage: storage.DefaultConfig(),
		Observability: ObservabilityConfig{
			LogLevel:       observability.InfoLevel,
			MetricsEnabled: true,
		},
		Properties: PropertiesConfig{
			Defaults:              map[string]string{},
			ContextCacheSize:      1024,
			ContextCacheTTL:       5 * time.Minute,
			UseCountRetention:     90 * 24 * time.Hour,
			UseCountPurgeSchedule: "@daily",
		},
	}
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	// Server
	c.Server.Host = getEnv("RESOURCED_HOST", c.Server.Host)
	c.Server.Port = getEnv("RESOURCED_PORT", c.Server.Port)
	c.Server.ReadTimeout = getEnvDuration("RESOURCED_READ_TIMEOUT", c.Server.ReadTimeout)
	c.Server.WriteTimeout = getEnvDuration("RESOURCED_WRITE_TIMEOUT", c.Server.WriteTimeout)
	c.Server.IdleTimeout = getEnvDuration("RESOURCED_IDLE_TIMEOUT", c.Server.IdleTimeout)
	c.Server.ShutdownTimeout = getEnvDuration("RESOURCED_SHUTDOWN_TIMEOUT", c.Server.ShutdownTimeout)
	c.Server.HealthPort = getEnv("RESOURCED_HEALTH_PORT", c.Server.HealthPort)

	// Postgres
	c.Storage.PostgresURL = getEnv("RESOURCED_POSTGRES_URL", c.Storage.PostgresURL)
	if maxConns := getEnvInt("RESOURCED_POSTGRES_MAX_CONNS", 0); maxConns > 0 {
		c.Storage.PostgresMaxConns = maxConns
	}
	if minConns := getEnvInt("RESOURCED_POSTGRES_MIN_CONNS", 0); minConns > 0 {
		c.Storage.PostgresMinConns = minConns
	}
	if timeout := getEnvDuration("RESOURCED_POSTGRES_TIMEOUT", 0); timeout > 0 {
		c.Storage.PostgresTimeout = timeout
	}
	if migrate := getEnv("RESOURCED_MIGRATE_ON_START", ""); migrate != "" {
		c.Storage.MigrateOnStart = parseBool(migrate)
	}

	// Redis / cache
	if cacheEnabled := getEnv("RESOURCED_CACHE_ENABLED", ""); cacheEnabled != "" {
		c.Storage.CacheEnabled = parseBool(cacheEnabled)
	}
	c.Storage.RedisAddr = getEnv("RESOURCED_REDIS_ADDR", c.Storage.RedisAddr)
	c.Storage.RedisPass = getEnv("RESOURCED_REDIS_PASSWORD", c.Storage.RedisPass)
	if redisDB := getEnvInt("RESOURCED_REDIS_DB", -1); redisDB >= 0 {
		c.Storage.RedisDB = redisDB
	}
	if ttl := getEnvDuration("RESOURCED_RESOURCE_TTL", 0); ttl > 0 {
		c.Storage.ResourceTTL = ttl
	}
	if ttl := getEnvDuration("RESOURCED_LIST_TTL", 0); ttl > 0 {
		c.Storage.ListTTL = ttl
	}

	// Observability
	if level := getEnv("RESOURCED_LOG_LEVEL", ""); level != "" {
		c.Observability.LogLevel = observability.ParseLogLevel(level)
	}
	if metricsEnabled := getEnv("RESOURCED_METRICS_ENABLED", ""); metricsEnabled != "" {
		c.Observability.MetricsEnabled = parseBool(metricsEnabled)
	}

	// Properties
	c.Properties.File = getEnv("RESOURCED_PROPERTIES_FILE", c.Properties.File)
	if size := getEnvInt("RESOURCED_PROPERTY_CACHE_SIZE", 0); size > 0 {
		c.Properties.ContextCacheSize = size
	}
	if ttl := getEnvDuration("RESOURCED_PROPERTY_CACHE_TTL", 0); ttl > 0 {
		c.Properties.ContextCacheTTL = ttl
	}
	if retention := getEnvDuration("RESOURCED_USE_COUNT_RETENTION", 0); retention > 0 {
		c.Properties.UseCountRetention = retention
	}
	c.Properties.UseCountPurgeSchedule = getEnv("RESOURCED_USE_COUNT_PURGE_SCHEDULE", c.Properties.UseCountPurgeSchedule)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Server.HealthPort == "" {
		return fmt.Errorf("health port is required")
	}
	if c.Server.Port == c.Server.HealthPort {
		return fmt.Errorf("server port and health port must be different")
	}

	if err := c.Storage.Validate(); err != nil {
		return err
	}

	if c.Properties.ContextCacheSize <= 0 {
		return fmt.Errorf("property cache size must be positive")
	}
	return nil
}

func parseBool(value string) bool {
	return strings.ToLower(value) == "true" || value == "1"
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
