package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aravindb26/middleware-sub022/pkg/observability"
)

// TestGetEnv tests the getEnv helper function
func TestGetEnv(t *testing.T) {
	tests := []struct {
		name         string
		key          string
		defaultValue string
		envValue     string
		want         string
	}{
		{
			name:         "returns env value when set",
			key:          "TEST_VAR",
			defaultValue: "default",
			envValue:     "custom",
			want:         "custom",
		},
		{
			name:         "returns default when env not set",
			key:          "TEST_VAR_NOT_SET",
			defaultValue: "default",
			envValue:     "",
			want:         "default",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.envValue != "" {
				os.Setenv(tt.key, tt.envValue)
				defer os.Unsetenv(tt.key)
			}

			got := getEnv(tt.key, tt.defaultValue)
			if got != tt.want {
				t.Errorf("getEnv() = %v, want %v", got, tt.want)
			}
		})
	}
}

// TestGetEnvDuration tests the getEnvDuration helper function
func TestGetEnvDuration(t *testing.T) {
	os.Setenv("TEST_DURATION", "45s")
	defer os.Unsetenv("TEST_DURATION")

	if got := getEnvDuration("TEST_DURATION", time.Second); got != 45*time.Second {
		t.Errorf("getEnvDuration() = %v, want 45s", got)
	}
	if got := getEnvDuration("TEST_DURATION_NOT_SET", time.Second); got != time.Second {
		t.Errorf("getEnvDuration() default = %v, want 1s", got)
	}

	os.Setenv("TEST_DURATION_BAD", "not-a-duration")
	defer os.Unsetenv("TEST_DURATION_BAD")
	if got := getEnvDuration("TEST_DURATION_BAD", time.Second); got != time.Second {
		t.Errorf("getEnvDuration() malformed = %v, want 1s", got)
	}
}

// TestLoadConfigDefaults tests loading with only the required settings
func TestLoadConfigDefaults(t *testing.T) {
	os.Setenv("RESOURCED_POSTGRES_URL", "postgres://localhost/resourced")
	defer os.Unsetenv("RESOURCED_POSTGRES_URL")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() failed: %v", err)
	}

	if cfg.Server.Port != "8080" {
		t.Errorf("default port = %v, want 8080", cfg.Server.Port)
	}
	if cfg.Server.HealthPort != "9090" {
		t.Errorf("default health port = %v, want 9090", cfg.Server.HealthPort)
	}
	if cfg.Observability.LogLevel != observability.InfoLevel {
		t.Errorf("default log level = %v, want info", cfg.Observability.LogLevel)
	}
	if cfg.Storage.PostgresMaxConns != 25 {
		t.Errorf("default max conns = %v, want 25", cfg.Storage.PostgresMaxConns)
	}
	if cfg.Properties.ContextCacheSize != 1024 {
		t.Errorf("default property cache size = %v, want 1024", cfg.Properties.ContextCacheSize)
	}
}

// TestLoadConfigEnvOverrides tests environment variable overrides
func TestLoadConfigEnvOverrides(t *testing.T) {
	env := map[string]string{
		"RESOURCED_POSTGRES_URL":  "postgres://localhost/resourced",
		"RESOURCED_PORT":          "8181",
		"RESOURCED_LOG_LEVEL":     "debug",
		"RESOURCED_CACHE_ENABLED": "true",
		"RESOURCED_REDIS_ADDR":    "localhost:6379",
		"RESOURCED_RESOURCE_TTL":  "30m",
	}
	for k, v := range env {
		os.Setenv(k, v)
		defer os.Unsetenv(k)
	}

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() failed: %v", err)
	}

	if cfg.Server.Port != "8181" {
		t.Errorf("port = %v, want 8181", cfg.Server.Port)
	}
	if cfg.Observability.LogLevel != observability.DebugLevel {
		t.Errorf("log level = %v, want debug", cfg.Observability.LogLevel)
	}
	if !cfg.Storage.CacheEnabled {
		t.Error("cache should be enabled")
	}
	if cfg.Storage.RedisAddr != "localhost:6379" {
		t.Errorf("redis addr = %v", cfg.Storage.RedisAddr)
	}
	if cfg.Storage.ResourceTTL != 30*time.Minute {
		t.Errorf("resource TTL = %v, want 30m", cfg.Storage.ResourceTTL)
	}
}

// TestLoadConfigFromFile tests the YAML overlay with env overrides on top
func TestLoadConfigFromFile(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "config.yaml")
	contents := `
server:
  port: "8282"
  health_port: "9292"
storage:
  postgres_url: postgres://file-host/resourced
  postgres_max_conns: 50
observability:
  log_level: warn
properties:
  defaults:
    com.openexchange.resource.simplePermissionMode: "false"
`
	if err := os.WriteFile(file, []byte(contents), 0o600); err != nil {
		t.Fatal(err)
	}

	os.Setenv("RESOURCED_CONFIG_FILE", file)
	os.Setenv("RESOURCED_PORT", "8383")
	defer os.Unsetenv("RESOURCED_CONFIG_FILE")
	defer os.Unsetenv("RESOURCED_PORT")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() failed: %v", err)
	}

	if cfg.Server.Port != "8383" {
		t.Errorf("env must override file: port = %v, want 8383", cfg.Server.Port)
	}
	if cfg.Server.HealthPort != "9292" {
		t.Errorf("health port = %v, want 9292", cfg.Server.HealthPort)
	}
	if cfg.Storage.PostgresURL != "postgres://file-host/resourced" {
		t.Errorf("postgres URL = %v", cfg.Storage.PostgresURL)
	}
	if cfg.Storage.PostgresMaxConns != 50 {
		t.Errorf("max conns = %v, want 50", cfg.Storage.PostgresMaxConns)
	}
	if cfg.Observability.LogLevel != observability.WarnLevel {
		t.Errorf("log level = %v, want warn", cfg.Observability.LogLevel)
	}
	if got := cfg.Properties.Defaults["com.openexchange.resource.simplePermissionMode"]; got != "false" {
		t.Errorf("property default = %q, want false", got)
	}
}

// TestConfigValidation tests validation failures
func TestConfigValidation(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{
			name:   "missing postgres URL",
			modify: func(c *Config) { c.Storage.PostgresURL = "" },
		},
		{
			name:   "same port for server and health",
			modify: func(c *Config) { c.Server.HealthPort = c.Server.Port },
		},
		{
			name: "cache enabled without redis addr",
			modify: func(c *Config) {
				c.Storage.CacheEnabled = true
				c.Storage.RedisAddr = ""
			},
		},
		{
			name:   "non-positive property cache size",
			modify: func(c *Config) { c.Properties.ContextCacheSize = 0 },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			cfg.Storage.PostgresURL = "postgres://localhost/resourced"
			tt.modify(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Validate() should have failed")
			}
		})
	}
}
