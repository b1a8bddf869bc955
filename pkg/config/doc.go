// Package config loads service configuration from environment variables
// with an optional YAML file overlay, and serves per-context configuration
// properties backed by the context_attribute table.
package config
