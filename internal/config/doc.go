// Package config provides YAML-based service configuration with validation.
// Configuration is loaded once at startup and treated as read-only for the
// lifetime of the process.
package config
