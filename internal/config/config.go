package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete service configuration
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Stream  StreamConfig  `yaml:"stream"`
	CORS    CORSConfig    `yaml:"cors"`
	Logging LoggingConfig `yaml:"logging"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Port         int    `yaml:"port"`
	Address      string `yaml:"address"`
	ReadTimeout  int    `yaml:"read_timeout"`   // seconds
	WriteTimeout int    `yaml:"write_timeout"`  // seconds; must stay 0 for streaming responses
	IdleTimeout  int    `yaml:"idle_timeout"`   // seconds
	MaxBodyBytes int64  `yaml:"max_body_bytes"` // request body cap for non-stream endpoints
}

// StreamConfig contains the record feed parameters
type StreamConfig struct {
	MaxItems         int `yaml:"max_items"`          // records per session
	IntervalMs       int `yaml:"interval_ms"`        // delay between records
	WriteBufferBytes int `yaml:"write_buffer_bytes"` // sink capacity before saturation
}

// CORSConfig contains the cross-origin allow-list
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads and parses the configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

// Validate performs comprehensive validation of the configuration
func (c *Config) Validate() error {
	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("server config: %w", err)
	}

	if err := c.Stream.Validate(); err != nil {
		return fmt.Errorf("stream config: %w", err)
	}

	if err := c.CORS.Validate(); err != nil {
		return fmt.Errorf("cors config: %w", err)
	}

	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}

	return nil
}

// Validate validates server configuration
func (s *ServerConfig) Validate() error {
	if s.Port < 1 || s.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", s.Port)
	}

	if s.Address == "" {
		return fmt.Errorf("address cannot be empty")
	}

	if s.ReadTimeout < 0 {
		return fmt.Errorf("read_timeout cannot be negative, got %d", s.ReadTimeout)
	}

	// A server-wide write timeout would sever long-lived stream responses.
	if s.WriteTimeout != 0 {
		return fmt.Errorf("write_timeout must be 0 for streaming responses, got %d", s.WriteTimeout)
	}

	if s.IdleTimeout < 0 {
		return fmt.Errorf("idle_timeout cannot be negative, got %d", s.IdleTimeout)
	}

	if s.MaxBodyBytes < 1 {
		return fmt.Errorf("max_body_bytes must be at least 1, got %d", s.MaxBodyBytes)
	}

	return nil
}

// Validate validates stream configuration
func (s *StreamConfig) Validate() error {
	if s.MaxItems < 1 {
		return fmt.Errorf("max_items must be at least 1, got %d", s.MaxItems)
	}

	if s.IntervalMs < 0 {
		return fmt.Errorf("interval_ms cannot be negative, got %d", s.IntervalMs)
	}

	if s.WriteBufferBytes < 1 {
		return fmt.Errorf("write_buffer_bytes must be at least 1, got %d", s.WriteBufferBytes)
	}

	return nil
}

// Validate validates CORS configuration
func (c *CORSConfig) Validate() error {
	for _, origin := range c.AllowedOrigins {
		if origin == "" {
			return fmt.Errorf("allowed_origins cannot contain empty entries")
		}
	}

	return nil
}

// Validate validates logging configuration
func (l *LoggingConfig) Validate() error {
	switch l.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("level must be one of debug, info, warn, error, got %q", l.Level)
	}

	switch l.Format {
	case "text", "json":
	default:
		return fmt.Errorf("format must be text or json, got %q", l.Format)
	}

	switch l.Output {
	case "stdout", "stderr":
	default:
		return fmt.Errorf("output must be stdout or stderr, got %q", l.Output)
	}

	return nil
}

// GetReadTimeout returns the read timeout as a duration
func (s *ServerConfig) GetReadTimeout() time.Duration {
	return time.Duration(s.ReadTimeout) * time.Second
}

// GetIdleTimeout returns the idle timeout as a duration
func (s *ServerConfig) GetIdleTimeout() time.Duration {
	return time.Duration(s.IdleTimeout) * time.Second
}

// GetInterval returns the inter-record delay as a duration
func (s *StreamConfig) GetInterval() time.Duration {
	return time.Duration(s.IntervalMs) * time.Millisecond
}
