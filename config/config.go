// Package config loads and validates the RuleGate service configuration.
//
// Configuration is a single JSON document. Environment references of the
// form ${VAR} are expanded before parsing so secrets such as the admin
// token can stay out of the file itself.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/c360/rulegate/errors"
	"github.com/c360/rulegate/registry"
)

// Config represents the complete application configuration
type Config struct {
	Service ServiceConfig `json:"service"`
	Engine  EngineConfig  `json:"engine"`
	NATS    NATSConfig    `json:"nats"`
	HTTP    HTTPConfig    `json:"http"`
	Metrics MetricsConfig `json:"metrics"`
}

// ServiceConfig defines service identity
type ServiceConfig struct {
	Name        string `json:"name"`
	Environment string `json:"environment,omitempty"` // "prod", "dev", "test"
}

// EngineConfig defines the rule engine instance
type EngineConfig struct {
	Name string `json:"name"` // Engine identity in logs, metrics and events

	// Admin is the sole principal permitted to replace the rule set.
	Admin string `json:"admin"`

	// PermissiveFailures makes a failing rule predicate count as a
	// rejection instead of an error. Default false: propagate failures.
	PermissiveFailures bool `json:"permissive_failures,omitempty"`

	// Rules is the initial ordered rule sequence, built through the rule
	// registry. Order is significant: cheap, likely-to-reject rules first.
	Rules []registry.Spec `json:"rules,omitempty"`
}

// NATSConfig defines the event delivery connection
type NATSConfig struct {
	Enabled        bool   `json:"enabled"`
	URL            string `json:"url,omitempty"`
	SubjectPrefix  string `json:"subject_prefix,omitempty"`
	ConnectTimeout string `json:"connect_timeout,omitempty"` // e.g. "5s"
	ReconnectWait  string `json:"reconnect_wait,omitempty"`  // e.g. "2s"
	MaxReconnects  int    `json:"max_reconnects,omitempty"`  // -1 = unlimited
}

// HTTPConfig defines the admin/validation gateway
type HTTPConfig struct {
	Enabled    bool   `json:"enabled"`
	Addr       string `json:"addr,omitempty"` // e.g. ":8080"
	AdminToken string `json:"admin_token,omitempty"`
}

// MetricsConfig defines the Prometheus metrics server
type MetricsConfig struct {
	Enabled bool   `json:"enabled"`
	Port    int    `json:"port,omitempty"`
	Path    string `json:"path,omitempty"`
}

// Default returns the default configuration
func Default() *Config {
	return &Config{
		Service: ServiceConfig{
			Name:        "rulegate",
			Environment: "dev",
		},
		Engine: EngineConfig{
			Name: "default",
		},
		NATS: NATSConfig{
			Enabled:        false,
			URL:            "nats://localhost:4222",
			SubjectPrefix:  "rulegate",
			ConnectTimeout: "5s",
			ReconnectWait:  "2s",
			MaxReconnects:  -1,
		},
		HTTP: HTTPConfig{
			Enabled: true,
			Addr:    ":8080",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Port:    9090,
			Path:    "/metrics",
		},
	}
}

// Load reads, expands and validates the configuration at path. Fields
// absent from the file keep their defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WrapInvalid(err, "Config", "Load", "read config file")
	}

	expanded := os.ExpandEnv(string(data))

	cfg := Default()
	if err := json.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, errors.WrapInvalid(err, "Config", "Load", "parse config file")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for structural problems
func (c *Config) Validate() error {
	if c.Service.Name == "" {
		return errors.WrapInvalid(errors.ErrMissingConfig,
			"Config", "Validate", "service.name check")
	}
	if c.Engine.Name == "" {
		return errors.WrapInvalid(errors.ErrMissingConfig,
			"Config", "Validate", "engine.name check")
	}

	if c.NATS.Enabled {
		if c.NATS.URL == "" {
			return errors.WrapInvalid(errors.ErrMissingConfig,
				"Config", "Validate", "nats.url check")
		}
		if _, err := c.NATS.ConnectTimeoutDuration(); err != nil {
			return err
		}
		if _, err := c.NATS.ReconnectWaitDuration(); err != nil {
			return err
		}
	}

	if c.HTTP.Enabled {
		if c.HTTP.Addr == "" {
			return errors.WrapInvalid(errors.ErrMissingConfig,
				"Config", "Validate", "http.addr check")
		}
		if c.HTTP.AdminToken != "" && c.Engine.Admin == "" {
			return errors.WrapInvalid(
				fmt.Errorf("http.admin_token set without engine.admin: %w", errors.ErrInvalidConfig),
				"Config", "Validate", "admin identity check")
		}
	}

	if c.Metrics.Enabled && (c.Metrics.Port < 0 || c.Metrics.Port > 65535) {
		return errors.WrapInvalid(
			fmt.Errorf("metrics.port %d: %w", c.Metrics.Port, errors.ErrInvalidConfig),
			"Config", "Validate", "metrics.port check")
	}

	return nil
}

// ConnectTimeoutDuration parses the NATS connect timeout
func (n NATSConfig) ConnectTimeoutDuration() (time.Duration, error) {
	return parseDuration("nats.connect_timeout", n.ConnectTimeout, 5*time.Second)
}

// ReconnectWaitDuration parses the NATS reconnect wait
func (n NATSConfig) ReconnectWaitDuration() (time.Duration, error) {
	return parseDuration("nats.reconnect_wait", n.ReconnectWait, 2*time.Second)
}

func parseDuration(field, value string, fallback time.Duration) (time.Duration, error) {
	if value == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, errors.WrapInvalid(
			fmt.Errorf("%s %q: %w", field, value, errors.ErrInvalidConfig),
			"Config", "Validate", "duration parse")
	}
	if d <= 0 {
		return 0, errors.WrapInvalid(
			fmt.Errorf("%s must be positive: %w", field, errors.ErrInvalidConfig),
			"Config", "Validate", "duration range")
	}
	return d, nil
}
