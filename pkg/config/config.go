// Package config loads the server configuration from YAML.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"topo_router/pkg/api"
	"topo_router/pkg/logging"
)

// Config is the server configuration.
type Config struct {
	Server   ServerOptions   `yaml:"server"`
	Store    StoreOptions    `yaml:"store"`
	Snapping SnappingOptions `yaml:"snapping"`
	Sessions SessionOptions  `yaml:"sessions"`
	Logging  LoggingOptions  `yaml:"logging"`
}

type ServerOptions struct {
	Addr           string        `yaml:"addr"`
	ReadTimeout    time.Duration `yaml:"read_timeout"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	MaxConcurrent  int           `yaml:"max_concurrent"`
	CORSOrigin     string        `yaml:"cors_origin"`
}

type StoreOptions struct {
	Path string `yaml:"path"`
}

// SnappingOptions controls waypoint snapping. Distance is in screen pixels;
// no snapping happens below MinZoom.
type SnappingOptions struct {
	DistancePx float64 `yaml:"distance_px"`
	MinZoom    int     `yaml:"min_zoom"`
}

type SessionOptions struct {
	Max             int           `yaml:"max"`
	TTL             time.Duration `yaml:"ttl"`
	CleanupInterval time.Duration `yaml:"cleanup_interval"`
}

type LoggingOptions struct {
	Level string `yaml:"level"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	srv := api.DefaultConfig(":8080")
	return Config{
		Server: ServerOptions{
			Addr:           srv.Addr,
			ReadTimeout:    srv.ReadTimeout,
			WriteTimeout:   srv.WriteTimeout,
			RequestTimeout: srv.RequestTimeout,
			MaxConcurrent:  srv.MaxConcurrent,
		},
		Store:    StoreOptions{Path: "paths.db"},
		Snapping: SnappingOptions{DistancePx: 30, MinZoom: 10},
		Sessions: SessionOptions{Max: 1000, TTL: time.Hour, CleanupInterval: 5 * time.Minute},
		Logging:  LoggingOptions{Level: "info"},
	}
}

// Load reads a YAML file over the defaults. Keys missing from the file keep
// their default values.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks value ranges.
func (c Config) Validate() error {
	var errs []error
	if c.Server.Addr == "" {
		errs = append(errs, errors.New("server.addr is empty"))
	}
	if c.Store.Path == "" {
		errs = append(errs, errors.New("store.path is empty"))
	}
	if c.Snapping.DistancePx <= 0 {
		errs = append(errs, fmt.Errorf("snapping.distance_px must be positive, got %v", c.Snapping.DistancePx))
	}
	if c.Snapping.MinZoom < 0 {
		errs = append(errs, fmt.Errorf("snapping.min_zoom must not be negative, got %d", c.Snapping.MinZoom))
	}
	if c.Sessions.Max <= 0 {
		errs = append(errs, fmt.Errorf("sessions.max must be positive, got %d", c.Sessions.Max))
	}
	if c.Sessions.TTL <= 0 || c.Sessions.CleanupInterval <= 0 {
		errs = append(errs, errors.New("sessions.ttl and sessions.cleanup_interval must be positive"))
	}
	if _, err := logging.ParseLevel(c.Logging.Level); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// ServerConfig converts the server section for the HTTP layer.
func (c Config) ServerConfig() api.ServerConfig {
	return api.ServerConfig{
		Addr:           c.Server.Addr,
		ReadTimeout:    c.Server.ReadTimeout,
		WriteTimeout:   c.Server.WriteTimeout,
		RequestTimeout: c.Server.RequestTimeout,
		MaxConcurrent:  c.Server.MaxConcurrent,
		CORSOrigin:     c.Server.CORSOrigin,
	}
}
