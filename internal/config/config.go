// Package config provides configuration loading for knowd.
//
// Configuration is loaded from an optional YAML file and overridden by
// environment variables, with hardcoded defaults below both.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/fyrsmithlabs/knowd/internal/cache"
	"github.com/fyrsmithlabs/knowd/internal/embeddings"
	"github.com/fyrsmithlabs/knowd/internal/logging"
	"github.com/fyrsmithlabs/knowd/internal/reconcile"
	"github.com/fyrsmithlabs/knowd/internal/retrieval"
	"github.com/fyrsmithlabs/knowd/internal/source"
	"github.com/fyrsmithlabs/knowd/internal/vectorstore"
)

// Config holds the complete knowd configuration.
type Config struct {
	Server     ServerConfig             `koanf:"server"`
	Logging    logging.Config           `koanf:"logging"`
	Telemetry  TelemetryConfig          `koanf:"telemetry"`
	Qdrant     vectorstore.QdrantConfig `koanf:"qdrant"`
	Redis      cache.Config             `koanf:"redis"`
	Embeddings embeddings.Config        `koanf:"embeddings"`
	Source     source.Config            `koanf:"source"`
	Sync       reconcile.Config         `koanf:"sync"`
	Retrieval  retrieval.Config         `koanf:"retrieval"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// TelemetryConfig holds OpenTelemetry configuration.
type TelemetryConfig struct {
	Enabled     bool   `koanf:"enabled"`
	ServiceName string `koanf:"service_name"`
	// Endpoint is the OTLP gRPC collector endpoint (host:port).
	Endpoint string `koanf:"endpoint"`
	// Insecure disables TLS on the exporter connection.
	Insecure bool `koanf:"insecure"`
}

// applyDefaults sets default values for missing configuration fields.
func applyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8600
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 10 * time.Second
	}
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = "knowd"
	}
	if cfg.Telemetry.Endpoint == "" {
		cfg.Telemetry.Endpoint = "localhost:4317"
	}

	cfg.Logging.ApplyDefaults()
	cfg.Qdrant.ApplyDefaults()
	cfg.Redis.ApplyDefaults()
	cfg.Embeddings.ApplyDefaults()
	cfg.Source.ApplyDefaults()
	cfg.Sync.ApplyDefaults()
	cfg.Retrieval.ApplyDefaults()
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d (must be 1-65535)", c.Server.Port)
	}
	if c.Server.ShutdownTimeout <= 0 {
		return errors.New("shutdown timeout must be positive")
	}
	if c.Telemetry.Enabled && c.Telemetry.ServiceName == "" {
		return errors.New("service name required when telemetry is enabled")
	}
	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging: %w", err)
	}
	if err := c.Qdrant.Validate(); err != nil {
		return fmt.Errorf("qdrant: %w", err)
	}
	if err := c.Embeddings.Validate(); err != nil {
		return fmt.Errorf("embeddings: %w", err)
	}
	if err := c.Source.Validate(); err != nil {
		return fmt.Errorf("source: %w", err)
	}
	return nil
}
