// Package config loads service configuration from the environment.
package config

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

// Storage backends the server can persist to.
const (
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
)

type Config struct {
	Port           string   `envconfig:"PORT" default:"8080"`
	StorageBackend string   `envconfig:"STORAGE_BACKEND" default:"redis"`
	RedisAddr      string   `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	PostgresURL    string   `envconfig:"POSTGRES_URL"`
	KafkaBrokers   []string `envconfig:"KAFKA_BROKERS"`
	OTLPEndpoint   string   `envconfig:"OTEL_EXPORTER_OTLP_ENDPOINT" default:"localhost:4317"`
}

func Load() (Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, fmt.Errorf("process environment: %w", err)
	}

	switch cfg.StorageBackend {
	case BackendMemory, BackendRedis:
	case BackendPostgres:
		if cfg.PostgresURL == "" {
			return Config{}, fmt.Errorf("POSTGRES_URL is required for the postgres backend")
		}
	default:
		return Config{}, fmt.Errorf("unknown storage backend %q", cfg.StorageBackend)
	}

	return cfg, nil
}
