// Package config provides configuration structures and validation for
// the gateway. It handles environment-based configuration for the HTTP
// server, databases, messaging and the billing protocol knobs.
package config

import (
	"errors"
	"strings"
	"time"
)

// Config holds the complete application configuration. Each field
// represents a subsystem and is validated during startup.
type Config struct {
	Application ApplicationConfig
	Logging     LoggingConfig
	Server      ServerConfig
	Postgres    PostgresConfig
	MongoDB     MongoDBConfig
	Kafka       KafkaConfig
	Billing     BillingConfig
	RateLimit   RateLimitConfig
	Upstream    UpstreamConfig
	Providers   ProvidersConfig
}

// ApplicationConfig contains general application configuration
type ApplicationConfig struct {
	Env  string
	Name string
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level string
}

// ServerConfig contains HTTP server configuration settings
type ServerConfig struct {
	Port            int           // Port to listen on
	ShutdownTimeout time.Duration // Grace period for server shutdown
	ReadTimeout     time.Duration // Maximum duration for reading entire request
	WriteTimeout    time.Duration // Maximum duration for writing response
	IdleTimeout     time.Duration // Maximum duration to wait for next request
}

// PostgresConfig contains PostgreSQL configuration
type PostgresConfig struct {
	URL             string        // Database connection string
	MaxConns        int32         // Maximum number of open connections
	MinConns        int32         // Minimum number of idle connections
	ConnMaxLifetime time.Duration // Maximum lifetime of a connection
	ConnMaxIdleTime time.Duration // Maximum idle time of a connection
	MigrationsPath  string        // Path to migration files
}

// MongoDBConfig contains MongoDB configuration
type MongoDBConfig struct {
	URI             string
	Database        string
	Timeout         time.Duration
	MaxPoolSize     uint64
	MinPoolSize     uint64
	MaxConnIdleTime time.Duration
}

// KafkaConfig contains Kafka configuration for the reconciliation
// event channel.
type KafkaConfig struct {
	Brokers             string
	ReconciliationTopic string
	NumPartitions       int
	ReplicationFactor   int
	MaxWait             time.Duration
}

// BillingConfig contains the billing protocol knobs: how long an
// upstream purchase may take to resolve, the idempotency replay window
// and the purchase worker pool size.
type BillingConfig struct {
	ResolutionWindow time.Duration
	IdempotencyTTL   time.Duration
	WorkerPoolSize   int
}

// RateLimitConfig contains the per (credential, provider) token bucket
// settings for billed calls.
type RateLimitConfig struct {
	PerMinute int
	Burst     int
}

// UpstreamConfig contains the HTTP client settings for provider calls
type UpstreamConfig struct {
	RequestTimeout time.Duration
}

// ProvidersConfig locates the optional provider declarations loaded at
// startup.
type ProvidersConfig struct {
	File string
}

// validate performs comprehensive validation of all configuration
// values, collecting every violation into one error.
func (c *Config) validate() error {
	var validationErrors []string

	// Validate Server config
	if c.Server.Port <= 0 {
		validationErrors = append(validationErrors, "SERVER_PORT must be greater than 0")
	}
	if c.Server.ShutdownTimeout <= 0 {
		validationErrors = append(validationErrors, "SERVER_SHUTDOWN_TIMEOUT must be greater than 0")
	}
	if c.Server.ReadTimeout <= 0 {
		validationErrors = append(validationErrors, "SERVER_READ_TIMEOUT must be greater than 0")
	}
	if c.Server.WriteTimeout <= 0 {
		validationErrors = append(validationErrors, "SERVER_WRITE_TIMEOUT must be greater than 0")
	}
	if c.Server.IdleTimeout <= 0 {
		validationErrors = append(validationErrors, "SERVER_IDLE_TIMEOUT must be greater than 0")
	}

	// Validate PostgreSQL config
	if c.Postgres.URL == "" {
		validationErrors = append(validationErrors, "POSTGRES_URL is required")
	}
	if c.Postgres.MaxConns <= 0 {
		validationErrors = append(validationErrors, "POSTGRES_MAX_CONNS must be greater than 0")
	}
	if c.Postgres.MinConns <= 0 {
		validationErrors = append(validationErrors, "POSTGRES_MIN_CONNS must be greater than 0")
	}
	if c.Postgres.ConnMaxLifetime <= 0 {
		validationErrors = append(validationErrors, "POSTGRES_MAX_CONN_LIFETIME must be greater than 0")
	}
	if c.Postgres.ConnMaxIdleTime <= 0 {
		validationErrors = append(validationErrors, "POSTGRES_MAX_CONN_IDLE_TIME must be greater than 0")
	}

	// Validate MongoDB config
	if c.MongoDB.URI == "" {
		validationErrors = append(validationErrors, "MONGO_URI is required")
	}
	if c.MongoDB.Database == "" {
		validationErrors = append(validationErrors, "MONGO_DATABASE is required")
	}
	if c.MongoDB.Timeout <= 0 {
		validationErrors = append(validationErrors, "MONGO_TIMEOUT must be greater than 0")
	}
	if c.MongoDB.MaxPoolSize <= 0 {
		validationErrors = append(validationErrors, "MONGO_MAX_POOL_SIZE must be greater than 0")
	}
	if c.MongoDB.MinPoolSize <= 0 {
		validationErrors = append(validationErrors, "MONGO_MIN_POOL_SIZE must be greater than 0")
	}
	if c.MongoDB.MaxConnIdleTime <= 0 {
		validationErrors = append(validationErrors, "MONGO_MAX_CONN_IDLE_TIME must be greater than 0")
	}

	// Validate Kafka config
	if len(c.Kafka.Brokers) == 0 {
		validationErrors = append(validationErrors, "KAFKA_BROKERS is required")
	}
	if c.Kafka.ReconciliationTopic == "" {
		validationErrors = append(validationErrors, "KAFKA_RECONCILIATION_TOPIC is required")
	}
	if c.Kafka.MaxWait <= 0 {
		validationErrors = append(validationErrors, "KAFKA_MAX_WAIT must be greater than 0")
	}

	// Validate Billing config
	if c.Billing.ResolutionWindow <= 0 {
		validationErrors = append(validationErrors, "BILLING_RESOLUTION_WINDOW must be greater than 0")
	}
	if c.Billing.IdempotencyTTL <= 0 {
		validationErrors = append(validationErrors, "BILLING_IDEMPOTENCY_TTL must be greater than 0")
	}
	if c.Billing.WorkerPoolSize <= 0 {
		validationErrors = append(validationErrors, "BILLING_WORKER_POOL_SIZE must be greater than 0")
	}

	// Validate RateLimit config
	if c.RateLimit.PerMinute <= 0 {
		validationErrors = append(validationErrors, "RATE_LIMIT_PER_MINUTE must be greater than 0")
	}
	if c.RateLimit.Burst <= 0 {
		validationErrors = append(validationErrors, "RATE_LIMIT_BURST must be greater than 0")
	}

	// Validate Upstream config
	if c.Upstream.RequestTimeout <= 0 {
		validationErrors = append(validationErrors, "UPSTREAM_REQUEST_TIMEOUT must be greater than 0")
	}

	if len(validationErrors) > 0 {
		return errors.New(strings.Join(validationErrors, ", "))
	}

	return nil
}
