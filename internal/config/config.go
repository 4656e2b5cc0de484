// Package config provides centralized configuration management for the
// application. It loads settings from environment variables with sensible
// defaults and validates everything on startup to fail fast on
// misconfiguration.
package config

import (
	"fmt"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Server  ServerConfig
	Store   StoreConfig
	Import  ImportConfig
	Query   QueryConfig
	Worker  WorkerConfig
	Logging LoggingConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 127.0.0.1)
	Host string `env:"SERVER_HOST" default:"127.0.0.1"`

	// Port is the port to listen on (default: 8080)
	Port int `env:"SERVER_PORT" default:"8080"`

	// ReadTimeout is the maximum duration for reading a request body (default: 30s)
	ReadTimeout time.Duration `env:"SERVER_READ_TIMEOUT" default:"30s"`

	// WriteTimeout is the maximum duration for writing a response (default: 0 for SSE)
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"0s"`

	// IdleTimeout is the keep-alive timeout (default: 60s)
	IdleTimeout time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`

	// ShutdownTimeout is the maximum wait for graceful shutdown (default: 30s)
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`
}

// StoreConfig holds storage settings.
type StoreConfig struct {
	// Path is the SQLite file location (default: data/sheetvault.db)
	// Supports both STORE_PATH and DATABASE_PATH env vars.
	Path string `env:"STORE_PATH" envAlt:"DATABASE_PATH" default:"data/sheetvault.db"`
}

// ImportConfig holds import processing settings.
type ImportConfig struct {
	// MaxFileSize is the maximum allowed upload size in bytes (default: 100MB)
	MaxFileSize int64 `env:"IMPORT_MAX_FILE_SIZE" default:"104857600"`

	// MaxConcurrent is the maximum number of admitted imports (default: 4)
	MaxConcurrent int `env:"IMPORT_MAX_CONCURRENT" default:"4"`

	// MaxWaitTime is how long to wait for an import slot (default: 30s)
	MaxWaitTime time.Duration `env:"IMPORT_MAX_WAIT_TIME" default:"30s"`

	// Timeout is the maximum duration for one import transaction (default: 10m)
	Timeout time.Duration `env:"IMPORT_TIMEOUT" default:"10m"`
}

// QueryConfig holds pagination settings.
type QueryConfig struct {
	// PageSize is the default rows per page (default: 50)
	PageSize int `env:"QUERY_PAGE_SIZE" default:"50"`

	// MaxPageSize caps a caller-requested page size (default: 1000)
	MaxPageSize int `env:"QUERY_MAX_PAGE_SIZE" default:"1000"`
}

// WorkerConfig holds dispatcher settings.
type WorkerConfig struct {
	// Readers is the number of concurrent read workers (default: 4)
	Readers int `env:"WORKER_READERS" default:"4"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Validate checks cross-field constraints after loading.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("SERVER_PORT out of range: %d", c.Server.Port)
	}
	if c.Store.Path == "" {
		return fmt.Errorf("STORE_PATH must not be empty")
	}
	if c.Import.MaxFileSize <= 0 {
		return fmt.Errorf("IMPORT_MAX_FILE_SIZE must be positive: %d", c.Import.MaxFileSize)
	}
	if c.Import.MaxConcurrent < 1 {
		return fmt.Errorf("IMPORT_MAX_CONCURRENT must be at least 1: %d", c.Import.MaxConcurrent)
	}
	if c.Import.Timeout <= 0 {
		return fmt.Errorf("IMPORT_TIMEOUT must be positive: %s", c.Import.Timeout)
	}
	if c.Query.PageSize < 1 {
		return fmt.Errorf("QUERY_PAGE_SIZE must be at least 1: %d", c.Query.PageSize)
	}
	if c.Query.MaxPageSize < c.Query.PageSize {
		return fmt.Errorf("QUERY_MAX_PAGE_SIZE (%d) must be >= QUERY_PAGE_SIZE (%d)",
			c.Query.MaxPageSize, c.Query.PageSize)
	}
	if c.Worker.Readers < 1 {
		return fmt.Errorf("WORKER_READERS must be at least 1: %d", c.Worker.Readers)
	}
	return nil
}
