package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Server.Host != "127.0.0.1" {
		t.Errorf("Server.Host = %q, want 127.0.0.1", cfg.Server.Host)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Server.WriteTimeout != 0 {
		t.Errorf("Server.WriteTimeout = %v, want 0", cfg.Server.WriteTimeout)
	}
	if cfg.Store.Path != "data/sheetvault.db" {
		t.Errorf("Store.Path = %q, want data/sheetvault.db", cfg.Store.Path)
	}
	if cfg.Import.MaxFileSize != 104857600 {
		t.Errorf("Import.MaxFileSize = %d, want 104857600", cfg.Import.MaxFileSize)
	}
	if cfg.Import.Timeout != 10*time.Minute {
		t.Errorf("Import.Timeout = %v, want 10m", cfg.Import.Timeout)
	}
	if cfg.Query.PageSize != 50 {
		t.Errorf("Query.PageSize = %d, want 50", cfg.Query.PageSize)
	}
	if cfg.Query.MaxPageSize != 1000 {
		t.Errorf("Query.MaxPageSize = %d, want 1000", cfg.Query.MaxPageSize)
	}
	if cfg.Worker.Readers != 4 {
		t.Errorf("Worker.Readers = %d, want 4", cfg.Worker.Readers)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("Logging.Level = %q, want info", cfg.Logging.Level)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("STORE_PATH", "/tmp/custom.db")
	t.Setenv("IMPORT_MAX_CONCURRENT", "8")
	t.Setenv("SERVER_READ_TIMEOUT", "45s")
	t.Setenv("LOG_FORMAT", "json")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("Server.Port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.Store.Path != "/tmp/custom.db" {
		t.Errorf("Store.Path = %q, want /tmp/custom.db", cfg.Store.Path)
	}
	if cfg.Import.MaxConcurrent != 8 {
		t.Errorf("Import.MaxConcurrent = %d, want 8", cfg.Import.MaxConcurrent)
	}
	if cfg.Server.ReadTimeout != 45*time.Second {
		t.Errorf("Server.ReadTimeout = %v, want 45s", cfg.Server.ReadTimeout)
	}
	if cfg.Logging.Format != "json" {
		t.Errorf("Logging.Format = %q, want json", cfg.Logging.Format)
	}
}

func TestLoad_AltEnvName(t *testing.T) {
	t.Setenv("DATABASE_PATH", "/tmp/alt.db")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Store.Path != "/tmp/alt.db" {
		t.Errorf("Store.Path = %q, want /tmp/alt.db", cfg.Store.Path)
	}
}

func TestLoad_PrimaryEnvWinsOverAlt(t *testing.T) {
	t.Setenv("STORE_PATH", "/tmp/primary.db")
	t.Setenv("DATABASE_PATH", "/tmp/alt.db")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Store.Path != "/tmp/primary.db" {
		t.Errorf("Store.Path = %q, want /tmp/primary.db", cfg.Store.Path)
	}
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"non-numeric port", "SERVER_PORT", "abc"},
		{"bad duration", "SERVER_READ_TIMEOUT", "fast"},
		{"port out of range", "SERVER_PORT", "70000"},
		{"zero page size", "QUERY_PAGE_SIZE", "0"},
		{"max below default page size", "QUERY_MAX_PAGE_SIZE", "10"},
		{"zero readers", "WORKER_READERS", "0"},
		{"zero import timeout", "IMPORT_TIMEOUT", "0s"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			if _, err := Load(); err == nil {
				t.Fatalf("Load accepted %s=%q", tt.key, tt.value)
			}
		})
	}
}

func TestAddr(t *testing.T) {
	sc := ServerConfig{Host: "0.0.0.0", Port: 3000}
	if got := sc.Addr(); got != "0.0.0.0:3000" {
		t.Errorf("Addr = %q, want 0.0.0.0:3000", got)
	}
}

func TestValidate_ErrorNamesVariable(t *testing.T) {
	cfg := &Config{}
	cfg.Server.Port = 8080
	cfg.Store.Path = "x.db"
	cfg.Import.MaxFileSize = 1
	cfg.Import.MaxConcurrent = 1
	cfg.Query.PageSize = 50
	cfg.Query.MaxPageSize = 10
	cfg.Worker.Readers = 1

	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "QUERY_MAX_PAGE_SIZE") {
		t.Fatalf("Validate = %v, want error naming QUERY_MAX_PAGE_SIZE", err)
	}
}
