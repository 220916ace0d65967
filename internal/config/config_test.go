package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Port != 8080 {
		t.Errorf("Port = %d, want 8080", cfg.Port)
	}
	if cfg.Qdrant.Collection != "products" {
		t.Errorf("Qdrant.Collection = %q, want products", cfg.Qdrant.Collection)
	}
	if cfg.Pipeline.Lambda != 0.7 {
		t.Errorf("Pipeline.Lambda = %v, want 0.7", cfg.Pipeline.Lambda)
	}
	if cfg.Pipeline.DefaultTopK != 15 {
		t.Errorf("Pipeline.DefaultTopK = %d, want 15", cfg.Pipeline.DefaultTopK)
	}
	if cfg.Bus.Type != "memory" {
		t.Errorf("Bus.Type = %q, want memory", cfg.Bus.Type)
	}
	if cfg.Embed.Timeout != 30*time.Second {
		t.Errorf("Embed.Timeout = %v, want 30s", cfg.Embed.Timeout)
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
port: 9999
qdrant:
  collection: test_products
pipeline:
  lambda: 0.5
  default_top_k: 10
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing config file: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Port != 9999 {
		t.Errorf("Port = %d, want 9999", cfg.Port)
	}
	if cfg.Qdrant.Collection != "test_products" {
		t.Errorf("Qdrant.Collection = %q, want test_products", cfg.Qdrant.Collection)
	}
	if cfg.Pipeline.Lambda != 0.5 {
		t.Errorf("Pipeline.Lambda = %v, want 0.5", cfg.Pipeline.Lambda)
	}
	// Untouched values keep their defaults.
	if cfg.Host != "0.0.0.0" {
		t.Errorf("Host = %q, want 0.0.0.0", cfg.Host)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("port: 9999\n"), 0o644); err != nil {
		t.Fatalf("writing config file: %v", err)
	}

	t.Setenv("FC_PORT", "7777")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Port != 7777 {
		t.Errorf("Port = %d, want 7777 (env should win over file)", cfg.Port)
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load("/nonexistent/config.yaml")
	if err == nil {
		t.Fatal("Load() expected error for missing file")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "valid defaults",
			mutate: func(c *Config) {},
		},
		{
			name:    "bad port",
			mutate:  func(c *Config) { c.Port = 0 },
			wantErr: "port",
		},
		{
			name:    "empty collection",
			mutate:  func(c *Config) { c.Qdrant.Collection = "" },
			wantErr: "collection",
		},
		{
			name:    "bad bus type",
			mutate:  func(c *Config) { c.Bus.Type = "rabbit" },
			wantErr: "bus type",
		},
		{
			name:    "lambda out of range",
			mutate:  func(c *Config) { c.Pipeline.Lambda = 1.5 },
			wantErr: "lambda",
		},
		{
			name:    "zero top_k",
			mutate:  func(c *Config) { c.Pipeline.DefaultTopK = 0 },
			wantErr: "default_top_k",
		},
		{
			name:    "bad log level",
			mutate:  func(c *Config) { c.Log.Level = "verbose" },
			wantErr: "log level",
		},
		{
			name:    "bad metrics persistence",
			mutate:  func(c *Config) { c.Metrics.Persistence = "mongo" },
			wantErr: "metrics persistence",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{}
			setDefaults(cfg)
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() error = %v, want nil", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Validate() = nil, want error containing %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want it to contain %q", err, tt.wantErr)
			}
		})
	}
}

func TestAddress(t *testing.T) {
	cfg := &Config{Host: "127.0.0.1", Port: 8080}
	if got := cfg.Address(); got != "127.0.0.1:8080" {
		t.Errorf("Address() = %q, want 127.0.0.1:8080", got)
	}
}
