// Package config handles configuration loading and validation.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	// Server configuration
	Host string `envconfig:"FC_HOST" yaml:"host"`
	Port int    `envconfig:"FC_PORT" yaml:"port"`

	// Qdrant configuration
	Qdrant QdrantConfig `yaml:"qdrant"`

	// Redis configuration (catalog, profiles, metrics history)
	Redis RedisConfig `yaml:"redis"`

	// Embedding service configuration
	Embed EmbedConfig `yaml:"embed"`

	// Bus configuration
	Bus BusConfig `yaml:"bus"`

	// Pipeline configuration
	Pipeline PipelineConfig `yaml:"pipeline"`

	// Logging configuration
	Log LogConfig `yaml:"log"`

	// Security configuration
	Security SecurityConfig `yaml:"security"`

	// Metrics configuration
	Metrics MetricsConfig `yaml:"metrics"`
}

// QdrantConfig holds Qdrant connection settings.
type QdrantConfig struct {
	Host       string        `envconfig:"FC_QDRANT_HOST" yaml:"host"`
	Port       int           `envconfig:"FC_QDRANT_PORT" yaml:"port"`
	APIKey     string        `envconfig:"FC_QDRANT_API_KEY" yaml:"api_key"`
	UseTLS     bool          `envconfig:"FC_QDRANT_TLS" yaml:"use_tls"`
	Collection string        `envconfig:"FC_QDRANT_COLLECTION" yaml:"collection"`
	Timeout    time.Duration `envconfig:"FC_QDRANT_TIMEOUT" yaml:"timeout"`
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	URL string `envconfig:"FC_REDIS_URL" yaml:"url"`
}

// EmbedConfig holds embedding service settings.
type EmbedConfig struct {
	URL       string        `envconfig:"FC_EMBED_URL" yaml:"url"`
	Model     string        `envconfig:"FC_EMBED_MODEL" yaml:"model"`
	Dim       int           `envconfig:"FC_EMBED_DIM" yaml:"dim"`
	BatchSize int           `envconfig:"FC_EMBED_BATCH_SIZE" yaml:"batch_size"`
	CacheSize int           `envconfig:"FC_EMBED_CACHE_SIZE" yaml:"cache_size"`
	Timeout   time.Duration `envconfig:"FC_EMBED_TIMEOUT" yaml:"timeout"`
	VocabPath string        `envconfig:"FC_EMBED_VOCAB_PATH" yaml:"vocab_path"`
}

// BusConfig holds event bus settings.
type BusConfig struct {
	Type          string `envconfig:"FC_BUS_TYPE" yaml:"type"`
	KafkaBrokers  string `envconfig:"FC_KAFKA_BROKERS" yaml:"kafka_brokers"`
	ConsumerGroup string `envconfig:"FC_KAFKA_GROUP" yaml:"consumer_group"`
}

// PipelineConfig holds ranking pipeline settings.
type PipelineConfig struct {
	// Lambda balances relevance against category diversity in MMR selection.
	Lambda float64 `envconfig:"FC_PIPELINE_LAMBDA" yaml:"lambda"`

	// DefaultTopK is the number of recommendations returned when the
	// request does not specify one.
	DefaultTopK int `envconfig:"FC_PIPELINE_TOP_K" yaml:"default_top_k"`

	// BreadthMultiplier controls retrieval breadth: the supplier is asked
	// for top_k * multiplier candidates so filtering has room to work.
	BreadthMultiplier int `envconfig:"FC_PIPELINE_BREADTH_MULTIPLIER" yaml:"breadth_multiplier"`

	// MaxBreadth caps the supplier request size.
	MaxBreadth int `envconfig:"FC_PIPELINE_MAX_BREADTH" yaml:"max_breadth"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `envconfig:"FC_LOG_LEVEL" yaml:"level"`
	Format string `envconfig:"FC_LOG_FORMAT" yaml:"format"`
}

// SecurityConfig holds security settings.
type SecurityConfig struct {
	RateLimit   int    `envconfig:"FC_RATE_LIMIT" yaml:"rate_limit"` // 0 = disabled
	CORSOrigins string `envconfig:"FC_CORS_ORIGINS" yaml:"cors_origins"`
}

// MetricsConfig holds metrics settings.
type MetricsConfig struct {
	Enabled     bool   `envconfig:"FC_METRICS_ENABLED" yaml:"enabled"`
	Persistence string `envconfig:"FC_METRICS_PERSISTENCE" yaml:"persistence"` // memory or redis
}

// Load loads configuration from environment variables and optional config file.
func Load(configPath string) (*Config, error) {
	cfg := &Config{}

	// Set defaults first
	setDefaults(cfg)

	// Load from YAML file if provided (overrides defaults)
	if configPath != "" {
		if err := loadFromFile(cfg, configPath); err != nil {
			return nil, fmt.Errorf("loading config file: %w", err)
		}
	}

	// Override with environment variables (highest priority)
	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("processing env config: %w", err)
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// LoadFromEnv loads configuration from environment variables only.
func LoadFromEnv() (*Config, error) {
	return Load("")
}

func loadFromFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	return yaml.Unmarshal(data, cfg)
}

func setDefaults(cfg *Config) {
	cfg.Host = "0.0.0.0"
	cfg.Port = 8080

	cfg.Qdrant = QdrantConfig{
		Host:       "localhost",
		Port:       6334,
		Collection: "products",
		Timeout:    30 * time.Second,
	}

	cfg.Redis = RedisConfig{
		URL: "redis://localhost:6379",
	}

	cfg.Embed = EmbedConfig{
		URL:       "http://localhost:9090",
		Model:     "text-embedding-3-small",
		Dim:       1536,
		BatchSize: 32,
		CacheSize: 10000,
		Timeout:   30 * time.Second,
		VocabPath: "./data/vocab.json",
	}

	cfg.Bus = BusConfig{
		Type:          "memory",
		ConsumerGroup: "fincommerce",
	}

	cfg.Pipeline = PipelineConfig{
		Lambda:            0.7,
		DefaultTopK:       15,
		BreadthMultiplier: 4,
		MaxBreadth:        200,
	}

	cfg.Log = LogConfig{
		Level:  "info",
		Format: "text",
	}

	cfg.Security = SecurityConfig{
		RateLimit:   0,
		CORSOrigins: "*",
	}

	cfg.Metrics = MetricsConfig{
		Enabled:     true,
		Persistence: "memory",
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	var errs []string

	if c.Port < 1 || c.Port > 65535 {
		errs = append(errs, "port must be between 1 and 65535")
	}

	if c.Qdrant.Collection == "" {
		errs = append(errs, "qdrant collection must not be empty")
	}

	if c.Embed.Dim < 1 {
		errs = append(errs, "embed dim must be positive")
	}

	if c.Embed.BatchSize < 1 {
		errs = append(errs, "embed batch_size must be positive")
	}

	validBusTypes := map[string]bool{"memory": true, "kafka": true}
	if !validBusTypes[c.Bus.Type] {
		errs = append(errs, fmt.Sprintf("invalid bus type: %s (must be memory or kafka)", c.Bus.Type))
	}

	if c.Pipeline.Lambda < 0 || c.Pipeline.Lambda > 1 {
		errs = append(errs, "pipeline lambda must be between 0 and 1")
	}

	if c.Pipeline.DefaultTopK < 1 {
		errs = append(errs, "pipeline default_top_k must be positive")
	}

	if c.Pipeline.BreadthMultiplier < 1 {
		errs = append(errs, "pipeline breadth_multiplier must be positive")
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Log.Level] {
		errs = append(errs, fmt.Sprintf("invalid log level: %s (must be debug, info, warn, or error)", c.Log.Level))
	}

	validFormats := map[string]bool{"text": true, "json": true}
	if !validFormats[c.Log.Format] {
		errs = append(errs, fmt.Sprintf("invalid log format: %s (must be text or json)", c.Log.Format))
	}

	validPersistence := map[string]bool{"memory": true, "redis": true}
	if !validPersistence[c.Metrics.Persistence] {
		errs = append(errs, fmt.Sprintf("invalid metrics persistence: %s (must be memory or redis)", c.Metrics.Persistence))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return nil
}

// Address returns the server address.
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Log.Level == "debug"
}
