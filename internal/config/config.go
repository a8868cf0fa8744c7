// Package config loads storefront settings from YAML with environment overrides.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all storefront configuration.
type Config struct {
	Server    ServerConfig   `yaml:"server"`
	Source    SourceConfig   `yaml:"source"`
	Commerce  CommerceConfig `yaml:"commerce"`
	Regions   RegionsConfig  `yaml:"regions"`
	Cache     CacheConfig    `yaml:"cache"`
	Snapshots SnapshotConfig `yaml:"snapshots"`
	History   HistoryConfig  `yaml:"history"`
	Media     MediaConfig    `yaml:"media"`
	Logging   LoggingConfig  `yaml:"logging"`
}

type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	RequestTimeout  time.Duration `yaml:"request_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// SourceConfig selects where products come from.
type SourceConfig struct {
	Kind string `yaml:"kind"` // api, file
	Dir  string `yaml:"dir"`  // catalog directory for kind=file
}

// CommerceConfig points at the commerce store API.
type CommerceConfig struct {
	BaseURL        string        `yaml:"base_url"`
	PublishableKey string        `yaml:"publishable_key"`
	Retries        int           `yaml:"retries"`
	Timeout        time.Duration `yaml:"timeout"`
}

type RegionsConfig struct {
	Default    string        `yaml:"default"`
	TTL        time.Duration `yaml:"ttl"`
	MaxEntries int           `yaml:"max_entries"`
}

type CacheConfig struct {
	MatrixEntries int `yaml:"matrix_entries"`
}

// SnapshotConfig configures the SQL product snapshot cache. An empty driver disables it.
type SnapshotConfig struct {
	Driver string        `yaml:"driver"` // postgres, mysql, sqlite
	DSN    string        `yaml:"dsn"`
	TTL    time.Duration `yaml:"ttl"`
}

// HistoryConfig configures ClickHouse price history. Disabled when Addr is empty.
type HistoryConfig struct {
	Addr     string `yaml:"addr"`
	Database string `yaml:"database"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

type MediaConfig struct {
	CloudinaryURL  string `yaml:"cloudinary_url"`
	Transformation string `yaml:"transformation"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Pretty bool   `yaml:"pretty"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            ":8080",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			RequestTimeout:  10 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Source: SourceConfig{Kind: "api", Dir: "testdata/products"},
		Commerce: CommerceConfig{
			BaseURL: "http://localhost:9000",
			Retries: 2,
			Timeout: 5 * time.Second,
		},
		Regions:   RegionsConfig{TTL: 10 * time.Minute, MaxEntries: 512},
		Cache:     CacheConfig{MatrixEntries: 1024},
		Snapshots: SnapshotConfig{TTL: 5 * time.Minute},
		History:   HistoryConfig{Database: "default", Username: "default"},
		Logging:   LoggingConfig{Level: "info"},
	}
}

// Load reads path over the defaults and applies environment overrides. An empty path or a
// missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
		case err != nil:
			return nil, fmt.Errorf("failed to read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config: %w", err)
			}
		}
	}
	cfg.applyEnvOverrides()
	return cfg, nil
}

func (c *Config) applyEnvOverrides() {
	c.Server.Addr = GetEnv("STOREFRONT_ADDR", c.Server.Addr)
	c.Server.RequestTimeout = GetEnvDuration("STOREFRONT_REQUEST_TIMEOUT", c.Server.RequestTimeout)

	c.Source.Kind = GetEnv("STOREFRONT_SOURCE", c.Source.Kind)
	c.Source.Dir = GetEnv("STOREFRONT_CATALOG_DIR", c.Source.Dir)

	c.Commerce.BaseURL = GetEnv("STOREFRONT_BACKEND_URL", c.Commerce.BaseURL)
	c.Commerce.PublishableKey = GetEnv("STOREFRONT_PUBLISHABLE_KEY", c.Commerce.PublishableKey)
	c.Commerce.Retries = GetEnvInt("STOREFRONT_BACKEND_RETRIES", c.Commerce.Retries)
	c.Commerce.Timeout = GetEnvDuration("STOREFRONT_BACKEND_TIMEOUT", c.Commerce.Timeout)

	c.Regions.Default = GetEnv("STOREFRONT_DEFAULT_REGION", c.Regions.Default)

	c.Snapshots.Driver = GetEnv("STOREFRONT_SNAPSHOT_DRIVER", c.Snapshots.Driver)
	c.Snapshots.DSN = GetEnv("STOREFRONT_SNAPSHOT_DSN", c.Snapshots.DSN)
	c.Snapshots.TTL = GetEnvDuration("STOREFRONT_SNAPSHOT_TTL", c.Snapshots.TTL)

	c.History.Addr = GetEnv("CLICKHOUSE_ADDR", c.History.Addr)
	c.History.Database = GetEnv("CLICKHOUSE_DATABASE", c.History.Database)
	c.History.Username = GetEnv("CLICKHOUSE_USER", c.History.Username)
	c.History.Password = GetEnv("CLICKHOUSE_PASSWORD", c.History.Password)

	c.Media.CloudinaryURL = GetEnv("CLOUDINARY_URL", c.Media.CloudinaryURL)

	c.Logging.Level = GetEnv("LOG_LEVEL", c.Logging.Level)
	c.Logging.Pretty = GetEnvBool("LOG_PRETTY", c.Logging.Pretty)
}

// Validate rejects settings the binary cannot act on.
func (c *Config) Validate() error {
	switch c.Source.Kind {
	case "api":
		if c.Commerce.BaseURL == "" {
			return fmt.Errorf("commerce.base_url is required for source kind api")
		}
	case "file":
		if c.Source.Dir == "" {
			return fmt.Errorf("source.dir is required for source kind file")
		}
	default:
		return fmt.Errorf("unknown source kind %q", c.Source.Kind)
	}

	switch c.Snapshots.Driver {
	case "":
	case "postgres", "mysql", "sqlite":
		if c.Snapshots.DSN == "" {
			return fmt.Errorf("snapshots.dsn is required for driver %s", c.Snapshots.Driver)
		}
	default:
		return fmt.Errorf("unknown snapshot driver %q", c.Snapshots.Driver)
	}

	if c.Commerce.Retries < 0 {
		return fmt.Errorf("commerce.retries must be >= 0")
	}
	if c.Cache.MatrixEntries < 0 || c.Regions.MaxEntries < 0 {
		return fmt.Errorf("cache sizes must be >= 0")
	}
	return nil
}
