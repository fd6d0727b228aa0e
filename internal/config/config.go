package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	apperrors "github.com/reelpack/reelpack/pkg/errors"
)

// Config is the full service configuration.
type Config struct {
	Service  ServiceConfig  `koanf:"service"`
	Storage  StorageConfig  `koanf:"storage"`
	Database DatabaseConfig `koanf:"database"`
	NATS     NATSConfig     `koanf:"nats"`
	Logger   LoggerConfig   `koanf:"logger"`
}

// ServiceConfig contains service metadata.
type ServiceConfig struct {
	Name        string `koanf:"name"`
	Environment string `koanf:"environment"` // dev, staging, production
}

// StorageConfig contains object-store settings.
type StorageConfig struct {
	Bucket        string `koanf:"bucket"`
	Region        string `koanf:"region"`
	Endpoint      string `koanf:"endpoint"` // optional, for S3-compatible stores
	VideoPrefix   string `koanf:"video_prefix"`
	PackagePrefix string `koanf:"package_prefix"`
}

// DatabaseConfig contains local persistence settings.
type DatabaseConfig struct {
	Driver          string        `koanf:"driver"` // sqlite, postgres
	Path            string        `koanf:"path"`   // sqlite file path
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	User            string        `koanf:"user"`
	Password        string        `koanf:"password"`
	Database        string        `koanf:"database"`
	SSLMode         string        `koanf:"ssl_mode"`
	MaxConnections  int           `koanf:"max_connections"`
	MaxConnLifetime time.Duration `koanf:"max_conn_lifetime"`
}

// NATSConfig contains optional event-relay settings.
type NATSConfig struct {
	Enabled bool   `koanf:"enabled"`
	URL     string `koanf:"url"`
	Stream  string `koanf:"stream"`
}

// LoggerConfig contains logging configuration.
type LoggerConfig struct {
	Level       string `koanf:"level"` // debug, info, warn, error
	Development bool   `koanf:"development"`
}

// Default returns the configuration defaults.
func Default() *Config {
	return &Config{
		Service: ServiceConfig{
			Name:        "reelpack",
			Environment: "dev",
		},
		Storage: StorageConfig{
			Region:        "us-east-1",
			VideoPrefix:   "videos/",
			PackagePrefix: "playlists/",
		},
		Database: DatabaseConfig{
			Driver:          "sqlite",
			Path:            "reelpack.db",
			SSLMode:         "disable",
			MaxConnections:  10,
			MaxConnLifetime: time.Hour,
		},
		NATS: NATSConfig{
			Stream: "REELPACK",
		},
		Logger: LoggerConfig{
			Level:       "info",
			Development: true,
		},
	}
}

// Validate checks the configuration for fatal misconfiguration.
func (c *Config) Validate() error {
	if c.Storage.Bucket == "" {
		return apperrors.Configuration("storage bucket is not configured")
	}
	if !strings.HasSuffix(c.Storage.VideoPrefix, "/") {
		return apperrors.Configuration("storage video_prefix must end with '/'")
	}
	if !strings.HasSuffix(c.Storage.PackagePrefix, "/") {
		return apperrors.Configuration("storage package_prefix must end with '/'")
	}
	switch c.Database.Driver {
	case "sqlite":
		if c.Database.Path == "" {
			return apperrors.Configuration("database path is required for sqlite")
		}
	case "postgres":
		if c.Database.Host == "" || c.Database.Database == "" {
			return apperrors.Configuration("database host and name are required for postgres")
		}
	default:
		return apperrors.Configuration(fmt.Sprintf("unknown database driver %q", c.Database.Driver))
	}
	if c.NATS.Enabled && c.NATS.URL == "" {
		return apperrors.Configuration("nats url is required when the relay is enabled")
	}
	return nil
}

// DSN builds the postgres connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Database, d.SSLMode)
}

// Load reads configuration from defaults, config files, and environment
// variables, in increasing order of precedence.
func Load(paths ...string) (*Config, error) {
	k := koanf.New(".")
	cfg := Default()

	if err := k.Load(structs.Provider(cfg, "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if len(paths) == 0 {
		paths = defaultConfigPaths()
	}
	for _, path := range paths {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			continue
		}
		var parser koanf.Parser
		switch ext := strings.ToLower(filepath.Ext(path)); ext {
		case ".yaml", ".yml":
			parser = yaml.Parser()
		case ".json":
			parser = json.Parser()
		default:
			return nil, fmt.Errorf("unsupported config format: %s", path)
		}
		if err := k.Load(file.Provider(path), parser); err != nil {
			return nil, fmt.Errorf("failed to load config from %s: %w", path, err)
		}
	}

	// REELPACK_STORAGE_VIDEO_PREFIX -> storage.video_prefix. Only the first
	// underscore separates the section; every section name is a single word,
	// while leaf keys may contain underscores.
	const prefix = "REELPACK_"
	if err := k.Load(env.Provider(prefix, ".", func(s string) string {
		return strings.Replace(strings.ToLower(strings.TrimPrefix(s, prefix)), "_", ".", 1)
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load from environment: %w", err)
	}

	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func defaultConfigPaths() []string {
	return []string{
		"reelpack.yaml",
		"config/reelpack.yaml",
		filepath.Join(os.Getenv("HOME"), ".config", "reelpack", "config.yaml"),
	}
}
