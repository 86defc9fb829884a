package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix of environment overrides, e.g. PKGDEMO_SERVER_PORT.
const EnvPrefix = "PKGDEMO"

type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Log     LogConfig     `yaml:"log"`
	CORS    CORSConfig    `yaml:"cors"`
	Storage StorageConfig `yaml:"storage"`
	Auth    AuthConfig    `yaml:"auth"`
	API     APIConfig     `yaml:"api"`
}

type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"readTimeout" split_words:"true"`
	WriteTimeout    time.Duration `yaml:"writeTimeout" split_words:"true"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout" split_words:"true"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Pretty bool   `yaml:"pretty"`
}

// CORSConfig lists the origins allowed to call the API. No origins disables CORS.
type CORSConfig struct {
	Origins []string `yaml:"origins"`
}

// StorageConfig controls the optional on-disk companions of the in-memory
// store. Both need DataDir.
type StorageConfig struct {
	DataDir        string `yaml:"dataDir" split_words:"true"`
	Journal        bool   `yaml:"journal"`
	ArchiveUploads bool   `yaml:"archiveUploads" split_words:"true"`
}

// AuthConfig holds the bearer tokens required by mutating routes. No tokens
// leaves those routes open.
type AuthConfig struct {
	Tokens []string `yaml:"tokens"`
}

type APIConfig struct {
	DefaultPageSize int   `yaml:"defaultPageSize" split_words:"true"`
	MaxPageSize     int   `yaml:"maxPageSize" split_words:"true"`
	MaxUploadBytes  int64 `yaml:"maxUploadBytes" split_words:"true"`
}

// Default returns the configuration used when no file or environment says otherwise.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Log: LogConfig{Level: "info"},
		API: APIConfig{
			DefaultPageSize: 50,
			MaxPageSize:     500,
			MaxUploadBytes:  1 << 20,
		},
	}
}

// Load reads the YAML file at path on top of the defaults, then applies
// PKGDEMO_* environment overrides. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("reading config: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parsing config: %w", err)
			}
		}
	}

	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("applying environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks value ranges and cross-field requirements.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	if c.Server.ShutdownTimeout <= 0 {
		return fmt.Errorf("server.shutdownTimeout must be positive")
	}
	if (c.Storage.Journal || c.Storage.ArchiveUploads) && c.Storage.DataDir == "" {
		return fmt.Errorf("storage.dataDir is required when the journal or upload archive is enabled")
	}
	if c.API.DefaultPageSize <= 0 || c.API.MaxPageSize <= 0 {
		return fmt.Errorf("api page sizes must be positive")
	}
	if c.API.DefaultPageSize > c.API.MaxPageSize {
		return fmt.Errorf("api.defaultPageSize %d exceeds api.maxPageSize %d", c.API.DefaultPageSize, c.API.MaxPageSize)
	}
	if c.API.MaxUploadBytes <= 0 {
		return fmt.Errorf("api.maxUploadBytes must be positive")
	}
	return nil
}
