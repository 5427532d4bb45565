package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/sdelrio0/xyflow-flow/internal/cache"
)

// ErrUnsupportedFormat is returned for config files that are not JSON, YAML or TOML
var ErrUnsupportedFormat = errors.New("unsupported config format")

// FileNames are the config files Load looks for, in order
var FileNames = []string{"vflow.json", "vflow.yaml", "vflow.yml", "vflow.toml"}

// Config represents the vflow configuration
type Config struct {
	// Live server configuration
	Serve *ServeConfig `json:"serve,omitempty" yaml:"serve,omitempty" toml:"serve,omitempty"`

	// Snapshot cache configuration
	Cache *CacheConfig `json:"cache,omitempty" yaml:"cache,omitempty" toml:"cache,omitempty"`

	// Log level: debug, info, warn or error
	LogLevel string `json:"logLevel,omitempty" yaml:"logLevel,omitempty" toml:"logLevel,omitempty"`
}

// ServeConfig contains live server configuration
type ServeConfig struct {
	// Listen address
	Addr string `json:"addr,omitempty" yaml:"addr,omitempty" toml:"addr,omitempty"`

	// Document served by the default session
	Document string `json:"document,omitempty" yaml:"document,omitempty" toml:"document,omitempty"`

	// Name of the session the document is loaded into
	Session string `json:"session,omitempty" yaml:"session,omitempty" toml:"session,omitempty"`

	// Whether to reload the document when it changes on disk
	Watch bool `json:"watch" yaml:"watch" toml:"watch"`

	// Frames queued per client before it is dropped
	SendBuffer int `json:"sendBuffer,omitempty" yaml:"sendBuffer,omitempty" toml:"sendBuffer,omitempty"`
}

// CacheConfig contains snapshot cache configuration
type CacheConfig struct {
	Enabled bool `json:"enabled" yaml:"enabled" toml:"enabled"`

	Dir string `json:"dir,omitempty" yaml:"dir,omitempty" toml:"dir,omitempty"`

	// Maximum total size in bytes
	MaxSize int64 `json:"maxSize,omitempty" yaml:"maxSize,omitempty" toml:"maxSize,omitempty"`

	// Maximum snapshot age in days
	MaxAgeDays int `json:"maxAgeDays,omitempty" yaml:"maxAgeDays,omitempty" toml:"maxAgeDays,omitempty"`

	// Eviction strategy: lru, lfu or fifo
	Strategy string `json:"strategy,omitempty" yaml:"strategy,omitempty" toml:"strategy,omitempty"`
}

// Load loads configuration from the first config file found in projectPath
func Load(projectPath string) (*Config, error) {
	for _, name := range FileNames {
		path := filepath.Join(projectPath, name)
		if _, err := os.Stat(path); err == nil {
			return LoadFile(path)
		}
	}
	return DefaultConfig(), nil
}

// LoadFile loads configuration from path, picking the decoder by extension
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var config Config
	switch format(path) {
	case "json":
		err = json.Unmarshal(data, &config)
	case "yaml":
		err = yaml.Unmarshal(data, &config)
	case "toml":
		err = toml.Unmarshal(data, &config)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(path))
	}
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	applyDefaults(&config)
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &config, nil
}

// Save writes configuration to path in the format its extension names
func Save(config *Config, path string) error {
	var (
		data []byte
		err  error
	)
	switch format(path) {
	case "json":
		data, err = json.MarshalIndent(config, "", "  ")
	case "yaml":
		data, err = yaml.Marshal(config)
	case "toml":
		var b strings.Builder
		err = toml.NewEncoder(&b).Encode(config)
		data = []byte(b.String())
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(path))
	}
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func format(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return "json"
	case ".yaml", ".yml":
		return "yaml"
	case ".toml":
		return "toml"
	}
	return ""
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	cacheDefaults := cache.DefaultConfig()
	return &Config{
		LogLevel: "info",
		Serve: &ServeConfig{
			Addr:       ":7070",
			Session:    "default",
			SendBuffer: 256,
		},
		Cache: &CacheConfig{
			Enabled:    false,
			Dir:        cacheDefaults.Dir,
			MaxSize:    cacheDefaults.MaxSize,
			MaxAgeDays: int(cacheDefaults.MaxAge.Hours() / 24),
			Strategy:   "lru",
		},
	}
}

// applyDefaults applies default values to missing configuration
func applyDefaults(config *Config) {
	defaults := DefaultConfig()

	if config.LogLevel == "" {
		config.LogLevel = defaults.LogLevel
	}

	if config.Serve == nil {
		config.Serve = defaults.Serve
	} else {
		if config.Serve.Addr == "" {
			config.Serve.Addr = defaults.Serve.Addr
		}
		if config.Serve.Session == "" {
			config.Serve.Session = defaults.Serve.Session
		}
		if config.Serve.SendBuffer == 0 {
			config.Serve.SendBuffer = defaults.Serve.SendBuffer
		}
	}

	if config.Cache == nil {
		config.Cache = defaults.Cache
	} else {
		if config.Cache.Dir == "" {
			config.Cache.Dir = defaults.Cache.Dir
		}
		if config.Cache.MaxSize == 0 {
			config.Cache.MaxSize = defaults.Cache.MaxSize
		}
		if config.Cache.MaxAgeDays == 0 {
			config.Cache.MaxAgeDays = defaults.Cache.MaxAgeDays
		}
		if config.Cache.Strategy == "" {
			config.Cache.Strategy = defaults.Cache.Strategy
		}
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log level %q", c.LogLevel)
	}
	if c.Cache != nil {
		switch strings.ToLower(c.Cache.Strategy) {
		case "lru", "lfu", "fifo":
		default:
			return fmt.Errorf("unknown cache strategy %q", c.Cache.Strategy)
		}
	}
	return nil
}

// CacheOptions converts the cache section into a cache.Config
func (c *Config) CacheOptions() cache.Config {
	cfg := cache.DefaultConfig()
	if c.Cache == nil {
		return cfg
	}
	cfg.Dir = c.Cache.Dir
	cfg.MaxSize = c.Cache.MaxSize
	cfg.MaxAge = time.Duration(c.Cache.MaxAgeDays) * 24 * time.Hour
	cfg.Strategy = cache.ParseStrategy(c.Cache.Strategy)
	return cfg
}
