// Package config loads appmap configuration.
//
// Configuration is read from a TOML file (default) or a YAML file, chosen by
// extension. A small set of APPMAP_* environment variables override
// connection settings so deployments can keep secrets out of the file.
//
//	[server]
//	addr = ":8080"
//
//	[storage]
//	backend = "mongo"
//	mongo_uri = "mongodb://localhost:27017"
//
//	[[streams]]
//	name = "sp"
//	display_name = "Sales Platform"
//
// The [[streams]] entries form the diagram allow-list; see [AllowList].
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/matzehuels/appmap/pkg/errors"
)

// Storage backends.
const (
	BackendMemory = "memory"
	BackendFile   = "file"
	BackendMongo  = "mongo"
)

// Cache backends.
const (
	CacheNone  = "none"
	CacheFile  = "file"
	CacheRedis = "redis"
)

// Config is the root configuration document.
type Config struct {
	Server  Server        `toml:"server" yaml:"server"`
	Storage Storage       `toml:"storage" yaml:"storage"`
	Cache   Cache         `toml:"cache" yaml:"cache"`
	Catalog Catalog       `toml:"catalog" yaml:"catalog"`
	Streams []StreamEntry `toml:"streams" yaml:"streams"`
}

// Server configures the HTTP API.
type Server struct {
	Addr         string   `toml:"addr" yaml:"addr"`
	ReadTimeout  Duration `toml:"read_timeout" yaml:"read_timeout"`
	WriteTimeout Duration `toml:"write_timeout" yaml:"write_timeout"`
}

// Storage selects where layouts (and, for mongo, catalog records) live.
type Storage struct {
	Backend       string `toml:"backend" yaml:"backend"`
	Dir           string `toml:"dir" yaml:"dir"`
	MongoURI      string `toml:"mongo_uri" yaml:"mongo_uri"`
	MongoDatabase string `toml:"mongo_database" yaml:"mongo_database"`
}

// Cache configures the layout read cache.
type Cache struct {
	Backend   string   `toml:"backend" yaml:"backend"`
	Dir       string   `toml:"dir" yaml:"dir"`
	RedisAddr string   `toml:"redis_addr" yaml:"redis_addr"`
	RedisDB   int      `toml:"redis_db" yaml:"redis_db"`
	TTL       Duration `toml:"ttl" yaml:"ttl"`

	// Prefix scopes cache keys when several deployments share one Redis.
	Prefix string `toml:"prefix" yaml:"prefix"`
}

// Catalog points at a catalog fixture file for the memory and file backends.
type Catalog struct {
	File string `toml:"file" yaml:"file"`
}

// Duration is a time.Duration that decodes from strings such as "30s".
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler (used by toml).
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	return d.UnmarshalText([]byte(node.Value))
}

// Default returns a configuration that runs entirely in memory.
func Default() Config {
	return Config{
		Server: Server{
			Addr:         ":8080",
			ReadTimeout:  Duration{10 * time.Second},
			WriteTimeout: Duration{30 * time.Second},
		},
		Storage: Storage{
			Backend:       BackendMemory,
			MongoDatabase: "appmap",
		},
		Cache: Cache{
			Backend: CacheNone,
			TTL:     Duration{5 * time.Minute},
		},
	}
}

// Load reads the configuration file at path on top of [Default].
// Files ending in .yaml or .yml are decoded as YAML, everything else as TOML.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	default:
		if _, err := toml.Decode(string(data), &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadOrDefault behaves like [Load] but returns [Default] when path does not exist.
func LoadOrDefault(path string) (Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		cfg := Default()
		cfg.applyEnv()
		return cfg, nil
	}
	return Load(path)
}

// applyEnv overrides connection settings from the environment.
func (c *Config) applyEnv() {
	if v := os.Getenv("APPMAP_ADDR"); v != "" {
		c.Server.Addr = v
	}
	if v := os.Getenv("APPMAP_MONGO_URI"); v != "" {
		c.Storage.MongoURI = v
	}
	if v := os.Getenv("APPMAP_REDIS_ADDR"); v != "" {
		c.Cache.RedisAddr = v
	}
}

// Validate checks backend names, required connection settings and the
// stream allow-list.
func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case BackendMemory:
	case BackendFile:
		if c.Storage.Dir == "" {
			return errors.New(errors.ErrCodeInvalidInput, "storage.dir is required for the file backend")
		}
	case BackendMongo:
		if c.Storage.MongoURI == "" {
			return errors.New(errors.ErrCodeInvalidInput, "storage.mongo_uri is required for the mongo backend")
		}
	default:
		return errors.New(errors.ErrCodeInvalidInput, "unknown storage backend: %q", c.Storage.Backend)
	}

	switch c.Cache.Backend {
	case CacheNone, "":
	case CacheFile:
		if c.Cache.Dir == "" {
			return errors.New(errors.ErrCodeInvalidInput, "cache.dir is required for the file cache")
		}
	case CacheRedis:
		if c.Cache.RedisAddr == "" {
			return errors.New(errors.ErrCodeInvalidInput, "cache.redis_addr is required for the redis cache")
		}
	default:
		return errors.New(errors.ErrCodeInvalidInput, "unknown cache backend: %q", c.Cache.Backend)
	}

	seen := make(map[string]bool, len(c.Streams))
	for _, s := range c.Streams {
		if err := errors.ValidateStreamName(s.Name); err != nil {
			return err
		}
		if seen[s.Name] {
			return errors.New(errors.ErrCodeInvalidInput, "duplicate stream in allow-list: %q", s.Name)
		}
		seen[s.Name] = true
	}
	return nil
}

// AllowList returns the stream allow-list described by the configuration.
func (c *Config) AllowList() *AllowList {
	return NewAllowList(c.Streams...)
}

// DefaultPath returns the default config location ($XDG_CONFIG_HOME/appmap/config.toml).
func DefaultPath() string {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, "appmap", "config.toml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "config.toml"
	}
	return filepath.Join(home, ".config", "appmap", "config.toml")
}
