package app

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/aloks98/gousers"
	"github.com/aloks98/gousers/server"
)

// Backend names.
const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendMySQL    = "mysql"
	BackendSQLite   = "sqlite"
	BackendRedis    = "redis"
)

// EnvPrefix prefixes every environment variable name.
const EnvPrefix = "GOUSERS_"

// Duration is a time.Duration that reads from strings like "5s" in YAML,
// JSON and the environment.
type Duration time.Duration

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(string(b))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// RedisConfig holds the Redis connection used by the redis backend and the
// redis rate limiter.
type RedisConfig struct {
	Addr     string `json:"addr" yaml:"addr"`
	Password string `json:"password" yaml:"password"`
	DB       int    `json:"db" yaml:"db"`
}

// RateLimitConfig holds rate limiting settings.
type RateLimitConfig struct {
	Enabled  bool     `json:"enabled" yaml:"enabled"`
	Requests int      `json:"requests" yaml:"requests"`
	Window   Duration `json:"window" yaml:"window"`

	// Backend is "memory" or "redis".
	Backend string `json:"backend" yaml:"backend"`
}

// Config holds application configuration.
type Config struct {
	// Server settings
	Port            int      `json:"port" yaml:"port"`
	Framework       string   `json:"framework" yaml:"framework"`
	ShutdownTimeout Duration `json:"shutdown_timeout" yaml:"shutdown_timeout"`
	AccessLog       bool     `json:"access_log" yaml:"access_log"`
	TestMode        bool     `json:"test_mode" yaml:"test_mode"`

	// Storage settings
	Backend      string      `json:"backend" yaml:"backend"`
	DSN          string      `json:"dsn" yaml:"dsn"`
	TablePrefix  string      `json:"table_prefix" yaml:"table_prefix"`
	Redis        RedisConfig `json:"redis" yaml:"redis"`
	AutoMigrate  bool        `json:"auto_migrate" yaml:"auto_migrate"`
	StoreTimeout Duration    `json:"store_timeout" yaml:"store_timeout"`

	RateLimit RateLimitConfig `json:"rate_limit" yaml:"rate_limit"`
}

// DefaultConfig returns configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Port:            3000,
		Framework:       server.FrameworkChi,
		ShutdownTimeout: Duration(server.DefaultShutdownTimeout),
		AccessLog:       true,
		Backend:         BackendMemory,
		Redis:           RedisConfig{Addr: "localhost:6379"},
		AutoMigrate:     true,
		StoreTimeout:    Duration(gousers.DefaultStoreTimeout),
		RateLimit: RateLimitConfig{
			Requests: 100,
			Window:   Duration(time.Minute),
			Backend:  BackendMemory,
		},
	}
}

// Load builds the configuration from defaults, the .env file and the
// environment, then the config file at path if one is given.
func Load(path string) (*Config, error) {
	if err := LoadDotEnv(".env"); err != nil {
		return nil, err
	}

	cfg := DefaultConfig()
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if path != "" {
		if err := cfg.ApplyFile(path); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// LoadDotEnv loads path into the environment if it exists. Variables that
// are already set win.
func LoadDotEnv(path string) error {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// ApplyFile overlays a YAML or JSON file, chosen by extension.
func (c *Config) ApplyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	return c.ApplyBytes(data, filepath.Ext(path))
}

// ApplyBytes overlays raw config. Keys absent from data keep their value.
func (c *Config) ApplyBytes(data []byte, ext string) error {
	switch strings.ToLower(ext) {
	case ".json":
		if err := json.Unmarshal(data, c); err != nil {
			return fmt.Errorf("failed to parse JSON config: %w", err)
		}
	case ".yaml", ".yml", "":
		if err := yaml.Unmarshal(data, c); err != nil {
			return fmt.Errorf("failed to parse YAML config: %w", err)
		}
	default:
		return fmt.Errorf("%w: config file must be .yaml, .yml or .json", gousers.ErrConfigInvalid)
	}
	return nil
}

// ApplyEnv overlays environment variables read through lookup.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	env := func(names ...string) (string, bool) {
		for _, name := range names {
			if v, ok := lookup(name); ok && v != "" {
				return v, true
			}
		}
		return "", false
	}

	var errs []error
	str := func(dst *string, names ...string) {
		if v, ok := env(names...); ok {
			*dst = v
		}
	}
	integer := func(dst *int, names ...string) {
		if v, ok := env(names...); ok {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", names[0], err))
				return
			}
			*dst = n
		}
	}
	boolean := func(dst *bool, names ...string) {
		if v, ok := env(names...); ok {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", names[0], err))
				return
			}
			*dst = b
		}
	}
	duration := func(dst *Duration, names ...string) {
		if v, ok := env(names...); ok {
			if err := dst.UnmarshalText([]byte(v)); err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", names[0], err))
			}
		}
	}

	integer(&c.Port, EnvPrefix+"PORT", "PORT")
	str(&c.Framework, EnvPrefix+"FRAMEWORK")
	duration(&c.ShutdownTimeout, EnvPrefix+"SHUTDOWN_TIMEOUT")
	boolean(&c.AccessLog, EnvPrefix+"ACCESS_LOG")
	boolean(&c.TestMode, EnvPrefix+"TEST_MODE")
	str(&c.Backend, EnvPrefix+"BACKEND")
	str(&c.DSN, EnvPrefix+"DSN", "DATABASE_URL")
	str(&c.TablePrefix, EnvPrefix+"TABLE_PREFIX")
	str(&c.Redis.Addr, EnvPrefix+"REDIS_ADDR")
	str(&c.Redis.Password, EnvPrefix+"REDIS_PASSWORD")
	integer(&c.Redis.DB, EnvPrefix+"REDIS_DB")
	boolean(&c.AutoMigrate, EnvPrefix+"AUTO_MIGRATE")
	duration(&c.StoreTimeout, EnvPrefix+"STORE_TIMEOUT")
	boolean(&c.RateLimit.Enabled, EnvPrefix+"RATE_LIMIT_ENABLED")
	integer(&c.RateLimit.Requests, EnvPrefix+"RATE_LIMIT_REQUESTS")
	duration(&c.RateLimit.Window, EnvPrefix+"RATE_LIMIT_WINDOW")
	str(&c.RateLimit.Backend, EnvPrefix+"RATE_LIMIT_BACKEND")

	if v, ok := lookup("NODE_ENV"); ok && v == "test" {
		c.TestMode = true
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", gousers.ErrConfigInvalid, errors.Join(errs...))
	}
	return nil
}

// Addr returns the listen address.
func (c *Config) Addr() string {
	return ":" + strconv.Itoa(c.Port)
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("%w: port %d out of range", gousers.ErrConfigInvalid, c.Port)
	}

	if !slices.Contains(server.Frameworks, c.Framework) {
		return fmt.Errorf("%w: unknown framework %q (want one of %s)",
			gousers.ErrConfigInvalid, c.Framework, strings.Join(server.Frameworks, ", "))
	}

	switch c.Backend {
	case BackendMemory, BackendRedis:
	case BackendPostgres, BackendMySQL, BackendSQLite:
		if c.DSN == "" {
			return fmt.Errorf("%w: backend %s requires a dsn", gousers.ErrConfigInvalid, c.Backend)
		}
	default:
		return fmt.Errorf("%w: unknown backend %q", gousers.ErrConfigInvalid, c.Backend)
	}

	if c.StoreTimeout < 0 || c.ShutdownTimeout < 0 {
		return fmt.Errorf("%w: timeouts cannot be negative", gousers.ErrConfigInvalid)
	}

	if c.RateLimit.Enabled {
		if c.RateLimit.Requests <= 0 || c.RateLimit.Window <= 0 {
			return fmt.Errorf("%w: rate limit needs positive requests and window", gousers.ErrConfigInvalid)
		}
		if c.RateLimit.Backend != BackendMemory && c.RateLimit.Backend != BackendRedis {
			return fmt.Errorf("%w: unknown rate limit backend %q", gousers.ErrConfigInvalid, c.RateLimit.Backend)
		}
	}

	return nil
}
