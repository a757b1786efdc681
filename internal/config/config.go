// Package config loads server settings from defaults, an optional YAML
// file, a .env file and the process environment, in that order.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"golang.org/x/crypto/bcrypt"
	"gopkg.in/yaml.v3"
)

// FileEnv names the environment variable pointing at a YAML config file.
const FileEnv = "STORYESTIMATE_CONFIG"

// Store backends.
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
	BackendSQLite = "sqlite"
)

// Config holds every tunable of the server process.
type Config struct {
	ListenAddr      string        `yaml:"listen_addr" env:"LISTEN_ADDR"`
	Backend         string        `yaml:"backend" env:"STORE_BACKEND"`
	RedisAddr       string        `yaml:"redis_addr" env:"REDIS_ADDR"`
	RedisPassword   string        `yaml:"redis_password" env:"REDIS_PASSWORD"`
	RedisDB         int           `yaml:"redis_db" env:"REDIS_DB"`
	SQLitePath      string        `yaml:"sqlite_path" env:"SQLITE_PATH"`
	TokenHashCost   int           `yaml:"token_hash_cost" env:"TOKEN_HASH_COST"`
	RateLimitMax    int           `yaml:"rate_limit_max" env:"RATE_LIMIT_MAX"`
	RateLimitWindow time.Duration `yaml:"rate_limit_window" env:"RATE_LIMIT_WINDOW"`
	CORSOrigin      string        `yaml:"cors_origin" env:"CORS_ORIGIN"`
	AccessLog       bool          `yaml:"access_log" env:"ACCESS_LOG"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT"`
}

// Default returns the built-in configuration. Backend is left empty so
// Load can pick one from what else is configured.
func Default() Config {
	return Config{
		ListenAddr:      ":8000",
		SQLitePath:      "storyestimate.db",
		TokenHashCost:   bcrypt.DefaultCost,
		RateLimitMax:    60,
		RateLimitWindow: time.Minute,
		CORSOrigin:      "*",
		AccessLog:       true,
		ShutdownTimeout: 10 * time.Second,
	}
}

// Load builds the configuration and validates it.
func Load() (Config, error) {
	cfg := Default()

	if path := os.Getenv(FileEnv); path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return Config{}, err
		}
	}

	// Existing environment variables win over .env entries.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	if err := ParseEnv(&cfg); err != nil {
		return Config{}, err
	}

	cfg.resolveBackend()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ParseEnv overlays environment variables onto target.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

func (c *Config) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

// resolveBackend picks redis when only REDIS_ADDR is given.
func (c *Config) resolveBackend() {
	c.Backend = strings.ToLower(strings.TrimSpace(c.Backend))
	if c.Backend != "" {
		return
	}
	if c.RedisAddr != "" {
		c.Backend = BackendRedis
	} else {
		c.Backend = BackendMemory
	}
}

// Validate reports the first setting that cannot be used.
func (c Config) Validate() error {
	if strings.TrimSpace(c.ListenAddr) == "" {
		return errors.New("config: listen address is required")
	}
	switch c.Backend {
	case BackendMemory:
	case BackendRedis:
		if c.RedisAddr == "" {
			return errors.New("config: redis backend requires REDIS_ADDR")
		}
	case BackendSQLite:
		if strings.TrimSpace(c.SQLitePath) == "" {
			return errors.New("config: sqlite backend requires SQLITE_PATH")
		}
	default:
		return fmt.Errorf("config: unknown store backend %q", c.Backend)
	}
	if c.TokenHashCost < bcrypt.MinCost || c.TokenHashCost > bcrypt.MaxCost {
		return fmt.Errorf("config: token hash cost %d out of range [%d, %d]",
			c.TokenHashCost, bcrypt.MinCost, bcrypt.MaxCost)
	}
	if c.RateLimitMax <= 0 {
		return fmt.Errorf("config: rate limit max must be positive, got %d", c.RateLimitMax)
	}
	if c.RateLimitWindow <= 0 {
		return fmt.Errorf("config: rate limit window must be positive, got %s", c.RateLimitWindow)
	}
	if c.ShutdownTimeout <= 0 {
		return fmt.Errorf("config: shutdown timeout must be positive, got %s", c.ShutdownTimeout)
	}
	return nil
}
