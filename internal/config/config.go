package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/managershow/esteira/internal/models"
	"github.com/managershow/esteira/internal/registry"
)

// Store backends
const (
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
)

const (
	DefaultCommitTimeout = 10 * time.Second
	DefaultDebounceMS    = 100
	DefaultHTTPAddr      = "127.0.0.1:8420"
	DefaultRedisAddr     = "127.0.0.1:6379"
)

var ErrInvalidConfig = errors.New("invalid config")

// Config represents the application configuration
type Config struct {
	DataDir       string        `yaml:"data_dir"`
	Store         StoreConfig   `yaml:"store"`
	Daemon        DaemonConfig  `yaml:"daemon"`
	HTTP          HTTPConfig    `yaml:"http"`
	CommitTimeout time.Duration `yaml:"commit_timeout"`
	Policy        PolicyConfig  `yaml:"policy"`
	Pipelines     Pipelines     `yaml:"pipelines"`
	Theme         Theme         `yaml:"theme"`
}

// StoreConfig selects where boards are persisted
type StoreConfig struct {
	Backend   string `yaml:"backend"`
	RedisAddr string `yaml:"redis_addr"`
	RedisDB   int    `yaml:"redis_db"`
}

// DaemonConfig locates the local event daemon
type DaemonConfig struct {
	SocketPath string `yaml:"socket_path"`
	DebounceMS int    `yaml:"debounce_ms"`
}

type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

// PolicyConfig restricts which transitions are legal.
// With neither field set every declared stage is reachable.
type PolicyConfig struct {
	LockTerminalStages bool                            `yaml:"lock_terminal_stages"`
	Transitions        map[models.Stage][]models.Stage `yaml:"transitions,omitempty"`
}

// Pipelines overrides the built-in stage lists
type Pipelines struct {
	Shows []registry.StageDef `yaml:"shows,omitempty"`
	Leads []registry.StageDef `yaml:"leads,omitempty"`
}

// Default returns the configuration used when no file exists
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// Load loads config from the user's config directory, then applies
// ESTEIRA_* environment overrides.
// Returns default config if file doesn't exist
func Load() (*Config, error) {
	config := &Config{}

	configPath, err := getConfigPath()
	if err == nil {
		data, err := os.ReadFile(configPath)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, err
		default:
			if err := yaml.Unmarshal(data, config); err != nil {
				return nil, fmt.Errorf("failed to parse %s: %w", configPath, err)
			}
		}
	}

	if err := config.applyEnv(); err != nil {
		return nil, err
	}
	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Save saves the config to the user's config directory
func (c *Config) Save() error {
	configPath, err := getConfigPath()
	if err != nil {
		return err
	}

	// Create config directory if it doesn't exist
	configDir := filepath.Dir(configPath)
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return err
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}

	return os.WriteFile(configPath, data, 0o644)
}

// Validate rejects settings the application cannot start with
func (c *Config) Validate() error {
	switch c.Store.Backend {
	case BackendSQLite, BackendRedis:
	default:
		return fmt.Errorf("%w: unknown store backend %q", ErrInvalidConfig, c.Store.Backend)
	}
	if c.CommitTimeout < 0 {
		return fmt.Errorf("%w: commit_timeout must be positive", ErrInvalidConfig)
	}
	for _, kind := range []models.Kind{models.KindShow, models.KindLead} {
		if _, err := c.Registry(kind); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
		}
	}
	return nil
}

// Registry builds the stage registry for a board kind, using the configured
// pipeline when one is set
func (c *Config) Registry(kind models.Kind) (*registry.Registry, error) {
	var defs []registry.StageDef
	switch kind {
	case models.KindShow:
		defs = c.Pipelines.Shows
	case models.KindLead:
		defs = c.Pipelines.Leads
	}
	if len(defs) == 0 {
		return registry.Default(kind)
	}
	return registry.New(kind, defs)
}

// SocketPath returns the daemon socket, defaulting inside the data dir
func (c *Config) SocketPath() string {
	if c.Daemon.SocketPath != "" {
		return c.Daemon.SocketPath
	}
	return filepath.Join(c.DataDir, "esteira.sock")
}

// Debounce returns the event batching interval
func (c *Config) Debounce() time.Duration {
	return time.Duration(c.Daemon.DebounceMS) * time.Millisecond
}

// getConfigPath returns the path to the config file
func getConfigPath() (string, error) {
	// Try XDG_CONFIG_HOME first
	if configHome := os.Getenv("XDG_CONFIG_HOME"); configHome != "" {
		return filepath.Join(configHome, "esteira", "config.yaml"), nil
	}

	// Fall back to ~/.config
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}

	return filepath.Join(homeDir, ".config", "esteira", "config.yaml"), nil
}

// applyEnv overrides file settings with ESTEIRA_* variables
func (c *Config) applyEnv() error {
	if v := os.Getenv("ESTEIRA_DATA_DIR"); v != "" {
		c.DataDir = v
	}
	if v := os.Getenv("ESTEIRA_STORE_BACKEND"); v != "" {
		c.Store.Backend = v
	}
	if v := os.Getenv("ESTEIRA_REDIS_ADDR"); v != "" {
		c.Store.RedisAddr = v
	}
	if v := os.Getenv("ESTEIRA_COMMIT_TIMEOUT_MS"); v != "" {
		ms, err := strconv.Atoi(v)
		if err != nil || ms <= 0 {
			return fmt.Errorf("%w: ESTEIRA_COMMIT_TIMEOUT_MS=%q", ErrInvalidConfig, v)
		}
		c.CommitTimeout = time.Duration(ms) * time.Millisecond
	}
	return nil
}

// applyDefaults fills in missing configuration with defaults
func (c *Config) applyDefaults() {
	if c.DataDir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			c.DataDir = filepath.Join(home, ".esteira")
		} else {
			c.DataDir = ".esteira"
		}
	}
	if c.Store.Backend == "" {
		c.Store.Backend = BackendSQLite
	}
	if c.Store.RedisAddr == "" {
		c.Store.RedisAddr = DefaultRedisAddr
	}
	if c.Daemon.DebounceMS <= 0 {
		c.Daemon.DebounceMS = DefaultDebounceMS
	}
	if c.HTTP.Addr == "" {
		c.HTTP.Addr = DefaultHTTPAddr
	}
	if c.CommitTimeout == 0 {
		c.CommitTimeout = DefaultCommitTimeout
	}
	c.Theme.ApplyDefaults()
}
