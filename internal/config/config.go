// ABOUTME: Configuration loading and parsing for pethome-inbox
// ABOUTME: Supports YAML files with environment variable expansion and duration parsing

package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Defaults applied when a field is left empty.
const (
	DefaultBaseURL        = "http://localhost:8080/api/v1"
	DefaultRequestTimeout = 15 * time.Second
	DefaultReconnectDelay = 5 * time.Second
	DefaultMaxDelay       = time.Minute
	DefaultTokenEnv       = "PETHOME_TOKEN"
)

// Backoff strategies for the live channel.
const (
	BackoffFixed       = "fixed"
	BackoffExponential = "exponential"
)

// Config represents the complete pethome-inbox configuration
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Auth    AuthConfig    `yaml:"auth"`
	Live    LiveConfig    `yaml:"live"`
	Cache   CacheConfig   `yaml:"cache"`
	Logging LoggingConfig `yaml:"logging"`
}

// ServerConfig describes the REST backend
type ServerConfig struct {
	BaseURL        string        `yaml:"base_url"`
	RequestTimeout time.Duration `yaml:"-"`

	RequestTimeoutRaw string `yaml:"request_timeout"`
}

// AuthConfig tells the session where to find the bearer token
type AuthConfig struct {
	// TokenEnv names the environment variable checked first.
	TokenEnv string `yaml:"token_env"`
	// TokenPath is the file the token is read from (and removed on logout).
	TokenPath string `yaml:"token_path"`
}

// LiveConfig holds the server-push reconnect policy
type LiveConfig struct {
	Backoff        string        `yaml:"backoff"`
	ReconnectDelay time.Duration `yaml:"-"`
	MaxDelay       time.Duration `yaml:"-"`

	ReconnectDelayRaw string `yaml:"reconnect_delay"`
	MaxDelayRaw       string `yaml:"max_delay"`
}

// CacheConfig holds the local snapshot cache settings
type CacheConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// Load reads a configuration file from the given path and returns a parsed Config.
// Environment variables in the format ${VAR_NAME} are expanded.
// Duration strings are parsed into time.Duration values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables in the raw YAML content
	expandedData := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := parseDurations(&cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// LoadOrDefault behaves like Load but returns Default() when path does not exist.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}
	return cfg, err
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	u, err := url.Parse(c.Server.BaseURL)
	if err != nil {
		return fmt.Errorf("server.base_url is not a valid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("server.base_url must use http or https scheme")
	}
	if u.Host == "" {
		return fmt.Errorf("server.base_url must include a host")
	}

	if c.Server.RequestTimeout <= 0 {
		return fmt.Errorf("server.request_timeout must be positive")
	}

	switch c.Live.Backoff {
	case BackoffFixed, BackoffExponential:
	default:
		return fmt.Errorf("live.backoff must be %q or %q, got %q", BackoffFixed, BackoffExponential, c.Live.Backoff)
	}
	if c.Live.ReconnectDelay <= 0 {
		return fmt.Errorf("live.reconnect_delay must be positive")
	}
	if c.Live.Backoff == BackoffExponential && c.Live.MaxDelay < c.Live.ReconnectDelay {
		return fmt.Errorf("live.max_delay must not be shorter than live.reconnect_delay")
	}

	if c.Cache.Enabled && c.Cache.Path == "" {
		return fmt.Errorf("cache.path is required when cache is enabled")
	}

	switch c.Logging.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level %q is not one of debug, info, warn, error", c.Logging.Level)
	}

	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	var err error

	if cfg.Server.RequestTimeoutRaw != "" {
		cfg.Server.RequestTimeout, err = time.ParseDuration(cfg.Server.RequestTimeoutRaw)
		if err != nil {
			return fmt.Errorf("parsing request_timeout %q: %w", cfg.Server.RequestTimeoutRaw, err)
		}
	}

	if cfg.Live.ReconnectDelayRaw != "" {
		cfg.Live.ReconnectDelay, err = time.ParseDuration(cfg.Live.ReconnectDelayRaw)
		if err != nil {
			return fmt.Errorf("parsing reconnect_delay %q: %w", cfg.Live.ReconnectDelayRaw, err)
		}
	}

	if cfg.Live.MaxDelayRaw != "" {
		cfg.Live.MaxDelay, err = time.ParseDuration(cfg.Live.MaxDelayRaw)
		if err != nil {
			return fmt.Errorf("parsing max_delay %q: %w", cfg.Live.MaxDelayRaw, err)
		}
	}

	return nil
}

func applyDefaults(cfg *Config) {
	if cfg.Server.BaseURL == "" {
		cfg.Server.BaseURL = DefaultBaseURL
	}
	if cfg.Server.RequestTimeout == 0 {
		cfg.Server.RequestTimeout = DefaultRequestTimeout
	}
	if cfg.Auth.TokenEnv == "" {
		cfg.Auth.TokenEnv = DefaultTokenEnv
	}
	if cfg.Auth.TokenPath == "" {
		cfg.Auth.TokenPath = filepath.Join(ConfigDir(), "token")
	}
	if cfg.Live.Backoff == "" {
		cfg.Live.Backoff = BackoffFixed
	}
	if cfg.Live.ReconnectDelay == 0 {
		cfg.Live.ReconnectDelay = DefaultReconnectDelay
	}
	if cfg.Live.MaxDelay == 0 {
		cfg.Live.MaxDelay = DefaultMaxDelay
	}
	if cfg.Cache.Path == "" {
		cfg.Cache.Path = filepath.Join(DataDir(), "inbox.db")
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
}
