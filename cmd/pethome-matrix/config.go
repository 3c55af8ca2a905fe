// ABOUTME: Configuration loading for the pethome Matrix relay
// ABOUTME: TOML file with ${VAR} expansion; path from PETHOME_MATRIX_CONFIG or XDG

package main

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/BurntSushi/toml"
)

const (
	defaultCommandPrefix = "!"
	configEnv            = "PETHOME_MATRIX_CONFIG"
)

type Config struct {
	Matrix  MatrixConfig  `toml:"matrix"`
	Pethome PethomeConfig `toml:"pethome"`
	Bridge  BridgeConfig  `toml:"bridge"`
	Logging LoggingConfig `toml:"logging"`
}

type MatrixConfig struct {
	Homeserver  string `toml:"homeserver"`
	UserID      string `toml:"user_id"`
	AccessToken string `toml:"access_token"`
	RoomID      string `toml:"room_id"`
}

type PethomeConfig struct {
	BaseURL string `toml:"base_url"`
	Token   string `toml:"token"`
}

type BridgeConfig struct {
	CommandPrefix string `toml:"command_prefix"`
	// AllowedSenders limits who may use !reply; empty allows every room member.
	AllowedSenders []string `toml:"allowed_senders"`
}

type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// configPath returns the relay config file path.
// Priority: PETHOME_MATRIX_CONFIG > XDG_CONFIG_HOME/pethome/matrix.toml > ~/.config/pethome/matrix.toml
func configPath() string {
	if envPath := os.Getenv(configEnv); envPath != "" {
		return envPath
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "matrix.toml"
		}
		configDir = filepath.Join(homeDir, ".config")
	}
	return filepath.Join(configDir, "pethome", "matrix.toml")
}

// Load reads config from the given path, expanding environment variables.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	expanded := expandEnvVars(string(data))

	var cfg Config
	if _, err := toml.Decode(expanded, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if cfg.Bridge.CommandPrefix == "" {
		cfg.Bridge.CommandPrefix = defaultCommandPrefix
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return &cfg, nil
}

func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)
	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := strings.TrimSuffix(strings.TrimPrefix(match, "${"), "}")
		return os.Getenv(varName)
	})
}

// Validate checks that required config fields are present and valid.
func (c *Config) Validate() error {
	if err := validateHTTPURL("matrix.homeserver", c.Matrix.Homeserver); err != nil {
		return err
	}
	if !strings.HasPrefix(c.Matrix.UserID, "@") || !strings.Contains(c.Matrix.UserID, ":") {
		return fmt.Errorf("matrix.user_id must look like @user:server, got %q", c.Matrix.UserID)
	}
	if c.Matrix.AccessToken == "" {
		return fmt.Errorf("matrix.access_token is required")
	}
	if !strings.HasPrefix(c.Matrix.RoomID, "!") {
		return fmt.Errorf("matrix.room_id must be a room id starting with '!', got %q", c.Matrix.RoomID)
	}
	if err := validateHTTPURL("pethome.base_url", c.Pethome.BaseURL); err != nil {
		return err
	}
	if c.Pethome.Token == "" {
		return fmt.Errorf("pethome.token is required")
	}
	return nil
}

func validateHTTPURL(field, raw string) error {
	if raw == "" {
		return fmt.Errorf("%s is required", field)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%s is not a valid URL: %w", field, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%s must use http or https scheme", field)
	}
	if u.Host == "" {
		return fmt.Errorf("%s must include a host", field)
	}
	return nil
}
