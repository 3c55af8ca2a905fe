// ABOUTME: Tests for Matrix relay configuration loading
// ABOUTME: Covers env expansion, defaults and validation failures

package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validConfig = `
[matrix]
homeserver = "https://matrix.example.org"
user_id = "@pethome:example.org"
access_token = "${TEST_MATRIX_TOKEN}"
room_id = "!abc123:example.org"

[pethome]
base_url = "http://localhost:8080/api/v1"
token = "jwt-token"

[bridge]
allowed_senders = ["@alice:example.org"]

[logging]
level = "debug"
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "matrix.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad(t *testing.T) {
	t.Setenv("TEST_MATRIX_TOKEN", "syt_secret")

	cfg, err := Load(writeConfig(t, validConfig))
	require.NoError(t, err)

	assert.Equal(t, "https://matrix.example.org", cfg.Matrix.Homeserver)
	assert.Equal(t, "syt_secret", cfg.Matrix.AccessToken)
	assert.Equal(t, "!abc123:example.org", cfg.Matrix.RoomID)
	assert.Equal(t, "jwt-token", cfg.Pethome.Token)
	assert.Equal(t, defaultCommandPrefix, cfg.Bridge.CommandPrefix)
	assert.Equal(t, []string{"@alice:example.org"}, cfg.Bridge.AllowedSenders)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoadMissingEnvFailsValidation(t *testing.T) {
	t.Setenv("TEST_MATRIX_TOKEN", "")

	_, err := Load(writeConfig(t, validConfig))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "matrix.access_token")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	base := func() Config {
		return Config{
			Matrix: MatrixConfig{
				Homeserver:  "https://matrix.example.org",
				UserID:      "@bot:example.org",
				AccessToken: "tok",
				RoomID:      "!room:example.org",
			},
			Pethome: PethomeConfig{BaseURL: "https://pets.example.org/api/v1", Token: "jwt"},
		}
	}

	cfg := base()
	require.NoError(t, cfg.Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"no homeserver", func(c *Config) { c.Matrix.Homeserver = "" }, "matrix.homeserver"},
		{"bad scheme", func(c *Config) { c.Matrix.Homeserver = "ftp://x" }, "http or https"},
		{"bad user id", func(c *Config) { c.Matrix.UserID = "bot" }, "matrix.user_id"},
		{"alias not id", func(c *Config) { c.Matrix.RoomID = "#pets:example.org" }, "matrix.room_id"},
		{"no backend", func(c *Config) { c.Pethome.BaseURL = "" }, "pethome.base_url"},
		{"no token", func(c *Config) { c.Pethome.Token = "" }, "pethome.token"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestConfigPathEnvOverride(t *testing.T) {
	t.Setenv(configEnv, "/tmp/custom.toml")
	assert.Equal(t, "/tmp/custom.toml", configPath())

	t.Setenv(configEnv, "")
	t.Setenv("XDG_CONFIG_HOME", "/xdg")
	assert.Equal(t, filepath.Join("/xdg", "pethome", "matrix.toml"), configPath())
}
