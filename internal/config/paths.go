// ABOUTME: XDG-style path resolution for config, token and data files
// ABOUTME: Mirrors the lookup order used by the command-line tools

package config

import (
	"os"
	"path/filepath"
)

// Path returns the config file path.
// Priority: PETHOME_CONFIG env var > XDG_CONFIG_HOME/pethome/inbox.yaml > ~/.config/pethome/inbox.yaml
func Path() string {
	if envPath := os.Getenv("PETHOME_CONFIG"); envPath != "" {
		return envPath
	}
	return filepath.Join(ConfigDir(), "inbox.yaml")
}

// ConfigDir returns the pethome config directory.
func ConfigDir() string {
	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "." // fallback
		}
		configDir = filepath.Join(homeDir, ".config")
	}
	return filepath.Join(configDir, "pethome")
}

// DataDir returns the pethome data directory.
// Priority: XDG_DATA_HOME/pethome > ~/.local/share/pethome
func DataDir() string {
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "data" // fallback
		}
		dataDir = filepath.Join(homeDir, ".local", "share")
	}
	return filepath.Join(dataDir, "pethome")
}
