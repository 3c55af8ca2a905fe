// Package config handles configuration loading for pethome-inbox.
//
// # Overview
//
// Configuration is loaded from a YAML file with environment variable
// expansion. Every field has a default, so a missing file is not an error
// (see LoadOrDefault).
//
// # Configuration File
//
// Default locations (in order):
//
//  1. Path from PETHOME_CONFIG environment variable
//  2. $XDG_CONFIG_HOME/pethome/inbox.yaml
//  3. ~/.config/pethome/inbox.yaml
//
// # Example
//
//	server:
//	  base_url: "https://pets.example.com/api/v1"
//	  request_timeout: "15s"
//
//	auth:
//	  token_env: "PETHOME_TOKEN"
//	  token_path: "${HOME}/.config/pethome/token"
//
//	live:
//	  backoff: "fixed"        # fixed, exponential
//	  reconnect_delay: "5s"
//	  max_delay: "1m"         # exponential only
//
//	cache:
//	  enabled: true
//	  path: "${HOME}/.local/share/pethome/inbox.db"
//
//	logging:
//	  level: "info"   # debug, info, warn, error
//	  format: "text"  # text, json
//
// Duration values use Go's time.ParseDuration syntax.
package config
