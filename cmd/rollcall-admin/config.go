// ABOUTME: Configuration loading for the rollcall-admin CLI
// ABOUTME: Loads TOML config from XDG path with environment variable overrides

package main

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/BurntSushi/toml"
)

type Config struct {
	Server ServerConfig `toml:"server"`
}

type ServerConfig struct {
	// URL is the rollcall dashboard base URL
	URL string `toml:"url"`

	// Token is the dashboard bearer token from a pairing handshake
	Token string `toml:"token"`
}

// configPath returns the CLI config file location.
// Priority: ROLLCALL_ADMIN_CONFIG > XDG_CONFIG_HOME/rollcall/admin.toml > ~/.config/rollcall/admin.toml
func configPath() string {
	if envPath := os.Getenv("ROLLCALL_ADMIN_CONFIG"); envPath != "" {
		return envPath
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "admin.toml" // fallback
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	return filepath.Join(configDir, "rollcall", "admin.toml")
}

// loadConfig reads the TOML config, expanding ${VAR} references. A missing
// file is not an error; environment variables can supply everything.
func loadConfig() (*Config, error) {
	var cfg Config

	data, err := os.ReadFile(configPath())
	if err == nil {
		expanded := expandEnvVars(string(data))
		if _, err := toml.Decode(expanded, &cfg); err != nil {
			return nil, fmt.Errorf("parsing config: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if url := os.Getenv("ROLLCALL_URL"); url != "" {
		cfg.Server.URL = url
	}
	if token := os.Getenv("ROLLCALL_TOKEN"); token != "" {
		cfg.Server.Token = token
	}

	if cfg.Server.URL == "" {
		cfg.Server.URL = "http://localhost:8080"
	}
	cfg.Server.URL = strings.TrimRight(cfg.Server.URL, "/")

	return &cfg, nil
}

// expandEnvVars replaces ${VAR} with environment variable values.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)
	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := strings.TrimSuffix(strings.TrimPrefix(match, "${"), "}")
		return os.Getenv(varName)
	})
}
