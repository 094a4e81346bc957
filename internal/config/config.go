// ABOUTME: Configuration loading and parsing for rollcall
// ABOUTME: Supports YAML files with environment variable expansion and duration parsing

package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete rollcall configuration
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Admin    AdminConfig    `yaml:"admin"`
	Matrix   MatrixConfig   `yaml:"matrix"`
	Commands CommandsConfig `yaml:"commands"`
	Pairing  PairingConfig  `yaml:"pairing"`
	Session  SessionConfig  `yaml:"session"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	HTTPAddr string `yaml:"http_addr"`

	// BaseURL is the external URL for the dashboard (used in pairing links).
	// If not set, it is derived from http_addr.
	BaseURL string `yaml:"base_url"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// AdminConfig identifies the single administrator allowed to pair a dashboard
type AdminConfig struct {
	UserID string `yaml:"user_id"`
}

// MatrixConfig holds Matrix connection configuration
type MatrixConfig struct {
	Homeserver   string   `yaml:"homeserver"`
	UserID       string   `yaml:"user_id"`
	AccessToken  string   `yaml:"access_token"`
	AllowedRooms []string `yaml:"allowed_rooms"`
}

// CommandsConfig holds the exact-match chat command tokens
type CommandsConfig struct {
	Checkin string `yaml:"checkin"`
	Roster  string `yaml:"roster"`
	Login   string `yaml:"login"`
}

// PairingConfig holds pairing handshake timing configuration
type PairingConfig struct {
	CodeTTL time.Duration `yaml:"-"`

	// Raw string value for YAML unmarshaling
	CodeTTLRaw string `yaml:"code_ttl"`
}

// SessionConfig holds dashboard session timing configuration
type SessionConfig struct {
	TTL time.Duration `yaml:"-"`

	// Raw string value for YAML unmarshaling
	TTLRaw string `yaml:"ttl"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Defaults applied when the corresponding config fields are absent.
const (
	DefaultCheckinCommand = "checkin"
	DefaultRosterCommand  = "today"
	DefaultLoginCommand   = "login"
	DefaultCodeTTL        = 5 * time.Minute
	DefaultSessionTTL     = 12 * time.Hour
)

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

	// Parse duration fields
	if err := parseDurations(&cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	cfg.applyDefaults()

	// Validate required fields
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	// Match ${VAR_NAME} pattern
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		// Extract variable name from ${VAR_NAME}
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if c.Server.HTTPAddr == "" {
		return fmt.Errorf("server.http_addr is required")
	}

	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}

	if c.Admin.UserID == "" {
		return fmt.Errorf("admin.user_id is required")
	}

	if c.Matrix.Homeserver == "" {
		return fmt.Errorf("matrix.homeserver is required")
	}
	if c.Matrix.UserID == "" {
		return fmt.Errorf("matrix.user_id is required")
	}
	if c.Matrix.AccessToken == "" {
		return fmt.Errorf("matrix.access_token is required")
	}

	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	var err error

	if cfg.Pairing.CodeTTLRaw != "" {
		cfg.Pairing.CodeTTL, err = time.ParseDuration(cfg.Pairing.CodeTTLRaw)
		if err != nil {
			return fmt.Errorf("parsing pairing.code_ttl %q: %w", cfg.Pairing.CodeTTLRaw, err)
		}
	}

	if cfg.Session.TTLRaw != "" {
		cfg.Session.TTL, err = time.ParseDuration(cfg.Session.TTLRaw)
		if err != nil {
			return fmt.Errorf("parsing session.ttl %q: %w", cfg.Session.TTLRaw, err)
		}
	}

	return nil
}

// applyDefaults fills in zero-valued optional fields
func (c *Config) applyDefaults() {
	if c.Commands.Checkin == "" {
		c.Commands.Checkin = DefaultCheckinCommand
	}
	if c.Commands.Roster == "" {
		c.Commands.Roster = DefaultRosterCommand
	}
	if c.Commands.Login == "" {
		c.Commands.Login = DefaultLoginCommand
	}
	if c.Pairing.CodeTTL == 0 {
		c.Pairing.CodeTTL = DefaultCodeTTL
	}
	if c.Session.TTL == 0 {
		c.Session.TTL = DefaultSessionTTL
	}
	if c.Server.BaseURL == "" {
		c.Server.BaseURL = "http://" + c.Server.HTTPAddr
	}
}
