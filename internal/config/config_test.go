// ABOUTME: Tests for configuration loading and parsing
// ABOUTME: Covers YAML loading, env var expansion, defaults, and duration parsing

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatalf("writing config file: %v", err)
	}
	return configPath
}

const validConfig = `
server:
  http_addr: "0.0.0.0:8080"

database:
  path: "./test.db"

admin:
  user_id: "@boss:example.org"

matrix:
  homeserver: "https://matrix.example.org"
  user_id: "@rollcall:example.org"
  access_token: "syt-test"
  allowed_rooms:
    - "!room1:example.org"

commands:
  checkin: "checkin"
  roster: "today"

pairing:
  code_ttl: "3m"

session:
  ttl: "6h"

logging:
  level: "debug"
  format: "json"
`

func TestLoad_ValidConfig(t *testing.T) {
	cfg, err := Load(writeConfig(t, validConfig))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Server.HTTPAddr != "0.0.0.0:8080" {
		t.Errorf("HTTPAddr = %q, want %q", cfg.Server.HTTPAddr, "0.0.0.0:8080")
	}
	if cfg.Admin.UserID != "@boss:example.org" {
		t.Errorf("Admin.UserID = %q", cfg.Admin.UserID)
	}
	if cfg.Pairing.CodeTTL != 3*time.Minute {
		t.Errorf("Pairing.CodeTTL = %v, want 3m", cfg.Pairing.CodeTTL)
	}
	if cfg.Session.TTL != 6*time.Hour {
		t.Errorf("Session.TTL = %v, want 6h", cfg.Session.TTL)
	}
	if len(cfg.Matrix.AllowedRooms) != 1 {
		t.Errorf("AllowedRooms = %v", cfg.Matrix.AllowedRooms)
	}
}

func TestLoad_Defaults(t *testing.T) {
	minimal := `
server:
  http_addr: "127.0.0.1:8080"
database:
  path: "./test.db"
admin:
  user_id: "@boss:example.org"
matrix:
  homeserver: "https://matrix.example.org"
  user_id: "@rollcall:example.org"
  access_token: "syt-test"
`
	cfg, err := Load(writeConfig(t, minimal))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Commands.Checkin != DefaultCheckinCommand {
		t.Errorf("Commands.Checkin = %q, want default", cfg.Commands.Checkin)
	}
	if cfg.Commands.Roster != DefaultRosterCommand {
		t.Errorf("Commands.Roster = %q, want default", cfg.Commands.Roster)
	}
	if cfg.Pairing.CodeTTL != DefaultCodeTTL {
		t.Errorf("Pairing.CodeTTL = %v, want default", cfg.Pairing.CodeTTL)
	}
	if cfg.Session.TTL != DefaultSessionTTL {
		t.Errorf("Session.TTL = %v, want default", cfg.Session.TTL)
	}
	if cfg.Server.BaseURL != "http://127.0.0.1:8080" {
		t.Errorf("Server.BaseURL = %q", cfg.Server.BaseURL)
	}
}

func TestLoad_EnvExpansion(t *testing.T) {
	t.Setenv("ROLLCALL_TEST_TOKEN", "syt-from-env")

	content := strings.Replace(validConfig, `access_token: "syt-test"`, `access_token: "${ROLLCALL_TEST_TOKEN}"`, 1)
	cfg, err := Load(writeConfig(t, content))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Matrix.AccessToken != "syt-from-env" {
		t.Errorf("AccessToken = %q, want env value", cfg.Matrix.AccessToken)
	}
}

func TestLoad_MissingRequired(t *testing.T) {
	tests := []struct {
		name   string
		remove string
		want   string
	}{
		{"no admin", "user_id: \"@boss:example.org\"", "admin.user_id"},
		{"no database", "path: \"./test.db\"", "database.path"},
		{"no http addr", "http_addr: \"0.0.0.0:8080\"", "server.http_addr"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			content := strings.Replace(validConfig, tt.remove, "", 1)
			_, err := Load(writeConfig(t, content))
			if err == nil {
				t.Fatal("Load should have failed")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}

func TestLoad_BadDuration(t *testing.T) {
	content := strings.Replace(validConfig, `code_ttl: "3m"`, `code_ttl: "soon"`, 1)
	_, err := Load(writeConfig(t, content))
	if err == nil {
		t.Fatal("Load should have failed on invalid duration")
	}
}
