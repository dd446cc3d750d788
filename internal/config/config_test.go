package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}
	return path
}

func TestLoadConfig(t *testing.T) {
	path := writeConfigFile(t, `
server:
  port: 8080
  read_timeout: 3s
  write_timeout: 15s
data:
  dir: /tmp/forms
  max_db_size_gb: 4
tokens:
  secret: super-secret
  ttl: 45m
signup:
  login_url: https://example.com/login
  store_url: https://example.com/store
integration:
  vendor: cleancloud
  config:
    api_key: k1
    store_id: s1
webhooks:
  urls:
    - https://hooks.example.com/a
  timeout: 5s
  max_retries: 3
email:
  host: smtp.example.com
  from: noreply@example.com
  admin_to:
    - admin@example.com
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("Expected port 8080, got %d", cfg.Server.Port)
	}
	if cfg.ReadTimeout != 3*time.Second || cfg.WriteTimeout != 15*time.Second {
		t.Errorf("Timeouts not parsed: %v %v", cfg.ReadTimeout, cfg.WriteTimeout)
	}
	if cfg.TokenTTL != 45*time.Minute {
		t.Errorf("Token TTL not parsed: %v", cfg.TokenTTL)
	}
	if cfg.Integration.Vendor != "cleancloud" {
		t.Errorf("Expected cleancloud vendor, got %s", cfg.Integration.Vendor)
	}
	if len(cfg.Webhooks.URLs) != 1 || cfg.Webhooks.MaxRetries != 3 {
		t.Errorf("Webhooks not parsed: %+v", cfg.Webhooks)
	}
	if cfg.Email.Port != 587 {
		t.Errorf("Expected default SMTP port, got %d", cfg.Email.Port)
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	path := writeConfigFile(t, `
tokens:
  secret: s
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.Server.Port != 33490 {
		t.Errorf("Expected default port, got %d", cfg.Server.Port)
	}
	if cfg.TokenTTL != 30*time.Minute {
		t.Errorf("Expected default TTL, got %v", cfg.TokenTTL)
	}
	if cfg.Data.MaxDBSizeGB != 2 {
		t.Errorf("Expected default db size, got %d", cfg.Data.MaxDBSizeGB)
	}
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Setenv("POS_SERVICE_PORT", "9999")
	t.Setenv("TOKEN_SECRET", "env-secret")

	path := writeConfigFile(t, `
server:
  port: 8080
tokens:
  secret: file-secret
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Server.Port != 9999 {
		t.Errorf("Env port override not applied: %d", cfg.Server.Port)
	}
	if cfg.Tokens.Secret != "env-secret" {
		t.Errorf("Env secret override not applied: %s", cfg.Tokens.Secret)
	}
}

func TestLoadConfig_InvalidValues(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"bad yaml", "server: [not a map"},
		{"bad duration", "server:\n  read_timeout: soon"},
		{"bad port", "server:\n  port: 99999"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfigFile(t, tt.content)
			if _, err := LoadConfig(path); err == nil {
				t.Error("Expected load error")
			}
		})
	}
}

func TestLoadConfig_MissingFile(t *testing.T) {
	if _, err := LoadConfig("/no/such/config.yaml"); err == nil {
		t.Error("Expected error for missing file")
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.Server.Port != 33490 {
		t.Errorf("Expected default port, got %d", cfg.Server.Port)
	}
	if cfg.TokenTTL != 30*time.Minute {
		t.Errorf("Expected default TTL, got %v", cfg.TokenTTL)
	}
}
