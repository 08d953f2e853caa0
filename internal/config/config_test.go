package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfigFile(t, `
app:
  name: dontcare
  env: test
server:
  port: 9090
database:
  host: localhost
  port: 5432
  user: app
  dbname: dontcare
redis:
  addr: localhost:6379
jwt:
  secret_key: test-secret
  access_duration: 30m
kis:
  enabled: true
  app_key: key
  app_secret: secret
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.App.Name != "dontcare" {
		t.Errorf("expected app name dontcare, got %s", cfg.App.Name)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("expected port 9090, got %d", cfg.Server.Port)
	}
	if cfg.JWT.AccessDuration != 30*time.Minute {
		t.Errorf("expected access duration 30m, got %v", cfg.JWT.AccessDuration)
	}
	// defaults
	if cfg.Server.Host != "0.0.0.0" {
		t.Errorf("expected default host, got %s", cfg.Server.Host)
	}
	if cfg.JWT.RefreshDuration != 7*24*time.Hour {
		t.Errorf("expected default refresh duration, got %v", cfg.JWT.RefreshDuration)
	}
	if cfg.Yahoo.CallsPerMin != 5 {
		t.Errorf("expected default yahoo calls per minute, got %d", cfg.Yahoo.CallsPerMin)
	}
}

func TestLoadExpandsEnv(t *testing.T) {
	t.Setenv("TEST_JWT_SECRET", "from-env")
	t.Setenv("TEST_DB_PASSWORD", "pw-from-env")

	path := writeConfigFile(t, `
jwt:
  secret_key: ${TEST_JWT_SECRET}
database:
  password: ${TEST_DB_PASSWORD}
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.JWT.SecretKey != "from-env" {
		t.Errorf("expected secret from env, got %q", cfg.JWT.SecretKey)
	}
	if cfg.Database.Password != "pw-from-env" {
		t.Errorf("expected password from env, got %q", cfg.Database.Password)
	}
}

func TestLoadValidation(t *testing.T) {
	t.Run("missing jwt secret", func(t *testing.T) {
		path := writeConfigFile(t, `
app:
  name: dontcare
`)
		if _, err := Load(path); err == nil {
			t.Error("expected error for missing jwt secret")
		}
	})

	t.Run("kis enabled without credentials", func(t *testing.T) {
		path := writeConfigFile(t, `
jwt:
  secret_key: s
kis:
  enabled: true
`)
		if _, err := Load(path); err == nil {
			t.Error("expected error for missing KIS credentials")
		}
	})

	t.Run("kis disabled without credentials is fine", func(t *testing.T) {
		path := writeConfigFile(t, `
jwt:
  secret_key: s
kis:
  enabled: false
`)
		if _, err := Load(path); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load("/nonexistent/config.yaml"); err == nil {
		t.Error("expected error for missing file")
	}
}
