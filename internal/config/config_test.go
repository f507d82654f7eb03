package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("IDGATE_AUTH_SECRET", "test-secret")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ListenAddr != ":8080" {
		t.Errorf("listen addr = %q", cfg.ListenAddr)
	}
	if cfg.Auth.AccessTokenTTL != 8*24*time.Hour {
		t.Errorf("access ttl = %v", cfg.Auth.AccessTokenTTL)
	}
	if cfg.Auth.RefreshTokenTTL != 30*24*time.Hour {
		t.Errorf("refresh ttl = %v", cfg.Auth.RefreshTokenTTL)
	}
	if cfg.Auth.PasswordMinLength != 8 {
		t.Errorf("password min length = %d", cfg.Auth.PasswordMinLength)
	}
	if cfg.HTTP.RateBurst != 20 || cfg.HTTP.RatePerSecond != 10 {
		t.Errorf("rate limits = %d/%d", cfg.HTTP.RateBurst, cfg.HTTP.RatePerSecond)
	}
}

func TestLoadMissingSecretFails(t *testing.T) {
	t.Setenv("IDGATE_AUTH_SECRET", "")
	_, err := Load("")
	if err == nil || !strings.Contains(err.Error(), "auth secret") {
		t.Fatalf("expected a secret validation error, got %v", err)
	}
}

func TestLoadYAMLFile(t *testing.T) {
	t.Setenv("IDGATE_AUTH_SECRET", "test-secret")

	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
listen_addr: ":9090"
database_dsn: "postgres://localhost/idgate"
auth:
  issuer: custom
  access_token_ttl: 1h
  password_min_length: 12
http:
  cors_origins:
    - https://app.example.com
  rate_burst: 5
logging:
  level: debug
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ListenAddr != ":9090" {
		t.Errorf("listen addr = %q", cfg.ListenAddr)
	}
	if cfg.Auth.Issuer != "custom" {
		t.Errorf("issuer = %q", cfg.Auth.Issuer)
	}
	if cfg.Auth.AccessTokenTTL != time.Hour {
		t.Errorf("access ttl = %v", cfg.Auth.AccessTokenTTL)
	}
	// A TTL absent from the file keeps its default.
	if cfg.Auth.RefreshTokenTTL != 30*24*time.Hour {
		t.Errorf("refresh ttl = %v", cfg.Auth.RefreshTokenTTL)
	}
	if cfg.Auth.PasswordMinLength != 12 {
		t.Errorf("password min length = %d", cfg.Auth.PasswordMinLength)
	}
	if len(cfg.HTTP.CORSOrigins) != 1 || cfg.HTTP.CORSOrigins[0] != "https://app.example.com" {
		t.Errorf("cors origins = %v", cfg.HTTP.CORSOrigins)
	}
	if cfg.HTTP.RateBurst != 5 {
		t.Errorf("rate burst = %d", cfg.HTTP.RateBurst)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("log level = %q", cfg.Logging.Level)
	}
}

func TestLoadBadDuration(t *testing.T) {
	t.Setenv("IDGATE_AUTH_SECRET", "test-secret")

	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("auth:\n  access_token_ttl: soon\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatalf("expected a parse error for a bad duration")
	}
}

func TestEnvOverridesBeatFile(t *testing.T) {
	t.Setenv("IDGATE_AUTH_SECRET", "test-secret")
	t.Setenv("IDGATE_LISTEN_ADDR", ":7070")
	t.Setenv("IDGATE_ACCESS_TOKEN_TTL", "45m")
	t.Setenv("IDGATE_CORS_ORIGINS", " https://a.test , https://b.test ")
	t.Setenv("IDGATE_FIRST_SUPERUSER", "root@example.com")

	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("listen_addr: \":9090\"\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ListenAddr != ":7070" {
		t.Errorf("listen addr = %q", cfg.ListenAddr)
	}
	if cfg.Auth.AccessTokenTTL != 45*time.Minute {
		t.Errorf("access ttl = %v", cfg.Auth.AccessTokenTTL)
	}
	if len(cfg.HTTP.CORSOrigins) != 2 || cfg.HTTP.CORSOrigins[1] != "https://b.test" {
		t.Errorf("cors origins = %v", cfg.HTTP.CORSOrigins)
	}
	if cfg.Bootstrap.SuperuserEmail != "root@example.com" {
		t.Errorf("superuser email = %q", cfg.Bootstrap.SuperuserEmail)
	}
}

func TestValidateRejectsNonPositiveTTL(t *testing.T) {
	cfg := defaults()
	cfg.Auth.Secret = "s"
	cfg.Auth.AccessTokenTTL = 0
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected a TTL validation error")
	}
}
