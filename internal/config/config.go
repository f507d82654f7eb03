package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the immutable process configuration. It is built once in main
// and handed to the components that need it; nothing reads it as ambient
// global state.
type Config struct {
	ListenAddr  string `yaml:"listen_addr"`
	DatabaseDSN string `yaml:"database_dsn"`

	Auth     AuthConfig     `yaml:"auth"`
	HTTP     HTTPConfig     `yaml:"http"`
	Logging  LoggingConfig  `yaml:"logging"`
	Bootstrap BootstrapConfig `yaml:"bootstrap"`
}

// AuthConfig holds the token and credential policy surface.
type AuthConfig struct {
	Secret            string        `yaml:"-"`
	Issuer            string        `yaml:"-"`
	AccessTokenTTL    time.Duration `yaml:"-"`
	RefreshTokenTTL   time.Duration `yaml:"-"`
	ResetTokenTTL     time.Duration `yaml:"-"`
	PasswordMinLength int           `yaml:"-"`
}

// UnmarshalYAML accepts Go duration strings ("192h", "30m") for the TTL
// fields while leaving unset fields at their prior values.
func (a *AuthConfig) UnmarshalYAML(value *yaml.Node) error {
	var raw struct {
		Secret            string `yaml:"secret"`
		Issuer            string `yaml:"issuer"`
		AccessTokenTTL    string `yaml:"access_token_ttl"`
		RefreshTokenTTL   string `yaml:"refresh_token_ttl"`
		ResetTokenTTL     string `yaml:"reset_token_ttl"`
		PasswordMinLength int    `yaml:"password_min_length"`
	}
	if err := value.Decode(&raw); err != nil {
		return err
	}
	if raw.Secret != "" {
		a.Secret = raw.Secret
	}
	if raw.Issuer != "" {
		a.Issuer = raw.Issuer
	}
	for _, f := range []struct {
		in  string
		out *time.Duration
	}{
		{raw.AccessTokenTTL, &a.AccessTokenTTL},
		{raw.RefreshTokenTTL, &a.RefreshTokenTTL},
		{raw.ResetTokenTTL, &a.ResetTokenTTL},
	} {
		if f.in == "" {
			continue
		}
		d, err := time.ParseDuration(f.in)
		if err != nil {
			return fmt.Errorf("parse duration %q: %w", f.in, err)
		}
		*f.out = d
	}
	if raw.PasswordMinLength > 0 {
		a.PasswordMinLength = raw.PasswordMinLength
	}
	return nil
}

// HTTPConfig holds transport-level settings.
type HTTPConfig struct {
	CORSOrigins   []string `yaml:"cors_origins"`
	RateBurst     int      `yaml:"rate_burst"`
	RatePerSecond int      `yaml:"rate_per_second"`
	MaxBodyBytes  int64    `yaml:"max_body_bytes"`
}

// LoggingConfig holds log settings.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// BootstrapConfig describes the initial superuser created at startup when
// no account with that email exists yet.
type BootstrapConfig struct {
	SuperuserEmail    string `yaml:"superuser_email"`
	SuperuserPassword string `yaml:"superuser_password"`
}

func defaults() *Config {
	return &Config{
		ListenAddr: ":8080",
		Auth: AuthConfig{
			Issuer:            "idgate",
			AccessTokenTTL:    8 * 24 * time.Hour,
			RefreshTokenTTL:   30 * 24 * time.Hour,
			ResetTokenTTL:     24 * time.Hour,
			PasswordMinLength: 8,
		},
		HTTP: HTTPConfig{
			RateBurst:     20,
			RatePerSecond: 10,
			MaxBodyBytes:  1 << 20,
		},
		Logging: LoggingConfig{Level: "info"},
	}
}

// Load builds the configuration from defaults, an optional YAML file, and
// IDGATE_* environment overrides, then validates it. An empty path skips
// the file step.
func Load(path string) (*Config, error) {
	cfg := defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("IDGATE_LISTEN_ADDR"); v != "" {
		cfg.ListenAddr = v
	}
	if v := os.Getenv("IDGATE_PG_DSN"); v != "" {
		cfg.DatabaseDSN = v
	}
	if v := os.Getenv("IDGATE_AUTH_SECRET"); v != "" {
		cfg.Auth.Secret = v
	}
	if v := os.Getenv("IDGATE_AUTH_ISSUER"); v != "" {
		cfg.Auth.Issuer = v
	}
	if d, ok := envDuration("IDGATE_ACCESS_TOKEN_TTL"); ok {
		cfg.Auth.AccessTokenTTL = d
	}
	if d, ok := envDuration("IDGATE_REFRESH_TOKEN_TTL"); ok {
		cfg.Auth.RefreshTokenTTL = d
	}
	if d, ok := envDuration("IDGATE_RESET_TOKEN_TTL"); ok {
		cfg.Auth.ResetTokenTTL = d
	}
	if n, ok := envInt("IDGATE_PASSWORD_MIN_LENGTH"); ok {
		cfg.Auth.PasswordMinLength = n
	}
	if v := os.Getenv("IDGATE_CORS_ORIGINS"); v != "" {
		var origins []string
		for _, o := range strings.Split(v, ",") {
			if o = strings.TrimSpace(o); o != "" {
				origins = append(origins, o)
			}
		}
		cfg.HTTP.CORSOrigins = origins
	}
	if n, ok := envInt("IDGATE_RATE_BURST"); ok {
		cfg.HTTP.RateBurst = n
	}
	if n, ok := envInt("IDGATE_RATE_PER_SECOND"); ok {
		cfg.HTTP.RatePerSecond = n
	}
	if v := os.Getenv("IDGATE_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("IDGATE_FIRST_SUPERUSER"); v != "" {
		cfg.Bootstrap.SuperuserEmail = v
	}
	if v := os.Getenv("IDGATE_FIRST_SUPERUSER_PASSWORD"); v != "" {
		cfg.Bootstrap.SuperuserPassword = v
	}
}

func envDuration(name string) (time.Duration, bool) {
	v := os.Getenv(name)
	if v == "" {
		return 0, false
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return 0, false
	}
	return d, true
}

func envInt(name string) (int, bool) {
	v := os.Getenv(name)
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

// Validate checks invariants that cannot be defaulted away.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Auth.Secret) == "" {
		return errors.New("auth secret is required (IDGATE_AUTH_SECRET)")
	}
	if c.Auth.AccessTokenTTL <= 0 || c.Auth.RefreshTokenTTL <= 0 {
		return errors.New("token TTLs must be positive")
	}
	if c.Auth.PasswordMinLength < 1 {
		return errors.New("password_min_length must be at least 1")
	}
	return nil
}
