// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 LeafGuard Contributors

// Package config loads server configuration from defaults, an optional YAML
// file, command-line flags and environment variables, in that order.
package config

import (
	"strings"
	"time"

	"github.com/samber/oops"

	"github.com/leafguard/leafguard/internal/auth"
)

// Environment names recognised in app.env.
const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
	EnvTest        = "test"
)

// Config is the complete server configuration.
type Config struct {
	App      AppConfig      `koanf:"app" json:"app"`
	HTTP     HTTPConfig     `koanf:"http" json:"http"`
	Metrics  MetricsConfig  `koanf:"metrics" json:"metrics"`
	Database DatabaseConfig `koanf:"database" json:"database"`
	Auth     AuthConfig     `koanf:"auth" json:"auth"`
	SMTP     SMTPConfig     `koanf:"smtp" json:"smtp"`
	Log      LogConfig      `koanf:"log" json:"log"`
}

// AppConfig holds process-wide settings.
type AppConfig struct {
	Env string `koanf:"env" json:"env" env:"APP_ENV" jsonschema:"enum=development,enum=production,enum=test"`
}

// HTTPConfig configures the API listener.
type HTTPConfig struct {
	Addr            string        `koanf:"addr" json:"addr" env:"HTTP_ADDR"`
	BasePath        string        `koanf:"base_path" json:"base_path" env:"HTTP_BASE_PATH"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout" json:"shutdown_timeout"`
}

// MetricsConfig configures the observability listener. An empty Addr
// disables it.
type MetricsConfig struct {
	Addr string `koanf:"addr" json:"addr" env:"METRICS_ADDR"`
}

// DatabaseConfig configures the PostgreSQL pool.
type DatabaseConfig struct {
	URL             string `koanf:"url" json:"url" env:"DATABASE_URL"`
	MaxConns        int32  `koanf:"max_conns" json:"max_conns" env:"DATABASE_MAX_CONNS" jsonschema:"minimum=0"`
	ConnectAttempts uint64 `koanf:"connect_attempts" json:"connect_attempts" jsonschema:"minimum=1"`
	// AutoMigrate applies pending migrations when serve starts.
	AutoMigrate bool `koanf:"auto_migrate" json:"auto_migrate" env:"DATABASE_AUTO_MIGRATE"`
}

// AuthConfig configures tokens, reset codes and password hashing.
type AuthConfig struct {
	JWTSecret    string        `koanf:"jwt_secret" json:"jwt_secret" env:"JWT_SECRET"`
	TokenTTL     time.Duration `koanf:"token_ttl" json:"token_ttl" env:"JWT_TTL"`
	ResetCodeTTL time.Duration `koanf:"reset_code_ttl" json:"reset_code_ttl" env:"RESET_CODE_TTL"`
	Argon2       Argon2Config  `koanf:"argon2" json:"argon2"`
}

// Argon2Config holds argon2id cost parameters.
type Argon2Config struct {
	Time      uint32 `koanf:"time" json:"time" jsonschema:"minimum=1,maximum=10"`
	MemoryKiB uint32 `koanf:"memory_kib" json:"memory_kib" jsonschema:"minimum=8192,maximum=1048576"`
	Threads   uint8  `koanf:"threads" json:"threads" jsonschema:"minimum=1,maximum=64"`
}

// SMTPConfig configures reset code delivery. An empty Host falls back to a
// mailer that only logs the recipient, which production refuses.
type SMTPConfig struct {
	Host     string `koanf:"host" json:"host" env:"SMTP_HOST"`
	Port     int    `koanf:"port" json:"port" env:"SMTP_PORT" jsonschema:"minimum=0,maximum=65535"`
	Username string `koanf:"username" json:"username" env:"SMTP_USER"`
	Password string `koanf:"password" json:"password" env:"SMTP_PASS"`
	From     string `koanf:"from" json:"from" env:"SMTP_FROM"`
}

// LogConfig configures structured logging.
type LogConfig struct {
	Level  string `koanf:"level" json:"level" env:"LOG_LEVEL" jsonschema:"enum=debug,enum=info,enum=warn,enum=error"`
	Format string `koanf:"format" json:"format" env:"LOG_FORMAT" jsonschema:"enum=json,enum=text"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		App: AppConfig{Env: EnvDevelopment},
		HTTP: HTTPConfig{
			Addr:            ":3000",
			BasePath:        "/api",
			ShutdownTimeout: 15 * time.Second,
		},
		Metrics: MetricsConfig{Addr: "127.0.0.1:9100"},
		Database: DatabaseConfig{
			MaxConns:        10,
			ConnectAttempts: 5,
			AutoMigrate:     true,
		},
		Auth: AuthConfig{
			TokenTTL:     7 * 24 * time.Hour,
			ResetCodeTTL: 15 * time.Minute,
			Argon2: Argon2Config{
				Time:      1,
				MemoryKiB: 64 * 1024,
				Threads:   4,
			},
		},
		SMTP: SMTPConfig{Port: 587},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// IsProduction reports whether app.env is production.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.App.Env, EnvProduction)
}

// ValidateDatabase checks the settings needed to reach the database.
func (c *Config) ValidateDatabase() error {
	if c.Database.URL == "" {
		return oops.Code("CONFIG_INVALID").With("field", "database.url").
			Errorf("database url is required (set DATABASE_URL)")
	}
	if c.Database.MaxConns < 0 {
		return oops.Code("CONFIG_INVALID").With("field", "database.max_conns").
			Errorf("database max_conns must not be negative")
	}
	return nil
}

// Validate checks everything the server needs to start.
func (c *Config) Validate() error {
	if err := c.ValidateDatabase(); err != nil {
		return err
	}

	invalid := func(field, format string, args ...any) error {
		return oops.Code("CONFIG_INVALID").With("field", field).Errorf(format, args...)
	}

	switch strings.ToLower(c.App.Env) {
	case EnvDevelopment, EnvProduction, EnvTest:
	default:
		return invalid("app.env", "app env must be development, production or test, got %q", c.App.Env)
	}
	if c.HTTP.Addr == "" {
		return invalid("http.addr", "http addr is required")
	}
	if c.HTTP.BasePath != "" && !strings.HasPrefix(c.HTTP.BasePath, "/") {
		return invalid("http.base_path", "http base_path must start with '/', got %q", c.HTTP.BasePath)
	}
	if c.Auth.JWTSecret == "" {
		return invalid("auth.jwt_secret", "jwt secret is required (set JWT_SECRET)")
	}
	if c.Auth.TokenTTL <= 0 {
		return invalid("auth.token_ttl", "token ttl must be positive")
	}
	if c.Auth.ResetCodeTTL <= 0 {
		return invalid("auth.reset_code_ttl", "reset code ttl must be positive")
	}
	if c.Auth.Argon2.Time < 1 || c.Auth.Argon2.Threads < 1 {
		return invalid("auth.argon2", "argon2 time and threads must be at least 1")
	}
	if c.Auth.Argon2.MemoryKiB < 8*1024 || c.Auth.Argon2.MemoryKiB > auth.MaxHashMemory {
		return invalid("auth.argon2.memory_kib", "argon2 memory must be between 8192 and %d KiB", auth.MaxHashMemory)
	}
	if c.Auth.Argon2.Time > auth.MaxHashTime || c.Auth.Argon2.Threads > auth.MaxHashThreads {
		return invalid("auth.argon2", "argon2 time must be at most %d and threads at most %d",
			auth.MaxHashTime, auth.MaxHashThreads)
	}
	if c.IsProduction() && c.SMTP.Host == "" {
		return invalid("smtp.host", "smtp host is required in production (set SMTP_HOST)")
	}
	if c.SMTP.Host != "" && (c.SMTP.Port <= 0 || c.SMTP.Port > 65535) {
		return invalid("smtp.port", "smtp port must be between 1 and 65535, got %d", c.SMTP.Port)
	}
	if c.Log.Format != "json" && c.Log.Format != "text" {
		return invalid("log.format", "log format must be 'json' or 'text', got %q", c.Log.Format)
	}
	return nil
}
