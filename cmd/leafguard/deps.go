// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 LeafGuard Contributors

package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/leafguard/leafguard/internal/auth"
	"github.com/leafguard/leafguard/internal/config"
	"github.com/leafguard/leafguard/internal/logging"
	"github.com/leafguard/leafguard/internal/mail"
	"github.com/leafguard/leafguard/internal/observability"
	"github.com/leafguard/leafguard/internal/store"
	"github.com/leafguard/leafguard/internal/web"
)

// CommonDeps holds dependencies shared by every database-backed command.
// Nil fields use their default implementations.
type CommonDeps struct {
	// ConfigLoader builds the configuration.
	// Default: config.Load
	ConfigLoader func(opts config.LoadOptions) (*config.Config, error)

	// PoolFactory opens the database pool.
	// Default: store.Connect
	PoolFactory func(ctx context.Context, dsn string, opts store.ConnectOptions) (Pool, error)

	// Clock returns the current time.
	// Default: time.Now
	Clock func() time.Time

	// SetupLogging installs the process logger.
	// Default: setupLogging
	SetupLogging func(cfg config.LogConfig) *slog.Logger
}

func (d *CommonDeps) withDefaults() {
	if d.ConfigLoader == nil {
		d.ConfigLoader = config.Load
	}
	if d.PoolFactory == nil {
		d.PoolFactory = func(ctx context.Context, dsn string, opts store.ConnectOptions) (Pool, error) {
			return store.Connect(ctx, dsn, opts)
		}
	}
	if d.Clock == nil {
		d.Clock = time.Now
	}
	if d.SetupLogging == nil {
		d.SetupLogging = setupLogging
	}
}

// setupLogging installs the service's slog default on stderr.
func setupLogging(cfg config.LogConfig) *slog.Logger {
	return logging.SetDefault(logging.Options{
		Service: serviceName,
		Version: version,
		Format:  cfg.Format,
		Level:   cfg.Level,
		Writer:  os.Stderr,
	})
}

// ServeDeps contains injectable dependencies for the serve command.
type ServeDeps struct {
	CommonDeps

	// MigratorFactory opens a migrator for auto-migration.
	// Default: store.NewMigrator
	MigratorFactory func(databaseURL string) (AutoMigrator, error)

	// MailerFactory builds the reset code mailer.
	// Default: newMailer
	MailerFactory func(cfg config.SMTPConfig, logger *slog.Logger) (auth.ResetMailer, error)

	// HTTPServerFactory creates the API server.
	// Default: web.NewServer
	HTTPServerFactory func(addr string, flow web.Flow, gate web.Authenticator, opts web.Options) (HTTPServer, error)

	// ObservabilityServerFactory creates the metrics/health server.
	// Default: observability.NewServer
	ObservabilityServerFactory func(addr string, readiness observability.ReadinessChecker, logger *slog.Logger) ObservabilityServer
}

// Pool wraps the methods used from *pgxpool.Pool.
type Pool interface {
	store.DB
	Ping(ctx context.Context) error
	Close()
}

// AutoMigrator wraps the methods serve uses from store.Migrator.
type AutoMigrator interface {
	Up() error
	Close() error
}

// Migrator wraps the methods the migrate command uses from store.Migrator.
type Migrator interface {
	Up() error
	Down() error
	Force(version int) error
	Status() (store.Status, error)
	Close() error
}

// HTTPServer wraps the methods used from web.Server.
type HTTPServer interface {
	Start() (<-chan error, error)
	Stop(ctx context.Context) error
	Addr() string
}

// ObservabilityServer wraps the methods used from observability.Server.
type ObservabilityServer interface {
	Start() (<-chan error, error)
	Stop(ctx context.Context) error
	Addr() string
	Metrics() *observability.Metrics
}

// newMailer returns an SMTP mailer, or a logging stand-in when no SMTP host
// is configured.
func newMailer(cfg config.SMTPConfig, logger *slog.Logger) (auth.ResetMailer, error) {
	mc := mail.Config{
		Host:     cfg.Host,
		Port:     cfg.Port,
		Username: cfg.Username,
		Password: cfg.Password,
		From:     cfg.From,
	}
	if !mc.Enabled() {
		logger.Warn("smtp host not configured; reset emails will be dropped")
		return mail.NewLogMailer(logger), nil
	}
	return mail.NewSMTPMailer(mc)
}
