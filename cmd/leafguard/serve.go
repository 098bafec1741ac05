// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 LeafGuard Contributors

package main

import (
	"context"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"

	"github.com/leafguard/leafguard/internal/auth"
	"github.com/leafguard/leafguard/internal/auth/postgres"
	"github.com/leafguard/leafguard/internal/config"
	"github.com/leafguard/leafguard/internal/observability"
	"github.com/leafguard/leafguard/internal/store"
	"github.com/leafguard/leafguard/internal/web"
)

const serviceName = "leafguard"

// NewServeCmd creates the serve subcommand. A nil deps uses the defaults.
func NewServeCmd(root *rootOptions, deps *ServeDeps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the credential API server",
		Long: `Start the HTTP API that handles registration, login and password
recovery, plus the metrics and health endpoints.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServeWithDeps(ctx, cmd, root, deps)
		},
	}
	config.RegisterFlags(cmd.Flags())
	return cmd
}

func defaultServeDeps(deps *ServeDeps) *ServeDeps {
	if deps == nil {
		deps = &ServeDeps{}
	}
	deps.withDefaults()
	if deps.MigratorFactory == nil {
		deps.MigratorFactory = func(databaseURL string) (AutoMigrator, error) {
			return store.NewMigrator(databaseURL)
		}
	}
	if deps.MailerFactory == nil {
		deps.MailerFactory = newMailer
	}
	if deps.HTTPServerFactory == nil {
		deps.HTTPServerFactory = func(addr string, flow web.Flow, gate web.Authenticator, opts web.Options) (HTTPServer, error) {
			return web.NewServer(addr, flow, gate, opts)
		}
	}
	if deps.ObservabilityServerFactory == nil {
		deps.ObservabilityServerFactory = func(addr string, readiness observability.ReadinessChecker, logger *slog.Logger) ObservabilityServer {
			return observability.NewServer(addr, readiness, logger)
		}
	}
	return deps
}

// runServeWithDeps starts the API and blocks until ctx is cancelled or a
// server fails.
func runServeWithDeps(ctx context.Context, cmd *cobra.Command, root *rootOptions, deps *ServeDeps) error {
	deps = defaultServeDeps(deps)

	cfg, err := loadConfig(cmd, root, deps.ConfigLoader)
	if err != nil {
		return oops.With("operation", "load config").Wrap(err)
	}
	if err := cfg.Validate(); err != nil {
		return oops.With("operation", "validate config").Wrap(err)
	}

	logger := deps.SetupLogging(cfg.Log)
	logger.Info("starting leafguard",
		"version", version,
		"env", cfg.App.Env,
		"http_addr", cfg.HTTP.Addr,
		"base_path", cfg.HTTP.BasePath,
	)

	if cfg.Database.AutoMigrate {
		if err := autoMigrate(cfg.Database.URL, deps.MigratorFactory, logger); err != nil {
			return err
		}
	}

	pool, err := deps.PoolFactory(ctx, cfg.Database.URL, store.ConnectOptions{
		MaxConns: cfg.Database.MaxConns,
		Attempts: cfg.Database.ConnectAttempts,
		Logger:   logger,
	})
	if err != nil {
		return oops.Code("DB_CONNECT_FAILED").With("operation", "connect to database").Wrap(err)
	}
	defer pool.Close()
	logger.Info("connected to database")

	tokens, err := auth.NewTokenService(cfg.Auth.JWTSecret,
		auth.WithTokenTTL(cfg.Auth.TokenTTL),
		auth.WithTokenClock(deps.Clock),
	)
	if err != nil {
		return oops.With("operation", "create token service").Wrap(err)
	}
	gate, err := auth.NewGate(tokens)
	if err != nil {
		return oops.With("operation", "create gate").Wrap(err)
	}
	mailer, err := deps.MailerFactory(cfg.SMTP, logger)
	if err != nil {
		return oops.With("operation", "create mailer").Wrap(err)
	}

	hasher := auth.NewArgon2idHasher(auth.HashParams{
		Time:    cfg.Auth.Argon2.Time,
		Memory:  cfg.Auth.Argon2.MemoryKiB,
		Threads: cfg.Auth.Argon2.Threads,
	})
	serviceOpts := []auth.ServiceOption{
		auth.WithLogger(logger),
		auth.WithClock(deps.Clock),
		auth.WithTracer(otel.Tracer(serviceName)),
	}

	var obsServer ObservabilityServer
	if cfg.Metrics.Addr != "" {
		obsServer = deps.ObservabilityServerFactory(cfg.Metrics.Addr, pool.Ping, logger)
		serviceOpts = append(serviceOpts, auth.WithRecorder(obsServer.Metrics()))
	}

	flow, err := auth.NewService(
		postgres.NewUserRepository(pool),
		hasher,
		tokens,
		auth.NewResetCodeGenerator(cfg.Auth.ResetCodeTTL),
		mailer,
		serviceOpts...,
	)
	if err != nil {
		return oops.With("operation", "create auth service").Wrap(err)
	}

	httpServer, err := deps.HTTPServerFactory(cfg.HTTP.Addr, flow, gate, web.Options{
		BasePath:      cfg.HTTP.BasePath,
		ExposeDetails: !cfg.IsProduction(),
		Logger:        logger,
		Clock:         deps.Clock,
	})
	if err != nil {
		return oops.With("operation", "create http server").Wrap(err)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if obsServer != nil {
		obsErrCh, err := obsServer.Start()
		if err != nil {
			return oops.With("operation", "start observability server").Wrap(err)
		}
		go monitorServerErrors(ctx, cancel, obsErrCh, "observability", logger)
	}

	httpErrCh, err := httpServer.Start()
	if err != nil {
		stopServers(logger, cfg.HTTP.ShutdownTimeout, obsServer)
		return oops.With("operation", "start http server").Wrap(err)
	}
	go monitorServerErrors(ctx, cancel, httpErrCh, "http", logger)

	cmd.Println("LeafGuard server started")
	logger.Info("leafguard ready", "http_addr", httpServer.Addr())

	<-ctx.Done()
	logger.Info("shutting down")

	stopServers(logger, cfg.HTTP.ShutdownTimeout, httpServer, obsServer)
	logger.Info("shutdown complete")
	return nil
}

type stopper interface {
	Stop(ctx context.Context) error
}

// stopServers stops each non-nil server in order within timeout.
func stopServers(logger *slog.Logger, timeout time.Duration, servers ...stopper) {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	for _, srv := range servers {
		if srv == nil {
			continue
		}
		if err := srv.Stop(shutdownCtx); err != nil {
			logger.Warn("error stopping server", "error", err)
		}
	}
}

// monitorServerErrors cancels ctx when a server reports a failure.
func monitorServerErrors(ctx context.Context, cancel context.CancelFunc, errCh <-chan error, name string, logger *slog.Logger) {
	select {
	case err, ok := <-errCh:
		if ok && err != nil {
			logger.Error("server failed", "server", name, "error", err)
			cancel()
		}
	case <-ctx.Done():
	}
}

// autoMigrate brings the schema up to date before the pool opens.
func autoMigrate(databaseURL string, factory func(string) (AutoMigrator, error), logger *slog.Logger) error {
	migrator, err := factory(databaseURL)
	if err != nil {
		return oops.Code("MIGRATION_INIT_FAILED").With("operation", "create migrator").Wrap(err)
	}
	defer func() {
		if closeErr := migrator.Close(); closeErr != nil {
			logger.Warn("failed to close migrator", "error", closeErr)
		}
	}()

	if err := migrator.Up(); err != nil {
		return oops.Code("AUTO_MIGRATION_FAILED").With("operation", "auto-migrate").Wrap(err)
	}
	logger.Info("database schema up to date")
	return nil
}
