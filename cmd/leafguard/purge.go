// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 LeafGuard Contributors

package main

import (
	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/leafguard/leafguard/internal/auth/postgres"
	"github.com/leafguard/leafguard/internal/store"
)

// NewPurgeResetCodesCmd creates the purge-reset-codes subcommand.
func NewPurgeResetCodesCmd(root *rootOptions, deps *CommonDeps) *cobra.Command {
	if deps == nil {
		deps = &CommonDeps{}
	}
	deps.withDefaults()

	return &cobra.Command{
		Use:   "purge-reset-codes",
		Short: "Clear expired password reset codes",
		Long: `Clear the reset code and expiry of every user whose code has
expired. Unexpired codes are left alone. Safe to run from cron.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runPurgeResetCodes(cmd, root, deps)
		},
	}
}

func runPurgeResetCodes(cmd *cobra.Command, root *rootOptions, deps *CommonDeps) error {
	ctx := cmd.Context()

	cfg, err := loadConfig(cmd, root, deps.ConfigLoader)
	if err != nil {
		return oops.With("operation", "load config").Wrap(err)
	}
	if err := cfg.ValidateDatabase(); err != nil {
		return err
	}
	logger := deps.SetupLogging(cfg.Log)

	pool, err := deps.PoolFactory(ctx, cfg.Database.URL, store.ConnectOptions{Attempts: 1})
	if err != nil {
		return oops.Code("DB_CONNECT_FAILED").With("operation", "connect to database").Wrap(err)
	}
	defer pool.Close()

	now := deps.Clock()
	purged, err := postgres.NewUserRepository(pool).PurgeExpiredResetCodes(ctx, now)
	if err != nil {
		return oops.With("operation", "purge reset codes").Wrap(err)
	}

	logger.InfoContext(ctx, "expired reset codes purged", "count", purged, "cutoff", now)
	cmd.Printf("Purged %d expired reset code(s)\n", purged)
	return nil
}
