// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 LeafGuard Contributors

package main

import (
	"strconv"
	"strings"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/leafguard/leafguard/internal/config"
	"github.com/leafguard/leafguard/internal/store"
)

// MigrateDeps contains injectable dependencies for the migrate command.
type MigrateDeps struct {
	// ConfigLoader builds the configuration.
	// Default: config.Load
	ConfigLoader func(opts config.LoadOptions) (*config.Config, error)

	// MigratorFactory opens a migrator.
	// Default: store.NewMigrator
	MigratorFactory func(databaseURL string) (Migrator, error)
}

func (d *MigrateDeps) withDefaults() {
	if d.ConfigLoader == nil {
		d.ConfigLoader = config.Load
	}
	if d.MigratorFactory == nil {
		d.MigratorFactory = func(databaseURL string) (Migrator, error) {
			return store.NewMigrator(databaseURL)
		}
	}
}

// NewMigrateCmd creates the migrate command and its subcommands. Running
// "migrate" alone applies pending migrations.
func NewMigrateCmd(root *rootOptions, deps *MigrateDeps) *cobra.Command {
	if deps == nil {
		deps = &MigrateDeps{}
	}
	deps.withDefaults()

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage database migrations",
		Long:  `Apply, roll back, inspect or force the PostgreSQL schema version.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runMigrateUp(cmd, root, deps)
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runMigrateUp(cmd, root, deps)
		},
	})

	down := &cobra.Command{
		Use:   "down",
		Short: "Roll back all migrations (drops every table)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runMigrateDown(cmd, root, deps)
		},
	}
	down.Flags().Bool("yes", false, "confirm dropping all data")
	cmd.AddCommand(down)

	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Show the applied schema version and pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runMigrateVersion(cmd, root, deps)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "force VERSION",
		Short: "Mark VERSION as applied without running migrations",
		Long: `Force sets the recorded schema version and clears the dirty flag.
Use it to recover after a migration failed partway through.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrateForce(cmd, root, deps, args[0])
		},
	})

	return cmd
}

func getDatabaseURL(cmd *cobra.Command, root *rootOptions, load func(config.LoadOptions) (*config.Config, error)) (string, error) {
	cfg, err := loadConfig(cmd, root, load)
	if err != nil {
		return "", err
	}
	if err := cfg.ValidateDatabase(); err != nil {
		return "", err
	}
	return cfg.Database.URL, nil
}

// withMigrator opens a migrator, runs fn and closes it.
func withMigrator(cmd *cobra.Command, root *rootOptions, deps *MigrateDeps, fn func(Migrator) error) (err error) {
	databaseURL, err := getDatabaseURL(cmd, root, deps.ConfigLoader)
	if err != nil {
		return err
	}
	migrator, err := deps.MigratorFactory(databaseURL)
	if err != nil {
		return oops.Code("MIGRATION_INIT_FAILED").With("operation", "create migrator").Wrap(err)
	}
	defer func() {
		if closeErr := migrator.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()
	return fn(migrator)
}

func runMigrateUp(cmd *cobra.Command, root *rootOptions, deps *MigrateDeps) error {
	return withMigrator(cmd, root, deps, func(m Migrator) error {
		cmd.Println("Running migrations...")
		if err := m.Up(); err != nil {
			return oops.Code("MIGRATION_FAILED").With("operation", "run migrations").Wrap(err)
		}
		cmd.Println("Migrations completed successfully")
		return nil
	})
}

func runMigrateDown(cmd *cobra.Command, root *rootOptions, deps *MigrateDeps) error {
	confirmed, err := cmd.Flags().GetBool("yes")
	if err != nil {
		return oops.Wrap(err)
	}
	if !confirmed {
		return oops.Code("CONFIRMATION_REQUIRED").Errorf("refusing to drop all tables without --yes")
	}
	return withMigrator(cmd, root, deps, func(m Migrator) error {
		cmd.Println("Rolling back migrations...")
		if err := m.Down(); err != nil {
			return oops.Code("MIGRATION_FAILED").With("operation", "roll back migrations").Wrap(err)
		}
		cmd.Println("Rollback completed successfully")
		return nil
	})
}

func runMigrateVersion(cmd *cobra.Command, root *rootOptions, deps *MigrateDeps) error {
	return withMigrator(cmd, root, deps, func(m Migrator) error {
		st, err := m.Status()
		if err != nil {
			return oops.Code("MIGRATION_FAILED").With("operation", "read version").Wrap(err)
		}
		if st.Version == 0 {
			cmd.Println("Version: none (no migrations applied)")
		} else {
			cmd.Printf("Version: %d (%s)\n", st.Version, st.Name)
		}
		if st.Dirty {
			cmd.Println("State: DIRTY (a migration failed; fix the schema, then run 'migrate force')")
		}
		if len(st.Pending) == 0 {
			cmd.Println("Pending: none")
			return nil
		}
		pending := make([]string, len(st.Pending))
		for i, v := range st.Pending {
			pending[i] = strconv.FormatUint(uint64(v), 10)
		}
		cmd.Printf("Pending: %s\n", strings.Join(pending, ", "))
		return nil
	})
}

func runMigrateForce(cmd *cobra.Command, root *rootOptions, deps *MigrateDeps, arg string) error {
	version, err := parseForceVersion(arg)
	if err != nil {
		return err
	}
	return withMigrator(cmd, root, deps, func(m Migrator) error {
		if err := m.Force(version); err != nil {
			return oops.Code("MIGRATION_FAILED").With("operation", "force version").Wrap(err)
		}
		cmd.Printf("Forced schema version to %d\n", version)
		return nil
	})
}

// parseForceVersion parses the VERSION argument of "migrate force".
func parseForceVersion(s string) (int, error) {
	trimmed := strings.TrimSpace(s)
	version, err := strconv.Atoi(trimmed)
	if err != nil {
		return 0, oops.Code("INVALID_VERSION").With("input", s).Errorf("version must be an integer")
	}
	if version < 0 {
		return 0, oops.Code("INVALID_VERSION").With("input", s).Errorf("version must not be negative")
	}
	return version, nil
}
