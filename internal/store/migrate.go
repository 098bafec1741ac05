// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 LeafGuard Contributors

package store

import (
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	// Register pgx/v5 database driver for golang-migrate.
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/samber/oops"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// migrateIface is the subset of *migrate.Migrate used by Migrator.
type migrateIface interface {
	Up() error
	Down() error
	Version() (version uint, dirty bool, err error)
	Force(version int) error
	Close() (source error, database error)
}

// Migrator applies the embedded schema migrations.
type Migrator struct {
	m migrateIface
}

// Status describes the schema state of a database.
type Status struct {
	Version uint
	Name    string
	Dirty   bool
	Pending []uint
}

// migrateURL rewrites postgres:// and postgresql:// to the pgx5:// scheme the
// golang-migrate pgx/v5 driver registers under.
func migrateURL(databaseURL string) string {
	for _, scheme := range []string{"postgres://", "postgresql://"} {
		if rest, ok := strings.CutPrefix(databaseURL, scheme); ok {
			return "pgx5://" + rest
		}
	}
	return databaseURL
}

// NewMigrator opens a migrator for databaseURL.
func NewMigrator(databaseURL string) (*Migrator, error) {
	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return nil, oops.Code("MIGRATION_SOURCE_FAILED").With("operation", "open embedded migrations").Wrap(err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", source, migrateURL(databaseURL))
	if err != nil {
		_ = source.Close() //nolint:errcheck // init error takes precedence
		return nil, oops.Code("MIGRATION_INIT_FAILED").With("operation", "initialize migrator").Wrap(err)
	}
	return &Migrator{m: m}, nil
}

// Up applies every pending migration. Already being current is not an error.
func (m *Migrator) Up() error {
	if err := m.m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return oops.Code("MIGRATION_UP_FAILED").Wrap(err)
	}
	return nil
}

// Down rolls back every migration, dropping the users table.
func (m *Migrator) Down() error {
	if err := m.m.Down(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return oops.Code("MIGRATION_DOWN_FAILED").Wrap(err)
	}
	return nil
}

// Version returns the applied version and dirty flag. An empty database is version 0.
func (m *Migrator) Version() (uint, bool, error) {
	version, dirty, err := m.m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, oops.Code("MIGRATION_VERSION_FAILED").Wrap(err)
	}
	return version, dirty, nil
}

// Force records version as applied without running anything. It is the
// recovery path after a migration failed halfway.
func (m *Migrator) Force(version int) error {
	if version < 0 {
		return oops.Code("INVALID_VERSION").Errorf("version must be non-negative, got %d", version)
	}
	if err := m.m.Force(version); err != nil {
		return oops.Code("MIGRATION_FORCE_FAILED").With("version", version).Wrap(err)
	}
	return nil
}

// Status reports the current version, its name and the versions Up would apply.
func (m *Migrator) Status() (Status, error) {
	version, dirty, err := m.Version()
	if err != nil {
		return Status{}, err
	}
	name, err := MigrationName(version)
	if err != nil {
		return Status{}, err
	}
	all, err := migrationVersions()
	if err != nil {
		return Status{}, err
	}

	st := Status{Version: version, Name: name, Dirty: dirty}
	for _, v := range all {
		if v > version {
			st.Pending = append(st.Pending, v)
		}
	}
	return st, nil
}

// Close releases the source and database handles.
func (m *Migrator) Close() error {
	srcErr, dbErr := m.m.Close()
	switch {
	case srcErr != nil && dbErr != nil:
		return oops.Code("MIGRATION_CLOSE_FAILED").
			With("component", "both").
			Errorf("source: %v; database: %v", srcErr, dbErr)
	case srcErr != nil:
		return oops.Code("MIGRATION_CLOSE_FAILED").With("component", "source").Wrap(srcErr)
	case dbErr != nil:
		return oops.Code("MIGRATION_CLOSE_FAILED").With("component", "database").Wrap(dbErr)
	}
	return nil
}

// migrationVersions lists the embedded up-migration versions in ascending order.
// Files not named NNNNNN_name.up.sql are skipped with a warning.
func migrationVersions() ([]uint, error) {
	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return nil, oops.Code("MIGRATION_LIST_FAILED").Wrap(err)
	}

	var versions []uint
	for _, entry := range entries {
		name := entry.Name()
		if !strings.HasSuffix(name, ".up.sql") {
			continue
		}
		var version uint
		if _, err := fmt.Sscanf(name, "%06d", &version); err != nil {
			slog.Warn("skipping migration with unexpected name", "filename", name, "error", err)
			continue
		}
		versions = append(versions, version)
	}
	sort.Slice(versions, func(i, j int) bool { return versions[i] < versions[j] })
	return versions, nil
}

// MigrationName returns "NNNNNN_name" for version, or "" if no such migration exists.
func MigrationName(version uint) (string, error) {
	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return "", oops.Code("MIGRATION_READ_FAILED").Wrap(err)
	}
	prefix := fmt.Sprintf("%06d_", version)
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasPrefix(name, prefix) && strings.HasSuffix(name, ".up.sql") {
			return strings.TrimSuffix(name, ".up.sql"), nil
		}
	}
	return "", nil
}
