package db

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"strconv"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// MigrationStatus represents the status of a migration (applied or pending).
type MigrationStatus struct {
	Version uint
	Name    string
	Applied bool
}

// Migrator applies the embedded SQL migrations with golang-migrate.
type Migrator struct {
	databaseURL string
}

func NewMigrator(databaseURL string) *Migrator {
	return &Migrator{databaseURL: databaseURL}
}

func (m *Migrator) open() (*migrate.Migrate, error) {
	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("create migrations source: %w", err)
	}
	mg, err := migrate.NewWithSourceInstance("iofs", source, m.databaseURL)
	if err != nil {
		return nil, fmt.Errorf("create migrate instance: %w", err)
	}
	return mg, nil
}

// Up applies all pending migrations and returns the resulting version.
func (m *Migrator) Up() (uint, error) {
	mg, err := m.open()
	if err != nil {
		return 0, err
	}
	defer mg.Close()

	if err := mg.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return 0, fmt.Errorf("apply migrations: %w", err)
	}
	return currentVersion(mg)
}

// Down rolls back the given number of migrations.
func (m *Migrator) Down(steps int) (uint, error) {
	if steps <= 0 {
		return 0, fmt.Errorf("steps must be positive, got %d", steps)
	}
	mg, err := m.open()
	if err != nil {
		return 0, err
	}
	defer mg.Close()

	if err := mg.Steps(-steps); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return 0, fmt.Errorf("rollback migrations: %w", err)
	}
	return currentVersion(mg)
}

// Status reports every embedded migration and whether it has been applied.
func (m *Migrator) Status() ([]MigrationStatus, bool, error) {
	mg, err := m.open()
	if err != nil {
		return nil, false, err
	}
	defer mg.Close()

	version, dirty, err := mg.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return nil, false, fmt.Errorf("read migration version: %w", err)
	}

	all, err := embeddedMigrations()
	if err != nil {
		return nil, false, err
	}
	for i := range all {
		all[i].Applied = version > 0 && all[i].Version <= version
	}
	return all, dirty, nil
}

func currentVersion(mg *migrate.Migrate) (uint, error) {
	version, _, err := mg.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, nil
	}
	return version, err
}

// embeddedMigrations lists the up migrations shipped in the binary, ordered by version.
func embeddedMigrations() ([]MigrationStatus, error) {
	entries, err := fs.ReadDir(migrationsFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("read embedded migrations: %w", err)
	}

	var out []MigrationStatus
	for _, e := range entries {
		version, name, ok := parseMigrationName(e.Name())
		if !ok {
			continue
		}
		out = append(out, MigrationStatus{Version: version, Name: name})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	return out, nil
}

// parseMigrationName parses "000001_init.up.sql" into (1, "init").
func parseMigrationName(filename string) (uint, string, bool) {
	base, ok := strings.CutSuffix(filename, ".up.sql")
	if !ok {
		return 0, "", false
	}
	prefix, name, ok := strings.Cut(base, "_")
	if !ok {
		return 0, "", false
	}
	v, err := strconv.ParseUint(prefix, 10, 64)
	if err != nil {
		return 0, "", false
	}
	return uint(v), name, true
}
