package database

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"
)

//go:embed migrations
var migrationFiles embed.FS

// Migration represents a database migration
type Migration struct {
	Version int
	Name    string
	SQL     string
}

// MigrationManager manages database migrations
type MigrationManager struct {
	db     *DB
	source fs.FS
	log    logrus.FieldLogger
}

// NewMigrationManager reads migrations for the database's driver from the embedded set.
func NewMigrationManager(db *DB, log logrus.FieldLogger) (*MigrationManager, error) {
	source, err := fs.Sub(migrationFiles, path.Join("migrations", db.Driver))
	if err != nil {
		return nil, fmt.Errorf("no migrations for driver %s: %w", db.Driver, err)
	}
	return &MigrationManager{db: db, source: source, log: log}, nil
}

// InitMigrationsTable creates the migrations tracking table
func (m *MigrationManager) InitMigrationsTable(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS migrations (
			version INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)
	`
	if _, err := m.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}
	return nil
}

// AppliedMigrations returns the set of applied migration versions
func (m *MigrationManager) AppliedMigrations(ctx context.Context) (map[int]bool, error) {
	rows, err := m.db.QueryContext(ctx, "SELECT version FROM migrations ORDER BY version")
	if err != nil {
		return nil, fmt.Errorf("failed to query migrations: %w", err)
	}
	defer rows.Close()

	applied := make(map[int]bool)
	for rows.Next() {
		var version int
		if err := rows.Scan(&version); err != nil {
			return nil, fmt.Errorf("failed to scan migration version: %w", err)
		}
		applied[version] = true
	}
	return applied, rows.Err()
}

// LoadMigrations loads the .sql files ordered by their numeric prefix
func (m *MigrationManager) LoadMigrations() ([]Migration, error) {
	entries, err := fs.ReadDir(m.source, ".")
	if err != nil {
		return nil, fmt.Errorf("failed to read migrations: %w", err)
	}

	var migrations []Migration
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}

		// e.g. "001_init.sql"
		var version int
		if _, err := fmt.Sscanf(entry.Name(), "%d_", &version); err != nil {
			m.log.WithField("file", entry.Name()).Warn("skipping migration file with invalid name")
			continue
		}

		content, err := fs.ReadFile(m.source, entry.Name())
		if err != nil {
			return nil, fmt.Errorf("failed to read migration file %s: %w", entry.Name(), err)
		}

		migrations = append(migrations, Migration{
			Version: version,
			Name:    strings.TrimSuffix(entry.Name(), ".sql"),
			SQL:     string(content),
		})
	}

	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].Version < migrations[j].Version
	})
	return migrations, nil
}

// ApplyMigration applies a single migration and records it
func (m *MigrationManager) ApplyMigration(ctx context.Context, migration Migration) error {
	err := m.db.Transaction(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, migration.SQL); err != nil {
			return fmt.Errorf("failed to execute migration %d: %w", migration.Version, err)
		}
		record := m.db.Rebind("INSERT INTO migrations (version, name) VALUES (?, ?)")
		if _, err := tx.ExecContext(ctx, record, migration.Version, migration.Name); err != nil {
			return fmt.Errorf("failed to record migration %d: %w", migration.Version, err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	m.log.WithFields(logrus.Fields{"version": migration.Version, "name": migration.Name}).Info("applied migration")
	return nil
}

// RunMigrations runs all pending migrations
func (m *MigrationManager) RunMigrations(ctx context.Context) error {
	if err := m.InitMigrationsTable(ctx); err != nil {
		return err
	}

	applied, err := m.AppliedMigrations(ctx)
	if err != nil {
		return err
	}

	migrations, err := m.LoadMigrations()
	if err != nil {
		return err
	}

	for _, migration := range migrations {
		if applied[migration.Version] {
			m.log.WithField("version", migration.Version).Debug("skipping already applied migration")
			continue
		}
		if err := m.ApplyMigration(ctx, migration); err != nil {
			return err
		}
	}
	return nil
}

// Migrate brings the schema of db up to date.
func Migrate(ctx context.Context, db *DB, log logrus.FieldLogger) error {
	m, err := NewMigrationManager(db, log)
	if err != nil {
		return err
	}
	return m.RunMigrations(ctx)
}
