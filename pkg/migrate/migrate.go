// Package migrate applies versioned SQL schema migrations.
package migrate

import (
	"database/sql"
	"fmt"
	"sort"

	"github.com/chrissnell/pvforecast/internal/log"
)

// Migration represents a single schema migration
type Migration struct {
	Version int
	Name    string
	Up      string
	Down    string
}

// DB represents either a database connection or transaction
type DB interface {
	Exec(query string, args ...interface{}) (sql.Result, error)
	QueryRow(query string, args ...interface{}) *sql.Row
}

// Provider defines how migrations are loaded and how the applied version is tracked
type Provider interface {
	Migrations() ([]Migration, error)
	CurrentVersion(db *sql.DB) (int, error)
	SetVersion(db DB, version int) error
	CreateMigrationTable(db *sql.DB) error
}

// Migrator handles the execution of migrations
type Migrator struct {
	db       *sql.DB
	provider Provider
}

// NewMigrator creates a new migrator instance
func NewMigrator(db *sql.DB, provider Provider) *Migrator {
	return &Migrator{
		db:       db,
		provider: provider,
	}
}

// Up runs all pending migrations
func (m *Migrator) Up() error {
	return m.To(-1) // -1 means latest
}

// Down reverts migrations until targetVersion is the current version
func (m *Migrator) Down(targetVersion int) error {
	currentVersion, err := m.Version()
	if err != nil {
		return err
	}

	if targetVersion >= currentVersion {
		return fmt.Errorf("target version %d must be less than current version %d", targetVersion, currentVersion)
	}

	migrations, err := m.sorted()
	if err != nil {
		return err
	}

	for i := len(migrations) - 1; i >= 0; i-- {
		mg := migrations[i]
		if mg.Version > targetVersion && mg.Version <= currentVersion {
			if err := m.execute(mg, false); err != nil {
				return fmt.Errorf("failed to roll back migration %d: %w", mg.Version, err)
			}
		}
	}

	return nil
}

// To migrates up or down to reach targetVersion
func (m *Migrator) To(targetVersion int) error {
	currentVersion, err := m.Version()
	if err != nil {
		return err
	}

	migrations, err := m.sorted()
	if err != nil {
		return err
	}

	if targetVersion == -1 && len(migrations) > 0 {
		targetVersion = migrations[len(migrations)-1].Version
	}

	if targetVersion < currentVersion {
		return m.Down(targetVersion)
	}

	for _, mg := range migrations {
		if mg.Version > currentVersion && mg.Version <= targetVersion {
			if err := m.execute(mg, true); err != nil {
				return fmt.Errorf("failed to apply migration %d: %w", mg.Version, err)
			}
		}
	}

	return nil
}

// Version returns the current schema version, creating the tracking table if needed
func (m *Migrator) Version() (int, error) {
	if err := m.provider.CreateMigrationTable(m.db); err != nil {
		return 0, fmt.Errorf("failed to create migration table: %w", err)
	}
	v, err := m.provider.CurrentVersion(m.db)
	if err != nil {
		return 0, fmt.Errorf("failed to get current version: %w", err)
	}
	return v, nil
}

// Pending returns migrations that haven't been applied yet
func (m *Migrator) Pending() ([]Migration, error) {
	currentVersion, err := m.Version()
	if err != nil {
		return nil, err
	}

	migrations, err := m.sorted()
	if err != nil {
		return nil, err
	}

	var pending []Migration
	for _, mg := range migrations {
		if mg.Version > currentVersion {
			pending = append(pending, mg)
		}
	}
	return pending, nil
}

func (m *Migrator) sorted() ([]Migration, error) {
	migrations, err := m.provider.Migrations()
	if err != nil {
		return nil, fmt.Errorf("failed to get migrations: %w", err)
	}
	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].Version < migrations[j].Version
	})
	return migrations, nil
}

// execute runs a single migration up or down inside a transaction
func (m *Migrator) execute(mg Migration, up bool) error {
	query, direction, newVersion := mg.Up, "up", mg.Version
	if !up {
		query, direction, newVersion = mg.Down, "down", mg.Version-1
	}

	if query == "" {
		return fmt.Errorf("migration %d has no %s SQL", mg.Version, direction)
	}

	tx, err := m.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(query); err != nil {
		return fmt.Errorf("failed to execute migration SQL: %w", err)
	}

	if err := m.provider.SetVersion(tx, newVersion); err != nil {
		return fmt.Errorf("failed to update migration version: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit migration transaction: %w", err)
	}

	log.Infow("applied migration", "version", mg.Version, "name", mg.Name, "direction", direction)
	return nil
}
