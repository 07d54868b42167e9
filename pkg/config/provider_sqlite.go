package config

import (
	"database/sql"
	"embed"
	"fmt"

	"github.com/chrissnell/pvforecast/pkg/migrate"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrations embed.FS

// configMigrationTable keeps the config schema version apart from the result
// store's, so both may share one database file.
const configMigrationTable = "config_schema_migrations"

// SQLiteProvider implements ConfigProvider for SQLite database configuration.
// Settings are stored as (section, key, value) rows; absent rows keep their
// Default values.
type SQLiteProvider struct {
	db     *sql.DB
	dbPath string
}

var _ ConfigProvider = (*SQLiteProvider)(nil)

// NewSQLiteProvider opens the database at dbPath and creates the settings table
// if needed.
func NewSQLiteProvider(dbPath string) (*SQLiteProvider, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}
	db.SetMaxOpenConns(1)

	// Test the connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping SQLite database: %w", err)
	}

	m := migrate.NewMigrator(db, migrate.NewFSProvider(migrations, "migrations", configMigrationTable, migrate.SQLite))
	if err := m.Up(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate configuration database: %w", err)
	}

	return &SQLiteProvider{
		db:     db,
		dbPath: dbPath,
	}, nil
}

// LoadConfig loads the complete configuration from SQLite database
func (s *SQLiteProvider) LoadConfig() (*ConfigData, error) {
	rows, err := s.db.Query(`SELECT section, key, value FROM settings ORDER BY section, key`)
	if err != nil {
		return nil, fmt.Errorf("failed to query settings: %w", err)
	}
	defer rows.Close()

	config := Default()
	for rows.Next() {
		var section, key, value string
		if err := rows.Scan(&section, &key, &value); err != nil {
			return nil, fmt.Errorf("failed to scan setting row: %w", err)
		}
		st, ok := lookupSetting(section, key)
		if !ok {
			return nil, fmt.Errorf("unknown setting %s.%s", section, key)
		}
		if err := st.set(config, value); err != nil {
			return nil, fmt.Errorf("invalid value %q for %s.%s: %w", value, section, key, err)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return config, nil
}

// SaveConfig replaces every stored setting with the values of config.
func (s *SQLiteProvider) SaveConfig(config *ConfigData) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO settings (section, key, value, updated_at)
		VALUES (?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT (section, key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`)
	if err != nil {
		return fmt.Errorf("failed to prepare setting upsert: %w", err)
	}
	defer stmt.Close()

	for _, st := range settings {
		if _, err := stmt.Exec(st.section, st.key, st.get(config)); err != nil {
			return fmt.Errorf("failed to store %s.%s: %w", st.section, st.key, err)
		}
	}
	return tx.Commit()
}

// IsReadOnly returns false since SQLite supports writes
func (s *SQLiteProvider) IsReadOnly() bool {
	return false
}

// Close closes the database connection
func (s *SQLiteProvider) Close() error {
	return s.db.Close()
}
