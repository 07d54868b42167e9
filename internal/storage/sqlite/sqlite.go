// Package sqlite stores forecast runs in a SQLite database file.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/chrissnell/pvforecast/internal/database"
	"github.com/chrissnell/pvforecast/internal/log"
	"github.com/chrissnell/pvforecast/internal/pipeline"
	"github.com/chrissnell/pvforecast/internal/storage"
	"github.com/chrissnell/pvforecast/pkg/migrate"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Timestamps are stored as fixed-width UTC text so they sort chronologically.
const timeFormat = "2006-01-02 15:04:05.000000000"

// Store implements storage.Store on SQLite.
type Store struct {
	db *sql.DB
}

var _ storage.Store = (*Store)(nil)

// New opens (creating if needed) the database at path and brings its schema up
// to date.  ":memory:" gives a private in-memory database.
func New(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}
	// SQLite allows one writer; a single connection also keeps ":memory:" databases alive.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping SQLite database: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	m := migrate.NewMigrator(db, migrate.NewFSProvider(migrations, "migrations", "", migrate.SQLite))
	if err := m.Up(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate SQLite database: %w", err)
	}

	log.Infow("opened SQLite result store", "path", path)
	return &Store{db: db}, nil
}

// SaveRun implements storage.Store.
func (s *Store) SaveRun(ctx context.Context, run *pipeline.Run) error {
	rec, hours, err := database.NewRecords(run)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO forecast_runs (id, created_at, duration_ns, row_count, missing_reference, clamped, panel)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.CreatedAt.UTC().Format(timeFormat), rec.DurationNS, rec.RowCount,
		rec.MissingReference, rec.Clamped, string(rec.Panel))
	if err != nil {
		return fmt.Errorf("failed to insert run %s: %w", rec.ID, err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO forecast_hours (run_id, seq, created_at, year, month, day, hour, wel, clamped, result)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare row insert: %w", err)
	}
	defer stmt.Close()

	for _, h := range hours {
		_, err := stmt.ExecContext(ctx, h.RunID, h.Seq, h.CreatedAt.UTC().Format(timeFormat),
			h.Year, h.Month, h.Day, h.Hour, h.Wel, h.Clamped, string(h.Result))
		if err != nil {
			return fmt.Errorf("failed to insert row %d of run %s: %w", h.Seq, h.RunID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit run %s: %w", rec.ID, err)
	}
	log.Debugw("stored forecast run", "run_id", rec.ID, "rows", len(hours))
	return nil
}

// LatestRun implements storage.Store.
func (s *Store) LatestRun(ctx context.Context) (*pipeline.Run, error) {
	var rec database.ForecastRun
	var createdAt, panel string
	err := s.db.QueryRowContext(ctx, `
		SELECT id, created_at, duration_ns, row_count, missing_reference, clamped, panel
		FROM forecast_runs
		ORDER BY created_at DESC, rowid DESC
		LIMIT 1`).Scan(&rec.ID, &createdAt, &rec.DurationNS, &rec.RowCount, &rec.MissingReference, &rec.Clamped, &panel)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNoRuns
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query latest run: %w", err)
	}
	rec.Panel = []byte(panel)
	if rec.CreatedAt, err = time.Parse(timeFormat, createdAt); err != nil {
		return nil, fmt.Errorf("invalid created_at %q for run %s: %w", createdAt, rec.ID, err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, result
		FROM forecast_hours
		WHERE run_id = ?
		ORDER BY seq`, rec.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to query rows of run %s: %w", rec.ID, err)
	}
	defer rows.Close()

	var hours []database.ForecastHour
	for rows.Next() {
		h := database.ForecastHour{RunID: rec.ID}
		var result string
		if err := rows.Scan(&h.Seq, &result); err != nil {
			return nil, fmt.Errorf("failed to scan row of run %s: %w", rec.ID, err)
		}
		h.Result = []byte(result)
		hours = append(hours, h)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return rec.ToRun(hours)
}

// Ping implements storage.Store.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close implements storage.Store.
func (s *Store) Close() error {
	return s.db.Close()
}
