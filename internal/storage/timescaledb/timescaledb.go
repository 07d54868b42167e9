// Package timescaledb stores forecast runs in PostgreSQL with the TimescaleDB
// extension.  Hourly rows live in a hypertable partitioned on the run timestamp.
package timescaledb

import (
	"context"
	"errors"
	"fmt"

	"github.com/chrissnell/pvforecast/internal/database"
	"github.com/chrissnell/pvforecast/internal/log"
	"github.com/chrissnell/pvforecast/internal/pipeline"
	"github.com/chrissnell/pvforecast/internal/storage"
	"gorm.io/gorm"
)

// Store implements storage.Store on TimescaleDB.
type Store struct {
	conn *gorm.DB
}

var _ storage.Store = (*Store)(nil)

type setupStep struct {
	name string
	sql  string
	// optional steps log a warning and carry on
	optional bool
}

var setupSteps = []setupStep{
	{name: "forecast_runs table", sql: createRunsTableSQL},
	{name: "forecast_hours table", sql: createHoursTableSQL},
	{name: "TimescaleDB extension", sql: createExtensionSQL},
	{name: "hypertable", sql: createHypertableSQL},
	{name: "indexes", sql: createIndexesSQL},
	{name: "daily view", sql: createDailyViewSQL},
	{name: "daily aggregation policy", sql: addDailyAggregationPolicySQL, optional: true},
	{name: "retention policy", sql: addRetentionPolicySQL, optional: true},
}

// New connects to the database and creates the schema if it does not exist.
func New(ctx context.Context, connectionString string) (*Store, error) {
	conn, err := database.CreateConnection(connectionString)
	if err != nil {
		return nil, err
	}

	for _, step := range setupSteps {
		log.Infof("creating %s...", step.name)
		if err := conn.WithContext(ctx).Exec(step.sql).Error; err != nil {
			if step.optional {
				log.Warnf("could not create %s: %v", step.name, err)
				continue
			}
			return nil, fmt.Errorf("could not create %s: %w", step.name, err)
		}
	}

	return &Store{conn: conn}, nil
}

// SaveRun implements storage.Store.
func (s *Store) SaveRun(ctx context.Context, run *pipeline.Run) error {
	rec, hours, err := database.NewRecords(run)
	if err != nil {
		return err
	}

	err = s.conn.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&rec).Error; err != nil {
			return fmt.Errorf("could not store run %s: %w", rec.ID, err)
		}
		if len(hours) == 0 {
			return nil
		}
		if err := tx.CreateInBatches(hours, 500).Error; err != nil {
			return fmt.Errorf("could not store rows of run %s: %w", rec.ID, err)
		}
		return nil
	})
	if err != nil {
		log.Errorf("%v", err)
		return err
	}
	log.Debugw("stored forecast run", "run_id", rec.ID, "rows", len(hours))
	return nil
}

// LatestRun implements storage.Store.
func (s *Store) LatestRun(ctx context.Context) (*pipeline.Run, error) {
	var rec database.ForecastRun
	err := s.conn.WithContext(ctx).Order("created_at desc").First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, storage.ErrNoRuns
	}
	if err != nil {
		return nil, fmt.Errorf("could not query latest run: %w", err)
	}

	var hours []database.ForecastHour
	err = s.conn.WithContext(ctx).
		Where("run_id = ? AND created_at = ?", rec.ID, rec.CreatedAt).
		Order("seq").
		Find(&hours).Error
	if err != nil {
		return nil, fmt.Errorf("could not query rows of run %s: %w", rec.ID, err)
	}

	return rec.ToRun(hours)
}

// Ping implements storage.Store.
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.conn.DB()
	if err != nil {
		return err
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return err
	}
	var result int
	return s.conn.WithContext(ctx).Raw("SELECT 1").Scan(&result).Error
}

// Close implements storage.Store.
func (s *Store) Close() error {
	sqlDB, err := s.conn.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
