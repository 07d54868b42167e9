// Package database holds the persisted shape of forecast runs and the gorm
// connection helper used by the PostgreSQL/TimescaleDB backend.
package database

import (
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/chrissnell/pvforecast/internal/log"
	"go.uber.org/zap"
)

// CreateConnection opens a gorm connection to PostgreSQL/TimescaleDB with the
// application's zap logger behind gorm's logger.
func CreateConnection(connectionString string) (*gorm.DB, error) {
	dbLogger := logger.New(
		zap.NewStdLog(log.GetZapLogger()),
		logger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	log.Info("connecting to TimescaleDB...")
	db, err := gorm.Open(postgres.Open(connectionString), &gorm.Config{Logger: dbLogger})
	if err != nil {
		log.Warnf("unable to create a TimescaleDB connection: %v", err)
		return nil, err
	}
	log.Info("TimescaleDB connection successful")

	return db, nil
}
