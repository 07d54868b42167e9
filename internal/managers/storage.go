// Package managers selects and opens the configured backends.
package managers

import (
	"context"
	"fmt"

	"github.com/chrissnell/pvforecast/internal/storage"
	"github.com/chrissnell/pvforecast/internal/storage/sqlite"
	"github.com/chrissnell/pvforecast/internal/storage/timescaledb"
	"github.com/chrissnell/pvforecast/pkg/config"
)

// Storage backend names.
const (
	BackendNone        = "none"
	BackendSQLite      = "sqlite"
	BackendTimescaleDB = "timescaledb"
)

// Backend names the storage backend c selects.
func Backend(c config.StorageData) string {
	switch {
	case c.TimescaleDB != nil && c.TimescaleDB.ConnectionString != "":
		return BackendTimescaleDB
	case c.SQLite != nil && c.SQLite.Path != "":
		return BackendSQLite
	default:
		return BackendNone
	}
}

// OpenStore opens the configured result store.  It returns a nil Store and no
// error when no backend is configured.
func OpenStore(ctx context.Context, c config.StorageData) (storage.Store, error) {
	switch Backend(c) {
	case BackendTimescaleDB:
		s, err := timescaledb.New(ctx, c.TimescaleDB.ConnectionString)
		if err != nil {
			return nil, fmt.Errorf("could not add TimescaleDB storage backend: %w", err)
		}
		return s, nil
	case BackendSQLite:
		s, err := sqlite.New(c.SQLite.Path)
		if err != nil {
			return nil, fmt.Errorf("could not add SQLite storage backend: %w", err)
		}
		return s, nil
	default:
		return nil, nil
	}
}
