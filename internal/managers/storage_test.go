package managers

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/chrissnell/pvforecast/internal/storage/sqlite"
	"github.com/chrissnell/pvforecast/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBackend(t *testing.T) {
	tests := []struct {
		name string
		in   config.StorageData
		want string
	}{
		{"nothing", config.StorageData{}, BackendNone},
		{"empty sqlite", config.StorageData{SQLite: &config.SQLiteData{}}, BackendNone},
		{"sqlite", config.StorageData{SQLite: &config.SQLiteData{Path: "runs.db"}}, BackendSQLite},
		{"timescaledb", config.StorageData{TimescaleDB: &config.TimescaleDBData{ConnectionString: "postgres://pv@db/pv"}}, BackendTimescaleDB},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Backend(tt.in))
		})
	}
}

func TestOpenStore(t *testing.T) {
	s, err := OpenStore(context.Background(), config.StorageData{})
	require.NoError(t, err)
	assert.Nil(t, s)

	path := filepath.Join(t.TempDir(), "runs.db")
	s, err = OpenStore(context.Background(), config.StorageData{SQLite: &config.SQLiteData{Path: path}})
	require.NoError(t, err)
	defer s.Close()
	assert.IsType(t, &sqlite.Store{}, s)
	assert.NoError(t, s.Ping(context.Background()))
}
