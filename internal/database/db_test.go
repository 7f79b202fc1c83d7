package database

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	dir := t.TempDir()
	db, err := New(Config{
		Path:    filepath.Join(dir, "pxi.db"),
		URL:     "postgres://localhost/pxi",
		PoolMax: 5,
		PoolMin: 1,
	}, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestNew_OpensAndPings(t *testing.T) {
	db := newTestDB(t)
	assert.NoError(t, db.HealthCheck(context.Background()))
}

func TestMigrate_IsIdempotent(t *testing.T) {
	db := newTestDB(t)
	require.NoError(t, db.Migrate(context.Background()))
	require.NoError(t, db.Migrate(context.Background()))

	var name string
	err := db.Conn().QueryRowContext(context.Background(),
		"SELECT name FROM sqlite_master WHERE type='table' AND name='samples'").Scan(&name)
	require.NoError(t, err)
	assert.Equal(t, "samples", name)
}

func TestWithTransaction_RollsBackOnError(t *testing.T) {
	db := newTestDB(t)
	require.NoError(t, db.Migrate(context.Background()))

	wantErr := errors.New("boom")
	err := db.WithTransaction(context.Background(), func(tx *sql.Tx) error {
		_, execErr := tx.ExecContext(context.Background(),
			"INSERT INTO indicators (id,label,lower_bound,upper_bound,hard_min,hard_max,weight,polarity,risk_direction,provider_id,provider_series_id) VALUES ('x','X',0,1,0,1,1,'positive','higherIsMoreRisk','fred','SERIES')")
		require.NoError(t, execErr)
		return wantErr
	})
	assert.ErrorIs(t, err, wantErr)

	var count int
	require.NoError(t, db.Conn().QueryRowContext(context.Background(),
		"SELECT COUNT(*) FROM indicators WHERE id='x'").Scan(&count))
	assert.Equal(t, 0, count)
}

func TestGetStats_ReflectsPool(t *testing.T) {
	db := newTestDB(t)
	stats := db.GetStats()
	assert.GreaterOrEqual(t, stats.OpenConnections, 0)
}
