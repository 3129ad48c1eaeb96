package sqlstore

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cleared-dev/bankrec/internal/database"
	"github.com/cleared-dev/bankrec/internal/store"
	"github.com/cleared-dev/bankrec/internal/store/storetest"
)

func openSQLite(t *testing.T) store.Store {
	t.Helper()
	ctx := context.Background()
	db, err := database.Open(ctx, database.DriverSQLite, filepath.Join(t.TempDir(), "bankrec.db"))
	require.NoError(t, err)
	require.NoError(t, database.Migrate(ctx, db, database.DriverSQLite))
	s := New(db, database.DriverSQLite)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestContractSQLite(t *testing.T) {
	storetest.Run(t, openSQLite)
}

func TestRebind(t *testing.T) {
	pg := &conn{driver: database.DriverPostgres}
	assert.Equal(t, "SELECT a FROM t WHERE x = $1 AND y IN ($2, $3)", pg.rebind("SELECT a FROM t WHERE x = ? AND y IN (?, ?)"))

	lite := &conn{driver: database.DriverSQLite}
	assert.Equal(t, "WHERE x = ?", lite.rebind("WHERE x = ?"))
}

func TestQualify(t *testing.T) {
	assert.Equal(t, "m.id, m.name", qualify("id,\n\tname", "m"))
	assert.Equal(t, "?, ?, ?", placeholders(3))
}
