package database

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSQLiteDSN(t *testing.T) {
	assert.Equal(t,
		"bankrec.db?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(on)",
		sqliteDSN("bankrec.db"))
	assert.Equal(t,
		"file:x.db?mode=rwc&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(on)",
		sqliteDSN("file:x.db?mode=rwc"))
	assert.Equal(t, "x.db?_pragma=foreign_keys(on)", sqliteDSN("x.db?_pragma=foreign_keys(on)"))
}

func TestOpenUnsupportedDriver(t *testing.T) {
	_, err := Open(context.Background(), "oracle", "x")
	assert.ErrorContains(t, err, "unsupported database driver")
}

func TestMigrateSQLite(t *testing.T) {
	ctx := context.Background()
	db, err := Open(ctx, DriverSQLite, filepath.Join(t.TempDir(), "bankrec.db"))
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, Migrate(ctx, db, DriverSQLite))
	// A second run has nothing to apply.
	require.NoError(t, Migrate(ctx, db, DriverSQLite))

	var n int
	require.NoError(t, db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name IN
		 ('bank_accounts','bank_statement_entries','internal_transactions','transaction_matches',
		  'match_transactions','match_statement_entries','discrepancies')`).Scan(&n))
	assert.Equal(t, 7, n)
}
