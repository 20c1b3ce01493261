package sqlite

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/golang-migrate/migrate/v4/database"
	"github.com/stretchr/testify/require"
)

func TestMigrateDriver_Lock(t *testing.T) {
	db, err := NewDB(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	defer db.Close()

	d, err := newMigrateDriver(db.conn)
	require.NoError(t, err)
	require.NoError(t, d.Lock())
	require.ErrorIs(t, d.Lock(), database.ErrLocked)
	require.NoError(t, d.Unlock())
	require.ErrorIs(t, d.Unlock(), database.ErrNotLocked)
}

func TestMigrateDriver_VersionAndDrop(t *testing.T) {
	db, err := NewDB(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	defer db.Close()

	d, err := newMigrateDriver(db.conn)
	require.NoError(t, err)

	version, dirty, err := d.Version()
	require.NoError(t, err)
	require.Equal(t, 1, version)
	require.False(t, dirty)

	require.NoError(t, d.SetVersion(7, true))
	version, dirty, err = d.Version()
	require.NoError(t, err)
	require.Equal(t, 7, version)
	require.True(t, dirty)

	require.NoError(t, d.Drop())
	version, _, err = d.Version()
	require.NoError(t, err)
	require.Equal(t, database.NilVersion, version)

	var n int
	require.NoError(t, db.conn.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = 'records'`).Scan(&n))
	require.Zero(t, n)
}

func TestMigrateDriver_RunReportsQuery(t *testing.T) {
	db, err := NewDB(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	defer db.Close()

	d, err := newMigrateDriver(db.conn)
	require.NoError(t, err)

	err = d.Run(strings.NewReader("CREATE TABLE broken ("))
	var dbErr database.Error
	require.ErrorAs(t, err, &dbErr)
	require.Equal(t, "CREATE TABLE broken (", string(dbErr.Query))
}
