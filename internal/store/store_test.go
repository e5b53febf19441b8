package store

import (
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/gridbase/sheetsync/internal/db"
)

func newTestDB(t *testing.T) *sqlx.DB {
	t.Helper()
	database, err := db.NewSqliteDB()
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	return database
}
