package testutil

import (
	"database/sql"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
	// Register the "sqlite" database/sql driver.
	_ "modernc.org/sqlite"
)

// NewMockDB returns a sqlmock-backed *sql.DB. Expectations are checked when
// the test finishes. The caller is expected to register ExpectClose if the
// code under test closes the DB.
func NewMockDB(t testing.TB) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unfulfilled sqlmock expectations: %v", err)
		}
	})
	return db, mock
}

// NewSQLiteDB opens a private in-memory SQLite database for round-trip
// tests. A "public" schema is attached so schema-qualified identifiers
// resolve the same way they do on PostgreSQL.
func NewSQLiteDB(t testing.TB) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)

	_, err = db.Exec(`ATTACH DATABASE ':memory:' AS public`)
	require.NoError(t, err)
	return db
}
