package sqlstore

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"path/filepath"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/slatekit/slateauth/store"
	"github.com/slatekit/slateauth/store/storetest"
	"github.com/stretchr/testify/require"
)

func TestSQLiteBackendContract(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Backend {
		b, err := Open(DialectSQLite, filepath.Join(t.TempDir(), "kv.db"))
		require.NoError(t, err)
		return b
	})
}

func TestSQLiteSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "kv.db")

	b, err := Open(DialectSQLite, path)
	require.NoError(t, err)
	s := store.New(b, store.DefaultConfig())
	require.NoError(t, s.Set(ctx, "users-accounts", "alice", []byte(`{"id":"1"}`)))
	require.NoError(t, s.Close(ctx))

	b2, err := Open(DialectSQLite, path)
	require.NoError(t, err)
	s2 := store.New(b2, store.DefaultConfig())
	defer s2.Close(ctx)
	v, ok, err := s2.Get(ctx, "users-accounts", "alice")
	require.NoError(t, err)
	require.True(t, ok)
	require.JSONEq(t, `{"id":"1"}`, string(v))
}

func TestOpenRejectsUnknownDialect(t *testing.T) {
	_, err := Open("oracle", "dsn")
	require.Error(t, err)
}

func newPostgresMock(t *testing.T) (*Backend, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return New(db, DialectPostgres), mock
}

func TestPostgresPlaceholders(t *testing.T) {
	ctx := context.Background()
	b, mock := newPostgresMock(t)

	mock.ExpectExec(`(?s)^INSERT\s+INTO\s+kv_entries.*VALUES\s*\(\$1,\s*\$2,\s*\$3\).*DO\s+NOTHING$`).
		WithArgs("users-accounts", "alice", `{}`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`(?s)^INSERT\s+INTO\s+kv_entries.*DO\s+NOTHING$`).
		WithArgs("users-accounts", "alice", `{}`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	stored, err := b.SetIfAbsent(ctx, "users-accounts", "alice", []byte(`{}`))
	require.NoError(t, err)
	require.True(t, stored)

	stored, err = b.SetIfAbsent(ctx, "users-accounts", "alice", []byte(`{}`))
	require.NoError(t, err)
	require.False(t, stored)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresGetMissing(t *testing.T) {
	ctx := context.Background()
	b, mock := newPostgresMock(t)

	mock.ExpectQuery(`^SELECT\s+value\s+FROM\s+kv_entries\s+WHERE\s+namespace\s*=\s*\$1\s+AND\s+entry_key\s*=\s*\$2$`).
		WithArgs("ns", "k").
		WillReturnRows(sqlmock.NewRows([]string{"value"}))

	v, ok, err := b.Get(ctx, "ns", "k")
	require.NoError(t, err)
	require.False(t, ok)
	require.Nil(t, v)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresClearRollsBackOnError(t *testing.T) {
	ctx := context.Background()
	b, mock := newPostgresMock(t)

	mock.ExpectBegin()
	mock.ExpectExec(`^DELETE\s+FROM\s+kv_entries\s+WHERE\s+namespace\s*=\s*\$1$`).
		WithArgs("ns").
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(`^DELETE\s+FROM\s+kv_namespaces\s+WHERE\s+name\s*=\s*\$1$`).
		WithArgs("ns").
		WillReturnError(errors.New("db down"))
	mock.ExpectRollback()

	err := b.Clear(ctx, "ns")
	require.Error(t, err)
	require.Contains(t, err.Error(), "db down")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestConnectRunsMigrationsOnce(t *testing.T) {
	ctx := context.Background()
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer db.Close()

	calls := 0
	orig := gooseUp
	gooseUp = func(ctx context.Context, db *sql.DB, dialect Dialect) error {
		calls++
		return nil
	}
	defer func() { gooseUp = orig }()

	mock.ExpectPing()
	mock.ExpectPing()
	mock.ExpectPing()

	b := New(db, DialectPostgres)
	require.NoError(t, b.Connect(ctx, true))
	require.NoError(t, b.Connect(ctx, true))
	require.NoError(t, b.Connect(ctx, false))
	require.Equal(t, 1, calls)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestConnectPingFailureIsUnavailable(t *testing.T) {
	ctx := context.Background()
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectPing().WillReturnError(errors.New("connection refused"))

	b := New(db, DialectPostgres)
	err = b.Connect(ctx, false)
	require.ErrorIs(t, err, store.ErrUnavailable)
}

func TestLostConnectionIsUnavailable(t *testing.T) {
	ctx := context.Background()
	b, mock := newPostgresMock(t)

	mock.ExpectQuery(`^SELECT\s+1\s+FROM\s+kv_entries`).
		WithArgs("ns", "k").
		WillReturnError(driver.ErrBadConn)
	mock.ExpectQuery(`^SELECT\s+1\s+FROM\s+kv_entries`).
		WithArgs("ns", "k").
		WillReturnError(errors.New("syntax error"))

	_, err := b.Has(ctx, "ns", "k")
	require.ErrorIs(t, err, store.ErrUnavailable)

	_, err = b.Has(ctx, "ns", "k")
	require.Error(t, err)
	require.NotErrorIs(t, err, store.ErrUnavailable)
}
