// Package sqlstore implements store.Backend on database/sql. SQLite
// (modernc.org/sqlite) and PostgreSQL (pgx stdlib) are supported.
package sqlstore

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/slatekit/slateauth/store"
	"github.com/slatekit/slateauth/store/sqlstore/migrations"
	_ "modernc.org/sqlite"
)

// Dialect selects the SQL flavour and driver.
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

func (d Dialect) driver() string {
	if d == DialectPostgres {
		return "pgx"
	}
	return "sqlite"
}

func (d Dialect) gooseDialect() string {
	if d == DialectPostgres {
		return "pgx"
	}
	return "sqlite3"
}

// goose keeps its base FS and dialect in package state.
var gooseMu sync.Mutex

// gooseUp is a seam for tests that cannot run real migrations.
var gooseUp = func(ctx context.Context, db *sql.DB, dialect Dialect) error {
	gooseMu.Lock()
	defer gooseMu.Unlock()
	goose.SetBaseFS(migrations.Migrations)
	goose.SetLogger(goose.NopLogger())
	if err := goose.SetDialect(dialect.gooseDialect()); err != nil {
		return err
	}
	return goose.UpContext(ctx, db, ".")
}

// Backend is a [store.Backend] over two tables: kv_namespaces and kv_entries.
type Backend struct {
	db      *sql.DB
	dialect Dialect
	ownsDB  bool

	mu       sync.Mutex
	migrated bool
}

var _ store.Backend = (*Backend)(nil)

// New wraps an existing handle. The caller keeps ownership of db.
func New(db *sql.DB, dialect Dialect) *Backend {
	return &Backend{db: db, dialect: dialect}
}

// Open opens a handle for dialect and dsn. Close closes it.
func Open(dialect Dialect, dsn string) (*Backend, error) {
	switch dialect {
	case DialectSQLite, DialectPostgres:
	default:
		return nil, fmt.Errorf("unsupported dialect %q", dialect)
	}
	db, err := sql.Open(dialect.driver(), dsn)
	if err != nil {
		return nil, err
	}
	if dialect == DialectSQLite {
		// One writer avoids SQLITE_BUSY under concurrent access.
		db.SetMaxOpenConns(1)
	}
	return &Backend{db: db, dialect: dialect, ownsDB: true}, nil
}

// Connect pings the database and, when create is set, applies the
// embedded migrations once.
func (b *Backend) Connect(ctx context.Context, create bool) error {
	if err := b.db.PingContext(ctx); err != nil {
		return fmt.Errorf("%w: %v", store.ErrUnavailable, err)
	}
	if !create {
		return nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.migrated {
		return nil
	}
	if err := gooseUp(ctx, b.db, b.dialect); err != nil {
		return fmt.Errorf("%w: migrate: %v", store.ErrUnavailable, err)
	}
	b.migrated = true
	return nil
}

// dbErr tags lost connections so the store degrades on them.
func dbErr(err error) error {
	var netErr net.Error
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) || errors.As(err, &netErr) {
		return fmt.Errorf("%w: %v", store.ErrUnavailable, err)
	}
	return fmt.Errorf("db error: %w", err)
}

// bind rewrites ? placeholders to $n for PostgreSQL.
func (b *Backend) bind(query string) string {
	if b.dialect != DialectPostgres {
		return query
	}
	var sb strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			sb.WriteByte('$')
			sb.WriteString(strconv.Itoa(n))
			continue
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

func (b *Backend) EnsureNamespace(ctx context.Context, namespace string) error {
	_, err := b.db.ExecContext(ctx,
		b.bind(`INSERT INTO kv_namespaces (name) VALUES (?) ON CONFLICT DO NOTHING`),
		namespace)
	if err != nil {
		return dbErr(err)
	}
	return nil
}

func (b *Backend) Get(ctx context.Context, namespace, key string) ([]byte, bool, error) {
	var value string
	err := b.db.QueryRowContext(ctx,
		b.bind(`SELECT value FROM kv_entries WHERE namespace = ? AND entry_key = ?`),
		namespace, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, dbErr(err)
	}
	return []byte(value), true, nil
}

func (b *Backend) Set(ctx context.Context, namespace, key string, value []byte) error {
	_, err := b.db.ExecContext(ctx,
		b.bind(`INSERT INTO kv_entries (namespace, entry_key, value) VALUES (?, ?, ?)
ON CONFLICT (namespace, entry_key) DO UPDATE SET value = excluded.value`),
		namespace, key, string(value))
	if err != nil {
		return dbErr(err)
	}
	return nil
}

func (b *Backend) SetIfAbsent(ctx context.Context, namespace, key string, value []byte) (bool, error) {
	res, err := b.db.ExecContext(ctx,
		b.bind(`INSERT INTO kv_entries (namespace, entry_key, value) VALUES (?, ?, ?)
ON CONFLICT (namespace, entry_key) DO NOTHING`),
		namespace, key, string(value))
	if err != nil {
		return false, dbErr(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, dbErr(err)
	}
	return n == 1, nil
}

func (b *Backend) Delete(ctx context.Context, namespace, key string) error {
	_, err := b.db.ExecContext(ctx,
		b.bind(`DELETE FROM kv_entries WHERE namespace = ? AND entry_key = ?`),
		namespace, key)
	if err != nil {
		return dbErr(err)
	}
	return nil
}

func (b *Backend) Has(ctx context.Context, namespace, key string) (bool, error) {
	var one int
	err := b.db.QueryRowContext(ctx,
		b.bind(`SELECT 1 FROM kv_entries WHERE namespace = ? AND entry_key = ?`),
		namespace, key).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, dbErr(err)
	}
	return true, nil
}

func (b *Backend) Keys(ctx context.Context, namespace string) ([]string, error) {
	rows, err := b.db.QueryContext(ctx,
		b.bind(`SELECT entry_key FROM kv_entries WHERE namespace = ? ORDER BY entry_key`),
		namespace)
	if err != nil {
		return nil, dbErr(err)
	}
	defer rows.Close()

	keys := []string{}
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, dbErr(err)
		}
		keys = append(keys, k)
	}
	if err := rows.Err(); err != nil {
		return nil, dbErr(err)
	}
	return keys, nil
}

// Clear deletes the namespace and its entries in one transaction.
func (b *Backend) Clear(ctx context.Context, namespace string) (err error) {
	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return dbErr(err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, b.bind(`DELETE FROM kv_entries WHERE namespace = ?`), namespace); err != nil {
		return dbErr(err)
	}
	if _, err = tx.ExecContext(ctx, b.bind(`DELETE FROM kv_namespaces WHERE name = ?`), namespace); err != nil {
		return dbErr(err)
	}
	if err = tx.Commit(); err != nil {
		return dbErr(err)
	}
	return nil
}

// Close closes the handle when it was opened by [Open].
func (b *Backend) Close(ctx context.Context) error {
	if !b.ownsDB {
		return nil
	}
	return b.db.Close()
}
