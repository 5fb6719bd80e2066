// Package sqlite provides a SQLite-backed implementation of the storage.Store interface.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"modernc.org/sqlite" // Pure Go SQLite driver (no CGO)
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/mmynk/lifeboard/internal/apperr"
	"github.com/mmynk/lifeboard/internal/backend"
	"github.com/mmynk/lifeboard/internal/storage"
	"github.com/mmynk/lifeboard/internal/storage/sqlbuild"
)

// Ensure SQLiteStore implements storage.Store
var _ storage.Store = (*SQLiteStore)(nil)

var dialect sqlbuild.SQLite

// SQLiteStore implements storage.Store using SQLite.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// New creates a new SQLiteStore with the given database path.
// It creates the parent directories and runs migrations automatically.
func New(dbPath string) (*SQLiteStore, error) {
	// Create parent directory if it doesn't exist
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	// Pragmas are applied per connection by the driver
	dsn := "file:" + dbPath + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One writer at a time; upserts and policy checks must not hit SQLITE_BUSY
	db.SetMaxOpenConns(1)

	// Run migrations
	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &SQLiteStore{db: db, now: time.Now}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Select returns the rows of q.Table matching every filter.
func (s *SQLiteStore) Select(ctx context.Context, q backend.Query) ([]backend.Row, error) {
	t, err := storage.LookupTable(q.Table)
	if err != nil {
		return nil, err
	}
	if err := t.ValidateQuery(q); err != nil {
		return nil, err
	}
	if q.Filters, err = t.CoerceFilters(q.Filters); err != nil {
		return nil, err
	}

	stmt, err := sqlbuild.Select(dialect, t, q)
	if err != nil {
		return nil, err
	}
	return s.query(ctx, t, stmt)
}

// Insert stores row with a fresh id and timestamps.
func (s *SQLiteStore) Insert(ctx context.Context, table string, row backend.Row) (backend.Row, error) {
	t, err := storage.LookupTable(table)
	if err != nil {
		return nil, err
	}
	prepared, err := t.PrepareInsert(row, s.now())
	if err != nil {
		return nil, err
	}
	return s.queryOne(ctx, t, sqlbuild.Insert(dialect, t, prepared))
}

// Update applies values to every matching row.
func (s *SQLiteStore) Update(ctx context.Context, table string, filters []backend.Filter, values backend.Row) ([]backend.Row, error) {
	t, err := storage.LookupTable(table)
	if err != nil {
		return nil, err
	}
	if filters, err = t.CoerceFilters(filters); err != nil {
		return nil, err
	}
	prepared, err := t.PrepareUpdate(values, s.now())
	if err != nil {
		return nil, err
	}
	stmt, err := sqlbuild.Update(dialect, t, filters, prepared)
	if err != nil {
		return nil, err
	}
	return s.query(ctx, t, stmt)
}

// Delete removes every matching row.
func (s *SQLiteStore) Delete(ctx context.Context, table string, filters []backend.Filter) (int, error) {
	t, err := storage.LookupTable(table)
	if err != nil {
		return 0, err
	}
	if filters, err = t.CoerceFilters(filters); err != nil {
		return 0, err
	}
	stmt, err := sqlbuild.Delete(dialect, t, filters)
	if err != nil {
		return 0, err
	}

	res, err := s.db.ExecContext(ctx, stmt.SQL, stmt.Args...)
	if err != nil {
		return 0, mapError(fmt.Sprintf("failed to delete from %s", t.Name), err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count deleted rows: %w", err)
	}
	return int(n), nil
}

// Upsert inserts row or updates the row sharing its conflict columns, in
// one statement.
func (s *SQLiteStore) Upsert(ctx context.Context, table string, row backend.Row, conflict []string) (backend.Row, error) {
	t, err := storage.LookupTable(table)
	if err != nil {
		return nil, err
	}
	if err := t.ValidateConflict(conflict); err != nil {
		return nil, err
	}
	prepared, err := t.PrepareInsert(row, s.now())
	if err != nil {
		return nil, err
	}
	return s.queryOne(ctx, t, sqlbuild.Upsert(dialect, t, prepared, conflict))
}

func (s *SQLiteStore) query(ctx context.Context, t *storage.Table, stmt sqlbuild.Statement) ([]backend.Row, error) {
	rows, err := s.db.QueryContext(ctx, stmt.SQL, stmt.Args...)
	if err != nil {
		return nil, mapError(fmt.Sprintf("failed to query %s", t.Name), err)
	}
	defer rows.Close()

	out := []backend.Row{}
	for rows.Next() {
		values := make([]any, len(t.Columns))
		ptrs := make([]any, len(values))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("failed to scan %s row: %w", t.Name, err)
		}
		row, err := t.RowFromValues(values)
		if err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(fmt.Sprintf("failed to iterate %s", t.Name), err)
	}
	return out, nil
}

func (s *SQLiteStore) queryOne(ctx context.Context, t *storage.Table, stmt sqlbuild.Statement) (backend.Row, error) {
	rows, err := s.query(ctx, t, stmt)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("write to %s returned no row", t.Name)
	}
	return rows[0], nil
}

// mapError classifies constraint violations; everything else is wrapped.
func mapError(msg string, err error) error {
	var serr *sqlite.Error
	if !errors.As(err, &serr) {
		return fmt.Errorf("%s: %w", msg, err)
	}
	switch serr.Code() {
	case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
		return &apperr.Error{Kind: apperr.KindValidation, Message: "a row with the same key already exists", Err: err}
	case sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY:
		return &apperr.Error{Kind: apperr.KindNotFound, Message: "referenced row does not exist", Err: err}
	case sqlite3.SQLITE_CONSTRAINT_NOTNULL, sqlite3.SQLITE_CONSTRAINT:
		return &apperr.Error{Kind: apperr.KindValidation, Message: "a required value is missing", Err: err}
	case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED:
		return &apperr.Error{Kind: apperr.KindTransientNetwork, Message: "database is busy", Err: err}
	}
	return fmt.Errorf("%s: %w", msg, err)
}
