// Package postgres provides a PostgreSQL-backed implementation of the
// storage.Store interface on a pgx connection pool.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mmynk/lifeboard/internal/backend"
	"github.com/mmynk/lifeboard/internal/models"
	"github.com/mmynk/lifeboard/internal/storage"
	"github.com/mmynk/lifeboard/internal/storage/sqlbuild"
)

var _ storage.Store = (*Store)(nil)

var dialect sqlbuild.Postgres

// Config configures a Store.
type Config struct {
	Pool PoolConfig
	// AutoMigrate applies pending migrations on startup.
	AutoMigrate bool
}

// Store implements storage.Store using PostgreSQL.
type Store struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
	now    func() time.Time
}

// New connects, optionally migrates, and returns a ready store.
func New(ctx context.Context, cfg Config, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	pool, err := NewPool(ctx, &cfg.Pool)
	if err != nil {
		return nil, err
	}
	if cfg.AutoMigrate {
		if err := runMigrations(ctx, pool, logger); err != nil {
			pool.Close()
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
	}
	return &Store{pool: pool, logger: logger, now: time.Now}, nil
}

// Close closes the pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// Select returns the rows of q.Table matching every filter.
func (s *Store) Select(ctx context.Context, q backend.Query) ([]backend.Row, error) {
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
func (s *Store) Insert(ctx context.Context, table string, row backend.Row) (backend.Row, error) {
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
func (s *Store) Update(ctx context.Context, table string, filters []backend.Filter, values backend.Row) ([]backend.Row, error) {
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
func (s *Store) Delete(ctx context.Context, table string, filters []backend.Filter) (int, error) {
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
	tag, err := s.pool.Exec(ctx, stmt.SQL, stmt.Args...)
	if err != nil {
		return 0, mapError(fmt.Sprintf("failed to delete from %s", t.Name), err)
	}
	return int(tag.RowsAffected()), nil
}

// Upsert inserts row or updates the row sharing its conflict columns, in
// one statement.
func (s *Store) Upsert(ctx context.Context, table string, row backend.Row, conflict []string) (backend.Row, error) {
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

func (s *Store) query(ctx context.Context, t *storage.Table, stmt sqlbuild.Statement) ([]backend.Row, error) {
	rows, err := s.pool.Query(ctx, stmt.SQL, stmt.Args...)
	if err != nil {
		return nil, mapError(fmt.Sprintf("failed to query %s", t.Name), err)
	}
	defer rows.Close()

	out := []backend.Row{}
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("failed to read %s row: %w", t.Name, err)
		}
		row, err := t.RowFromValues(values)
		if err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(fmt.Sprintf("failed to query %s", t.Name), err)
	}
	return out, nil
}

func (s *Store) queryOne(ctx context.Context, t *storage.Table, stmt sqlbuild.Statement) (backend.Row, error) {
	rows, err := s.query(ctx, t, stmt)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("write to %s returned no row", t.Name)
	}
	return rows[0], nil
}

// CreateUser inserts a new user.
func (s *Store) CreateUser(ctx context.Context, user *models.User) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO users (id, email, display_name, password_hash, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, user.ID, user.Email, user.DisplayName, user.PasswordHash, user.CreatedAt, user.UpdatedAt)
	if err != nil {
		return mapError("failed to create user", err)
	}
	return nil
}

// GetUserByEmail retrieves a user by their email address.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.getUser(ctx, "email", email)
}

// GetUserByID retrieves a user by their ID.
func (s *Store) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	return s.getUser(ctx, "id", id)
}

func (s *Store) getUser(ctx context.Context, column, value string) (*models.User, error) {
	user := &models.User{}
	err := s.pool.QueryRow(ctx, `
		SELECT id, email, display_name, password_hash, created_at, updated_at
		FROM users WHERE `+column+` = $1
	`, value).Scan(&user.ID, &user.Email, &user.DisplayName, &user.PasswordHash, &user.CreatedAt, &user.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, mapError("failed to get user", err)
	}
	return user, nil
}
