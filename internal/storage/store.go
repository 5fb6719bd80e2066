// Package storage provides abstractions for persistent data storage.
package storage

import (
	"context"

	"github.com/mmynk/lifeboard/internal/backend"
	"github.com/mmynk/lifeboard/internal/models"
)

// Store is the persistence layer behind the table API.
// This abstraction allows swapping storage backends (SQLite, PostgreSQL)
// without changing the service layer. Stores enforce the schema but no
// access policy; see package policy for that.
type Store interface {
	backend.Tables

	// CreateUser persists a new user. Fails with a validation error when
	// the email is already registered.
	CreateUser(ctx context.Context, user *models.User) error

	// GetUserByEmail returns nil, nil when no user has the email.
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)

	// GetUserByID returns nil, nil when the user does not exist.
	GetUserByID(ctx context.Context, id string) (*models.User, error)

	// Close releases any resources held by the store.
	Close() error
}
