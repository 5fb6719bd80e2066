package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/mmynk/lifeboard/internal/storage"
	"github.com/mmynk/lifeboard/internal/storage/postgres"
	"github.com/mmynk/lifeboard/internal/storage/sqlite"
)

// StoreFlags select and configure the persistence backend.
type StoreFlags struct {
	Driver string `help:"Store driver." default:"sqlite" enum:"sqlite,postgres" env:"LIFEBOARD_STORE"`
	DBPath string `help:"SQLite database file." default:"./data/lifeboard.db" env:"DB_PATH"`

	ConnString      string        `help:"PostgreSQL connection string." env:"POSTGRES_CONNECTION_STRING"`
	MaxConns        int32         `help:"Maximum connections in the pool." default:"20"`
	MinConns        int32         `help:"Minimum connections in the pool." default:"2"`
	MaxConnLifetime time.Duration `help:"Maximum connection lifetime." default:"1h"`
	MaxConnIdleTime time.Duration `help:"Maximum connection idle time." default:"30m"`
	AutoMigrate     bool          `help:"Apply PostgreSQL migrations on startup." env:"LIFEBOARD_AUTO_MIGRATE"`
}

func (s *StoreFlags) Validate() error {
	if s.Driver == "postgres" && s.ConnString == "" {
		return errors.New("PostgreSQL connection string is required (--store-conn-string or POSTGRES_CONNECTION_STRING)")
	}
	return nil
}

// Open opens the configured store.
func (s *StoreFlags) Open(ctx context.Context, logger *slog.Logger) (storage.Store, error) {
	switch s.Driver {
	case "postgres":
		store, err := postgres.New(ctx, postgres.Config{
			Pool: postgres.PoolConfig{
				ConnString:      s.ConnString,
				MaxConns:        s.MaxConns,
				MinConns:        s.MinConns,
				MaxConnLifetime: s.MaxConnLifetime,
				MaxConnIdleTime: s.MaxConnIdleTime,
			},
			AutoMigrate: s.AutoMigrate,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to open postgres store: %w", err)
		}
		logger.Info("Storage initialized", "driver", "postgres")
		return store, nil
	default:
		if err := os.MkdirAll(filepath.Dir(s.DBPath), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
		store, err := sqlite.New(s.DBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite store: %w", err)
		}
		logger.Info("Storage initialized", "driver", "sqlite", "database", s.DBPath)
		return store, nil
	}
}
