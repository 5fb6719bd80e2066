//go:build integration

package postgres

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/mmynk/lifeboard/internal/apperr"
	"github.com/mmynk/lifeboard/internal/backend"
	"github.com/mmynk/lifeboard/internal/models"
	"github.com/mmynk/lifeboard/internal/storage"
	"github.com/mmynk/lifeboard/pkg/logging"
)

func setupPostgresContainer(t *testing.T, ctx context.Context) *Store {
	req := testcontainers.ContainerRequest{
		Image:        "postgres:18-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "test",
			"POSTGRES_PASSWORD": "test",
			"POSTGRES_DB":       "testdb",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").WithOccurrence(2),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432")
	require.NoError(t, err)

	store, err := New(ctx, Config{
		Pool:        PoolConfig{ConnString: fmt.Sprintf("postgres://test:test@%s:%s/testdb?sslmode=disable", host, port.Port())},
		AutoMigrate: true,
	}, logging.Discard())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestIntegration_TableAPI(t *testing.T) {
	ctx := context.Background()
	store := setupPostgresContainer(t, ctx)

	user := models.NewUser("erin@example.com", "Erin", "hash")
	require.NoError(t, store.CreateUser(ctx, user))

	t.Run("insert and select wallet", func(t *testing.T) {
		row, err := store.Insert(ctx, storage.TableWallets, backend.Row{
			"user_id": user.ID, "organization_id": nil, "name": "Cash",
			"currency": "USD", "initial_balance": "10.50",
		})
		require.NoError(t, err)
		assert.NotEmpty(t, row["id"])

		rows, err := store.Select(ctx, backend.Query{
			Table:   storage.TableWallets,
			Filters: []backend.Filter{backend.IsNull("organization_id"), backend.Eq("user_id", user.ID)},
		})
		require.NoError(t, err)
		require.Len(t, rows, 1)

		wallet, err := backend.DecodeRow[models.Wallet](rows[0])
		require.NoError(t, err)
		assert.Equal(t, "10.5", wallet.InitialBalance.String())
		assert.False(t, wallet.CreatedAt.IsZero())
	})

	t.Run("episode status upsert keeps one row", func(t *testing.T) {
		universe, err := store.Insert(ctx, storage.TableUniverses, backend.Row{"user_id": user.ID, "name": "U"})
		require.NoError(t, err)
		show, err := store.Insert(ctx, storage.TableShows, backend.Row{"universe_id": universe["id"], "title": "S"})
		require.NoError(t, err)
		episode, err := store.Insert(ctx, storage.TableEpisodes, backend.Row{"show_id": show["id"], "number": 1})
		require.NoError(t, err)

		conflict := []string{"user_id", "episode_id"}
		for _, status := range []string{models.StatusWatched, models.StatusNotWatched} {
			_, err := store.Upsert(ctx, storage.TableEpisodeStatus, backend.Row{
				"user_id": user.ID, "episode_id": episode["id"], "status": status,
			}, conflict)
			require.NoError(t, err)
		}

		rows, err := store.Select(ctx, backend.Query{
			Table:   storage.TableEpisodeStatus,
			Filters: []backend.Filter{backend.Eq("user_id", user.ID)},
		})
		require.NoError(t, err)
		require.Len(t, rows, 1)
		assert.Equal(t, models.StatusNotWatched, rows[0]["status"])
	})

	t.Run("foreign key violation is not found", func(t *testing.T) {
		_, err := store.Insert(ctx, storage.TableTransactions, backend.Row{
			"user_id": user.ID, "wallet_id": "missing", "kind": "expense",
			"amount": "1", "occurred_on": "2026-10-16",
		})
		assert.True(t, apperr.Is(err, apperr.KindNotFound))
	})
}
