package sqlbuild

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmynk/lifeboard/internal/backend"
	"github.com/mmynk/lifeboard/internal/storage"
)

func table(t *testing.T, name string) *storage.Table {
	t.Helper()
	tbl, err := storage.LookupTable(name)
	require.NoError(t, err)
	return tbl
}

func TestSelect(t *testing.T) {
	tbl := table(t, storage.TableCategories)
	q := backend.Query{
		Table:   storage.TableCategories,
		Filters: []backend.Filter{backend.IsNull("organization_id"), backend.Eq("user_id", "u1")},
		Order:   []backend.Order{backend.Desc("created_at")},
		Limit:   10,
		Offset:  20,
	}

	stmt, err := Select(Postgres{}, tbl, q)
	require.NoError(t, err)
	assert.Equal(t,
		`SELECT "id", "user_id", "organization_id", "name", "kind", "color", "created_at", "updated_at" FROM "categories"`+
			` WHERE "organization_id" IS NULL AND "user_id" = $1 ORDER BY "created_at" DESC LIMIT 10 OFFSET 20`,
		stmt.SQL)
	assert.Equal(t, []any{"u1"}, stmt.Args)
}

func TestSelect_OffsetWithoutLimit(t *testing.T) {
	tbl := table(t, storage.TableCategories)

	stmt, err := Select(SQLite{}, tbl, backend.Query{Offset: 5})
	require.NoError(t, err)
	assert.Contains(t, stmt.SQL, " LIMIT -1 OFFSET 5")

	stmt, err = Select(Postgres{}, tbl, backend.Query{Offset: 5})
	require.NoError(t, err)
	assert.Contains(t, stmt.SQL, " LIMIT ALL OFFSET 5")
}

func TestSelect_In(t *testing.T) {
	tbl := table(t, storage.TableOrganizations)

	stmt, err := Select(Postgres{}, tbl, backend.Query{Filters: []backend.Filter{backend.In("id", "a", "b")}})
	require.NoError(t, err)
	assert.Contains(t, stmt.SQL, `WHERE "id" IN ($1, $2)`)
	assert.Equal(t, []any{"a", "b"}, stmt.Args)

	stmt, err = Select(Postgres{}, tbl, backend.Query{Filters: []backend.Filter{backend.In("id")}})
	require.NoError(t, err)
	assert.Contains(t, stmt.SQL, "WHERE 1 = 0")
	assert.Empty(t, stmt.Args)
}

func TestInsert_SQLiteArgs(t *testing.T) {
	tbl := table(t, storage.TableWallets)
	now := time.Date(2026, 10, 16, 8, 0, 0, 0, time.UTC)
	row := backend.Row{
		"id":              "w1",
		"name":            "Cash",
		"initial_balance": decimal.RequireFromString("10.50"),
		"created_at":      now,
	}

	stmt := Insert(SQLite{}, tbl, row)
	assert.Contains(t, stmt.SQL, `INSERT INTO "wallets" ("created_at", "id", "initial_balance", "name") VALUES (?, ?, ?, ?)`)
	assert.Contains(t, stmt.SQL, ` RETURNING "id", `)
	assert.Equal(t, []any{"2026-10-16T08:00:00.000000000Z", "w1", "10.5", "Cash"}, stmt.Args)
}

func TestUpdate(t *testing.T) {
	tbl := table(t, storage.TableWallets)

	stmt, err := Update(Postgres{}, tbl, []backend.Filter{backend.Eq("id", "w1")}, backend.Row{"name": "Bank"})
	require.NoError(t, err)
	assert.Contains(t, stmt.SQL, `UPDATE "wallets" SET "name" = $1 WHERE "id" = $2 RETURNING`)
	assert.Equal(t, []any{"Bank", "w1"}, stmt.Args)
}

func TestDelete(t *testing.T) {
	tbl := table(t, storage.TableWallets)

	stmt, err := Delete(SQLite{}, tbl, []backend.Filter{backend.Eq("id", "w1"), backend.Eq("user_id", "u1")})
	require.NoError(t, err)
	assert.Equal(t, `DELETE FROM "wallets" WHERE "id" = ? AND "user_id" = ?`, stmt.SQL)
}

func TestUpsert(t *testing.T) {
	tbl := table(t, storage.TableEpisodeStatus)
	row := backend.Row{
		"id":         "s1",
		"user_id":    "u1",
		"episode_id": "e1",
		"status":     "watched",
		"watched_at": nil,
		"created_at": "c",
		"updated_at": "u",
	}

	stmt := Upsert(Postgres{}, tbl, row, []string{"user_id", "episode_id"})
	assert.Contains(t, stmt.SQL, `ON CONFLICT ("user_id", "episode_id") DO UPDATE SET `+
		`"status" = excluded."status", "updated_at" = excluded."updated_at", "watched_at" = excluded."watched_at"`)
	assert.NotContains(t, stmt.SQL, `"id" = excluded`)
	assert.NotContains(t, stmt.SQL, `"created_at" = excluded`)
}
