package wire

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmynk/lifeboard/internal/backend"
)

func TestQueryRoundTrip(t *testing.T) {
	q := backend.Query{
		Table: "transactions",
		Filters: []backend.Filter{
			backend.IsNull("organization_id"),
			backend.Eq("wallet_id", "w1"),
			backend.Gte("amount", decimal.RequireFromString("10.50")),
			backend.In("kind", "income", "expense"),
		},
		Order:  []backend.Order{backend.Desc("created_at")},
		Limit:  20,
		Offset: 40,
	}

	msg, err := EncodeQuery(q)
	require.NoError(t, err)
	got, err := DecodeQuery(msg)
	require.NoError(t, err)

	assert.Equal(t, "transactions", got.Table)
	assert.Equal(t, 20, got.Limit)
	assert.Equal(t, 40, got.Offset)
	assert.Equal(t, []backend.Order{{Column: "created_at", Descending: true}}, got.Order)
	require.Len(t, got.Filters, 4)
	assert.Equal(t, backend.Filter{Column: "organization_id", Op: backend.OpIsNull}, got.Filters[0])
	assert.Equal(t, "10.5", got.Filters[2].Value)
	assert.Equal(t, []any{"income", "expense"}, got.Filters[3].Value)
}

func TestRowValues(t *testing.T) {
	at := time.Date(2026, 10, 16, 9, 30, 0, 0, time.UTC)
	s, err := EncodeRow(backend.Row{
		"name":       "Cash",
		"number":     int64(3),
		"amount":     decimal.RequireFromString("1.25"),
		"watched_at": at,
		"org":        nil,
	})
	require.NoError(t, err)

	row := DecodeRow(s)
	assert.Equal(t, "Cash", row["name"])
	assert.Equal(t, float64(3), row["number"])
	assert.Equal(t, "1.25", row["amount"])
	assert.Equal(t, "2026-10-16T09:30:00Z", row["watched_at"])
	assert.Nil(t, row["org"])
}

func TestSession(t *testing.T) {
	v := EncodeSession(nil)
	got, err := DecodeSession(v)
	require.NoError(t, err)
	assert.Nil(t, got)

	in := &backend.Session{
		UserID: "u1", Email: "a@example.com", DisplayName: "A",
		AccessToken: "tok", ExpiresAt: time.Date(2026, 10, 17, 0, 0, 0, 0, time.UTC),
	}
	got, err = DecodeSession(EncodeSession(in))
	require.NoError(t, err)
	assert.Equal(t, in, got)
}

func TestDecodeFiltersRejectsIncomplete(t *testing.T) {
	v, err := EncodeFilters([]backend.Filter{{Column: "", Op: backend.OpEq, Value: "x"}})
	require.NoError(t, err)
	_, err = DecodeFilters(v)
	assert.Error(t, err)
}
