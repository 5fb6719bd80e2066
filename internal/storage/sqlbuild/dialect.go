package sqlbuild

import (
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mmynk/lifeboard/internal/storage"
)

// SQLite binds with "?" and stores numerics and timestamps as text.
type SQLite struct{}

func (SQLite) Placeholder(int) string { return "?" }

func (SQLite) Arg(v any) any {
	switch x := v.(type) {
	case decimal.Decimal:
		return x.String()
	case time.Time:
		return storage.FormatTime(x)
	}
	return v
}

func (SQLite) NoLimit() string { return "-1" }

// Postgres binds with "$n". Numerics go over as text so NUMERIC keeps its
// exact scale; timestamps go as time.Time.
type Postgres struct{}

func (Postgres) Placeholder(n int) string { return "$" + strconv.Itoa(n) }

func (Postgres) Arg(v any) any {
	if x, ok := v.(decimal.Decimal); ok {
		return x.String()
	}
	return v
}

func (Postgres) NoLimit() string { return "ALL" }
