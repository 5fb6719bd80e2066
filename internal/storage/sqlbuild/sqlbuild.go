// Package sqlbuild renders table API operations into parameterized SQL for
// the supported dialects. Callers validate and coerce tables, filters and
// values with the storage schema first; identifiers are only ever taken
// from the schema.
package sqlbuild

import (
	"fmt"
	"sort"
	"strings"

	"github.com/mmynk/lifeboard/internal/backend"
	"github.com/mmynk/lifeboard/internal/storage"
)

// Dialect covers the differences between SQLite and PostgreSQL that the
// builder cares about.
type Dialect interface {
	// Placeholder returns the n-th (1-based) bind parameter.
	Placeholder(n int) string
	// Arg converts a coerced value into a driver argument.
	Arg(v any) any
	// NoLimit is the LIMIT operand meaning "no limit" when only OFFSET is set.
	NoLimit() string
}

// Statement is a rendered SQL statement.
type Statement struct {
	SQL  string
	Args []any
}

type builder struct {
	d    Dialect
	sb   strings.Builder
	args []any
}

func (b *builder) bind(v any) string {
	b.args = append(b.args, b.d.Arg(v))
	return b.d.Placeholder(len(b.args))
}

func (b *builder) statement() Statement {
	return Statement{SQL: b.sb.String(), Args: b.args}
}

func quote(name string) string {
	return `"` + name + `"`
}

func columnList(names []string) string {
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = quote(n)
	}
	return strings.Join(quoted, ", ")
}

var comparisons = map[backend.Op]string{
	backend.OpEq:  "=",
	backend.OpNeq: "<>",
	backend.OpGt:  ">",
	backend.OpGte: ">=",
	backend.OpLt:  "<",
	backend.OpLte: "<=",
}

func (b *builder) where(filters []backend.Filter) error {
	if len(filters) == 0 {
		return nil
	}
	b.sb.WriteString(" WHERE ")
	for i, f := range filters {
		if i > 0 {
			b.sb.WriteString(" AND ")
		}
		col := quote(f.Column)
		switch f.Op {
		case backend.OpIsNull:
			b.sb.WriteString(col + " IS NULL")
		case backend.OpNotNull:
			b.sb.WriteString(col + " IS NOT NULL")
		case backend.OpIn:
			values, _ := f.Value.([]any)
			if len(values) == 0 {
				b.sb.WriteString("1 = 0")
				continue
			}
			holders := make([]string, len(values))
			for j, v := range values {
				holders[j] = b.bind(v)
			}
			b.sb.WriteString(col + " IN (" + strings.Join(holders, ", ") + ")")
		default:
			cmp, ok := comparisons[f.Op]
			if !ok {
				return fmt.Errorf("unsupported operator %q", f.Op)
			}
			b.sb.WriteString(col + " " + cmp + " " + b.bind(f.Value))
		}
	}
	return nil
}

func (b *builder) returning(t *storage.Table) {
	b.sb.WriteString(" RETURNING ")
	b.sb.WriteString(columnList(t.ColumnNames()))
}

// sortedKeys gives statements a stable column order.
func sortedKeys(row backend.Row) []string {
	keys := make([]string, 0, len(row))
	for k := range row {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Select renders a query over every column of t.
func Select(d Dialect, t *storage.Table, q backend.Query) (Statement, error) {
	b := &builder{d: d}
	b.sb.WriteString("SELECT " + columnList(t.ColumnNames()) + " FROM " + quote(t.Name))
	if err := b.where(q.Filters); err != nil {
		return Statement{}, err
	}
	if len(q.Order) > 0 {
		parts := make([]string, len(q.Order))
		for i, o := range q.Order {
			dir := "ASC"
			if o.Descending {
				dir = "DESC"
			}
			parts[i] = quote(o.Column) + " " + dir
		}
		b.sb.WriteString(" ORDER BY " + strings.Join(parts, ", "))
	}
	switch {
	case q.Limit > 0:
		fmt.Fprintf(&b.sb, " LIMIT %d", q.Limit)
	case q.Offset > 0:
		b.sb.WriteString(" LIMIT " + d.NoLimit())
	}
	if q.Offset > 0 {
		fmt.Fprintf(&b.sb, " OFFSET %d", q.Offset)
	}
	return b.statement(), nil
}

// Insert renders an insert of row returning the stored row.
func Insert(d Dialect, t *storage.Table, row backend.Row) Statement {
	b := &builder{d: d}
	b.insert(t, row)
	b.returning(t)
	return b.statement()
}

func (b *builder) insert(t *storage.Table, row backend.Row) []string {
	cols := sortedKeys(row)
	holders := make([]string, len(cols))
	for i, c := range cols {
		holders[i] = b.bind(row[c])
	}
	b.sb.WriteString("INSERT INTO " + quote(t.Name) + " (" + columnList(cols) + ") VALUES (" + strings.Join(holders, ", ") + ")")
	return cols
}

// Update renders an update of every row matching filters.
func Update(d Dialect, t *storage.Table, filters []backend.Filter, values backend.Row) (Statement, error) {
	b := &builder{d: d}
	cols := sortedKeys(values)
	sets := make([]string, len(cols))
	for i, c := range cols {
		sets[i] = quote(c) + " = " + b.bind(values[c])
	}
	b.sb.WriteString("UPDATE " + quote(t.Name) + " SET " + strings.Join(sets, ", "))
	if err := b.where(filters); err != nil {
		return Statement{}, err
	}
	b.returning(t)
	return b.statement(), nil
}

// Delete renders a delete of every row matching filters.
func Delete(d Dialect, t *storage.Table, filters []backend.Filter) (Statement, error) {
	b := &builder{d: d}
	b.sb.WriteString("DELETE FROM " + quote(t.Name))
	if err := b.where(filters); err != nil {
		return Statement{}, err
	}
	return b.statement(), nil
}

// Upsert renders an insert that, on a conflict over the conflict columns,
// updates the existing row in the same statement. The id and created_at of
// an existing row are kept.
func Upsert(d Dialect, t *storage.Table, row backend.Row, conflict []string) Statement {
	b := &builder{d: d}
	cols := b.insert(t, row)

	var sets []string
	for _, c := range cols {
		if c == storage.ColID || c == storage.ColCreatedAt || contains(conflict, c) {
			continue
		}
		sets = append(sets, quote(c)+" = excluded."+quote(c))
	}
	b.sb.WriteString(" ON CONFLICT (" + columnList(conflict) + ")")
	if len(sets) == 0 {
		// Nothing to change; touch a conflict column so RETURNING still yields the row.
		sets = append(sets, quote(conflict[0])+" = excluded."+quote(conflict[0]))
	}
	b.sb.WriteString(" DO UPDATE SET " + strings.Join(sets, ", "))
	b.returning(t)
	return b.statement()
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
