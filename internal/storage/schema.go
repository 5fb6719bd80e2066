package storage

import (
	"database/sql/driver"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mmynk/lifeboard/internal/apperr"
	"github.com/mmynk/lifeboard/internal/backend"
)

// TimeLayout is how timestamps travel in rows and how SQLite stores them.
// Fixed width so that string order is time order.
const TimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// FormatTime renders t in TimeLayout, in UTC.
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

// ColumnType drives value coercion and storage per dialect.
type ColumnType int

const (
	Text ColumnType = iota
	Integer
	Numeric
	Timestamp
)

// Column is one column of a table.
type Column struct {
	Name string
	Type ColumnType
}

// Table describes one table exposed through the table API.
type Table struct {
	Name    string
	Columns []Column

	// Scoped tables carry user_id and a nullable organization_id partition.
	Scoped bool
	// Owned tables carry a user_id and are private to that user.
	Owned bool
	// Catalog tables hang off a scoped parent and are visible with it.
	Catalog bool
}

// Server-managed columns.
const (
	ColID             = "id"
	ColUserID         = "user_id"
	ColOrganizationID = "organization_id"
	ColCreatedAt      = "created_at"
	ColUpdatedAt      = "updated_at"
)

// Table names.
const (
	TableUserRoles         = "user_roles"
	TableOrganizations     = "organizations"
	TableOrganizationUsers = "organization_members"
	TableWallets           = "wallets"
	TableCategories        = "categories"
	TableTransactions      = "transactions"
	TableBudgets           = "budgets"
	TableLoans             = "loans"
	TableUniverses         = "universes"
	TableShows             = "shows"
	TableEpisodes          = "episodes"
	TableEpisodeStatus     = "user_episode_status"
)

func audit(cols ...Column) []Column {
	out := []Column{{ColID, Text}}
	out = append(out, cols...)
	return append(out, Column{ColCreatedAt, Timestamp}, Column{ColUpdatedAt, Timestamp})
}

func scoped(cols ...Column) []Column {
	return audit(append([]Column{{ColUserID, Text}, {ColOrganizationID, Text}}, cols...)...)
}

var tables = []*Table{
	{
		Name:    TableUserRoles,
		Columns: []Column{{ColID, Text}, {ColUserID, Text}, {"role", Text}, {ColCreatedAt, Timestamp}},
		Owned:   true,
	},
	{
		Name:    TableOrganizations,
		Columns: audit(Column{"name", Text}, Column{"description", Text}, Column{"creator_id", Text}),
	},
	{
		Name:    TableOrganizationUsers,
		Columns: audit(Column{ColOrganizationID, Text}, Column{ColUserID, Text}, Column{"role", Text}),
		Owned:   true,
	},
	{
		Name: TableWallets,
		Columns: scoped(
			Column{"name", Text}, Column{"type", Text}, Column{"currency", Text},
			Column{"initial_balance", Numeric},
		),
		Scoped: true,
	},
	{
		Name:    TableCategories,
		Columns: scoped(Column{"name", Text}, Column{"kind", Text}, Column{"color", Text}),
		Scoped:  true,
	},
	{
		Name: TableTransactions,
		Columns: scoped(
			Column{"wallet_id", Text}, Column{"category_id", Text}, Column{"kind", Text},
			Column{"amount", Numeric}, Column{"note", Text}, Column{"occurred_on", Text},
		),
		Scoped: true,
	},
	{
		Name: TableBudgets,
		Columns: scoped(
			Column{"category_id", Text}, Column{"name", Text}, Column{"amount", Numeric},
			Column{"starts_on", Text}, Column{"ends_on", Text},
		),
		Scoped: true,
	},
	{
		Name: TableLoans,
		Columns: scoped(
			Column{"counterparty", Text}, Column{"direction", Text}, Column{"amount", Numeric},
			Column{"paid", Numeric}, Column{"due_on", Text}, Column{"note", Text},
		),
		Scoped: true,
	},
	{
		Name:    TableUniverses,
		Columns: scoped(Column{"name", Text}, Column{"description", Text}),
		Scoped:  true,
	},
	{
		Name: TableShows,
		Columns: audit(
			Column{"universe_id", Text}, Column{"title", Text}, Column{"kind", Text},
			Column{"release_year", Integer}, Column{"sort_order", Integer},
		),
		Catalog: true,
	},
	{
		Name: TableEpisodes,
		Columns: audit(
			Column{"show_id", Text}, Column{"season", Integer}, Column{"number", Integer},
			Column{"title", Text}, Column{"air_date", Text},
		),
		Catalog: true,
	},
	{
		Name: TableEpisodeStatus,
		Columns: audit(
			Column{ColUserID, Text}, Column{"episode_id", Text}, Column{"status", Text},
			Column{"watched_at", Timestamp},
		),
		Owned: true,
	},
}

var tablesByName = func() map[string]*Table {
	m := make(map[string]*Table, len(tables))
	for _, t := range tables {
		m[t.Name] = t
	}
	return m
}()

// LookupTable returns the table named name, or a validation error for tables
// the API does not expose.
func LookupTable(name string) (*Table, error) {
	t, ok := tablesByName[name]
	if !ok {
		return nil, apperr.Validation("unknown table %q", name)
	}
	return t, nil
}

// Tables returns every exposed table.
func Tables() []*Table {
	return slices.Clone(tables)
}

// Has reports whether t has a column named name.
func (t *Table) Has(name string) bool {
	_, ok := t.column(name)
	return ok
}

func (t *Table) column(name string) (Column, bool) {
	for _, c := range t.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

// ColumnNames returns the column names in declaration order.
func (t *Table) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

// Type returns the type of column name.
func (t *Table) Type(name string) ColumnType {
	c, _ := t.column(name)
	return c.Type
}

func serverManaged(name string) bool {
	return name == ColID || name == ColCreatedAt || name == ColUpdatedAt
}

// PrepareInsert validates and coerces row for insertion into t, assigning a
// fresh id and the timestamps. Columns the caller omits are stored as NULL.
func (t *Table) PrepareInsert(row backend.Row, now time.Time) (backend.Row, error) {
	out, err := t.coerceValues(row)
	if err != nil {
		return nil, err
	}
	out[ColID] = uuid.New().String()
	if t.Has(ColCreatedAt) {
		out[ColCreatedAt] = now.UTC()
	}
	if t.Has(ColUpdatedAt) {
		out[ColUpdatedAt] = now.UTC()
	}
	return out, nil
}

// PrepareUpdate validates and coerces the values of an update, stamping
// updated_at. Server-managed columns cannot be set.
func (t *Table) PrepareUpdate(values backend.Row, now time.Time) (backend.Row, error) {
	if len(values) == 0 {
		return nil, apperr.Validation("update of %s has no values", t.Name)
	}
	out, err := t.coerceValues(values)
	if err != nil {
		return nil, err
	}
	if t.Has(ColUpdatedAt) {
		out[ColUpdatedAt] = now.UTC()
	}
	return out, nil
}

func (t *Table) coerceValues(row backend.Row) (backend.Row, error) {
	out := make(backend.Row, len(row)+3)
	for name, v := range row {
		col, ok := t.column(name)
		if !ok {
			return nil, apperr.FieldInvalid(name, "column %q does not exist on %s", name, t.Name)
		}
		if serverManaged(name) {
			continue
		}
		cv, err := Coerce(col, v)
		if err != nil {
			return nil, err
		}
		out[name] = cv
	}
	return out, nil
}

// ValidateConflict checks upsert conflict columns.
func (t *Table) ValidateConflict(conflict []string) error {
	if len(conflict) == 0 {
		return apperr.Validation("upsert on %s needs conflict columns", t.Name)
	}
	for _, c := range conflict {
		if !t.Has(c) {
			return apperr.Validation("conflict column %q does not exist on %s", c, t.Name)
		}
	}
	return nil
}

// CoerceFilters validates filters against t and coerces their values.
func (t *Table) CoerceFilters(filters []backend.Filter) ([]backend.Filter, error) {
	out := make([]backend.Filter, 0, len(filters))
	for _, f := range filters {
		col, ok := t.column(f.Column)
		if !ok {
			return nil, apperr.Validation("filter column %q does not exist on %s", f.Column, t.Name)
		}
		switch f.Op {
		case backend.OpIsNull, backend.OpNotNull:
			out = append(out, backend.Filter{Column: f.Column, Op: f.Op})
		case backend.OpIn:
			values, ok := f.Value.([]any)
			if !ok {
				return nil, apperr.Validation("filter %s in needs a list value", f.Column)
			}
			coerced := make([]any, len(values))
			for i, v := range values {
				cv, err := Coerce(col, v)
				if err != nil {
					return nil, err
				}
				coerced[i] = cv
			}
			out = append(out, backend.Filter{Column: f.Column, Op: f.Op, Value: coerced})
		case backend.OpEq, backend.OpNeq, backend.OpGt, backend.OpGte, backend.OpLt, backend.OpLte:
			if f.Value == nil {
				return nil, apperr.Validation("filter %s %s needs a value; use is_null for nulls", f.Column, f.Op)
			}
			cv, err := Coerce(col, f.Value)
			if err != nil {
				return nil, err
			}
			out = append(out, backend.Filter{Column: f.Column, Op: f.Op, Value: cv})
		default:
			return nil, apperr.Validation("unknown filter operator %q", f.Op)
		}
	}
	return out, nil
}

// ValidateQuery checks order columns and pagination of q against t.
func (t *Table) ValidateQuery(q backend.Query) error {
	for _, o := range q.Order {
		if !t.Has(o.Column) {
			return apperr.Validation("order column %q does not exist on %s", o.Column, t.Name)
		}
	}
	if q.Limit < 0 || q.Offset < 0 {
		return apperr.Validation("limit and offset must not be negative")
	}
	return nil
}

// Coerce converts a decoded wire value into the canonical Go value for the
// column: string, int64, decimal.Decimal, time.Time or nil.
func Coerce(col Column, v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	invalid := func() error {
		return apperr.FieldInvalid(col.Name, "invalid value for %s: %v", col.Name, v)
	}

	switch col.Type {
	case Text:
		switch x := v.(type) {
		case string:
			return x, nil
		case fmt.Stringer:
			return x.String(), nil
		}
		return nil, invalid()

	case Integer:
		switch x := v.(type) {
		case int:
			return int64(x), nil
		case int32:
			return int64(x), nil
		case int64:
			return x, nil
		case float64:
			if x != float64(int64(x)) {
				return nil, invalid()
			}
			return int64(x), nil
		case string:
			n, err := strconv.ParseInt(x, 10, 64)
			if err != nil {
				return nil, invalid()
			}
			return n, nil
		}
		return nil, invalid()

	case Numeric:
		switch x := v.(type) {
		case decimal.Decimal:
			return x, nil
		case string:
			d, err := decimal.NewFromString(strings.TrimSpace(x))
			if err != nil {
				return nil, invalid()
			}
			return d, nil
		case float64:
			return decimal.NewFromFloat(x), nil
		case int64:
			return decimal.NewFromInt(x), nil
		case int:
			return decimal.NewFromInt(int64(x)), nil
		}
		return nil, invalid()

	case Timestamp:
		switch x := v.(type) {
		case time.Time:
			return x.UTC(), nil
		case string:
			ts, err := time.Parse(time.RFC3339Nano, x)
			if err != nil {
				return nil, invalid()
			}
			return ts.UTC(), nil
		}
		return nil, invalid()
	}
	return nil, invalid()
}

// Normalize converts a value read from a driver into its row form: string
// for text, numeric and timestamps (TimeLayout), int64 for integers.
func Normalize(typ ColumnType, v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch typ {
	case Integer:
		switch x := v.(type) {
		case int64:
			return x, nil
		case int32:
			return int64(x), nil
		case int:
			return int64(x), nil
		case float64:
			return int64(x), nil
		case string:
			return strconv.ParseInt(x, 10, 64)
		}
	case Numeric:
		switch x := v.(type) {
		case string:
			return x, nil
		case []byte:
			return string(x), nil
		case float64:
			return decimal.NewFromFloat(x).String(), nil
		case int64:
			return strconv.FormatInt(x, 10), nil
		case decimal.Decimal:
			return x.String(), nil
		case driver.Valuer:
			dv, err := x.Value()
			if err != nil {
				return nil, err
			}
			return Normalize(typ, dv)
		case fmt.Stringer:
			return x.String(), nil
		}
	case Timestamp:
		switch x := v.(type) {
		case time.Time:
			return FormatTime(x), nil
		case string:
			return x, nil
		case []byte:
			return string(x), nil
		}
	default:
		switch x := v.(type) {
		case string:
			return x, nil
		case []byte:
			return string(x), nil
		}
	}
	return nil, fmt.Errorf("unexpected %T value for column type %d", v, typ)
}

// RowFromValues builds a row from driver values read in t.Columns order.
func (t *Table) RowFromValues(values []any) (backend.Row, error) {
	if len(values) != len(t.Columns) {
		return nil, fmt.Errorf("%s: got %d values for %d columns", t.Name, len(values), len(t.Columns))
	}
	row := make(backend.Row, len(values))
	for i, c := range t.Columns {
		v, err := Normalize(c.Type, values[i])
		if err != nil {
			return nil, fmt.Errorf("%s.%s: %w", t.Name, c.Name, err)
		}
		row[c.Name] = v
	}
	return row, nil
}
