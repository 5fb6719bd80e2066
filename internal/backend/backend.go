// Package backend defines the opaque table-style backend the client core
// talks to: collections with row-level filters, insert/update/delete/upsert
// per table, and a session/auth subsystem.
package backend

import (
	"context"
	"time"
)

// Row is one record keyed by column name.
type Row map[string]any

// Op is a filter operator.
type Op string

const (
	OpEq      Op = "eq"
	OpNeq     Op = "neq"
	OpIsNull  Op = "is_null"
	OpNotNull Op = "not_null"
	OpGt      Op = "gt"
	OpGte     Op = "gte"
	OpLt      Op = "lt"
	OpLte     Op = "lte"
	OpIn      Op = "in"
)

// Filter restricts a query to rows where Column Op Value holds.
type Filter struct {
	Column string
	Op     Op
	Value  any
}

func Eq(column string, value any) Filter  { return Filter{Column: column, Op: OpEq, Value: value} }
func Neq(column string, value any) Filter { return Filter{Column: column, Op: OpNeq, Value: value} }
func IsNull(column string) Filter         { return Filter{Column: column, Op: OpIsNull} }
func NotNull(column string) Filter        { return Filter{Column: column, Op: OpNotNull} }
func Gte(column string, value any) Filter { return Filter{Column: column, Op: OpGte, Value: value} }
func Lte(column string, value any) Filter { return Filter{Column: column, Op: OpLte, Value: value} }

// In matches rows whose column equals any of values.
func In(column string, values ...string) Filter {
	vs := make([]any, len(values))
	for i, v := range values {
		vs[i] = v
	}
	return Filter{Column: column, Op: OpIn, Value: vs}
}

// Order sorts query results.
type Order struct {
	Column     string
	Descending bool
}

func Asc(column string) Order  { return Order{Column: column} }
func Desc(column string) Order { return Order{Column: column, Descending: true} }

// Query selects rows from one table.
type Query struct {
	Table   string
	Filters []Filter
	Order   []Order
	// Limit and Offset implement range pagination. Zero Limit means no limit.
	Limit  int
	Offset int
}

// Tables is the CRUD half of the backend.
type Tables interface {
	// Select returns the rows of q.Table matching every filter.
	Select(ctx context.Context, q Query) ([]Row, error)

	// Insert creates a row. The backend assigns id and timestamps and
	// returns the stored row.
	Insert(ctx context.Context, table string, row Row) (Row, error)

	// Update applies values to every row matching filters and returns the
	// updated rows.
	Update(ctx context.Context, table string, filters []Filter, values Row) ([]Row, error)

	// Delete removes every row matching filters and returns how many went.
	Delete(ctx context.Context, table string, filters []Filter) (int, error)

	// Upsert inserts row, or updates the existing row that has the same
	// values in the conflict columns, in one atomic statement.
	Upsert(ctx context.Context, table string, row Row, conflict []string) (Row, error)
}

// Session identifies the signed-in user.
type Session struct {
	UserID      string
	Email       string
	DisplayName string
	AccessToken string
	ExpiresAt   time.Time
}

// SignUpParams is the payload for creating an account.
type SignUpParams struct {
	Email       string
	DisplayName string
	Password    string
	// AdminCode, when it matches the backend's configured code, grants the
	// admin role at signup.
	AdminCode string
}

// Auth is the session half of the backend.
type Auth interface {
	// Session returns the current session, or nil with no error when
	// nobody is signed in.
	Session(ctx context.Context) (*Session, error)
	SignUp(ctx context.Context, params SignUpParams) (*Session, error)
	SignIn(ctx context.Context, email, password string) (*Session, error)
	SignOut(ctx context.Context) error
	// Roles returns the role strings assigned to userID.
	Roles(ctx context.Context, userID string) ([]string, error)
}

// Backend is everything the client core needs from the remote service.
type Backend interface {
	Tables
	Auth
}
