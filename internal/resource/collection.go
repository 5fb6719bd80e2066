// Package resource implements the tenancy-scoped data hooks of the client
// core. Every hook reads through the query cache, stamps the active tenancy
// onto new rows and invalidates the declared graph after successful writes.
package resource

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/mmynk/lifeboard/internal/apperr"
	"github.com/mmynk/lifeboard/internal/backend"
	"github.com/mmynk/lifeboard/internal/models"
	"github.com/mmynk/lifeboard/internal/notify"
	"github.com/mmynk/lifeboard/internal/querycache"
	"github.com/mmynk/lifeboard/internal/storage"
	"github.com/mmynk/lifeboard/internal/tenancy"
)

// Deps are the collaborators every hook is constructed with.
type Deps struct {
	Backend  backend.Backend
	Tenancy  *tenancy.Context
	Cache    *querycache.Cache
	Notifier notify.Notifier
	Logger   *slog.Logger
	Now      func() time.Time
}

func (d *Deps) normalize() error {
	if d.Backend == nil || d.Tenancy == nil || d.Cache == nil {
		return fmt.Errorf("resource: backend, tenancy and cache are required")
	}
	if d.Notifier == nil {
		d.Notifier = notify.Nop
	}
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	return nil
}

// session returns the signed-in session, or nil.
func (d *Deps) session(ctx context.Context) (*backend.Session, error) {
	return d.Backend.Session(ctx)
}

// mutated invalidates the graph for kind and reports success.
func (d *Deps) mutated(kind querycache.Kind, title string) {
	d.Cache.Invalidate(kind)
	d.Notifier.Notify(notify.Success(title, ""))
}

// failed reports a backend failure verbatim and returns it.
func (d *Deps) failed(title string, err error) error {
	d.Notifier.Notify(notify.Error(title, err))
	d.Logger.Warn(title, "error", err)
	return err
}

// ScopeFilters returns the tenancy filters for a partitioned read:
// organization_id IS NULL and user_id = userID under Personal,
// organization_id = id otherwise.
func ScopeFilters(s tenancy.Selection, userID string) []backend.Filter {
	if s.IsPersonal() {
		return []backend.Filter{
			backend.IsNull(storage.ColOrganizationID),
			backend.Eq(storage.ColUserID, userID),
		}
	}
	return []backend.Filter{backend.Eq(storage.ColOrganizationID, s.ID())}
}

// Spec describes one table-backed resource.
type Spec struct {
	Kind  querycache.Kind
	Table string
	// Noun names one row in notifications, e.g. "wallet".
	Noun string
	// Order of List results. Defaults to created_at descending.
	Order []backend.Order
	// Partitioned resources carry organization_id and are read and
	// written under the active tenancy.
	Partitioned bool
}

// Collection is the generic hook over one resource. T is the row model and
// D the draft accepted by Create.
type Collection[T any, D models.Validator] struct {
	deps *Deps
	spec Spec
}

// NewCollection returns a hook for spec.
func NewCollection[T any, D models.Validator](deps *Deps, spec Spec) *Collection[T, D] {
	if len(spec.Order) == 0 {
		spec.Order = []backend.Order{backend.Desc(storage.ColCreatedAt)}
	}
	return &Collection[T, D]{deps: deps, spec: spec}
}

// Spec returns the resource description.
func (c *Collection[T, D]) Spec() Spec {
	return c.spec
}

// List returns the collection under the active tenancy. Unauthenticated
// callers get an empty slice.
func (c *Collection[T, D]) List(ctx context.Context) ([]T, error) {
	return c.query(ctx, "", nil, 0, 0)
}

// query reads the collection with extra filters, cached under variant.
func (c *Collection[T, D]) query(ctx context.Context, variant string, extra []backend.Filter, limit, offset int) ([]T, error) {
	session, err := c.deps.session(ctx)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return []T{}, nil
	}

	selection := c.deps.Tenancy.Current()
	var filters []backend.Filter
	if c.spec.Partitioned {
		filters = ScopeFilters(selection, session.UserID)
	}
	filters = append(filters, extra...)

	key := querycache.Key{Kind: c.spec.Kind, UserID: session.UserID, TenantID: selection.ID(), Variant: variant}
	return querycache.Fetch(ctx, c.deps.Cache, key, func(ctx context.Context) ([]T, error) {
		rows, err := c.deps.Backend.Select(ctx, backend.Query{
			Table:   c.spec.Table,
			Filters: filters,
			Order:   slices.Clone(c.spec.Order),
			Limit:   limit,
			Offset:  offset,
		})
		if err != nil {
			return nil, err
		}
		return backend.DecodeRows[T](rows)
	})
}

// Get returns one row by id, or a NotFound error.
func (c *Collection[T, D]) Get(ctx context.Context, id string) (*T, error) {
	rows, err := c.query(ctx, "id="+id, []backend.Filter{backend.Eq(storage.ColID, id)}, 1, 0)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, apperr.NotFound("%s %s not found", c.spec.Noun, id)
	}
	return &rows[0], nil
}

// fetch is Get straight from the backend, for read-modify-write updates.
func (c *Collection[T, D]) fetch(ctx context.Context, id string) (*T, error) {
	session, err := c.deps.session(ctx)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, apperr.NotFound("%s %s not found", c.spec.Noun, id)
	}
	var filters []backend.Filter
	if c.spec.Partitioned {
		filters = ScopeFilters(c.deps.Tenancy.Current(), session.UserID)
	}
	rows, err := c.deps.Backend.Select(ctx, backend.Query{
		Table:   c.spec.Table,
		Filters: append(filters, backend.Eq(storage.ColID, id)),
		Limit:   1,
	})
	if err != nil {
		return nil, err
	}
	items, err := backend.DecodeRows[T](rows)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, apperr.NotFound("%s %s not found", c.spec.Noun, id)
	}
	return &items[0], nil
}

// Create validates draft and inserts it under the active tenancy. Draft
// validation errors are returned without a notification.
func (c *Collection[T, D]) Create(ctx context.Context, draft D) (*T, error) {
	if err := draft.Validate(); err != nil {
		return nil, err
	}
	row, err := backend.EncodeRow(draft)
	if err != nil {
		return nil, err
	}
	return c.insert(ctx, row)
}

func (c *Collection[T, D]) insert(ctx context.Context, row backend.Row) (*T, error) {
	title := "Failed to create " + c.spec.Noun
	session, err := c.deps.session(ctx)
	if err != nil {
		return nil, c.deps.failed(title, err)
	}
	if session == nil {
		return nil, apperr.Validation("you must be signed in to create a %s", c.spec.Noun)
	}

	if c.spec.Partitioned {
		row[storage.ColUserID] = session.UserID
		row[storage.ColOrganizationID] = c.deps.Tenancy.Current().PartitionValue()
	}

	stored, err := c.deps.Backend.Insert(ctx, c.spec.Table, row)
	if err != nil {
		return nil, c.deps.failed(title, err)
	}
	out, err := backend.DecodeRow[T](stored)
	if err != nil {
		return nil, c.deps.failed(title, err)
	}
	c.deps.mutated(c.spec.Kind, capitalize(c.spec.Noun)+" created")
	return out, nil
}

// Update applies attrs verbatim to the row id.
func (c *Collection[T, D]) Update(ctx context.Context, id string, attrs backend.Row) (*T, error) {
	title := "Failed to update " + c.spec.Noun
	rows, err := c.deps.Backend.Update(ctx, c.spec.Table, []backend.Filter{backend.Eq(storage.ColID, id)}, attrs)
	if err != nil {
		return nil, c.deps.failed(title, err)
	}
	if len(rows) == 0 {
		return nil, c.deps.failed(title, apperr.NotFound("%s %s not found", c.spec.Noun, id))
	}
	out, err := backend.DecodeRow[T](rows[0])
	if err != nil {
		return nil, c.deps.failed(title, err)
	}
	c.deps.mutated(c.spec.Kind, capitalize(c.spec.Noun)+" updated")
	return out, nil
}

// Delete removes the row id.
func (c *Collection[T, D]) Delete(ctx context.Context, id string) error {
	title := "Failed to delete " + c.spec.Noun
	if _, err := c.deps.Backend.Delete(ctx, c.spec.Table, []backend.Filter{backend.Eq(storage.ColID, id)}); err != nil {
		return c.deps.failed(title, err)
	}
	c.deps.mutated(c.spec.Kind, capitalize(c.spec.Noun)+" deleted")
	return nil
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	if s[0] >= 'a' && s[0] <= 'z' {
		return string(s[0]-'a'+'A') + s[1:]
	}
	return s
}
