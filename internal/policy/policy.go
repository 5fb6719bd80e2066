// Package policy enforces row-level access on top of a store: who may read
// and write which rows of the table API. Every call runs on behalf of one
// signed-in user.
//
// Scoped rows (wallets, transactions, ...) are visible to their creator when
// personal and to every member when they belong to an organization.
// Owned rows (roles, memberships, watch status) are private to their user.
// Organizations are visible to their members and editable by their creator.
// Shows and episodes hang off a universe: they are readable and writable by
// whoever can see the parent universe.
package policy

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/mmynk/lifeboard/internal/apperr"
	"github.com/mmynk/lifeboard/internal/backend"
	"github.com/mmynk/lifeboard/internal/models"
	"github.com/mmynk/lifeboard/internal/storage"
)

// ErrNotSignedIn is returned for calls without a user.
var ErrNotSignedIn = apperr.Auth("you must be signed in")

// reference is a column pointing at a row of another table that the caller
// must be able to see.
type reference struct {
	column string
	table  string
}

var references = map[string][]reference{
	storage.TableTransactions: {{"wallet_id", storage.TableWallets}, {"category_id", storage.TableCategories}},
	storage.TableBudgets:      {{"category_id", storage.TableCategories}},
	storage.TableShows:        {{"universe_id", storage.TableUniverses}},
	storage.TableEpisodes:     {{"show_id", storage.TableShows}},
}

// Policy wraps a store with access rules.
type Policy struct {
	store  backend.Tables
	logger *slog.Logger
}

// New returns a policy over store.
func New(store backend.Tables, logger *slog.Logger) *Policy {
	if logger == nil {
		logger = slog.Default()
	}
	return &Policy{store: store, logger: logger}
}

// For returns the table API as seen by userID.
func (p *Policy) For(userID string) backend.Tables {
	return &caller{p: p, userID: userID}
}

type caller struct {
	p      *Policy
	userID string
}

var _ backend.Tables = (*caller)(nil)

func (c *caller) check() error {
	if c.userID == "" {
		return ErrNotSignedIn
	}
	return nil
}

// memberships returns the organization ids the caller belongs to.
func (c *caller) memberships(ctx context.Context) ([]string, error) {
	rows, err := c.p.store.Select(ctx, backend.Query{
		Table:   storage.TableOrganizationUsers,
		Filters: []backend.Filter{backend.Eq(storage.ColUserID, c.userID)},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load memberships: %w", err)
	}
	return backend.Strings(rows, storage.ColOrganizationID), nil
}

func (c *caller) requireMember(ctx context.Context, orgIDs ...string) error {
	member, err := c.memberships(ctx)
	if err != nil {
		return err
	}
	for _, id := range orgIDs {
		if !slices.Contains(member, id) {
			return apperr.Access("you are not a member of organization %s", id)
		}
	}
	return nil
}

func (c *caller) requireOwner(ctx context.Context, orgID string) error {
	rows, err := c.p.store.Select(ctx, backend.Query{
		Table: storage.TableOrganizationUsers,
		Filters: []backend.Filter{
			backend.Eq(storage.ColOrganizationID, orgID),
			backend.Eq(storage.ColUserID, c.userID),
			backend.Eq("role", models.MemberRoleOwner),
		},
	})
	if err != nil {
		return fmt.Errorf("failed to load membership: %w", err)
	}
	if len(rows) == 0 {
		return apperr.Access("only the owner of organization %s can do that", orgID)
	}
	return nil
}

// Select restricts q to rows the caller may see.
func (c *caller) Select(ctx context.Context, q backend.Query) ([]backend.Row, error) {
	if err := c.check(); err != nil {
		return nil, err
	}
	t, err := storage.LookupTable(q.Table)
	if err != nil {
		return nil, err
	}

	switch {
	case t.Scoped:
		filters, err := c.scopeFilters(ctx, q.Filters)
		if err != nil {
			return nil, err
		}
		q.Filters = filters
	case t.Owned:
		q.Filters = append(slices.Clone(q.Filters), backend.Eq(storage.ColUserID, c.userID))
	case t.Name == storage.TableOrganizations:
		member, err := c.memberships(ctx)
		if err != nil {
			return nil, err
		}
		q.Filters = append(slices.Clone(q.Filters), backend.In(storage.ColID, member...))
	case t.Catalog:
		parent, err := c.parentFilter(ctx, t)
		if err != nil {
			return nil, err
		}
		q.Filters = append(slices.Clone(q.Filters), parent)
	default:
		return nil, apperr.Access("table %s is not readable", t.Name)
	}
	return c.p.store.Select(ctx, q)
}

// parentFilter limits a catalog table to rows whose parent the caller can
// see. The first reference of a catalog table is its parent.
func (c *caller) parentFilter(ctx context.Context, t *storage.Table) (backend.Filter, error) {
	refs := references[t.Name]
	if len(refs) == 0 {
		return backend.Filter{}, apperr.Access("table %s is not readable", t.Name)
	}
	ids, err := c.visibleIDs(ctx, refs[0].table)
	if err != nil {
		return backend.Filter{}, err
	}
	return backend.In(refs[0].column, ids...), nil
}

// visibleIDs returns the ids of every row of table the caller can see.
func (c *caller) visibleIDs(ctx context.Context, table string) ([]string, error) {
	t, err := storage.LookupTable(table)
	if err != nil {
		return nil, err
	}
	if t.Catalog {
		parent, err := c.parentFilter(ctx, t)
		if err != nil {
			return nil, err
		}
		rows, err := c.p.store.Select(ctx, backend.Query{Table: table, Filters: []backend.Filter{parent}})
		if err != nil {
			return nil, err
		}
		return backend.Strings(rows, storage.ColID), nil
	}
	if !t.Scoped {
		return nil, fmt.Errorf("policy: %s is neither scoped nor a catalog", table)
	}

	personal, err := c.p.store.Select(ctx, backend.Query{
		Table: table,
		Filters: []backend.Filter{
			backend.IsNull(storage.ColOrganizationID),
			backend.Eq(storage.ColUserID, c.userID),
		},
	})
	if err != nil {
		return nil, err
	}
	ids := backend.Strings(personal, storage.ColID)

	member, err := c.memberships(ctx)
	if err != nil {
		return nil, err
	}
	if len(member) == 0 {
		return ids, nil
	}
	shared, err := c.p.store.Select(ctx, backend.Query{
		Table:   table,
		Filters: []backend.Filter{backend.In(storage.ColOrganizationID, member...)},
	})
	if err != nil {
		return nil, err
	}
	return append(ids, backend.Strings(shared, storage.ColID)...), nil
}

// scopeFilters checks the partition filter of a scoped read. A read of one
// organization requires membership; a personal read, or a read without a
// partition filter, only sees the caller's own rows.
func (c *caller) scopeFilters(ctx context.Context, filters []backend.Filter) ([]backend.Filter, error) {
	out := slices.Clone(filters)
	ownOnly := true
	for _, f := range filters {
		if f.Column != storage.ColOrganizationID {
			continue
		}
		switch f.Op {
		case backend.OpIsNull:
		case backend.OpEq:
			id, ok := f.Value.(string)
			if !ok {
				return nil, apperr.Validation("organization_id filter needs a string value")
			}
			if err := c.requireMember(ctx, id); err != nil {
				return nil, err
			}
			ownOnly = false
		case backend.OpIn:
			values, _ := f.Value.([]any)
			ids := make([]string, 0, len(values))
			for _, v := range values {
				id, ok := v.(string)
				if !ok {
					return nil, apperr.Validation("organization_id filter needs string values")
				}
				ids = append(ids, id)
			}
			if err := c.requireMember(ctx, ids...); err != nil {
				return nil, err
			}
			ownOnly = false
		default:
			return nil, apperr.Validation("organization_id only supports eq, in and is_null filters")
		}
	}
	if ownOnly {
		out = append(out, backend.Eq(storage.ColUserID, c.userID))
	}
	return out, nil
}

// canAccess reports whether the caller may change an existing row of t.
func (c *caller) canAccess(ctx context.Context, t *storage.Table, row backend.Row) error {
	switch {
	case t.Scoped:
		if org, ok := row[storage.ColOrganizationID].(string); ok {
			return c.requireMember(ctx, org)
		}
		if row[storage.ColUserID] != c.userID {
			return apperr.Access("you do not have access to this %s", noun(t))
		}
		return nil
	case t.Owned:
		if t.Name == storage.TableOrganizationUsers && row[storage.ColUserID] != c.userID {
			org, _ := row[storage.ColOrganizationID].(string)
			return c.requireOwner(ctx, org)
		}
		if row[storage.ColUserID] != c.userID {
			return apperr.Access("you do not have access to this %s", noun(t))
		}
		return nil
	case t.Name == storage.TableOrganizations:
		if row["creator_id"] != c.userID {
			return apperr.Access("only the creator can change an organization")
		}
		return nil
	case t.Catalog:
		return c.checkReferences(ctx, t, row)
	}
	return apperr.Access("table %s is not writable", t.Name)
}

// visible loads one row by id and checks the caller may see it.
func (c *caller) visible(ctx context.Context, table, id string) error {
	t, err := storage.LookupTable(table)
	if err != nil {
		return err
	}
	rows, err := c.p.store.Select(ctx, backend.Query{
		Table:   table,
		Filters: []backend.Filter{backend.Eq(storage.ColID, id)},
	})
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return apperr.NotFound("%s %s does not exist", noun(t), id)
	}
	return c.canAccess(ctx, t, rows[0])
}

func (c *caller) checkReferences(ctx context.Context, t *storage.Table, row backend.Row) error {
	for _, ref := range references[t.Name] {
		id, ok := row[ref.column].(string)
		if !ok || id == "" {
			continue
		}
		if err := c.visible(ctx, ref.table, id); err != nil {
			return err
		}
	}
	return nil
}

// Insert stamps ownership onto row and checks the partition it targets.
func (c *caller) Insert(ctx context.Context, table string, row backend.Row) (backend.Row, error) {
	if err := c.check(); err != nil {
		return nil, err
	}
	t, err := storage.LookupTable(table)
	if err != nil {
		return nil, err
	}
	row = cloneRow(row)

	switch {
	case t.Scoped:
		row[storage.ColUserID] = c.userID
		switch v := row[storage.ColOrganizationID].(type) {
		case nil:
			row[storage.ColOrganizationID] = nil
		case string:
			if err := c.requireMember(ctx, v); err != nil {
				return nil, err
			}
		default:
			return nil, apperr.FieldInvalid(storage.ColOrganizationID, "organization_id must be a string or null")
		}
	case t.Name == storage.TableOrganizationUsers:
		org, _ := row[storage.ColOrganizationID].(string)
		if err := c.requireOwner(ctx, org); err != nil {
			return nil, err
		}
	case t.Name == storage.TableUserRoles:
		return nil, apperr.Access("roles are assigned by the server")
	case t.Owned:
		row[storage.ColUserID] = c.userID
	case t.Name == storage.TableOrganizations:
		return c.insertOrganization(ctx, row)
	case t.Catalog:
	default:
		return nil, apperr.Access("table %s is not writable", t.Name)
	}

	if err := c.checkReferences(ctx, t, row); err != nil {
		return nil, err
	}
	return c.p.store.Insert(ctx, table, row)
}

// insertOrganization creates the organization and the caller's owner
// membership. If the membership cannot be stored the organization is
// removed again.
func (c *caller) insertOrganization(ctx context.Context, row backend.Row) (backend.Row, error) {
	row["creator_id"] = c.userID
	org, err := c.p.store.Insert(ctx, storage.TableOrganizations, row)
	if err != nil {
		return nil, err
	}
	orgID, _ := org[storage.ColID].(string)

	_, err = c.p.store.Insert(ctx, storage.TableOrganizationUsers, backend.Row{
		storage.ColOrganizationID: orgID,
		storage.ColUserID:         c.userID,
		"role":                    models.MemberRoleOwner,
	})
	if err != nil {
		if _, derr := c.p.store.Delete(ctx, storage.TableOrganizations, []backend.Filter{backend.Eq(storage.ColID, orgID)}); derr != nil {
			c.p.logger.Error("Failed to roll back organization", "organization_id", orgID, "error", derr)
		}
		return nil, fmt.Errorf("failed to add owner membership: %w", err)
	}
	c.p.logger.Info("Organization created", "organization_id", orgID, "user_id", c.userID)
	return org, nil
}

// targets loads the rows matched by filters and checks each one.
func (c *caller) targets(ctx context.Context, t *storage.Table, filters []backend.Filter) ([]string, error) {
	if len(filters) == 0 {
		return nil, apperr.Validation("refusing to change every row of %s", t.Name)
	}
	rows, err := c.p.store.Select(ctx, backend.Query{Table: t.Name, Filters: filters})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, apperr.NotFound("%s not found", noun(t))
	}
	ids := make([]string, 0, len(rows))
	for _, row := range rows {
		if err := c.canAccess(ctx, t, row); err != nil {
			return nil, err
		}
		ids = append(ids, row[storage.ColID].(string))
	}
	return ids, nil
}

// Update changes rows the caller may write. Ownership columns cannot be
// changed; a new organization_id must be one the caller belongs to.
func (c *caller) Update(ctx context.Context, table string, filters []backend.Filter, values backend.Row) ([]backend.Row, error) {
	if err := c.check(); err != nil {
		return nil, err
	}
	t, err := storage.LookupTable(table)
	if err != nil {
		return nil, err
	}
	for _, col := range []string{storage.ColUserID, "creator_id"} {
		if _, ok := values[col]; ok {
			return nil, apperr.FieldInvalid(col, "%s cannot be changed", col)
		}
	}
	if t.Name == storage.TableUserRoles {
		return nil, apperr.Access("roles are never edited")
	}
	if org, ok := values[storage.ColOrganizationID]; ok && t.Scoped {
		if id, isString := org.(string); isString {
			if err := c.requireMember(ctx, id); err != nil {
				return nil, err
			}
		}
	}
	if err := c.checkReferences(ctx, t, values); err != nil {
		return nil, err
	}

	ids, err := c.targets(ctx, t, filters)
	if err != nil {
		return nil, err
	}
	restricted := append(slices.Clone(filters), backend.In(storage.ColID, ids...))
	return c.p.store.Update(ctx, table, restricted, values)
}

// Delete removes rows the caller may write.
func (c *caller) Delete(ctx context.Context, table string, filters []backend.Filter) (int, error) {
	if err := c.check(); err != nil {
		return 0, err
	}
	t, err := storage.LookupTable(table)
	if err != nil {
		return 0, err
	}
	if t.Name == storage.TableUserRoles || t.Name == storage.TableEpisodeStatus {
		return 0, apperr.Access("%s rows are never deleted", noun(t))
	}

	ids, err := c.targets(ctx, t, filters)
	if err != nil {
		return 0, err
	}
	restricted := append(slices.Clone(filters), backend.In(storage.ColID, ids...))
	return c.p.store.Delete(ctx, table, restricted)
}

// Upsert is limited to owned tables keyed by user, so the conflict target
// can only ever be one of the caller's own rows.
func (c *caller) Upsert(ctx context.Context, table string, row backend.Row, conflict []string) (backend.Row, error) {
	if err := c.check(); err != nil {
		return nil, err
	}
	t, err := storage.LookupTable(table)
	if err != nil {
		return nil, err
	}
	if !t.Owned || t.Name != storage.TableEpisodeStatus || !slices.Contains(conflict, storage.ColUserID) {
		return nil, apperr.Validation("upsert is not supported on %s", t.Name)
	}
	row = cloneRow(row)
	row[storage.ColUserID] = c.userID
	return c.p.store.Upsert(ctx, table, row, conflict)
}

func cloneRow(row backend.Row) backend.Row {
	out := make(backend.Row, len(row)+2)
	for k, v := range row {
		out[k] = v
	}
	return out
}

var nouns = map[string]string{
	storage.TableUserRoles:         "role",
	storage.TableOrganizations:     "organization",
	storage.TableOrganizationUsers: "membership",
	storage.TableWallets:           "wallet",
	storage.TableCategories:        "category",
	storage.TableTransactions:      "transaction",
	storage.TableBudgets:           "budget",
	storage.TableLoans:             "loan",
	storage.TableUniverses:         "universe",
	storage.TableShows:             "show",
	storage.TableEpisodes:          "episode",
	storage.TableEpisodeStatus:     "episode status",
}

func noun(t *storage.Table) string {
	if n, ok := nouns[t.Name]; ok {
		return n
	}
	return t.Name
}
