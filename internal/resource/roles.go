package resource

import (
	"context"
	"slices"

	"github.com/mmynk/lifeboard/internal/querycache"
)

// Roles queries the signed-in user's roles. Results are never served from
// cache.
type Roles struct {
	deps *Deps
}

// List returns the caller's roles; nobody signed in has none.
func (r *Roles) List(ctx context.Context) ([]string, error) {
	session, err := r.deps.session(ctx)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return []string{}, nil
	}
	key := querycache.Key{Kind: KindRoles, UserID: session.UserID}
	return querycache.Fetch(ctx, r.deps.Cache, key, func(ctx context.Context) ([]string, error) {
		return r.deps.Backend.Roles(ctx, session.UserID)
	})
}

// Has reports whether the caller has role.
func (r *Roles) Has(ctx context.Context, role string) (bool, error) {
	roles, err := r.List(ctx)
	if err != nil {
		return false, err
	}
	return slices.Contains(roles, role), nil
}
