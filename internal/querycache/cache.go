// Package querycache caches fetched collections per (kind, user, tenant,
// variant) and invalidates them through a declared Graph after mutations.
package querycache

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/mmynk/lifeboard/internal/telemetry"
)

// Kind names a resource kind, e.g. "wallets".
type Kind string

// Key identifies one cached query result.
type Key struct {
	Kind     Kind
	UserID   string
	TenantID string
	// Variant distinguishes differently filtered queries of the same kind.
	Variant string
}

func (k Key) String() string {
	return string(k.Kind) + "|" + k.UserID + "|" + k.TenantID + "|" + k.Variant
}

// Forever marks entries that stay fresh until invalidated.
const Forever time.Duration = -1

// Policy controls how long a kind's entries are served without refetching.
type Policy struct {
	// StaleTime is how long an entry stays fresh. Zero means every read
	// refetches; Forever means only invalidation makes it stale.
	StaleTime time.Duration
	// NoCache bypasses the cache entirely; every read goes to the backend.
	NoCache bool
}

// Options configures a Cache.
type Options struct {
	Graph            *Graph
	DefaultStaleTime time.Duration
	Policies         map[Kind]Policy
	Metrics          *telemetry.CacheMetrics
	Logger           *slog.Logger
	Now              func() time.Time
}

type entry struct {
	value     any
	fetchedAt time.Time
	stale     bool
}

// Cache is safe for concurrent use.
type Cache struct {
	graph         *Graph
	defaultPolicy Policy
	policies      map[Kind]Policy
	metrics       *telemetry.CacheMetrics
	logger        *slog.Logger
	now           func() time.Time

	mu        sync.Mutex
	entries   map[Key]*entry
	gens      map[Kind]uint64
	listeners []func([]Kind)

	group singleflight.Group
}

// New builds a cache over a validated graph.
func New(opts Options) (*Cache, error) {
	if opts.Graph == nil {
		return nil, fmt.Errorf("querycache: graph is required")
	}
	for k := range opts.Policies {
		if !opts.Graph.Has(k) {
			return nil, fmt.Errorf("querycache: policy for undeclared kind %q", k)
		}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Cache{
		graph:         opts.Graph,
		defaultPolicy: Policy{StaleTime: opts.DefaultStaleTime},
		policies:      opts.Policies,
		metrics:       opts.Metrics,
		logger:        opts.Logger,
		now:           opts.Now,
		entries:       make(map[Key]*entry),
		gens:          make(map[Kind]uint64),
	}, nil
}

// Graph returns the invalidation graph the cache was built with.
func (c *Cache) Graph() *Graph {
	return c.graph
}

func (c *Cache) policy(k Kind) Policy {
	if p, ok := c.policies[k]; ok {
		return p
	}
	return c.defaultPolicy
}

func (c *Cache) fresh(e *entry, p Policy) bool {
	if e.stale {
		return false
	}
	if p.StaleTime == Forever {
		return true
	}
	return c.now().Sub(e.fetchedAt) < p.StaleTime
}

// Fetch returns the cached value for key when fresh, otherwise calls load.
// Concurrent fetches of the same key share one load. A load that started
// before an invalidation of its kind is returned to its callers but never
// cached. Failed loads leave the cache untouched. A cancelled caller stops
// waiting without cancelling the load for the others.
func Fetch[T any](ctx context.Context, c *Cache, key Key, load func(context.Context) (T, error)) (T, error) {
	var zero T
	if !c.graph.Has(key.Kind) {
		return zero, fmt.Errorf("querycache: undeclared kind %q", key.Kind)
	}

	p := c.policy(key.Kind)
	if p.NoCache {
		c.metrics.Miss(string(key.Kind))
		return load(ctx)
	}

	c.mu.Lock()
	if e, ok := c.entries[key]; ok && c.fresh(e, p) {
		if v, ok := e.value.(T); ok {
			c.mu.Unlock()
			c.metrics.Hit(string(key.Kind))
			return v, nil
		}
	}
	gen := c.gens[key.Kind]
	c.mu.Unlock()

	c.metrics.Miss(string(key.Kind))
	flight := key.String() + "#" + strconv.FormatUint(gen, 10)
	ch := c.group.DoChan(flight, func() (any, error) {
		// The load is shared, so no single caller may cancel it.
		val, err := load(context.WithoutCancel(ctx))
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		if c.gens[key.Kind] == gen {
			c.entries[key] = &entry{value: val, fetchedAt: c.now()}
		}
		c.mu.Unlock()
		return val, nil
	})
	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return zero, res.Err
		}
		return res.Val.(T), nil
	}
}

// Invalidate marks every entry of every kind affected by a mutation of kind
// as stale, across all users, tenants and variants. It returns the affected
// kinds.
func (c *Cache) Invalidate(kind Kind) []Kind {
	affected := c.graph.Affected(kind)
	if len(affected) == 0 {
		c.logger.Warn("Invalidate called for undeclared kind", "kind", kind)
		return nil
	}

	c.mu.Lock()
	for _, k := range affected {
		c.gens[k]++
		for key, e := range c.entries {
			if key.Kind == k {
				e.stale = true
			}
		}
	}
	listeners := append([]func([]Kind){}, c.listeners...)
	c.mu.Unlock()

	for _, k := range affected {
		c.metrics.Invalidated(string(k))
	}
	c.logger.Debug("Invalidated query cache", "mutated", kind, "kinds", affected)
	for _, fn := range listeners {
		fn(affected)
	}
	return affected
}

// Clear drops every entry, e.g. after sign-out.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range c.graph.Kinds() {
		c.gens[k]++
	}
	c.entries = make(map[Key]*entry)
}

// Peek reports whether key has an entry and whether it is fresh.
func (c *Cache) Peek(key Key) (present, fresh bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return false, false
	}
	return true, c.fresh(e, c.policy(key.Kind))
}

// OnInvalidate registers fn to run with the affected kinds after every
// Invalidate.
func (c *Cache) OnInvalidate(fn func([]Kind)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, fn)
}
