package querycache

import (
	"fmt"
	"slices"
)

// Graph is the declared invalidation graph: for every resource kind, the
// kinds whose cached results a successful mutation of it makes stale.
type Graph struct {
	order []Kind
	edges map[Kind][]Kind
}

// NewGraph validates and builds a graph. Every kind must be declared once,
// have an entry in edges that lists itself, and point only at declared kinds.
func NewGraph(kinds []Kind, edges map[Kind][]Kind) (*Graph, error) {
	declared := make(map[Kind]bool, len(kinds))
	for _, k := range kinds {
		if k == "" {
			return nil, fmt.Errorf("querycache: empty kind")
		}
		if declared[k] {
			return nil, fmt.Errorf("querycache: kind %q declared twice", k)
		}
		declared[k] = true
	}

	g := &Graph{order: slices.Clone(kinds), edges: make(map[Kind][]Kind, len(kinds))}
	for source, targets := range edges {
		if !declared[source] {
			return nil, fmt.Errorf("querycache: invalidation source %q is not a declared kind", source)
		}
		if !slices.Contains(targets, source) {
			return nil, fmt.Errorf("querycache: kind %q must invalidate itself", source)
		}
		for _, target := range targets {
			if !declared[target] {
				return nil, fmt.Errorf("querycache: kind %q invalidates undeclared kind %q", source, target)
			}
		}
		g.edges[source] = slices.Clone(targets)
	}
	for _, k := range kinds {
		if _, ok := g.edges[k]; !ok {
			return nil, fmt.Errorf("querycache: kind %q has no invalidation entry", k)
		}
	}
	return g, nil
}

// MustGraph is NewGraph for package-level declarations; it panics on an
// invalid graph.
func MustGraph(kinds []Kind, edges map[Kind][]Kind) *Graph {
	g, err := NewGraph(kinds, edges)
	if err != nil {
		panic(err)
	}
	return g
}

// Has reports whether k is declared.
func (g *Graph) Has(k Kind) bool {
	_, ok := g.edges[k]
	return ok
}

// Affected returns the kinds invalidated by a mutation of k.
func (g *Graph) Affected(k Kind) []Kind {
	return slices.Clone(g.edges[k])
}

// Kinds returns the declared kinds in declaration order.
func (g *Graph) Kinds() []Kind {
	return slices.Clone(g.order)
}
