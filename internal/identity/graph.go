// Package identity resolves customer identifiers to canonical profile keys.
//
// Identifiers are namespaced strings (user:<v>, email:<v>, anon:<v>) linked
// together in a union-find structure. The root chosen for a connected set is
// deterministic, so the canonical profile key is stable regardless of the
// order in which identifiers are observed.
package identity

import (
	"errors"
	"strings"
	"sync"
)

// Identifier namespace prefixes.
const (
	PrefixUser  = "user:"
	PrefixEmail = "email:"
	PrefixAnon  = "anon:"
)

// ErrNoIdentifiers is returned when canonical resolution is requested for an
// empty identifier list.
var ErrNoIdentifiers = errors.New("identity: no identifiers provided")

// Normalize converts a raw identifier into its namespaced form.
//
// Surrounding whitespace is trimmed from both the raw input and the value
// portion after the prefix, so "email: A@B " and "email:a@b" resolve to the
// same node. An existing user:/email:/anon: prefix is kept (email values are
// lowercased). Otherwise the namespace is inferred: values containing "@"
// become email:, values containing "anon" (case-insensitive) become anon:,
// everything else becomes user:.
func Normalize(raw string) string {
	v := strings.TrimSpace(raw)

	switch {
	case strings.HasPrefix(v, PrefixUser):
		return PrefixUser + strings.TrimSpace(v[len(PrefixUser):])
	case strings.HasPrefix(v, PrefixEmail):
		return PrefixEmail + strings.ToLower(strings.TrimSpace(v[len(PrefixEmail):]))
	case strings.HasPrefix(v, PrefixAnon):
		return PrefixAnon + strings.TrimSpace(v[len(PrefixAnon):])
	}

	switch {
	case strings.Contains(v, "@"):
		return PrefixEmail + strings.ToLower(v)
	case strings.Contains(strings.ToLower(v), "anon"):
		return PrefixAnon + v
	default:
		return PrefixUser + v
	}
}

// SplitNamespace separates a normalized identifier into its namespace prefix
// and bare value. Identifiers without a known prefix are returned unchanged
// with an empty namespace.
func SplitNamespace(id string) (prefix, value string) {
	for _, p := range []string{PrefixUser, PrefixEmail, PrefixAnon} {
		if strings.HasPrefix(id, p) {
			return p, id[len(p):]
		}
	}

	return "", id
}

// Graph is a concurrent union-find over normalized identifiers.
//
// Nodes are created lazily on first Find. Union uses union-by-rank with path
// compression; rank ties are broken by picking the lexicographically smaller
// identifier as the root, which keeps canonical keys stable across
// observation orders.
type Graph struct {
	mu     sync.Mutex
	parent map[string]string
	rank   map[string]int
}

// NewGraph creates an empty identity graph.
func NewGraph() *Graph {
	return &Graph{
		parent: make(map[string]string),
		rank:   make(map[string]int),
	}
}

// Find returns the canonical root for id, installing id as its own root if it
// has never been seen. The id must already be normalized.
func (g *Graph) Find(id string) string {
	g.mu.Lock()
	defer g.mu.Unlock()

	return g.find(id)
}

// Union links the sets containing a and b and returns the resulting root.
// Both identifiers must already be normalized.
func (g *Graph) Union(a, b string) string {
	g.mu.Lock()
	defer g.mu.Unlock()

	return g.union(a, b)
}

// CanonicalID normalizes all identifiers, unions them pairwise onto the
// first, and returns the canonical root. Returns ErrNoIdentifiers for an
// empty list.
func (g *Graph) CanonicalID(raw []string) (string, error) {
	if len(raw) == 0 {
		return "", ErrNoIdentifiers
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	first := Normalize(raw[0])
	for _, r := range raw[1:] {
		g.union(first, Normalize(r))
	}

	return g.find(first), nil
}

// Len returns the number of known identifier nodes.
func (g *Graph) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()

	return len(g.parent)
}

// find locates the root of id with path compression. Caller holds g.mu.
func (g *Graph) find(id string) string {
	p, ok := g.parent[id]
	if !ok {
		g.parent[id] = id
		g.rank[id] = 0

		return id
	}

	if p == id {
		return id
	}

	root := g.find(p)
	g.parent[id] = root

	return root
}

// union links the roots of a and b. Caller holds g.mu.
func (g *Graph) union(a, b string) string {
	ra := g.find(a)
	rb := g.find(b)

	if ra == rb {
		return ra
	}

	switch {
	case g.rank[ra] > g.rank[rb]:
		g.parent[rb] = ra

		return ra
	case g.rank[ra] < g.rank[rb]:
		g.parent[ra] = rb

		return rb
	}

	// Equal ranks: the lexicographically smaller identifier becomes the root
	// so the canonical key does not depend on observation order.
	root, child := ra, rb
	if rb < ra {
		root, child = rb, ra
	}

	g.parent[child] = root
	g.rank[root]++

	return root
}
