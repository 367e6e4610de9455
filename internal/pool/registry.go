package pool

import (
	"sort"
	"sync"
)

// PairKey is an unordered token pair, normalized so (A,B) == (B,A).
type PairKey struct {
	MintA string
	MintB string
}

// NewPairKey normalizes two mints into a PairKey.
func NewPairKey(a, b string) PairKey {
	if b < a {
		a, b = b, a
	}
	return PairKey{MintA: a, MintB: b}
}

// Registry is the in-memory pool store. A background refresh stream
// upserts records while the evaluation loop reads snapshots; snapshots
// are copies, so one cycle sees internally consistent records even if
// the live map keeps changing underneath.
type Registry struct {
	mu     sync.RWMutex
	byAddr map[string]*Record
	byPair map[PairKey][]string // insertion-ordered pool addresses
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		byAddr: make(map[string]*Record),
		byPair: make(map[PairKey][]string),
	}
}

// Upsert inserts or replaces a record. Updates with a timestamp older
// than the stored one are dropped, keeping UpdatedAt monotonic per
// pool identity. Returns true if the record was applied.
func (g *Registry) Upsert(r Record) (bool, error) {
	if err := r.Validate(); err != nil {
		return false, err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	prev, exists := g.byAddr[r.Address]
	if exists && r.UpdatedAt < prev.UpdatedAt {
		return false, nil
	}
	if !exists {
		key := NewPairKey(r.BaseMint, r.QuoteMint)
		g.byPair[key] = append(g.byPair[key], r.Address)
	}
	stored := r
	g.byAddr[r.Address] = &stored
	return true, nil
}

// Get returns a copy of the record at addr.
func (g *Registry) Get(addr string) (Record, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	r, ok := g.byAddr[addr]
	if !ok {
		return Record{}, false
	}
	return *r, true
}

// Snapshot returns copies of all pools for a pair in first-seen order.
// The copies are immutable for the duration of one evaluation cycle.
func (g *Registry) Snapshot(key PairKey) []Record {
	g.mu.RLock()
	defer g.mu.RUnlock()

	addrs := g.byPair[key]
	out := make([]Record, 0, len(addrs))
	for _, a := range addrs {
		if r, ok := g.byAddr[a]; ok {
			out = append(out, *r)
		}
	}
	return out
}

// SnapshotAll returns copies of every record, sorted by address for
// deterministic iteration.
func (g *Registry) SnapshotAll() []Record {
	g.mu.RLock()
	defer g.mu.RUnlock()

	out := make([]Record, 0, len(g.byAddr))
	for _, r := range g.byAddr {
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Address < out[j].Address })
	return out
}

// Pairs returns all known pairs, sorted for deterministic iteration.
func (g *Registry) Pairs() []PairKey {
	g.mu.RLock()
	defer g.mu.RUnlock()

	out := make([]PairKey, 0, len(g.byPair))
	for k := range g.byPair {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].MintA != out[j].MintA {
			return out[i].MintA < out[j].MintA
		}
		return out[i].MintB < out[j].MintB
	})
	return out
}

// Addresses returns every pool address, sorted.
func (g *Registry) Addresses() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	out := make([]string, 0, len(g.byAddr))
	for a := range g.byAddr {
		out = append(out, a)
	}
	sort.Strings(out)
	return out
}

// Len returns the number of registered pools.
func (g *Registry) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.byAddr)
}
