package driver

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/veridoc/keygraph/pkg/types"
)

// MemoryStore is an adjacency-list GraphStore held entirely in process
// memory. It backs tests and ephemeral single-process deployments.
type MemoryStore struct {
	mu     sync.RWMutex
	scopes map[string]*memScope
}

type memScope struct {
	fragments map[int]*types.Fragment
	keywords  map[string]*types.Keyword
	appears   map[string]map[int]struct{}   // keyword -> fragment ids
	reverse   map[int]map[string]struct{}   // fragment id -> keywords
	similar   map[string]map[string]float32 // keyword -> keyword -> weight
}

func newMemScope() *memScope {
	return &memScope{
		fragments: make(map[int]*types.Fragment),
		keywords:  make(map[string]*types.Keyword),
		appears:   make(map[string]map[int]struct{}),
		reverse:   make(map[int]map[string]struct{}),
		similar:   make(map[string]map[string]float32),
	}
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{scopes: make(map[string]*memScope)}
}

func (m *MemoryStore) scope(name string) *memScope {
	sc, ok := m.scopes[name]
	if !ok {
		sc = newMemScope()
		m.scopes[name] = sc
	}
	return sc
}

// ClearScope removes every node and edge tagged with scope.
func (m *MemoryStore) ClearScope(ctx context.Context, scope string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.scopes, scope)
	return nil
}

// UpsertFragments creates or updates fragment nodes.
func (m *MemoryStore) UpsertFragments(ctx context.Context, scope string, fragments []*types.Fragment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	sc := m.scope(scope)
	for _, f := range fragments {
		cp := *f
		cp.Scope = scope
		sc.fragments[f.ID] = &cp
	}
	return nil
}

// UpsertKeywords creates or updates keyword nodes.
func (m *MemoryStore) UpsertKeywords(ctx context.Context, scope string, keywords []*types.Keyword) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	sc := m.scope(scope)
	for _, k := range keywords {
		cp := *k
		cp.Scope = scope
		sc.keywords[k.Name] = &cp
	}
	return nil
}

// UpsertAppearsIn records keyword-to-fragment edges in both directions for
// constant-time traversal.
func (m *MemoryStore) UpsertAppearsIn(ctx context.Context, scope string, edges []types.AppearsIn) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	sc := m.scope(scope)
	for _, e := range edges {
		if sc.appears[e.Keyword] == nil {
			sc.appears[e.Keyword] = make(map[int]struct{})
		}
		sc.appears[e.Keyword][e.FragmentID] = struct{}{}
		if sc.reverse[e.FragmentID] == nil {
			sc.reverse[e.FragmentID] = make(map[string]struct{})
		}
		sc.reverse[e.FragmentID][e.Keyword] = struct{}{}
	}
	return nil
}

// UpsertSimilarTo records symmetric weighted keyword edges.
func (m *MemoryStore) UpsertSimilarTo(ctx context.Context, scope string, edges []types.SimilarTo) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	sc := m.scope(scope)
	for _, e := range edges {
		if sc.similar[e.Source] == nil {
			sc.similar[e.Source] = make(map[string]float32)
		}
		if sc.similar[e.Target] == nil {
			sc.similar[e.Target] = make(map[string]float32)
		}
		sc.similar[e.Source][e.Target] = e.Weight
		sc.similar[e.Target][e.Source] = e.Weight
	}
	return nil
}

// ScopeKeywords returns every keyword node in the scope ordered by name.
func (m *MemoryStore) ScopeKeywords(ctx context.Context, scope string) ([]*types.Keyword, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sc, ok := m.scopes[scope]
	if !ok {
		return nil, nil
	}
	out := make([]*types.Keyword, 0, len(sc.keywords))
	for _, k := range sc.keywords {
		cp := *k
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// FragmentScores counts distinct matched keywords per reachable fragment.
func (m *MemoryStore) FragmentScores(ctx context.Context, scope string, matched []string) ([]ScoredFragment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sc, ok := m.scopes[scope]
	if !ok || len(matched) == 0 {
		return nil, nil
	}

	counts := make(map[int]int)
	seen := make(map[string]struct{}, len(matched))
	for _, kw := range matched {
		// Distinct matched keywords only: a duplicate in the input must not
		// double-count.
		if _, dup := seen[kw]; dup {
			continue
		}
		seen[kw] = struct{}{}
		for id := range sc.appears[kw] {
			counts[id]++
		}
	}

	out := make([]ScoredFragment, 0, len(counts))
	for id, score := range counts {
		f := sc.fragments[id]
		if f == nil {
			continue
		}
		cp := *f
		out = append(out, ScoredFragment{Fragment: &cp, Score: score})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Fragment.ID < out[j].Fragment.ID })
	return out, nil
}

// NeighborFragments unions the shared-keyword and similar-keyword relation
// compositions over the frontier.
func (m *MemoryStore) NeighborFragments(ctx context.Context, scope string, frontier []int) ([]*types.Fragment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sc, ok := m.scopes[scope]
	if !ok || len(frontier) == 0 {
		return nil, nil
	}

	found := make(map[int]struct{})
	for _, id := range frontier {
		for kw := range sc.reverse[id] {
			// Fragment -AppearsIn(rev)- Keyword -AppearsIn- Fragment
			for nid := range sc.appears[kw] {
				found[nid] = struct{}{}
			}
			// Fragment -AppearsIn(rev)- Keyword -SimilarTo- Keyword -AppearsIn- Fragment
			for sim := range sc.similar[kw] {
				for nid := range sc.appears[sim] {
					found[nid] = struct{}{}
				}
			}
		}
	}

	out := make([]*types.Fragment, 0, len(found))
	for id := range found {
		if f := sc.fragments[id]; f != nil {
			cp := *f
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// ScopeStats reports node and edge counts for a scope.
func (m *MemoryStore) ScopeStats(ctx context.Context, scope string) (*ScopeStats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	stats := &ScopeStats{Scope: scope, CollectedAt: time.Now()}
	sc, ok := m.scopes[scope]
	if !ok {
		return stats, nil
	}
	stats.Fragments = int64(len(sc.fragments))
	stats.Keywords = int64(len(sc.keywords))
	for _, ids := range sc.appears {
		stats.AppearsIn += int64(len(ids))
	}
	var directed int64
	for _, neighbors := range sc.similar {
		directed += int64(len(neighbors))
	}
	// similar is stored in both directions
	stats.SimilarTo = directed / 2
	return stats, nil
}

// CreateIndices is a no-op for the map-backed store.
func (m *MemoryStore) CreateIndices(ctx context.Context) error {
	return nil
}

// ListScopes returns the scopes present in the store, sorted.
func (m *MemoryStore) ListScopes(ctx context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.scopes))
	for name := range m.scopes {
		out = append(out, name)
	}
	sort.Strings(out)
	return out, nil
}

// Provider returns the backend type.
func (m *MemoryStore) Provider() GraphProvider {
	return GraphProviderMemory
}

// Close releases resources (no-op for the in-memory store).
func (m *MemoryStore) Close() error {
	return nil
}
