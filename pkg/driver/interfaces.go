package driver

import (
	"context"

	"github.com/veridoc/keygraph/pkg/types"
)

// This file defines focused interfaces composed into GraphStore. Consumers
// should depend on the smallest interface that meets their needs: the index
// builder needs ScopeWriter, the retrieval engine needs ScopeReader.

// ScopeWriter provides the mutations a scope build performs. All operations
// are scope-qualified; a writer never touches nodes or edges of another
// scope.
type ScopeWriter interface {
	// ClearScope detach-deletes every node and edge tagged with scope.
	// Clearing an empty or unknown scope is a no-op, not an error.
	ClearScope(ctx context.Context, scope string) error

	// UpsertFragments creates or updates fragment nodes.
	UpsertFragments(ctx context.Context, scope string, fragments []*types.Fragment) error

	// UpsertKeywords creates or updates keyword nodes, merging on canonical
	// name within the scope.
	UpsertKeywords(ctx context.Context, scope string, keywords []*types.Keyword) error

	// UpsertAppearsIn creates keyword-to-fragment existence edges.
	UpsertAppearsIn(ctx context.Context, scope string, edges []types.AppearsIn) error

	// UpsertSimilarTo creates symmetric weighted keyword-to-keyword edges.
	UpsertSimilarTo(ctx context.Context, scope string, edges []types.SimilarTo) error
}

// ScopeReader provides the read operations retrieval needs.
type ScopeReader interface {
	// ScopeKeywords returns every keyword node in the scope, including
	// stored embeddings, ordered by name.
	ScopeKeywords(ctx context.Context, scope string) ([]*types.Keyword, error)

	// FragmentScores returns, for every fragment reachable from any of the
	// matched keywords via AppearsIn, the count of distinct matched keywords
	// pointing at it. Results are ordered by fragment id. An empty matched
	// set yields an empty result.
	FragmentScores(ctx context.Context, scope string, matched []string) ([]ScoredFragment, error)

	// NeighborFragments returns the union of fragments connected to any
	// frontier fragment through a shared keyword (AppearsIn reversed then
	// forward) or through a similar keyword (AppearsIn reversed, SimilarTo,
	// AppearsIn forward), deduplicated and ordered by fragment id. Frontier
	// members may appear in the result; callers filter against their visited
	// set.
	NeighborFragments(ctx context.Context, scope string, frontier []int) ([]*types.Fragment, error)

	// ScopeStats reports node and edge counts for a scope.
	ScopeStats(ctx context.Context, scope string) (*ScopeStats, error)
}

// StoreAdmin provides lifecycle and maintenance operations.
type StoreAdmin interface {
	// CreateIndices creates backend indices for scope-qualified lookups.
	// Backends without native indices treat this as a no-op.
	CreateIndices(ctx context.Context) error

	// ListScopes returns the distinct scopes present in the store.
	ListScopes(ctx context.Context) ([]string, error)

	// Provider returns the backend type.
	Provider() GraphProvider

	// Close releases all resources held by the store.
	Close() error
}

// GraphStore is the full store contract composed from the focused
// interfaces.
type GraphStore interface {
	ScopeWriter
	ScopeReader
	StoreAdmin
}

// Compile-time checks that every backend satisfies the full contract.
var (
	_ GraphStore = (*MemoryStore)(nil)
	_ GraphStore = (*BadgerStore)(nil)
	_ GraphStore = (*Neo4jStore)(nil)
)
