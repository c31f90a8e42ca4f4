package keygraph

import (
	"context"

	"github.com/veridoc/keygraph/pkg/driver"
	"github.com/veridoc/keygraph/pkg/types"
)

// GraphIndexer builds and clears per-scope keyword graphs.
type GraphIndexer interface {
	// Build materializes the keyword graph for a scope from a keyword-to-
	// fragment mapping. Any previous generation of the scope is cleared
	// first; the clear and build run as one critical section per scope.
	Build(ctx context.Context, scope string, mapping *types.KeywordMap) (*BuildResult, error)

	// BuildDocument chunks page texts, extracts keywords and builds the
	// scope's graph in one call.
	BuildDocument(ctx context.Context, scope string, pages []string) (*BuildResult, error)

	// Clear removes every node and edge tagged with the scope. Clearing an
	// absent scope is a no-op.
	Clear(ctx context.Context, scope string) error
}

// Retriever answers queries against built scopes.
type Retriever interface {
	// Retrieve matches the query against the scope's vocabulary and returns
	// seed fragments plus bounded graph expansion. An empty slice with a nil
	// error means no evidence, not failure.
	Retrieve(ctx context.Context, scope, query string) ([]*types.Fragment, error)

	// RetrieveWithKeywords skips matching and retrieves directly from an
	// already matched keyword set.
	RetrieveWithKeywords(ctx context.Context, scope string, matched []string) ([]*types.Fragment, error)
}

// GraphAdmin exposes maintenance operations.
type GraphAdmin interface {
	// ListScopes returns every scope known to the store.
	ListScopes(ctx context.Context) ([]string, error)

	// ScopeStats reports node and edge counts for a scope.
	ScopeStats(ctx context.Context, scope string) (*driver.ScopeStats, error)

	// CreateIndices creates backend indices for scope-qualified lookups.
	CreateIndices(ctx context.Context) error

	// Close releases the store and collaborator connections.
	Close() error
}

// KeyGraph is the full engine surface.
type KeyGraph interface {
	GraphIndexer
	Retriever
	GraphAdmin
}

// Matcher narrows a query to keywords drawn from a scope's vocabulary.
// Implementations must only return strings present in the vocabulary.
type Matcher interface {
	Match(ctx context.Context, query string, vocabulary []string) ([]string, error)
}

// Extractor pulls candidate keywords out of free text.
type Extractor interface {
	Extract(text string) []string
}

var _ KeyGraph = (*Client)(nil)
