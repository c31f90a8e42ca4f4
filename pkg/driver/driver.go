package driver

import (
	"fmt"
	"time"

	"github.com/veridoc/keygraph/pkg/types"
)

// GraphProvider represents the type of graph store backend.
type GraphProvider string

const (
	GraphProviderNeo4j  GraphProvider = "neo4j"
	GraphProviderBadger GraphProvider = "badger"
	GraphProviderMemory GraphProvider = "memory"
)

// ScoredFragment pairs a fragment with its distinct matched-keyword count.
type ScoredFragment struct {
	Fragment *types.Fragment `json:"fragment"`
	Score    int             `json:"score"`
}

// ScopeStats holds node and edge counts for a single scope.
type ScopeStats struct {
	Scope       string    `json:"scope"`
	Fragments   int64     `json:"fragments"`
	Keywords    int64     `json:"keywords"`
	AppearsIn   int64     `json:"appears_in"`
	SimilarTo   int64     `json:"similar_to"`
	CollectedAt time.Time `json:"collected_at"`
}

// Options holds backend connection settings for New.
type Options struct {
	// URI is the bolt URI for neo4j or the database directory for badger.
	URI      string
	Username string
	Password string
	// Database selects the neo4j database, defaulting to "neo4j".
	Database string
	// InMemory runs the badger backend without touching disk.
	InMemory bool
}

// New constructs a GraphStore for the named provider.
func New(provider GraphProvider, opts Options) (GraphStore, error) {
	switch provider {
	case GraphProviderNeo4j:
		return NewNeo4jStore(opts.URI, opts.Username, opts.Password, opts.Database)
	case GraphProviderBadger:
		return NewBadgerStore(opts.URI, opts.InMemory)
	case GraphProviderMemory:
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown graph provider %q", provider)
	}
}
