package keygraph

import (
	"context"
	"errors"
	"log/slog"
	"runtime"
	"time"

	"github.com/panjf2000/ants/v2"

	"github.com/veridoc/keygraph/pkg/driver"
	"github.com/veridoc/keygraph/pkg/embedder"
	"github.com/veridoc/keygraph/pkg/ingest"
	"github.com/veridoc/keygraph/pkg/metrics"
)

// Config holds tuning for the engine.
type Config struct {
	// SimThreshold is the cosine floor for SimilarTo edges and fuzzy matches.
	SimThreshold float32
	// TopKKeywords caps fuzzy-match candidates per query keyword.
	TopKKeywords int
	// MaxDepth bounds graph expansion from the seed set.
	MaxDepth int
	// EmbedMode enables keyword embeddings: SimilarTo edges at build time and
	// fuzzy matching at query time. When off, matching is exact-string via
	// the Matcher collaborator.
	EmbedMode bool
	// RejectDuringRebuild makes reads against a mid-rebuild scope fail with
	// ErrScopeRebuilding instead of blocking until the build finishes.
	RejectDuringRebuild bool
	// EmbedTimeout bounds the embedding collaborator calls inside a build.
	// The build fails transactionally on expiry.
	EmbedTimeout time.Duration
	// SimilarityWorkers sizes the pool for the pairwise similarity scan.
	SimilarityWorkers int
	// ChunkSize and ChunkOverlap tune BuildDocument's chunker.
	ChunkSize    int
	ChunkOverlap int
}

// DefaultConfig returns the default engine configuration.
func DefaultConfig() *Config {
	return &Config{
		SimThreshold:      0.8,
		TopKKeywords:      1,
		MaxDepth:          1,
		EmbedMode:         true,
		EmbedTimeout:      60 * time.Second,
		SimilarityWorkers: runtime.NumCPU(),
		ChunkSize:         ingest.DefaultChunkSize,
		ChunkOverlap:      ingest.DefaultChunkOverlap,
	}
}

// Client is the main implementation of the KeyGraph interface.
type Client struct {
	store     driver.GraphStore
	embedder  embedder.Client
	matcher   Matcher
	extractor Extractor
	chunker   *ingest.Chunker
	config    *Config
	logger    *slog.Logger
	scopes    *scopeRegistry
	pool      *ants.Pool
	metrics   *metrics.Metrics
}

// Options carries optional collaborators for NewClient.
type Options struct {
	// Matcher narrows queries to the scope vocabulary in exact mode. May be
	// nil when EmbedMode is on and only fuzzy retrieval is used.
	Matcher Matcher
	// Extractor pulls query keywords for fuzzy mode and document keywords
	// for BuildDocument. Defaults to the built-in statistical extractor.
	Extractor Extractor
	// Metrics receives build and retrieval observations. May be nil.
	Metrics *metrics.Metrics
	// Logger defaults to slog.Default.
	Logger *slog.Logger
}

// NewClient creates an engine over the given store and embedder.
func NewClient(store driver.GraphStore, embedderClient embedder.Client, config *Config, opts *Options) (*Client, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if config.SimilarityWorkers <= 0 {
		config.SimilarityWorkers = runtime.NumCPU()
	}
	if config.EmbedTimeout <= 0 {
		config.EmbedTimeout = 60 * time.Second
	}
	if opts == nil {
		opts = &Options{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	extractor := opts.Extractor
	if extractor == nil {
		extractor = ingest.NewExtractor()
	}

	pool, err := ants.NewPool(config.SimilarityWorkers)
	if err != nil {
		return nil, err
	}

	return &Client{
		store:     store,
		embedder:  embedderClient,
		matcher:   opts.Matcher,
		extractor: extractor,
		chunker:   ingest.NewChunker(config.ChunkSize, config.ChunkOverlap),
		config:    config,
		logger:    logger,
		scopes:    newScopeRegistry(),
		pool:      pool,
		metrics:   opts.Metrics,
	}, nil
}

// Store returns the underlying graph store.
func (c *Client) Store() driver.GraphStore {
	return c.store
}

// ListScopes returns every scope known to the store.
func (c *Client) ListScopes(ctx context.Context) ([]string, error) {
	scopes, err := c.store.ListScopes(ctx)
	if err != nil {
		return nil, storeErr("list scopes", err)
	}
	return scopes, nil
}

// ScopeStats reports node and edge counts for a scope.
func (c *Client) ScopeStats(ctx context.Context, scope string) (*driver.ScopeStats, error) {
	stats, err := c.store.ScopeStats(ctx, scope)
	if err != nil {
		return nil, storeErr("scope stats", err)
	}
	return stats, nil
}

// CreateIndices creates backend indices for scope-qualified lookups.
func (c *Client) CreateIndices(ctx context.Context) error {
	if err := c.store.CreateIndices(ctx); err != nil {
		return storeErr("create indices", err)
	}
	return nil
}

// Close releases the worker pool, the store and collaborator connections.
func (c *Client) Close() error {
	c.pool.Release()
	var errs []error
	if c.embedder != nil {
		if err := c.embedder.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := c.store.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
