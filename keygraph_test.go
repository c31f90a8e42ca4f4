package keygraph

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veridoc/keygraph/pkg/driver"
	"github.com/veridoc/keygraph/pkg/types"
)

// fakeEmbedder returns fixed vectors per text so similarity outcomes are
// deterministic. Unknown texts get an orthogonal one-hot vector.
type fakeEmbedder struct {
	mu      sync.Mutex
	vectors map[string][]float32
	next    int
	err     error
}

func newFakeEmbedder(vectors map[string][]float32) *fakeEmbedder {
	if vectors == nil {
		vectors = make(map[string][]float32)
	}
	return &fakeEmbedder{vectors: vectors}
}

func (f *fakeEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec, ok := f.vectors[text]
		if !ok {
			vec = make([]float32, 8)
			vec[f.next%8] = 1
			f.next++
			f.vectors[text] = vec
		}
		cp := make([]float32, len(vec))
		copy(cp, vec)
		out[i] = cp
	}
	return out, nil
}

func (f *fakeEmbedder) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	vecs, err := f.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (f *fakeEmbedder) Dimensions() int { return 8 }
func (f *fakeEmbedder) Close() error    { return nil }

type staticMatcher struct {
	result []string
	err    error
}

func (m *staticMatcher) Match(ctx context.Context, query string, vocabulary []string) ([]string, error) {
	return m.result, m.err
}

func newTestClient(t *testing.T, cfg *Config, opts *Options) *Client {
	t.Helper()
	if cfg == nil {
		cfg = DefaultConfig()
		cfg.EmbedMode = false
	}
	client, err := NewClient(driver.NewMemoryStore(), newFakeEmbedder(nil), cfg, opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func policyMapping() *types.KeywordMap {
	km := types.NewKeywordMap()
	km.Add("policy", "Pg_no 1: The policy covers dental care.")
	km.Add("coverage", "Pg_no 1: The policy covers dental care.", "Pg_no 2: Coverage excludes cosmetic surgery.")
	return km
}

func TestBuildAssignsIDsInFirstSeenOrder(t *testing.T) {
	client := newTestClient(t, nil, nil)
	ctx := context.Background()

	result, err := client.Build(ctx, "thread-1", policyMapping())
	require.NoError(t, err)
	assert.Equal(t, 2, result.Fragments)
	assert.Equal(t, 2, result.Keywords)
	assert.Equal(t, 3, result.AppearsIn)

	scored, err := client.Store().FragmentScores(ctx, "thread-1", []string{"policy"})
	require.NoError(t, err)
	require.Len(t, scored, 1)
	assert.Equal(t, 0, scored[0].Fragment.ID)
	assert.Contains(t, scored[0].Fragment.Content, "dental")
}

func TestBuildSharedFragmentTextCollapses(t *testing.T) {
	client := newTestClient(t, nil, nil)

	km := types.NewKeywordMap()
	km.Add("alpha", "same fragment text")
	km.Add("beta", "same fragment text")

	result, err := client.Build(context.Background(), "s", km)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Fragments)
	assert.Equal(t, 2, result.Keywords)
}

func TestBuildEmptyScopeRejected(t *testing.T) {
	client := newTestClient(t, nil, nil)
	_, err := client.Build(context.Background(), "", policyMapping())
	assert.ErrorIs(t, err, types.ErrEmptyScope)

	_, err = client.Build(context.Background(), "s", nil)
	assert.ErrorIs(t, err, ErrNilMapping)
}

func TestBuildEmbedModeCreatesSimilarEdges(t *testing.T) {
	// "civil union" and "civil union partner" are nearly parallel; "deadline"
	// is orthogonal to both.
	vectors := map[string][]float32{
		"civil union":         {1, 0, 0, 0, 0, 0, 0, 0},
		"civil union partner": {0.95, 0.3122, 0, 0, 0, 0, 0, 0},
		"deadline":            {0, 0, 1, 0, 0, 0, 0, 0},
	}
	cfg := DefaultConfig()
	cfg.SimThreshold = 0.7
	client, err := NewClient(driver.NewMemoryStore(), newFakeEmbedder(vectors), cfg, nil)
	require.NoError(t, err)
	defer client.Close()

	km := types.NewKeywordMap()
	km.Add("civil union", "Pg_no 1: Civil union details.")
	km.Add("civil union partner", "Pg_no 2: Partner obligations.")
	km.Add("deadline", "Pg_no 3: Filing deadlines.")

	result, err := client.Build(context.Background(), "s", km)
	require.NoError(t, err)
	assert.Equal(t, 1, result.SimilarPairs)

	// A query matching only "civil union" reaches the partner-only fragment
	// at depth 1 through the SimilarTo edge.
	fragments, err := client.RetrieveWithKeywords(context.Background(), "s", []string{"civil union"})
	require.NoError(t, err)
	require.Len(t, fragments, 2)
	assert.Contains(t, fragments[1].Content, "Partner")
}

func TestBuildEmbedderFailureIsAtomic(t *testing.T) {
	emb := newFakeEmbedder(nil)
	cfg := DefaultConfig()
	client, err := NewClient(driver.NewMemoryStore(), emb, cfg, nil)
	require.NoError(t, err)
	defer client.Close()
	ctx := context.Background()

	// Seed the scope with a good build, then fail a rebuild.
	_, err = client.Build(ctx, "s", policyMapping())
	require.NoError(t, err)

	emb.err = errors.New("embedding service down")
	_, err = client.Build(ctx, "s", policyMapping())
	require.Error(t, err)
	assert.ErrorIs(t, err, &CollaboratorError{})

	// The failed build cleared the scope before inserting anything; the old
	// generation is gone and no partial generation is queryable.
	stats, err := client.Store().ScopeStats(ctx, "s")
	require.NoError(t, err)
	assert.Zero(t, stats.Fragments)
	assert.Zero(t, stats.Keywords)
}

func TestRetrieveConcreteScenario(t *testing.T) {
	// The fragment containing both matched keywords scores 2 and is the sole
	// seed; depth 1 pulls in the coverage-only fragment via the shared
	// keyword.
	cfg := DefaultConfig()
	cfg.EmbedMode = false
	cfg.MaxDepth = 1
	client := newTestClient(t, cfg, nil)
	ctx := context.Background()

	_, err := client.Build(ctx, "thread-1", policyMapping())
	require.NoError(t, err)

	fragments, err := client.RetrieveWithKeywords(ctx, "thread-1", []string{"policy", "coverage"})
	require.NoError(t, err)
	require.Len(t, fragments, 2)
	assert.Contains(t, fragments[0].Content, "policy covers")
	assert.Contains(t, fragments[1].Content, "Coverage excludes")
}

func TestRetrievePlateauKeepsAllTies(t *testing.T) {
	cfg := DefaultConfig()
	cfg.EmbedMode = false
	cfg.MaxDepth = 0
	client := newTestClient(t, cfg, nil)
	ctx := context.Background()

	km := types.NewKeywordMap()
	km.Add("alpha", "fragment one", "fragment two")
	km.Add("beta", "fragment one", "fragment two")
	km.Add("gamma", "fragment three")
	_, err := client.Build(ctx, "s", km)
	require.NoError(t, err)

	fragments, err := client.RetrieveWithKeywords(ctx, "s", []string{"alpha", "beta"})
	require.NoError(t, err)

	// Both fragments score 2; the plateau keeps both.
	require.Len(t, fragments, 2)
}

func TestRetrieveDepthMonotonicity(t *testing.T) {
	ctx := context.Background()

	// Chain: f0 -[k1]- f1 -[k2]- f2. Seeds at f0, each extra depth level
	// reaches one more fragment.
	km := types.NewKeywordMap()
	km.Add("seed", "f0")
	km.Add("k1", "f0", "f1")
	km.Add("k2", "f1", "f2")

	var previous []int
	for depth := 0; depth <= 2; depth++ {
		cfg := DefaultConfig()
		cfg.EmbedMode = false
		cfg.MaxDepth = depth
		client := newTestClient(t, cfg, nil)

		_, err := client.Build(ctx, "s", km)
		require.NoError(t, err)

		fragments, err := client.RetrieveWithKeywords(ctx, "s", []string{"seed"})
		require.NoError(t, err)
		require.Len(t, fragments, depth+1, "depth %d", depth)

		ids := make([]int, len(fragments))
		for i, f := range fragments {
			ids[i] = f.ID
		}
		// Results at depth n are a prefix of results at depth n+1.
		for i, id := range previous {
			assert.Equal(t, id, ids[i])
		}
		previous = ids
	}
}

func TestRetrieveNoEvidence(t *testing.T) {
	cfg := DefaultConfig()
	cfg.EmbedMode = false
	client := newTestClient(t, cfg, nil)
	ctx := context.Background()

	_, err := client.Build(ctx, "s", policyMapping())
	require.NoError(t, err)

	// No matched keywords.
	fragments, err := client.RetrieveWithKeywords(ctx, "s", nil)
	require.NoError(t, err)
	assert.Empty(t, fragments)

	// Matched keywords with no appears-in edges.
	fragments, err = client.RetrieveWithKeywords(ctx, "s", []string{"unknown term"})
	require.NoError(t, err)
	assert.Empty(t, fragments)

	// Unbuilt scope.
	fragments, err = client.RetrieveWithKeywords(ctx, "never-built", []string{"policy"})
	require.NoError(t, err)
	assert.Empty(t, fragments)
}

func TestRetrieveExactModeUsesMatcher(t *testing.T) {
	cfg := DefaultConfig()
	cfg.EmbedMode = false
	matcher := &staticMatcher{result: []string{"policy", "coverage"}}
	client := newTestClient(t, cfg, &Options{Matcher: matcher})
	ctx := context.Background()

	_, err := client.Build(ctx, "s", policyMapping())
	require.NoError(t, err)

	fragments, err := client.Retrieve(ctx, "s", "what does the policy cover?")
	require.NoError(t, err)
	require.Len(t, fragments, 2)
}

func TestRetrieveMatcherFailurePropagates(t *testing.T) {
	cfg := DefaultConfig()
	cfg.EmbedMode = false
	matcher := &staticMatcher{err: errors.New("matcher down")}
	client := newTestClient(t, cfg, &Options{Matcher: matcher})
	ctx := context.Background()

	_, err := client.Build(ctx, "s", policyMapping())
	require.NoError(t, err)

	_, err = client.Retrieve(ctx, "s", "anything")
	require.Error(t, err)
	assert.ErrorIs(t, err, &CollaboratorError{})
}

func TestRetrieveFuzzyModeMatchesByEmbedding(t *testing.T) {
	vectors := map[string][]float32{
		"policy":          {1, 0, 0, 0, 0, 0, 0, 0},
		"insurance rules": {0.95, 0.3122, 0, 0, 0, 0, 0, 0},
		"coverage":        {0, 1, 0, 0, 0, 0, 0, 0},
	}
	cfg := DefaultConfig()
	cfg.SimThreshold = 0.7
	cfg.MaxDepth = 0
	client, err := NewClient(driver.NewMemoryStore(), newFakeEmbedder(vectors), cfg, nil)
	require.NoError(t, err)
	defer client.Close()
	ctx := context.Background()

	km := types.NewKeywordMap()
	km.Add("policy", "Pg_no 1: The policy covers dental care.")
	km.Add("coverage", "Pg_no 2: Coverage excludes cosmetic surgery.")
	_, err = client.Build(ctx, "s", km)
	require.NoError(t, err)

	// "insurance rules" embeds close to "policy" and nothing else.
	fragments, err := client.Retrieve(ctx, "s", "insurance rules")
	require.NoError(t, err)
	require.Len(t, fragments, 1)
	assert.Contains(t, fragments[0].Content, "policy covers")
}

func TestScopeIsolation(t *testing.T) {
	cfg := DefaultConfig()
	cfg.EmbedMode = false
	client := newTestClient(t, cfg, nil)
	ctx := context.Background()

	_, err := client.Build(ctx, "scope-a", policyMapping())
	require.NoError(t, err)

	kmB := types.NewKeywordMap()
	kmB.Add("policy", "entirely different document")
	_, err = client.Build(ctx, "scope-b", kmB)
	require.NoError(t, err)

	fragments, err := client.RetrieveWithKeywords(ctx, "scope-b", []string{"policy"})
	require.NoError(t, err)
	require.Len(t, fragments, 1)
	assert.Equal(t, "entirely different document", fragments[0].Content)

	require.NoError(t, client.Clear(ctx, "scope-b"))

	fragments, err = client.RetrieveWithKeywords(ctx, "scope-a", []string{"policy"})
	require.NoError(t, err)
	assert.NotEmpty(t, fragments)
}

func TestClearIdempotent(t *testing.T) {
	client := newTestClient(t, nil, nil)
	ctx := context.Background()
	require.NoError(t, client.Clear(ctx, "never-built"))
	require.NoError(t, client.Clear(ctx, "never-built"))
}

func TestRebuildIdempotence(t *testing.T) {
	cfg := DefaultConfig()
	cfg.EmbedMode = false
	client := newTestClient(t, cfg, nil)
	ctx := context.Background()

	first, err := client.Build(ctx, "s", policyMapping())
	require.NoError(t, err)
	second, err := client.Build(ctx, "s", policyMapping())
	require.NoError(t, err)

	assert.Equal(t, first.Fragments, second.Fragments)
	assert.Equal(t, first.Keywords, second.Keywords)
	assert.Equal(t, first.AppearsIn, second.AppearsIn)

	stats, err := client.Store().ScopeStats(ctx, "s")
	require.NoError(t, err)
	assert.EqualValues(t, 2, stats.Fragments)
	assert.EqualValues(t, 2, stats.Keywords)
}

func TestBuildDocumentEndToEnd(t *testing.T) {
	cfg := DefaultConfig()
	cfg.EmbedMode = false
	client := newTestClient(t, cfg, nil)
	ctx := context.Background()

	pages := []string{
		"The insurance policy covers dental care for all members. Premium payments are due monthly.",
		"Coverage excludes cosmetic surgery. Premium payments fund the claims reserve.",
	}
	result, err := client.BuildDocument(ctx, "doc-1", pages)
	require.NoError(t, err)
	assert.Greater(t, result.Fragments, 0)
	assert.Greater(t, result.Keywords, 0)

	scopes, err := client.ListScopes(ctx)
	require.NoError(t, err)
	assert.Contains(t, scopes, "doc-1")
}

func TestConcurrentReadsDuringBuilds(t *testing.T) {
	cfg := DefaultConfig()
	cfg.EmbedMode = false
	client := newTestClient(t, cfg, nil)
	ctx := context.Background()

	_, err := client.Build(ctx, "hot", policyMapping())
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				if i%4 == 0 {
					_, err := client.Build(ctx, "hot", policyMapping())
					assert.NoError(t, err)
				} else {
					fragments, err := client.RetrieveWithKeywords(ctx, "hot", []string{"policy", "coverage"})
					assert.NoError(t, err)
					// A read either sees the full graph or, with blocking
					// semantics, waits out the rebuild. Never a partial set
					// of one.
					assert.Len(t, fragments, 2)
				}
			}
		}(i)
	}
	wg.Wait()
}

func TestRejectDuringRebuild(t *testing.T) {
	cfg := DefaultConfig()
	cfg.EmbedMode = false
	cfg.RejectDuringRebuild = true
	client := newTestClient(t, cfg, nil)
	ctx := context.Background()

	_, err := client.Build(ctx, "s", policyMapping())
	require.NoError(t, err)

	// Hold the write lock as a build would, then observe the reject.
	unlock := client.scopes.lockWrite("s")
	_, err = client.RetrieveWithKeywords(ctx, "s", []string{"policy"})
	assert.ErrorIs(t, err, ErrScopeRebuilding)
	unlock()

	fragments, err := client.RetrieveWithKeywords(ctx, "s", []string{"policy"})
	require.NoError(t, err)
	assert.NotEmpty(t, fragments)
}

func TestSimilarityScanScales(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SimThreshold = 0.99
	client, err := NewClient(driver.NewMemoryStore(), newFakeEmbedder(nil), cfg, nil)
	require.NoError(t, err)
	defer client.Close()

	km := types.NewKeywordMap()
	for i := 0; i < 50; i++ {
		km.Add(fmt.Sprintf("keyword number %d", i), fmt.Sprintf("fragment %d", i))
	}

	result, err := client.Build(context.Background(), "big", km)
	require.NoError(t, err)
	assert.Equal(t, 50, result.Keywords)
	// One-hot fake vectors repeat every 8 texts, so some pairs are parallel.
	assert.Greater(t, result.SimilarPairs, 0)
}
