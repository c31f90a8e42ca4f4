package keygraph

import (
	"context"
	"sync"
	"time"

	"github.com/veridoc/keygraph/pkg/embedder"
	"github.com/veridoc/keygraph/pkg/types"
)

// BuildResult summarizes a completed index build.
type BuildResult struct {
	Scope        string        `json:"scope"`
	Fragments    int           `json:"fragments"`
	Keywords     int           `json:"keywords"`
	AppearsIn    int           `json:"appears_in"`
	SimilarPairs int           `json:"similar_pairs"`
	Duration     time.Duration `json:"duration"`
}

// Build materializes the keyword graph for a scope. The previous generation
// of the scope is cleared first; clear and build hold the scope's exclusive
// lock for their full duration so reads never observe a half-built graph.
// On a store failure mid-build the scope is cleared again before returning,
// so a failed build leaves the scope empty rather than partial.
func (c *Client) Build(ctx context.Context, scope string, mapping *types.KeywordMap) (*BuildResult, error) {
	if scope == "" {
		return nil, types.ErrEmptyScope
	}
	if mapping == nil {
		return nil, ErrNilMapping
	}

	start := time.Now()
	unlock := c.scopes.lockWrite(scope)
	defer unlock()

	result, err := c.buildLocked(ctx, scope, mapping)
	c.observeBuild(result, time.Since(start), err)
	if err != nil {
		return nil, err
	}
	result.Duration = time.Since(start)
	return result, nil
}

func (c *Client) buildLocked(ctx context.Context, scope string, mapping *types.KeywordMap) (*BuildResult, error) {
	if err := c.store.ClearScope(ctx, scope); err != nil {
		return nil, storeErr("clear", err)
	}

	fragments, keywords, appears := assembleGraph(scope, mapping)

	var similar []types.SimilarTo
	if c.config.EmbedMode && len(keywords) > 0 {
		if err := c.embedKeywords(ctx, keywords); err != nil {
			return nil, err
		}
		similar = c.similarPairs(keywords)
	}

	if err := c.writeGraph(ctx, scope, fragments, keywords, appears, similar); err != nil {
		// Roll back so the scope is never queryable half-built.
		if clearErr := c.store.ClearScope(ctx, scope); clearErr != nil {
			c.logger.Error("rollback clear failed", "scope", scope, "error", clearErr)
		}
		return nil, err
	}

	c.logger.Info("scope built",
		"scope", scope,
		"fragments", len(fragments),
		"keywords", len(keywords),
		"similar_pairs", len(similar))

	return &BuildResult{
		Scope:        scope,
		Fragments:    len(fragments),
		Keywords:     len(keywords),
		AppearsIn:    len(appears),
		SimilarPairs: len(similar),
	}, nil
}

// assembleGraph derives the node and edge sets from the ordered mapping.
// Fragment ids are assigned in first-seen order over the mapping's iteration;
// two keywords pointing at identical fragment text share one Fragment node.
func assembleGraph(scope string, mapping *types.KeywordMap) ([]*types.Fragment, []*types.Keyword, []types.AppearsIn) {
	idByText := make(map[string]int)
	var fragments []*types.Fragment
	var keywords []*types.Keyword
	var appears []types.AppearsIn

	mapping.Range(func(kw string, fragTexts []string) bool {
		keywords = append(keywords, &types.Keyword{Name: kw, Scope: scope})
		for _, text := range fragTexts {
			id, ok := idByText[text]
			if !ok {
				id = len(fragments)
				idByText[text] = id
				fragments = append(fragments, &types.Fragment{ID: id, Content: text, Scope: scope})
			}
			appears = append(appears, types.AppearsIn{Keyword: kw, FragmentID: id})
		}
		return true
	})

	return fragments, keywords, appears
}

// embedKeywords fetches and normalizes embeddings for every keyword, bounded
// by the configured embed timeout.
func (c *Client) embedKeywords(ctx context.Context, keywords []*types.Keyword) error {
	if c.embedder == nil {
		return collaboratorErr("embedder", errNoEmbedder)
	}

	embedCtx, cancel := context.WithTimeout(ctx, c.config.EmbedTimeout)
	defer cancel()

	names := make([]string, len(keywords))
	for i, kw := range keywords {
		names[i] = kw.Name
	}

	vectors, err := c.embedder.Embed(embedCtx, names)
	if err != nil {
		return collaboratorErr("embedder", err)
	}
	if len(vectors) != len(keywords) {
		return collaboratorErr("embedder", errVectorCount)
	}

	for i, vec := range vectors {
		embedder.Normalize(vec)
		keywords[i].Embedding = vec
	}
	return nil
}

// similarPairs scans every unordered keyword pair and keeps those whose
// cosine similarity clears the threshold. The scan is O(k²) and runs on the
// worker pool; no scope lock beyond this build's own is held.
func (c *Client) similarPairs(keywords []*types.Keyword) []types.SimilarTo {
	n := len(keywords)
	if n < 2 {
		return nil
	}

	perRow := make([][]types.SimilarTo, n)
	var wg sync.WaitGroup

	for i := 0; i < n-1; i++ {
		i := i
		wg.Add(1)
		task := func() {
			defer wg.Done()
			var row []types.SimilarTo
			for j := i + 1; j < n; j++ {
				sim := embedder.Cosine(keywords[i].Embedding, keywords[j].Embedding)
				if sim >= c.config.SimThreshold {
					row = append(row, types.SimilarTo{
						Source: keywords[i].Name,
						Target: keywords[j].Name,
						Weight: sim,
					})
				}
			}
			perRow[i] = row
		}
		if err := c.pool.Submit(task); err != nil {
			// Pool released or overloaded; do the row inline.
			task()
		}
	}
	wg.Wait()

	var out []types.SimilarTo
	for _, row := range perRow {
		out = append(out, row...)
	}
	return out
}

func (c *Client) writeGraph(ctx context.Context, scope string, fragments []*types.Fragment, keywords []*types.Keyword, appears []types.AppearsIn, similar []types.SimilarTo) error {
	if err := c.store.UpsertFragments(ctx, scope, fragments); err != nil {
		return storeErr("upsert fragments", err)
	}
	if err := c.store.UpsertKeywords(ctx, scope, keywords); err != nil {
		return storeErr("upsert keywords", err)
	}
	if err := c.store.UpsertAppearsIn(ctx, scope, appears); err != nil {
		return storeErr("upsert appears-in", err)
	}
	if len(similar) > 0 {
		if err := c.store.UpsertSimilarTo(ctx, scope, similar); err != nil {
			return storeErr("upsert similar-to", err)
		}
	}
	return nil
}

// BuildDocument chunks page texts, extracts keywords per chunk and builds the
// scope's graph from the resulting mapping.
func (c *Client) BuildDocument(ctx context.Context, scope string, pages []string) (*BuildResult, error) {
	chunks := c.chunker.SplitPages(pages)

	km := types.NewKeywordMap()
	for _, chunk := range chunks {
		labeled := chunk.Labeled()
		for _, kw := range c.extractor.Extract(chunk.Content) {
			km.Add(kw, labeled)
		}
	}

	return c.Build(ctx, scope, km)
}

// Clear removes every node and edge tagged with the scope. It takes the
// scope's exclusive lock so it cannot interleave with a build.
func (c *Client) Clear(ctx context.Context, scope string) error {
	if scope == "" {
		return types.ErrEmptyScope
	}

	unlock := c.scopes.lockWrite(scope)
	defer unlock()

	if err := c.store.ClearScope(ctx, scope); err != nil {
		return storeErr("clear", err)
	}
	if c.metrics != nil {
		c.metrics.ScopeClears.Inc()
	}
	return nil
}

func (c *Client) observeBuild(result *BuildResult, elapsed time.Duration, err error) {
	if c.metrics == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	c.metrics.BuildsTotal.WithLabelValues(status).Inc()
	c.metrics.BuildDuration.WithLabelValues(status).Observe(elapsed.Seconds())
	if result != nil {
		c.metrics.BuildFragments.WithLabelValues(status).Observe(float64(result.Fragments))
	}
}
