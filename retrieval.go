package keygraph

import (
	"context"
	"sort"
	"time"

	"github.com/veridoc/keygraph/pkg/embedder"
	"github.com/veridoc/keygraph/pkg/types"
)

// Retrieve matches the query against the scope's vocabulary and returns the
// max-score seed fragments followed by fragments discovered per expansion
// level. An empty slice with a nil error is the no-evidence outcome; errors
// are reserved for collaborator and store failures.
func (c *Client) Retrieve(ctx context.Context, scope, query string) ([]*types.Fragment, error) {
	if scope == "" {
		return nil, types.ErrEmptyScope
	}

	start := time.Now()
	unlock, err := c.readLock(scope)
	if err != nil {
		return nil, err
	}
	defer unlock()

	fragments, err := c.retrieveLocked(ctx, scope, query)
	c.observeRetrieval(fragments, time.Since(start), err)
	return fragments, err
}

func (c *Client) retrieveLocked(ctx context.Context, scope, query string) ([]*types.Fragment, error) {
	matched, err := c.matchKeywords(ctx, scope, query)
	if err != nil {
		return nil, err
	}
	if len(matched) == 0 {
		return []*types.Fragment{}, nil
	}
	return c.seedAndExpand(ctx, scope, matched)
}

// RetrieveWithKeywords skips query matching and retrieves directly from an
// already matched keyword set.
func (c *Client) RetrieveWithKeywords(ctx context.Context, scope string, matched []string) ([]*types.Fragment, error) {
	if scope == "" {
		return nil, types.ErrEmptyScope
	}

	start := time.Now()
	unlock, err := c.readLock(scope)
	if err != nil {
		return nil, err
	}
	defer unlock()

	canonical := make([]string, 0, len(matched))
	seen := make(map[string]struct{}, len(matched))
	for _, kw := range matched {
		key := types.CanonicalKeyword(kw)
		if key == "" {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		canonical = append(canonical, key)
	}

	fragments, err := c.seedAndExpand(ctx, scope, canonical)
	c.observeRetrieval(fragments, time.Since(start), err)
	return fragments, err
}

func (c *Client) readLock(scope string) (func(), error) {
	if c.config.RejectDuringRebuild {
		unlock, ok := c.scopes.tryLockRead(scope)
		if !ok {
			return nil, ErrScopeRebuilding
		}
		return unlock, nil
	}
	return c.scopes.lockRead(scope), nil
}

// matchKeywords runs exact-mode matching through the Matcher collaborator or
// fuzzy-mode matching through query keyword embeddings, per configuration.
func (c *Client) matchKeywords(ctx context.Context, scope, query string) ([]string, error) {
	stored, err := c.store.ScopeKeywords(ctx, scope)
	if err != nil {
		return nil, storeErr("scope keywords", err)
	}
	if len(stored) == 0 {
		return nil, nil
	}

	if !c.config.EmbedMode {
		return c.matchExact(ctx, query, stored)
	}
	return c.matchFuzzy(ctx, query, stored)
}

func (c *Client) matchExact(ctx context.Context, query string, stored []*types.Keyword) ([]string, error) {
	if c.matcher == nil {
		return nil, collaboratorErr("matcher", errNoMatcher)
	}
	vocabulary := make([]string, len(stored))
	for i, kw := range stored {
		vocabulary[i] = kw.Name
	}
	matched, err := c.matcher.Match(ctx, query, vocabulary)
	if err != nil {
		return nil, collaboratorErr("matcher", err)
	}
	return matched, nil
}

// matchFuzzy embeds each extracted query keyword and keeps, per keyword, the
// top-K stored keywords whose cosine similarity clears the threshold. Results
// union and dedupe across query keywords.
func (c *Client) matchFuzzy(ctx context.Context, query string, stored []*types.Keyword) ([]string, error) {
	queryKeywords := c.extractor.Extract(query)
	if len(queryKeywords) == 0 {
		return nil, nil
	}
	if c.embedder == nil {
		return nil, collaboratorErr("embedder", errNoEmbedder)
	}

	vectors, err := c.embedder.Embed(ctx, queryKeywords)
	if err != nil {
		return nil, collaboratorErr("embedder", err)
	}

	topK := c.config.TopKKeywords
	if topK <= 0 {
		topK = 1
	}

	var matched []string
	seen := make(map[string]struct{})

	for _, vec := range vectors {
		embedder.Normalize(vec)

		type candidate struct {
			name string
			sim  float32
		}
		var candidates []candidate
		for _, kw := range stored {
			if len(kw.Embedding) == 0 {
				continue
			}
			sim := embedder.Cosine(vec, kw.Embedding)
			if sim >= c.config.SimThreshold {
				candidates = append(candidates, candidate{name: kw.Name, sim: sim})
			}
		}
		sort.Slice(candidates, func(i, j int) bool {
			if candidates[i].sim != candidates[j].sim {
				return candidates[i].sim > candidates[j].sim
			}
			return candidates[i].name < candidates[j].name
		})
		if len(candidates) > topK {
			candidates = candidates[:topK]
		}
		for _, cand := range candidates {
			if _, dup := seen[cand.name]; dup {
				continue
			}
			seen[cand.name] = struct{}{}
			matched = append(matched, cand.name)
		}
	}

	return matched, nil
}

// seedAndExpand selects the max-score plateau as the seed set, then walks
// outward up to MaxDepth levels through shared and similar keywords. All
// fragments tied at the maximum score are kept; discovery order is seeds
// first, then one batch per depth level.
func (c *Client) seedAndExpand(ctx context.Context, scope string, matched []string) ([]*types.Fragment, error) {
	if len(matched) == 0 {
		return []*types.Fragment{}, nil
	}

	scored, err := c.store.FragmentScores(ctx, scope, matched)
	if err != nil {
		return nil, storeErr("fragment scores", err)
	}
	if len(scored) == 0 {
		return []*types.Fragment{}, nil
	}

	maxScore := 0
	for _, sf := range scored {
		if sf.Score > maxScore {
			maxScore = sf.Score
		}
	}

	var results []*types.Fragment
	visited := make(map[int]struct{})
	var frontier []int
	for _, sf := range scored {
		if sf.Score != maxScore {
			continue
		}
		results = append(results, sf.Fragment)
		visited[sf.Fragment.ID] = struct{}{}
		frontier = append(frontier, sf.Fragment.ID)
	}

	for depth := 0; depth < c.config.MaxDepth; depth++ {
		neighbors, err := c.store.NeighborFragments(ctx, scope, frontier)
		if err != nil {
			return nil, storeErr("neighbor fragments", err)
		}

		frontier = frontier[:0]
		for _, frag := range neighbors {
			if _, done := visited[frag.ID]; done {
				continue
			}
			visited[frag.ID] = struct{}{}
			results = append(results, frag)
			frontier = append(frontier, frag.ID)
		}
		if len(frontier) == 0 {
			break
		}
	}

	return results, nil
}

func (c *Client) observeRetrieval(fragments []*types.Fragment, elapsed time.Duration, err error) {
	if c.metrics == nil {
		return
	}
	status := "ok"
	switch {
	case err != nil:
		status = "error"
	case len(fragments) == 0:
		status = "no_evidence"
	}
	c.metrics.RetrievalsTotal.WithLabelValues(status).Inc()
	c.metrics.RetrievalDuration.WithLabelValues(status).Observe(elapsed.Seconds())
	c.metrics.RetrievalResults.WithLabelValues(status).Observe(float64(len(fragments)))
}
