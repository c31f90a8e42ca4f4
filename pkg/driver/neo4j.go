package driver

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/veridoc/keygraph/pkg/types"
)

// Neo4jStore implements GraphStore on a Neo4j database. Fragments and
// keywords are labeled nodes carrying a scope property; AppearsIn and
// SimilarTo are APPEARS_IN and SIMILAR_TO relationships.
type Neo4jStore struct {
	client   neo4j.DriverWithContext
	database string
}

// NewNeo4jStore creates a new Neo4j-backed store.
func NewNeo4jStore(uri, username, password, database string) (*Neo4jStore, error) {
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(username, password, ""))
	if err != nil {
		return nil, fmt.Errorf("failed to create neo4j driver: %w", err)
	}
	if database == "" {
		database = "neo4j"
	}
	return &Neo4jStore{client: driver, database: database}, nil
}

func (n *Neo4jStore) session(ctx context.Context) neo4j.SessionWithContext {
	return n.client.NewSession(ctx, neo4j.SessionConfig{DatabaseName: n.database})
}

// ClearScope detach-deletes every node tagged with scope.
func (n *Neo4jStore) ClearScope(ctx context.Context, scope string) error {
	session := n.session(ctx)
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		query := `
			MATCH (n {scope: $scope})
			DETACH DELETE n
		`
		_, err := tx.Run(ctx, query, map[string]any{"scope": scope})
		return nil, err
	})
	if err != nil {
		return fmt.Errorf("failed to clear scope %q: %w", scope, err)
	}
	return nil
}

// UpsertFragments creates or updates fragment nodes.
func (n *Neo4jStore) UpsertFragments(ctx context.Context, scope string, fragments []*types.Fragment) error {
	rows := make([]map[string]any, len(fragments))
	for i, f := range fragments {
		rows[i] = map[string]any{"id": f.ID, "content": f.Content}
	}

	session := n.session(ctx)
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		query := `
			UNWIND $rows AS row
			MERGE (f:Fragment {id: row.id, scope: $scope})
			SET f.content = row.content
		`
		_, err := tx.Run(ctx, query, map[string]any{"rows": rows, "scope": scope})
		return nil, err
	})
	if err != nil {
		return fmt.Errorf("failed to upsert fragments: %w", err)
	}
	return nil
}

// UpsertKeywords creates or updates keyword nodes. Embeddings are stored as
// float lists on the node, matching how the retrieval queries read them back.
func (n *Neo4jStore) UpsertKeywords(ctx context.Context, scope string, keywords []*types.Keyword) error {
	rows := make([]map[string]any, len(keywords))
	for i, k := range keywords {
		row := map[string]any{"name": k.Name}
		if k.Embedding != nil {
			row["embedding"] = toFloat64s(k.Embedding)
		}
		rows[i] = row
	}

	session := n.session(ctx)
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		query := `
			UNWIND $rows AS row
			MERGE (k:Keyword {name: row.name, scope: $scope})
			SET k.embedding = row.embedding
		`
		_, err := tx.Run(ctx, query, map[string]any{"rows": rows, "scope": scope})
		return nil, err
	})
	if err != nil {
		return fmt.Errorf("failed to upsert keywords: %w", err)
	}
	return nil
}

// UpsertAppearsIn creates keyword-to-fragment edges.
func (n *Neo4jStore) UpsertAppearsIn(ctx context.Context, scope string, edges []types.AppearsIn) error {
	rows := make([]map[string]any, len(edges))
	for i, e := range edges {
		rows[i] = map[string]any{"keyword": e.Keyword, "fragment": e.FragmentID}
	}

	session := n.session(ctx)
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		query := `
			UNWIND $rows AS row
			MATCH (k:Keyword {name: row.keyword, scope: $scope})
			MATCH (f:Fragment {id: row.fragment, scope: $scope})
			MERGE (k)-[:APPEARS_IN]->(f)
		`
		_, err := tx.Run(ctx, query, map[string]any{"rows": rows, "scope": scope})
		return nil, err
	})
	if err != nil {
		return fmt.Errorf("failed to upsert appears-in edges: %w", err)
	}
	return nil
}

// UpsertSimilarTo creates symmetric weighted keyword edges. Both directions
// are materialized so traversals never depend on edge direction.
func (n *Neo4jStore) UpsertSimilarTo(ctx context.Context, scope string, edges []types.SimilarTo) error {
	rows := make([]map[string]any, len(edges))
	for i, e := range edges {
		rows[i] = map[string]any{"source": e.Source, "target": e.Target, "weight": float64(e.Weight)}
	}

	session := n.session(ctx)
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		query := `
			UNWIND $rows AS row
			MATCH (k1:Keyword {name: row.source, scope: $scope})
			MATCH (k2:Keyword {name: row.target, scope: $scope})
			MERGE (k1)-[a:SIMILAR_TO]->(k2) SET a.weight = row.weight
			MERGE (k2)-[b:SIMILAR_TO]->(k1) SET b.weight = row.weight
		`
		_, err := tx.Run(ctx, query, map[string]any{"rows": rows, "scope": scope})
		return nil, err
	})
	if err != nil {
		return fmt.Errorf("failed to upsert similar-to edges: %w", err)
	}
	return nil
}

// ScopeKeywords returns every keyword node in the scope ordered by name.
func (n *Neo4jStore) ScopeKeywords(ctx context.Context, scope string) ([]*types.Keyword, error) {
	session := n.session(ctx)
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		query := `
			MATCH (k:Keyword {scope: $scope})
			RETURN k.name AS name, k.embedding AS embedding
			ORDER BY name
		`
		res, err := tx.Run(ctx, query, map[string]any{"scope": scope})
		if err != nil {
			return nil, err
		}
		return res.Collect(ctx)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read keywords: %w", err)
	}

	records := result.([]*neo4j.Record)
	keywords := make([]*types.Keyword, 0, len(records))
	for _, record := range records {
		name, _ := record.Get("name")
		k := &types.Keyword{Name: name.(string), Scope: scope}
		if raw, ok := record.Get("embedding"); ok && raw != nil {
			k.Embedding = toFloat32s(raw)
		}
		keywords = append(keywords, k)
	}
	return keywords, nil
}

// FragmentScores counts distinct matched keywords per reachable fragment.
func (n *Neo4jStore) FragmentScores(ctx context.Context, scope string, matched []string) ([]ScoredFragment, error) {
	if len(matched) == 0 {
		return nil, nil
	}

	session := n.session(ctx)
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		query := `
			MATCH (k:Keyword {scope: $scope})-[:APPEARS_IN]->(f:Fragment {scope: $scope})
			WHERE k.name IN $keywords
			WITH f, count(DISTINCT k) AS score
			RETURN f.id AS id, f.content AS content, score
			ORDER BY id
		`
		res, err := tx.Run(ctx, query, map[string]any{"scope": scope, "keywords": matched})
		if err != nil {
			return nil, err
		}
		return res.Collect(ctx)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to score fragments: %w", err)
	}

	records := result.([]*neo4j.Record)
	scored := make([]ScoredFragment, 0, len(records))
	for _, record := range records {
		id, _ := record.Get("id")
		content, _ := record.Get("content")
		score, _ := record.Get("score")
		scored = append(scored, ScoredFragment{
			Fragment: &types.Fragment{ID: int(id.(int64)), Content: content.(string), Scope: scope},
			Score:    int(score.(int64)),
		})
	}
	return scored, nil
}

// NeighborFragments unions the shared-keyword and similar-keyword relation
// compositions over the frontier.
func (n *Neo4jStore) NeighborFragments(ctx context.Context, scope string, frontier []int) ([]*types.Fragment, error) {
	if len(frontier) == 0 {
		return nil, nil
	}

	session := n.session(ctx)
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		query := `
			MATCH (f:Fragment {scope: $scope})<-[:APPEARS_IN]-(:Keyword)-[:APPEARS_IN]->(m:Fragment {scope: $scope})
			WHERE f.id IN $frontier
			RETURN DISTINCT m.id AS id, m.content AS content
			UNION
			MATCH (f:Fragment {scope: $scope})<-[:APPEARS_IN]-(:Keyword)-[:SIMILAR_TO]-(:Keyword)-[:APPEARS_IN]->(m:Fragment {scope: $scope})
			WHERE f.id IN $frontier
			RETURN DISTINCT m.id AS id, m.content AS content
		`
		res, err := tx.Run(ctx, query, map[string]any{"scope": scope, "frontier": frontier})
		if err != nil {
			return nil, err
		}
		return res.Collect(ctx)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to expand frontier: %w", err)
	}

	records := result.([]*neo4j.Record)
	seen := make(map[int]struct{}, len(records))
	fragments := make([]*types.Fragment, 0, len(records))
	for _, record := range records {
		id, _ := record.Get("id")
		content, _ := record.Get("content")
		fid := int(id.(int64))
		if _, dup := seen[fid]; dup {
			continue
		}
		seen[fid] = struct{}{}
		fragments = append(fragments, &types.Fragment{ID: fid, Content: content.(string), Scope: scope})
	}
	sort.Slice(fragments, func(i, j int) bool { return fragments[i].ID < fragments[j].ID })
	return fragments, nil
}

// ScopeStats reports node and edge counts for a scope.
func (n *Neo4jStore) ScopeStats(ctx context.Context, scope string) (*ScopeStats, error) {
	session := n.session(ctx)
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		query := `
			OPTIONAL MATCH (f:Fragment {scope: $scope})
			WITH count(f) AS fragments
			OPTIONAL MATCH (k:Keyword {scope: $scope})
			WITH fragments, count(k) AS keywords
			OPTIONAL MATCH (:Keyword {scope: $scope})-[a:APPEARS_IN]->(:Fragment {scope: $scope})
			WITH fragments, keywords, count(a) AS appears
			OPTIONAL MATCH (:Keyword {scope: $scope})-[s:SIMILAR_TO]->(:Keyword {scope: $scope})
			RETURN fragments, keywords, appears, count(s) AS similar
		`
		res, err := tx.Run(ctx, query, map[string]any{"scope": scope})
		if err != nil {
			return nil, err
		}
		return res.Single(ctx)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to collect stats: %w", err)
	}

	record := result.(*neo4j.Record)
	stats := &ScopeStats{Scope: scope, CollectedAt: time.Now()}
	if v, ok := record.Get("fragments"); ok {
		stats.Fragments = v.(int64)
	}
	if v, ok := record.Get("keywords"); ok {
		stats.Keywords = v.(int64)
	}
	if v, ok := record.Get("appears"); ok {
		stats.AppearsIn = v.(int64)
	}
	if v, ok := record.Get("similar"); ok {
		// Both directions are materialized.
		stats.SimilarTo = v.(int64) / 2
	}
	return stats, nil
}

// CreateIndices creates lookup indices for scope-qualified access paths.
func (n *Neo4jStore) CreateIndices(ctx context.Context) error {
	session := n.session(ctx)
	defer session.Close(ctx)

	queries := []string{
		`CREATE INDEX fragment_scope_id IF NOT EXISTS FOR (f:Fragment) ON (f.scope, f.id)`,
		`CREATE INDEX keyword_scope_name IF NOT EXISTS FOR (k:Keyword) ON (k.scope, k.name)`,
	}
	for _, query := range queries {
		_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
			_, err := tx.Run(ctx, query, nil)
			return nil, err
		})
		if err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}
	return nil
}

// ListScopes returns the distinct scopes present in the store.
func (n *Neo4jStore) ListScopes(ctx context.Context) ([]string, error) {
	session := n.session(ctx)
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		query := `
			MATCH (n)
			WHERE n.scope IS NOT NULL
			RETURN DISTINCT n.scope AS scope
			ORDER BY scope
		`
		res, err := tx.Run(ctx, query, nil)
		if err != nil {
			return nil, err
		}
		return res.Collect(ctx)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list scopes: %w", err)
	}

	records := result.([]*neo4j.Record)
	scopes := make([]string, 0, len(records))
	for _, record := range records {
		scope, _ := record.Get("scope")
		scopes = append(scopes, scope.(string))
	}
	return scopes, nil
}

// Provider returns the backend type.
func (n *Neo4jStore) Provider() GraphProvider {
	return GraphProviderNeo4j
}

// Close shuts down the underlying driver.
func (n *Neo4jStore) Close() error {
	return n.client.Close(context.Background())
}

func toFloat64s(v []float32) []float64 {
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = float64(x)
	}
	return out
}

func toFloat32s(raw any) []float32 {
	list, ok := raw.([]any)
	if !ok {
		return nil
	}
	out := make([]float32, 0, len(list))
	for _, item := range list {
		if f, ok := item.(float64); ok {
			out = append(out, float32(f))
		}
	}
	return out
}
