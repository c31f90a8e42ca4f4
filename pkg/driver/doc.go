// Package driver provides graph store backends for the keyword/fragment
// graph.
//
// The GraphStore interface re-expresses the graph operations the index and
// retrieval engine need (scope-qualified upserts, fragment scoring, the two
// neighbor relation compositions) as abstract operations, so an adjacency-list
// backend behaves identically to a graph database. Three backends are
// provided:
//
//   - Neo4jStore: Cypher over neo4j-go-driver, the production backend.
//   - BadgerStore: embedded persistent store on BadgerDB.
//   - MemoryStore: in-process maps, used in tests and ephemeral deployments.
//
// Scoring policy lives in the retrieval engine, not here: FragmentScores
// returns the full score list and the engine applies the max-score plateau
// rule, so every backend inherits the same seed-selection behavior.
package driver
