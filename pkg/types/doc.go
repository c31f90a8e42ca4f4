// Package types defines the data model shared across keygraph packages.
//
// The graph is bipartite with one derived relation: Keyword nodes point at
// Fragment nodes through AppearsIn edges, and Keyword nodes are linked to
// each other through weighted SimilarTo edges when embedding mode is enabled.
// Every node and edge is tagged with a scope, the tenant/session key that
// keeps concurrent documents from contaminating each other.
//
// KeywordMap is the ordered mapping handed to the index builder. It preserves
// first-seen key order so fragment ids are assigned deterministically within
// a single build.
package types
