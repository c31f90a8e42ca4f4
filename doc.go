// Package keygraph implements a keyword-indexed graph engine for retrieving
// document fragments relevant to a natural-language query.
//
// Documents are indexed per scope (a tenant or conversation key): each scope
// holds Keyword and Fragment nodes, AppearsIn edges linking keywords to the
// fragments they occur in, and optional SimilarTo edges between keywords whose
// embeddings clear a cosine threshold. Retrieval matches a query against the
// scope's keyword vocabulary, seeds on the fragments with the highest count of
// distinct matched keywords (keeping all ties), then expands outward a bounded
// number of hops through shared and similar keywords.
//
// The graph lives behind the driver.GraphStore interface with Neo4j, Badger
// and in-memory backends. Embedding and keyword-matching collaborators are
// pluggable; see pkg/embedder and pkg/nlp.
package keygraph
