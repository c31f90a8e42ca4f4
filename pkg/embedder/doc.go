// Package embedder provides text embedding clients for keyword vectors.
//
// The Client interface is the embedding collaborator contract from the
// retrieval core's point of view: a blocking network call that turns text
// into a float vector. Implementations batch internally; callers are expected
// to pass a context with a deadline. All vectors handed to the graph store
// are unit-normalized via Normalize, so cosine similarity reduces to a dot
// product.
package embedder
