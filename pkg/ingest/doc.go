// Package ingest turns raw documents into the keyword-to-fragment mapping the
// index builder consumes.
//
// Chunker splits page text into sentence-aligned overlapping fragments and
// tags each fragment with its page label. Extractor pulls candidate keywords
// out of fragment text with stopword filtering, n-gram frequency scoring and
// proper-noun detection, then drops phrases subsumed by longer ones.
package ingest
