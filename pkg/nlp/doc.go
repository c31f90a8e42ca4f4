// Package nlp provides language model clients used for vocabulary-constrained
// keyword matching during retrieval.
//
// The Client interface abstracts the chat completion call; OpenAIClient talks
// to OpenAI or any OpenAI-compatible endpoint. RetryClient and
// CircuitBreakerClient are decorators that add exponential backoff and
// gobreaker-based failure isolation around any Client. VocabularyMatcher sits
// on top of a Client and maps a free-text query to keywords drawn strictly
// from a scope's indexed vocabulary.
package nlp
