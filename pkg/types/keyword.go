package types

import (
	"strings"
	"unicode"
)

// Keyword is a graph node identified by its canonical string within a scope.
// Two keywords with the same canonical form in the same scope are the same
// node (merge-on-insert). Embedding, when present, is unit-normalized.
type Keyword struct {
	Name      string    `json:"name"`
	Scope     string    `json:"scope,omitempty"`
	Embedding []float32 `json:"embedding,omitempty"`
}

// Validate checks required Keyword fields.
func (k *Keyword) Validate() error {
	if k.Name == "" {
		return ErrEmptyKeyword
	}
	if k.Scope == "" {
		return ErrEmptyScope
	}
	return nil
}

// CanonicalKeyword normalizes a raw keyword phrase to its node identity:
// lower-cased, punctuation stripped, inner whitespace collapsed to single
// spaces. Lemmatization is the extraction collaborator's responsibility and
// is expected to have happened upstream.
func CanonicalKeyword(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))
	lastSpace := true
	for _, r := range strings.ToLower(raw) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			lastSpace = false
		case unicode.IsSpace(r) || unicode.IsPunct(r) || unicode.IsSymbol(r):
			if !lastSpace {
				b.WriteRune(' ')
				lastSpace = true
			}
		}
	}
	return strings.TrimSpace(b.String())
}
