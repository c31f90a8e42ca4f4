package types

// Fragment is a retrievable unit of document text.
//
// IDs are assigned in first-seen order during a build and are unique and
// stable within that build generation only. A rebuild of the same scope may
// assign different ids if the caller supplies map entries in a different
// order; callers that need id stability across rebuilds must supply a stable
// iteration order themselves.
type Fragment struct {
	ID      int    `json:"id"`
	Content string `json:"content"`
	Scope   string `json:"scope,omitempty"`
}

// Validate checks required Fragment fields.
func (f *Fragment) Validate() error {
	if f.ID < 0 {
		return ErrNegativeID
	}
	if f.Content == "" {
		return ErrEmptyContent
	}
	if f.Scope == "" {
		return ErrEmptyScope
	}
	return nil
}

// AppearsIn is an unweighted existence edge from a keyword to a fragment.
// Multiplicity within a fragment is not stored; the retrieval scorer counts
// distinct matched keywords per fragment, not term frequency.
type AppearsIn struct {
	Keyword    string `json:"keyword"`
	FragmentID int    `json:"fragment_id"`
}

// SimilarTo is a symmetric keyword-to-keyword edge created when embedding
// mode is enabled and cosine similarity clears the configured threshold.
// Weight is the similarity in [threshold, 1].
type SimilarTo struct {
	Source string  `json:"source"`
	Target string  `json:"target"`
	Weight float32 `json:"weight"`
}
